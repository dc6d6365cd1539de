// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package fabric provides an in-process messaging fabric for a fixed set
// of goroutines.
//
// Every ordered pair of participants is connected by a dedicated unbounded
// single-producer single-consumer channel, and every participant owns a
// readiness bitmap that tells it which of its inbound channels has data.
// No lock is taken on the message path.
//
// # Quick Start
//
//	r := fabric.Build[Event](fabric.New(4))
//
//	a := r.Attach() // id 0
//	b := r.Attach() // id 1
//
//	// Goroutine owning a: send a batch to b
//	a.Destination(b.ID()).Write(ev1, ev2, ev3)
//
//	// Goroutine owning b: block until something arrives
//	sources := make([]int, 16)
//	msgs := make([]Event, 16)
//	n, _ := b.Read(sources, msgs, true)
//	for i := range n {
//	    handle(sources[i], msgs[i])
//	}
//
// # Components
//
// Channel: [NewChannel] returns a [ChannelWriter] and a [ChannelReader].
// Messages are stored in linked chunks of fixed size, so the channel never
// fills up. Write is pure local bookkeeping; Flush publishes all complete
// writes with one CAS. A reader that finds the channel empty marks itself
// idle, and the next Flush reports that so the writer can wake it.
//
// Signaler: [Signaler] holds one readiness bit per source id and a wait
// sentinel in bit 63. Producers call Signal; the single owner calls Poll
// (blocking), PollContext (cancellable) or Check (non-blocking). A wakeup is
// posted only when the owner is asleep, and never lost.
//
// Registry: [Registry] is the channel matrix. It allocates contexts²
// channels up front, hands out context ids, and routes Write and Read to
// the right channel, signaling the destination when its reader is idle.
//
// Context and Destination: [Context] is one participant. Its Read drains
// every signaled source in ascending id order. [Destination] writes a batch
// to one peer so that the peer observes it as a unit.
//
// # Batches
//
// A message written with incomplete=true is not published by Flush until a
// later complete write. Destination.Write uses this to publish a whole
// batch at once:
//
//	d := ctx.Destination(peer)
//	d.Write(header, body, trailer) // visible together
//
// Registry.Unwrite and Destination.Unwrite cancel the tail of a batch that
// has not been completed yet.
//
// # Ordering
//
// Messages on one (source, destination) pair are delivered in write order.
// There is no ordering between different sources.
//
// # Thread Safety
//
//   - ChannelWriter: one goroutine. ChannelReader: one goroutine.
//   - Signaler: Signal from any goroutine; Poll, PollContext and Check from
//     the owner only.
//   - Context and its Destinations: the goroutine that owns the context.
//   - Registry.Attach, AttachID, Detach and IsAttached: any goroutine.
//
// Violating these constraints causes undefined behavior including data
// corruption.
//
// # Errors
//
// Empty channels and non-blocking reads that find nothing return
// [ErrWouldBlock], sourced from [code.hybscloud.com/iox]. Configuration and
// lifecycle misuse (too many contexts, attaching a taken id, detaching a
// free id) panic: the fabric is a fixed topology set up at startup and
// has no recovery path.
//
// # Detaching
//
// Detaching a context does not touch its channels. Messages in flight to a
// detached id are stranded; callers that need delivery must drain before
// detaching and should check [Registry.IsAttached] before addressing a
// peer. Messages written to an id before it is attached are not lost: a
// newly attached context scans all of its inbound channels on its first
// read.
//
// # Race Detection
//
// Channels protect plain slot memory with acquire-release orderings on a
// separate position word. The race detector cannot observe these
// happens-before edges and may report false positives. Tests that exercise
// channels concurrently are skipped when [RaceEnabled] is true.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/atomix] for atomics with explicit
// memory ordering, [code.hybscloud.com/spin] for CAS retry pauses,
// [code.hybscloud.com/iox] for semantic errors,
// [golang.org/x/sync/semaphore] for the blocking wait, and
// [github.com/joeycumines/logiface] for structured logging.
package fabric
