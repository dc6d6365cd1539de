// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fabric

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// channel is the state shared by a ChannelWriter and its ChannelReader.
//
// Positions are monotonically increasing slot counters. committed holds
// the writer's last published position plus one; zero means the reader
// found nothing and went idle, and must be woken by the writer's caller.
// A new channel starts idle, so its first Flush asks for a wakeup.
type channel[M any] struct {
	_         pad
	committed atomix.Uint64
	_         padShort
	spare     *recycler[M]
	size      uint64
	mask      uint64
}

// ChannelWriter is the producer half of a chunked SPSC channel.
//
// Writes are local bookkeeping. Only Flush touches shared state, with a
// single CAS on the committed position.
type ChannelWriter[M any] struct {
	ch        *channel[M]
	tail      *chunk[M] // Chunk holding position back
	back      uint64    // Next position to write
	flushed   uint64    // End of the last complete message
	published uint64    // Position last stored into committed
	spare     *chunk[M] // Chunk released by Unwrite
}

// ChannelReader is the consumer half of a chunked SPSC channel.
type ChannelReader[M any] struct {
	ch    *channel[M]
	head  *chunk[M] // Chunk holding position front
	front uint64    // Oldest unread position
	limit uint64    // Cached committed value, zero when idle
}

// NewChannel creates an unbounded SPSC channel made of chunks of
// chunkSize slots, and returns its two halves.
//
// The writer half must be used by exactly one goroutine and the reader
// half by exactly one goroutine.
//
// Panics if chunkSize is not a positive power of 2.
func NewChannel[M any](chunkSize int) (*ChannelWriter[M], *ChannelReader[M]) {
	if chunkSize < 1 || chunkSize&(chunkSize-1) != 0 {
		panic("fabric: chunk size must be a positive power of 2")
	}
	return newChannel[M](chunkSize, DefaultSpareChunks)
}

func newChannel[M any](chunkSize, spareChunks int) (*ChannelWriter[M], *ChannelReader[M]) {
	ch := &channel[M]{
		spare: newRecycler[M](spareChunks),
		size:  uint64(chunkSize),
		mask:  uint64(chunkSize) - 1,
	}
	first := &chunk[M]{slots: make([]M, chunkSize)}
	return &ChannelWriter[M]{ch: ch, tail: first}, &ChannelReader[M]{ch: ch, head: first}
}

// Write appends msg (writer only).
//
// If incomplete is true, msg stays invisible to Flush until a later
// complete Write. This lets a producer build a batch that the reader
// observes as a unit.
func (w *ChannelWriter[M]) Write(msg M, incomplete bool) {
	w.tail.slots[w.back&w.ch.mask] = msg
	w.back++
	if w.back&w.ch.mask == 0 {
		c := w.alloc()
		c.prev = w.tail
		w.tail.next = c
		w.tail = c
	}
	if !incomplete {
		w.flushed = w.back
	}
}

// Unwrite removes and returns the most recent incomplete message
// (writer only). Returns false if every written message is already
// complete.
func (w *ChannelWriter[M]) Unwrite() (M, bool) {
	if w.back == w.flushed {
		var zero M
		return zero, false
	}

	// back > flushed, so the reader cannot have reached tail yet and
	// tail.prev is still linked.
	if w.back&w.ch.mask == 0 {
		old := w.tail
		w.tail = old.prev
		w.tail.next = nil
		old.prev = nil
		w.spare = old
	}

	w.back--
	i := w.back & w.ch.mask
	msg := w.tail.slots[i]
	var zero M
	w.tail.slots[i] = zero
	return msg, true
}

// Flush publishes every complete message (writer only).
//
// Returns true if there was nothing new to publish or the reader was
// still active. Returns false if the reader had gone idle; the caller
// must then wake the reader, typically through its Signaler.
func (w *ChannelWriter[M]) Flush() bool {
	if w.published == w.flushed {
		return true
	}

	if !w.ch.committed.CompareAndSwapAcqRel(w.published+1, w.flushed+1) {
		// committed is zero. The reader does not look at it again
		// until it is woken, so a plain publish is enough.
		w.ch.committed.StoreRelease(w.flushed + 1)
		w.published = w.flushed
		return false
	}

	w.published = w.flushed
	return true
}

// Pending returns the number of messages written but not yet published
// by Flush, complete or not (writer only).
func (w *ChannelWriter[M]) Pending() int {
	return int(w.back - w.published)
}

func (w *ChannelWriter[M]) alloc() *chunk[M] {
	if c := w.spare; c != nil {
		w.spare = nil
		return c
	}
	if c := w.ch.spare.get(); c != nil {
		return c
	}
	return &chunk[M]{slots: make([]M, w.ch.size)}
}

// CheckAvailable reports whether a published message is ready
// (reader only).
//
// When the locally cached limit is exhausted it tries to swap the
// committed position for zero. Success means the reader is now idle and
// the writer's next Flush returns false.
func (r *ChannelReader[M]) CheckAvailable() bool {
	if r.limit != 0 && r.limit != r.front+1 {
		return true
	}

	sw := spin.Wait{}
	for {
		c := r.ch.committed.LoadAcquire()
		if c != r.front+1 {
			r.limit = c
			return c != 0
		}
		if r.ch.committed.CompareAndSwapAcqRel(c, 0) {
			r.limit = 0
			return false
		}
		sw.Once()
	}
}

// Read removes and returns the oldest published message (reader only).
// Returns (zero-value, ErrWouldBlock) if none is available.
func (r *ChannelReader[M]) Read() (M, error) {
	if !r.CheckAvailable() {
		var zero M
		return zero, ErrWouldBlock
	}

	i := r.front & r.ch.mask
	msg := r.head.slots[i]
	var zero M
	r.head.slots[i] = zero
	r.front++

	if r.front&r.ch.mask == 0 {
		old := r.head
		r.head = old.next
		r.head.prev = nil
		old.next = nil
		r.ch.spare.put(old)
	}
	return msg, nil
}
