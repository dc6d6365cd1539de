// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fabric

import (
	"sync"

	"code.hybscloud.com/atomix"
)

// Registry is the channel matrix connecting a fixed set of context ids.
//
// It owns one channel per ordered (source, destination) pair and one
// Signaler per attached context. Write and Read are lock-free. Attach and
// Detach serialise on a mutex that guards only the id bookkeeping.
//
// Channel (s, d) must be written only by the goroutine that owns context s
// and read only by the goroutine that owns context d.
type Registry[M any] struct {
	writers   []*ChannelWriter[M]
	readers   []*ChannelReader[M]
	signalers []atomix.Pointer[Signaler]
	attached  []atomix.Bool
	n         int
	slots     atomix.Int64
	logger    *Logger
	mu        sync.Mutex
}

func newRegistry[M any](opts Options) *Registry[M] {
	n := opts.contexts
	r := &Registry[M]{
		writers:   make([]*ChannelWriter[M], n*n),
		readers:   make([]*ChannelReader[M], n*n),
		signalers: make([]atomix.Pointer[Signaler], n),
		attached:  make([]atomix.Bool, n),
		n:         n,
		logger:    opts.logger,
	}
	for i := range r.writers {
		r.writers[i], r.readers[i] = newChannel[M](opts.chunkSize, opts.spareChunks)
	}
	r.logger.Info().
		Int("contexts", n).
		Int("chunk_size", opts.chunkSize).
		Int("spare_chunks", opts.spareChunks).
		Log("fabric registry built")
	return r
}

// Cap returns the number of context ids the registry was built for.
func (r *Registry[M]) Cap() int {
	return r.n
}

// Attach binds a new context to the lowest free id.
//
// Panics if every id is attached.
func (r *Registry[M]) Attach() *Context[M] {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.n {
		if !r.attached[id].LoadAcquire() {
			return r.attachLocked(id)
		}
	}
	fatal(r.logger, "no free context id", "capacity", r.n)
	return nil
}

// AttachID binds a new context to id.
//
// Panics if id is out of range or already attached.
func (r *Registry[M]) AttachID(id int) *Context[M] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < 0 || id >= r.n {
		fatal(r.logger, "context id out of range", "context", id)
	}
	if r.attached[id].LoadAcquire() {
		fatal(r.logger, "context id already attached", "context", id)
	}
	return r.attachLocked(id)
}

func (r *Registry[M]) attachLocked(id int) *Context[M] {
	// Inbound channels may already be active: written before this id was
	// ever attached, or left behind by a previous owner. Such channels
	// never signal again, so the first read scans all of them.
	sig := NewSignaler()
	sig.bits.StoreRelaxed(uint64(1)<<r.n - 1)
	r.signalers[id].StoreRelease(sig)
	r.attached[id].StoreRelease(true)
	r.logger.Debug().Int("context", id).Log("context attached")
	return &Context[M]{reg: r, id: id, sig: sig}
}

// Detach releases id for reuse.
//
// Channels touching id are left as they are: messages still queued to or
// from id are stranded. Drain a context before detaching it when delivery
// matters.
//
// Panics if id is not attached.
func (r *Registry[M]) Detach(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < 0 || id >= r.n || !r.attached[id].LoadAcquire() {
		fatal(r.logger, "context id not attached", "context", id)
	}
	r.attached[id].StoreRelease(false)
	r.signalers[id].StoreRelease(nil)
	r.logger.Debug().Int("context", id).Log("context detached")
}

// IsAttached reports whether a context currently owns id.
// Callers should consult it before addressing a destination.
func (r *Registry[M]) IsAttached(id int) bool {
	if id < 0 || id >= r.n {
		return false
	}
	return r.attached[id].LoadAcquire()
}

// Write appends msg to channel (source, destination).
//
// If incomplete is false the channel is flushed, and the destination's
// Signaler is signaled when the reader had gone idle. A write to a
// detached destination is stranded.
func (r *Registry[M]) Write(source, destination int, msg M, incomplete bool) {
	w := r.writers[r.index(source, destination)]
	w.Write(msg, incomplete)
	if incomplete || w.Flush() {
		return
	}
	if sig := r.signalers[destination].LoadAcquire(); sig != nil {
		sig.Signal(source)
		return
	}
	r.logger.Trace().
		Int("source", source).
		Int("destination", destination).
		Log("write to detached context")
}

// Unwrite removes the most recent incomplete message on channel
// (source, destination). Returns false if there is none.
func (r *Registry[M]) Unwrite(source, destination int) (M, bool) {
	return r.writers[r.index(source, destination)].Unwrite()
}

// Read removes and returns the oldest published message on channel
// (source, destination).
// Returns (zero-value, ErrWouldBlock) if none is available.
func (r *Registry[M]) Read(source, destination int) (M, error) {
	return r.readers[r.index(source, destination)].Read()
}

func (r *Registry[M]) index(source, destination int) int {
	if uint(source) >= uint(r.n) || uint(destination) >= uint(r.n) {
		panic("fabric: context id out of range")
	}
	return source*r.n + destination
}
