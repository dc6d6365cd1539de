// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fabric

import (
	"context"
	"math/bits"
)

// Context is one participant's view of a Registry.
//
// A Context is obtained from [Registry.Attach] or [Registry.AttachID] and
// must be used by a single goroutine. It reads from every channel whose
// destination is its id, and hands out [Destination] handles for writing
// to other ids.
type Context[M any] struct {
	reg     *Registry[M]
	sig     *Signaler
	id      int
	pending uint64 // Sources not yet observed empty
	storage Storage
	closed  bool
}

// ID returns the context id.
func (c *Context[M]) ID() int {
	return c.id
}

// Storage returns the context's side storage.
func (c *Context[M]) Storage() *Storage {
	return &c.storage
}

// Destination returns a write handle for channel (c.ID(), dst).
//
// Panics if dst is out of range.
func (c *Context[M]) Destination(dst int) *Destination[M] {
	c.reg.index(c.id, dst)
	return &Destination[M]{reg: c.reg, source: c.id, target: dst}
}

// Read receives messages from any signaled source.
//
// Up to min(len(sources), len(msgs)) messages are stored into msgs, and
// the id each came from into the matching element of sources. Sources are
// drained in ascending id order, each until it is empty or the buffer is
// full. Per source, messages arrive in write order.
//
// If blocking is false and nothing is ready, Read returns
// (0, ErrWouldBlock). If blocking is true, Read waits until at least one
// message is received; there is no timeout (see ReadContext).
func (c *Context[M]) Read(sources []int, msgs []M, blocking bool) (int, error) {
	return c.read(context.Background(), sources, msgs, blocking)
}

// ReadContext is a blocking Read that returns ctx.Err() once ctx is done
// and no message has been received.
func (c *Context[M]) ReadContext(ctx context.Context, sources []int, msgs []M) (int, error) {
	return c.read(ctx, sources, msgs, true)
}

func (c *Context[M]) read(ctx context.Context, sources []int, msgs []M, blocking bool) (int, error) {
	if c.closed {
		fatal(c.reg.logger, "read on closed context", "context", c.id)
	}
	count := min(len(sources), len(msgs))
	if count == 0 {
		return 0, nil
	}
	sources, msgs = sources[:count], msgs[:count]

	for {
		switch {
		case c.pending != 0:
			c.pending |= c.sig.Check()
		case !blocking:
			c.pending = c.sig.Check()
		case ctx.Done() == nil:
			c.pending = c.sig.Poll()
		default:
			ready, err := c.sig.PollContext(ctx)
			if err != nil {
				return 0, err
			}
			c.pending = ready
		}

		n := c.drain(sources, msgs)
		if n > 0 {
			return n, nil
		}
		if !blocking {
			return 0, ErrWouldBlock
		}
	}
}

// drain reads pending sources in ascending order. A source leaves the
// pending set only once its channel reports empty, which leaves the
// channel idle and guarantees a fresh signal on its next flush.
func (c *Context[M]) drain(sources []int, msgs []M) int {
	n := 0
	ready := c.pending
	for ready != 0 && n < len(msgs) {
		src := bits.TrailingZeros64(ready)
		ready &= ready - 1
		for n < len(msgs) {
			msg, err := c.reg.Read(src, c.id)
			if err != nil {
				c.pending &^= uint64(1) << src
				break
			}
			sources[n] = src
			msgs[n] = msg
			n++
		}
	}
	return n
}

// Close detaches the context and clears its storage.
// Messages still queued to this context are stranded.
//
// Panics if the context is already closed.
func (c *Context[M]) Close() {
	if c.closed {
		fatal(c.reg.logger, "context already closed", "context", c.id)
	}
	c.closed = true
	c.storage.reset()
	c.pending = 0
	c.reg.Detach(c.id)
}
