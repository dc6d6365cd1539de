// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fabric

// Destination writes to one channel of a Registry.
//
// It is bound to a fixed (source, target) pair and must be used only by
// the goroutine that owns the source context.
type Destination[M any] struct {
	reg    *Registry[M]
	source int
	target int
}

// Source returns the writing context id.
func (d *Destination[M]) Source() int {
	return d.source
}

// Target returns the receiving context id.
func (d *Destination[M]) Target() int {
	return d.target
}

// Write sends msgs as one batch.
//
// Every message but the last is written incomplete, so the receiver sees
// either none or all of the batch. An empty batch is a no-op.
func (d *Destination[M]) Write(msgs ...M) {
	last := len(msgs) - 1
	for i := range msgs {
		d.reg.Write(d.source, d.target, msgs[i], i < last)
	}
}

// Unwrite cancels the most recent incomplete message.
// Returns false if there is none.
func (d *Destination[M]) Unwrite() (M, bool) {
	return d.reg.Unwrite(d.source, d.target)
}

// IsAttached reports whether the target context is currently attached.
// Writes to a detached target are stranded.
func (d *Destination[M]) IsAttached() bool {
	return d.reg.IsAttached(d.target)
}
