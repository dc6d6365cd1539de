// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fabric

import "code.hybscloud.com/atomix"

// chunk is a fixed-size run of message slots in a channel.
// Chunks are doubly linked so the writer can step back over a
// boundary on Unwrite.
type chunk[M any] struct {
	slots []M
	prev  *chunk[M]
	next  *chunk[M]
}

// recycler hands drained chunks from a channel's reader back to its writer.
//
// It is a Lamport ring buffer with cached indices. The reader is the only
// producer (put) and the writer is the only consumer (get), the reverse of
// the channel's own direction. When the ring is full the chunk is left to
// the garbage collector, so at most capacity chunks are retained per channel.
type recycler[M any] struct {
	_          pad
	head       atomix.Uint64 // Writer takes from here
	_          pad
	cachedTail uint64 // Writer's cached view of tail
	_          pad
	tail       atomix.Uint64 // Reader returns chunks here
	_          pad
	cachedHead uint64 // Reader's cached view of head
	_          pad
	buffer     []*chunk[M]
	mask       uint64
}

func newRecycler[M any](capacity int) *recycler[M] {
	n := uint64(roundToPow2(capacity))
	return &recycler[M]{
		buffer: make([]*chunk[M], n),
		mask:   n - 1,
	}
}

// put offers a drained chunk for reuse (reader only).
// Returns false if the ring is full and c was discarded: the full-ring
// branch is what caps the chunks a channel retains.
func (r *recycler[M]) put(c *chunk[M]) bool {
	tail := r.tail.LoadRelaxed()
	if tail-r.cachedHead > r.mask {
		r.cachedHead = r.head.LoadAcquire()
		if tail-r.cachedHead > r.mask {
			return false
		}
	}

	r.buffer[tail&r.mask] = c
	r.tail.StoreRelease(tail + 1)
	return true
}

// get takes a recycled chunk (writer only).
// Returns nil if none is available.
func (r *recycler[M]) get() *chunk[M] {
	head := r.head.LoadRelaxed()
	if head >= r.cachedTail {
		r.cachedTail = r.tail.LoadAcquire()
		if head >= r.cachedTail {
			return nil
		}
	}

	c := r.buffer[head&r.mask]
	r.buffer[head&r.mask] = nil
	r.head.StoreRelease(head + 1)
	return c
}

// cap returns the number of chunks the ring can hold.
func (r *recycler[M]) cap() int {
	return int(r.mask + 1)
}
