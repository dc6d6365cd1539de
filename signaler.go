// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fabric

import (
	"context"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
	"golang.org/x/sync/semaphore"
)

// waitSignal is the sentinel bit. The consumer sets it when it is about to
// sleep; the first Signal that clears it owes the consumer one wakeup.
const waitSignal = 63

const waitBit = uint64(1) << waitSignal

// Signaler is a readiness bitmap with a wakeup primitive.
//
// Any number of producers may call Signal concurrently. Poll, PollContext
// and Check must only be called by the single goroutine that owns the
// Signaler.
//
// The semaphore holds no permits at rest. A permit is released only by
// the Signal that clears the sentinel bit, and the sentinel is only set by
// a consumer that then waits for that permit, so at most one permit is
// ever outstanding.
type Signaler struct {
	_    pad
	bits atomix.Uint64
	_    padShort
	sem  *semaphore.Weighted
}

// NewSignaler creates a Signaler with an empty bitmap.
func NewSignaler() *Signaler {
	sem := semaphore.NewWeighted(1)
	sem.TryAcquire(1)
	return &Signaler{sem: sem}
}

// Signal marks source as ready and wakes the owner if it is asleep.
//
// Panics if source is outside [0, MaxContexts).
func (s *Signaler) Signal(source int) {
	if source < 0 || source >= MaxContexts {
		panic("fabric: signal source out of range")
	}
	if s.setClear(uint64(1)<<source, waitBit) {
		s.sem.Release(1)
	}
}

// Poll returns the set of ready sources, blocking until there is at least
// one. The returned bitmap is cleared in the Signaler.
func (s *Signaler) Poll() uint64 {
	for {
		if bits := s.sleepIfEmpty(); bits != 0 {
			return bits
		}
		_ = s.sem.Acquire(context.Background(), 1)
		if bits := s.swapZero(); bits != 0 {
			return bits
		}
	}
}

// PollContext is like Poll but gives up when ctx is done.
//
// A wakeup that races with cancellation is never lost: if a producer has
// already claimed the sentinel, PollContext consumes its permit and
// returns the ready set instead of ctx.Err().
func (s *Signaler) PollContext(ctx context.Context) (uint64, error) {
	for {
		if bits := s.sleepIfEmpty(); bits != 0 {
			return bits, nil
		}
		if err := s.sem.Acquire(ctx, 1); err != nil {
			if s.bits.CompareAndSwapAcqRel(waitBit, 0) {
				return 0, err
			}
			// A producer cleared the sentinel and its Release is due.
			_ = s.sem.Acquire(context.Background(), 1)
		}
		if bits := s.swapZero(); bits != 0 {
			return bits, nil
		}
	}
}

// Check returns and clears the set of ready sources without blocking.
// Returns zero if none is ready.
func (s *Signaler) Check() uint64 {
	return s.swapZero()
}

// setClear atomically sets the bits in set, clears the bits in clear, and
// reports whether any bit of clear was previously set.
func (s *Signaler) setClear(set, clear uint64) bool {
	sw := spin.Wait{}
	for {
		old := s.bits.LoadAcquire()
		if s.bits.CompareAndSwapAcqRel(old, (old|set)&^clear) {
			return old&clear != 0
		}
		sw.Once()
	}
}

// sleepIfEmpty publishes the sentinel if the bitmap is empty and returns
// zero. Otherwise it clears the bitmap and returns its previous value.
func (s *Signaler) sleepIfEmpty() uint64 {
	sw := spin.Wait{}
	for {
		old := s.bits.LoadAcquire()
		next := uint64(0)
		if old == 0 {
			next = waitBit
		}
		if s.bits.CompareAndSwapAcqRel(old, next) {
			return old
		}
		sw.Once()
	}
}

// swapZero clears the bitmap and returns its previous value.
func (s *Signaler) swapZero() uint64 {
	sw := spin.Wait{}
	for {
		old := s.bits.LoadAcquire()
		if old == 0 {
			return 0
		}
		if s.bits.CompareAndSwapAcqRel(old, 0) {
			return old
		}
		sw.Once()
	}
}
