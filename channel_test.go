// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fabric_test

import (
	"errors"
	"sync"
	"testing"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/fabric"
	"code.hybscloud.com/iox"
)

// =============================================================================
// Channel - Basic Operations
// =============================================================================

// TestChannelBasic tests write, flush and read on a single goroutine,
// including the idle handshake reported by Flush.
func TestChannelBasic(t *testing.T) {
	w, r := fabric.NewChannel[int](4)

	if _, err := r.Read(); !errors.Is(err, fabric.ErrWouldBlock) {
		t.Fatalf("Read on empty: got %v, want ErrWouldBlock", err)
	}

	// Written but not flushed: invisible
	w.Write(1, false)
	if _, err := r.Read(); !errors.Is(err, fabric.ErrWouldBlock) {
		t.Fatalf("Read before Flush: got %v, want ErrWouldBlock", err)
	}

	// A new channel starts idle, so the first flush asks for a wakeup
	if w.Flush() {
		t.Fatalf("first Flush: got true, want false (reader idle)")
	}
	if v, err := r.Read(); err != nil || v != 1 {
		t.Fatalf("Read: got (%d, %v), want (1, nil)", v, err)
	}

	// Reader found nothing and went idle
	if _, err := r.Read(); !errors.Is(err, fabric.ErrWouldBlock) {
		t.Fatalf("Read on drained: got %v, want ErrWouldBlock", err)
	}

	w.Write(2, false)
	w.Write(3, false)
	if w.Flush() {
		t.Fatalf("Flush after idle reader: got true, want false")
	}
	if v, err := r.Read(); err != nil || v != 2 {
		t.Fatalf("Read: got (%d, %v), want (2, nil)", v, err)
	}

	// Reader is active (has not seen the channel empty): no wakeup needed
	w.Write(4, false)
	if !w.Flush() {
		t.Fatalf("Flush with active reader: got false, want true")
	}
	for _, want := range []int{3, 4} {
		v, err := r.Read()
		if err != nil || v != want {
			t.Fatalf("Read: got (%d, %v), want (%d, nil)", v, err, want)
		}
	}

	// Nothing new to publish
	if !w.Flush() {
		t.Fatalf("empty Flush: got false, want true")
	}
}

// TestChannelChunkSizeValidation tests that NewChannel rejects sizes that
// are not positive powers of 2.
func TestChannelChunkSizeValidation(t *testing.T) {
	for _, size := range []int{0, -1, 3, 6, 100} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("NewChannel(%d): expected panic", size)
				}
			}()
			fabric.NewChannel[int](size)
		}()
	}

	// Power-of-2 sizes, including 1, are accepted
	for _, size := range []int{1, 2, 64} {
		fabric.NewChannel[int](size)
	}
}

// TestChannelFIFOAcrossChunks tests FIFO order over many chunk boundaries.
func TestChannelFIFOAcrossChunks(t *testing.T) {
	for _, size := range []int{1, 2, 8} {
		w, r := fabric.NewChannel[int](size)

		for i := range 100 {
			w.Write(i, false)
		}
		w.Flush()

		for i := range 100 {
			v, err := r.Read()
			if err != nil {
				t.Fatalf("size %d: Read(%d): %v", size, i, err)
			}
			if v != i {
				t.Fatalf("size %d: Read(%d): got %d", size, i, v)
			}
		}
		if _, err := r.Read(); !errors.Is(err, fabric.ErrWouldBlock) {
			t.Fatalf("size %d: Read on drained: got %v", size, err)
		}
	}
}

// TestChannelInterleaved tests alternating write and read rounds so chunks
// are recycled while the channel stays in use.
func TestChannelInterleaved(t *testing.T) {
	w, r := fabric.NewChannel[int](4)

	next := 0
	want := 0
	for round := range 50 {
		n := round%7 + 1
		for range n {
			w.Write(next, false)
			next++
		}
		w.Flush()
		for range n {
			v, err := r.Read()
			if err != nil {
				t.Fatalf("round %d: Read: %v", round, err)
			}
			if v != want {
				t.Fatalf("round %d: got %d, want %d", round, v, want)
			}
			want++
		}
	}
}

// =============================================================================
// Channel - Incomplete Writes
// =============================================================================

// TestChannelIncompleteBatch tests that incomplete writes are not published
// until a complete write follows.
func TestChannelIncompleteBatch(t *testing.T) {
	w, r := fabric.NewChannel[string](2)

	w.Write("a", true)
	w.Write("b", true)

	// Nothing complete: Flush has nothing to publish
	if !w.Flush() {
		t.Fatalf("Flush with only incomplete writes: got false, want true")
	}
	if r.CheckAvailable() {
		t.Fatalf("CheckAvailable: partial batch visible")
	}

	if got := w.Pending(); got != 2 {
		t.Fatalf("Pending: got %d, want 2", got)
	}

	w.Write("c", false)
	if got := w.Pending(); got != 3 {
		t.Fatalf("Pending: got %d, want 3", got)
	}
	if w.Flush() {
		t.Fatalf("Flush: got true, want false (reader idle)")
	}
	if got := w.Pending(); got != 0 {
		t.Fatalf("Pending after Flush: got %d, want 0", got)
	}
	if !r.CheckAvailable() {
		t.Fatalf("CheckAvailable: complete batch not visible")
	}

	for _, want := range []string{"a", "b", "c"} {
		v, err := r.Read()
		if err != nil || v != want {
			t.Fatalf("Read: got (%q, %v), want (%q, nil)", v, err, want)
		}
	}
}

// TestChannelUnwrite tests rolling back incomplete writes.
func TestChannelUnwrite(t *testing.T) {
	w, r := fabric.NewChannel[int](4)

	if _, ok := w.Unwrite(); ok {
		t.Fatalf("Unwrite on empty: got true")
	}

	w.Write(1, false)
	if _, ok := w.Unwrite(); ok {
		t.Fatalf("Unwrite of complete write: got true")
	}

	w.Write(2, true)
	w.Write(3, true)
	if v, ok := w.Unwrite(); !ok || v != 3 {
		t.Fatalf("Unwrite: got (%d, %v), want (3, true)", v, ok)
	}
	if v, ok := w.Unwrite(); !ok || v != 2 {
		t.Fatalf("Unwrite: got (%d, %v), want (2, true)", v, ok)
	}
	if _, ok := w.Unwrite(); ok {
		t.Fatalf("Unwrite past complete write: got true")
	}

	w.Write(4, false)
	w.Flush()
	for _, want := range []int{1, 4} {
		v, err := r.Read()
		if err != nil || v != want {
			t.Fatalf("Read: got (%d, %v), want (%d, nil)", v, err, want)
		}
	}
	if _, err := r.Read(); !errors.Is(err, fabric.ErrWouldBlock) {
		t.Fatalf("Read on drained: got %v", err)
	}
}

// TestChannelUnwriteAcrossChunk tests rolling back over a chunk boundary
// and continuing to write afterwards.
func TestChannelUnwriteAcrossChunk(t *testing.T) {
	w, r := fabric.NewChannel[int](2)

	w.Write(1, false)
	w.Write(2, true) // fills the first chunk
	w.Write(3, true) // starts the second chunk

	for _, want := range []int{3, 2} {
		v, ok := w.Unwrite()
		if !ok || v != want {
			t.Fatalf("Unwrite: got (%d, %v), want (%d, true)", v, ok, want)
		}
	}

	for _, v := range []int{5, 6, 7, 8} {
		w.Write(v, false)
	}
	w.Flush()

	for _, want := range []int{1, 5, 6, 7, 8} {
		v, err := r.Read()
		if err != nil || v != want {
			t.Fatalf("Read: got (%d, %v), want (%d, nil)", v, err, want)
		}
	}
}

// =============================================================================
// Channel - Concurrent Tests (1 Writer, 1 Reader)
// =============================================================================

// TestChannelRoundTrip writes 1..N from one goroutine while another drains,
// and verifies every value arrives exactly once, in order.
func TestChannelRoundTrip(t *testing.T) {
	if fabric.RaceEnabled {
		t.Skip("skip: channel uses cross-variable memory ordering")
	}

	const itemCount = 10000
	w, r := fabric.NewChannel[int](16)

	var wg sync.WaitGroup
	var consumerErr error
	var consumed atomix.Int64

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= itemCount; i++ {
			w.Write(i, false)
			w.Flush()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		backoff := iox.Backoff{}
		expected := 1
		for expected <= itemCount {
			v, err := r.Read()
			if err != nil {
				backoff.Wait()
				continue
			}
			backoff.Reset()
			if v != expected {
				consumerErr = errors.New("FIFO violation")
				return
			}
			expected++
			consumed.Add(1)
		}
	}()

	wg.Wait()

	if consumerErr != nil {
		t.Fatalf("consumer error: %v", consumerErr)
	}
	if got := consumed.Load(); got != itemCount {
		t.Fatalf("consumed %d, want %d", got, itemCount)
	}
}

// TestChannelConcurrentBatches tests that a reader racing with a writer
// only ever observes whole batches.
func TestChannelConcurrentBatches(t *testing.T) {
	if fabric.RaceEnabled {
		t.Skip("skip: channel uses cross-variable memory ordering")
	}

	const (
		batches   = 5000
		batchSize = 3
	)
	w, r := fabric.NewChannel[int](4)

	var wg sync.WaitGroup
	var consumerErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		for b := range batches {
			for i := range batchSize {
				w.Write(b*batchSize+i, i < batchSize-1)
			}
			w.Flush()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		backoff := iox.Backoff{}
		expected := 0
		for expected < batches*batchSize {
			// Batch boundary: either the whole batch is visible or none of it
			if !r.CheckAvailable() {
				backoff.Wait()
				continue
			}
			backoff.Reset()
			for range batchSize {
				v, err := r.Read()
				if err != nil {
					consumerErr = errors.New("partial batch observed")
					return
				}
				if v != expected {
					consumerErr = errors.New("FIFO violation")
					return
				}
				expected++
			}
		}
	}()

	wg.Wait()

	if consumerErr != nil {
		t.Fatalf("consumer error: %v", consumerErr)
	}
}
