// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fabric

const (
	// MaxContexts is the hard upper bound on context ids.
	// Bit 63 of each Signaler bitmap is reserved for the wait sentinel,
	// leaving 63 readiness bits.
	MaxContexts = 63

	// DefaultChunkSize is the number of message slots per channel chunk.
	DefaultChunkSize = 256

	// DefaultSpareChunks is the capacity of each channel's chunk recycler.
	DefaultSpareChunks = 2
)

// Options configures registry creation.
type Options struct {
	contexts    int
	chunkSize   int
	spareChunks int
	logger      *Logger
}

// Builder creates registries with fluent configuration.
//
// Example:
//
//	// 8 participants, 64 slots per channel chunk
//	r := fabric.Build[Event](fabric.New(8).ChunkSize(64))
//
//	// With structured logging
//	r := fabric.Build[Event](fabric.New(8).Logger(logger))
type Builder struct {
	opts Options
}

// New creates a registry builder for the given number of context ids.
//
// Panics if contexts < 1 or contexts > MaxContexts.
func New(contexts int) *Builder {
	if contexts < 1 {
		panic("fabric: contexts must be >= 1")
	}
	if contexts > MaxContexts {
		panic("fabric: contexts must be <= MaxContexts")
	}
	return &Builder{opts: Options{
		contexts:    contexts,
		chunkSize:   DefaultChunkSize,
		spareChunks: DefaultSpareChunks,
	}}
}

// ChunkSize sets the number of slots per channel chunk.
// Larger chunks allocate less often and waste more memory per channel.
//
// Panics if n is not a positive power of 2.
func (b *Builder) ChunkSize(n int) *Builder {
	if n < 1 || n&(n-1) != 0 {
		panic("fabric: chunk size must be a positive power of 2")
	}
	b.opts.chunkSize = n
	return b
}

// SpareChunks sets how many drained chunks each channel keeps for reuse.
// Rounds up to the next power of 2.
//
// Panics if n < 1.
func (b *Builder) SpareChunks(n int) *Builder {
	if n < 1 {
		panic("fabric: spare chunks must be >= 1")
	}
	b.opts.spareChunks = roundToPow2(n)
	return b
}

// Logger sets the structured logger used for lifecycle events.
// A nil logger disables logging.
func (b *Builder) Logger(l *Logger) *Builder {
	b.opts.logger = l
	return b
}

// Build creates a Registry for messages of type M.
//
// Every ordered (source, destination) channel is allocated up front:
// contexts² channels, each starting with one chunk.
func Build[M any](b *Builder) *Registry[M] {
	return newRegistry[M](b.opts)
}

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// pad is cache line padding to prevent false sharing.
type pad [64]byte

// padShort is padding to fill cache line after 8-byte field.
type padShort [64 - 8]byte
