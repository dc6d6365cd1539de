// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fabric

// Writer is the producer side of a single channel.
//
// Writer is implemented by [ChannelWriter]. Exactly one goroutine may use
// a given Writer.
type Writer[M any] interface {
	// Write appends msg to the channel without publishing it.
	// If incomplete is false the message, together with every preceding
	// incomplete message, becomes eligible for the next Flush.
	Write(msg M, incomplete bool)

	// Unwrite removes the most recent message that is not yet eligible
	// for Flush. Returns false if there is none.
	Unwrite() (M, bool)

	// Flush publishes every complete message to the reader.
	// Returns false if the reader had gone idle and must be woken
	// by the caller.
	Flush() bool
}

// Reader is the consumer side of a single channel.
//
// Reader is implemented by [ChannelReader]. Exactly one goroutine may use
// a given Reader.
type Reader[M any] interface {
	// CheckAvailable reports whether a published message is ready.
	// A false result leaves the reader idle: the writer's next Flush
	// returns false.
	CheckAvailable() bool

	// Read removes and returns the oldest published message.
	// Returns (zero-value, ErrWouldBlock) if none is available.
	Read() (M, error)
}

var (
	_ Writer[int] = (*ChannelWriter[int])(nil)
	_ Reader[int] = (*ChannelReader[int])(nil)
)
