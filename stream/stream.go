// Package stream provides the bounded producer/consumer conduit that
// carries response data from engine callbacks to user handlers.
//
// A [Channel] is written by exactly one producer (the engine callback
// for a single transfer) and drained by exactly one consumer. Events
// are delivered in publication order and terminate with an explicit
// [KindEndOfStream] sentinel, so a consumer always observes completion
// even when a transfer delivers zero chunks.
package stream

import "sync"

// Kind discriminates the event union carried on a Channel.
type Kind int

const (
	// KindData carries a chunk of response body bytes.
	KindData Kind = iota
	// KindHeaderLine carries one decoded response header line.
	KindHeaderLine
	// KindEndOfStream signals that no further events follow.
	KindEndOfStream
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindHeaderLine:
		return "header-line"
	case KindEndOfStream:
		return "end-of-stream"
	default:
		return "unknown"
	}
}

// Event is one item on a Channel. Data is set for KindData, Line for
// KindHeaderLine; both are zero for the sentinel.
type Event struct {
	Kind Kind
	Data []byte
	Line string
}

// DataHandler consumes one chunk of response body bytes.
type DataHandler func(chunk []byte)

// LineHandler consumes one decoded response header line.
type LineHandler func(line string)

// DefaultBuffer is the channel capacity used when none is given. A full
// channel blocks the publishing engine callback, which stalls the
// transfer; that backpressure is the intended flow control.
const DefaultBuffer = 16

// Channel is a bounded, ordered conduit between an engine callback and
// a consumer. It must not be reused across requests: once the sentinel
// has been published the channel is spent.
type Channel struct {
	ch  chan Event
	end sync.Once
}

// NewChannel returns a Channel with the given buffer capacity,
// falling back to DefaultBuffer when size is not positive.
func NewChannel(size int) *Channel {
	if size <= 0 {
		size = DefaultBuffer
	}

	return &Channel{ch: make(chan Event, size)}
}

// PublishData copies chunk and publishes it. The copy means the caller
// is free to reuse or release its buffer the moment this returns.
// Blocks while the channel is full.
func (c *Channel) PublishData(chunk []byte) {
	cp := make([]byte, len(chunk))
	copy(cp, chunk)

	c.ch <- Event{Kind: KindData, Data: cp}
}

// PublishLine publishes one header line. Blocks while the channel is full.
func (c *Channel) PublishLine(line string) {
	c.ch <- Event{Kind: KindHeaderLine, Line: line}
}

// End publishes the end-of-stream sentinel. It is idempotent, so a
// header-terminator translation and a completion-time publication
// cannot double-terminate the same channel.
func (c *Channel) End() {
	c.end.Do(func() {
		c.ch <- Event{Kind: KindEndOfStream}
	})
}

// Events exposes the consumer side of the channel.
func (c *Channel) Events() <-chan Event {
	return c.ch
}

// Consume drains c on the calling goroutine, invoking the matching
// handler once per non-sentinel event, and returns when the sentinel
// arrives. A nil handler drops events of that kind. Handler panics are
// not recovered here.
func Consume(c *Channel, onData DataHandler, onLine LineHandler) {
	for ev := range c.ch {
		switch ev.Kind {
		case KindData:
			if onData != nil {
				onData(ev.Data)
			}
		case KindHeaderLine:
			if onLine != nil {
				onLine(ev.Line)
			}
		case KindEndOfStream:
			return
		}
	}
}
