// Package stream turns a chunked text/event-stream body from the assistant
// backend into an ordered event sequence and a running final answer.
package stream

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	apiTypes "github.com/nikhildhole/mermaid-visualizer/pkg/api"
)

var (
	// ErrStreamFailed marks every terminal stream failure.
	ErrStreamFailed = errors.New("stream failed")
	ErrNoBody       = fmt.Errorf("%w: response has no body", ErrStreamFailed)
)

const (
	dataPrefix       = "data: "
	defaultChunkSize = 32 * 1024
	// defaultMaxLineSize bounds a line carried over between chunks.
	defaultMaxLineSize = 4 * 1024 * 1024
)

// Framing selects how lines that straddle two reads are handled.
type Framing int

const (
	// FramingCarryOver keeps an unterminated trailing line and prepends it
	// to the next chunk.
	FramingCarryOver Framing = iota
	// FramingPerChunk splits every chunk on its own. A frame cut by a chunk
	// boundary fails to parse and is dropped.
	FramingPerChunk
)

// Snapshot is what the sink sees after each chunk.
type Snapshot struct {
	Answer string
	Events []Event
}

// SnapshotFunc receives a snapshot after every processed chunk. The Events
// slice is a copy owned by the callee.
type SnapshotFunc func(Snapshot)

type Aggregator struct {
	framing     Framing
	chunkSize   int
	maxLineSize int

	buf []byte
	// skipping is set once the carried line outgrew maxLineSize; the rest
	// of that line up to the next newline is discarded.
	skipping bool
	events   []Event
	answer   string
}

type Option func(*Aggregator)

func WithFraming(f Framing) Option {
	return func(a *Aggregator) { a.framing = f }
}

// WithChunkSize bounds a single read from the stream.
func WithChunkSize(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.chunkSize = n
		}
	}
}

// WithMaxLineSize bounds the unterminated line kept under FramingCarryOver.
// A longer line is dropped like any other malformed frame.
func WithMaxLineSize(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxLineSize = n
		}
	}
}

func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{chunkSize: defaultChunkSize, maxLineSize: defaultMaxLineSize}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate reads r until EOF. Any read error is returned once, wrapped in
// ErrStreamFailed, together with the snapshot reached so far.
func (a *Aggregator) Aggregate(r io.Reader, sink SnapshotFunc) (Snapshot, error) {
	if r == nil {
		return Snapshot{}, ErrNoBody
	}
	defer func() { a.buf, a.skipping = nil, false }()

	chunk := make([]byte, a.chunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			a.Feed(chunk[:n])
			if sink != nil {
				sink(a.Snapshot())
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return a.Snapshot(), fmt.Errorf("%w: %v", ErrStreamFailed, err)
		}
	}

	if a.Flush() && sink != nil {
		sink(a.Snapshot())
	}
	return a.Snapshot(), nil
}

// Feed processes one chunk and reports how many events it completed.
func (a *Aggregator) Feed(chunk []byte) int {
	before := len(a.events)

	if a.framing == FramingPerChunk {
		for _, line := range bytes.Split(chunk, []byte("\n")) {
			a.processLine(line)
		}
		return len(a.events) - before
	}

	a.buf = append(a.buf, chunk...)
	for {
		i := bytes.IndexByte(a.buf, '\n')
		if i < 0 {
			break
		}
		if a.skipping {
			a.skipping = false
		} else {
			a.processLine(a.buf[:i])
		}
		a.buf = a.buf[i+1:]
	}
	if len(a.buf) > a.maxLineSize {
		a.buf = nil
		a.skipping = true
	}
	return len(a.events) - before
}

// Flush processes an unterminated final line left in the buffer and
// clears it. It reports whether that produced an event.
func (a *Aggregator) Flush() bool {
	if a.skipping {
		a.buf, a.skipping = nil, false
		return false
	}
	if len(a.buf) == 0 {
		return false
	}
	before := len(a.events)
	a.processLine(a.buf)
	a.buf = nil
	return len(a.events) > before
}

func (a *Aggregator) processLine(line []byte) {
	line = bytes.TrimSuffix(line, []byte("\r"))
	payload, ok := bytes.CutPrefix(line, []byte(dataPrefix))
	if !ok {
		return
	}
	ev, err := ParseEvent(payload)
	if err != nil {
		return
	}
	a.events = append(a.events, ev)
	if ev.Type == apiTypes.EventTypeAgentComplete {
		if result := ev.Result(); result != "" {
			a.answer = result
		}
	}
}

func (a *Aggregator) Snapshot() Snapshot {
	events := make([]Event, len(a.events))
	copy(events, a.events)
	return Snapshot{Answer: a.answer, Events: events}
}
