package textualshared

import (
	"unicode"
	"unicode/utf8"
)

// --------------------------
// Stream aggregation helpers
// --------------------------

// StreamAggregator buffers streamed bytes and emits "complete" segments
// according to AggregateType.
//
// # IMPORTANT STREAMING SEMANTICS
//
// StreamAggregator emits *incremental* segments only (deltas), not the full
// accumulated buffer. The buffer is byte oriented: a multi-byte UTF-8 sequence
// split across two Append calls stays in the buffer until it is complete, so
// segments never carry a broken rune.
type StreamAggregator struct {
	aggType AggregateType
	buffer  []byte
	// scanned is the buffer offset already inspected for delimiters.
	scanned int
}

// NewStreamAggregator constructs a StreamAggregator.
// Unknown aggType values fall back to Word.
func NewStreamAggregator(aggType AggregateType) *StreamAggregator {
	switch aggType {
	case Word, Line:
		// ok
	default:
		aggType = Word
	}
	return &StreamAggregator{
		aggType: aggType,
		buffer:  make([]byte, 0, 256),
	}
}

// Type returns the effective aggregation strategy.
func (a *StreamAggregator) Type() AggregateType {
	return a.aggType
}

// Append adds a new streamed chunk and returns zero or more complete segments,
// depending on the aggregation strategy. The delimiter is included at the end
// of every emitted segment.
func (a *StreamAggregator) Append(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	a.buffer = append(a.buffer, chunk...)

	switch a.aggType {
	case Line:
		return a.collectByDelimiter(func(r rune) bool { return r == '\n' })
	default:
		return a.collectByDelimiter(isWordBoundaryRune)
	}
}

// Pending returns the number of buffered bytes not emitted yet.
func (a *StreamAggregator) Pending() int {
	return len(a.buffer)
}

// Final flushes any remaining buffered data when the stream ends.
func (a *StreamAggregator) Final() []string {
	if len(a.buffer) == 0 {
		return nil
	}
	out := []string{string(a.buffer)}
	a.buffer = a.buffer[:0]
	a.scanned = 0
	return out
}

// Discard drops the buffered remainder and returns how many bytes were lost.
// It is the stream-end counterpart of Final for callers that must not act on
// incomplete data.
func (a *StreamAggregator) Discard() int {
	n := len(a.buffer)
	a.buffer = a.buffer[:0]
	a.scanned = 0
	return n
}

// collectByDelimiter emits incremental segments ending at each delimiter rune.
// The delimiter rune is included in the emitted segment.
func (a *StreamAggregator) collectByDelimiter(delim func(rune) bool) []string {
	if len(a.buffer) == 0 {
		return nil
	}

	var out []string
	start := 0
	i := a.scanned

	for i < len(a.buffer) {
		// Incomplete trailing rune: wait for the next chunk.
		if !utf8.FullRune(a.buffer[i:]) {
			break
		}
		r, size := utf8.DecodeRune(a.buffer[i:])
		i += size
		if delim(r) {
			out = append(out, string(a.buffer[start:i]))
			start = i
		}
	}

	// Keep the tail (partial segment) in the buffer.
	if start > 0 {
		a.buffer = append(a.buffer[:0], a.buffer[start:]...)
	}
	a.scanned = i - start
	return out
}

func isWordBoundaryRune(r rune) bool {
	if unicode.IsSpace(r) {
		return true
	}
	switch r {
	case '.', ',', ';', ':', '!', '?', '…', '»', '«':
		return true
	default:
		return false
	}
}
