package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// EventStream is a single-pass, lazy cursor over a length-delimited event
// buffer. It carries only its buffer and a byte offset. After any decode
// error the cursor is permanently exhausted: every subsequent call to
// Next returns (zero, false, nil), never the same error twice.
type EventStream struct {
	data []byte
	pos  int
}

// NewEventStream wraps a fully-read events.bin buffer. An empty buffer is
// a valid, immediately-exhausted stream: zero-length events.bin means
// zero events, not an error.
func NewEventStream(data []byte) *EventStream {
	return &EventStream{data: data}
}

// IsEmpty reports whether the cursor has reached the physical end of the
// buffer.
func (s *EventStream) IsEmpty() bool {
	return s.pos >= len(s.data)
}

// Next advances the cursor by one record. It returns (event, true, nil)
// on success, (zero, false, nil) once the stream is exhausted, and
// (zero, false, err) on a terminal decode error — after which the stream
// stays exhausted.
func (s *EventStream) Next() (ParsedEvent, bool, error) {
	if s.IsEmpty() {
		return ParsedEvent{}, false, nil
	}

	remaining := s.data[s.pos:]
	length, n := protowire.ConsumeVarint(remaining)
	if n < 0 {
		s.pos = len(s.data)
		return ParsedEvent{}, false, fmt.Errorf("wire: bad length prefix: %w", protowire.ParseError(n))
	}
	remaining = remaining[n:]
	if uint64(len(remaining)) < length {
		s.pos = len(s.data)
		return ParsedEvent{}, false, fmt.Errorf("wire: truncated record: need %d bytes, have %d", length, len(remaining))
	}

	payload := remaining[:length]
	event, err := decodeEvent(payload)
	if err != nil {
		s.pos = len(s.data)
		return ParsedEvent{}, false, err
	}

	s.pos = len(s.data) - len(remaining) + int(length)
	return event, true, nil
}

// All drains the stream into a slice, stopping at the first error.
func (s *EventStream) All() ([]ParsedEvent, error) {
	var events []ParsedEvent
	for {
		event, ok, err := s.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return events, nil
		}
		events = append(events, event)
	}
}
