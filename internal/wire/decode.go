package wire

import (
	"fmt"
	"math"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldEventID   = protowire.Number(1)
	fieldThreadID  = protowire.Number(2)
	fieldTimestamp = protowire.Number(3)

	fieldTraceStart     = protowire.Number(10)
	fieldTraceEnd       = protowire.Number(11)
	fieldFunctionCall   = protowire.Number(12)
	fieldFunctionReturn = protowire.Number(13)
	fieldSignalDelivery = protowire.Number(14)

	fieldTimestampSeconds = protowire.Number(1)
	fieldTimestampNanos   = protowire.Number(2)

	// FunctionCall.symbol and FunctionReturn.symbol both live at tag 1.
	fieldSymbol = protowire.Number(1)
	// SignalDelivery.name lives at tag 2 (tag 1 is the signal number).
	fieldSignalName = protowire.Number(2)
)

// decodeEvent parses one Event message body into a normalized
// ParsedEvent. It is byte-exact against standard protobuf wire framing:
// unknown fields and unknown oneof tags are skipped, and a
// missing payload oneof yields KindUnknown.
func decodeEvent(data []byte) (ParsedEvent, error) {
	var (
		threadID     int32
		seconds      int64
		nanos        int32
		havePayload  bool
		kind         = KindUnknown
		funcSymbol   string
		haveFuncSym  bool
		signalName   string
		haveSignal   bool
	)

	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return ParsedEvent{}, fmt.Errorf("wire: bad field tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldEventID:
			_, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return ParsedEvent{}, fmt.Errorf("wire: bad event_id: %w", protowire.ParseError(n))
			}
			b = b[n:]

		case fieldThreadID:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return ParsedEvent{}, fmt.Errorf("wire: bad thread_id: %w", protowire.ParseError(n))
			}
			threadID = int32(int64(v))
			b = b[n:]

		case fieldTimestamp:
			sub, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return ParsedEvent{}, fmt.Errorf("wire: bad timestamp: %w", protowire.ParseError(n))
			}
			s, ns, err := decodeTimestamp(sub)
			if err != nil {
				return ParsedEvent{}, err
			}
			seconds, nanos = s, ns
			b = b[n:]

		case fieldTraceStart, fieldTraceEnd, fieldFunctionCall, fieldFunctionReturn, fieldSignalDelivery:
			sub, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return ParsedEvent{}, fmt.Errorf("wire: bad payload at tag %d: %w", num, protowire.ParseError(n))
			}
			havePayload = true
			switch num {
			case fieldTraceStart:
				kind = KindTraceStart
			case fieldTraceEnd:
				kind = KindTraceEnd
			case fieldFunctionCall:
				kind = KindFunctionCall
				funcSymbol, haveFuncSym = extractString(sub, fieldSymbol)
			case fieldFunctionReturn:
				kind = KindFunctionReturn
				funcSymbol, haveFuncSym = extractString(sub, fieldSymbol)
			case fieldSignalDelivery:
				kind = KindSignalDelivery
				signalName, haveSignal = extractString(sub, fieldSignalName)
			}
			b = b[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return ParsedEvent{}, fmt.Errorf("wire: bad unknown field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if !havePayload {
		kind = KindUnknown
	}

	event := ParsedEvent{
		TimestampNs: timestampToNs(seconds, nanos),
		ThreadID:    normalizeThreadID(threadID),
		Kind:        kind,
	}
	if haveFuncSym {
		event.FunctionSymbol = normalizeSymbol(funcSymbol)
	}
	if haveSignal {
		event.SignalName = normalizeSymbol(signalName)
	}
	return event, nil
}

// decodeTimestamp parses a Timestamp submessage's seconds/nanos fields,
// skipping anything else it might contain.
func decodeTimestamp(data []byte) (seconds int64, nanos int32, err error) {
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, 0, fmt.Errorf("wire: bad timestamp tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldTimestampSeconds:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, 0, fmt.Errorf("wire: bad timestamp seconds: %w", protowire.ParseError(n))
			}
			seconds = int64(v)
			b = b[n:]
		case fieldTimestampNanos:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, 0, fmt.Errorf("wire: bad timestamp nanos: %w", protowire.ParseError(n))
			}
			nanos = int32(int64(v))
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return 0, 0, fmt.Errorf("wire: bad timestamp field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return seconds, nanos, nil
}

// extractString scans a submessage for a single string/bytes field at
// wantTag, skipping every other field. It returns ok=false if the field
// is absent so the caller can distinguish "absent" from "empty string".
func extractString(data []byte, wantTag protowire.Number) (value string, ok bool) {
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", false
		}
		b = b[n:]
		if num == wantTag && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return "", false
			}
			value, ok = string(v), true
			b = b[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return "", false
		}
		b = b[n:]
	}
	return value, ok
}

// normalizeThreadID clamps negative thread ids to 0.
func normalizeThreadID(v int32) uint32 {
	if v < 0 {
		return 0
	}
	return uint32(v)
}

// normalizeSymbol collapses a whitespace-only or empty string to nil.
func normalizeSymbol(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// timestampToNs combines seconds and nanos into a nanosecond count,
// clamping negative components to 0 and saturating on overflow so that
// malformed inputs never panic.
func timestampToNs(seconds int64, nanos int32) uint64 {
	if seconds < 0 {
		seconds = 0
	}
	if nanos < 0 {
		nanos = 0
	}
	const nsPerSec = uint64(1_000_000_000)
	sec := uint64(seconds)

	secNs, overflow := mulSaturate(sec, nsPerSec)
	if overflow {
		return math.MaxUint64
	}
	total, overflow := addSaturate(secNs, uint64(nanos))
	if overflow {
		return math.MaxUint64
	}
	return total
}

func mulSaturate(a, b uint64) (result uint64, overflow bool) {
	if a == 0 || b == 0 {
		return 0, false
	}
	result = a * b
	if result/b != a {
		return math.MaxUint64, true
	}
	return result, false
}

func addSaturate(a, b uint64) (result uint64, overflow bool) {
	result = a + b
	if result < a {
		return math.MaxUint64, true
	}
	return result, false
}
