// Package wire decodes the length-delimited binary event log produced by
// the tracer into typed ParsedEvent values.
package wire

// EventKind tags the variant a ParsedEvent carries, mirroring the oneof in
// the wire schema plus Unknown for a missing or unrecognized payload.
type EventKind int

const (
	KindTraceStart EventKind = iota
	KindTraceEnd
	KindFunctionCall
	KindFunctionReturn
	KindSignalDelivery
	KindUnknown
)

// String renders the kind the way it appears in a response's eventType
// field.
func (k EventKind) String() string {
	switch k {
	case KindTraceStart:
		return "TraceStart"
	case KindTraceEnd:
		return "TraceEnd"
	case KindFunctionCall:
		return "FunctionCall"
	case KindFunctionReturn:
		return "FunctionReturn"
	case KindSignalDelivery:
		return "SignalDelivery"
	default:
		return "Unknown"
	}
}

// FilterTag renders the kind the way it appears in an eventTypes filter:
// lowerCamelCase, distinct from the String() form used in responses.
func (k EventKind) FilterTag() string {
	switch k {
	case KindTraceStart:
		return "traceStart"
	case KindTraceEnd:
		return "traceEnd"
	case KindFunctionCall:
		return "functionCall"
	case KindFunctionReturn:
		return "functionReturn"
	case KindSignalDelivery:
		return "signalDelivery"
	default:
		return "unknown"
	}
}

// ParsedEvent is a normalized, domain-level view of one wire record.
type ParsedEvent struct {
	TimestampNs uint64
	ThreadID    uint32
	Kind        EventKind

	// FunctionSymbol holds the normalized symbol for FunctionCall and
	// FunctionReturn events; it is nil for every other kind and for a
	// whitespace-only or empty symbol on the wire.
	FunctionSymbol *string

	// SignalName holds the normalized signal name for SignalDelivery
	// events; nil otherwise.
	SignalName *string
}

// FunctionSymbolOrNil returns the symbol used by function-name filters
// and projections: the call/return symbol for those two kinds, nil for
// everything else. Signal names are a distinct concept and are never
// matched by a functionNames filter.
func (e ParsedEvent) FunctionSymbolOrNil() *string {
	switch e.Kind {
	case KindFunctionCall, KindFunctionReturn:
		return e.FunctionSymbol
	default:
		return nil
	}
}
