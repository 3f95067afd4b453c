// Package spans rebuilds per-thread call stacks from a parsed event
// sequence and emits completed call/return spans.
package spans

import "github.com/matgreaves/tracequeryd/internal/wire"

// Span is a derived record representing one matched call/return pair on
// one thread. Spans are never stored; they are reconstructed per query.
type Span struct {
	SpanID       string
	FunctionName *string
	StartNs      uint64
	EndNs        uint64
	DurationNs   uint64
	ThreadID     uint32
	Depth        int
	ChildCount   int
}

type activeFrame struct {
	functionName *string
	startNs      uint64
	depth        int
	childCount   int
	seq          uint64
}

// Reconstruct runs a per-thread call-stack machine over a parsed event
// sequence and returns completed spans in completion order
// (the order their closing FunctionReturn was observed). Callers that
// need a specific sort order apply it themselves; the reconstructor
// imposes none.
func Reconstruct(events []wire.ParsedEvent) []Span {
	stacks := make(map[uint32][]activeFrame)
	var seq uint64
	var out []Span

	for _, event := range events {
		switch event.Kind {
		case wire.KindFunctionCall:
			stack := stacks[event.ThreadID]
			seq++
			stack = append(stack, activeFrame{
				functionName: event.FunctionSymbol,
				startNs:      event.TimestampNs,
				depth:        len(stack),
				seq:          seq,
			})
			stacks[event.ThreadID] = stack

		case wire.KindFunctionReturn:
			stack := stacks[event.ThreadID]
			if len(stack) == 0 {
				// Orphan return: thread began mid-trace. Dropped silently.
				continue
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			stacks[event.ThreadID] = stack

			endNs := event.TimestampNs
			if endNs < top.startNs {
				endNs = top.startNs
			}
			out = append(out, Span{
				SpanID:       formatSpanID(event.ThreadID, top.startNs, top.seq),
				FunctionName: top.functionName,
				StartNs:      top.startNs,
				EndNs:        endNs,
				DurationNs:   endNs - top.startNs,
				ThreadID:     event.ThreadID,
				Depth:        top.depth,
				ChildCount:   top.childCount,
			})

			if len(stack) > 0 {
				parent := &stack[len(stack)-1]
				if parent.childCount < int(^uint(0)>>1) {
					parent.childCount++
				}
			}

		default:
			// TraceStart, TraceEnd, SignalDelivery, Unknown: no state change.
		}
	}

	return out
}
