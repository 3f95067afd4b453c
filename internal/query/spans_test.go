package query_test

import (
	"encoding/json"
	"testing"

	"github.com/matgreaves/tracequeryd/internal/query"
	"github.com/matgreaves/tracequeryd/internal/rpcerr"
	"github.com/matgreaves/tracequeryd/internal/spans"
)

func s1Spans() []spans.Span {
	foo := "foo"
	bar := "bar"
	return []spans.Span{
		{SpanID: "1:100:1", FunctionName: &foo, StartNs: 100, EndNs: 400, DurationNs: 300, ThreadID: 1, Depth: 0, ChildCount: 1},
		{SpanID: "1:250:2", FunctionName: &bar, StartNs: 250, EndNs: 300, DurationNs: 50, ThreadID: 1, Depth: 1, ChildCount: 0},
	}
}

func TestRunSpansList_IncludeChildrenFalse(t *testing.T) {
	// S2: spans.list{include_children:false} over S1 input returns only foo.
	params := query.SpansListParams{
		TraceID: "t", Limit: 1000,
		IncludeChildren: false,
		ProjectSpanID: true, ProjectFunctionName: true, ProjectStartTime: true, ProjectEndTime: true, ProjectDuration: true,
	}
	resp := query.RunSpansList(params, s1Spans())
	if len(resp.Spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(resp.Spans))
	}
	if *resp.Spans[0].FunctionName != "foo" {
		t.Errorf("FunctionName = %q, want foo", *resp.Spans[0].FunctionName)
	}
}

func TestRunSpansList_FullyContainedTimeWindow(t *testing.T) {
	// S4: {timeStartNs:250, timeEndNs:300} returns only bar (fully contained).
	start := uint64(250)
	end := uint64(300)
	params := query.SpansListParams{
		TraceID: "t", Limit: 1000,
		TimeStartNs: &start, TimeEndNs: &end,
		IncludeChildren: true,
		ProjectSpanID: true, ProjectFunctionName: true,
	}
	resp := query.RunSpansList(params, s1Spans())
	if len(resp.Spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(resp.Spans))
	}
	if *resp.Spans[0].FunctionName != "bar" {
		t.Errorf("FunctionName = %q, want bar", *resp.Spans[0].FunctionName)
	}
}

func TestRunSpansList_FixedSortOrder(t *testing.T) {
	a := "a"
	b := "b"
	c := "c"
	unsorted := []spans.Span{
		{SpanID: "2:50:3", FunctionName: &c, StartNs: 50, ThreadID: 2},
		{SpanID: "1:10:1", FunctionName: &a, StartNs: 10, ThreadID: 1},
		{SpanID: "1:10:2", FunctionName: &b, StartNs: 10, ThreadID: 1},
	}
	resp := query.RunSpansList(query.SpansListParams{TraceID: "t", Limit: 1000, IncludeChildren: true, ProjectSpanID: true}, unsorted)
	if len(resp.Spans) != 3 {
		t.Fatalf("got %d spans, want 3", len(resp.Spans))
	}
	want := []string{"1:10:1", "1:10:2", "2:50:3"}
	for i, w := range want {
		if *resp.Spans[i].SpanID != w {
			t.Errorf("position %d: got %s, want %s", i, *resp.Spans[i].SpanID, w)
		}
	}
}

func TestValidateSpansListParams_DepthRange(t *testing.T) {
	min, max := 5, 2
	err := query.ValidateSpansListParams(query.SpansListParams{TraceID: "t", Limit: 10, MinDepth: &min, MaxDepth: &max})
	if err == nil {
		t.Fatal("expected an error when minDepth > maxDepth")
	}
}

func TestParseSpansListParams_IncludeChildrenIsTopLevel(t *testing.T) {
	// S2 issues includeChildren at the top level, not under filters.
	raw := json.RawMessage(`{"traceId":"t","includeChildren":false}`)
	params, rerr := query.ParseSpansListParams(raw)
	if rerr != nil {
		t.Fatalf("ParseSpansListParams: %v", rerr)
	}
	if params.IncludeChildren {
		t.Fatal("top-level includeChildren:false must be honored")
	}

	resp := query.RunSpansList(params, s1Spans())
	if len(resp.Spans) != 1 || *resp.Spans[0].FunctionName != "foo" {
		t.Fatalf("got %+v, want only foo", resp.Spans)
	}
}

func TestParseSpansListParams_TrimsTraceID(t *testing.T) {
	raw := json.RawMessage(`{"traceId":"  t  "}`)
	params, rerr := query.ParseSpansListParams(raw)
	if rerr != nil {
		t.Fatalf("ParseSpansListParams: %v", rerr)
	}
	if params.TraceID != "t" {
		t.Errorf("traceId = %q, want trimmed %q", params.TraceID, "t")
	}

	blank := json.RawMessage(`{"traceId":"   "}`)
	params, rerr = query.ParseSpansListParams(blank)
	if rerr != nil {
		t.Fatalf("ParseSpansListParams: %v", rerr)
	}
	if verr := query.ValidateSpansListParams(params); verr == nil || verr.Code != rpcerr.CodeInvalidParams {
		t.Fatalf("whitespace-only traceId must fail validation with InvalidParams, got %v", verr)
	}
}
