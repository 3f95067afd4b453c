package query_test

import (
	"encoding/json"
	"testing"

	"github.com/matgreaves/tracequeryd/internal/query"
	"github.com/matgreaves/tracequeryd/internal/rpcerr"
	"github.com/matgreaves/tracequeryd/internal/wire"
)

func sym(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func TestRunEventsGet_TypeAndNameFilter(t *testing.T) {
	// S3: Call(200,1,"foo") and Call(700,1,"") (normalizes to no symbol).
	events := []wire.ParsedEvent{
		{TimestampNs: 200, ThreadID: 1, Kind: wire.KindFunctionCall, FunctionSymbol: sym("foo")},
		{TimestampNs: 700, ThreadID: 1, Kind: wire.KindFunctionCall, FunctionSymbol: nil},
	}
	params := query.EventsGetParams{
		TraceID:             "t",
		EventTypes:          map[string]struct{}{"functionCall": {}},
		FunctionNames:       map[string]struct{}{"foo": {}},
		ProjectTimestamp:    true,
		ProjectThreadID:     true,
		ProjectEventType:    true,
		ProjectFunctionName: false,
		Ascending:           true,
		Limit:               1000,
	}

	resp := query.RunEventsGet(params, events)
	if len(resp.Events) != 1 {
		t.Fatalf("got %d events, want 1", len(resp.Events))
	}
	if *resp.Events[0].TimestampNs != 200 {
		t.Errorf("timestamp = %d, want 200", *resp.Events[0].TimestampNs)
	}
}

func TestRunEventsGet_UnknownEventKind(t *testing.T) {
	// S5: unknown event at t=1000,thr=7.
	events := []wire.ParsedEvent{
		{TimestampNs: 1000, ThreadID: 7, Kind: wire.KindUnknown},
	}
	params := query.EventsGetParams{
		TraceID:             "t",
		EventTypes:          map[string]struct{}{"unknown": {}},
		ProjectTimestamp:    true,
		ProjectThreadID:     true,
		ProjectEventType:    true,
		Ascending:           true,
		Limit:               1000,
	}

	resp := query.RunEventsGet(params, events)
	if len(resp.Events) != 1 {
		t.Fatalf("got %d events, want 1", len(resp.Events))
	}
	got := resp.Events[0]
	if got.EventType == nil || *got.EventType != "Unknown" {
		t.Errorf("eventType = %v, want Unknown", got.EventType)
	}
	if *got.ThreadID != 7 || *got.TimestampNs != 1000 {
		t.Errorf("got = %+v", got)
	}
}

func TestValidateEventsGetParams(t *testing.T) {
	cases := []struct {
		name    string
		params  query.EventsGetParams
		wantErr bool
	}{
		{"empty trace id", query.EventsGetParams{TraceID: "", Limit: 10}, true},
		{"limit too large", query.EventsGetParams{TraceID: "t", Limit: 20000}, true},
		{"start after end", query.EventsGetParams{TraceID: "t", Limit: 10, TimeStartNs: u64p(100), TimeEndNs: u64p(50)}, true},
		{"valid", query.EventsGetParams{TraceID: "t", Limit: 10}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := query.ValidateEventsGetParams(c.params)
			if (err != nil) != c.wantErr {
				t.Errorf("err = %v, wantErr = %v", err, c.wantErr)
			}
			if err != nil && err.Code != rpcerr.CodeInvalidParams {
				t.Errorf("code = %d, want %d", err.Code, rpcerr.CodeInvalidParams)
			}
		})
	}
}

func TestParseEventsGetParams_TrimsTraceID(t *testing.T) {
	raw := json.RawMessage(`{"traceId":"  t  "}`)
	params, rerr := query.ParseEventsGetParams(raw)
	if rerr != nil {
		t.Fatalf("ParseEventsGetParams: %v", rerr)
	}
	if params.TraceID != "t" {
		t.Errorf("traceId = %q, want trimmed %q", params.TraceID, "t")
	}

	blank := json.RawMessage(`{"traceId":"   "}`)
	params, rerr = query.ParseEventsGetParams(blank)
	if rerr != nil {
		t.Fatalf("ParseEventsGetParams: %v", rerr)
	}
	if verr := query.ValidateEventsGetParams(params); verr == nil || verr.Code != rpcerr.CodeInvalidParams {
		t.Fatalf("whitespace-only traceId must fail validation with InvalidParams, got %v", verr)
	}
}

func TestRunEventsGet_PaginationLaw(t *testing.T) {
	var events []wire.ParsedEvent
	for i := 0; i < 37; i++ {
		events = append(events, wire.ParsedEvent{TimestampNs: uint64(i), ThreadID: 1, Kind: wire.KindTraceStart})
	}

	full := query.RunEventsGet(query.EventsGetParams{TraceID: "t", Ascending: true, Limit: 1000, ProjectTimestamp: true}, events)

	const pageSize = 10
	var concatenated []query.EventResult
	offset := 0
	for {
		page := query.RunEventsGet(query.EventsGetParams{TraceID: "t", Ascending: true, Limit: pageSize, Offset: offset, ProjectTimestamp: true}, events)
		concatenated = append(concatenated, page.Events...)
		if !page.Metadata.HasMore {
			break
		}
		offset += pageSize
	}

	if len(concatenated) != len(full.Events) {
		t.Fatalf("paginated total %d != full total %d", len(concatenated), len(full.Events))
	}
	for i := range full.Events {
		if *full.Events[i].TimestampNs != *concatenated[i].TimestampNs {
			t.Fatalf("mismatch at %d: %d != %d", i, *full.Events[i].TimestampNs, *concatenated[i].TimestampNs)
		}
	}
}

func u64p(v uint64) *uint64 { return &v }
