package query

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/matgreaves/tracequeryd/internal/rpcerr"
	"github.com/matgreaves/tracequeryd/internal/wire"
)

// EventsGetParams is the decoded, defaulted request for events.get.
type EventsGetParams struct {
	TraceID       string
	TimeStartNs   *uint64
	TimeEndNs     *uint64
	ThreadIDs     map[uint32]struct{}
	EventTypes    map[string]struct{}
	FunctionNames map[string]struct{}

	ProjectTimestamp    bool
	ProjectThreadID     bool
	ProjectEventType    bool
	ProjectFunctionName bool

	OrderByThreadID bool
	Ascending       bool
	Offset          int
	Limit           int
}

type eventsGetParamsWire struct {
	TraceID string `json:"traceId"`
	Filters struct {
		TimeStartNs   *uint64  `json:"timeStartNs"`
		TimeEndNs     *uint64  `json:"timeEndNs"`
		ThreadIDs     []uint32 `json:"threadIds"`
		EventTypes    []string `json:"eventTypes"`
		FunctionNames []string `json:"functionNames"`
	} `json:"filters"`
	Projection struct {
		TimestampNs  *bool `json:"timestampNs"`
		ThreadID     *bool `json:"threadId"`
		EventType    *bool `json:"eventType"`
		FunctionName *bool `json:"functionName"`
	} `json:"projection"`
	OrderBy   string `json:"orderBy"`
	Ascending *bool  `json:"ascending"`
	Offset    int    `json:"offset"`
	Limit     *int   `json:"limit"`
}

// ParseEventsGetParams decodes raw JSON params and applies every default.
// It does not validate; call ValidateEventsGetParams next.
func ParseEventsGetParams(raw json.RawMessage) (EventsGetParams, *rpcerr.Error) {
	var w eventsGetParamsWire
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &w); err != nil {
			return EventsGetParams{}, rpcerr.InvalidParams("malformed params: " + err.Error())
		}
	}

	p := EventsGetParams{
		TraceID:             strings.TrimSpace(w.TraceID),
		TimeStartNs:         w.Filters.TimeStartNs,
		TimeEndNs:           w.Filters.TimeEndNs,
		ProjectTimestamp:    boolDefault(w.Projection.TimestampNs, true),
		ProjectThreadID:     boolDefault(w.Projection.ThreadID, true),
		ProjectEventType:    boolDefault(w.Projection.EventType, true),
		ProjectFunctionName: boolDefault(w.Projection.FunctionName, false),
		OrderByThreadID:     w.OrderBy == "threadId",
		Ascending:           boolDefault(w.Ascending, true),
		Offset:              w.Offset,
		Limit:               intDefault(w.Limit, defaultLimit),
	}
	if len(w.Filters.ThreadIDs) > 0 {
		p.ThreadIDs = toUint32Set(w.Filters.ThreadIDs)
	}
	if len(w.Filters.EventTypes) > 0 {
		p.EventTypes = toStringSet(w.Filters.EventTypes)
	}
	if len(w.Filters.FunctionNames) > 0 {
		p.FunctionNames = toStringSet(w.Filters.FunctionNames)
	}
	return p, nil
}

// ValidateEventsGetParams applies the events.get validation rules.
func ValidateEventsGetParams(p EventsGetParams) *rpcerr.Error {
	if msg := validateCommon(p.TraceID, p.Offset, p.Limit); msg != "" {
		return rpcerr.InvalidParams(msg)
	}
	if p.TimeStartNs != nil && p.TimeEndNs != nil && *p.TimeStartNs >= *p.TimeEndNs {
		return rpcerr.InvalidParams("filters.timeStartNs must be less than filters.timeEndNs")
	}
	return nil
}

// EventResult is one projected event in an events.get response. Fields
// are pointers so an excluded field is omitted from the JSON body.
type EventResult struct {
	TimestampNs  *uint64 `json:"timestampNs,omitempty"`
	ThreadID     *uint32 `json:"threadId,omitempty"`
	EventType    *string `json:"eventType,omitempty"`
	FunctionName *string `json:"functionName,omitempty"`
}

// EventsGetResponse is the full events.get response body.
type EventsGetResponse struct {
	Events   []EventResult `json:"events"`
	Metadata Metadata      `json:"metadata"`
}

// RunEventsGet executes the filter/sort/paginate/project pipeline over a
// fully-decoded event slice.
func RunEventsGet(p EventsGetParams, events []wire.ParsedEvent) EventsGetResponse {
	started := time.Now()

	matched := make([]wire.ParsedEvent, 0, len(events))
	for _, e := range events {
		if eventMatches(p, e) {
			matched = append(matched, e)
		}
	}

	if p.OrderByThreadID {
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].ThreadID < matched[j].ThreadID })
	} else {
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].TimestampNs < matched[j].TimestampNs })
	}
	if !p.Ascending {
		reverseEvents(matched)
	}

	total := len(matched)
	lo, hi := paginateRange(total, p.Offset, p.Limit)
	page := matched[lo:hi]

	results := make([]EventResult, len(page))
	for i, e := range page {
		results[i] = projectEvent(p, e)
	}

	return EventsGetResponse{
		Events:   results,
		Metadata: buildMetadata(total, p.Offset, p.Limit, len(results), started),
	}
}

func eventMatches(p EventsGetParams, e wire.ParsedEvent) bool {
	if p.TimeStartNs != nil && e.TimestampNs < *p.TimeStartNs {
		return false
	}
	if p.TimeEndNs != nil && e.TimestampNs > *p.TimeEndNs {
		return false
	}
	if p.ThreadIDs != nil {
		if _, ok := p.ThreadIDs[e.ThreadID]; !ok {
			return false
		}
	}
	if p.EventTypes != nil {
		if _, ok := p.EventTypes[e.Kind.FilterTag()]; !ok {
			return false
		}
	}
	if p.FunctionNames != nil {
		symbol := e.FunctionSymbolOrNil()
		if symbol == nil {
			return false
		}
		if _, ok := p.FunctionNames[*symbol]; !ok {
			return false
		}
	}
	return true
}

func projectEvent(p EventsGetParams, e wire.ParsedEvent) EventResult {
	var r EventResult
	if p.ProjectTimestamp {
		v := e.TimestampNs
		r.TimestampNs = &v
	}
	if p.ProjectThreadID {
		v := e.ThreadID
		r.ThreadID = &v
	}
	if p.ProjectEventType {
		v := e.Kind.String()
		r.EventType = &v
	}
	if p.ProjectFunctionName {
		r.FunctionName = e.FunctionSymbolOrNil()
	}
	return r
}

func reverseEvents(s []wire.ParsedEvent) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func boolDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func intDefault(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func toUint32Set(vals []uint32) map[uint32]struct{} {
	m := make(map[uint32]struct{}, len(vals))
	for _, v := range vals {
		m[v] = struct{}{}
	}
	return m
}

func toStringSet(vals []string) map[string]struct{} {
	m := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		m[v] = struct{}{}
	}
	return m
}
