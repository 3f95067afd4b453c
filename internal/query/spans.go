package query

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/matgreaves/tracequeryd/internal/rpcerr"
	"github.com/matgreaves/tracequeryd/internal/spans"
)

// SpansListParams is the decoded, defaulted request for spans.list.
type SpansListParams struct {
	TraceID         string
	TimeStartNs     *uint64
	TimeEndNs       *uint64
	ThreadIDs       map[uint32]struct{}
	FunctionNames   map[string]struct{}
	MinDurationNs   *uint64
	MaxDurationNs   *uint64
	MinDepth        *int
	MaxDepth        *int
	IncludeChildren bool

	ProjectSpanID       bool
	ProjectFunctionName bool
	ProjectStartTime    bool
	ProjectEndTime      bool
	ProjectDuration     bool
	ProjectThreadID     bool
	ProjectModuleName   bool
	ProjectDepth        bool
	ProjectChildCount   bool

	Offset int
	Limit  int
}

type spansListParamsWire struct {
	TraceID         string `json:"traceId"`
	IncludeChildren *bool  `json:"includeChildren"`
	Filters         struct {
		TimeStartNs   *uint64  `json:"timeStartNs"`
		TimeEndNs     *uint64  `json:"timeEndNs"`
		ThreadIDs     []uint32 `json:"threadIds"`
		FunctionNames []string `json:"functionNames"`
		MinDurationNs *uint64  `json:"minDurationNs"`
		MaxDurationNs *uint64  `json:"maxDurationNs"`
		MinDepth      *int     `json:"minDepth"`
		MaxDepth      *int     `json:"maxDepth"`
	} `json:"filters"`
	Projection struct {
		SpanID       *bool `json:"spanId"`
		FunctionName *bool `json:"functionName"`
		StartTimeNs  *bool `json:"startTimeNs"`
		EndTimeNs    *bool `json:"endTimeNs"`
		DurationNs   *bool `json:"durationNs"`
		ThreadID     *bool `json:"threadId"`
		ModuleName   *bool `json:"moduleName"`
		Depth        *bool `json:"depth"`
		ChildCount   *bool `json:"childCount"`
	} `json:"projection"`
	Offset int  `json:"offset"`
	Limit  *int `json:"limit"`
}

// ParseSpansListParams decodes raw JSON params and applies every default.
func ParseSpansListParams(raw json.RawMessage) (SpansListParams, *rpcerr.Error) {
	var w spansListParamsWire
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &w); err != nil {
			return SpansListParams{}, rpcerr.InvalidParams("malformed params: " + err.Error())
		}
	}

	p := SpansListParams{
		TraceID:             strings.TrimSpace(w.TraceID),
		TimeStartNs:         w.Filters.TimeStartNs,
		TimeEndNs:           w.Filters.TimeEndNs,
		MinDurationNs:       w.Filters.MinDurationNs,
		MaxDurationNs:       w.Filters.MaxDurationNs,
		MinDepth:            w.Filters.MinDepth,
		MaxDepth:            w.Filters.MaxDepth,
		IncludeChildren:     boolDefault(w.IncludeChildren, true),
		ProjectSpanID:       boolDefault(w.Projection.SpanID, true),
		ProjectFunctionName: boolDefault(w.Projection.FunctionName, true),
		ProjectStartTime:    boolDefault(w.Projection.StartTimeNs, true),
		ProjectEndTime:      boolDefault(w.Projection.EndTimeNs, true),
		ProjectDuration:     boolDefault(w.Projection.DurationNs, true),
		ProjectThreadID:     boolDefault(w.Projection.ThreadID, false),
		ProjectModuleName:   boolDefault(w.Projection.ModuleName, false),
		ProjectDepth:        boolDefault(w.Projection.Depth, false),
		ProjectChildCount:   boolDefault(w.Projection.ChildCount, false),
		Offset:              w.Offset,
		Limit:               intDefault(w.Limit, defaultLimit),
	}
	if len(w.Filters.ThreadIDs) > 0 {
		p.ThreadIDs = toUint32Set(w.Filters.ThreadIDs)
	}
	if len(w.Filters.FunctionNames) > 0 {
		p.FunctionNames = toStringSet(w.Filters.FunctionNames)
	}
	return p, nil
}

// ValidateSpansListParams applies the spans.list validation rules.
func ValidateSpansListParams(p SpansListParams) *rpcerr.Error {
	if msg := validateCommon(p.TraceID, p.Offset, p.Limit); msg != "" {
		return rpcerr.InvalidParams(msg)
	}
	if p.TimeStartNs != nil && p.TimeEndNs != nil && *p.TimeStartNs >= *p.TimeEndNs {
		return rpcerr.InvalidParams("filters.timeStartNs must be less than filters.timeEndNs")
	}
	if p.MinDepth != nil && p.MaxDepth != nil && *p.MinDepth > *p.MaxDepth {
		return rpcerr.InvalidParams("filters.minDepth must not exceed filters.maxDepth")
	}
	return nil
}

// SpanResult is one projected span in a spans.list response.
type SpanResult struct {
	SpanID       *string `json:"spanId,omitempty"`
	FunctionName *string `json:"functionName,omitempty"`
	StartTimeNs  *uint64 `json:"startTimeNs,omitempty"`
	EndTimeNs    *uint64 `json:"endTimeNs,omitempty"`
	DurationNs   *uint64 `json:"durationNs,omitempty"`
	ThreadID     *uint32 `json:"threadId,omitempty"`
	ModuleName   *string `json:"moduleName,omitempty"`
	Depth        *int    `json:"depth,omitempty"`
	ChildCount   *int    `json:"childCount,omitempty"`
}

// SpansListResponse is the full spans.list response body.
type SpansListResponse struct {
	Spans    []SpanResult `json:"spans"`
	Metadata Metadata     `json:"metadata"`
}

// RunSpansList executes the filter/sort(fixed)/paginate/project pipeline
// over an already-reconstructed span slice.
func RunSpansList(p SpansListParams, all []spans.Span) SpansListResponse {
	started := time.Now()

	sorted := make([]spans.Span, len(all))
	copy(sorted, all)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.StartNs != b.StartNs {
			return a.StartNs < b.StartNs
		}
		if a.ThreadID != b.ThreadID {
			return a.ThreadID < b.ThreadID
		}
		return a.SpanID < b.SpanID
	})

	matched := make([]spans.Span, 0, len(sorted))
	for _, s := range sorted {
		if spanMatches(p, s) {
			matched = append(matched, s)
		}
	}

	total := len(matched)
	lo, hi := paginateRange(total, p.Offset, p.Limit)
	page := matched[lo:hi]

	results := make([]SpanResult, len(page))
	for i, s := range page {
		results[i] = projectSpan(p, s)
	}

	return SpansListResponse{
		Spans:    results,
		Metadata: buildMetadata(total, p.Offset, p.Limit, len(results), started),
	}
}

func spanMatches(p SpansListParams, s spans.Span) bool {
	if !p.IncludeChildren && s.Depth != 0 {
		return false
	}
	if p.ThreadIDs != nil {
		if _, ok := p.ThreadIDs[s.ThreadID]; !ok {
			return false
		}
	}
	if p.TimeStartNs != nil && s.StartNs < *p.TimeStartNs {
		return false
	}
	if p.TimeEndNs != nil && s.EndNs > *p.TimeEndNs {
		return false
	}
	if p.MinDurationNs != nil && s.DurationNs < *p.MinDurationNs {
		return false
	}
	if p.MaxDurationNs != nil && s.DurationNs > *p.MaxDurationNs {
		return false
	}
	if p.MinDepth != nil && s.Depth < *p.MinDepth {
		return false
	}
	if p.MaxDepth != nil && s.Depth > *p.MaxDepth {
		return false
	}
	if p.FunctionNames != nil {
		if s.FunctionName == nil {
			return false
		}
		if _, ok := p.FunctionNames[*s.FunctionName]; !ok {
			return false
		}
	}
	return true
}

func projectSpan(p SpansListParams, s spans.Span) SpanResult {
	var r SpanResult
	if p.ProjectSpanID {
		v := s.SpanID
		r.SpanID = &v
	}
	if p.ProjectFunctionName {
		r.FunctionName = s.FunctionName
	}
	if p.ProjectStartTime {
		v := s.StartNs
		r.StartTimeNs = &v
	}
	if p.ProjectEndTime {
		v := s.EndNs
		r.EndTimeNs = &v
	}
	if p.ProjectDuration {
		v := s.DurationNs
		r.DurationNs = &v
	}
	if p.ProjectThreadID {
		v := s.ThreadID
		r.ThreadID = &v
	}
	if p.ProjectModuleName {
		// Reserved for a future resolver integration; always null.
		r.ModuleName = nil
	}
	if p.ProjectDepth {
		v := s.Depth
		r.Depth = &v
	}
	if p.ProjectChildCount {
		v := s.ChildCount
		r.ChildCount = &v
	}
	return r
}
