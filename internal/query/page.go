// Package query implements the filter/sort/paginate/project pipeline
// shared by the events.get and spans.list executors.
package query

import "time"

const (
	defaultLimit = 1000
	maxLimit     = 10000
)

// Metadata is the pagination/result envelope shared verbatim by both
// executors' responses.
type Metadata struct {
	TotalCount      int     `json:"totalCount"`
	ReturnedCount   int     `json:"returnedCount"`
	Offset          int     `json:"offset"`
	Limit           int     `json:"limit"`
	HasMore         bool    `json:"hasMore"`
	ExecutionTimeMs float64 `json:"executionTimeMs"`
}

func buildMetadata(total, offset, limit, returned int, started time.Time) Metadata {
	return Metadata{
		TotalCount:      total,
		ReturnedCount:   returned,
		Offset:          offset,
		Limit:           limit,
		HasMore:         total > offset+returned,
		ExecutionTimeMs: float64(time.Since(started).Microseconds()) / 1000.0,
	}
}

// paginateRange clamps [offset, offset+limit) to [0, total], returning the
// slice bounds to apply.
func paginateRange(total, offset, limit int) (lo, hi int) {
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		return total, total
	}
	hi = offset + limit
	if hi > total || hi < offset {
		hi = total
	}
	return offset, hi
}

// validateCommon checks the parameter rules shared by both executors.
// limit must already have defaulting applied by the caller.
func validateCommon(traceID string, offset, limit int) (invalid string) {
	switch {
	case traceID == "":
		return "traceId must not be empty"
	case limit < 0:
		return "limit must not be negative"
	case limit > maxLimit:
		return "limit must not exceed 10000"
	case offset < 0:
		return "offset must not be negative"
	}
	return ""
}
