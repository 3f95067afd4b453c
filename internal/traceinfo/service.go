package traceinfo

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/matgreaves/tracequeryd/internal/rpcerr"
	"github.com/matgreaves/tracequeryd/internal/store"
	"github.com/matgreaves/tracequeryd/internal/wire"
)

const sampleSize = 10

// Params is the decoded trace.info request.
type Params struct {
	TraceID          string
	IncludeChecksums bool
	IncludeSamples   bool
}

type paramsWire struct {
	TraceID          string `json:"traceId"`
	IncludeChecksums bool   `json:"includeChecksums"`
	IncludeSamples   bool   `json:"includeSamples"`
}

// ParseParams decodes raw JSON params for trace.info.
func ParseParams(raw json.RawMessage) (Params, *rpcerr.Error) {
	var w paramsWire
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &w); err != nil {
			return Params{}, rpcerr.InvalidParams("malformed params: " + err.Error())
		}
	}
	return Params{
		TraceID:          strings.TrimSpace(w.TraceID),
		IncludeChecksums: w.IncludeChecksums,
		IncludeSamples:   w.IncludeSamples,
	}, nil
}

// ValidateParams checks the trace.info-specific validation rule.
func ValidateParams(p Params) *rpcerr.Error {
	if p.TraceID == "" {
		return rpcerr.InvalidParams("traceId must not be empty")
	}
	return nil
}

// Summary is the computed trace.info response body (minus the trace_id,
// which callers attach since the cache itself is keyed on it).
type Summary struct {
	OS           string   `json:"os"`
	Arch         string   `json:"arch"`
	PID          uint32   `json:"pid"`
	SessionID    uint64   `json:"sessionId"`
	TimeStartNs  uint64   `json:"timeStartNs"`
	TimeEndNs    uint64   `json:"timeEndNs"`
	DurationNs   uint64   `json:"durationNs"`
	EventCount   uint64   `json:"eventCount"`
	SpanCount    uint64   `json:"spanCount"`
	BytesWritten uint64   `json:"bytesWritten"`
	Modules      []string `json:"modules,omitempty"`

	Checksums *Checksums `json:"checksums,omitempty"`
	Samples   *Samples   `json:"samples,omitempty"`
}

// Checksums holds the opt-in MD5 digests of the session's on-disk files.
type Checksums struct {
	ManifestMd5 string `json:"manifestMd5"`
	EventsMd5   string `json:"eventsMd5"`
}

// Samples holds the opt-in first/last parsed events of the session.
type Samples struct {
	FirstEvents []EventSample `json:"firstEvents"`
	LastEvents  []EventSample `json:"lastEvents"`
}

// EventSample projects a parsed event into the same shape the events
// handler uses. timestampNs, threadId and eventType are always present;
// functionName is omitted when the event has no function symbol.
type EventSample struct {
	TimestampNs  uint64  `json:"timestampNs"`
	ThreadID     uint32  `json:"threadId"`
	EventType    string  `json:"eventType"`
	FunctionName *string `json:"functionName,omitempty"`
}

func sampleFromEvent(e wire.ParsedEvent) EventSample {
	return EventSample{
		TimestampNs:  e.TimestampNs,
		ThreadID:     e.ThreadID,
		EventType:    e.Kind.String(),
		FunctionName: e.FunctionSymbolOrNil(),
	}
}

// baseSummary computes the manifest-derived fields only; it performs no
// I/O beyond what the caller already did to obtain m. This is the value
// the cache stores — checksums and samples are opt-in per request and
// would otherwise pin the cache to whichever request populated it first.
func baseSummary(m store.Manifest) Summary {
	return Summary{
		OS:           m.OS,
		Arch:         m.Arch,
		PID:          m.PID,
		SessionID:    m.SessionID,
		TimeStartNs:  m.TimeStartNs,
		TimeEndNs:    m.TimeEndNs,
		DurationNs:   m.DurationNs(),
		EventCount:   m.EventCount,
		SpanCount:    m.ResolvedSpanCount(),
		BytesWritten: m.BytesWritten,
		Modules:      m.Modules,
	}
}

// Get resolves a full trace.info response, consulting and maintaining
// cache for the manifest-derived fields. traceRoot/traceID are joined to
// form the session directory. Returned errors are store.Error values for
// the handler layer to map.
func Get(cache *Cache, traceRoot, traceID string, p Params) (Summary, error) {
	sessionDir := filepath.Join(traceRoot, traceID)
	manifestPath, eventsPath := store.Paths(sessionDir)

	manifestMeta, eventsMeta, err := store.Stat(sessionDir)
	if err != nil {
		return Summary{}, err
	}
	key := keyFromMeta(manifestMeta, eventsMeta)

	summary, hit := cache.Lookup(traceID, key)
	if !hit {
		s, openErr := store.Open(sessionDir)
		if openErr != nil {
			return Summary{}, openErr
		}
		summary = baseSummary(s.Manifest())
		cache.Insert(traceID, key, summary)
	}

	if p.IncludeChecksums {
		manifestSum, err := checksumFile(manifestPath)
		if err != nil {
			return Summary{}, err
		}
		eventsSum, err := checksumFile(eventsPath)
		if err != nil {
			return Summary{}, err
		}
		summary.Checksums = &Checksums{ManifestMd5: manifestSum, EventsMd5: eventsSum}
	}

	if p.IncludeSamples {
		first, last, err := sampleEvents(eventsPath)
		if err != nil {
			return Summary{}, err
		}
		summary.Samples = &Samples{FirstEvents: first, LastEvents: last}
	}

	return summary, nil
}

func checksumFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", store.WrapIOError(path, err)
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}

// sampleEvents returns up to sampleSize events from the start and end of
// the stream; when the trace has fewer than 2*sampleSize events the two
// windows are clamped so they do not overlap.
func sampleEvents(eventsPath string) (first, last []EventSample, err error) {
	stream, err := store.ReadEventStream(eventsPath)
	if err != nil {
		return nil, nil, err
	}
	all, decodeErr := stream.All()
	if decodeErr != nil {
		return nil, nil, store.WrapDecodeError(decodeErr)
	}

	n := len(all)
	if n == 0 {
		return nil, nil, nil
	}

	headEnd := sampleSize
	if headEnd > n {
		headEnd = n
	}
	tailStart := n - sampleSize
	if tailStart < headEnd {
		tailStart = headEnd
	}

	first = make([]EventSample, 0, headEnd)
	for _, e := range all[:headEnd] {
		first = append(first, sampleFromEvent(e))
	}
	last = make([]EventSample, 0, n-tailStart)
	for _, e := range all[tailStart:] {
		last = append(last, sampleFromEvent(e))
	}
	return first, last, nil
}
