package store

import "encoding/json"

// Manifest is the validated contents of a session's trace.json.
type Manifest struct {
	OS           string
	Arch         string
	PID          uint32
	SessionID    uint64
	TimeStartNs  uint64
	TimeEndNs    uint64
	EventCount   uint64
	BytesWritten uint64
	SpanCount    *uint64
	Modules      []string
}

// rawManifest mirrors the on-disk camelCase schema. Unknown keys are
// ignored by encoding/json by default; spanCount and modules may
// be absent or null.
type rawManifest struct {
	OS           string   `json:"os"`
	Arch         string   `json:"arch"`
	PID          uint32   `json:"pid"`
	SessionID    uint64   `json:"sessionId"`
	TimeStartNs  uint64   `json:"timeStartNs"`
	TimeEndNs    uint64   `json:"timeEndNs"`
	EventCount   uint64   `json:"eventCount"`
	BytesWritten uint64   `json:"bytesWritten"`
	SpanCount    *uint64  `json:"spanCount"`
	Modules      []string `json:"modules"`
}

// parseManifest decodes and validates raw trace.json bytes. An empty
// payload and a timeEndNs < timeStartNs invariant violation both produce
// an ErrManifest error, matching the original reader's rejection of
// zero-length manifests.
func parseManifest(data []byte) (Manifest, error) {
	if len(data) == 0 {
		return Manifest{}, manifestErr("empty manifest")
	}
	var raw rawManifest
	if err := json.Unmarshal(data, &raw); err != nil {
		return Manifest{}, manifestErr("malformed manifest json: " + err.Error())
	}
	if raw.TimeEndNs < raw.TimeStartNs {
		return Manifest{}, manifestErr("timeEndNs is before timeStartNs")
	}
	return Manifest{
		OS:           raw.OS,
		Arch:         raw.Arch,
		PID:          raw.PID,
		SessionID:    raw.SessionID,
		TimeStartNs:  raw.TimeStartNs,
		TimeEndNs:    raw.TimeEndNs,
		EventCount:   raw.EventCount,
		BytesWritten: raw.BytesWritten,
		SpanCount:    raw.SpanCount,
		Modules:      raw.Modules,
	}, nil
}

// DurationNs returns TimeEndNs - TimeStartNs, saturating at zero (the
// invariant checked at parse time already guarantees this never
// underflows, but the subtraction stays saturating for safety).
func (m Manifest) DurationNs() uint64 {
	if m.TimeEndNs < m.TimeStartNs {
		return 0
	}
	return m.TimeEndNs - m.TimeStartNs
}

// ResolvedSpanCount returns the manifest's recorded span count, or half
// the event count when no span count was recorded.
func (m Manifest) ResolvedSpanCount() uint64 {
	if m.SpanCount != nil {
		return *m.SpanCount
	}
	return m.EventCount / 2
}
