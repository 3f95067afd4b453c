// Package testutil builds on-disk trace session fixtures (manifest +
// hand-encoded event records) for tests across the module, mirroring the
// TraceFixture helpers used in the original query engine's own test
// suite.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

// Session writes a minimal trace.json + events.bin pair under root/traceID
// and returns the session directory path.
func Session(t *testing.T, root, traceID string, manifestJSON string, records [][]byte) string {
	t.Helper()
	dir := filepath.Join(root, traceID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir session dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "trace.json"), []byte(manifestJSON), 0o644); err != nil {
		t.Fatalf("write trace.json: %v", err)
	}
	var buf []byte
	for _, r := range records {
		buf = append(buf, r...)
	}
	if err := os.WriteFile(filepath.Join(dir, "events.bin"), buf, 0o644); err != nil {
		t.Fatalf("write events.bin: %v", err)
	}
	return dir
}

// DefaultManifest returns a minimal trace.json body with the given
// [timeStartNs, timeEndNs] range and event count. The range is written as
// given and not validated, so timeEndNs < timeStartNs yields a manifest
// that Open rejects.
func DefaultManifest(timeStartNs, timeEndNs, eventCount uint64) string {
	raw := map[string]any{
		"os":           "linux",
		"arch":         "x86_64",
		"pid":          4242,
		"sessionId":    1,
		"timeStartNs":  timeStartNs,
		"timeEndNs":    timeEndNs,
		"eventCount":   eventCount,
		"bytesWritten": 0,
	}
	b, _ := json.Marshal(raw)
	return string(b)
}

const (
	tagEventID   = protowire.Number(1)
	tagThreadID  = protowire.Number(2)
	tagTimestamp = protowire.Number(3)

	tagTraceStart     = protowire.Number(10)
	tagTraceEnd       = protowire.Number(11)
	tagFunctionCall   = protowire.Number(12)
	tagFunctionReturn = protowire.Number(13)
	tagSignalDelivery = protowire.Number(14)
)

func tsParts(ns uint64) (seconds int64, nanos int32) {
	return int64(ns / 1_000_000_000), int32(ns % 1_000_000_000)
}

func appendTimestamp(b []byte, ns uint64) []byte {
	seconds, nanos := tsParts(ns)
	var sub []byte
	sub = protowire.AppendTag(sub, 1, protowire.VarintType)
	sub = protowire.AppendVarint(sub, uint64(seconds))
	sub = protowire.AppendTag(sub, 2, protowire.VarintType)
	sub = protowire.AppendVarint(sub, uint64(int64(nanos)))
	b = protowire.AppendTag(b, tagTimestamp, protowire.BytesType)
	b = protowire.AppendBytes(b, sub)
	return b
}

func record(threadID int32, ns uint64, payloadTag protowire.Number, payload []byte) []byte {
	var inner []byte
	inner = protowire.AppendTag(inner, tagEventID, protowire.VarintType)
	inner = protowire.AppendVarint(inner, 0)
	inner = protowire.AppendTag(inner, tagThreadID, protowire.VarintType)
	inner = protowire.AppendVarint(inner, uint64(int64(threadID)))
	inner = appendTimestamp(inner, ns)
	if payload != nil {
		inner = protowire.AppendTag(inner, payloadTag, protowire.BytesType)
		inner = protowire.AppendBytes(inner, payload)
	}

	var out []byte
	out = protowire.AppendVarint(out, uint64(len(inner)))
	out = append(out, inner...)
	return out
}

func stringField(tag protowire.Number, s string) []byte {
	var b []byte
	b = protowire.AppendTag(b, tag, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte(s))
	return b
}

// CallRecord encodes one length-delimited FunctionCall record.
func CallRecord(threadID int32, ns uint64, symbol string) []byte {
	return record(threadID, ns, tagFunctionCall, stringField(1, symbol))
}

// ReturnRecord encodes one length-delimited FunctionReturn record.
func ReturnRecord(threadID int32, ns uint64, symbol string) []byte {
	return record(threadID, ns, tagFunctionReturn, stringField(1, symbol))
}

// SignalRecord encodes one length-delimited SignalDelivery record.
func SignalRecord(threadID int32, ns uint64, name string) []byte {
	return record(threadID, ns, tagSignalDelivery, stringField(2, name))
}

// TraceStartRecord encodes one length-delimited TraceStart record.
func TraceStartRecord(threadID int32, ns uint64) []byte {
	return record(threadID, ns, tagTraceStart, []byte{})
}

// TraceEndRecord encodes one length-delimited TraceEnd record.
func TraceEndRecord(threadID int32, ns uint64) []byte {
	return record(threadID, ns, tagTraceEnd, []byte{})
}

// UnknownRecord encodes a record with no payload oneof set at all.
func UnknownRecord(threadID int32, ns uint64) []byte {
	return record(threadID, ns, 0, nil)
}
