// Package handler exposes the three JSON-RPC-shaped operations as pure
// functions from raw params to a response value or a client-visible
// error.
package handler

import (
	"encoding/json"
	"errors"
	"path/filepath"

	"github.com/matgreaves/tracequeryd/internal/query"
	"github.com/matgreaves/tracequeryd/internal/rpcerr"
	"github.com/matgreaves/tracequeryd/internal/spans"
	"github.com/matgreaves/tracequeryd/internal/store"
	"github.com/matgreaves/tracequeryd/internal/traceinfo"
)

// Handlers holds the configuration shared by every request: the root
// directory under which session directories live, and the long-lived
// trace-info cache.
type Handlers struct {
	TraceRoot string
	Cache     *traceinfo.Cache
}

// New constructs a Handlers. cache is injected so a daemon can size it
// once at startup and tests can build an isolated instance.
func New(traceRoot string, cache *traceinfo.Cache) *Handlers {
	return &Handlers{TraceRoot: traceRoot, Cache: cache}
}

func (h *Handlers) sessionDir(traceID string) string {
	return filepath.Join(h.TraceRoot, traceID)
}

// EventsGet implements events.get.
func (h *Handlers) EventsGet(raw json.RawMessage) (any, *rpcerr.Error) {
	params, perr := query.ParseEventsGetParams(raw)
	if perr != nil {
		return nil, perr
	}
	if perr := query.ValidateEventsGetParams(params); perr != nil {
		return nil, perr
	}

	s, err := store.Open(h.sessionDir(params.TraceID))
	if err != nil {
		return nil, mapStoreError(err)
	}
	stream, err := s.EventStream()
	if err != nil {
		return nil, mapStoreError(err)
	}
	events, err := stream.All()
	if err != nil {
		return nil, mapStoreError(store.WrapDecodeError(err))
	}

	return query.RunEventsGet(params, events), nil
}

// SpansList implements spans.list.
func (h *Handlers) SpansList(raw json.RawMessage) (any, *rpcerr.Error) {
	params, perr := query.ParseSpansListParams(raw)
	if perr != nil {
		return nil, perr
	}
	if perr := query.ValidateSpansListParams(params); perr != nil {
		return nil, perr
	}

	s, err := store.Open(h.sessionDir(params.TraceID))
	if err != nil {
		return nil, mapStoreError(err)
	}
	stream, err := s.EventStream()
	if err != nil {
		return nil, mapStoreError(err)
	}
	events, err := stream.All()
	if err != nil {
		return nil, mapStoreError(store.WrapDecodeError(err))
	}

	reconstructed := spans.Reconstruct(events)
	return query.RunSpansList(params, reconstructed), nil
}

// TraceInfo implements trace.info.
func (h *Handlers) TraceInfo(raw json.RawMessage) (any, *rpcerr.Error) {
	params, perr := traceinfo.ParseParams(raw)
	if perr != nil {
		return nil, perr
	}
	if perr := traceinfo.ValidateParams(params); perr != nil {
		return nil, perr
	}

	summary, err := traceinfo.Get(h.Cache, h.TraceRoot, params.TraceID, params)
	if err != nil {
		return nil, mapTraceInfoError(err)
	}

	return struct {
		TraceID string `json:"traceId"`
		traceinfo.Summary
	}{TraceID: params.TraceID, Summary: summary}, nil
}

// Dispatch routes a method name to its handler. The method set is small
// and closed, so a tagged switch is preferred over a runtime registry.
func (h *Handlers) Dispatch(method string, raw json.RawMessage) (any, *rpcerr.Error) {
	switch method {
	case "events.get":
		return h.EventsGet(raw)
	case "spans.list":
		return h.SpansList(raw)
	case "trace.info":
		return h.TraceInfo(raw)
	default:
		return nil, rpcerr.InvalidParams("unknown method: " + method)
	}
}

// mapStoreError applies the generic events.get/spans.list mapping: the
// three NotFound kinds become TraceNotFound, everything else becomes
// InternalError.
func mapStoreError(err error) *rpcerr.Error {
	var serr *store.Error
	if errors.As(err, &serr) {
		switch serr.Kind {
		case store.ErrTraceNotFound, store.ErrManifestNotFound, store.ErrEventsNotFound:
			return rpcerr.TraceNotFound(serr.Error())
		default:
			return rpcerr.Internal("internal error", serr.Error())
		}
	}
	return rpcerr.Internal("internal error", err.Error())
}

// mapTraceInfoError applies the more specific trace.info mapping, which
// names the detail string per failure kind.
func mapTraceInfoError(err error) *rpcerr.Error {
	var serr *store.Error
	if errors.As(err, &serr) {
		switch serr.Kind {
		case store.ErrTraceNotFound, store.ErrManifestNotFound, store.ErrEventsNotFound:
			return rpcerr.TraceNotFound(serr.Error())
		case store.ErrManifest:
			return rpcerr.Internal("failed to parse manifest", serr.Error())
		case store.ErrIO:
			return rpcerr.Internal("failed to read manifest/events metadata", serr.Error())
		case store.ErrDecode:
			return rpcerr.Internal("failed to decode events", serr.Error())
		}
	}
	return rpcerr.Internal("internal error", err.Error())
}
