// Command tracequeryd serves the trace query engine's three JSON-RPC
// methods over newline-delimited JSON on stdio. There is no framing,
// auth, or routing beyond this minimal loop; this binary exists only so
// the core handlers are reachable end to end.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matgreaves/tracequeryd/internal/handler"
	"github.com/matgreaves/tracequeryd/internal/rpcerr"
	"github.com/matgreaves/tracequeryd/internal/traceinfo"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcerr.Error   `json:"error,omitempty"`
}

func main() {
	traceRoot := flag.String("trace-root", "", "directory containing trace session subdirectories")
	cacheCapacity := flag.Int("cache-capacity", 128, "trace-info cache entry capacity (0 disables caching)")
	cacheTTL := flag.Duration("cache-ttl", 30*time.Second, "trace-info cache entry time-to-live")
	flag.Parse()

	if *traceRoot == "" {
		fmt.Fprintln(os.Stderr, "tracequeryd: -trace-root is required")
		os.Exit(1)
	}

	cache := traceinfo.NewCache(*cacheCapacity, *cacheTTL)
	h := handler.New(*traceRoot, cache)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		os.Exit(0)
	}()

	if err := serve(h, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "tracequeryd: %v\n", err)
		os.Exit(1)
	}
}

func serve(h *handler.Handlers, in *os.File, out *os.File) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		resp := handleLine(h, line)
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	return nil
}

func handleLine(h *handler.Handlers, line []byte) rpcResponse {
	var req rpcRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return rpcResponse{
			JSONRPC: "2.0",
			Error:   rpcerr.InvalidParams("malformed request: " + err.Error()),
		}
	}

	result, rerr := h.Dispatch(req.Method, req.Params)
	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	if rerr != nil {
		resp.Error = rerr
		return resp
	}
	resp.Result = result
	return resp
}
