// Package toolserver is a small JSON-RPC tool server that runs every tool
// call on the context of the HTTP request carrying it, so request-scoped
// values such as verified claims reach tool handlers.
//
// POST requests carry one JSON-RPC message each (initialize, ping,
// tools/list, tools/call). GET requests accepting text/event-stream open a
// long-lived stream that only carries heartbeats until the server shuts down.
package toolserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/ggoodman/mcp-gate/internal/jsonrpc"
	"github.com/ggoodman/mcp-gate/internal/logctx"
)

// ProtocolVersion is reported from initialize.
const ProtocolVersion = "2025-06-18"

const maxBodyBytes = 1 << 20

var (
	jsonMediaType         = contenttype.NewMediaType("application/json")
	eventStreamMediaTypes = []contenttype.MediaType{contenttype.NewMediaType("text/event-stream")}
)

// ErrDuplicateTool is returned by New when two tools share a name.
var ErrDuplicateTool = errors.New("duplicate tool name")

// Server serves tool calls over HTTP. It is safe for concurrent use.
type Server struct {
	log       *slog.Logger
	name      string
	version   string
	heartbeat time.Duration

	tools map[string]StaticTool
	order []string

	mu      sync.Mutex
	closed  bool
	closing chan struct{}
	streams sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to discarding output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithServerInfo sets the name and version reported from initialize.
func WithServerInfo(name, version string) Option {
	return func(s *Server) {
		s.name = name
		s.version = version
	}
}

// WithHeartbeatInterval sets how often idle streams receive a comment frame.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(s *Server) { s.heartbeat = d }
}

// New builds a Server exposing tools in the given order.
func New(tools []StaticTool, opts ...Option) (*Server, error) {
	s := &Server{
		log:       slog.New(slog.DiscardHandler),
		name:      "mcp-gate",
		version:   "dev",
		heartbeat: 15 * time.Second,
		tools:     make(map[string]StaticTool, len(tools)),
		closing:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.heartbeat <= 0 {
		return nil, errors.New("heartbeat interval must be positive")
	}
	for _, t := range tools {
		name := t.Descriptor.Name
		if _, dup := s.tools[name]; dup {
			return nil, errors.Join(ErrDuplicateTool, errors.New(name))
		}
		s.tools[name] = t
		s.order = append(s.order, name)
	}
	return s, nil
}

// Start logs readiness. Streams are accepted from construction onward.
func (s *Server) Start(ctx context.Context) error {
	s.log.InfoContext(ctx, "server.start", slog.Int("tools", len(s.order)))
	return nil
}

// Shutdown closes open event streams and waits for their handlers to return
// or for ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.closing)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.streams.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.InfoContext(ctx, "server.shutdown")
		return nil
	case <-ctx.Done():
		s.log.WarnContext(ctx, "server.shutdown.timeout")
		return ctx.Err()
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodGet:
		s.handleGet(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		writeJSONError(w, http.StatusUnsupportedMediaType, "content-type must be application/json")
		s.log.WarnContext(ctx, "content_type.unsupported")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
		s.log.WarnContext(ctx, "http.post.body.fail", slog.String("err", err.Error()))
		return
	}

	req, rpcErr := jsonrpc.ParseRequest(body)
	if rpcErr != nil {
		var id jsonrpc.ID
		if req != nil {
			id = req.ID
		}
		s.log.WarnContext(ctx, "rpc.parse.fail", slog.String("err", rpcErr.Message))
		writeRPC(w, jsonrpc.NewErrorResponse(id, rpcErr))
		return
	}

	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: req.Method, ID: req.ID.String()})
	result, rpcErr := s.dispatch(ctx, req)

	if req.IsNotification() {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	if rpcErr != nil {
		writeRPC(w, jsonrpc.NewErrorResponse(req.ID, rpcErr))
		return
	}
	res, err := jsonrpc.NewResultResponse(req.ID, result)
	if err != nil {
		s.log.ErrorContext(ctx, "rpc.result.marshal.fail", slog.String("err", err.Error()))
		writeRPC(w, jsonrpc.NewErrorResponse(req.ID, &jsonrpc.Error{Code: jsonrpc.ErrorCodeInternalError, Message: "failed to encode result"}))
		return
	}
	writeRPC(w, res)
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      serverInfo     `json:"serverInfo"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type listToolsResult struct {
	Tools []Tool `json:"tools"`
}

type callToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

func (s *Server) dispatch(ctx context.Context, req *jsonrpc.Request) (any, *jsonrpc.Error) {
	switch req.Method {
	case "initialize":
		return initializeResult{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    map[string]any{"tools": map[string]any{}},
			ServerInfo:      serverInfo{Name: s.name, Version: s.version},
		}, nil
	case "ping":
		return struct{}{}, nil
	case "notifications/initialized":
		return nil, nil
	case "tools/list":
		out := listToolsResult{Tools: make([]Tool, 0, len(s.order))}
		for _, name := range s.order {
			out.Tools = append(out.Tools, s.tools[name].Descriptor)
		}
		return out, nil
	case "tools/call":
		return s.callTool(ctx, req.Params)
	default:
		s.log.InfoContext(ctx, "rpc.method.unknown")
		return nil, &jsonrpc.Error{Code: jsonrpc.ErrorCodeMethodNotFound, Message: "method not found"}
	}
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (any, *jsonrpc.Error) {
	var p callToolParams
	if err := json.Unmarshal(params, &p); err != nil || p.Name == "" {
		return nil, &jsonrpc.Error{Code: jsonrpc.ErrorCodeInvalidParams, Message: "tools/call requires a tool name"}
	}
	tool, ok := s.tools[p.Name]
	if !ok {
		return nil, &jsonrpc.Error{Code: jsonrpc.ErrorCodeInvalidParams, Message: "unknown tool: " + p.Name}
	}

	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: p.Name})
	start := time.Now()
	res, err := tool.Handler(ctx, p.Arguments)
	if err != nil {
		s.log.ErrorContext(ctx, "tool.call.fail", slog.String("err", err.Error()), slog.Duration("dur", time.Since(start)))
		return nil, &jsonrpc.Error{Code: jsonrpc.ErrorCodeInternalError, Message: err.Error()}
	}
	if res == nil {
		res = &CallToolResult{Content: []ContentBlock{}}
	}
	s.log.InfoContext(ctx, "tool.call.ok", slog.Bool("is_error", res.IsError), slog.Duration("dur", time.Since(start)))
	return res, nil
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	if _, _, err := contenttype.GetAcceptableMediaType(r, eventStreamMediaTypes); err != nil {
		writeJSONError(w, http.StatusNotAcceptable, "accept must include text/event-stream")
		s.log.WarnContext(ctx, "http.get.not_acceptable")
		return
	}
	f, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		s.log.ErrorContext(ctx, "sse.flusher.missing")
		return
	}

	if !s.track() {
		writeJSONError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}
	defer s.streams.Done()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	f.Flush()
	s.log.InfoContext(ctx, "sse.stream.start")

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.InfoContext(ctx, "sse.stream.end", slog.Duration("dur", time.Since(start)))
			return
		case <-s.closing:
			s.log.InfoContext(ctx, "sse.stream.closed", slog.Duration("dur", time.Since(start)))
			return
		case <-ticker.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				s.log.InfoContext(ctx, "sse.write.fail", slog.String("err", err.Error()))
				return
			}
			f.Flush()
		}
	}
}

// track registers an open stream unless shutdown has begun.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.streams.Add(1)
	return true
}

func writeRPC(w http.ResponseWriter, res *jsonrpc.Response) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(res)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": status, "message": msg}})
}
