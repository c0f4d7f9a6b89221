package jsonrpc

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/rs/zerolog"

	in "github.com/aerioncore/mailcore/core/port/in"
	"github.com/aerioncore/mailcore/core/service/tools"
)

// stdioSessionID is the single implicit session every call on this
// transport is attributed to: a stdio peer is one client, not a pool of
// browser tabs, so there is no per-request session negotiation.
const stdioSessionID = "jsonrpc-stdio"

// toolsListParams/toolsCallParams mirror the de facto tools/list and
// tools/call method shapes used across the Go JSON-RPC tool-calling
// ecosystem this transport follows.
type toolsCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Server reads newline-delimited JSON-RPC 2.0 requests from r and writes
// newline-delimited responses to w, one response per request, serialized
// so concurrent tool calls can't interleave partial writes.
type Server struct {
	registry *tools.Registry
	sessions in.SessionService
	log      zerolog.Logger

	writeMu sync.Mutex
}

func NewServer(registry *tools.Registry, sessions in.SessionService, log zerolog.Logger) *Server {
	return &Server{
		registry: registry,
		sessions: sessions,
		log:      log.With().Str("component", "jsonrpc").Logger(),
	}
}

// Serve blocks until r is exhausted or ctx is cancelled, dispatching each
// request on its own goroutine so a slow tool call doesn't stall the
// read loop.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.sessions.GetOrCreate(ctx, stdioSessionID)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var wg sync.WaitGroup
	defer wg.Wait()

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		lineCopy := append([]byte(nil), line...)

		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := s.handle(ctx, lineCopy)
			s.write(w, resp)
		}()

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return scanner.Err()
}

func (s *Server) handle(ctx context.Context, line []byte) *Response {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return newError(nil, CodeParseError, "invalid JSON", err.Error())
	}
	if req.JSONRPC != protocolVersion {
		return newError(req.ID, CodeInvalidRequest, "jsonrpc must be \"2.0\"", nil)
	}

	switch req.Method {
	case "tools/list":
		return newResult(req.ID, toolsListResult(s.registry.Definitions()))
	case "tools/call":
		return s.handleCall(ctx, req)
	default:
		return newError(req.ID, CodeMethodNotFound, "unknown method: "+req.Method, nil)
	}
}

func (s *Server) handleCall(ctx context.Context, req Request) *Response {
	var params toolsCallParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return newError(req.ID, CodeInvalidParams, "invalid params", err.Error())
		}
	}
	if params.Name == "" {
		return newError(req.ID, CodeInvalidParams, "params.name is required", nil)
	}

	s.sessions.Touch(ctx, stdioSessionID)
	result, err := s.registry.Execute(ctx, stdioSessionID, params.Name, params.Arguments)
	if err != nil {
		return newError(req.ID, CodeMethodNotFound, err.Error(), nil)
	}
	return newResult(req.ID, result)
}

func (s *Server) write(w io.Writer, resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error().Err(err).Msg("marshal jsonrpc response")
		return
	}
	data = append(data, '\n')

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := w.Write(data); err != nil {
		s.log.Error().Err(err).Msg("write jsonrpc response")
	}
}

// toolsListResult wraps the definition slice under a "tools" key, the
// conventional tools/list result envelope.
func toolsListResult(defs []tools.Definition) map[string]any {
	return map[string]any{"tools": defs}
}
