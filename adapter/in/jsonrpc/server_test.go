package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aerioncore/mailcore/core/domain"
	"github.com/aerioncore/mailcore/core/service/tools"
)

// echoTool is a minimal tools.Tool used only to exercise the transport.
type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "echoes its message argument" }
func (echoTool) Category() tools.Category { return tools.CategoryMail }
func (echoTool) Parameters() []tools.ParameterSpec {
	return []tools.ParameterSpec{{Name: "message", Type: "string", Required: true}}
}
func (echoTool) Execute(_ context.Context, _ string, args map[string]any) (*tools.Result, error) {
	return &tools.Result{Success: true, Data: args["message"]}, nil
}

type mockSessions struct{}

func (mockSessions) GetOrCreate(_ context.Context, sessionID string) *domain.Session {
	return &domain.Session{ID: sessionID}
}
func (mockSessions) SetCurrentAccount(_ context.Context, _ string, _ uuid.UUID) error { return nil }
func (mockSessions) Subscribe(_ context.Context, _ string, _ []domain.EventType) error { return nil }
func (mockSessions) Unsubscribe(_ context.Context, _ string, _ []domain.EventType) error {
	return nil
}
func (mockSessions) Touch(_ context.Context, _ string) {}
func (mockSessions) Drop(_ context.Context, _ string)  {}

func newTestServer() *Server {
	reg := tools.NewRegistry()
	reg.Register(echoTool{})
	return NewServer(reg, mockSessions{}, zerolog.Nop())
}

func TestServeToolsList(t *testing.T) {
	s := newTestServer()
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}` + "\n")
	var out bytes.Buffer

	if err := s.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve returned error: %v", err)
	}

	var resp Response
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error response: %+v", resp.Error)
	}
}

func TestServeToolsCall(t *testing.T) {
	s := newTestServer()
	in := strings.NewReader(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo","arguments":{"message":"hi"}}}` + "\n")
	var out bytes.Buffer

	if err := s.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve returned error: %v", err)
	}

	var resp Response
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error response: %+v", resp.Error)
	}
}

func TestServeUnknownMethod(t *testing.T) {
	s := newTestServer()
	in := strings.NewReader(`{"jsonrpc":"2.0","id":3,"method":"bogus"}` + "\n")
	var out bytes.Buffer

	if err := s.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve returned error: %v", err)
	}

	var resp Response
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected method-not-found error, got %+v", resp.Error)
	}
}

func TestServeMissingToolName(t *testing.T) {
	s := newTestServer()
	in := strings.NewReader(`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{}}` + "\n")
	var out bytes.Buffer

	if err := s.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve returned error: %v", err)
	}

	var resp Response
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Fatalf("expected invalid-params error, got %+v", resp.Error)
	}
}
