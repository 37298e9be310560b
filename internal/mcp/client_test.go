package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewClient_ShouldTrimTrailingSlash(t *testing.T) {
	c := NewClient("http://localhost:8081/", time.Second)
	if c.baseURL != "http://localhost:8081" {
		t.Errorf("baseURL: want trimmed, got %q", c.baseURL)
	}
}

func TestCallTool_WhenSuccess_ShouldPostJSONRPCAndDecodeResult(t *testing.T) {
	var captured rpcRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method: want POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type: want application/json, got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"42 users"}],"isError":false}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	result, err := c.CallTool(context.Background(), "getSegment", json.RawMessage(`{"filter":"gender=male"}`))
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if captured.JSONRPC != "2.0" {
		t.Errorf("jsonrpc: want 2.0, got %q", captured.JSONRPC)
	}
	if captured.Method != "tools/call" {
		t.Errorf("method: want tools/call, got %q", captured.Method)
	}
	params, err := json.Marshal(captured.Params)
	if err != nil {
		t.Fatalf("re-marshal params: %v", err)
	}
	if !strings.Contains(string(params), `"name":"getSegment"`) {
		t.Errorf("params missing tool name: %s", params)
	}
	if !strings.Contains(string(params), `"filter":"gender=male"`) {
		t.Errorf("params missing arguments: %s", params)
	}
	if len(result.Content) != 1 || result.Content[0].Text != "42 users" {
		t.Errorf("result content: want one '42 users' item, got %+v", result.Content)
	}
	if result.IsError {
		t.Error("isError: want false")
	}
}

func TestCallTool_ShouldAssignMonotonicallyIncreasingIDs(t *testing.T) {
	var mu sync.Mutex
	var ids []int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		mu.Lock()
		ids = append(ids, req.ID)
		mu.Unlock()
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"ok"}]}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	for i := 0; i < 3; i++ {
		if _, err := c.CallTool(context.Background(), "ping", nil); err != nil {
			t.Fatalf("CallTool %d: %v", i, err)
		}
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(ids))
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Errorf("ids not increasing: %v", ids)
		}
	}
}

func TestCallTool_WhenNilArguments_ShouldSendEmptyObject(t *testing.T) {
	var raw []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Params struct {
				Arguments json.RawMessage `json:"arguments"`
			} `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		raw = req.Params.Arguments
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"ok"}]}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	if _, err := c.CallTool(context.Background(), "ping", nil); err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if string(raw) != "{}" {
		t.Errorf("arguments: want {}, got %s", raw)
	}
}

func TestCallTool_WhenResponseCarriesErrorObject_ShouldReturnRPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"unknown tool: bogus"}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	_, err := c.CallTool(context.Background(), "bogus", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected *RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != -32602 {
		t.Errorf("code: want -32602, got %d", rpcErr.Code)
	}
	if !strings.Contains(rpcErr.Message, "unknown tool") {
		t.Errorf("message: want 'unknown tool', got %q", rpcErr.Message)
	}
}

func TestCallTool_WhenNon2xxStatus_ShouldReturnTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	_, err := c.CallTool(context.Background(), "ping", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		t.Fatal("non-2xx must not be an RPCError")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error should carry the HTTP status, got %v", err)
	}
}

func TestCallTool_WhenServerUnreachable_ShouldReturnTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	c := NewClient(server.URL, time.Second)
	_, err := c.CallTool(context.Background(), "ping", nil)
	if err == nil {
		t.Fatal("expected error for unreachable endpoint")
	}
}

func TestCallTool_WhenResponseHasNeitherResultNorError_ShouldReturnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	_, err := c.CallTool(context.Background(), "ping", nil)
	if err == nil {
		t.Fatal("expected error for empty response")
	}
}

func TestCallTool_WhenContextCanceled_ShouldReturnWithoutRequest(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewClient(server.URL, time.Second)
	if _, err := c.CallTool(ctx, "ping", nil); err == nil {
		t.Fatal("expected error for canceled context")
	}
	if called {
		t.Error("no request should be sent after cancellation")
	}
}

func TestListTools_WhenSuccess_ShouldReturnDefinitions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Method != "tools/list" {
			t.Errorf("method: want tools/list, got %q", req.Method)
		}
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"tools":[
			{"name":"getSegment","description":"Query a user segment","inputSchema":{"type":"object"}},
			{"name":"sendPush","description":"Send a push notification"}
		]}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	tools, err := c.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}
	if tools[0].Name != "getSegment" || tools[1].Name != "sendPush" {
		t.Errorf("tool names wrong: %+v", tools)
	}
	if len(tools[0].InputSchema) == 0 {
		t.Error("first tool should carry its input schema")
	}
}

func TestHealth_When200_ShouldReturnNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/actuator/health" {
			t.Errorf("path: want /actuator/health, got %s", r.URL.Path)
		}
		if r.Method != http.MethodGet {
			t.Errorf("method: want GET, got %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
}

func TestHealth_WhenServiceDown_ShouldReturnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	if err := c.Health(context.Background()); err == nil {
		t.Fatal("expected error for 503 health response")
	}
}

func TestCallTool_WhenToolLevelError_ShouldStillDecodeResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"unknown operator IN"}],"isError":true}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	result, err := c.CallTool(context.Background(), "getSegment", json.RawMessage(`{"filter":"x IN y"}`))
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !result.IsError {
		t.Error("isError: want true")
	}
	if result.Content[0].Text != "unknown operator IN" {
		t.Errorf("error text: got %q", result.Content[0].Text)
	}
}
