// Package mcp is a thin HTTP client for the remote tool endpoint. Requests
// are JSON-RPC 2.0 objects POSTed to a single base URL; a sibling
// /actuator/health endpoint reports liveness via HTTP status alone.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"parley/internal/domain"
)

const (
	methodToolsCall = "tools/call"
	methodToolsList = "tools/list"
	healthPath      = "/actuator/health"
)

// Client speaks JSON-RPC 2.0 to the tool endpoint. Request identifiers
// increase monotonically per instance so responses can be correlated even
// though calls are made sequentially within one orchestration pass.
type Client struct {
	baseURL     string
	client      *http.Client
	nextID      int64
	marshalFunc func(v any) ([]byte, error) // for testing
}

// NewClient returns a client for the given base URL. timeout bounds every
// exchange; expiry surfaces as a transport failure.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: timeout},
		marshalFunc: json.Marshal,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the protocol-level error object carried by a failed JSON-RPC
// response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ContentItem is one element of a tool call result's content array.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallResult is the result payload of a tools/call response. IsError marks
// a tool-level failure whose explanation is in the content text.
type CallResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError"`
}

type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type listResult struct {
	Tools []domain.ToolDefinition `json:"tools"`
}

// CallTool invokes the named remote tool. Returns the decoded result, an
// *RPCError when the response carries a protocol-level error object, or a
// wrapped transport error when the exchange itself fails.
func (c *Client) CallTool(ctx context.Context, name string, arguments json.RawMessage) (*CallResult, error) {
	if len(arguments) == 0 {
		arguments = json.RawMessage(`{}`)
	}
	var result CallResult
	if err := c.post(ctx, methodToolsCall, callParams{Name: name, Arguments: arguments}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListTools fetches the tool catalog.
func (c *Client) ListTools(ctx context.Context) ([]domain.ToolDefinition, error) {
	var result listResult
	if err := c.post(ctx, methodToolsList, nil, &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

// Health probes GET {base}/actuator/health. A 2xx status means alive;
// anything else is an error.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("mcp health request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("mcp health do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("mcp health: %s", resp.Status)
	}
	return nil
}

// post sends one JSON-RPC request and decodes the result field into out.
func (c *Client) post(ctx context.Context, method string, params any, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body := rpcRequest{
		JSONRPC: "2.0",
		ID:      atomic.AddInt64(&c.nextID, 1),
		Method:  method,
		Params:  params,
	}
	raw, err := c.marshalFunc(body)
	if err != nil {
		return fmt.Errorf("mcp marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("mcp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("mcp do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("mcp endpoint: %s", resp.Status)
	}
	var rpc rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpc); err != nil {
		return fmt.Errorf("mcp decode: %w", err)
	}
	if rpc.Error != nil {
		return rpc.Error
	}
	if len(rpc.Result) == 0 {
		return fmt.Errorf("mcp: response has neither result nor error")
	}
	if err := json.Unmarshal(rpc.Result, out); err != nil {
		return fmt.Errorf("mcp decode result: %w", err)
	}
	return nil
}
