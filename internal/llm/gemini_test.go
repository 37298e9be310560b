package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"parley/internal/domain"
)

// userTurn builds a minimal one-message history ending with the user.
func userTurn(content string) []domain.Message {
	return []domain.Message{{Role: domain.RoleUser, Content: content}}
}

type failingTransport struct{}

func (f *failingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return nil, fmt.Errorf("intentional HTTP failure for testing")
}

func failingMarshalFunc(v interface{}) ([]byte, error) {
	return nil, fmt.Errorf("intentional marshal failure for testing")
}

func TestNewGeminiProvider_ShouldCreateProvider(t *testing.T) {
	p := NewGeminiProvider("key", "gemini-pro")
	if p.apiKey != "key" || p.model != "gemini-pro" {
		t.Errorf("expected key=key model=gemini-pro, got key=%q model=%q", p.apiKey, p.model)
	}
}

func TestGeminiProvider_Generate_WhenContextCanceled_ShouldReturnError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewGeminiProvider("key", "gemini-pro")

	_, err := p.Generate(ctx, userTurn("hi"))
	if err == nil {
		t.Error("expected error when context canceled")
	}
}

func TestGeminiProvider_Generate_WhenAPISuccess_ShouldReturnResponse(t *testing.T) {
	mockResp := `{
		"candidates": [{
			"content": {
				"parts": [{"text": "Hello from Gemini"}]
			}
		}]
	}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		w.Write([]byte(mockResp))
	}))
	defer server.Close()

	p := NewGeminiProvider("test-key", "gemini-pro")
	p.baseURL = server.URL
	p.client = server.Client()

	result, err := p.Generate(context.Background(), userTurn("hi"))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result != "Hello from Gemini" {
		t.Errorf("expected 'Hello from Gemini', got %q", result)
	}
}

func TestGeminiProvider_Generate_ShouldMapRolesOntoWire(t *testing.T) {
	var captured geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &captured); err != nil {
			t.Errorf("request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "ok"}]}}]}`))
	}))
	defer server.Close()

	p := NewGeminiProvider("key", "gemini-pro")
	p.baseURL = server.URL
	p.client = server.Client()

	history := []domain.Message{
		{Role: domain.RoleUser, Content: "how many users?"},
		{Role: domain.RoleAssistant, Content: "42"},
		{Role: domain.RoleUser, Content: "and yesterday?"},
	}
	if _, err := p.Generate(context.Background(), history); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(captured.Contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(captured.Contents))
	}
	wantRoles := []string{"user", "model", "user"}
	for i, c := range captured.Contents {
		if c.Role != wantRoles[i] {
			t.Errorf("content %d: role %q, want %q", i, c.Role, wantRoles[i])
		}
	}
	if captured.Contents[2].Parts[0].Text != "and yesterday?" {
		t.Errorf("last content text: got %q", captured.Contents[2].Parts[0].Text)
	}
}

func TestGeminiProvider_Generate_ShouldSkipSystemMessages(t *testing.T) {
	var captured geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &captured)
		w.WriteHeader(200)
		w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "ok"}]}}]}`))
	}))
	defer server.Close()

	p := NewGeminiProvider("key", "gemini-pro")
	p.baseURL = server.URL
	p.client = server.Client()

	history := []domain.Message{
		{Role: domain.RoleSystem, Content: "be terse"},
		{Role: domain.RoleUser, Content: "hi"},
	}
	if _, err := p.Generate(context.Background(), history); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(captured.Contents) != 1 || captured.Contents[0].Role != "user" {
		t.Errorf("expected only the user content on the wire, got %+v", captured.Contents)
	}
}

func TestGeminiProvider_Generate_WhenNoSendableMessages_ShouldReturnError(t *testing.T) {
	p := NewGeminiProvider("key", "gemini-pro")

	_, err := p.Generate(context.Background(), []domain.Message{{Role: domain.RoleSystem, Content: "x"}})
	if err == nil || !strings.Contains(err.Error(), "no sendable messages") {
		t.Errorf("expected no sendable messages error, got %v", err)
	}
}

func TestGeminiProvider_Generate_WhenAPIError_ShouldReturnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
		w.Write([]byte("Internal Server Error"))
	}))
	defer server.Close()

	p := NewGeminiProvider("key", "gemini-pro")
	p.baseURL = server.URL
	p.client = server.Client()

	_, err := p.Generate(context.Background(), userTurn("hi"))
	if err == nil || !bytes.Contains([]byte(err.Error()), []byte("500")) {
		t.Errorf("expected error containing 500, got %v", err)
	}
}

func TestGeminiProvider_Generate_WhenAPIEmptyContent_ShouldReturnEmptyString(t *testing.T) {
	mockResp := `{"candidates": [{"content": {"parts": []}}]}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		w.Write([]byte(mockResp))
	}))
	defer server.Close()

	p := NewGeminiProvider("key", "gemini-pro")
	p.baseURL = server.URL
	p.client = server.Client()

	result, err := p.Generate(context.Background(), userTurn("hi"))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result != "" {
		t.Errorf("expected empty string, got %q", result)
	}
}

func TestGeminiProvider_Generate_WhenAPIInvalidJSON_ShouldReturnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		w.Write([]byte("invalid json"))
	}))
	defer server.Close()

	p := NewGeminiProvider("key", "gemini-pro")
	p.baseURL = server.URL
	p.client = server.Client()

	_, err := p.Generate(context.Background(), userTurn("hi"))
	if err == nil || !strings.Contains(err.Error(), "gemini decode") {
		t.Errorf("expected decode error, got %v", err)
	}
}

func TestGeminiProvider_Generate_WhenAPIMultipleTextParts_ShouldConcatenateText(t *testing.T) {
	mockResp := `{
		"candidates": [{
			"content": {
				"parts": [
					{"text": "Hello"},
					{"text": " from"},
					{"text": " Gemini"}
				]
			}
		}]
	}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		w.Write([]byte(mockResp))
	}))
	defer server.Close()

	p := NewGeminiProvider("key", "gemini-pro")
	p.baseURL = server.URL
	p.client = server.Client()

	result, err := p.Generate(context.Background(), userTurn("hi"))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result != "Hello from Gemini" {
		t.Errorf("expected 'Hello from Gemini', got %q", result)
	}
}

func TestGeminiProvider_Generate_WhenMarshalFails_ShouldReturnError(t *testing.T) {
	p := NewGeminiProvider("key", "gemini-pro")
	p.marshalFunc = failingMarshalFunc

	_, err := p.Generate(context.Background(), userTurn("hi"))
	if err == nil || !strings.Contains(err.Error(), "gemini marshal") {
		t.Errorf("expected marshal error, got %v", err)
	}
}

func TestGeminiProvider_Generate_WhenHTTPDoFails_ShouldReturnError(t *testing.T) {
	p := NewGeminiProvider("key", "gemini-pro")
	p.client = &http.Client{
		Transport: &failingTransport{},
	}

	_, err := p.Generate(context.Background(), userTurn("hi"))
	if err == nil || !strings.Contains(err.Error(), "gemini do") {
		t.Errorf("expected do error, got %v", err)
	}
}

func TestGeminiProvider_Generate_WhenInvalidURL_ShouldReturnError(t *testing.T) {
	p := NewGeminiProvider("key", "gemini-pro")
	p.baseURL = "http://invalid\x00url" // Invalid URL with null byte

	_, err := p.Generate(context.Background(), userTurn("hi"))
	if err == nil || !strings.Contains(err.Error(), "gemini request") {
		t.Errorf("expected request creation error, got %v", err)
	}
}

func TestGeminiProvider_Generate_WhenAPINoCandidates_ShouldReturnError(t *testing.T) {
	mockResp := `{"candidates": []}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		w.Write([]byte(mockResp))
	}))
	defer server.Close()

	p := NewGeminiProvider("key", "gemini-pro")
	p.baseURL = server.URL
	p.client = server.Client()

	_, err := p.Generate(context.Background(), userTurn("hi"))
	if err == nil || !strings.Contains(err.Error(), "no candidates") {
		t.Errorf("expected no candidates error, got %v", err)
	}
}
