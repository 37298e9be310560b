package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func nextHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

// ===== BearerAuth tests =====

func TestBearerAuth_WhenTokenEmpty_ShouldPassThrough(t *testing.T) {
	called := false
	h := BearerAuth("")(nextHandler(&called))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chats", nil))

	if !called {
		t.Error("handler not reached with auth disabled")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("want 200, got %d", rec.Code)
	}
}

func TestBearerAuth_WhenHeaderMissing_ShouldReturn401(t *testing.T) {
	called := false
	h := BearerAuth("secret")(nextHandler(&called))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chats", nil))

	if called {
		t.Error("handler must not run without a token")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("want 401, got %d", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); got != `Bearer realm="parley"` {
		t.Errorf("want challenge header, got %q", got)
	}
	env := decodeEnvelope(t, rec.Body)
	if env.Error.Message != "missing or invalid bearer token" {
		t.Errorf("unexpected error message %q", env.Error.Message)
	}
}

func TestBearerAuth_WhenTokenWrong_ShouldReturn401(t *testing.T) {
	for _, auth := range []string{"Bearer wrong", "Bearer ", "Basic c2VjcmV0", "secret"} {
		called := false
		h := BearerAuth("secret")(nextHandler(&called))

		req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
		req.Header.Set("Authorization", auth)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if called {
			t.Errorf("header %q: handler must not run", auth)
		}
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: want 401, got %d", auth, rec.Code)
		}
	}
}

func TestBearerAuth_WhenTokenCorrect_ShouldPass(t *testing.T) {
	called := false
	h := BearerAuth("secret")(nextHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !called {
		t.Error("handler not reached with correct token")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("want 200, got %d", rec.Code)
	}
}

func TestBearerAuth_WhenTokenHasTrailingSpace_ShouldPass(t *testing.T) {
	called := false
	h := BearerAuth("secret")(nextHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	req.Header.Set("Authorization", "Bearer secret ")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !called {
		t.Error("trailing whitespace must not reject an otherwise valid token")
	}
}

// ===== CORS tests =====

func TestCORS_WhenOriginListed_ShouldEchoWithCredentials(t *testing.T) {
	called := false
	h := CORS([]string{"https://app.example.com"})(nextHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !called {
		t.Error("handler not reached")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("want origin echoed, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("explicit origin must allow credentials, got %q", got)
	}
}

func TestCORS_WhenWildcard_ShouldEchoWithoutCredentials(t *testing.T) {
	called := false
	h := CORS([]string{"*"})(nextHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://anywhere.example.com" {
		t.Errorf("wildcard must echo the caller origin, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("wildcard must not grant credentials, got %q", got)
	}
}

func TestCORS_WhenOriginNotListed_ShouldOmitHeaders(t *testing.T) {
	h := CORS([]string{"https://app.example.com"})(nextHandler(new(bool)))

	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin must get no CORS headers, got %q", got)
	}
}

func TestCORS_WhenNoOriginHeader_ShouldOmitHeaders(t *testing.T) {
	called := false
	h := CORS([]string{"*"})(nextHandler(&called))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chats", nil))

	if !called {
		t.Error("same-origin request must pass through")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("no Origin header must mean no CORS headers, got %q", got)
	}
}

func TestCORS_WhenPreflight_ShouldShortCircuit(t *testing.T) {
	called := false
	h := CORS([]string{"https://app.example.com"})(nextHandler(&called))

	req := httptest.NewRequest(http.MethodOptions, "/api/chats", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if called {
		t.Error("preflight must not reach the handler")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("want 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got == "" {
		t.Error("preflight response missing allowed methods")
	}
}
