package rewrite

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	retouch "github.com/Paranoid-AF/retouch"
)

const testKey = "sk-test-secret-1234"

func testRequest() Request {
	return Request{
		SourceText:     "helo wrld",
		PromptTemplate: "Fix the spelling.",
		ModelID:        "gpt-4o-mini",
	}
}

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/")
}

func TestRequestPrompt(t *testing.T) {
	if got, want := testRequest().Prompt(), "Fix the spelling.\n\nhelo wrld"; got != want {
		t.Errorf("Prompt() = %q, want %q", got, want)
	}
}

func TestRewriteSendsChatCompletion(t *testing.T) {
	var gotPath, gotAuth, gotContentType string
	var gotBody chatCompletionsRequest

	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"hello world"}}]}`)
	})

	got, err := client.Rewrite(context.Background(), testRequest(), testKey)
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	if got != "hello world" {
		t.Errorf("Rewrite() = %q, want %q", got, "hello world")
	}
	if gotPath != "/chat/completions" {
		t.Errorf("path = %q, want /chat/completions", gotPath)
	}
	if gotAuth != "Bearer "+testKey {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if gotBody.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", gotBody.Model)
	}
	if len(gotBody.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(gotBody.Messages))
	}
	if gotBody.Messages[0].Role != "user" || gotBody.Messages[0].Content != "Fix the spelling.\n\nhelo wrld" {
		t.Errorf("message = %+v", gotBody.Messages[0])
	}
}

func TestRewriteAPIError(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":{"message":"server exploded","type":"server_error"}}`)
	})

	_, err := client.Rewrite(context.Background(), testRequest(), testKey)
	if !retouch.Is(err, retouch.KindAPI) {
		t.Fatalf("expected api_error, got %v", err)
	}
	e := err.(*retouch.Error)
	if e.Status != 500 {
		t.Errorf("Status = %d, want 500", e.Status)
	}
	if !strings.Contains(e.Detail, "server exploded") {
		t.Errorf("Detail = %q", e.Detail)
	}
}

func TestRewriteAPIErrorDoesNotLeakCredential(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"Incorrect API key provided: `+testKey+`"}}`)
	})

	_, err := client.Rewrite(context.Background(), testRequest(), testKey)
	if !retouch.Is(err, retouch.KindAPI) {
		t.Fatalf("expected api_error, got %v", err)
	}
	if strings.Contains(err.Error(), testKey) {
		t.Errorf("credential leaked in error: %v", err)
	}
	if !strings.Contains(err.Error(), "[REDACTED]") {
		t.Errorf("expected redaction marker, got %v", err)
	}
}

func TestRewriteAPIErrorPlainBody(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, strings.Repeat("x", 1000))
	})

	_, err := client.Rewrite(context.Background(), testRequest(), testKey)
	e, ok := err.(*retouch.Error)
	if !ok || e.Kind != retouch.KindAPI {
		t.Fatalf("expected api_error, got %v", err)
	}
	if len(e.Detail) > maxDetailLen+50 {
		t.Errorf("detail not truncated: %d bytes", len(e.Detail))
	}
}

func TestRewriteMalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>oops</html>`},
		{"no choices", `{"choices":[]}`},
		{"missing choices", `{}`},
		{"empty content", `{"choices":[{"message":{"content":"   "}}]}`},
		{"error object", `{"error":{"message":"quota"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			})
			_, err := client.Rewrite(context.Background(), testRequest(), testKey)
			if !retouch.Is(err, retouch.KindMalformedResponse) {
				t.Errorf("expected malformed_response, got %v", err)
			}
		})
	}
}

func TestRewriteTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).Rewrite(context.Background(), testRequest(), testKey)
	if !retouch.Is(err, retouch.KindTransport) {
		t.Fatalf("expected transport_error, got %v", err)
	}
	if strings.Contains(err.Error(), testKey) {
		t.Errorf("credential leaked in error: %v", err)
	}
}

func TestRewriteHonorsDeadline(t *testing.T) {
	release := make(chan struct{})
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Rewrite(ctx, testRequest(), testKey)
	if !retouch.Is(err, retouch.KindCancelled) {
		t.Fatalf("expected cancelled, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("deadline was not honored")
	}
}

func TestRewriteCancelledBeforeSend(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Rewrite(ctx, testRequest(), testKey)
	if !retouch.Is(err, retouch.KindCancelled) {
		t.Fatalf("expected cancelled, got %v", err)
	}
}
