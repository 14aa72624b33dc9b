// Package rewrite sends rewrite requests to an OpenAI-compatible
// chat-completions endpoint and maps the result to a suggestion or a
// typed retouch.Error.
package rewrite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	retouch "github.com/Paranoid-AF/retouch"
)

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 4 << 20

// maxDetailLen bounds the response excerpt kept in error details.
const maxDetailLen = 300

// Request is one rewrite of SourceText. It is built per trigger and never modified.
type Request struct {
	SourceText     string
	PromptTemplate string
	ModelID        string
}

// Prompt returns the single user message: the template, a blank line, then the text.
func (r Request) Prompt() string {
	return r.PromptTemplate + "\n\n" + r.SourceText
}

// Rewriter turns a Request into a suggestion.
type Rewriter interface {
	Rewrite(ctx context.Context, req Request, credential string) (string, error)
}

// Client performs rewrites via the chat completions API.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for the API at baseURL (e.g. https://api.openai.com/v1).
// No timeout is applied; callers bound requests with their context.
func NewClient(baseURL string) *Client {
	return NewClientWithHTTP(baseURL, &http.Client{})
}

// NewClientWithHTTP creates a client that sends requests through hc.
func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  hc,
	}
}

type chatCompletionsRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *apiError    `json:"error,omitempty"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Rewrite sends one chat completion request and returns the suggestion.
// Every error is a *retouch.Error; none of them mention the credential.
func (c *Client) Rewrite(ctx context.Context, req Request, credential string) (string, error) {
	reqBody := chatCompletionsRequest{
		Model: req.ModelID,
		Messages: []chatMessage{
			{Role: "user", Content: req.Prompt()},
		},
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", retouch.NewTransport(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", retouch.NewTransport(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+credential)

	slog.Debug("rewrite request", "model", req.ModelID, "chars", len(req.SourceText))

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", failure(ctx, err, credential)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", failure(ctx, err, credential)
	}

	slog.Debug("rewrite response", "status", resp.StatusCode, "bytes", len(body))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", retouch.NewAPI(resp.StatusCode, errorDetail(resp.StatusCode, []byte(redact(string(body), credential))))
	}

	var result chatCompletionsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", retouch.NewMalformedResponse(redact(fmt.Sprintf("failed to parse response: %v", err), credential))
	}

	if result.Error != nil {
		return "", retouch.NewMalformedResponse(redact("API error: "+result.Error.Message, credential))
	}

	if len(result.Choices) == 0 {
		return "", retouch.NewMalformedResponse("no choices in response")
	}

	suggestion := result.Choices[0].Message.Content
	if strings.TrimSpace(suggestion) == "" {
		return "", retouch.NewMalformedResponse("empty suggestion in response")
	}
	return suggestion, nil
}

// failure classifies a transport-level error, preferring the context's own
// error so that deadlines and cancellation map to KindCancelled.
func failure(ctx context.Context, err error, credential string) *retouch.Error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return retouch.NewCancelled(ctxErr)
	}
	e := retouch.NewTransport(err)
	e.Detail = redact(e.Detail, credential)
	return e
}

// errorDetail extracts the API's error message, or an excerpt of the body.
func errorDetail(status int, body []byte) string {
	var result chatCompletionsResponse
	if err := json.Unmarshal(body, &result); err == nil && result.Error != nil && result.Error.Message != "" {
		return fmt.Sprintf("status %d: %s", status, result.Error.Message)
	}
	excerpt := strings.TrimSpace(string(body))
	if len(excerpt) > maxDetailLen {
		excerpt = excerpt[:maxDetailLen] + "..."
	}
	if excerpt == "" {
		return fmt.Sprintf("status %d", status)
	}
	return fmt.Sprintf("status %d: %s", status, excerpt)
}

// redact removes the credential from s. APIs sometimes echo a rejected key.
func redact(s, credential string) string {
	if len(credential) < 4 {
		return s
	}
	return strings.ReplaceAll(s, credential, "[REDACTED]")
}
