// ABOUTME: HTTP client for the serverless-pdf-chat REST API
// ABOUTME: Implements conversation create/fetch/prompt-post plus the document detail endpoint

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/irfanadziri/serverless-pdf-chat/internal/conversation"
)

// defaultTimeout bounds a single request. The prompt post runs the full
// inference round trip server-side before returning, so this is generous.
const defaultTimeout = 2 * time.Minute

// TokenSource supplies the bearer token attached to every request.
type TokenSource interface {
	Token() (string, error)
}

// Client talks to the serverless-pdf-chat API. It implements
// conversation.RemoteChatService.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *slog.Logger
}

var _ conversation.RemoteChatService = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// NewClient creates a client for the API at baseURL. tokens may be nil for
// an unauthenticated endpoint. Pass nil logger for the default.
func NewClient(baseURL string, tokens TokenSource, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		tokens:     tokens,
		logger:     logger.With("component", "api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// createResponse is the JSON body returned by POST /doc/{documentid}.
type createResponse struct {
	ConversationID string `json:"conversationid"`
}

// postPromptRequest is the JSON body sent to POST /{documentid}/{conversationid}.
type postPromptRequest struct {
	FileName string `json:"fileName"`
	Prompt   string `json:"prompt"`
}

// CreateConversation creates a new empty conversation for the document and
// returns its id.
func (c *Client) CreateConversation(ctx context.Context, documentID string) (string, error) {
	var resp createResponse
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/doc/%s", documentID), nil, &resp)
	if err != nil {
		return "", &CreateError{Err: err}
	}
	return resp.ConversationID, nil
}

// GetConversation fetches the authoritative conversation with its full
// message history.
func (c *Client) GetConversation(ctx context.Context, documentID, conversationID string) (*conversation.Conversation, error) {
	var conv conversation.Conversation
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/doc/%s/%s", documentID, conversationID), nil, &conv)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	return &conv, nil
}

// PostPrompt submits a human prompt. The call returns once the backend has
// persisted the prompt, run inference, and persisted the reply; success or
// failure is the only signal consumed.
func (c *Client) PostPrompt(ctx context.Context, documentID, conversationID, fileName, prompt string) error {
	body := postPromptRequest{FileName: fileName, Prompt: prompt}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/%s/%s", documentID, conversationID), body, nil)
	if err != nil {
		return &PostError{Err: err}
	}
	return nil
}

// GetDocument fetches a document together with its conversation list.
func (c *Client) GetDocument(ctx context.Context, documentID string) (*conversation.DocumentDetail, error) {
	var detail conversation.DocumentDetail
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/doc/%s", documentID), nil, &detail)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	return &detail, nil
}

// do issues one request and decodes the JSON response into out (when out is
// non-nil). Non-2xx responses become StatusError with the response body
// attached for display.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	requestID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return fmt.Errorf("resolving token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	c.logger.Debug("request", "method", method, "path", path, "request_id", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("request failed",
			"method", method,
			"path", path,
			"request_id", requestID,
			"status", resp.StatusCode)
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}
