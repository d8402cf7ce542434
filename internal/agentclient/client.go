// ABOUTME: Authenticated HTTP client for the agent service /query and /reset endpoints
// ABOUTME: Attaches the current bearer credential per call and normalizes failures

package agentclient

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
)

// DefaultTimeout is the HTTP timeout used when none is configured.
const DefaultTimeout = 30 * time.Second

// maxResponseSize limits response body reads.
const maxResponseSize = 1 << 20

// CredentialProvider supplies the current bearer token.
// An empty token means no credential is available.
type CredentialProvider interface {
	Token() string
}

// CredentialFunc adapts a plain function to CredentialProvider.
type CredentialFunc func() string

// Token calls f.
func (f CredentialFunc) Token() string {
	return f()
}

// AttachAuth sets the Authorization header from the provider's current token.
// The header is removed when the provider has no token.
func AttachAuth(req *http.Request, creds CredentialProvider) {
	token := ""
	if creds != nil {
		token = creds.Token()
	}
	if token == "" {
		req.Header.Del("Authorization")
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

// Client talks to a single agent service base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      CredentialProvider
	timeout    time.Duration
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the transport timeout. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client for baseURL. creds is consulted on every request.
func New(baseURL string, creds CredentialProvider, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		creds:      creds,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	c.logger = c.logger.With("component", "agentclient")
	return c
}

// BaseURL returns the agent service base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type queryRequest struct {
	Query string `json:"query"`
}

type agentResponse struct {
	Response *string `json:"response"`
}

// errorBody covers the FastAPI {"detail": ...} convention and the
// {"error": ...} shape used by gateway-style services.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
	Error  string          `json:"error"`
}

// QueryAgent sends text to POST /query and returns the agent's response.
func (c *Client) QueryAgent(ctx context.Context, text string) (string, error) {
	return c.post(ctx, "/query", queryRequest{Query: text}, MsgQueryFailed)
}

// ResetAgent asks the agent service to reset the conversation via POST /reset
// and returns the acknowledgement message.
func (c *Client) ResetAgent(ctx context.Context) (string, error) {
	return c.post(ctx, "/reset", struct{}{}, MsgResetFailed)
}

// post performs one JSON POST and maps the outcome onto the two error kinds.
func (c *Client) post(ctx context.Context, path string, body any, fallback string) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", &RequestError{Message: fallback, Err: fmt.Errorf("marshaling request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return "", &RequestError{Message: messageOr(err.Error(), fallback), Err: err}
	}
	requestID := uuid.New().String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	AttachAuth(req, c.creds)

	logger := c.logger.With("path", path, "request_id", requestID)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Debug("agent request failed", "error", err)
		return "", &RequestError{Message: messageOr(err.Error(), fallback), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return "", &RequestError{
			Message:    messageOr(err.Error(), fallback),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("reading response: %w", err),
		}
	}
	if len(data) > maxResponseSize {
		return "", &RequestError{
			Message:    fmt.Sprintf("response exceeds maximum size of %d bytes", maxResponseSize),
			StatusCode: resp.StatusCode,
		}
	}

	logger.Debug("agent request completed",
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode == http.StatusUnauthorized {
		return "", &UnauthorizedError{Message: messageOr(errorMessage(data), MsgUnauthorized)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := errorMessage(data)
		if msg == "" {
			msg = fmt.Sprintf("server returned status %d", resp.StatusCode)
		}
		return "", &RequestError{Message: msg, StatusCode: resp.StatusCode}
	}

	var out agentResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", &RequestError{
			Message:    messageOr(fmt.Sprintf("decoding response: %v", err), fallback),
			StatusCode: resp.StatusCode,
			Err:        err,
		}
	}
	if out.Response == nil {
		return "", &RequestError{Message: fallback, StatusCode: resp.StatusCode}
	}

	return *out.Response, nil
}

// errorMessage extracts a human-readable message from an error body.
// A string "detail" wins over "error"; non-string details are ignored.
func errorMessage(data []byte) string {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if len(body.Detail) > 0 {
		var detail string
		if err := json.Unmarshal(body.Detail, &detail); err == nil && detail != "" {
			return detail
		}
	}
	return body.Error
}
