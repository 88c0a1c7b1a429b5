package notesapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

const userAgent = "notes-go/0.1"

// TokenSource provides the bearer credential attached to outbound requests.
// Defined at the consumer per "accept interfaces, return structs"; the
// session store provides the real implementation. An empty return means
// "proceed unauthenticated" — the backend rejects what it must.
type TokenSource interface {
	Token(ctx context.Context) string
}

// Client is an HTTP client for the notes backend API. It is a pass-through
// decorator over the transport: it attaches credentials and classifies
// errors, and nothing else. No retry, no backoff — destructive and content
// operations alike are single round trips.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
	logger     *slog.Logger
}

// NewClient creates a notes API client.
func NewClient(baseURL string, httpClient *http.Client, token TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		token:      token,
		logger:     logger,
	}
}

// Do executes a single HTTP request against the backend API. The path is
// appended to the client's base URL. For non-nil bodies, Content-Type is
// set to application/json. The caller closes the response body on success.
//
// A missing token is logged and does not block the request — the request is
// sent without an Authorization header.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("notesapi: creating request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("User-Agent", userAgent)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if tok := c.token.Token(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	} else {
		c.logger.Warn("no access token available, sending request unauthenticated",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("request_id", requestID),
		)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notesapi: %s %s: %w", method, path, err)
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		c.logger.Debug("request succeeded",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)

		return resp, nil
	}

	errBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()

	if readErr != nil {
		errBody = []byte("(failed to read response body)")
	}

	c.logger.Warn("request failed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.String("request_id", requestID),
	)

	return nil, &APIError{
		StatusCode: resp.StatusCode,
		RequestID:  requestID,
		Message:    string(errBody),
		Err:        classifyStatus(resp.StatusCode),
	}
}
