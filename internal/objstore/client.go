// Package objstore provides an HTTP client for the object-storage service
// that holds avatar objects and issues time-limited signed URLs for them.
package objstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Storage endpoints, relative to the base URL.
const (
	objectPath = "/object/"
	signPath   = "/object/sign/"
)

// encodePathSegments URL-encodes each segment of a slash-separated path.
// Characters like #, ?, %, and spaces are encoded per-segment so an object
// path is safe for interpolation into request URLs — an unescaped # would
// silently truncate the path to everything before it.
func encodePathSegments(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}

	return strings.Join(segments, "/")
}

// TokenSource provides the bearer credential for storage requests.
// The session store provides the real implementation.
type TokenSource interface {
	Token(ctx context.Context) string
}

// StorageError is a non-2xx response from the storage service.
type StorageError struct {
	StatusCode int
	Message    string
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("objstore: HTTP %d: %s", e.StatusCode, e.Message)
}

// Client talks to the object-storage service. Like the notes API client it
// is a single-shot transport: no retry, no backoff.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	token      TokenSource
	logger     *slog.Logger
}

// NewClient creates a storage client.
func NewClient(baseURL, apiKey string, httpClient *http.Client, token TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		token:      token,
		logger:     logger,
	}
}

// Upload stores raw bytes at the given path. The bytes are carried verbatim;
// no inspection or transformation happens client-side. With overwrite false,
// the service rejects uploads to an existing path.
func (c *Client) Upload(ctx context.Context, path string, data []byte, overwrite bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+objectPath+encodePathSegments(path), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("objstore: creating upload request: %w", err)
	}

	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("x-upsert", strconv.FormatBool(overwrite))
	c.authorize(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("objstore: uploading %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return readError(resp)
	}

	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain to reuse connection

	c.logger.Debug("object uploaded",
		slog.String("path", path),
		slog.Int("size", len(data)),
	)

	return nil
}

type signRequest struct {
	ExpiresIn int `json:"expiresIn"`
}

type signResponse struct {
	SignedURL string `json:"signedURL"`
}

// CreateSignedURL requests a time-limited read URL for the object at path.
// The returned URL is absolute. It is derived state: callers display it and
// drop it, never persist it.
func (c *Client) CreateSignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	body, err := json.Marshal(signRequest{ExpiresIn: int(ttl.Seconds())})
	if err != nil {
		return "", fmt.Errorf("objstore: encoding sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+signPath+encodePathSegments(path), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("objstore: creating sign request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	c.authorize(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("objstore: signing %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", readError(resp)
	}

	var sr signResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("objstore: decoding sign response: %w", err)
	}

	if sr.SignedURL == "" {
		return "", fmt.Errorf("objstore: sign response missing signedURL")
	}

	// Service-relative URLs are resolved against the base URL.
	if strings.HasPrefix(sr.SignedURL, "/") {
		return c.baseURL + sr.SignedURL, nil
	}

	return sr.SignedURL, nil
}

// authorize attaches the API key and, when available, the bearer credential.
// A missing token does not block the request.
func (c *Client) authorize(ctx context.Context, req *http.Request) {
	req.Header.Set("apikey", c.apiKey)

	if tok := c.token.Token(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	} else {
		c.logger.Warn("no access token available, sending storage request unauthenticated",
			slog.String("path", req.URL.Path),
		)
	}
}

func readError(resp *http.Response) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		body = []byte("(failed to read response body)")
	}

	return &StorageError{StatusCode: resp.StatusCode, Message: string(body)}
}
