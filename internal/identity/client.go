package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/text/unicode/norm"

	"github.com/jkorhonen/notes-go/internal/sessionfile"
)

// Identity provider endpoints, relative to the base URL. The token endpoint
// speaks standard OAuth2 resource-owner-password-credentials.
const (
	tokenPath  = "/token"
	signupPath = "/signup"
	logoutPath = "/logout"
)

// apiKeyHeader carries the provider's public API key on every request.
const apiKeyHeader = "apikey"

// Options configures a Client.
type Options struct {
	BaseURL     string
	APIKey      string
	SessionPath string // on-disk session cache; empty disables persistence
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Client talks to the identity provider. It owns the process's OAuth2 token
// source: sign-in installs one, sign-out clears it, and silent refreshes are
// detected and broadcast to subscribers as session-change events.
type Client struct {
	baseURL     string
	apiKey      string
	sessionPath string
	httpClient  *http.Client
	oauthCfg    *oauth2.Config
	logger      *slog.Logger

	// authCtx binds the oauth2 token source to the process lifetime so a
	// canceled request context cannot break silent refresh later.
	authCtx context.Context

	mu      sync.Mutex
	source  oauth2.TokenSource
	current *Session
	subs    map[int]func(*Session)
	nextSub int
}

// keyTransport adds the provider API key header to every outgoing request,
// including the oauth2 library's own token refresh calls.
type keyTransport struct {
	key  string
	base http.RoundTripper
}

func (t *keyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set(apiKeyHeader, t.key)

	return t.base.RoundTrip(clone)
}

// New creates an identity Client and attempts to restore a previously saved
// session from opts.SessionPath. Restore failures are logged and leave the
// client signed out — they are never fatal.
func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := opts.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}

	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	httpClient := &http.Client{
		Transport: &keyTransport{key: opts.APIKey, base: transport},
		Timeout:   base.Timeout,
	}

	c := &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		apiKey:      opts.APIKey,
		sessionPath: opts.SessionPath,
		httpClient:  httpClient,
		logger:      logger,
		subs:        make(map[int]func(*Session)),
	}

	c.authCtx = context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
	c.oauthCfg = &oauth2.Config{
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.baseURL + tokenPath,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	c.restore()

	return c
}

// restore loads a saved token from disk and installs it without emitting an
// event — at construction time there are no subscribers yet.
func (c *Client) restore() {
	if c.sessionPath == "" {
		return
	}

	tok, err := sessionfile.Load(c.sessionPath)
	if err != nil {
		c.logger.Warn("failed to restore saved session",
			slog.String("path", c.sessionPath),
			slog.String("error", err.Error()),
		)

		return
	}

	if tok == nil {
		return
	}

	sess, err := sessionFromToken(tok)
	if err != nil {
		c.logger.Warn("saved session is unusable, ignoring",
			slog.String("path", c.sessionPath),
			slog.String("error", err.Error()),
		)

		return
	}

	c.mu.Lock()
	c.current = sess
	c.source = c.oauthCfg.TokenSource(c.authCtx, tok)
	c.mu.Unlock()

	c.logger.Info("restored saved session",
		slog.String("user_id", sess.User.ID),
		slog.Time("expiry", sess.Expiry),
	)
}

// SignInWithPassword exchanges credentials for a session. The email is
// trimmed and NFC-normalized before submission. A provider rejection is
// returned as a *CredentialError carrying the provider's reason verbatim.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	email = NormalizeEmail(email)

	tok, err := c.oauthCfg.PasswordCredentialsToken(c.requestCtx(ctx), email, password)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return nil, &CredentialError{Reason: retrieveReason(rerr)}
		}

		return nil, fmt.Errorf("identity: sign-in request failed: %w", err)
	}

	sess, err := sessionFromToken(tok)
	if err != nil {
		return nil, err
	}

	c.install(sess, tok)

	c.logger.Info("signed in",
		slog.String("user_id", sess.User.ID),
		slog.Time("expiry", sess.Expiry),
	)

	return copySession(sess), nil
}

// SignUp registers a new account. It does not sign the user in — the
// provider may require email confirmation first.
func (c *Client) SignUp(ctx context.Context, email, password string) error {
	email = NormalizeEmail(email)

	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return fmt.Errorf("identity: encoding sign-up request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+signupPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("identity: creating sign-up request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity: sign-up request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		c.logger.Info("sign-up accepted", slog.String("email", email))
		return nil
	}

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError {
		return &CredentialError{Reason: parseReason(respBody)}
	}

	return &ProviderError{StatusCode: resp.StatusCode, Message: string(respBody)}
}

// CurrentSession returns the active session, refreshing the credential
// through the provider if it has expired. Returns (nil, nil) when signed
// out. A refresh detected here (token rotated underneath the caller) is
// installed and broadcast before returning.
func (c *Client) CurrentSession(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	src := c.source
	cur := c.current
	c.mu.Unlock()

	if src == nil {
		return nil, nil
	}

	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("identity: querying session: %w", err)
	}

	if cur != nil && tok.AccessToken == cur.AccessToken {
		return copySession(cur), nil
	}

	// The oauth2 source refreshed the token silently. Re-derive the session,
	// persist it, and tell subscribers.
	sess, err := sessionFromToken(tok)
	if err != nil {
		return nil, err
	}

	c.install(sess, tok)

	c.logger.Info("session refreshed",
		slog.String("user_id", sess.User.ID),
		slog.Time("expiry", sess.Expiry),
	)

	return copySession(sess), nil
}

// SignOut requests provider-side invalidation, then clears local state
// regardless of whether the provider call succeeded. The provider error, if
// any, is returned for logging; callers must treat sign-out as complete.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()

	var signOutErr error

	if cur != nil {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+logoutPath, nil)
		if err != nil {
			signOutErr = fmt.Errorf("identity: creating sign-out request: %w", err)
		} else {
			req.Header.Set("Authorization", "Bearer "+cur.AccessToken)

			resp, doErr := c.httpClient.Do(req)
			if doErr != nil {
				signOutErr = fmt.Errorf("identity: sign-out request failed: %w", doErr)
			} else {
				io.Copy(io.Discard, resp.Body) //nolint:errcheck // best-effort drain
				resp.Body.Close()

				if resp.StatusCode >= http.StatusMultipleChoices {
					signOutErr = &ProviderError{StatusCode: resp.StatusCode, Message: "sign-out rejected"}
				}
			}
		}
	}

	c.clearLocal()
	c.logger.Info("signed out", slog.Bool("provider_confirmed", signOutErr == nil))

	return signOutErr
}

// Subscribe registers fn to be called with the new session (or nil) whenever
// sign-in, sign-out, or token refresh replaces the active session. The
// returned function unsubscribes; it is safe to call more than once.
func (c *Client) Subscribe(fn func(*Session)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// install replaces the active session wholesale, persists the token, and
// notifies subscribers. Events always win over whatever was present.
func (c *Client) install(sess *Session, tok *oauth2.Token) {
	c.mu.Lock()
	c.current = sess
	c.source = c.oauthCfg.TokenSource(c.authCtx, tok)
	c.mu.Unlock()

	c.persist(tok)
	c.emit(sess)
}

// clearLocal drops the session and its on-disk cache and notifies
// subscribers with nil.
func (c *Client) clearLocal() {
	c.mu.Lock()
	c.current = nil
	c.source = nil
	c.mu.Unlock()

	if c.sessionPath != "" {
		if err := sessionfile.Remove(c.sessionPath); err != nil {
			c.logger.Warn("failed to remove session file",
				slog.String("path", c.sessionPath),
				slog.String("error", err.Error()),
			)
		}
	}

	c.emit(nil)
}

func (c *Client) persist(tok *oauth2.Token) {
	if c.sessionPath == "" {
		return
	}

	if err := sessionfile.Save(c.sessionPath, tok); err != nil {
		c.logger.Warn("failed to persist session",
			slog.String("path", c.sessionPath),
			slog.String("error", err.Error()),
		)
	}
}

// emit calls subscribers outside the client mutex. Each subscriber receives
// its own copy of the session.
func (c *Client) emit(sess *Session) {
	c.mu.Lock()
	fns := make([]func(*Session), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(copySession(sess))
	}
}

// requestCtx routes oauth2 library calls through the client's keyed transport.
func (c *Client) requestCtx(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func copySession(sess *Session) *Session {
	if sess == nil {
		return nil
	}

	cp := *sess

	return &cp
}

// retrieveReason extracts the provider's rejection reason from an OAuth2
// error response, verbatim where the provider supplied one.
func retrieveReason(rerr *oauth2.RetrieveError) string {
	if rerr.ErrorDescription != "" {
		return rerr.ErrorDescription
	}

	if rerr.ErrorCode != "" {
		return rerr.ErrorCode
	}

	return parseReason(rerr.Body)
}

// parseReason digs a human-readable message out of a provider error body.
// Falls back to the raw body when no known field is present.
func parseReason(body []byte) string {
	var fields struct {
		ErrorDescription string `json:"error_description"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorField       string `json:"error"`
	}

	if err := json.Unmarshal(body, &fields); err == nil {
		for _, s := range []string{fields.ErrorDescription, fields.Msg, fields.Message, fields.ErrorField} {
			if s != "" {
				return s
			}
		}
	}

	return strings.TrimSpace(string(body))
}

// NormalizeEmail trims surrounding whitespace and applies Unicode NFC so
// visually identical addresses compare equal at the provider.
func NormalizeEmail(email string) string {
	return norm.NFC.String(strings.TrimSpace(email))
}
