package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

var mintSeq atomic.Int64

// mintToken builds a signed JWT carrying the claims the provider would set.
// The client never verifies signatures, so any key works. A sequence claim
// keeps back-to-back tokens distinct even within the same second.
func mintToken(t *testing.T, sub, email string, exp time.Time) string {
	t.Helper()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"exp":   exp.Unix(),
		"seq":   mintSeq.Add(1),
	})

	signed, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	return signed
}

// providerServer is a minimal identity provider for tests.
type providerServer struct {
	t *testing.T

	mu             sync.Mutex
	password       string
	expiresIn      int
	refreshes      int
	logouts        int
	lastAPIKey     string
	signupCode     int
	signupBody     string
	tokenFor       func() string // access token to mint per grant
	lastLogoutAuth string
}

func newProviderServer(t *testing.T) (*providerServer, *httptest.Server) {
	t.Helper()

	p := &providerServer{t: t, password: "hunter2", expiresIn: 3600, signupCode: http.StatusOK}
	p.tokenFor = func() string {
		return mintToken(t, "u1", "u1@example.com", time.Now().Add(time.Hour))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", p.handleToken)
	mux.HandleFunc("POST /signup", p.handleSignup)
	mux.HandleFunc("POST /logout", p.handleLogout)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return p, srv
}

func (p *providerServer) handleToken(w http.ResponseWriter, r *http.Request) {
	require.NoError(p.t, r.ParseForm())

	p.mu.Lock()
	p.lastAPIKey = r.Header.Get("apikey")
	p.mu.Unlock()

	switch r.PostForm.Get("grant_type") {
	case "password":
		if r.PostForm.Get("password") != p.password {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))

			return
		}
	case "refresh_token":
		p.mu.Lock()
		p.refreshes++
		p.mu.Unlock()
	default:
		http.Error(w, "unsupported grant", http.StatusBadRequest)
		return
	}

	p.mu.Lock()
	expiresIn := p.expiresIn
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  p.tokenFor(),
		"token_type":    "bearer",
		"refresh_token": "refresh-1",
		"expires_in":    expiresIn,
	})
}

func (p *providerServer) handleSignup(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(p.signupCode)
	_, _ = w.Write([]byte(p.signupBody))
}

func (p *providerServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.logouts++
	p.lastLogoutAuth = r.Header.Get("Authorization")
	p.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()

	return New(Options{
		BaseURL:     srv.URL,
		APIKey:      "anon-key",
		SessionPath: filepath.Join(t.TempDir(), "session.json"),
	})
}

func TestSignInWithPassword_Success(t *testing.T) {
	p, srv := newProviderServer(t)
	c := newTestClient(t, srv)

	sess, err := c.SignInWithPassword(context.Background(), "  u1@example.com ", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.User.ID)
	assert.Equal(t, "u1@example.com", sess.User.Email)
	assert.NotEmpty(t, sess.AccessToken)
	assert.Equal(t, "refresh-1", sess.RefreshToken)

	p.mu.Lock()
	assert.Equal(t, "anon-key", p.lastAPIKey)
	p.mu.Unlock()
}

func TestSignInWithPassword_CredentialErrorVerbatim(t *testing.T) {
	_, srv := newProviderServer(t)
	c := newTestClient(t, srv)

	_, err := c.SignInWithPassword(context.Background(), "u1@example.com", "wrong")
	require.Error(t, err)

	var cerr *CredentialError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "Invalid login credentials", cerr.Reason)
}

func TestSignUp_ProviderReasonVerbatim(t *testing.T) {
	p, srv := newProviderServer(t)
	p.signupCode = http.StatusUnprocessableEntity
	p.signupBody = `{"msg":"Password should be at least 6 characters"}`

	c := newTestClient(t, srv)

	err := c.SignUp(context.Background(), "u1@example.com", "ab")
	require.Error(t, err)

	var cerr *CredentialError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "Password should be at least 6 characters", cerr.Reason)
}

func TestSignUp_Success(t *testing.T) {
	p, srv := newProviderServer(t)
	p.signupBody = `{}`

	c := newTestClient(t, srv)
	require.NoError(t, c.SignUp(context.Background(), "new@example.com", "hunter2"))
}

func TestCurrentSession_NilWhenSignedOut(t *testing.T) {
	_, srv := newProviderServer(t)
	c := newTestClient(t, srv)

	sess, err := c.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestCurrentSession_RefreshDetectedAndBroadcast(t *testing.T) {
	p, srv := newProviderServer(t)
	c := newTestClient(t, srv)

	// An already-expired credential forces the oauth2 source to use the
	// refresh grant on the next query.
	p.mu.Lock()
	p.expiresIn = -60
	p.mu.Unlock()

	_, err := c.SignInWithPassword(context.Background(), "u1@example.com", "hunter2")
	require.NoError(t, err)

	p.mu.Lock()
	p.expiresIn = 3600
	p.mu.Unlock()

	var (
		mu     sync.Mutex
		events []*Session
	)

	unsub := c.Subscribe(func(s *Session) {
		mu.Lock()
		events = append(events, s)
		mu.Unlock()
	})
	defer unsub()

	sess, err := c.CurrentSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.True(t, sess.Expiry.After(time.Now()))

	p.mu.Lock()
	assert.Equal(t, 1, p.refreshes)
	p.mu.Unlock()

	// The silent refresh was broadcast as a session-change event.
	mu.Lock()
	require.Len(t, events, 1)
	assert.Equal(t, sess.AccessToken, events[0].AccessToken)
	mu.Unlock()
}

func TestSignOut_InvalidatesAndClears(t *testing.T) {
	p, srv := newProviderServer(t)
	c := newTestClient(t, srv)

	sess, err := c.SignInWithPassword(context.Background(), "u1@example.com", "hunter2")
	require.NoError(t, err)

	var gotNil bool

	unsub := c.Subscribe(func(s *Session) {
		if s == nil {
			gotNil = true
		}
	})
	defer unsub()

	require.NoError(t, c.SignOut(context.Background()))

	p.mu.Lock()
	assert.Equal(t, 1, p.logouts)
	assert.Equal(t, "Bearer "+sess.AccessToken, p.lastLogoutAuth)
	p.mu.Unlock()

	assert.True(t, gotNil)

	after, err := c.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, after)
}

func TestRestore_PriorSessionAtStartup(t *testing.T) {
	_, srv := newProviderServer(t)

	sessionPath := filepath.Join(t.TempDir(), "session.json")

	first := New(Options{BaseURL: srv.URL, APIKey: "anon-key", SessionPath: sessionPath})
	_, err := first.SignInWithPassword(context.Background(), "u1@example.com", "hunter2")
	require.NoError(t, err)

	// A new process starts and restores the saved session without signing in.
	second := New(Options{BaseURL: srv.URL, APIKey: "anon-key", SessionPath: sessionPath})

	sess, err := second.CurrentSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "u1", sess.User.ID)
}

func TestRestore_CorruptFileLeavesSignedOut(t *testing.T) {
	_, srv := newProviderServer(t)

	sessionPath := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(sessionPath, []byte("not json"), 0o600))

	c := New(Options{BaseURL: srv.URL, APIKey: "anon-key", SessionPath: sessionPath})

	sess, err := c.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	_, srv := newProviderServer(t)
	c := newTestClient(t, srv)

	var calls int

	unsub := c.Subscribe(func(*Session) { calls++ })
	unsub()

	_, err := c.SignInWithPassword(context.Background(), "u1@example.com", "hunter2")
	require.NoError(t, err)

	assert.Zero(t, calls)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "user@example.com", NormalizeEmail("  user@example.com\n"))

	// Decomposed é (e + combining acute) folds to the composed form.
	assert.Equal(t, "hélène@example.com", NormalizeEmail("hélène@example.com"))
}

func TestSessionFromToken_MissingSubject(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": "x@example.com"})
	signed, err := tok.SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = sessionFromToken(&oauth2.Token{AccessToken: signed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subject")
}
