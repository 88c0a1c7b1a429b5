// Package session holds the single source of truth for "who is signed in
// and with what credential". The Store mirrors the identity provider: an
// initial fetch resolves the Loading state, and provider events replace the
// session wholesale from then on.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jkorhonen/notes-go/internal/identity"
)

// Provider is the identity-provider capability the Store consumes.
// Defined here, at the consumer, per "accept interfaces, return structs".
// *identity.Client satisfies it.
type Provider interface {
	// CurrentSession returns the active session, or (nil, nil) when signed out.
	CurrentSession(ctx context.Context) (*identity.Session, error)
	// Subscribe registers a session-change callback and returns an unsubscribe.
	Subscribe(fn func(*identity.Session)) func()
	// SignOut requests provider-side invalidation.
	SignOut(ctx context.Context) error
}

// State is the store's authentication state.
type State int

const (
	// StateLoading holds until the first resolution of either the initial
	// fetch or a provider event.
	StateLoading State = iota
	// StateAuthenticated means a session is active.
	StateAuthenticated
	// StateUnauthenticated means no session is active.
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Store owns the current Session and User. It is the only component that
// talks to the identity provider; everything else reads through it.
type Store struct {
	provider Provider
	logger   *slog.Logger

	mu      sync.Mutex
	state   State
	session *identity.Session

	unsubscribe func()
	closeOnce   sync.Once
}

// New creates a Store in the Loading state and subscribes to provider
// events. Callers must call Initialize once at startup and Close at teardown.
func New(provider Provider, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		provider: provider,
		logger:   logger,
		state:    StateLoading,
	}

	s.unsubscribe = provider.Subscribe(s.apply)

	return s
}

// Initialize fetches the current session from the provider exactly once.
// The result is applied unconditionally: the initial fetch and the event
// stream are not ordered relative to each other, and whichever resolves
// last determines the visible state. A fetch failure resolves to
// unauthenticated — startup never gets stuck in Loading.
func (s *Store) Initialize(ctx context.Context) {
	sess, err := s.provider.CurrentSession(ctx)
	if err != nil {
		s.logger.Warn("initial session fetch failed, treating as signed out",
			slog.String("error", err.Error()),
		)

		sess = nil
	}

	s.apply(sess)
}

// apply replaces the session wholesale. Last writer wins; no attempt is
// made to detect or discard out-of-order updates.
func (s *Store) apply(sess *identity.Session) {
	s.mu.Lock()
	s.session = sess

	if sess != nil {
		s.state = StateAuthenticated
	} else {
		s.state = StateUnauthenticated
	}

	state := s.state
	s.mu.Unlock()

	s.logger.Debug("session state replaced", slog.String("state", state.String()))
}

// State returns the current authentication state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Session returns a copy of the active session, or nil.
func (s *Store) Session() *identity.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil
	}

	cp := *s.session

	return &cp
}

// User returns the active user. ok is false while loading or signed out.
func (s *Store) User() (identity.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return identity.User{}, false
	}

	return s.session.User, true
}

// Token returns the current access token, re-querying the provider on every
// call rather than reading the cached session, so a token rotated underneath
// the store is still honored. It never fails: signed out or provider error
// both return "" and the caller proceeds unauthenticated.
func (s *Store) Token(ctx context.Context) string {
	sess, err := s.provider.CurrentSession(ctx)
	if err != nil {
		s.logger.Warn("token query failed, proceeding unauthenticated",
			slog.String("error", err.Error()),
		)

		return ""
	}

	if sess == nil {
		return ""
	}

	return sess.AccessToken
}

// SignOut requests provider-side invalidation and then clears local state
// unconditionally, so the caller never observes an authenticated-looking
// state after a user-initiated sign-out, even when the provider call failed.
// The provider error is returned for logging only.
func (s *Store) SignOut(ctx context.Context) error {
	err := s.provider.SignOut(ctx)
	if err != nil {
		s.logger.Warn("provider sign-out failed, clearing local session anyway",
			slog.String("error", err.Error()),
		)
	}

	s.apply(nil)

	return err
}

// Close unsubscribes from the provider event stream. Safe to call more
// than once; no other cleanup is needed.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
	})
}
