// Package avatar keeps a display-ready signed URL for the user's stored
// avatar object continuously fresh. The durable state is the storage path in
// the profile record; the signed URL is a derived, time-limited view and is
// never persisted.
package avatar

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Signed URL lifetime and refresh cadence. The refresh period is strictly
// shorter than the TTL so a slow issuance call cannot leave a window where
// the previous URL has already expired.
const (
	SignedURLTTL  = 60 * time.Minute
	RefreshPeriod = 55 * time.Minute
)

// ObjectStore is the object-storage capability the scheduler consumes.
// *objstore.Client satisfies it.
type ObjectStore interface {
	Upload(ctx context.Context, path string, data []byte, overwrite bool) error
	CreateSignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}

// Notifier receives user-visible failure notifications.
type Notifier interface {
	Notify(message string)
}

type noopNotifier struct{}

func (noopNotifier) Notify(string) {}

// ticker abstracts time.Ticker so tests can fire refreshes on demand.
type ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct {
	*time.Ticker
}

func (t realTicker) C() <-chan time.Time {
	return t.Ticker.C
}

// Scheduler owns the in-memory view of the avatar asset: the tracked storage
// path, the current signed URL, and the refresh timer. The timer is canceled
// whenever the path is cleared or the scheduler is closed — a leaked timer
// would keep firing against a stale or nonexistent path.
type Scheduler struct {
	store    ObjectStore
	notifier Notifier
	logger   *slog.Logger

	// Injection points for tests.
	now       func() time.Time
	newTicker func(time.Duration) ticker

	mu        sync.Mutex
	path      string
	signedURL string
	issuedAt  time.Time
	stop      chan struct{}
}

// NewScheduler creates a Scheduler with no tracked path.
func NewScheduler(store ObjectStore, notifier Notifier, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	if notifier == nil {
		notifier = noopNotifier{}
	}

	return &Scheduler{
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		newTicker: func(d time.Duration) ticker {
			return realTicker{time.NewTicker(d)}
		},
	}
}

// Track starts keeping a signed URL fresh for the given storage path. Any
// previous tracking loop is stopped first. One signed URL is requested
// immediately; the recurring timer then replaces it every RefreshPeriod.
// An empty path is equivalent to Clear.
//
// The returned error reflects the immediate issuance only — the loop runs
// regardless, so a later tick can recover a transient failure.
func (s *Scheduler) Track(ctx context.Context, path string) error {
	if path == "" {
		s.Clear()
		return nil
	}

	s.stopLoop()

	s.mu.Lock()
	s.path = path
	s.signedURL = ""
	stop := make(chan struct{})
	s.stop = stop
	s.mu.Unlock()

	err := s.refresh(ctx, path)

	go s.loop(ctx, path, stop)

	return err
}

// loop re-requests a signed URL every RefreshPeriod until stopped.
func (s *Scheduler) loop(ctx context.Context, path string, stop <-chan struct{}) {
	tk := s.newTicker(RefreshPeriod)
	defer tk.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-tk.C():
			if err := s.refresh(ctx, path); err != nil {
				s.logger.Warn("scheduled signed URL refresh failed",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// refresh requests one signed URL and installs it if the path is still the
// tracked one — a result arriving after the path changed is dropped.
func (s *Scheduler) refresh(ctx context.Context, path string) error {
	url, err := s.store.CreateSignedURL(ctx, path, SignedURLTTL)
	if err != nil {
		s.notifier.Notify("Failed to refresh avatar link")
		return fmt.Errorf("avatar: signing %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path != path {
		s.logger.Debug("discarding signed URL for untracked path", slog.String("path", path))
		return nil
	}

	s.signedURL = url
	s.issuedAt = s.now()

	s.logger.Debug("signed URL replaced", slog.String("path", path))

	return nil
}

// URL returns the current signed URL and its issuance time. The URL is
// empty when no path is tracked or issuance has not yet succeeded.
func (s *Scheduler) URL() (string, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.signedURL, s.issuedAt
}

// Path returns the tracked storage path, or "".
func (s *Scheduler) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.path
}

// Clear stops the refresh timer and drops the tracked path and signed URL.
// Call it when the profile's avatar path is removed.
func (s *Scheduler) Clear() {
	s.stopLoop()

	s.mu.Lock()
	s.path = ""
	s.signedURL = ""
	s.issuedAt = time.Time{}
	s.mu.Unlock()
}

// Close cancels the refresh timer. Safe to call with no active tracking.
func (s *Scheduler) Close() {
	s.stopLoop()
}

func (s *Scheduler) stopLoop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}
