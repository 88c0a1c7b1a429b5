package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jkorhonen/notes-go/internal/avatar"
	"github.com/jkorhonen/notes-go/internal/identity"
	"github.com/jkorhonen/notes-go/internal/notes"
	"github.com/jkorhonen/notes-go/internal/notesapi"
	"github.com/jkorhonen/notes-go/internal/objstore"
	"github.com/jkorhonen/notes-go/internal/session"
)

// app bundles the full client stack for one command invocation: identity,
// session state, the backend API client, the notes engine, and avatar
// handling. Build it with newApp and Close it when the command finishes.
type app struct {
	logger   *slog.Logger
	identity *identity.Client
	sessions *session.Store
	api      *notesapi.Client
	notes    *notes.Engine
	storage  *objstore.Client
	avatars  *avatar.Scheduler
}

// stderrNotifier surfaces user-facing failure notices. These are shown even
// under --quiet — a swallowed "could not save" would lose user data silently.
type stderrNotifier struct{}

func (stderrNotifier) Notify(msg string) {
	fmt.Fprintln(os.Stderr, msg)
}

// newApp wires the client stack from the resolved configuration and restores
// any saved session. The returned app is ready for authenticated calls if a
// session was restored; commands that need one should check requireUser.
func newApp(ctx context.Context) (*app, error) {
	logger := buildLogger()
	httpClient := defaultHTTPClient()

	idClient := identity.New(identity.Options{
		BaseURL:     resolvedCfg.IdentityURL,
		APIKey:      resolvedCfg.IdentityKey,
		SessionPath: resolvedCfg.SessionPath,
		HTTPClient:  httpClient,
		Logger:      logger,
	})

	sessions := session.New(idClient, logger)
	sessions.Initialize(ctx)

	api := notesapi.NewClient(resolvedCfg.APIBaseURL, httpClient, sessions, logger)
	storage := objstore.NewClient(resolvedCfg.StorageURL, resolvedCfg.IdentityKey, httpClient, sessions, logger)

	return &app{
		logger:   logger,
		identity: idClient,
		sessions: sessions,
		api:      api,
		notes:    notes.NewEngine(api, stderrNotifier{}, logger),
		storage:  storage,
		avatars:  avatar.NewScheduler(storage, stderrNotifier{}, logger),
	}, nil
}

func (a *app) Close() {
	a.avatars.Close()
	a.sessions.Close()
}

// requireUser returns the signed-in user or an actionable error.
func (a *app) requireUser() (identity.User, error) {
	user, ok := a.sessions.User()
	if !ok {
		return identity.User{}, fmt.Errorf("not signed in — run 'notes-go login' first")
	}

	return user, nil
}
