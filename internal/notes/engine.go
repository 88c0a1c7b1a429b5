// Package notes keeps the client-visible note collection consistent with
// the backend while giving the user immediate feedback. Content operations
// (create, update) are pessimistic: the mirror changes only after the server
// confirms, so the user never sees unconfirmed content as if it were saved.
// Deletes are optimistic: the entry disappears immediately and the prior
// mirror snapshot is restored if the server call fails. Nothing here
// retries; every failure is terminal for that attempt.
package notes

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/jkorhonen/notes-go/internal/identity"
	"github.com/jkorhonen/notes-go/internal/notesapi"
)

// Palette is the fixed set of presentation colors assigned to new notes,
// picked uniformly at random.
var Palette = []string{
	"bg-yellow-200",
	"bg-green-200",
	"bg-pink-200",
	"bg-blue-200",
	"bg-purple-200",
	"bg-red-200",
}

// Backend performs the note round trips. *notesapi.Client satisfies it.
type Backend interface {
	ListNotes(ctx context.Context) ([]notesapi.Note, error)
	CreateNote(ctx context.Context, content, color string) (*notesapi.Note, error)
	UpdateNote(ctx context.Context, id, content string) (*notesapi.Note, error)
	DeleteNote(ctx context.Context, id string) error
}

// Notifier receives user-visible failure notifications. The rendering layer
// decides how to present them (toast, stderr line).
type Notifier interface {
	Notify(message string)
}

type noopNotifier struct{}

func (noopNotifier) Notify(string) {}

// Engine owns the note mirror: an ordered sequence, newest first, never
// containing two entries with the same id. The mirror is mutated only here.
//
// Concurrent mutation of the same note (a delete and an edit submitted
// nearly simultaneously against the same id) is not guaranteed correct; the
// backend provides no locking and none is synthesized here.
type Engine struct {
	backend  Backend
	notifier Notifier
	logger   *slog.Logger

	// pickColor is overridable in tests for deterministic colors.
	pickColor func() string

	mu         sync.Mutex
	mirror     []notesapi.Note
	generation uint64 // bumped by Load; stale fetches are discarded
	editing    string // id of the note open for editing, "" if none
}

// NewEngine creates an Engine with an empty mirror.
func NewEngine(backend Backend, notifier Notifier, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	if notifier == nil {
		notifier = noopNotifier{}
	}

	return &Engine{
		backend:   backend,
		notifier:  notifier,
		logger:    logger,
		pickColor: func() string { return Palette[rand.IntN(len(Palette))] },
	}
}

// Load refreshes the mirror for the active user. Call it on every change of
// the active user, including the transition into "no user" (nil), which
// clears the mirror without a fetch. A successful fetch replaces the mirror
// wholesale — no incremental merge.
//
// Each call supersedes earlier in-flight loads: a fetch that resolves after
// a newer Load has started is discarded, regardless of arrival order.
func (e *Engine) Load(ctx context.Context, user *identity.User) error {
	e.mu.Lock()
	e.generation++
	gen := e.generation

	if user == nil {
		e.mirror = nil
		e.mu.Unlock()

		e.logger.Debug("note mirror cleared, no active user")

		return nil
	}
	e.mu.Unlock()

	fetched, err := e.backend.ListNotes(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation {
		e.logger.Debug("discarding stale note list",
			slog.Uint64("generation", gen),
			slog.Uint64("latest", e.generation),
		)

		return nil
	}

	if err != nil {
		e.logger.Warn("loading notes failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		e.notifier.Notify("Failed to load notes")

		return err
	}

	e.mirror = dedupeByID(fetched)

	e.logger.Info("note mirror replaced",
		slog.String("user_id", user.ID),
		slog.Int("count", len(e.mirror)),
	)

	return nil
}

// Create sends a new note to the backend and, only on success, prepends the
// server-assigned record to the mirror. On failure the mirror is untouched
// and the caller keeps the typed draft for a manual retry. The presentation
// color is picked uniformly at random from the palette.
func (e *Engine) Create(ctx context.Context, content string) (*notesapi.Note, error) {
	color := e.pickColor()

	note, err := e.backend.CreateNote(ctx, content, color)
	if err != nil {
		e.logger.Warn("creating note failed", slog.String("error", err.Error()))
		e.notifier.Notify("Failed to save note")

		return nil, err
	}

	e.mu.Lock()
	// The mirror never holds two entries with the same id.
	e.mirror = slices.DeleteFunc(e.mirror, func(n notesapi.Note) bool { return n.ID == note.ID })
	e.mirror = append([]notesapi.Note{*note}, e.mirror...)
	e.mu.Unlock()

	e.logger.Info("note created", slog.String("note_id", note.ID))

	return note, nil
}

// Update sends new content for an existing note and, only on success,
// replaces the matching mirror entry in place — its position in the
// sequence does not change. On failure the mirror is untouched.
func (e *Engine) Update(ctx context.Context, id, content string) error {
	updated, err := e.backend.UpdateNote(ctx, id, content)
	if err != nil {
		e.logger.Warn("updating note failed",
			slog.String("note_id", id),
			slog.String("error", err.Error()),
		)
		e.notifier.Notify("Failed to update note")

		return err
	}

	e.mu.Lock()
	replaced := false

	for i := range e.mirror {
		if e.mirror[i].ID == id {
			e.mirror[i] = *updated
			replaced = true

			break
		}
	}
	e.mu.Unlock()

	// The note can vanish from the mirror mid-edit (deleted here or
	// elsewhere, or replaced by a fresher load). The backend accepted the
	// update, so this is not an error, but it should be visible in logs.
	if !replaced {
		e.logger.Debug("updated note no longer in mirror", slog.String("note_id", id))
	}

	e.logger.Info("note updated", slog.String("note_id", id))

	return nil
}

// Delete removes the entry from the mirror immediately, before the backend
// call resolves, so the removal feels instantaneous. If the call fails, the
// mirror snapshot captured just before the removal is restored verbatim.
// If the deleted note was open for editing, the edit buffer is cleared
// regardless of the outcome.
func (e *Engine) Delete(ctx context.Context, id string) error {
	e.mu.Lock()
	snapshot := slices.Clone(e.mirror)
	e.mirror = slices.DeleteFunc(e.mirror, func(n notesapi.Note) bool { return n.ID == id })

	if e.editing == id {
		e.editing = ""
	}
	e.mu.Unlock()

	err := e.backend.DeleteNote(ctx, id)
	if err != nil {
		e.mu.Lock()
		e.mirror = snapshot
		e.mu.Unlock()

		e.logger.Warn("deleting note failed, mirror rolled back",
			slog.String("note_id", id),
			slog.String("error", err.Error()),
		)
		e.notifier.Notify("Failed to delete note")

		return err
	}

	e.logger.Info("note deleted", slog.String("note_id", id))

	return nil
}

// StartEditing marks a note as open for editing. Delete clears the mark
// when the open note is removed.
func (e *Engine) StartEditing(id string) {
	e.mu.Lock()
	e.editing = id
	e.mu.Unlock()
}

// Editing returns the id of the note open for editing, or "".
func (e *Engine) Editing() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.editing
}

// Notes returns a copy of the mirror, newest first.
func (e *Engine) Notes() []notesapi.Note {
	e.mu.Lock()
	defer e.mu.Unlock()

	return slices.Clone(e.mirror)
}

// dedupeByID keeps the first occurrence of each id, preserving order.
func dedupeByID(notes []notesapi.Note) []notesapi.Note {
	seen := make(map[string]struct{}, len(notes))
	out := notes[:0:0]

	for _, n := range notes {
		if _, dup := seen[n.ID]; dup {
			continue
		}

		seen[n.ID] = struct{}{}
		out = append(out, n)
	}

	return out
}
