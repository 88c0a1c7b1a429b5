package avatar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/jkorhonen/notes-go/internal/notesapi"
)

// ProfileStore is the profile-record capability the upload flow consumes.
// *notesapi.Client satisfies it.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*notesapi.Profile, error)
	UpsertProfile(ctx context.Context, userID string, p notesapi.Profile) error
}

// Upload stores a new avatar for the user and switches tracking to it:
// the bytes go to a path derived from the user id and the current timestamp
// (so repeat uploads by the same user never collide), the profile record's
// avatar path is updated, and a fresh signed URL is requested immediately —
// the background timer is not relied on for the switch to the new object.
func (s *Scheduler) Upload(ctx context.Context, profiles ProfileStore, userID, filename string, data []byte) error {
	objectPath := fmt.Sprintf("%s/%d_%s", userID, s.now().Unix(), path.Base(filename))

	if err := s.store.Upload(ctx, objectPath, data, false); err != nil {
		s.notifier.Notify("Failed to upload avatar")
		return fmt.Errorf("avatar: uploading %s: %w", objectPath, err)
	}

	prof, err := profiles.GetProfile(ctx, userID)
	if err != nil {
		// No profile yet is a normal first-upload case.
		if !errors.Is(err, notesapi.ErrNotFound) {
			s.notifier.Notify("Failed to update profile")
			return fmt.Errorf("avatar: reading profile for %s: %w", userID, err)
		}

		prof = &notesapi.Profile{}
	}

	prof.AvatarPath = objectPath

	if err := profiles.UpsertProfile(ctx, userID, *prof); err != nil {
		s.notifier.Notify("Failed to update profile")
		return fmt.Errorf("avatar: updating profile for %s: %w", userID, err)
	}

	s.logger.Info("avatar uploaded",
		slog.String("user_id", userID),
		slog.String("path", objectPath),
		slog.Int("size", len(data)),
	)

	return s.Track(ctx, objectPath)
}
