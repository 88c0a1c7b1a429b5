package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jkorhonen/notes-go/internal/notesapi"
)

func newAvatarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "avatar",
		Short: "Manage your profile avatar",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <image-file>",
		Short: "Upload a new avatar image",
		Args:  cobra.ExactArgs(1),
		RunE:  runAvatarSet,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "url",
		Short: "Print a fresh signed URL for your avatar",
		RunE:  runAvatarURL,
	})

	return cmd
}

func runAvatarSet(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	user, err := app.requireUser()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	if err := app.avatars.Upload(cmd.Context(), app.api, user.ID, filepath.Base(args[0]), data); err != nil {
		return err
	}

	url, _ := app.avatars.URL()

	statusf("Uploaded %s (%s).\n", filepath.Base(args[0]), formatSize(int64(len(data))))
	fmt.Println(url)

	return nil
}

func runAvatarURL(cmd *cobra.Command, _ []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	user, err := app.requireUser()
	if err != nil {
		return err
	}

	prof, err := app.api.GetProfile(cmd.Context(), user.ID)
	if err != nil {
		if errors.Is(err, notesapi.ErrNotFound) {
			return fmt.Errorf("no profile found — upload an avatar with 'notes-go avatar set' first")
		}

		return fmt.Errorf("reading profile: %w", err)
	}

	if prof.AvatarPath == "" {
		return fmt.Errorf("no avatar set — upload one with 'notes-go avatar set' first")
	}

	if err := app.avatars.Track(cmd.Context(), prof.AvatarPath); err != nil {
		return fmt.Errorf("signing avatar URL: %w", err)
	}

	url, _ := app.avatars.URL()
	fmt.Println(url)

	return nil
}
