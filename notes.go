package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jkorhonen/notes-go/internal/identity"
	"github.com/jkorhonen/notes-go/internal/notesapi"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your notes",
		RunE:  runList,
	}
}

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <content>",
		Short: "Create a note",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAdd,
	}
}

func newEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id> <content>",
		Short: "Replace a note's content",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runEdit,
	}
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a note",
		Args:  cobra.ExactArgs(1),
		RunE:  runRm,
	}
}

// loadNotes builds the app stack and populates the notes engine for the
// signed-in user. Shared by every notes subcommand.
func loadNotes(ctx context.Context) (*app, identity.User, error) {
	app, err := newApp(ctx)
	if err != nil {
		return nil, identity.User{}, err
	}

	user, err := app.requireUser()
	if err != nil {
		app.Close()
		return nil, identity.User{}, err
	}

	if err := app.notes.Load(ctx, &user); err != nil {
		app.Close()
		return nil, identity.User{}, fmt.Errorf("loading notes: %w", err)
	}

	return app, user, nil
}

// noteOutput is the JSON schema for `list --json`.
type noteOutput struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Color     string `json:"color"`
	CreatedAt string `json:"created_at"`
}

func runList(cmd *cobra.Command, _ []string) error {
	app, _, err := loadNotes(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	list := app.notes.Notes()

	if flagJSON {
		return printNotesJSON(list)
	}

	if len(list) == 0 {
		statusf("No notes yet. Create one with 'notes-go add'.\n")
		return nil
	}

	rows := make([][]string, 0, len(list))
	for _, n := range list {
		rows = append(rows, []string{n.ID, n.Color, formatTime(n.CreatedAt), excerpt(n.Content, 60)})
	}

	printTable(os.Stdout, []string{"ID", "COLOR", "CREATED", "CONTENT"}, rows)

	return nil
}

func printNotesJSON(list []notesapi.Note) error {
	out := make([]noteOutput, 0, len(list))
	for _, n := range list {
		out = append(out, noteOutput{
			ID:        n.ID,
			Content:   n.Content,
			Color:     n.Color,
			CreatedAt: n.CreatedAt.Format(time.RFC3339),
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	app, _, err := loadNotes(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	note, err := app.notes.Create(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("creating note: %w", err)
	}

	statusf("Created note %s (%s).\n", note.ID, note.Color)

	return nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	app, _, err := loadNotes(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	id := args[0]
	content := strings.Join(args[1:], " ")

	app.notes.StartEditing(id)

	if err := app.notes.Update(cmd.Context(), id, content); err != nil {
		return fmt.Errorf("updating note %s: %w", id, err)
	}

	statusf("Updated note %s.\n", id)

	return nil
}

func runRm(cmd *cobra.Command, args []string) error {
	app, _, err := loadNotes(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.notes.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("deleting note %s: %w", args[0], err)
	}

	statusf("Deleted note %s.\n", args[0])

	return nil
}
