package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jkorhonen/notes-go/internal/identity"
	"github.com/jkorhonen/notes-go/internal/session"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <email>",
		Short: "Sign in with email and password",
		Args:  cobra.ExactArgs(1),
		RunE:  runLogin,
	}
}

func newSignupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signup <email>",
		Short: "Register a new account",
		Args:  cobra.ExactArgs(1),
		RunE:  runSignup,
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and remove the saved session",
		RunE:  runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Display the signed-in user",
		RunE:  runWhoami,
	}
}

// readPassword prompts for a password without echo on a terminal, and reads
// a single line when stdin is a pipe (scripted use).
func readPassword(prompt string) (string, error) {
	fd := os.Stdin.Fd()

	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		// Prompts must always be visible — not suppressed by --quiet.
		fmt.Fprint(os.Stderr, prompt)

		pw, err := term.ReadPassword(int(fd))

		fmt.Fprintln(os.Stderr)

		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}

		return string(pw), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password from stdin: %w", err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}

	sess, err := app.identity.SignInWithPassword(cmd.Context(), args[0], password)
	if err != nil {
		var cerr *identity.CredentialError
		if errors.As(err, &cerr) {
			// The provider's reason, verbatim.
			return errors.New(cerr.Reason)
		}

		return err
	}

	statusf("Signed in as %s.\n", sess.User.Email)

	return nil
}

func runSignup(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}

	if err := app.identity.SignUp(cmd.Context(), args[0], password); err != nil {
		var cerr *identity.CredentialError
		if errors.As(err, &cerr) {
			return errors.New(cerr.Reason)
		}

		return err
	}

	statusf("Account created. Check your email if confirmation is required, then run 'notes-go login'.\n")

	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	// Local state is cleared even when the provider call fails; the user is
	// signed out either way, so only log the provider-side failure.
	if err := app.sessions.SignOut(cmd.Context()); err != nil {
		app.logger.Warn("provider-side sign-out failed", "error", err.Error())
	}

	statusf("Signed out.\n")

	return nil
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	State  string `json:"state"`
	ID     string `json:"id,omitempty"`
	Email  string `json:"email,omitempty"`
	Expiry string `json:"session_expiry,omitempty"`
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	sess := app.sessions.Session()

	if flagJSON {
		out := whoamiOutput{State: app.sessions.State().String()}
		if sess != nil {
			out.ID = sess.User.ID
			out.Email = sess.User.Email
			out.Expiry = sess.Expiry.Format(time.RFC3339)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encoding JSON output: %w", err)
		}

		return nil
	}

	if app.sessions.State() != session.StateAuthenticated || sess == nil {
		fmt.Println("Not signed in.")
		return nil
	}

	fmt.Printf("User:    %s\n", sess.User.Email)
	fmt.Printf("ID:      %s\n", sess.User.ID)
	fmt.Printf("Session: expires %s\n", formatTime(sess.Expiry))

	return nil
}
