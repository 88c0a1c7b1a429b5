package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jkorhonen/notes-go/internal/identity"
)

// sessionPollInterval is how often watch mode proactively re-queries the
// session. The query path refreshes an expiring credential, so polling keeps
// the refresh token rotating even when no events arrive.
const sessionPollInterval = time.Minute

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow session events until interrupted",
		Long: `Connect to the identity provider's event stream and apply session
changes pushed from elsewhere (another device, provider-side revocation,
token rotation) as they happen. Runs until Ctrl-C.`,
		RunE: runWatch,
	}
}

func runWatch(cmd *cobra.Command, _ []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	// Stop the avatar refresh loop on the first signal, before the stream
	// and poll goroutines unwind.
	ctx := shutdownContext(cmd.Context(), app.logger, app.avatars.Close)

	unsub := app.identity.Subscribe(func(sess *identity.Session) {
		if sess == nil {
			statusf("Session ended.\n")
			return
		}

		statusf("Session active for %s (expires %s).\n", sess.User.Email, formatTime(sess.Expiry))
	})
	defer unsub()

	// Keep the avatar's signed URL fresh for the duration of the watch.
	if user, userErr := app.requireUser(); userErr == nil {
		if prof, profErr := app.api.GetProfile(ctx, user.ID); profErr == nil && prof.AvatarPath != "" {
			if trackErr := app.avatars.Track(ctx, prof.AvatarPath); trackErr != nil {
				app.logger.Warn("avatar tracking failed", "error", trackErr.Error())
			}
		}
	}

	statusf("Watching for session events. Press Ctrl-C to stop.\n")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := app.identity.Listen(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}

		return err
	})

	g.Go(func() error {
		ticker := time.NewTicker(sessionPollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				// Token() refreshes an expiring credential as a side effect
				// and logs failures itself.
				app.sessions.Token(gctx)
			}
		}
	})

	return g.Wait()
}
