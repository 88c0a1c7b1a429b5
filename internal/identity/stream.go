package identity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/oauth2"
)

// eventsPath is the websocket endpoint pushing session changes made
// elsewhere (another device, provider-side revocation, token rotation).
const eventsPath = "/events"

// streamEnvelope is one event stream message. A nil Session means signed out.
type streamEnvelope struct {
	Event   string       `json:"event"`
	Session *wireSession `json:"session"`
}

type wireSession struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// Listen connects to the provider's event stream and applies each pushed
// session change until ctx is canceled or the stream fails. Applied events
// unconditionally replace the current session — the stream is the authority,
// and the last event to arrive wins. Callers run this in watch mode; a
// returned error means the stream ended and events are no longer flowing.
func (c *Client) Listen(ctx context.Context) error {
	wsURL, err := websocketURL(c.baseURL + eventsPath)
	if err != nil {
		return err
	}

	// The stream outlives any request timeout, and websocket.Dial rejects a
	// client that has one. Reuse the transport (it adds the apikey header on
	// refresh calls too) without the timeout.
	dialClient := &http.Client{Transport: c.httpClient.Transport}

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPClient: dialClient,
		HTTPHeader: http.Header{apiKeyHeader: []string{c.apiKey}},
	})
	if err != nil {
		return fmt.Errorf("identity: connecting event stream: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	c.logger.Info("identity event stream connected")

	for {
		var env streamEnvelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			return fmt.Errorf("identity: event stream closed: %w", err)
		}

		c.applyEvent(env)
	}
}

// applyEvent installs a pushed session change. There is no sequence
// numbering from the provider: a stale event can overwrite a fresher
// session, and that race is accepted rather than papered over with ordering
// the provider does not guarantee.
func (c *Client) applyEvent(env streamEnvelope) {
	if env.Session == nil {
		c.logger.Info("event stream: session ended", slog.String("event", env.Event))
		c.clearLocal()

		return
	}

	tok := &oauth2.Token{
		AccessToken:  env.Session.AccessToken,
		RefreshToken: env.Session.RefreshToken,
		Expiry:       time.Unix(env.Session.ExpiresAt, 0),
	}

	sess, err := sessionFromToken(tok)
	if err != nil {
		c.logger.Warn("event stream: unusable session payload, ignoring",
			slog.String("event", env.Event),
			slog.String("error", err.Error()),
		)

		return
	}

	c.logger.Info("event stream: session replaced",
		slog.String("event", env.Event),
		slog.String("user_id", sess.User.ID),
	)

	c.install(sess, tok)
}

// websocketURL converts an http(s) URL to its ws(s) equivalent.
func websocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("identity: parsing event stream URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("identity: unsupported event stream scheme %q", u.Scheme)
	}

	return u.String(), nil
}
