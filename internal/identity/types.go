package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// User is the identity behind a session, immutable for the session's lifetime.
type User struct {
	ID    string
	Email string
}

// Session is the live credential/identity pair authorizing requests.
// Exactly one session is active per process at a time, or none.
type Session struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	User         User
}

// sessionFromToken derives a Session from an OAuth2 token by reading the
// access token's claims. The token is not signature-verified — the client
// does not hold the provider's signing key; the backend verifies on use.
func sessionFromToken(tok *oauth2.Token) (*Session, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok.AccessToken, claims); err != nil {
		return nil, fmt.Errorf("identity: parsing access token claims: %w", err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("identity: access token has no subject claim")
	}

	email, _ := claims["email"].(string)

	expiry := tok.Expiry
	if expiry.IsZero() {
		if exp, expErr := claims.GetExpirationTime(); expErr == nil && exp != nil {
			expiry = exp.Time
		}
	}

	return &Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       expiry,
		User:         User{ID: sub, Email: email},
	}, nil
}
