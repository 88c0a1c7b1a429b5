// Package identity implements the identity-provider collaborator: password
// sign-in and sign-up, provider-side sign-out, silent token refresh, and a
// websocket event stream that pushes session changes made elsewhere.
package identity

import "fmt"

// CredentialError is a sign-in or sign-up rejection. Reason carries the
// provider's message verbatim so the UI can surface it unmodified.
// Credential errors are never retried.
type CredentialError struct {
	Reason string
}

func (e *CredentialError) Error() string {
	return e.Reason
}

// ProviderError is any non-credential failure talking to the identity
// provider (transport fault, unexpected status).
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity: HTTP %d: %s", e.StatusCode, e.Message)
}
