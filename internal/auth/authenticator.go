package auth

import (
	"errors"
	"strings"
)

// ErrNoCredentials is returned when a request carries neither a token nor a key.
var ErrNoCredentials = errors.New("auth: no credentials presented")

// Identity is an authenticated caller.
type Identity struct {
	Subject string
	Admin   bool
}

// Authenticator accepts bearer tokens and, when a hash is configured, a
// static API key. Requests using the key act as KeySubject with admin rights.
type Authenticator struct {
	Tokens     *TokenIssuer
	APIKeyHash string
	KeySubject string
}

// Authenticate resolves the Authorization header value and X-API-Key value.
// A bearer token takes precedence over the key.
func (a *Authenticator) Authenticate(authorization, apiKey string) (Identity, error) {
	if raw, ok := strings.CutPrefix(strings.TrimSpace(authorization), "Bearer "); ok && a.Tokens != nil {
		claims, err := a.Tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			return Identity{}, err
		}
		return Identity{Subject: claims.Subject, Admin: claims.Admin}, nil
	}

	if apiKey = strings.TrimSpace(apiKey); apiKey != "" {
		if a.APIKeyHash == "" {
			return Identity{}, ErrKeyMismatch
		}
		if err := VerifyAPIKey(a.APIKeyHash, apiKey); err != nil {
			return Identity{}, err
		}
		subject := a.KeySubject
		if subject == "" {
			subject = "Administrator"
		}
		return Identity{Subject: subject, Admin: true}, nil
	}
	return Identity{}, ErrNoCredentials
}
