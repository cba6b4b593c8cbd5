package server

import (
	"crypto/subtle"
	"net/http"
)

// Authenticator decides whether an upgrade request may join the race.
type Authenticator interface {
	Name() string
	Authenticate(r *http.Request) error
}

// TokenAuth compares the "token" query parameter with a shared secret. An
// empty Token admits everyone.
type TokenAuth struct {
	Token string
}

func (a TokenAuth) Name() string {
	return "TokenAuth"
}

func (a TokenAuth) Authenticate(r *http.Request) error {
	if a.Token == "" {
		return nil
	}
	token := r.URL.Query().Get("token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(a.Token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}
