// Package auth owns the login/logout boundary: credential exchange against
// the remote token endpoint and the cookie session it establishes.
package auth

import (
	"context"

	"github.com/chartview/chartview/internal/platform/ehr"
	"github.com/chartview/chartview/internal/platform/token"
)

// Credentials is the login request body.
type Credentials struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// FieldError reports a missing or malformed credential field. It is a client
// error; nothing has been sent upstream when one is returned.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

// Validate rejects incomplete credentials before any network call.
func (c Credentials) Validate() *FieldError {
	if c.Username == "" {
		return &FieldError{Field: "username", Reason: "username is required"}
	}
	if c.Password == "" {
		return &FieldError{Field: "password", Reason: "password is required"}
	}
	return nil
}

type Service struct {
	client *ehr.Client
}

func NewService(client *ehr.Client) *Service {
	return &Service{client: client}
}

// Login exchanges credentials for a token pair and installs it in the store.
// The returned response carries the remote's exact body for relay.
func (s *Service) Login(ctx context.Context, store token.Store, creds Credentials) (*ehr.TokenResponse, error) {
	if ferr := creds.Validate(); ferr != nil {
		return nil, ferr
	}

	tr, err := s.client.PasswordGrant(ctx, creds.Username, creds.Password)
	if err != nil {
		return nil, err
	}

	store.Set(tr.Pair())
	return tr, nil
}

// Logout drops the session tokens. It never calls the remote; revocation is
// not part of the remote's contract.
func (s *Service) Logout(store token.Store) {
	store.Clear()
}
