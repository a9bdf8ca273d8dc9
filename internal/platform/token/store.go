// Package token holds the opaque bearer credentials for a dashboard
// session. Tokens are never inspected or validated here; the store only
// moves them between the transport (cookies) or an in-memory backing and
// the EHR client.
package token

import "time"

// Kind selects one member of a token pair.
type Kind string

const (
	Access  Kind = "access_token"
	Refresh Kind = "refresh_token"
)

// Pair is the credential set issued by the upstream token endpoint. A
// refresh always replaces both members atomically.
type Pair struct {
	Access  string
	Refresh string
}

// Policy declares per-token lifetime and transport security for stores that
// persist tokens outside process memory.
type Policy struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Secure marks cookies as encrypted-transport only. Disabled only for
	// local development over plain HTTP.
	Secure bool
}

// Store reads and writes a session's token pair.
type Store interface {
	// Get returns the stored token of the given kind, or "" when absent.
	Get(kind Kind) string
	// Set atomically replaces both members of the pair.
	Set(pair Pair)
	// Clear destroys both tokens.
	Clear()
}
