package auth

import (
	"time"

	keyfunc "github.com/MicahParks/keyfunc/v3"
)

const (
	// DefaultAlgorithm is the signing algorithm accepted when none is configured.
	DefaultAlgorithm = "RS256"
	// DefaultRequiredScope is the scope every access token must carry.
	DefaultRequiredScope = "client_super"
	// AccessTokenType is the only accepted value of the "type" claim.
	AccessTokenType = "access"
)

// Claim names read from the token payload.
const (
	ClaimClientID = "client_id"
	ClaimType     = "type"
	ClaimScopes   = "scopes"
)

// KeySet resolves verification keys from a static JWKS document.
type KeySet = keyfunc.Keyfunc

// Config is the process-wide verifier configuration. It is copied by
// NewVerifier and never mutated afterwards.
type Config struct {
	// PublicKey is a parsed asymmetric public key. Mutually exclusive with KeySet.
	PublicKey any
	// KeySet selects the key by kid from a static JWKS document.
	KeySet KeySet
	// Algorithm is the single accepted JWS algorithm. Defaults to RS256.
	Algorithm string
	// AllowedClientIDs restricts the client_id claim. Empty allows any client.
	AllowedClientIDs []int64
	// RequiredScope must be present in the scopes claim. Defaults to client_super.
	RequiredScope string
	// Leeway is the clock skew tolerated on exp and nbf.
	Leeway time.Duration
	// Now overrides the clock used for time-claim validation.
	Now func() time.Time
}

// Option configures optional aspects of a Verifier.
type Option func(*Config)

// WithAllowedClientIDs restricts accepted tokens to the given client IDs.
func WithAllowedClientIDs(ids ...int64) Option {
	return func(c *Config) {
		c.AllowedClientIDs = append([]int64(nil), ids...)
	}
}

// WithRequiredScope overrides the scope every token must carry.
func WithRequiredScope(scope string) Option {
	return func(c *Config) { c.RequiredScope = scope }
}

// WithLeeway sets clock skew tolerance for time-based claims.
func WithLeeway(d time.Duration) Option {
	return func(c *Config) { c.Leeway = d }
}

// WithClock overrides the clock. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Config) { c.Now = now }
}
