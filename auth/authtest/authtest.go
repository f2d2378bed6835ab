// Package authtest provides signing keys, token minting and fake verifiers
// for tests that exercise code behind the auth gate.
package authtest

import (
	"crypto/rand"
	"crypto/rsa"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ggoodman/mcp-gate/auth"
	"github.com/golang-jwt/jwt/v5"
)

// Issuer signs RS256 tokens with a throwaway key pair.
type Issuer struct {
	key *rsa.PrivateKey
	kid string
}

// NewIssuer generates a fresh 2048-bit RSA key pair.
func NewIssuer(t testing.TB) *Issuer {
	t.Helper()
	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	return &Issuer{key: pk, kid: "test-key"}
}

// PublicKey returns the verification key.
func (i *Issuer) PublicKey() *rsa.PublicKey { return &i.key.PublicKey }

// Sign signs claims as-is.
func (i *Issuer) Sign(t testing.TB, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = i.kid
	s, err := tok.SignedString(i.key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

// AccessToken signs a token that passes every check of a default Verifier
// allowing clientID. Entries in extra override or add claims.
func (i *Issuer) AccessToken(t testing.TB, clientID int64, extra jwt.MapClaims) string {
	t.Helper()
	claims := jwt.MapClaims{
		auth.ClaimClientID: clientID,
		auth.ClaimType:     auth.AccessTokenType,
		auth.ClaimScopes:   []string{auth.DefaultRequiredScope},
		"exp":              time.Now().Add(time.Hour).Unix(),
		"iat":              time.Now().Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}
	return i.Sign(t, claims)
}

// Verifier returns a real Verifier trusting this issuer's key.
func (i *Issuer) Verifier(t testing.TB, opts ...auth.Option) *auth.Verifier {
	t.Helper()
	v, err := auth.NewVerifier(auth.Config{PublicKey: i.PublicKey()}, opts...)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	return v
}

// CountingVerifier wraps a TokenVerifier and records how often it is called.
type CountingVerifier struct {
	Next  auth.TokenVerifier
	calls atomic.Int64
}

// Verify delegates to Next.
func (c *CountingVerifier) Verify(tok string) auth.Outcome {
	c.calls.Add(1)
	return c.Next.Verify(tok)
}

// Calls returns the number of Verify invocations so far.
func (c *CountingVerifier) Calls() int64 { return c.calls.Load() }

// VerifierFunc adapts a function to auth.TokenVerifier.
type VerifierFunc func(tok string) auth.Outcome

// Verify calls f.
func (f VerifierFunc) Verify(tok string) auth.Outcome { return f(tok) }
