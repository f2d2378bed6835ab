package auth

import "github.com/ggoodman/mcp-gate/internal/jwtauth"

// ParsePublicKeyPEM parses PEM encoded public key material for alg (RS*, PS*,
// ES* or EdDSA).
func ParsePublicKeyPEM(pemBytes []byte, alg string) (any, error) {
	return jwtauth.ParsePublicKeyPEM(pemBytes, alg)
}

// NewJWKSKeySet parses a static JWKS document. Keys are never refreshed.
func NewJWKSKeySet(raw []byte) (KeySet, error) {
	return jwtauth.NewKeySet(raw)
}
