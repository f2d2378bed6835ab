package jwtauth

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/json"
	"fmt"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

func methodFor(alg string) (jwt.SigningMethod, error) {
	m := jwt.GetSigningMethod(alg)
	if m == nil {
		return nil, fmt.Errorf("unsupported algorithm %q", alg)
	}
	switch m.(type) {
	case *jwt.SigningMethodRSA, *jwt.SigningMethodRSAPSS, *jwt.SigningMethodECDSA, *jwt.SigningMethodEd25519:
		return m, nil
	default:
		return nil, fmt.Errorf("algorithm %q is not an asymmetric signature algorithm", alg)
	}
}

// ParsePublicKeyPEM parses PEM encoded public key material suitable for alg.
func ParsePublicKeyPEM(pemBytes []byte, alg string) (any, error) {
	m, err := methodFor(alg)
	if err != nil {
		return nil, err
	}
	var key any
	switch m.(type) {
	case *jwt.SigningMethodRSA, *jwt.SigningMethodRSAPSS:
		key, err = jwt.ParseRSAPublicKeyFromPEM(pemBytes)
	case *jwt.SigningMethodECDSA:
		key, err = jwt.ParseECPublicKeyFromPEM(pemBytes)
	case *jwt.SigningMethodEd25519:
		key, err = jwt.ParseEdPublicKeyFromPEM(pemBytes)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s public key: %w", alg, err)
	}
	return key, nil
}

// CheckKey reports whether key can verify signatures produced with alg.
func CheckKey(alg string, key any) error {
	m, err := methodFor(alg)
	if err != nil {
		return err
	}
	ok := false
	switch m.(type) {
	case *jwt.SigningMethodRSA, *jwt.SigningMethodRSAPSS:
		_, ok = key.(*rsa.PublicKey)
	case *jwt.SigningMethodECDSA:
		_, ok = key.(*ecdsa.PublicKey)
	case *jwt.SigningMethodEd25519:
		_, ok = key.(ed25519.PublicKey)
	}
	if !ok {
		return fmt.Errorf("key of type %T cannot verify %s signatures", key, alg)
	}
	return nil
}

// NewKeySet builds a key lookup from a static JWKS document. The document is
// parsed once; nothing is fetched or refreshed.
func NewKeySet(raw []byte) (keyfunc.Keyfunc, error) {
	kf, err := keyfunc.NewJWKSetJSON(json.RawMessage(raw))
	if err != nil {
		return nil, fmt.Errorf("jwks init failed: %w", err)
	}
	return kf, nil
}
