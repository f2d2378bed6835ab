package auth

import (
	"errors"
	"fmt"
	"maps"

	"github.com/ggoodman/mcp-gate/internal/jwtauth"
)

var _ TokenVerifier = (*Verifier)(nil)

// Verifier checks access tokens against a fixed public key and policy.
// It performs no I/O, holds no mutable state and is safe for concurrent use.
type Verifier struct {
	decoder       *jwtauth.Decoder
	allowed       map[int64]struct{}
	requiredScope string
}

// NewVerifier validates cfg, applies opts and returns a ready Verifier.
func NewVerifier(cfg Config, opts ...Option) (*Verifier, error) {
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = DefaultAlgorithm
	}
	if cfg.RequiredScope == "" {
		cfg.RequiredScope = DefaultRequiredScope
	}
	if cfg.Leeway < 0 {
		return nil, errors.New("leeway must not be negative")
	}

	dec, err := jwtauth.NewStatic(&jwtauth.StaticConfig{
		Algorithm: cfg.Algorithm,
		Key:       cfg.PublicKey,
		KeySet:    cfg.KeySet,
		Leeway:    cfg.Leeway,
		Now:       cfg.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("verifier: %w", err)
	}

	allowed := make(map[int64]struct{}, len(cfg.AllowedClientIDs))
	for _, id := range cfg.AllowedClientIDs {
		allowed[id] = struct{}{}
	}

	return &Verifier{
		decoder:       dec,
		allowed:       allowed,
		requiredScope: cfg.RequiredScope,
	}, nil
}

// Verify runs the checks in order and stops at the first failure:
// signature and expiry, client allow-list, required scope, token type.
// Claim policy never runs on a payload whose signature did not verify.
func (v *Verifier) Verify(tok string) (out Outcome) {
	defer func() {
		if p := recover(); p != nil {
			out = Rejected(ReasonInternalError, fmt.Sprint(p))
		}
	}()

	payload, err := v.decoder.Decode(tok)
	if err != nil {
		switch {
		case errors.Is(err, jwtauth.ErrExpired):
			return Rejected(ReasonExpired, err.Error())
		case errors.Is(err, jwtauth.ErrInvalid):
			return Rejected(ReasonInvalidToken, err.Error())
		default:
			return Rejected(ReasonInternalError, err.Error())
		}
	}

	claims := &Claims{Raw: maps.Clone(map[string]any(payload))}

	if id, ok := jwtauth.IntegerClaim(payload, ClaimClientID); ok {
		claims.ClientID = &id
	}
	if len(v.allowed) > 0 {
		if claims.ClientID == nil {
			return Rejected(ReasonUnauthorizedClient, "client_id claim missing")
		}
		if _, ok := v.allowed[*claims.ClientID]; !ok {
			return Rejected(ReasonUnauthorizedClient, fmt.Sprintf("client_id %d not allowed", *claims.ClientID))
		}
	}

	scopes, err := jwtauth.StringListClaim(payload, ClaimScopes)
	if err != nil {
		return Rejected(ReasonInternalError, err.Error())
	}
	claims.Scopes = scopes
	if !claims.HasScope(v.requiredScope) {
		return Rejected(ReasonInsufficientScope, fmt.Sprintf("scope %q not granted", v.requiredScope))
	}

	claims.TokenType, _ = jwtauth.StringClaim(payload, ClaimType)
	if claims.TokenType != AccessTokenType {
		return Rejected(ReasonWrongTokenType, fmt.Sprintf("token type %q is not %q", claims.TokenType, AccessTokenType))
	}

	return Verified(claims)
}
