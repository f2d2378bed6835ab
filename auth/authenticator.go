package auth

import (
	"errors"
)

// Sentinel errors, one per rejection reason. A *Rejection unwraps to exactly
// one of these so callers can classify with errors.Is.
var (
	// ErrMissingCredentials indicates no bearer token was supplied.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrTokenExpired indicates a correctly signed token past its exp claim.
	ErrTokenExpired = errors.New("token expired")
	// ErrInvalidToken indicates the token failed signature or format checks.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUnauthorizedClient indicates the client_id is not in the allow-list.
	ErrUnauthorizedClient = errors.New("unauthorized client")
	// ErrInsufficientScope indicates the caller authenticated but lacks the required scope.
	ErrInsufficientScope = errors.New("insufficient scope")
	// ErrWrongTokenType indicates the token is not an access token.
	ErrWrongTokenType = errors.New("wrong token type")
	// ErrInternal indicates an unexpected failure while verifying.
	ErrInternal = errors.New("internal verification error")
)

// TokenVerifier validates bearer tokens and classifies the result.
// Implementations must be safe for concurrent use and must not perform I/O.
type TokenVerifier interface {
	Verify(tok string) Outcome
}
