package auth

import "fmt"

// Reason enumerates why a request was rejected.
type Reason int

const (
	ReasonMissingOrMalformedHeader Reason = iota + 1
	ReasonExpired
	ReasonInvalidToken
	ReasonUnauthorizedClient
	ReasonInsufficientScope
	ReasonWrongTokenType
	ReasonInternalError
)

// String returns a stable, machine-friendly name used in logs and metrics.
func (r Reason) String() string {
	switch r {
	case ReasonMissingOrMalformedHeader:
		return "missing_or_malformed_header"
	case ReasonExpired:
		return "expired"
	case ReasonInvalidToken:
		return "invalid_token"
	case ReasonUnauthorizedClient:
		return "unauthorized_client"
	case ReasonInsufficientScope:
		return "insufficient_scope"
	case ReasonWrongTokenType:
		return "wrong_token_type"
	case ReasonInternalError:
		return "internal_error"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

func (r Reason) sentinel() error {
	switch r {
	case ReasonMissingOrMalformedHeader:
		return ErrMissingCredentials
	case ReasonExpired:
		return ErrTokenExpired
	case ReasonInvalidToken:
		return ErrInvalidToken
	case ReasonUnauthorizedClient:
		return ErrUnauthorizedClient
	case ReasonInsufficientScope:
		return ErrInsufficientScope
	case ReasonWrongTokenType:
		return ErrWrongTokenType
	default:
		return ErrInternal
	}
}

// Rejection describes a failed verification. Detail carries the underlying
// cause for logs; only ReasonInternalError exposes it to callers.
type Rejection struct {
	Reason Reason
	Detail string
}

// Message returns the caller-facing description of the rejection.
func (r *Rejection) Message() string {
	switch r.Reason {
	case ReasonMissingOrMalformedHeader:
		return "Unauthorized"
	case ReasonExpired:
		return "Access token has expired"
	case ReasonInvalidToken:
		return "Invalid token"
	case ReasonUnauthorizedClient:
		return "Unauthorized client ID"
	case ReasonInsufficientScope:
		return "Insufficient token scopes"
	case ReasonWrongTokenType:
		return "Invalid token type"
	default:
		return "Unexpected error: " + r.Detail
	}
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return r.Reason.sentinel().Error()
	}
	return r.Reason.sentinel().Error() + ": " + r.Detail
}

func (r *Rejection) Unwrap() error { return r.Reason.sentinel() }

// Outcome is the result of verifying one token: exactly one of Verified
// claims or a Rejection.
type Outcome struct {
	claims    *Claims
	rejection *Rejection
}

// Verified builds a successful Outcome.
func Verified(c *Claims) Outcome { return Outcome{claims: c} }

// Rejected builds a failed Outcome.
func Rejected(reason Reason, detail string) Outcome {
	return Outcome{rejection: &Rejection{Reason: reason, Detail: detail}}
}

// OK reports whether the token was verified.
func (o Outcome) OK() bool { return o.claims != nil && o.rejection == nil }

// Claims returns the verified claims.
func (o Outcome) Claims() (*Claims, bool) {
	if !o.OK() {
		return nil, false
	}
	return o.claims, true
}

// Rejection returns the rejection. The zero Outcome reads as an internal
// error rather than as success.
func (o Outcome) Rejection() (*Rejection, bool) {
	if o.OK() {
		return nil, false
	}
	if o.rejection == nil {
		return &Rejection{Reason: ReasonInternalError, Detail: "empty verification outcome"}, true
	}
	return o.rejection, true
}
