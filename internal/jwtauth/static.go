package jwtauth

import (
	"errors"
	"fmt"
	"time"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// ErrExpired indicates the token signature verified but its exp claim is in
// the past.
var ErrExpired = errors.New("jwtauth: token expired")

// ErrInvalid indicates the token could not be decoded or its signature,
// algorithm or time claims failed validation.
var ErrInvalid = errors.New("jwtauth: invalid token")

// StaticConfig controls decoding of tokens signed by a single statically
// configured key (or a static JWKS document). Exactly one of Key or KeySet
// must be set.
type StaticConfig struct {
	Algorithm string
	Key       any
	KeySet    keyfunc.Keyfunc
	Leeway    time.Duration
	// Now overrides the validation clock. Defaults to time.Now.
	Now func() time.Time
}

// DefaultStaticConfig returns a StaticConfig with the RS256 default and no
// leeway.
func DefaultStaticConfig() *StaticConfig {
	return &StaticConfig{Algorithm: jwt.SigningMethodRS256.Alg()}
}

// Decoder verifies token signatures and standard time claims. It holds no
// mutable state and is safe for concurrent use.
type Decoder struct {
	parser  *jwt.Parser
	keyfunc jwt.Keyfunc
}

// NewStatic constructs a Decoder from cfg. The configuration is copied; later
// mutation of cfg has no effect on the returned Decoder.
func NewStatic(cfg *StaticConfig) (*Decoder, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	alg := cfg.Algorithm
	if alg == "" {
		alg = jwt.SigningMethodRS256.Alg()
	}
	if cfg.Key == nil && cfg.KeySet == nil {
		return nil, errors.New("public key or key set is required")
	}
	if cfg.Key != nil && cfg.KeySet != nil {
		return nil, errors.New("public key and key set are mutually exclusive")
	}
	if cfg.Key != nil {
		if err := CheckKey(alg, cfg.Key); err != nil {
			return nil, err
		}
	} else if _, err := methodFor(alg); err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{alg}),
		jwt.WithLeeway(cfg.Leeway),
		// Numbers stay json.Number so large integer claims keep full precision.
		jwt.WithJSONNumber(),
	}
	if cfg.Now != nil {
		opts = append(opts, jwt.WithTimeFunc(cfg.Now))
	}

	d := &Decoder{parser: jwt.NewParser(opts...)}
	if cfg.KeySet != nil {
		ks := cfg.KeySet
		d.keyfunc = ks.Keyfunc
	} else {
		key := cfg.Key
		d.keyfunc = func(*jwt.Token) (any, error) { return key, nil }
	}
	return d, nil
}

// Decode verifies tok and returns its payload. Signature verification always
// happens before time-claim validation, so an expired token with a bad
// signature is reported as ErrInvalid.
func (d *Decoder) Decode(tok string) (jwt.MapClaims, error) {
	if tok == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalid)
	}
	parsed, err := d.parser.Parse(tok, d.keyfunc)
	if err != nil {
		// nbf is checked ahead of exp so a not-yet-valid token never reads as expired.
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	return claims, nil
}
