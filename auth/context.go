package auth

import "context"

type tokenKey struct{}
type claimsKey struct{}

// WithRequestAuth returns a child of ctx carrying the bearer token and its
// verified claims. Values live exactly as long as the derived context.
func WithRequestAuth(ctx context.Context, tok string, claims *Claims) context.Context {
	ctx = context.WithValue(ctx, tokenKey{}, tok)
	return context.WithValue(ctx, claimsKey{}, claims)
}

// TokenFromContext returns the raw bearer token of the current request.
func TokenFromContext(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(tokenKey{}).(string)
	return tok, ok
}

// ClaimsFromContext returns the verified claims of the current request.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}
