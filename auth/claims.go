package auth

import (
	"encoding/json"
	"slices"
)

// Claims is the verified payload of an access token.
// Treat it as read-only: the same value is shared by everything handling the
// request it was verified for.
type Claims struct {
	// ClientID is nil when the client_id claim is absent or not an integer.
	ClientID  *int64
	TokenType string
	Scopes    []string
	// Raw holds the full decoded payload, including the fields above. JSON
	// numbers are json.Number values.
	Raw map[string]any
}

// HasScope reports whether scope was granted.
func (c *Claims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	return slices.Contains(c.Scopes, scope)
}

// Decode unmarshals the raw payload into the provided struct reference.
func (c *Claims) Decode(ref any) error {
	b, err := json.Marshal(c.Raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, ref)
}
