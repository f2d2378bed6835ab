// Package auth verifies bearer access tokens and carries the verified claims
// through a request's context.
//
// A Verifier is built once from a Config (public key, algorithm, optional
// client allow-list) and then used concurrently. Verify never returns an
// error value; it returns an Outcome that is either verified claims or a
// Rejection with a Reason:
//
//	v, err := auth.NewVerifier(auth.Config{PublicKey: pub},
//	    auth.WithAllowedClientIDs(7),
//	)
//	if err != nil { log.Fatal(err) }
//
//	out := v.Verify(tok)
//	if rej, failed := out.Rejection(); failed {
//	    // rej.Message() is the caller-facing text
//	}
//	claims, _ := out.Claims()
//
// # Check order
//
// Checks run in a fixed order and the first failure wins: signature and
// expiry, client allow-list, required scope ("client_super" by default),
// token type ("access"). Claim policy is only evaluated on a payload whose
// signature verified.
//
// # Request context
//
// WithRequestAuth, TokenFromContext and ClaimsFromContext store and read the
// token and claims on a context.Context derived from the request, so
// concurrently handled requests never observe each other's values.
package auth
