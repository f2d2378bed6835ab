// Package gate puts bearer-token authorization in front of an http.Handler.
//
// Every request is first classified. Passthrough requests (protocol upgrades
// and event-stream GETs by default) go straight to the wrapped handler and
// are never inspected. Policed requests must carry
//
//	Authorization: Bearer <token>
//
// and the token must be accepted by the configured auth.TokenVerifier.
// Failures are answered with 401 and a JSON body of the form
// {"detail": "<message>"}; the wrapped handler never sees them. Accepted
// requests are forwarded unchanged except for their context, which carries
// the token and claims (see auth.ClaimsFromContext).
//
// A Gate also forwards Start and Shutdown to the wrapped handler when it
// implements Lifecycle, so process lifecycle events bypass authorization.
//
// Example:
//
//	v, err := auth.NewVerifier(auth.Config{PublicKey: key}, auth.WithAllowedClientIDs(7))
//	if err != nil {
//		return err
//	}
//	h := gate.New(tools, v, gate.WithLogger(log))
//	srv := &http.Server{Addr: addr, Handler: h}
//
// Note that passthrough surfaces are unauthenticated. Supply WithClassifier
// to police them as well.
package gate
