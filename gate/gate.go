package gate

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ggoodman/mcp-gate/audit"
	"github.com/ggoodman/mcp-gate/auth"
	"github.com/ggoodman/mcp-gate/internal/logctx"
)

const bearerPrefix = "Bearer "

// Lifecycle is implemented by wrapped handlers that need startup and
// shutdown notifications. The gate forwards both without inspection.
type Lifecycle interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

var (
	_ http.Handler = (*Gate)(nil)
	_ Lifecycle    = (*Gate)(nil)
)

// Gate is an http.Handler that admits policed requests only when they carry
// a bearer token the verifier accepts. It holds no per-request state and is
// safe for concurrent use.
type Gate struct {
	next     http.Handler
	verifier auth.TokenVerifier
	classify Classifier
	log      *slog.Logger
	metrics  *gateMetrics
	recorder audit.Recorder
	redact   bool
}

// New wraps next. v is consulted once per policed request.
func New(next http.Handler, v auth.TokenVerifier, opts ...Option) *Gate {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.classify == nil {
		cfg.classify = Classify
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}

	m, err := newMetrics(cfg.meter)
	if err != nil {
		cfg.logger.Warn("gate.metrics.init.fail", slog.String("err", err.Error()))
		m = noopMetrics()
	}

	return &Gate{
		next:     next,
		verifier: v,
		classify: cfg.classify,
		log:      cfg.logger,
		metrics:  m,
		recorder: cfg.recorder,
		redact:   cfg.redact,
	}
}

func (g *Gate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	surface := g.classify(r)
	rd := &logctx.RequestData{
		RequestID:  uuid.NewString(),
		Method:     r.Method,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
		Surface:    surface.String(),
	}
	ctx := logctx.WithRequestData(r.Context(), rd)

	if surface == Passthrough {
		g.log.DebugContext(ctx, "gate.passthrough")
		g.metrics.recordRequest(ctx, surface, audit.OutcomePassthrough, "")
		g.record(ctx, rd, audit.OutcomePassthrough, "", nil)
		g.next.ServeHTTP(w, r)
		return
	}

	tok, ok := bearerToken(r)
	if !ok {
		g.reject(ctx, w, rd, &auth.Rejection{Reason: auth.ReasonMissingOrMalformedHeader})
		return
	}

	start := time.Now()
	out := g.verify(tok)
	claims, verified := out.Claims()
	if !verified {
		g.metrics.recordVerify(ctx, time.Since(start), audit.OutcomeRejected)
		rej, _ := out.Rejection()
		g.reject(ctx, w, rd, rej)
		return
	}
	g.metrics.recordVerify(ctx, time.Since(start), audit.OutcomeVerified)

	ctx = auth.WithRequestAuth(ctx, tok, claims)
	ctx = logctx.WithAuthData(ctx, &logctx.AuthData{ClientID: claims.ClientID, TokenType: claims.TokenType})
	g.log.DebugContext(ctx, "auth.check.ok")
	g.metrics.recordRequest(ctx, surface, audit.OutcomeVerified, "")
	g.record(ctx, rd, audit.OutcomeVerified, "", claims.ClientID)

	g.next.ServeHTTP(w, r.WithContext(ctx))
}

// Start forwards to the wrapped handler when it implements Lifecycle.
func (g *Gate) Start(ctx context.Context) error {
	if l, ok := g.next.(Lifecycle); ok {
		return l.Start(ctx)
	}
	return nil
}

// Shutdown forwards to the wrapped handler when it implements Lifecycle.
func (g *Gate) Shutdown(ctx context.Context) error {
	if l, ok := g.next.(Lifecycle); ok {
		return l.Shutdown(ctx)
	}
	return nil
}

// verify shields the request path from panicking TokenVerifier
// implementations.
func (g *Gate) verify(tok string) (out auth.Outcome) {
	defer func() {
		if p := recover(); p != nil {
			out = auth.Rejected(auth.ReasonInternalError, fmt.Sprint(p))
		}
	}()
	return g.verifier.Verify(tok)
}

func (g *Gate) reject(ctx context.Context, w http.ResponseWriter, rd *logctx.RequestData, rej *auth.Rejection) {
	attrs := []any{
		slog.String("reason", rej.Reason.String()),
		slog.String("detail", rej.Detail),
	}
	if rej.Reason == auth.ReasonInternalError {
		g.log.ErrorContext(ctx, "auth.check.fail", attrs...)
	} else {
		g.log.WarnContext(ctx, "auth.check.fail", attrs...)
	}
	g.metrics.recordRequest(ctx, Policed, audit.OutcomeRejected, rej.Reason.String())
	g.record(ctx, rd, audit.OutcomeRejected, rej.Reason.String(), nil)

	msg := rej.Message()
	if g.redact && rej.Reason == auth.ReasonInternalError {
		msg = "Unexpected error"
	}
	writeUnauthorized(w, rej.Reason, msg)
}

func (g *Gate) record(ctx context.Context, rd *logctx.RequestData, outcome, reason string, clientID *int64) {
	if g.recorder == nil {
		return
	}
	g.recorder.Record(ctx, audit.Event{
		Time:      time.Now(),
		RequestID: rd.RequestID,
		Method:    rd.Method,
		Path:      rd.Path,
		Remote:    rd.RemoteAddr,
		Surface:   rd.Surface,
		Outcome:   outcome,
		Reason:    reason,
		ClientID:  clientID,
	})
}

// bearerToken returns the text after an exact, case-sensitive "Bearer "
// prefix. The token itself may be empty; the verifier rejects it.
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, bearerPrefix) {
		return "", false
	}
	return h[len(bearerPrefix):], true
}
