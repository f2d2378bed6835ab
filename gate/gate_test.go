package gate_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/ggoodman/mcp-gate/audit"
	"github.com/ggoodman/mcp-gate/auth"
	"github.com/ggoodman/mcp-gate/auth/authtest"
	"github.com/ggoodman/mcp-gate/gate"
)

// recordingHandler captures what reached the wrapped handler.
type recordingHandler struct {
	mu      sync.Mutex
	calls   int
	claims  *auth.Claims
	token   string
	body    string
	headers http.Header

	started, stopped int
	startErr         error
}

func (h *recordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	h.claims, _ = auth.ClaimsFromContext(r.Context())
	h.token, _ = auth.TokenFromContext(r.Context())
	h.body = string(b)
	h.headers = r.Header.Clone()
	w.WriteHeader(http.StatusTeapot)
}

func (h *recordingHandler) Start(context.Context) error {
	h.started++
	return h.startErr
}

func (h *recordingHandler) Shutdown(context.Context) error {
	h.stopped++
	return nil
}

func do(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	return rr
}

func policed(authz string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{"jsonrpc":"2.0"}`))
	r.Header.Set("Content-Type", "application/json")
	if authz != "" {
		r.Header.Set("Authorization", authz)
	}
	return r
}

func assertDetail(t *testing.T, rr *httptest.ResponseRecorder, want string) {
	t.Helper()
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q", ct)
	}
	if got, wantBody := rr.Body.String(), fmt.Sprintf(`{"detail":%q}`, want); got != wantBody {
		t.Fatalf("body = %s, want %s", got, wantBody)
	}
}

func TestGate_Scenarios(t *testing.T) {
	iss := authtest.NewIssuer(t)
	v := iss.Verifier(t, auth.WithAllowedClientIDs(7))

	t.Run("valid token is forwarded with claims", func(t *testing.T) {
		next := &recordingHandler{}
		g := gate.New(next, v)
		tok := iss.AccessToken(t, 7, nil)

		rr := do(g, policed("Bearer "+tok))
		if rr.Code != http.StatusTeapot {
			t.Fatalf("status = %d, want downstream status", rr.Code)
		}
		if next.calls != 1 {
			t.Fatalf("downstream calls = %d", next.calls)
		}
		if next.claims == nil || next.claims.ClientID == nil || *next.claims.ClientID != 7 {
			t.Fatalf("downstream claims = %+v", next.claims)
		}
		if next.token != tok {
			t.Fatalf("downstream token mismatch")
		}
		if next.body != `{"jsonrpc":"2.0"}` || next.headers.Get("Authorization") != "Bearer "+tok {
			t.Fatalf("request was altered: body=%q headers=%v", next.body, next.headers)
		}
	})

	t.Run("missing header", func(t *testing.T) {
		next := &recordingHandler{}
		rr := do(gate.New(next, v), policed(""))
		assertDetail(t, rr, "Unauthorized")
		if next.calls != 0 {
			t.Fatalf("rejected request reached downstream")
		}
	})

	t.Run("expired token", func(t *testing.T) {
		next := &recordingHandler{}
		tok := iss.AccessToken(t, 7, jwt.MapClaims{"exp": time.Now().Add(-time.Minute).Unix()})
		rr := do(gate.New(next, v), policed("Bearer "+tok))
		assertDetail(t, rr, "Access token has expired")
		if next.calls != 0 {
			t.Fatalf("rejected request reached downstream")
		}
	})

	t.Run("empty scopes", func(t *testing.T) {
		next := &recordingHandler{}
		tok := iss.AccessToken(t, 7, jwt.MapClaims{"scopes": []string{}})
		rr := do(gate.New(next, v), policed("Bearer "+tok))
		assertDetail(t, rr, "Insufficient token scopes")
		if next.calls != 0 {
			t.Fatalf("rejected request reached downstream")
		}
	})
}

func TestGate_EveryRejectionMessage(t *testing.T) {
	iss := authtest.NewIssuer(t)
	other := authtest.NewIssuer(t)
	v := iss.Verifier(t, auth.WithAllowedClientIDs(7))

	tests := []struct {
		name   string
		authz  string
		detail string
	}{
		{"bad signature", "Bearer " + other.AccessToken(t, 7, nil), "Invalid token"},
		{"garbage", "Bearer abc.def", "Invalid token"},
		{"empty token", "Bearer ", "Invalid token"},
		{"unknown client", "Bearer " + iss.AccessToken(t, 8, nil), "Unauthorized client ID"},
		{"refresh token", "Bearer " + iss.AccessToken(t, 7, jwt.MapClaims{"type": "refresh"}), "Invalid token type"},
		{"lowercase scheme", "bearer " + iss.AccessToken(t, 7, nil), "Unauthorized"},
		{"scheme without space", "Bearer", "Unauthorized"},
		{"basic auth", "Basic dXNlcjpwYXNz", "Unauthorized"},
		{"leading space", " Bearer " + iss.AccessToken(t, 7, nil), "Unauthorized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &recordingHandler{}
			assertDetail(t, do(gate.New(next, v), policed(tt.authz)), tt.detail)
			if next.calls != 0 {
				t.Fatalf("rejected request reached downstream")
			}
		})
	}
}

func TestGate_InternalErrors(t *testing.T) {
	panicking := authtest.VerifierFunc(func(string) auth.Outcome { panic("kaboom") })
	failing := authtest.VerifierFunc(func(string) auth.Outcome {
		return auth.Rejected(auth.ReasonInternalError, "scopes claim has unsupported type float64")
	})

	t.Run("panicking verifier", func(t *testing.T) {
		next := &recordingHandler{}
		assertDetail(t, do(gate.New(next, panicking), policed("Bearer x")), "Unexpected error: kaboom")
		if next.calls != 0 {
			t.Fatalf("rejected request reached downstream")
		}
	})

	t.Run("detail exposed by default", func(t *testing.T) {
		assertDetail(t, do(gate.New(&recordingHandler{}, failing), policed("Bearer x")),
			"Unexpected error: scopes claim has unsupported type float64")
	})

	t.Run("redacted", func(t *testing.T) {
		g := gate.New(&recordingHandler{}, failing, gate.WithRedactedInternalErrors())
		assertDetail(t, do(g, policed("Bearer x")), "Unexpected error")
	})
}

func TestGate_Passthrough(t *testing.T) {
	iss := authtest.NewIssuer(t)
	cv := &authtest.CountingVerifier{Next: iss.Verifier(t)}

	sse := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	sse.Header.Set("Accept", "text/event-stream")

	ws := httptest.NewRequest(http.MethodGet, "/ws", nil)
	ws.Header.Set("Connection", "keep-alive, Upgrade")
	ws.Header.Set("Upgrade", "websocket")

	for name, r := range map[string]*http.Request{"sse": sse, "websocket": ws} {
		t.Run(name, func(t *testing.T) {
			next := &recordingHandler{}
			rr := do(gate.New(next, cv), r)
			if rr.Code != http.StatusTeapot || next.calls != 1 {
				t.Fatalf("status = %d calls = %d", rr.Code, next.calls)
			}
			if next.claims != nil {
				t.Fatalf("passthrough request must not carry claims")
			}
			if rr.Header().Get("WWW-Authenticate") != "" {
				t.Fatalf("gate wrote headers on a passthrough request")
			}
		})
	}
	if cv.Calls() != 0 {
		t.Fatalf("verifier called %d times for passthrough requests", cv.Calls())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		method string
		header map[string]string
		want   gate.Surface
	}{
		{"post json", http.MethodPost, map[string]string{"Accept": "application/json, text/event-stream"}, gate.Policed},
		{"get without accept", http.MethodGet, nil, gate.Policed},
		{"get wildcard", http.MethodGet, map[string]string{"Accept": "*/*"}, gate.Policed},
		{"get json", http.MethodGet, map[string]string{"Accept": "application/json"}, gate.Policed},
		{"get event stream", http.MethodGet, map[string]string{"Accept": "text/event-stream"}, gate.Passthrough},
		{"get prefers event stream", http.MethodGet, map[string]string{"Accept": "text/event-stream, application/json;q=0.5"}, gate.Passthrough},
		{"post event stream", http.MethodPost, map[string]string{"Accept": "text/event-stream"}, gate.Policed},
		{"upgrade", http.MethodGet, map[string]string{"Connection": "Upgrade", "Upgrade": "websocket"}, gate.Passthrough},
		{"upgrade header without connection token", http.MethodGet, map[string]string{"Upgrade": "websocket"}, gate.Policed},
		{"connection upgrade without protocol", http.MethodGet, map[string]string{"Connection": "upgrade"}, gate.Policed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "/", nil)
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			if got := gate.Classify(r); got != tt.want {
				t.Fatalf("Classify = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGate_CustomClassifierPolicesStreams(t *testing.T) {
	iss := authtest.NewIssuer(t)
	next := &recordingHandler{}
	g := gate.New(next, iss.Verifier(t), gate.WithClassifier(func(*http.Request) gate.Surface { return gate.Policed }))

	r := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	r.Header.Set("Accept", "text/event-stream")
	assertDetail(t, do(g, r), "Unauthorized")
}

func TestGate_Lifecycle(t *testing.T) {
	cv := &authtest.CountingVerifier{Next: authtest.VerifierFunc(func(string) auth.Outcome { return auth.Outcome{} })}
	next := &recordingHandler{startErr: errors.New("port in use")}
	g := gate.New(next, cv)

	if err := g.Start(context.Background()); err == nil || err.Error() != "port in use" {
		t.Fatalf("start err = %v", err)
	}
	if err := g.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown err = %v", err)
	}
	if next.started != 1 || next.stopped != 1 {
		t.Fatalf("lifecycle not forwarded: started=%d stopped=%d", next.started, next.stopped)
	}
	if cv.Calls() != 0 {
		t.Fatalf("lifecycle events must not be verified")
	}

	plain := gate.New(http.NotFoundHandler(), cv)
	if err := plain.Start(context.Background()); err != nil {
		t.Fatalf("start on plain handler: %v", err)
	}
	if err := plain.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown on plain handler: %v", err)
	}
}

func TestGate_ConcurrentRequestsKeepTheirOwnClaims(t *testing.T) {
	iss := authtest.NewIssuer(t)
	v := iss.Verifier(t)

	seen := make(chan [2]int64, 64)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := auth.ClaimsFromContext(r.Context())
		if !ok || c.ClientID == nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var want int64
		fmt.Sscan(r.Header.Get("X-Client"), &want)
		seen <- [2]int64{want, *c.ClientID}
		w.WriteHeader(http.StatusNoContent)
	})
	ts := httptest.NewServer(gate.New(next, v))
	defer ts.Close()

	const n = 64
	toks := make([]string, n)
	for i := range toks {
		toks[i] = iss.AccessToken(t, int64(i), nil)
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _ := http.NewRequest(http.MethodPost, ts.URL, strings.NewReader("{}"))
			req.Header.Set("Authorization", "Bearer "+toks[i])
			req.Header.Set("X-Client", fmt.Sprint(i))
			resp, err := ts.Client().Do(req)
			if err != nil {
				errs <- err
				return
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusNoContent {
				errs <- fmt.Errorf("request %d: status %d", i, resp.StatusCode)
			}
		}()
	}
	wg.Wait()
	close(errs)
	close(seen)
	for err := range errs {
		t.Error(err)
	}
	count := 0
	for pair := range seen {
		count++
		if pair[0] != pair[1] {
			t.Errorf("request for client %d observed claims of client %d", pair[0], pair[1])
		}
	}
	if count != n {
		t.Fatalf("downstream saw %d requests, want %d", count, n)
	}
}

func TestGate_Metrics(t *testing.T) {
	iss := authtest.NewIssuer(t)
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	g := gate.New(&recordingHandler{}, iss.Verifier(t), gate.WithMeter(mp.Meter("test")))

	do(g, policed("Bearer "+iss.AccessToken(t, 1, nil)))
	do(g, policed(""))
	do(g, policed("Bearer nope"))
	sse := httptest.NewRequest(http.MethodGet, "/", nil)
	sse.Header.Set("Accept", "text/event-stream")
	do(g, sse)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	m := findMetric(rm, "gate.requests")
	if m == nil {
		t.Fatalf("gate.requests not recorded")
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("gate.requests data = %T", m.Data)
	}
	byOutcome := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value("outcome")
		byOutcome[v.AsString()] += dp.Value
	}
	if byOutcome["verified"] != 1 || byOutcome["rejected"] != 2 || byOutcome["passthrough"] != 1 {
		t.Fatalf("outcomes = %v", byOutcome)
	}

	h := findMetric(rm, "gate.verify.duration_ms")
	if h == nil {
		t.Fatalf("gate.verify.duration_ms not recorded")
	}
	hist, ok := h.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("duration data = %T", h.Data)
	}
	var verifications uint64
	for _, dp := range hist.DataPoints {
		verifications += dp.Count
	}
	// The missing-header request never reaches the verifier.
	if verifications != 2 {
		t.Fatalf("verify histogram count = %d, want 2", verifications)
	}
}

type memRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (m *memRecorder) Record(_ context.Context, e audit.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

func TestGate_Audit(t *testing.T) {
	iss := authtest.NewIssuer(t)
	rec := &memRecorder{}
	g := gate.New(&recordingHandler{}, iss.Verifier(t, auth.WithAllowedClientIDs(7)), gate.WithAuditor(rec))

	do(g, policed("Bearer "+iss.AccessToken(t, 7, nil)))
	do(g, policed("Bearer "+iss.AccessToken(t, 9, nil)))

	if len(rec.events) != 2 {
		t.Fatalf("events = %d", len(rec.events))
	}
	ok, rej := rec.events[0], rec.events[1]
	if ok.Outcome != audit.OutcomeVerified || ok.ClientID == nil || *ok.ClientID != 7 || ok.RequestID == "" {
		t.Fatalf("verified event = %+v", ok)
	}
	if rej.Outcome != audit.OutcomeRejected || rej.Reason != "unauthorized_client" || rej.ClientID != nil {
		t.Fatalf("rejected event = %+v", rej)
	}
	if ok.RequestID == rej.RequestID {
		t.Fatalf("request ids must be unique")
	}
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}
