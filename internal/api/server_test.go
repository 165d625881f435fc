package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/gorilla/websocket"

	"github.com/CedoySch/PhysicsLT2.2/internal/auth"
	"github.com/CedoySch/PhysicsLT2.2/internal/cache"
	"github.com/CedoySch/PhysicsLT2.2/internal/chart"
	"github.com/CedoySch/PhysicsLT2.2/internal/health"
	"github.com/CedoySch/PhysicsLT2.2/internal/kinematics"
	"github.com/CedoySch/PhysicsLT2.2/internal/stream"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testHandler(t *testing.T, authCfg auth.Config) (http.Handler, *cache.RenderCache, *health.Readiness) {
	t.Helper()
	logger := testLogger()
	renderer := chart.NewRenderer(chart.Config{WidthPx: 160, HeightPx: 100, DPI: 72})
	rc := cache.New(cache.Config{}, logger)
	readiness := &health.Readiness{}
	web := fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte("<!doctype html><title>projectile</title>")},
	}
	srv := NewServer(":0", logger, authCfg, Deps{
		Renderer:  renderer,
		Cache:     rc,
		Sessions:  stream.NewHandler(renderer, stream.Config{}, logger),
		Readiness: readiness,
		Web:       web,
	})
	return srv.Handler(), rc, readiness
}

func postTrajectory(h http.Handler, query, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/v1/trajectory"+query, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestTrajectoryOK(t *testing.T) {
	h, _, _ := testHandler(t, auth.Config{})

	w := postTrajectory(h, "", `{"h0":"0","v0":"50","angle":"45"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}

	var resp trajectoryResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SampleCount != kinematics.SampleCount {
		t.Errorf("sample_count = %d, want %d", resp.SampleCount, kinematics.SampleCount)
	}
	if resp.Solution.TFlight < 7.20 || resp.Solution.TFlight > 7.21 {
		t.Errorf("t_flight = %g, want ~7.208", resp.Solution.TFlight)
	}
	if len(resp.Figures) != len(chart.Kinds) {
		t.Fatalf("got %d figures, want %d", len(resp.Figures), len(chart.Kinds))
	}
	for i, fig := range resp.Figures {
		if fig.Kind != string(chart.Kinds[i]) {
			t.Errorf("figure %d kind = %q, want %q", i, fig.Kind, chart.Kinds[i])
		}
		for _, s := range fig.Series {
			if len(s.X) != kinematics.SampleCount || len(s.Y) != kinematics.SampleCount {
				t.Errorf("%s/%s: %d x %d points, want %d", fig.Kind, s.Label, len(s.X), len(s.Y), kinematics.SampleCount)
			}
		}
	}
	if resp.Figures[0].Series[0].Color != "#1f3fd6" {
		t.Errorf("trajectory color = %q, want #1f3fd6", resp.Figures[0].Series[0].Color)
	}
	if len(resp.Samples) != 0 {
		t.Errorf("samples included without ?samples=true")
	}
}

func TestTrajectorySamples(t *testing.T) {
	h, _, _ := testHandler(t, auth.Config{})

	// Bare JSON numbers are accepted as well as strings.
	w := postTrajectory(h, "?samples=true", `{"h0":10,"v0":0,"angle":0}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	var resp trajectoryResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Samples) != kinematics.SampleCount {
		t.Fatalf("got %d samples, want %d", len(resp.Samples), kinematics.SampleCount)
	}
	first, last := resp.Samples[0], resp.Samples[len(resp.Samples)-1]
	if first.T != 0 || first.Y != 10 {
		t.Errorf("first sample = %+v, want t=0 y=10", first)
	}
	if last.T != resp.Solution.TFlight {
		t.Errorf("last t = %g, want t_flight %g", last.T, resp.Solution.TFlight)
	}
}

func TestTrajectoryErrors(t *testing.T) {
	h, _, _ := testHandler(t, auth.Config{})

	tests := []struct {
		name       string
		query      string
		body       string
		wantStatus int
		wantKind   string
		wantField  string
		wantReason string
	}{
		{
			name:       "non-numeric height",
			body:       `{"h0":"abc","v0":"50","angle":"45"}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   "parse",
			wantField:  "h0",
		},
		{
			name:       "empty angle",
			body:       `{"h0":"0","v0":"50","angle":""}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   "parse",
			wantField:  "angle",
		},
		{
			name:       "negative discriminant",
			body:       `{"h0":"-5","v0":"1","angle":"90"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "no_solution",
			wantReason: string(kinematics.ReasonNegativeDiscriminant),
		},
		{
			name:       "negative root",
			body:       `{"h0":"-5","v0":"20","angle":"-90"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "no_solution",
			wantReason: string(kinematics.ReasonNegativeRoot),
		},
		{
			name:       "height overflows",
			body:       `{"h0":"1e308","v0":"0","angle":"0"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "no_solution",
			wantReason: string(kinematics.ReasonNonFinite),
		},
		{
			name:       "speed overflows",
			body:       `{"h0":"0","v0":"1e200","angle":"45"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "no_solution",
			wantReason: string(kinematics.ReasonNonFinite),
		},
		{
			name:       "malformed body",
			body:       `{"h0":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown field",
			body:       `{"h0":"0","v0":"1","angle":"1","mass":"3"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad samples flag",
			query:      "?samples=maybe",
			body:       `{"h0":"0","v0":"1","angle":"1"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postTrajectory(h, tt.query, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			var resp map[string]string
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp["error"] == "" {
				t.Error("expected error message in response")
			}
			if resp["kind"] != tt.wantKind {
				t.Errorf("kind = %q, want %q", resp["kind"], tt.wantKind)
			}
			if resp["field"] != tt.wantField {
				t.Errorf("field = %q, want %q", resp["field"], tt.wantField)
			}
			if resp["reason"] != tt.wantReason {
				t.Errorf("reason = %q, want %q", resp["reason"], tt.wantReason)
			}
		})
	}
}

func TestChartEndpoint(t *testing.T) {
	h, rc, _ := testHandler(t, auth.Config{})

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		return w
	}

	w := get("/api/v1/charts/trajectory?h0=0&v0=50&angle=45")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("body is not a PNG")
	}
	if got := w.Header().Get("X-Cache"); got != "MISS" {
		t.Errorf("first X-Cache = %q, want MISS", got)
	}

	w = get("/api/v1/charts/trajectory?h0=0&v0=50&angle=45")
	if got := w.Header().Get("X-Cache"); got != "HIT" {
		t.Errorf("second X-Cache = %q, want HIT", got)
	}

	w = get("/api/v1/charts/speed?h0=0&v0=50&angle=45&format=svg")
	if w.Code != http.StatusOK {
		t.Fatalf("svg status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %q, want image/svg+xml", ct)
	}

	if st := rc.Stats(); st.Entries != 2 || st.Hits != 1 || st.Misses != 2 {
		t.Errorf("cache stats = %+v, want 2 entries, 1 hit, 2 misses", st)
	}

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/api/v1/charts/altitude?h0=0&v0=50&angle=45", http.StatusNotFound},
		{"/api/v1/charts/trajectory?h0=0&v0=50&angle=45&format=gif", http.StatusBadRequest},
		{"/api/v1/charts/trajectory?h0=x&v0=50&angle=45", http.StatusBadRequest},
		{"/api/v1/charts/coordinates?h0=-5&v0=1&angle=90", http.StatusUnprocessableEntity},
		{"/api/v1/charts/trajectory?h0=1e308&v0=0&angle=0", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		if w := get(tt.path); w.Code != tt.wantStatus {
			t.Errorf("GET %s: status = %d, want %d", tt.path, w.Code, tt.wantStatus)
		}
	}

	// Failed computations are not cached.
	if st := rc.Stats(); st.Entries != 2 {
		t.Errorf("entries after errors = %d, want 2", st.Entries)
	}
}

func TestCacheStatsEndpoint(t *testing.T) {
	h, _, _ := testHandler(t, auth.Config{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/cache/stats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var st cache.Stats
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.MaxEntries != 256 || st.TTLSeconds != 600 {
		t.Errorf("stats = %+v, want defaults", st)
	}
}

func TestProbesAndStatic(t *testing.T) {
	h, _, readiness := testHandler(t, auth.Config{Enabled: true, Token: "secret"})

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		return w
	}

	if w := get("/readyz"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz before ready = %d, want 503", w.Code)
	}
	readiness.MarkReady()
	if w := get("/readyz"); w.Code != http.StatusOK {
		t.Errorf("readyz after ready = %d, want 200", w.Code)
	}
	if w := get("/healthz"); w.Code != http.StatusOK {
		t.Errorf("healthz = %d, want 200", w.Code)
	}

	w := get("/")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "projectile") {
		t.Errorf("index: status %d body %q", w.Code, w.Body.String())
	}

	// API routes require the token when auth is enabled.
	if w := get("/api/v1/cache/stats"); w.Code != http.StatusUnauthorized {
		t.Errorf("stats without token = %d, want 401", w.Code)
	}
	req := httptest.NewRequest("GET", "/api/v1/cache/stats", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("stats with token = %d, want 200", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	h, _, _ := testHandler(t, auth.Config{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
	generated := w.Header().Get(requestIDHeader)
	if generated == "" {
		t.Fatal("expected a generated request id")
	}

	const supplied = "6f1c1f44-2f3a-4a55-9c1e-8a0d6f0b7e21"
	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set(requestIDHeader, supplied)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get(requestIDHeader); got != supplied {
		t.Errorf("request id = %q, want client-supplied %q", got, supplied)
	}

	req = httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set(requestIDHeader, "not-a-uuid\nX-Evil: 1")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get(requestIDHeader); got == "" || strings.Contains(got, "evil") {
		t.Errorf("invalid client id should be replaced, got %q", got)
	}
}

func TestRespondEncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	respond(w, testLogger(), http.StatusOK, map[string]float64{"t": math.NaN()})

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if resp["kind"] != "render" || resp["error"] == "" {
		t.Errorf("body = %+v, want a render error", resp)
	}

	w = httptest.NewRecorder()
	if err := writeJSON(w, http.StatusOK, math.Inf(1)); err == nil {
		t.Fatal("expected encode error for +Inf")
	}
	if w.Body.Len() != 0 || w.Header().Get("Content-Type") != "" {
		t.Errorf("failed encode wrote to the response: %q", w.Body.String())
	}
}

// TestSessionAuth checks the web form's credentials reach the websocket
// session through the full middleware chain.
func TestSessionAuth(t *testing.T) {
	h, _, _ := testHandler(t, auth.Config{Enabled: true, Token: "secret"})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/session"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected upgrade without a token to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?access_token=secret", nil)
	if err != nil {
		t.Fatalf("dial with access_token failed: %v", err)
	}
	defer conn.Close()

	var hello map[string]any
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("reading hello: %v", err)
	}
	if hello["type"] != "hello" {
		t.Errorf("first message = %v, want hello", hello)
	}

	// REST calls from the form carry the same token as a Bearer header.
	req := httptest.NewRequest("POST", "/api/v1/trajectory", strings.NewReader(`{"h0":"0","v0":"10","angle":"30"}`))
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("trajectory with bearer token = %d, want 200", w.Code)
	}
}
