package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"

	"github.com/khanhnv2901/gatespy/internal/lifecycle"
	"github.com/khanhnv2901/gatespy/internal/relay"
)

const scannerReport = `{"target":{"url":"https://shop.example.com/checkout","domain":"shop.example.com"},"payment":{"providers":["stripe"]},"security":{"https":true}}`

func newFakeScanner(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			_, _ = io.WriteString(w, `{"status":"ok"}`)
		case "/analyze":
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, scannerReport)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, scannerURL string, mutate func(*Config)) (*Server, *lifecycle.Controller) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	gateway := relay.NewGateway(relay.Config{ScannerURL: scannerURL, Logger: logger})
	dashboard := lifecycle.New(gateway.Analyzer(), lifecycle.Options{Timeout: 5 * time.Second, Logger: logger})
	cfg := Config{Gateway: gateway, Dashboard: dashboard, Logger: logger}
	if mutate != nil {
		mutate(&cfg)
	}
	srv := NewServer(cfg)
	t.Cleanup(func() {
		srv.Close()
		dashboard.Close()
	})
	return srv, dashboard
}

func waitForState(t *testing.T, c *lifecycle.Controller, want lifecycle.State) lifecycle.Snapshot {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if s := c.Snapshot(); s.State == want {
			return s
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s, last %+v", want, c.Snapshot())
	return lifecycle.Snapshot{}
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSON(rr, http.StatusCreated, map[string]string{"status": "ok"})

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected application/json content-type, got %s", got)
	}
	if !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestWriteErrorSanitizesInternal(t *testing.T) {
	s := NewServer(Config{Logger: zaptest.NewLogger(t)})
	defer s.Close()

	rr := httptest.NewRecorder()
	s.writeError(rr, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusInternalServerError, errors.New("boom"))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "internal server error") || strings.Contains(rr.Body.String(), "boom") {
		t.Fatalf("expected sanitized message, got %s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	s.writeError(rr, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusBadRequest, errors.New("bad input"))
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "bad input") {
		t.Fatalf("expected original message, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestWriteStreamChunk(t *testing.T) {
	s := NewServer(Config{})
	defer s.Close()

	rr := httptest.NewRecorder()
	if !s.writeStreamChunk(rr, []byte("hello")) || rr.Body.String() != "hello" {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
	if s.writeStreamChunk(&failingWriter{}, []byte("fail")) {
		t.Fatalf("expected writeStreamChunk to fail")
	}
}

type failingWriter struct{}

func (f *failingWriter) Header() http.Header { return http.Header{} }
func (f *failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("write failed")
}
func (f *failingWriter) WriteHeader(statusCode int) {}

func TestHealthAndReady(t *testing.T) {
	scanner := newFakeScanner(t)
	srv, _ := newTestServer(t, scanner.URL, nil)

	for _, path := range []string{"/health", "/ready"} {
		rr := httptest.NewRecorder()
		srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d %s", path, rr.Code, rr.Body.String())
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Fatalf("%s: expected request id header", path)
		}
	}
}

func TestReadyScannerDown(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	addr := down.URL
	down.Close()
	srv, _ := newTestServer(t, addr, nil)

	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := newTestServer(t, "http://127.0.0.1:1", nil)

	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rr.Code != http.StatusNotFound || !strings.Contains(rr.Body.String(), `"error":"not found"`) {
		t.Fatalf("unexpected response %d %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/health", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestGatewayRoutesPassThrough(t *testing.T) {
	scanner := newFakeScanner(t)
	srv, _ := newTestServer(t, scanner.URL, nil)

	for _, path := range []string{"/analyze", "/api/analyze"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"url":"https://shop.example.com/checkout"}`))
		req.Header.Set("Content-Type", "application/json")
		srv.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rr.Code)
		}
		if rr.Body.String() != scannerReport {
			t.Fatalf("%s: body was altered: %s", path, rr.Body.String())
		}
	}
}

func TestDashboardJSONSubmitAndDownloads(t *testing.T) {
	scanner := newFakeScanner(t)
	srv, dashboard := newTestServer(t, scanner.URL, nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/dashboard/analyze", strings.NewReader(`{"url":"https://shop.example.com/checkout"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d %s", rr.Code, rr.Body.String())
	}
	waitForState(t, dashboard, lifecycle.StateSucceeded)

	rr = httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/dashboard/state", nil))
	var state struct {
		State    string `json:"state"`
		Sections struct {
			HasReport bool `json:"has_report"`
			Providers struct {
				Items []string `json:"items"`
			} `json:"providers"`
		} `json:"sections"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.State != "succeeded" || !state.Sections.HasReport || len(state.Sections.Providers.Items) != 1 {
		t.Fatalf("unexpected state: %+v", state)
	}

	rr = httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	doc, err := goquery.NewDocumentFromReader(rr.Body)
	if err != nil {
		t.Fatalf("parse dashboard: %v", err)
	}
	if got := doc.Find("#providers .tag").Text(); got != "stripe" {
		t.Fatalf("unexpected providers %q", got)
	}
	if got := doc.Find(`#security li[data-flag="HTTPS"]`).AttrOr("data-value", ""); got != "yes" {
		t.Fatalf("unexpected https flag %q", got)
	}

	rr = httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/dashboard/report.json", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Disposition"); got != `attachment; filename="gatespy-report.json"` {
		t.Fatalf("unexpected disposition %q", got)
	}
	var exported, original any
	_ = json.Unmarshal([]byte(scannerReport), &original)
	if err := json.Unmarshal(rr.Body.Bytes(), &exported); err != nil {
		t.Fatalf("export is not json: %v", err)
	}
	if !reflect.DeepEqual(exported, original) {
		t.Fatalf("export differs from scanner report: %v", exported)
	}
	if !strings.Contains(rr.Body.String(), "\n  \"payment\"") {
		t.Fatalf("expected indented export, got %s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/dashboard/report.pdf", nil))
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("unexpected pdf response %d %s", rr.Code, rr.Header().Get("Content-Type"))
	}
}

func TestDashboardFormSubmitRedirects(t *testing.T) {
	scanner := newFakeScanner(t)
	srv, dashboard := newTestServer(t, scanner.URL, nil)

	form := url.Values{"url": {"https://shop.example.com/checkout"}}
	req := httptest.NewRequest(http.MethodPost, "/dashboard/analyze", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Fatalf("expected 303 to /, got %d %s", rr.Code, rr.Header().Get("Location"))
	}
	waitForState(t, dashboard, lifecycle.StateSucceeded)
}

func TestDashboardEmptySubmitIsNoOp(t *testing.T) {
	srv, dashboard := newTestServer(t, "http://127.0.0.1:1", nil)

	req := httptest.NewRequest(http.MethodPost, "/dashboard/analyze", strings.NewReader("url=+"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/dashboard/analyze", strings.NewReader(`{"url":""}`))
	req.Header.Set("Content-Type", "application/json")
	rr = httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	if s := dashboard.Snapshot(); s.State != lifecycle.StateIdle {
		t.Fatalf("expected idle, got %s", s.State)
	}
}

func TestDashboardDownloadsWithoutReport(t *testing.T) {
	srv, _ := newTestServer(t, "http://127.0.0.1:1", nil)

	for _, path := range []string{"/dashboard/report.json", "/dashboard/report.pdf"} {
		rr := httptest.NewRecorder()
		srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), `"error":"no report available"`) {
			t.Fatalf("%s: unexpected body %s", path, rr.Body.String())
		}
	}
}

func TestDashboardFailureShowsError(t *testing.T) {
	scanner := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, "not found")
	}))
	defer scanner.Close()
	srv, dashboard := newTestServer(t, scanner.URL, nil)

	if _, err := dashboard.Submit("https://gone.example"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	snap := waitForState(t, dashboard, lifecycle.StateFailed)
	if snap.Error != "analyzer error: not found" {
		t.Fatalf("unexpected error %q", snap.Error)
	}

	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	doc, err := goquery.NewDocumentFromReader(rr.Body)
	if err != nil {
		t.Fatalf("parse dashboard: %v", err)
	}
	if got := doc.Find("#error").Text(); !strings.Contains(got, "analyzer error: not found") {
		t.Fatalf("unexpected error text %q", got)
	}
	if doc.Find("#payment").Length() != 0 {
		t.Fatal("expected no report sections after failure")
	}
}

func TestDashboardEventsStream(t *testing.T) {
	scanner := newFakeScanner(t)
	srv, dashboard := newTestServer(t, scanner.URL, nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/dashboard/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %s", ct)
	}

	reader := bufio.NewReader(resp.Body)
	next := func() string {
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read event: %v", err)
			}
			if strings.HasPrefix(line, "data: ") {
				return line
			}
		}
	}

	if first := next(); !strings.Contains(first, `"state":"idle"`) {
		t.Fatalf("expected idle snapshot first, got %s", first)
	}
	if _, err := dashboard.Submit("https://shop.example.com/checkout"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if ev := next(); !strings.Contains(ev, `"state":"analyzing"`) {
		t.Fatalf("expected analyzing, got %s", ev)
	}
	if ev := next(); !strings.Contains(ev, `"state":"succeeded"`) || !strings.Contains(ev, "stripe") {
		t.Fatalf("expected succeeded with report, got %s", ev)
	}
}

func TestDashboardWebsocket(t *testing.T) {
	scanner := newFakeScanner(t)
	srv, dashboard := newTestServer(t, scanner.URL, nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/dashboard"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var state DashboardState
	if err := conn.ReadJSON(&state); err != nil {
		t.Fatalf("read: %v", err)
	}
	if state.State != lifecycle.StateIdle {
		t.Fatalf("expected idle, got %s", state.State)
	}

	if _, err := dashboard.Submit("https://shop.example.com/checkout"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	for state.State != lifecycle.StateSucceeded {
		if err := conn.ReadJSON(&state); err != nil {
			t.Fatalf("read: %v", err)
		}
	}
	if !state.Sections.HasReport {
		t.Fatal("expected rendered sections with the final snapshot")
	}
}

func TestCORS(t *testing.T) {
	srv, _ := newTestServer(t, "http://127.0.0.1:1", func(c *Config) {
		c.CORSOrigins = []string{"https://ok.example"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/analyze", nil)
	req.Header.Set("Origin", "https://ok.example")
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent || rr.Header().Get("Access-Control-Allow-Origin") != "https://ok.example" {
		t.Fatalf("unexpected preflight %d %v", rr.Code, rr.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no CORS header, got %q", got)
	}
}

func TestRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, "http://127.0.0.1:1", func(c *Config) {
		c.RateLimit = 1
		c.RateBurst = 2
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "203.0.113.9:5555"
		rr := httptest.NewRecorder()
		srv.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remote, forwarded, want string
	}{
		{"192.0.2.1:1234", "", "192.0.2.1"},
		{"192.0.2.1:1234", "198.51.100.7, 10.0.0.1", "198.51.100.7"},
		{"[2001:db8::1]:443", "", "2001:db8::1"},
		{"192.0.2.1", "", "192.0.2.1"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remote
		if tt.forwarded != "" {
			req.Header.Set("X-Forwarded-For", tt.forwarded)
		}
		if got := clientIP(req); got != tt.want {
			t.Errorf("clientIP(%q, %q) = %q, want %q", tt.remote, tt.forwarded, got, tt.want)
		}
	}
}

func TestRateLimiterEviction(t *testing.T) {
	m := newRateLimiterMap()
	defer m.stop()

	m.getLimiter("a", 1, 1)
	m.evictIdle(time.Now().Add(limiterIdleTTL + time.Second))
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.limiters) != 0 {
		t.Fatalf("expected idle limiter to be evicted, got %d", len(m.limiters))
	}
}
