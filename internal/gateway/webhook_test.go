package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jomarcello/railway-webhook/internal/config"
	"github.com/jomarcello/railway-webhook/internal/store"
)

type fixCall struct {
	deploymentID string
	serviceName  string
	logs         string
}

// fakeFixer records Start invocations without running anything.
type fakeFixer struct {
	mu    sync.Mutex
	calls []fixCall
}

func (f *fakeFixer) Start(deploymentID, serviceName, logs string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fixCall{deploymentID, serviceName, logs})
}

func (f *fakeFixer) snapshot() []fixCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]fixCall, len(f.calls))
	copy(out, f.calls)
	return out
}

type fakePinger struct {
	err error

	mu    sync.Mutex
	calls int
}

func (p *fakePinger) Ping(ctx context.Context) error {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.err
}

func (p *fakePinger) pings() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newTestGateway(t *testing.T, mode, authToken string) (*Gateway, *fakeFixer) {
	t.Helper()
	fixer := &fakeFixer{}
	gw := &Gateway{
		cfg: &config.Config{
			Server: config.ServerConfig{Mode: mode, AuthToken: authToken},
		},
		store:       store.New(),
		fixer:       fixer,
		broadcaster: newBroadcaster(),
		startedAt:   time.Now(),
	}
	return gw, fixer
}

func postJSON(t *testing.T, handler http.Handler, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestWebhookRejectsInvalidJSON(t *testing.T) {
	gw, fixer := newTestGateway(t, config.ModeAutofix, "")
	handler := buildHandler(gw)

	for _, body := range []string{
		"",
		"{not json",
		`"just a string"`,
		"null",
		"[1,2,3]",
		`{"event":"deployment.failed"} trailing junk`,
		`{"event":"deployment.failed"}{"event":"again"}`,
	} {
		rr := postJSON(t, handler, "/webhook", body, "")
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d: %s", body, rr.Code, rr.Body.String())
		}
		resp := decodeBody(t, rr)
		if resp["error"] != "Invalid JSON payload" {
			t.Fatalf("body %q: unexpected error message: %v", body, resp["error"])
		}
	}

	if n := gw.store.Len(); n != 0 {
		t.Fatalf("invalid payloads must not be stored, found %d records", n)
	}
	if calls := fixer.snapshot(); len(calls) != 0 {
		t.Fatalf("invalid payloads must not dispatch fixes, got %d calls", len(calls))
	}
}

func TestWebhookRejectsWrongContentType(t *testing.T) {
	gw, _ := newTestGateway(t, config.ModeNotify, "")
	handler := buildHandler(gw)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"event":"deployment.failed"}`))
	req.Header.Set("Content-Type", "text/plain")
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for text/plain, got %d", rr.Code)
	}
	if n := gw.store.Len(); n != 0 {
		t.Fatalf("rejected payload must not be stored, found %d records", n)
	}
}

func TestWebhookFailedDeploymentAutofix(t *testing.T) {
	gw, fixer := newTestGateway(t, config.ModeAutofix, "")
	handler := buildHandler(gw)

	body := `{"event":"deployment.failed","deployment":{"id":"d1"},"service":{"name":"api"}}`
	rr := postJSON(t, handler, "/webhook", body, "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeBody(t, rr)
	if resp["status"] != "processing" {
		t.Fatalf("expected status processing, got %v", resp["status"])
	}
	msg, _ := resp["message"].(string)
	if !strings.Contains(msg, "d1") {
		t.Fatalf("expected message to name deployment d1, got %q", msg)
	}

	if n := gw.store.Len(); n != 1 {
		t.Fatalf("expected 1 stored record, got %d", n)
	}
	calls := fixer.snapshot()
	if len(calls) != 1 {
		t.Fatalf("expected exactly 1 fix dispatch, got %d", len(calls))
	}
	if calls[0].deploymentID != "d1" || calls[0].serviceName != "api" || calls[0].logs != "" {
		t.Fatalf("unexpected dispatch: %+v", calls[0])
	}
}

func TestWebhookFailedDeploymentNotifyMode(t *testing.T) {
	gw, fixer := newTestGateway(t, config.ModeNotify, "")
	handler := buildHandler(gw)

	body := `{"event":"deployment.failed","deployment":{"id":"d2"},"service":{"name":"worker"}}`
	rr := postJSON(t, handler, "/webhook", body, "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeBody(t, rr)
	if resp["status"] != "received" {
		t.Fatalf("expected status received, got %v", resp["status"])
	}
	if msg, _ := resp["message"].(string); msg != "Notification received for failed deployment d2" {
		t.Fatalf("unexpected message: %q", msg)
	}
	if calls := fixer.snapshot(); len(calls) != 0 {
		t.Fatalf("notify mode must not dispatch fixes, got %d calls", len(calls))
	}
	if n := gw.store.Len(); n != 1 {
		t.Fatalf("expected 1 stored record, got %d", n)
	}
}

func TestWebhookNonFailureEventStoredNotDispatched(t *testing.T) {
	gw, fixer := newTestGateway(t, config.ModeAutofix, "")
	handler := buildHandler(gw)

	rr := postJSON(t, handler, "/webhook", `{"event":"deployment.succeeded"}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decodeBody(t, rr)
	if resp["status"] != "ignored" {
		t.Fatalf("autofix mode should ignore non-failure events, got %v", resp["status"])
	}

	if n := gw.store.Len(); n != 1 {
		t.Fatalf("non-failure events must still be stored, got %d records", n)
	}
	if calls := fixer.snapshot(); len(calls) != 0 {
		t.Fatalf("non-failure events must not dispatch fixes, got %d calls", len(calls))
	}
}

func TestWebhookFailedDeploymentMissingFields(t *testing.T) {
	gw, fixer := newTestGateway(t, config.ModeAutofix, "")
	handler := buildHandler(gw)

	// No deployment/service objects at all: still accepted, dispatched
	// with empty identifiers.
	rr := postJSON(t, handler, "/webhook", `{"event":"deployment.failed"}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	calls := fixer.snapshot()
	if len(calls) != 1 {
		t.Fatalf("expected 1 dispatch, got %d", len(calls))
	}
	if calls[0].deploymentID != "" || calls[0].serviceName != "" {
		t.Fatalf("expected empty identifiers, got %+v", calls[0])
	}
}

func TestWebhookAuthRejectsWithoutSideEffects(t *testing.T) {
	gw, fixer := newTestGateway(t, config.ModeAutofix, "s3cret")
	handler := buildHandler(gw)

	body := `{"event":"deployment.failed","deployment":{"id":"d1"}}`

	for name, bearer := range map[string]string{
		"missing": "",
		"wrong":   "nope",
	} {
		rr := postJSON(t, handler, "/webhook", body, bearer)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s token: expected 401, got %d", name, rr.Code)
		}
		resp := decodeBody(t, rr)
		if resp["error"] != "Unauthorized" {
			t.Fatalf("%s token: unexpected error body: %v", name, resp)
		}
	}

	if n := gw.store.Len(); n != 0 {
		t.Fatalf("rejected requests must not be stored, found %d", n)
	}
	if calls := fixer.snapshot(); len(calls) != 0 {
		t.Fatalf("rejected requests must not dispatch fixes, got %d", len(calls))
	}

	// The correct token passes.
	rr := postJSON(t, handler, "/webhook", body, "s3cret")
	if rr.Code != http.StatusOK {
		t.Fatalf("valid token: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if n := gw.store.Len(); n != 1 {
		t.Fatalf("expected 1 stored record after valid request, got %d", n)
	}
}

func TestAuthorized(t *testing.T) {
	cases := []struct {
		header string
		secret string
		want   bool
	}{
		{"", "", true},
		{"Bearer anything", "", true},
		{"Bearer s3cret", "s3cret", true},
		{"", "s3cret", false},
		{"Bearer wrong", "s3cret", false},
		{"bearer s3cret", "s3cret", false},
		{"Bearer s3cret ", "s3cret", false},
		{"s3cret", "s3cret", false},
	}
	for _, c := range cases {
		if got := authorized(c.header, c.secret); got != c.want {
			t.Fatalf("authorized(%q, %q) = %v, want %v", c.header, c.secret, got, c.want)
		}
	}
}

func TestNotificationsListAndClear(t *testing.T) {
	gw, _ := newTestGateway(t, config.ModeNotify, "")
	handler := buildHandler(gw)

	for i := 0; i < 3; i++ {
		rr := postJSON(t, handler, "/webhook", `{"event":"deployment.succeeded"}`, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("webhook %d: expected 200, got %d", i, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/notifications", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rr.Code)
	}
	list := decodeBody(t, rr)
	if list["count"] != float64(3) {
		t.Fatalf("expected count 3, got %v", list["count"])
	}
	if items, ok := list["notifications"].([]any); !ok || len(items) != 3 {
		t.Fatalf("expected 3 notifications, got %v", list["notifications"])
	}

	rr = postJSON(t, handler, "/clear-notifications", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("clear: expected 200, got %d", rr.Code)
	}
	resp := decodeBody(t, rr)
	if resp["status"] != "success" || resp["message"] != "Cleared 3 notifications" {
		t.Fatalf("unexpected clear response: %v", resp)
	}
	if n := gw.store.Len(); n != 0 {
		t.Fatalf("expected empty store after clear, got %d", n)
	}
}

func TestManualFixValidation(t *testing.T) {
	gw, fixer := newTestGateway(t, config.ModeAutofix, "")
	handler := buildHandler(gw)

	rr := postJSON(t, handler, "/manual-fix", `{}`, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty request: expected 400, got %d", rr.Code)
	}
	rr = postJSON(t, handler, "/manual-fix", `{"deployment_id":"  ","logs":" "}`, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("whitespace request: expected 400, got %d", rr.Code)
	}
	if calls := fixer.snapshot(); len(calls) != 0 {
		t.Fatalf("rejected manual fixes must not dispatch, got %d", len(calls))
	}
}

func TestManualFixWithLogs(t *testing.T) {
	gw, fixer := newTestGateway(t, config.ModeNotify, "")
	handler := buildHandler(gw)

	rr := postJSON(t, handler, "/manual-fix", `{"logs":"panic: nil deref"}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeBody(t, rr)
	if resp["status"] != "processing" {
		t.Fatalf("expected status processing, got %v", resp["status"])
	}
	if msg, _ := resp["message"].(string); !strings.Contains(msg, "provided logs") {
		t.Fatalf("expected message to mention provided logs, got %q", msg)
	}

	calls := fixer.snapshot()
	if len(calls) != 1 {
		t.Fatalf("expected 1 dispatch, got %d", len(calls))
	}
	if calls[0].logs != "panic: nil deref" || calls[0].deploymentID != "" {
		t.Fatalf("unexpected dispatch: %+v", calls[0])
	}
}

func TestHealthStaysHealthyWhenUpstreamIsDown(t *testing.T) {
	gw, _ := newTestGateway(t, config.ModeNotify, "token-should-not-matter")
	gw.upstream = &fakePinger{err: errors.New("connection refused")}
	handler := buildHandler(gw)

	// No Authorization header: /health is deliberately unauthenticated.
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decodeBody(t, rr)
	if resp["status"] != "healthy" {
		t.Fatalf("health must report healthy even with upstream down, got %v", resp["status"])
	}
	if msg, _ := resp["message"].(string); !strings.Contains(msg, "unreachable") {
		t.Fatalf("expected unreachable warning in message, got %q", msg)
	}
	if resp["timestamp"] == nil {
		t.Fatalf("expected timestamp in health response")
	}
}

// panickyFixer stands in for a broken collaborator past the parse step.
type panickyFixer struct{}

func (panickyFixer) Start(deploymentID, serviceName, logs string) {
	panic("dispatch exploded")
}

func TestHandlerPanicBecomes500AndKeepsStore(t *testing.T) {
	gw, _ := newTestGateway(t, config.ModeAutofix, "")
	gw.fixer = panickyFixer{}
	handler := buildHandler(gw)

	rr := postJSON(t, handler, "/webhook", `{"event":"deployment.failed","deployment":{"id":"d9"}}`, "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 from panicking handler, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeBody(t, rr)
	if resp["error"] != "dispatch exploded" {
		t.Fatalf("expected panic message in error body, got %v", resp)
	}

	// The record was appended before classification; the panic must not
	// roll it back or corrupt the store.
	if n := gw.store.Len(); n != 1 {
		t.Fatalf("expected the pre-panic append to survive, got %d records", n)
	}

	// The process keeps serving: a later request works and sees history.
	rr = postJSON(t, handler, "/webhook", `{"event":"deployment.succeeded"}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 after recovered panic, got %d", rr.Code)
	}
	if n := gw.store.Len(); n != 2 {
		t.Fatalf("expected 2 records after recovery, got %d", n)
	}
}

func TestStatusEndpointIsUnauthenticated(t *testing.T) {
	gw, _ := newTestGateway(t, config.ModeAutofix, "s3cret")
	handler := buildHandler(gw)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decodeBody(t, rr)
	if resp["mode"] != config.ModeAutofix {
		t.Fatalf("expected mode autofix, got %v", resp["mode"])
	}
	if resp["open_mode"] != false {
		t.Fatalf("expected open_mode false, got %v", resp["open_mode"])
	}
}
