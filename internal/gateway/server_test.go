package gateway

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jomarcello/railway-webhook/internal/config"
)

func TestNewDropsUpstreamWithoutRailwayToken(t *testing.T) {
	pinger := &fakePinger{err: errors.New("Not Authorized")}
	cfg := &config.Config{
		Server:  config.ServerConfig{Mode: config.ModeNotify},
		Monitor: config.MonitorConfig{Expr: "@every 5m"},
	}
	gw := New(cfg, &fakeFixer{}, pinger, nil)

	if gw.upstream != nil {
		t.Fatal("expected upstream to be dropped when no Railway token is configured")
	}
	if gw.monitor != nil {
		t.Fatal("expected no cron monitor without a Railway token")
	}

	rr := httptest.NewRecorder()
	buildHandler(gw).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decodeBody(t, rr)
	if msg, _ := resp["message"].(string); strings.Contains(msg, "unreachable") {
		t.Fatalf("tokenless health must not warn about the upstream, got %q", msg)
	}
	if n := pinger.pings(); n != 0 {
		t.Fatalf("tokenless health must not probe, got %d pings", n)
	}
}

func TestNewKeepsUpstreamWithRailwayToken(t *testing.T) {
	pinger := &fakePinger{}
	cfg := &config.Config{
		Server:  config.ServerConfig{Mode: config.ModeNotify},
		Railway: config.RailwayConfig{Token: "rw-token"},
		Monitor: config.MonitorConfig{Expr: "@every 5m"},
	}
	gw := New(cfg, &fakeFixer{}, pinger, nil)

	if gw.upstream == nil {
		t.Fatal("expected upstream to be kept when a Railway token is configured")
	}
	if gw.monitor == nil {
		t.Fatal("expected the cron monitor to be created with a Railway token")
	}

	rr := httptest.NewRecorder()
	buildHandler(gw).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if n := pinger.pings(); n != 1 {
		t.Fatalf("expected exactly 1 health probe, got %d", n)
	}
}
