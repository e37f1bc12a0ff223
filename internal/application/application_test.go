package application

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/distconf/internal/config"
	"github.com/eugenenazirov/distconf/internal/resolver"
)

func TestNewInitializesDependencies(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "default.config.json", `{"service": {"name": "api", "port": 8080}}`)
	writeFile(t, dir, "staging.config.yaml", "service:\n  port: 9090\n")

	cfg := baseTestConfig(":8085", dir)
	logger := zaptest.NewLogger(t)

	app, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if got := app.Resolver().Get("service.port", nil); got != float64(9090) && got != 9090 {
		t.Fatalf("expected staging port to win, got %v (%T)", got, got)
	}
	if got := app.Resolver().Get("service.name", ""); got != "api" {
		t.Fatalf("expected default name, got %v", got)
	}
	if app.server == nil || app.router == nil || app.handler == nil {
		t.Fatalf("expected server, router, and handler to be initialized")
	}
	if app.Server() != app.server {
		t.Fatalf("Server accessor did not return underlying instance")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/config/service.name", nil)
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected router to serve config keys, got %d", rec.Code)
	}
}

func TestNewServerAppliesConfig(t *testing.T) {
	cfg := baseTestConfig("9090", t.TempDir())
	handler := http.NewServeMux()

	server := NewServer(cfg, handler)
	if server.Addr != ":9090" {
		t.Fatalf("expected address :9090, got %s", server.Addr)
	}
	if server.Handler != handler {
		t.Fatalf("expected handler to be applied")
	}
	if server.ReadHeaderTimeout != cfg.ReadHeaderTimeout ||
		server.WriteTimeout != cfg.WriteTimeout ||
		server.IdleTimeout != cfg.IdleTimeout {
		t.Fatalf("server timeouts do not match configuration")
	}
}

func TestNewReturnsErrorForBrokenConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "default.config.json", `{"service": `)

	_, err := New(baseTestConfig(":0", dir), zaptest.NewLogger(t))
	if err == nil {
		t.Fatalf("expected error for unparsable configuration file")
	}
	if !errors.Is(err, resolver.ErrLoad) {
		t.Fatalf("expected ErrLoad, got %v", err)
	}
}

func TestNewResolverRejectsEmptyEnvironment(t *testing.T) {
	cfg := baseTestConfig(":0", t.TempDir())
	cfg.Environment = "  "

	_, err := NewResolver(cfg, zaptest.NewLogger(t))
	if !errors.Is(err, resolver.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestNewResolverAcceptsExtraOptions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "env.config.json", `{"token": "APP_TOKEN"}`)

	lookup := func(name string) (string, bool) {
		if name == "APP_TOKEN" {
			return "abc123", true
		}
		return "", false
	}

	res, err := NewResolver(baseTestConfig(":0", dir), zaptest.NewLogger(t), resolver.WithLookupEnv(lookup))
	if err != nil {
		t.Fatalf("NewResolver returned error: %v", err)
	}
	if got := res.Get("token", ""); got != "abc123" {
		t.Fatalf("expected substituted token, got %v", got)
	}
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func baseTestConfig(port, dir string) config.Config {
	return config.Config{
		ConfigDirs:           []string{dir},
		Environment:          "staging",
		Hostname:             "app-test-host",
		LogLevel:             "debug",
		Port:                 port,
		ShutdownGracePeriod:  50 * time.Millisecond,
		ReadHeaderTimeout:    20 * time.Millisecond,
		WriteTimeout:         30 * time.Millisecond,
		IdleTimeout:          40 * time.Millisecond,
		EnableRequestLogging: false,
		RateLimitRPS:         0,
		RateLimitBurst:       0,
	}
}
