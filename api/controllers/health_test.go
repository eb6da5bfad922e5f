package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	up := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	resp := httptest.NewRecorder()
	HealthReady(cfg, logger.Nop(), map[string]Pinger{"db": up, "redis": up}).
		ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	HealthReady(cfg, logger.Nop(), map[string]Pinger{"db": up, "redis": down}).
		ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"redis":"down"`) {
		t.Fatalf("expected redis check in details: %s", resp.Body.String())
	}
	if resp.Header().Get("X-Storefront-Env") != "test" {
		t.Fatal("expected env header")
	}
}
