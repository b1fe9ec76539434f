package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	memoryStorage "github.com/gofiber/storage/memory/v2"

	"zebra-emulator/internal/config"
)

func TestRegister_AddsHealthAndRequestID(t *testing.T) {
	app := fiber.New()
	Register(app, config.Config{})
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString(RequestID(c)) })

	for _, path := range []string{"/ops/health", "/ops/ready"} {
		req, _ := http.NewRequest(http.MethodGet, path, nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("%s request failed: %v", path, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("expected %s 200, got %d", path, resp.StatusCode)
		}
	}

	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("ping request failed: %v", err)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("expected X-Request-Id to be present")
	}
}

func TestRegister_CORSPreflight(t *testing.T) {
	app := fiber.New()
	Register(app, config.Config{})
	app.Post("/pstprnt", func(c *fiber.Ctx) error { return nil })

	req, _ := http.NewRequest(http.MethodOptions, "/pstprnt", nil)
	req.Header.Set("Origin", "http://shop.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, X-Custom")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("preflight failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); got != "POST" {
		t.Fatalf("unexpected allow-methods %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Headers"); got != "Content-Type, X-Custom" {
		t.Fatalf("request headers must be echoed, got %q", got)
	}
	if got := resp.Header.Get("Access-Control-Max-Age"); got != "3600" {
		t.Fatalf("unexpected max-age %q", got)
	}
}

func TestRegister_RecoversPanics(t *testing.T) {
	app := fiber.New()
	Register(app, config.Config{})
	app.Get("/boom", func(c *fiber.Ctx) error { panic("boom") })

	req, _ := http.NewRequest(http.MethodGet, "/boom", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
}

func TestRateLimit_BlocksAfterMax(t *testing.T) {
	app := fiber.New()
	cfg := config.RateLimiterConfig{Enabled: true, Max: 2, Interval: time.Minute}
	app.Post("/pstprnt", RateLimit(cfg, memoryStorage.New()), func(c *fiber.Ctx) error { return nil })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest(http.MethodPost, "/pstprnt", nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		codes = append(codes, resp.StatusCode)
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != fiber.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
}

func TestRateLimit_DisabledPassesThrough(t *testing.T) {
	app := fiber.New()
	app.Post("/pstprnt", RateLimit(config.RateLimiterConfig{Max: 1}, nil), func(c *fiber.Ctx) error { return nil })

	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest(http.MethodPost, "/pstprnt", nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != 200 {
			t.Fatalf("disabled limiter must not block, got %d", resp.StatusCode)
		}
	}
}
