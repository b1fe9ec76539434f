package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/xid"

	"zebra-emulator/internal/config"
	"zebra-emulator/internal/infra/logging"
)

// CORSMaxAge is the preflight cache lifetime in seconds.
const CORSMaxAge = 3600

// Register attaches the global middleware chain to the app.
func Register(app *fiber.App, cfg config.Config) {
	app.Use(fiberrecover.New())

	// An empty AllowHeaders makes the middleware echo
	// Access-Control-Request-Headers back to the caller.
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: fiber.MethodPost,
		AllowHeaders: "",
		MaxAge:       CORSMaxAge,
	}))

	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return xid.New().String()
		},
	}))

	app.Use(healthcheck.New(healthcheck.Config{
		LivenessEndpoint:  "/ops/health",
		ReadinessEndpoint: "/ops/ready",
	}))

	app.Use(func(c *fiber.Ctx) error {
		logging.Debug("Incoming request",
			"method", c.Method(),
			"path", c.Path(),
			"request_id", RequestID(c),
			"bytes", len(c.Body()),
		)
		return c.Next()
	})

	logging.Debug("Middleware registered", "listen", cfg.ListenAddr())
}

// RequestID returns the id assigned by the requestid middleware, or the one
// the client sent.
func RequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok && id != "" {
		return id
	}
	if id := c.GetRespHeader(fiber.HeaderXRequestID); id != "" {
		return id
	}
	return c.Get(fiber.HeaderXRequestID)
}

// RateLimit limits requests per client IP with a sliding window. A disabled
// limiter passes every request through.
func RateLimit(cfg config.RateLimiterConfig, store fiber.Storage) fiber.Handler {
	if !cfg.Enabled || cfg.Max <= 0 {
		return func(c *fiber.Ctx) error {
			return c.Next()
		}
	}
	return limiter.New(limiter.Config{
		Max:               cfg.Max,
		Expiration:        cfg.Interval,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           store,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			logging.Warn("Rate limit exceeded", "ip", c.IP(), "path", c.Path(), "request_id", RequestID(c))
			c.Status(fiber.StatusTooManyRequests)
			return nil
		},
	})
}
