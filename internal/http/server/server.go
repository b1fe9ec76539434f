package server

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"zebra-emulator/internal/config"
	"zebra-emulator/internal/http/handlers"
	"zebra-emulator/internal/http/middleware"
	"zebra-emulator/internal/infra/logging"
	"zebra-emulator/internal/markup"
	"zebra-emulator/internal/preview"
	"zebra-emulator/internal/render"
)

// PrintPath is the Zebra network printer print endpoint.
const PrintPath = "/pstprnt"

// Deps are the collaborators of the HTTP host.
type Deps struct {
	Config       config.Config
	Renderer     render.Renderer
	Sink         preview.Sink
	LimiterStore fiber.Storage
}

// New creates the Fiber app with middleware and routes.
func New(deps Deps) (*fiber.App, *handlers.PrintService, error) {
	cfg := deps.Config
	canvas, err := cfg.Canvas()
	if err != nil {
		return nil, nil, fmt.Errorf("canvas: %w", err)
	}
	dec, err := markup.NewDecoder(cfg.Label.Charset)
	if err != nil {
		return nil, nil, err
	}
	svc := handlers.NewPrintService(handlers.Options{
		Canvas:   canvas,
		Decoder:  dec,
		Renderer: deps.Renderer,
		Sink:     deps.Sink,
		Timeout:  cfg.Render.Timeout,
	})

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             cfg.Server.BodyLimitBytes,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			msg := "Internal Server Error"

			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				msg = e.Message
			}

			logging.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)

			// Printer clients only read the status of a print.
			if c.Path() == PrintPath {
				c.Response().ResetBody()
				c.Status(code)
				return nil
			}

			return c.Status(code).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    code,
					"message": msg,
				},
			})
		},
	})

	middleware.Register(app, cfg)

	app.Post(PrintPath, middleware.RateLimit(cfg.RateLimiter, deps.LimiterStore), svc.HandlePrint)
	app.Get("/ops/stats", svc.HandleStats)

	// Ensure all responses, including 404s, return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app, svc, nil
}
