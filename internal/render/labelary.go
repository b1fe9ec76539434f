package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"zebra-emulator/internal/domain"
)

// DefaultLabelaryURL is the public Labelary rendering API.
const DefaultLabelaryURL = "https://api.labelary.com"

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// Labelary renders through a Labelary compatible HTTP API.
type Labelary struct {
	baseURL string
}

// NewLabelary returns a backend posting to baseURL.
func NewLabelary(baseURL string) *Labelary {
	if baseURL == "" {
		baseURL = DefaultLabelaryURL
	}
	return &Labelary{baseURL: strings.TrimRight(baseURL, "/")}
}

func (l *Labelary) Name() string { return "labelary" }

// Render posts the markup and returns the PNG answer.
func (l *Labelary) Render(ctx context.Context, req Request) ([]byte, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, NewError(CodeTimeout, "render canceled before request", err)
	}

	agent := fiber.Post(l.endpoint(req.Canvas))
	agent.Set(fiber.HeaderAccept, "image/png")
	agent.ContentType(fiber.MIMEApplicationForm)
	agent.BodyString(req.Markup)
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, NewError(CodeTimeout, "render deadline passed", context.DeadlineExceeded)
		}
		agent.Timeout(remaining)
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		err := errors.Join(errs...)
		if errors.Is(err, fasthttp.ErrTimeout) {
			return nil, NewError(CodeTimeout, "labelary did not answer in time", err)
		}
		return nil, NewError(CodeUnavailable, "labelary request failed", err)
	}

	switch {
	case code == fiber.StatusOK:
		if !bytes.HasPrefix(body, pngSignature) {
			return nil, NewError(CodeUnavailable, "labelary answered without a PNG image", nil)
		}
		return body, nil
	case code == fiber.StatusTooManyRequests || code >= 500:
		return nil, NewError(CodeUnavailable, fmt.Sprintf("labelary answered %d", code), errors.New(excerpt(body)))
	case code >= 400:
		return nil, NewError(CodeRejected, fmt.Sprintf("labelary rejected label (%d)", code), errors.New(excerpt(body)))
	default:
		return nil, NewError(CodeUnavailable, fmt.Sprintf("unexpected labelary status %d", code), nil)
	}
}

// endpoint builds /v1/printers/{dpmm}dpmm/labels/{w}x{h}/0/ with inches
// derived from the canvas.
func (l *Labelary) endpoint(c domain.Canvas) string {
	return fmt.Sprintf("%s/v1/printers/%ddpmm/labels/%sx%s/0/",
		l.baseURL, c.Resolution.DotsPerMM(), inches(c.WidthInches()), inches(c.HeightInches()))
}

func inches(v float64) string {
	return strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64)
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	if s == "" {
		s = "empty response body"
	}
	return s
}
