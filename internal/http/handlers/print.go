package handlers

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"

	"zebra-emulator/internal/domain"
	"zebra-emulator/internal/http/middleware"
	"zebra-emulator/internal/infra/logging"
	"zebra-emulator/internal/markup"
	"zebra-emulator/internal/preview"
	"zebra-emulator/internal/render"
)

// PrintService turns posted label markup into a preview. One instance is
// shared by every request.
type PrintService struct {
	canvas   domain.Canvas
	decoder  *markup.Decoder
	renderer render.Renderer
	sink     preview.Sink
	timeout  time.Duration

	requests      atomic.Int64
	rendered      atomic.Int64
	rejected      atomic.Int64
	renderFailed  atomic.Int64
	previewFailed atomic.Int64
}

// Options wires a PrintService.
type Options struct {
	Canvas   domain.Canvas
	Decoder  *markup.Decoder
	Renderer render.Renderer
	Sink     preview.Sink
	Timeout  time.Duration
}

func NewPrintService(opts Options) *PrintService {
	dec := opts.Decoder
	if dec == nil {
		dec, _ = markup.NewDecoder(markup.DefaultCharset)
	}
	return &PrintService{
		canvas:   opts.Canvas,
		decoder:  dec,
		renderer: opts.Renderer,
		sink:     opts.Sink,
		timeout:  opts.Timeout,
	}
}

// HandlePrint answers POST /pstprnt with a bare status code.
func (s *PrintService) HandlePrint(c *fiber.Ctx) error {
	s.requests.Add(1)
	reqID := middleware.RequestID(c)
	ctx := c.UserContext()

	req := render.Request{Markup: s.decoder.Decode(c.Body()), Canvas: s.canvas}
	start := time.Now()
	img, err := render.WithTimeout(ctx, s.renderer, req, s.timeout)
	if err != nil {
		status := renderStatus(err)
		if status == fiber.StatusBadRequest {
			s.rejected.Add(1)
			logging.Warn("Label rejected", "request_id", reqID, "renderer", s.renderer.Name(), "error", err)
		} else {
			s.renderFailed.Add(1)
			logging.Error("Renderer failed", "request_id", reqID, "renderer", s.renderer.Name(),
				"elapsed", time.Since(start).String(), "error", err)
		}
		c.Status(status)
		return nil
	}

	if err := s.sink.Show(ctx, img); err != nil {
		s.previewFailed.Add(1)
		logging.Error("Preview failed", "request_id", reqID, "preview", s.sink.Name(),
			"side_effect", domain.IsPreviewError(err), "error", err)
		c.Status(fiber.StatusInternalServerError)
		return nil
	}

	s.rendered.Add(1)
	logging.Info("Label rendered", "request_id", reqID, "canvas", s.canvas.String(),
		"bytes", len(img), "elapsed", time.Since(start).String())
	c.Status(fiber.StatusOK)
	return nil
}

// renderStatus maps a collaborator failure to a status. Anything that is not
// an unavailable or timed-out collaborator is the client's markup.
func renderStatus(err error) int {
	if errors.Is(err, domain.ErrRendererUnavailable) || errors.Is(err, domain.ErrRenderTimeout) {
		return fiber.StatusInternalServerError
	}
	return fiber.StatusBadRequest
}

// Stats is the payload of GET /ops/stats.
type Stats struct {
	Requests      int64       `json:"requests"`
	Rendered      int64       `json:"rendered"`
	Rejected      int64       `json:"rejected"`
	RenderFailed  int64       `json:"render_failed"`
	PreviewFailed int64       `json:"preview_failed"`
	OpenWindows   int64       `json:"open_windows"`
	Canvas        CanvasStats `json:"canvas"`
	Charset       string      `json:"charset"`
	Renderer      string      `json:"renderer"`
	Preview       string      `json:"preview"`
}

type CanvasStats struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	DPI    int `json:"dpi"`
}

// Snapshot reads the counters.
func (s *PrintService) Snapshot() Stats {
	st := Stats{
		Requests:      s.requests.Load(),
		Rendered:      s.rendered.Load(),
		Rejected:      s.rejected.Load(),
		RenderFailed:  s.renderFailed.Load(),
		PreviewFailed: s.previewFailed.Load(),
		Canvas: CanvasStats{
			Width:  s.canvas.Width,
			Height: s.canvas.Height,
			DPI:    int(s.canvas.Resolution),
		},
		Charset:  s.decoder.Charset(),
		Renderer: s.renderer.Name(),
		Preview:  s.sink.Name(),
	}
	if w, ok := s.sink.(interface{ Open() int64 }); ok {
		st.OpenWindows = w.Open()
	}
	return st
}

// HandleStats returns the pipeline counters as JSON.
func (s *PrintService) HandleStats(c *fiber.Ctx) error {
	return c.JSON(s.Snapshot())
}
