package preview

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"sync"
	"sync/atomic"
	"time"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"

	"zebra-emulator/internal/domain"
	"zebra-emulator/internal/infra/logging"
)

// Surface is one open preview window.
type Surface interface {
	// Update redraws the frame and reports whether the window is still open.
	// It returns false once the operator dismissed or closed the window.
	Update(ctx context.Context) (bool, error)
	Close() error
}

// SurfaceOpener creates a window sized exactly to frame.
type SurfaceOpener interface {
	OpenSurface(ctx context.Context, frame *image.NRGBA) (Surface, error)
}

// OpenerFunc adapts a plain function to SurfaceOpener.
type OpenerFunc func(ctx context.Context, frame *image.NRGBA) (Surface, error)

func (f OpenerFunc) OpenSurface(ctx context.Context, frame *image.NRGBA) (Surface, error) {
	return f(ctx, frame)
}

// WindowOptions configures a Window sink.
type WindowOptions struct {
	Scale        int
	PollInterval time.Duration
	OpenTimeout  time.Duration
}

// Window displays each image in its own surface driven by a detached loop.
type Window struct {
	opener   SurfaceOpener
	scale    int
	interval time.Duration
	timeout  time.Duration

	mu        sync.Mutex // orders wg.Add against Close
	wg        sync.WaitGroup
	open      atomic.Int64
	stop      chan struct{}
	closeOnce sync.Once
}

// NewWindow returns a window sink using opener for every image.
func NewWindow(opener SurfaceOpener, opts WindowOptions) *Window {
	w := &Window{
		opener:   opener,
		scale:    opts.Scale,
		interval: opts.PollInterval,
		timeout:  opts.OpenTimeout,
		stop:     make(chan struct{}),
	}
	if w.scale < 1 {
		w.scale = 1
	}
	if w.interval <= 0 {
		w.interval = 50 * time.Millisecond
	}
	if w.timeout <= 0 {
		w.timeout = 15 * time.Second
	}
	return w
}

func (w *Window) Name() string { return "window" }

// Open returns the number of surfaces currently displayed.
func (w *Window) Open() int64 { return w.open.Load() }

// Show decodes img and opens a surface for it. The surface outlives the
// call; the request context only bounds surface creation.
func (w *Window) Show(ctx context.Context, img []byte) error {
	select {
	case <-w.stop:
		return fmt.Errorf("%w: preview windows are shutting down", domain.ErrSurface)
	default:
	}

	src, format, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrImageDecode, err)
	}
	frame := ToFrame(src, w.scale)

	openCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()
	surface, err := w.opener.OpenSurface(openCtx, frame)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSurface, err)
	}

	w.mu.Lock()
	select {
	case <-w.stop:
		w.mu.Unlock()
		_ = surface.Close()
		return fmt.Errorf("%w: preview windows are shutting down", domain.ErrSurface)
	default:
	}
	w.wg.Add(1)
	w.open.Add(1)
	w.mu.Unlock()
	go w.run(surface)

	b := frame.Bounds()
	logging.Info("Preview window opened", "width", b.Dx(), "height", b.Dy(), "format", format)
	return nil
}

func (w *Window) run(s Surface) {
	defer w.wg.Done()
	defer w.open.Add(-1)
	defer func() {
		if err := s.Close(); err != nil {
			logging.Warn("Preview window teardown failed", "error", err)
		}
	}()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			alive, err := s.Update(context.Background())
			if err != nil {
				logging.Warn("Preview window update failed", "error", err)
				return
			}
			if !alive {
				logging.Debug("Preview window dismissed")
				return
			}
		}
	}
}

// Close tears down every open surface and waits for their loops.
func (w *Window) Close() {
	w.mu.Lock()
	w.closeOnce.Do(func() { close(w.stop) })
	w.mu.Unlock()
	w.wg.Wait()
}

// ToFrame converts src into row-major RGBA with straight alpha, scaled by an
// integer factor with nearest-neighbour sampling so dots stay crisp.
func ToFrame(src image.Image, scale int) *image.NRGBA {
	if scale < 1 {
		scale = 1
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	if scale == 1 {
		xdraw.Draw(dst, dst.Bounds(), src, b.Min, xdraw.Src)
		return dst
	}
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}
