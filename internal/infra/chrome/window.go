package chrome

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/inspector"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"zebra-emulator/internal/infra/logging"
	"zebra-emulator/internal/preview"
)

// Options configures the headed Chrome windows used as preview surfaces.
type Options struct {
	ExecPath    string
	NoSandbox   bool
	UserDataDir string
	// Headless hides the window; used by tests and CI.
	Headless bool
}

// Opener launches one Chrome app window per preview.
type Opener struct {
	opts Options
}

// NewOpener returns a SurfaceOpener backed by Chrome.
func NewOpener(opts Options) *Opener {
	return &Opener{opts: opts}
}

// Window is a Chrome app window showing a single label frame. Each window
// owns its browser process and profile directory.
type Window struct {
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	profileDir  string
	detached    atomic.Bool
	closeOnce   sync.Once
}

// OpenSurface starts a browser whose viewport matches frame and paints it.
// ctx bounds start-up only; the window lives until Close.
func (o *Opener) OpenSurface(ctx context.Context, frame *image.NRGBA) (preview.Surface, error) {
	b := frame.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, errors.New("empty frame")
	}

	profileDir, err := createProfileDir(o.opts.UserDataDir)
	if err != nil {
		return nil, fmt.Errorf("cannot create profile dir: %w", err)
	}

	allocatorOptions := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.opts.Headless),
		chromedp.Flag("app", "about:blank"),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.UserDataDir(profileDir),
		chromedp.WindowSize(w, h),
	)
	if o.opts.ExecPath != "" {
		allocatorOptions = append(allocatorOptions, chromedp.ExecPath(o.opts.ExecPath))
	}
	if o.opts.NoSandbox {
		allocatorOptions = append(allocatorOptions, chromedp.Flag("no-sandbox", true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	win := &Window{
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		profileDir:  profileDir,
	}

	// The first Run starts the browser and must use the long-lived context.
	if err := chromedp.Run(tabCtx); err != nil {
		_ = win.Close()
		return nil, fmt.Errorf("cannot start chrome: %w", err)
	}
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if _, ok := ev.(*inspector.EventDetached); ok {
			win.detached.Store(true)
		}
	})

	setupCtx, cancel := context.WithCancel(tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var painted bool
	err = chromedp.Run(setupCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, framePage(w, h)).Do(ctx)
		}),
		chromedp.WaitReady("#label", chromedp.ByQuery),
		fitWindow(w, h),
		chromedp.Evaluate(fmt.Sprintf("window.__zebraLoad(%q)", base64.StdEncoding.EncodeToString(frame.Pix)), &painted),
	)
	if err != nil {
		_ = win.Close()
		return nil, fmt.Errorf("cannot paint label: %w", err)
	}
	if !painted {
		_ = win.Close()
		return nil, errors.New("label frame was not painted")
	}
	return win, nil
}

// fitWindowAttempts bounds how often the viewport is re-measured after a
// resize; window managers apply bounds asynchronously.
const fitWindowAttempts = 20

// fitWindow grows the window by its frame so the viewport is exactly w x h.
// --window-size sets the outer bounds, which include the title bar.
func fitWindow(w, h int) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for i := 0; i < fitWindowAttempts; i++ {
			var m [4]int
			if err := chromedp.Evaluate(
				"[window.innerWidth, window.innerHeight, window.outerWidth - window.innerWidth, window.outerHeight - window.innerHeight]",
				&m).Do(ctx); err != nil {
				return err
			}
			if m[0] == w && m[1] == h {
				return nil
			}
			dx, dy := max(m[2], 0), max(m[3], 0)
			id, _, err := browser.GetWindowForTarget().Do(ctx)
			if err != nil {
				return fmt.Errorf("get window: %w", err)
			}
			bounds := &browser.Bounds{Width: int64(w + dx), Height: int64(h + dy), WindowState: browser.WindowStateNormal}
			if err := browser.SetWindowBounds(id, bounds).Do(ctx); err != nil {
				return fmt.Errorf("set window bounds: %w", err)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(25 * time.Millisecond):
			}
		}
		logging.Warn("Preview viewport does not match the label", "width", w, "height", h)
		return nil
	})
}

// Viewport reports the inner size of the window in CSS pixels.
func (w *Window) Viewport() (int, int, error) {
	var size [2]int
	if err := chromedp.Run(w.tabCtx, chromedp.Evaluate("[window.innerWidth, window.innerHeight]", &size)); err != nil {
		return 0, 0, err
	}
	return size[0], size[1], nil
}

// Update repaints the frame; a closed window or an Escape key press ends it.
func (w *Window) Update(_ context.Context) (bool, error) {
	if w.detached.Load() || w.tabCtx.Err() != nil {
		return false, nil
	}
	var dismissed bool
	if err := chromedp.Run(w.tabCtx, chromedp.Evaluate("window.__zebraPaint()", &dismissed)); err != nil {
		if IsSessionInterrupted(err) || w.tabCtx.Err() != nil {
			return false, nil
		}
		return false, err
	}
	return !dismissed, nil
}

// Close kills the browser and removes its profile. Safe to call twice.
func (w *Window) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.tabCancel()
		w.allocCancel()
		err = os.RemoveAll(w.profileDir)
		logging.Debug("Chrome preview window closed", "profile_dir", w.profileDir)
	})
	return err
}

// IsSessionInterrupted reports errors caused by the browser or tab going away.
func IsSessionInterrupted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"target closed", "websocket", "connection reset", "broken pipe", "eof", "invalid context"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func createProfileDir(base string) (string, error) {
	if base == "" {
		base = os.TempDir()
	}
	return os.MkdirTemp(base, "zebra-preview-*")
}
