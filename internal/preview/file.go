package preview

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/skratchdot/open-golang/open"

	"zebra-emulator/internal/domain"
	"zebra-emulator/internal/infra/logging"
)

// DefaultFileName is the single-slot preview artifact in the temp dir.
const DefaultFileName = "zebra_label.png"

// Launcher opens path with the host viewer without waiting for it to exit.
type Launcher func(path string) error

// viewerGrace is how long SystemViewer waits for the opener to report a
// failure before returning.
const viewerGrace = 500 * time.Millisecond

// SystemViewer starts the default application registered for the file type.
// The opener process is always waited for, so no zombie is left behind.
func SystemViewer(path string) error { return startViewer(open.Run, path, viewerGrace) }

// startViewer runs the opener in the background. An exit within grace is
// returned to the caller; a later exit is only logged.
func startViewer(run func(string) error, path string, grace time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- run(path) }()

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
	}

	go func() {
		if err := <-done; err != nil {
			logging.Warn("Viewer exited with error", "path", path, "error", err)
		}
	}()
	return nil
}

// FileOptions configures a File sink.
type FileOptions struct {
	Dir        string
	Name       string
	PerRequest bool
	// Launch is nil when the artifact should only be persisted.
	Launch Launcher
}

// File writes each image to disk and hands it to a viewer.
type File struct {
	dir        string
	name       string
	perRequest bool
	launch     Launcher
}

// NewFile returns a file sink; empty Dir and Name mean os.TempDir() and
// DefaultFileName.
func NewFile(opts FileOptions) *File {
	f := &File{dir: opts.Dir, name: opts.Name, perRequest: opts.PerRequest, launch: opts.Launch}
	if f.dir == "" {
		f.dir = os.TempDir()
	}
	if f.name == "" {
		f.name = DefaultFileName
	}
	return f
}

func (f *File) Name() string { return "file" }

// Path returns the single-slot artifact path.
func (f *File) Path() string { return filepath.Join(f.dir, f.name) }

// Show persists img and starts the viewer. Concurrent calls on the single
// slot are last-write-wins; readers never see a partially written file.
func (f *File) Show(_ context.Context, img []byte) error {
	path := f.target()
	if err := writeAtomic(path, img); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrPreviewWrite, path, err)
	}
	logging.Debug("Preview written", "path", path, "bytes", len(img))

	if f.launch == nil {
		return nil
	}
	if err := f.launch(path); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrViewerLaunch, path, err)
	}
	return nil
}

func (f *File) target() string {
	if !f.perRequest {
		return f.Path()
	}
	ext := filepath.Ext(f.name)
	stem := strings.TrimSuffix(f.name, ext)
	return filepath.Join(f.dir, stem+"-"+xid.New().String()+ext)
}

// writeAtomic writes to a sibling temp file and renames it over path.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
