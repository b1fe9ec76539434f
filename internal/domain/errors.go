package domain

import "errors"

var (
	// ErrMarkupRejected signals that the rasteriser could not render the markup.
	ErrMarkupRejected = errors.New("markup rejected")
	// ErrRendererUnavailable signals that the rasteriser could not be reached
	// or failed for reasons unrelated to the markup.
	ErrRendererUnavailable = errors.New("renderer unavailable")
	// ErrRenderTimeout signals that rendering did not finish in time.
	ErrRenderTimeout = errors.New("render timed out")

	// ErrPreviewWrite signals that the preview file could not be written.
	ErrPreviewWrite = errors.New("preview write failed")
	// ErrViewerLaunch signals that the default viewer could not be started.
	ErrViewerLaunch = errors.New("viewer launch failed")
	// ErrImageDecode signals that the rendered bytes are not a decodable image.
	ErrImageDecode = errors.New("image decode failed")
	// ErrSurface signals that a preview window could not be created.
	ErrSurface = errors.New("display surface failed")
)

// IsPreviewError reports whether err belongs to the preview side effect.
func IsPreviewError(err error) bool {
	return errors.Is(err, ErrPreviewWrite) ||
		errors.Is(err, ErrViewerLaunch) ||
		errors.Is(err, ErrImageDecode) ||
		errors.Is(err, ErrSurface)
}
