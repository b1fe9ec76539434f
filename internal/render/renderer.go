// Package render defines the contract of the external label rasteriser and
// the backends that fulfil it.
package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zebra-emulator/internal/domain"
)

// Request is one label to rasterise.
type Request struct {
	Markup string
	Canvas domain.Canvas
}

// Renderer converts label markup into encoded image bytes. Implementations
// must be safe for concurrent use.
type Renderer interface {
	Render(ctx context.Context, req Request) ([]byte, error)
	Name() string
}

// Func adapts a plain function to the Renderer interface.
type Func func(ctx context.Context, req Request) ([]byte, error)

func (f Func) Render(ctx context.Context, req Request) ([]byte, error) { return f(ctx, req) }
func (f Func) Name() string                                            { return "func" }

// Error codes for rendering failures.
const (
	CodeRejected    = "REJECTED"
	CodeUnavailable = "UNAVAILABLE"
	CodeTimeout     = "TIMEOUT"
)

// Error describes a rendering failure. It unwraps to the domain sentinel that
// matches its code and to its cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	switch e.Code {
	case CodeRejected:
		errs = append(errs, domain.ErrMarkupRejected)
	case CodeUnavailable:
		errs = append(errs, domain.ErrRendererUnavailable)
	case CodeTimeout:
		errs = append(errs, domain.ErrRenderTimeout)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// NewError creates a new Error.
func NewError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Rejected is shorthand for a markup rejection.
func Rejected(format string, args ...any) *Error {
	return NewError(CodeRejected, fmt.Sprintf(format, args...), nil)
}

// Validate checks the request invariants shared by every backend.
func Validate(req Request) error {
	if req.Canvas.Width <= 0 || req.Canvas.Height <= 0 {
		return Rejected("canvas must be positive, got %dx%d", req.Canvas.Width, req.Canvas.Height)
	}
	if !req.Canvas.Resolution.Valid() {
		return Rejected("unsupported resolution %d", int(req.Canvas.Resolution))
	}
	return nil
}

// WithTimeout runs r and stops waiting once timeout elapses or ctx ends,
// whichever is first. Backends that ignore ctx are abandoned, not killed.
func WithTimeout(ctx context.Context, r Renderer, req Request, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		img []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		img, err := r.Render(ctx, req)
		done <- result{img, err}
	}()

	select {
	case res := <-done:
		if res.err != nil && errors.Is(res.err, context.DeadlineExceeded) && !errors.Is(res.err, domain.ErrRenderTimeout) {
			return nil, NewError(CodeTimeout, "render deadline exceeded", res.err)
		}
		return res.img, res.err
	case <-ctx.Done():
		return nil, NewError(CodeTimeout, fmt.Sprintf("%s renderer did not answer", r.Name()), ctx.Err())
	}
}
