// Package preview makes rendered labels visible to the operator.
package preview

import "context"

// Sink shows one rendered image. Show returns once the side effect has been
// initiated; it must not wait for the operator.
type Sink interface {
	Show(ctx context.Context, img []byte) error
	Name() string
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(ctx context.Context, img []byte) error

func (f SinkFunc) Show(ctx context.Context, img []byte) error { return f(ctx, img) }
func (f SinkFunc) Name() string                               { return "func" }
