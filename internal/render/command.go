package render

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Command renders by running an external rasteriser that reads markup on
// stdin and writes an encoded image on stdout. Arguments may contain the
// placeholders {width}, {height}, {dpi} and {dpmm}.
type Command struct {
	path string
	args []string
}

// NewCommand returns a backend running path with args.
func NewCommand(path string, args []string) *Command {
	return &Command{path: path, args: append([]string(nil), args...)}
}

func (c *Command) Name() string { return "command" }

// Available reports whether the rasteriser binary can be found.
func (c *Command) Available() error {
	if _, err := exec.LookPath(c.path); err != nil {
		return NewError(CodeUnavailable, "rasteriser binary not found", err)
	}
	return nil
}

// Render runs the rasteriser once per label.
func (c *Command) Render(ctx context.Context, req Request) ([]byte, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	if err := c.Available(); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, c.path, c.expandArgs(req)...)
	cmd.Stdin = strings.NewReader(req.Markup)
	cmd.WaitDelay = time.Second

	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, NewError(CodeTimeout, "rasteriser did not finish", ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, NewError(CodeRejected, "rasteriser rejected label", errors.New(excerpt(errBuf.Bytes())))
		}
		return nil, NewError(CodeUnavailable, "rasteriser could not run", err)
	}
	if out.Len() == 0 {
		return nil, Rejected("rasteriser produced no image")
	}
	return out.Bytes(), nil
}

func (c *Command) expandArgs(req Request) []string {
	r := strings.NewReplacer(
		"{width}", strconv.Itoa(req.Canvas.Width),
		"{height}", strconv.Itoa(req.Canvas.Height),
		"{dpi}", strconv.Itoa(int(req.Canvas.Resolution)),
		"{dpmm}", strconv.Itoa(req.Canvas.Resolution.DotsPerMM()),
	)
	args := make([]string, len(c.args))
	for i, a := range c.args {
		args[i] = r.Replace(a)
	}
	return args
}
