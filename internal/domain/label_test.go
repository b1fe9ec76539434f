package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewCanvas_DefaultLabel(t *testing.T) {
	c, err := NewCanvas(2.25, 1.25, Dpi203)
	if err != nil {
		t.Fatalf("NewCanvas: %v", err)
	}
	// 2.25*203 = 456.75 and 1.25*203 = 253.75, both round up.
	if c.Width != 457 || c.Height != 254 {
		t.Fatalf("expected 457x254, got %dx%d", c.Width, c.Height)
	}
	if c.String() != "457x254@203dpi" {
		t.Fatalf("unexpected canvas string %q", c.String())
	}
}

func TestInchesToDots_RoundingBoundary(t *testing.T) {
	tests := []struct {
		inches float64
		dpi    Resolution
		want   int
	}{
		{4, Dpi203, 812},
		{2.5, Dpi300, 750},
		{0.5, Dpi203, 102},     // 101.5 rounds half away from zero
		{0.25, Dpi152, 38},     // exact
		{1.0 / 3, Dpi600, 200}, // 199.99..
		{0.002, Dpi203, 0},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("%g@%d", tc.inches, tc.dpi), func(t *testing.T) {
			if got := InchesToDots(tc.inches, tc.dpi); got != tc.want {
				t.Fatalf("InchesToDots(%g, %d) = %d, want %d", tc.inches, tc.dpi, got, tc.want)
			}
		})
	}
}

func TestNewCanvas_Invalid(t *testing.T) {
	tests := []struct {
		name string
		w, h float64
		dpi  Resolution
	}{
		{"zero width", 0, 1, Dpi203},
		{"negative height", 1, -1, Dpi203},
		{"unsupported dpi", 1, 1, Resolution(100)},
		{"below one dot", 0.001, 0.001, Dpi152},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewCanvas(tc.w, tc.h, tc.dpi); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestParseResolution(t *testing.T) {
	for in, want := range map[string]Resolution{"203": Dpi203, "300dpi": Dpi300, "24dpmm": Dpi600, "6dpmm": Dpi152} {
		got, err := ParseResolution(in)
		if err != nil || got != want {
			t.Fatalf("ParseResolution(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseResolution("72"); err == nil {
		t.Fatalf("expected error for 72 dpi")
	}
	if Dpi300.DotsPerMM() != 12 {
		t.Fatalf("expected 12 dpmm for 300 dpi")
	}
}

func TestIsPreviewError(t *testing.T) {
	if !IsPreviewError(fmt.Errorf("write: %w", ErrPreviewWrite)) {
		t.Fatalf("wrapped write error must be a preview error")
	}
	if IsPreviewError(ErrMarkupRejected) {
		t.Fatalf("markup rejection is not a preview error")
	}
	if errors.Is(ErrViewerLaunch, ErrPreviewWrite) {
		t.Fatalf("write and viewer errors must be distinct")
	}
}
