package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Resolution is a printer dot density in dots per inch.
type Resolution int

// Densities offered by Zebra print heads.
const (
	Dpi152 Resolution = 152
	Dpi203 Resolution = 203
	Dpi300 Resolution = 300
	Dpi600 Resolution = 600
)

// DefaultResolution matches the most common desktop label printers.
const DefaultResolution = Dpi203

// ParseResolution accepts "203", "203dpi" or "8dpmm" style values.
func ParseResolution(s string) (Resolution, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "152", "152dpi", "6dpmm":
		return Dpi152, nil
	case "203", "203dpi", "8dpmm":
		return Dpi203, nil
	case "300", "300dpi", "12dpmm":
		return Dpi300, nil
	case "600", "600dpi", "24dpmm":
		return Dpi600, nil
	}
	return 0, fmt.Errorf("unsupported resolution %q", s)
}

// Valid reports whether r is one of the supported densities.
func (r Resolution) Valid() bool {
	switch r {
	case Dpi152, Dpi203, Dpi300, Dpi600:
		return true
	}
	return false
}

// DotsPerMM returns the density in dots per millimetre, the unit Zebra
// firmware and most rendering APIs use to name print heads.
func (r Resolution) DotsPerMM() int {
	switch r {
	case Dpi152:
		return 6
	case Dpi203:
		return 8
	case Dpi300:
		return 12
	case Dpi600:
		return 24
	}
	return 0
}

func (r Resolution) String() string {
	return strconv.Itoa(int(r)) + "dpi"
}

// Canvas is the pixel grid a label is rasterised onto.
type Canvas struct {
	Width      int
	Height     int
	Resolution Resolution
}

// InchesToDots converts a physical length into device pixels, rounding half
// away from zero.
func InchesToDots(inches float64, r Resolution) int {
	return int(math.Round(inches * float64(r)))
}

// NewCanvas sizes a canvas from physical label dimensions.
func NewCanvas(widthIn, heightIn float64, r Resolution) (Canvas, error) {
	if !r.Valid() {
		return Canvas{}, fmt.Errorf("unsupported resolution %d", int(r))
	}
	if !(widthIn > 0) || !(heightIn > 0) {
		return Canvas{}, fmt.Errorf("label size must be positive, got %gx%g in", widthIn, heightIn)
	}
	c := Canvas{
		Width:      InchesToDots(widthIn, r),
		Height:     InchesToDots(heightIn, r),
		Resolution: r,
	}
	if c.Width <= 0 || c.Height <= 0 {
		return Canvas{}, fmt.Errorf("label %gx%g in is smaller than one dot at %s", widthIn, heightIn, r)
	}
	return c, nil
}

// WidthInches converts the canvas width back into inches.
func (c Canvas) WidthInches() float64 {
	return float64(c.Width) / float64(c.Resolution)
}

// HeightInches converts the canvas height back into inches.
func (c Canvas) HeightInches() float64 {
	return float64(c.Height) / float64(c.Resolution)
}

func (c Canvas) String() string {
	return fmt.Sprintf("%dx%d@%s", c.Width, c.Height, c.Resolution)
}
