package ecolor

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/mdouchement/hdr/hdrcolor"
)

// Rec.709 / sRGB luminance weights, for linear RGB.
const (
	WeightR = 0.2126
	WeightG = 0.7152
	WeightB = 0.0722
)

// Luminance of a linear RGB triple.
func Luminance(r, g, b float64) float64 {
	return WeightR*r + WeightG*g + WeightB*b
}

// HDRLuminance returns the luminance of an HDR color.
func HDRLuminance(c hdrcolor.Color) float64 {
	r, g, b, _ := c.HDRRGBA()
	return Luminance(r, g, b)
}

// Gray8 is the integer grayscale conversion used for median threshold
// bitmaps: (54R + 183G + 19B) / 256, on samples already scaled to 8 bits.
func Gray8(r, g, b uint32) uint8 {
	v := (54*r + 183*g + 19*b) >> 8
	if v > 255 {
		v = 255
	}
	return uint8(v)
}

// MapLuminance swaps the luminance of (r,g,b) from lumBefore to
// lumAfter: C_out = (C_in / L_before)^s * L_after. Saturation s < 1
// pulls the colours towards gray.
func MapLuminance(r, g, b, lumBefore, lumAfter, saturation float64) (float64, float64, float64) {
	const epsilon = 1e-9
	if lumBefore < epsilon {
		lumBefore = epsilon
	}
	f := func(c float64) float64 {
		ratio := c / lumBefore
		if ratio <= 0 {
			return 0
		}
		return math.Pow(ratio, saturation) * lumAfter
	}
	return f(r), f(g), f(b)
}

// ToRGBA clamps a [0,1] display-referred color into 8 bits per
// channel. With srgb set, the values are treated as linear and sRGB
// companded first.
func ToRGBA(r, g, b float64, srgb bool) color.RGBA {
	var c colorful.Color
	if srgb {
		c = colorful.LinearRgb(clamp01(r), clamp01(g), clamp01(b))
	} else {
		c = colorful.Color{R: clamp01(r), G: clamp01(g), B: clamp01(b)}
	}
	r8, g8, b8 := c.Clamped().RGB255()
	return color.RGBA{R: r8, G: g8, B: b8, A: 0xFF}
}

func clamp01(v float64) float64 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
