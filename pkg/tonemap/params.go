// Package tonemap compresses an HDR radiance image into an 8-bit
// displayable one. It holds the Drago, Reinhard and Mantiuk operators
// with explicit numeric parameters, plus an adapter that runs any
// mdouchement/hdr/tmo operator under the same contract.
package tonemap

import (
	"image"

	"github.com/mdouchement/hdr"
)

// An Operator maps an HDR image to an 8-bit image. Every channel of the
// output is clamped into [0,255]; non-finite input is reported as a
// *RangeError rather than mapped.
type Operator interface {
	Name() string
	Tonemap(img hdr.Image) (*image.RGBA, error)
}

// DragoParams configures the adaptive logarithmic operator.
//
//   - Gamma: applied to the normalized result, output = v^(1/Gamma)
//   - Bias: in (0,1); lower values give more contrast and shadow detail
//   - Saturation: exponent on color ratios, 1.0 leaves color alone
//   - Gain: post multiplier applied before clamping
type DragoParams struct {
	Gamma      float64
	Bias       float64
	Saturation float64
	Gain       float64
}

// ReinhardParams configures the photographic operator.
//
//   - Intensity: in [-8,8], higher gives a brighter result
//   - LightAdapt: in [0,1], 1 adapts to each pixel, 0 to the global average
//   - ColorAdapt: in [0,1], 1 adapts each channel separately, 0 uses luminance
type ReinhardParams struct {
	Gamma      float64
	Intensity  float64
	LightAdapt float64
	ColorAdapt float64
	Gain       float64
}

// MantiukParams configures the contrast-domain operator.
//
//   - Scale: contrast scale factor; below 1 compresses contrast
//   - Saturation: exponent on color ratios
type MantiukParams struct {
	Gamma      float64
	Scale      float64
	Saturation float64
	Gain       float64
}

func DefaultDragoParams() DragoParams {
	return DragoParams{Gamma: 1.0, Bias: 0.7, Saturation: 1.0, Gain: 3.0}
}

func DefaultReinhardParams() ReinhardParams {
	return ReinhardParams{Gamma: 1.5, Intensity: 0, LightAdapt: 0, ColorAdapt: 0, Gain: 1.0}
}

func DefaultMantiukParams() MantiukParams {
	return MantiukParams{Gamma: 2.2, Scale: 0.85, Saturation: 1.2, Gain: 3.0}
}
