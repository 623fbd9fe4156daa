package bracket

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/mdouchement/hdr/hdrcolor"

	"github.com/abworrall/bracket-hdr/pkg/emath"
)

// A RadianceMap holds linear scene radiance per pixel and channel, in
// the reference frame. Values are relative to the reference exposure:
// a value of 1 is what the reference frame recorded at g(z) = 0. Divide
// by TimeBase (or use Absolute) for radiance per second of exposure.
type RadianceMap struct {
	Width    int
	Height   int
	Channels int
	TimeBase float64 // exposure time of the reference frame, seconds
	Pix      []float64
}

func NewRadianceMap(w, h, channels int, timeBase float64) *RadianceMap {
	return &RadianceMap{
		Width:    w,
		Height:   h,
		Channels: channels,
		TimeBase: timeBase,
		Pix:      make([]float64, w*h*channels),
	}
}

func (rm *RadianceMap) At(x, y int) color.Color { return rm.HDRAt(x, y) }
func (rm *RadianceMap) Bounds() image.Rectangle { return image.Rect(0, 0, rm.Width, rm.Height) }
func (rm *RadianceMap) ColorModel() color.Model { return hdrcolor.RGBModel }
func (rm *RadianceMap) Size() int               { return rm.Width * rm.Height }

// HDRAt implements hdr.Image; single channel maps come back as gray.
func (rm *RadianceMap) HDRAt(x, y int) hdrcolor.Color {
	i := (y*rm.Width + x) * rm.Channels
	if rm.Channels < 3 {
		return hdrcolor.RGB{R: rm.Pix[i], G: rm.Pix[i], B: rm.Pix[i]}
	}
	return hdrcolor.RGB{R: rm.Pix[i], G: rm.Pix[i+1], B: rm.Pix[i+2]}
}

func (rm *RadianceMap) Value(x, y, c int) float64 { return rm.Pix[(y*rm.Width+x)*rm.Channels+c] }

func (rm *RadianceMap) set(x, y, c int, v float64) { rm.Pix[(y*rm.Width+x)*rm.Channels+c] = v }

// Absolute is the radiance per second of exposure.
func (rm *RadianceMap) Absolute(x, y, c int) float64 { return rm.Value(x, y, c) / rm.TimeBase }

// DynamicRange is the ratio between the brightest and darkest non-zero
// values, in stops.
func (rm *RadianceMap) DynamicRange() float64 {
	min, max := math.Inf(1), 0.0
	for _, v := range rm.Pix {
		if v > 0 && v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max == 0 {
		return 0
	}
	return math.Log2(max / min)
}

func (rm *RadianceMap) String() string {
	return fmt.Sprintf("radiance[%dx%dx%d, t=%s, %.1f stops]", rm.Width, rm.Height, rm.Channels, ShutterString(rm.TimeBase), rm.DynamicRange())
}

// Fuse merges the aligned exposures into a radiance map. At each pixel
// and channel it is the weighted mean of g(z) - ln(t/t_ref) over the
// exposures that cover the pixel, exponentiated. Where no exposure has a
// non-zero weight, the sample closest to mid-range is used on its own.
func Fuse(cfg Config, b *Bracket, offsets []AlignmentOffset, curves []ResponseCurve) (*RadianceMap, error) {
	shape := b.Shape()
	if len(curves) != shape.Channels {
		return nil, fmt.Errorf("have %d response curves for %d channels", len(curves), shape.Channels)
	}

	refTime := b.RefTime()
	rm := NewRadianceMap(shape.Width, shape.Height, shape.Channels, refTime)
	wf := NewWeightFunc(shape.Zmax)
	zmid := float64(shape.Zmax) / 2.0

	lnT := make([]float64, b.Len())
	for i, e := range b.Exposures {
		lnT[i] = math.Log(e.Time / refTime)
	}

	emath.ParallelRows(shape.Height, cfg.Workers, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < shape.Width; x++ {
				for c := 0; c < shape.Channels; c++ {
					g := curves[c].G
					num, den := 0.0, 0.0
					fallback, fallbackDist := math.NaN(), math.Inf(1)

					for i, e := range b.Exposures {
						sx, sy := x+offsets[i].DX, y+offsets[i].DY
						if !e.InBounds(sx, sy) {
							continue
						}
						z := e.At(sx, sy, c)
						lnE := g[z] - lnT[i]
						if w := wf.At(z); w > 0 {
							num += w * lnE
							den += w
						}
						if d := math.Abs(float64(z) - zmid); d < fallbackDist {
							fallback, fallbackDist = lnE, d
						}
					}

					if den > 0 {
						rm.set(x, y, c, math.Exp(num/den))
					} else if !math.IsNaN(fallback) {
						rm.set(x, y, c, math.Exp(fallback))
					}
				}
			}
		}
	})

	return rm, nil
}
