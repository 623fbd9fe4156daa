package tonemap

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/mdouchement/hdr"
	"github.com/mdouchement/hdr/hdrcolor"

	"github.com/abworrall/bracket-hdr/pkg/ecolor"
	"github.com/abworrall/bracket-hdr/pkg/emath"
)

// A RangeError reports a NaN or Inf value in the input to an operator.
// It always points at an upstream defect, so it is never mapped to black.
type RangeError struct {
	Operator string
	X, Y     int
	Channel  int
	Value    float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("tonemap %s: non-finite value %v at (%d,%d) channel %d",
		e.Operator, e.Value, e.X, e.Y, e.Channel)
}

// CheckFinite scans the whole image, returning a *RangeError for the
// first NaN or Inf it finds.
func CheckFinite(op string, img hdr.Image) error {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.HDRAt(x, y).HDRRGBA()
			for c, v := range [3]float64{r, g, bl} {
				if !emath.IsFinite(v) {
					return &RangeError{Operator: op, X: x - b.Min.X, Y: y - b.Min.Y, Channel: c, Value: v}
				}
			}
		}
	}
	return nil
}

// channels is an HDR image split into float grids, with its luminance.
type channels struct {
	rgb [3]emath.FloatGrid
	lum emath.FloatGrid
}

func (ch *channels) Dx() int { return ch.lum.Dx() }
func (ch *channels) Dy() int { return ch.lum.Dy() }

// readChannels copies img into grids, validating as it goes. Negative
// values carry no physical meaning and are floored at zero.
func readChannels(op string, img hdr.Image) (*channels, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	ch := &channels{lum: emath.NewFloatGrid(w, h)}
	for c := range ch.rgb {
		ch.rgb[c] = emath.NewFloatGrid(w, h)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.HDRAt(x+b.Min.X, y+b.Min.Y).HDRRGBA()
			vals := [3]float64{r, g, bl}
			for c, v := range vals {
				if !emath.IsFinite(v) {
					return nil, &RangeError{Operator: op, X: x, Y: y, Channel: c, Value: v}
				}
				if v < 0 {
					vals[c] = 0
				}
				ch.rgb[c].Set(x, y, vals[c])
			}
			ch.lum.Set(x, y, ecolor.Luminance(vals[0], vals[1], vals[2]))
		}
	}

	return ch, nil
}

// maxValue is the largest value across all three channels.
func (ch *channels) maxValue() float64 {
	max := 0.0
	for c := range ch.rgb {
		if _, m := ch.rgb[c].MinMax(); m > max {
			max = m
		}
	}
	return max
}

// normalize divides every channel and the luminance by the largest
// channel value, so everything lands in [0,1]. It reports false for an
// all-black image.
func (ch *channels) normalize() bool {
	max := ch.maxValue()
	if !(max > 0) || math.IsInf(max, 0) {
		return false
	}
	for c := range ch.rgb {
		scaleGrid(&ch.rgb[c], 1.0/max)
	}
	scaleGrid(&ch.lum, 1.0/max)
	return true
}

func scaleGrid(g *emath.FloatGrid, f float64) {
	vals := g.Values()
	for i := range vals {
		vals[i] *= f
	}
}

// mapLuminance replaces the luminance of every pixel with newLum.
func (ch *channels) mapLuminance(newLum emath.FloatGrid, saturation float64) {
	for y := 0; y < ch.Dy(); y++ {
		for x := 0; x < ch.Dx(); x++ {
			r, g, b := ecolor.MapLuminance(ch.rgb[0].Get(x, y), ch.rgb[1].Get(x, y), ch.rgb[2].Get(x, y),
				ch.lum.Get(x, y), newLum.Get(x, y), saturation)
			ch.rgb[0].Set(x, y, r)
			ch.rgb[1].Set(x, y, g)
			ch.rgb[2].Set(x, y, b)
		}
	}
}

// finish normalizes by the maximum, applies 1/gamma and the gain, and
// quantizes into 8 bits with clamping.
func (ch *channels) finish(gamma, gain float64) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, ch.Dx(), ch.Dy()))

	max := ch.maxValue()
	if !(max > 0) {
		// Nothing to show; leave it black (but opaque)
		max = 1
	}
	if gamma <= 0 {
		gamma = 1
	}
	if gain <= 0 {
		gain = 1
	}

	f := func(v float64) float64 {
		return math.Pow(v/max, 1.0/gamma) * gain
	}
	for y := 0; y < ch.Dy(); y++ {
		for x := 0; x < ch.Dx(); x++ {
			out.SetRGBA(x, y, ecolor.ToRGBA(f(ch.rgb[0].Get(x, y)), f(ch.rgb[1].Get(x, y)), f(ch.rgb[2].Get(x, y)), false))
		}
	}
	return out
}

// blackImage is what an operator returns for an all-zero input.
func blackImage(ch *channels) *image.RGBA {
	return ch.finish(1, 1)
}

// floorLum keeps the logs finite for black pixels.
func floorLum(v float64) float64 {
	const epsilon = 1e-9
	if v < epsilon {
		return epsilon
	}
	return v
}

// Implement hdr.Image, so the library operators can run on the
// sanitized grids.
func (ch *channels) ColorModel() color.Model { return hdrcolor.RGBModel }
func (ch *channels) Bounds() image.Rectangle { return image.Rect(0, 0, ch.Dx(), ch.Dy()) }
func (ch *channels) At(x, y int) color.Color { return ch.HDRAt(x, y) }
func (ch *channels) Size() int               { return ch.Dx() * ch.Dy() }

func (ch *channels) HDRAt(x, y int) hdrcolor.Color {
	return hdrcolor.RGB{R: ch.rgb[0].Get(x, y), G: ch.rgb[1].Get(x, y), B: ch.rgb[2].Get(x, y)}
}
