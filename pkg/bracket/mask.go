package bracket

import (
	"fmt"
	"image"

	"github.com/abworrall/bracket-hdr/pkg/emath"
)

// A SaturationMask marks, per pixel, whether some exposure recorded a
// trustworthy sample there. With the each policy there is one plane per
// channel; otherwise a single plane.
type SaturationMask struct {
	Width  int
	Height int
	Planes int
	Policy string
	Pix    []uint8 // 0 or 1; Pix[(y*Width + x)*Planes + p]
}

func (m *SaturationMask) At(x, y int) uint8         { return m.Pix[(y*m.Width+x)*m.Planes] }
func (m *SaturationMask) AtPlane(x, y, p int) uint8 { return m.Pix[(y*m.Width+x)*m.Planes+p] }
func (m *SaturationMask) set(x, y, p int, v uint8)  { m.Pix[(y*m.Width+x)*m.Planes+p] = v }

// Coverage is the fraction of pixels (in plane 0) that are marked.
func (m *SaturationMask) Coverage() float64 {
	n := 0
	for i := 0; i < len(m.Pix); i += m.Planes {
		n += int(m.Pix[i])
	}
	return float64(n) / float64(m.Width*m.Height)
}

func (m *SaturationMask) String() string {
	return fmt.Sprintf("mask[%dx%d, %s, %.1f%% covered]", m.Width, m.Height, m.Policy, 100*m.Coverage())
}

// Image renders plane p as black (0) and white (1).
func (m *SaturationMask) Image(p int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			img.Pix[y*img.Stride+x] = m.AtPlane(x, y, p) * 0xFF
		}
	}
	return img
}

// BuildMask marks a pixel if at least one exposure covering it has a
// sample strictly between the floor and ceiling thresholds. The channel
// policy says how channels combine: all of them inside, any of them, or
// a separate plane for each.
func BuildMask(cfg Config, b *Bracket, offsets []AlignmentOffset) *SaturationMask {
	shape := b.Shape()
	floor := cfg.Mask.Floor * float64(shape.Zmax)
	ceiling := cfg.Mask.Ceiling * float64(shape.Zmax)
	inside := func(z int) bool { return float64(z) > floor && float64(z) < ceiling }

	m := &SaturationMask{
		Width:  shape.Width,
		Height: shape.Height,
		Planes: 1,
		Policy: cfg.Mask.Channels,
	}
	if m.Policy == MaskEach {
		m.Planes = shape.Channels
	}
	m.Pix = make([]uint8, m.Width*m.Height*m.Planes)

	emath.ParallelRows(shape.Height, cfg.Workers, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < shape.Width; x++ {
				for i, e := range b.Exposures {
					sx, sy := x+offsets[i].DX, y+offsets[i].DY
					if !e.InBounds(sx, sy) {
						continue
					}

					switch m.Policy {
					case MaskEach:
						for c := 0; c < shape.Channels; c++ {
							if inside(e.At(sx, sy, c)) {
								m.set(x, y, c, 1)
							}
						}
					case MaskAny:
						for c := 0; c < shape.Channels; c++ {
							if inside(e.At(sx, sy, c)) {
								m.set(x, y, 0, 1)
								break
							}
						}
					default:
						all := true
						for c := 0; c < shape.Channels && all; c++ {
							all = inside(e.At(sx, sy, c))
						}
						if all {
							m.set(x, y, 0, 1)
						}
					}
				}
			}
		}
	})

	return m
}

// MaskRadiance zeroes radiance wherever the mask is unset, returning a
// new map. Each-policy masks apply plane by plane.
func MaskRadiance(rm *RadianceMap, m *SaturationMask) *RadianceMap {
	out := NewRadianceMap(rm.Width, rm.Height, rm.Channels, rm.TimeBase)
	for y := 0; y < rm.Height; y++ {
		for x := 0; x < rm.Width; x++ {
			for c := 0; c < rm.Channels; c++ {
				p := 0
				if m.Planes == rm.Channels {
					p = c
				}
				if m.AtPlane(x, y, p) == 1 {
					out.set(x, y, c, rm.Value(x, y, c))
				}
			}
		}
	}
	return out
}
