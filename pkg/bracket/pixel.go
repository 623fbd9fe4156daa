package bracket

import (
	"fmt"
	"image"
	"math"
)

// A Pixel is everything the pipeline knew about one reference-frame
// pixel, gathered for debugging.
type Pixel struct {
	Pos      image.Point
	Inputs   []PixelInput
	Radiance []float64 // per channel
	Mask     []uint8   // per mask plane
	Output   map[string][3]uint8
}

// A PixelInput is one exposure's contribution to a Pixel.
type PixelInput struct {
	Name    string
	Time    float64
	Offset  AlignmentOffset
	Covered bool      // false if the offset pushed this pixel off the exposure
	Z       []int     // per channel
	Weight  []float64 // per channel
	LogE    []float64 // g(z) - ln(t/t_ref), per channel
}

// NewPixel gathers the debug view of reference pixel pt from a finished
// (or partly finished) run; nil fields of r are skipped.
func NewPixel(pt image.Point, b *Bracket, r *Result) Pixel {
	p := Pixel{Pos: pt, Output: map[string][3]uint8{}}
	shape := b.Shape()
	wf := NewWeightFunc(shape.Zmax)
	refTime := b.RefTime()

	for i, e := range b.Exposures {
		in := PixelInput{Name: e.Name, Time: e.Time}
		if i < len(r.Offsets) {
			in.Offset = r.Offsets[i]
		}
		sx, sy := pt.X+in.Offset.DX, pt.Y+in.Offset.DY
		in.Covered = e.InBounds(sx, sy)
		if in.Covered {
			for c := 0; c < e.Channels; c++ {
				z := e.At(sx, sy, c)
				in.Z = append(in.Z, z)
				in.Weight = append(in.Weight, wf.At(z))
				if c < len(r.Response) {
					in.LogE = append(in.LogE, r.Response[c].At(z)-math.Log(e.Time/refTime))
				}
			}
		}
		p.Inputs = append(p.Inputs, in)
	}

	if r.Radiance != nil {
		for c := 0; c < r.Radiance.Channels; c++ {
			p.Radiance = append(p.Radiance, r.Radiance.Value(pt.X, pt.Y, c))
		}
	}
	if r.Mask != nil {
		for plane := 0; plane < r.Mask.Planes; plane++ {
			p.Mask = append(p.Mask, r.Mask.AtPlane(pt.X, pt.Y, plane))
		}
	}
	for name, img := range r.LDR {
		c := img.RGBAAt(pt.X, pt.Y)
		p.Output[name] = [3]uint8{c.R, c.G, c.B}
	}

	return p
}

func (p Pixel) String() string {
	str := fmt.Sprintf("----- Pixel @(%d,%d)-----\n", p.Pos.X, p.Pos.Y)

	str += "Inputs:-\n"
	for i, in := range p.Inputs {
		if !in.Covered {
			str += fmt.Sprintf("-- exposure %d %-12s: %-8s offset %s, not covered\n", i, in.Name, ShutterString(in.Time), in.Offset)
			continue
		}
		str += fmt.Sprintf("-- exposure %d %-12s: %-8s offset %s, z=%v, w=%s", i, in.Name, ShutterString(in.Time), in.Offset, in.Z, floats(in.Weight, 3))
		if len(in.LogE) > 0 {
			str += fmt.Sprintf(", lnE=%s", floats(in.LogE, 4))
		}
		str += "\n"
	}
	str += "\n"

	if len(p.Radiance) > 0 {
		str += fmt.Sprintf("Radiance           : %s\n", floats(p.Radiance, 8))
	}
	if len(p.Mask) > 0 {
		str += fmt.Sprintf("Mask               : %v\n", p.Mask)
	}
	for _, name := range Tonemappers {
		if rgb, exists := p.Output[name]; exists {
			str += fmt.Sprintf("Output %-12s: [%3d, %3d, %3d]\n", name, rgb[0], rgb[1], rgb[2])
		}
	}

	return str + "\n"
}

func floats(vals []float64, prec int) string {
	str := "["
	for i, v := range vals {
		if i > 0 {
			str += ", "
		}
		str += fmt.Sprintf("%.*f", prec, v)
	}
	return str + "]"
}
