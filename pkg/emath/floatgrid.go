package emath

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/fogleman/gg"
)

// A FloatGrid is a single channel of float values, stored row-major.
// It backs the grayscale pyramids used by alignment and the luminance
// grids used by the gradient-domain tone mappers.
type FloatGrid struct {
	stride int
	values []float64
}

func NewFloatGrid(w, h int) FloatGrid {
	return FloatGrid{
		stride: w,
		values: make([]float64, w*h),
	}
}

func (fg *FloatGrid) NewFromThis() FloatGrid  { return NewFloatGrid(fg.Dx(), fg.Dy()) }
func (fg *FloatGrid) Set(x, y int, v float64) { fg.values[fg.stride*y+x] = v }
func (fg *FloatGrid) Get(x, y int) float64    { return fg.values[fg.stride*y+x] }
func (fg *FloatGrid) Dx() int                 { return fg.stride }
func (fg *FloatGrid) Values() []float64       { return fg.values }

func (fg *FloatGrid) Dy() int {
	if fg.stride == 0 {
		return 0
	}
	return len(fg.values) / fg.stride
}

func (fg *FloatGrid) Copy() FloatGrid {
	g2 := FloatGrid{stride: fg.stride, values: make([]float64, len(fg.values))}
	copy(g2.values, fg.values)
	return g2
}

// Row returns the slice holding row y; writes go straight into the grid.
func (fg *FloatGrid) Row(y int) []float64 {
	return fg.values[y*fg.stride : (y+1)*fg.stride]
}

// GaussianBlur applies a separable [1 2 1]/4 kernel, clamping at the edges.
func (fg FloatGrid) GaussianBlur() FloatGrid {
	width, height := fg.Dx(), fg.Dy()
	out := fg.NewFromThis()
	if width < 2 || height < 2 {
		return fg.Copy()
	}

	tmp := fg.NewFromThis()
	for y := 0; y < height; y++ {
		for x := 1; x < width-1; x++ {
			tmp.Set(x, y, (2.0*fg.Get(x, y)+fg.Get(x-1, y)+fg.Get(x+1, y))/4.0)
		}
		tmp.Set(0, y, (3.0*fg.Get(0, y)+fg.Get(1, y))/4.0)
		tmp.Set(width-1, y, (3.0*fg.Get(width-1, y)+fg.Get(width-2, y))/4.0)
	}

	for x := 0; x < width; x++ {
		for y := 1; y < height-1; y++ {
			out.Set(x, y, (2.0*tmp.Get(x, y)+tmp.Get(x, y-1)+tmp.Get(x, y+1))/4.0)
		}
		out.Set(x, 0, (3.0*tmp.Get(x, 0)+tmp.Get(x, 1))/4.0)
		out.Set(x, height-1, (3.0*tmp.Get(x, height-1)+tmp.Get(x, height-2))/4.0)
	}

	return out
}

// CalculateGradients returns the central-difference gradient magnitude
// at each point, scaled for pyramid level `depth`, plus the average
// magnitude over the grid.
func (fg *FloatGrid) CalculateGradients(depth int) (FloatGrid, float64) {
	G := fg.NewFromThis()
	width, height := fg.Dx(), fg.Dy()
	divider := math.Pow(2.0, float64(depth)+1)
	avgGrad := 0.0

	for y := 0; y < height; y++ {
		n, s := y-1, y+1
		if n < 0 {
			n = 0
		}
		if s >= height {
			s = height - 1
		}
		for x := 0; x < width; x++ {
			w, e := x-1, x+1
			if w < 0 {
				w = 0
			}
			if e >= width {
				e = width - 1
			}

			gx := (fg.Get(w, y) - fg.Get(e, y)) / divider
			gy := (fg.Get(x, s) - fg.Get(x, n)) / divider
			G.Set(x, y, math.Sqrt(gx*gx+gy*gy))
			avgGrad += G.Get(x, y)
		}
	}

	return G, avgGrad / float64(width*height)
}

// DownSample returns a grid half the size in each dimension, each value
// being the mean of a 2x2 block of the original. An odd last row or
// column is dropped.
func (fg *FloatGrid) DownSample() FloatGrid {
	width, height := fg.Dx()/2, fg.Dy()/2
	g2 := NewFloatGrid(width, height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			p := fg.Get(2*x, 2*y) + fg.Get(2*x+1, 2*y) + fg.Get(2*x, 2*y+1) + fg.Get(2*x+1, 2*y+1)
			g2.Set(x, y, p/4.0)
		}
	}

	return g2
}

// UpSampleInto fills `B`, assumed to be about twice the size of the
// receiver, by nearest-neighbour replication.
func (fg *FloatGrid) UpSampleInto(B *FloatGrid) {
	awidth, aheight := fg.Dx(), fg.Dy()

	for y := 0; y < B.Dy(); y++ {
		ay := y / 2
		if ay >= aheight {
			ay = aheight - 1
		}
		for x := 0; x < B.Dx(); x++ {
			ax := x / 2
			if ax >= awidth {
				ax = awidth - 1
			}
			B.Set(x, y, fg.Get(ax, ay))
		}
	}
}

// Pyramid returns the grid followed by up to levels-1 successive
// downsamplings; it stops early once a level would drop below minDim.
func (fg *FloatGrid) Pyramid(levels, minDim int) []FloatGrid {
	pyr := []FloatGrid{*fg}
	for len(pyr) < levels {
		top := pyr[len(pyr)-1]
		if top.Dx()/2 < minDim || top.Dy()/2 < minDim {
			break
		}
		pyr = append(pyr, top.DownSample())
	}
	return pyr
}

// FindMaxMinLumAtPercentile ignores zero values, and returns the values
// found at the two percentiles (expressed as fractions).
func (fg *FloatGrid) FindMaxMinLumAtPercentile(minPrct, maxPrct float64) (float64, float64) {
	vals := make([]float64, 0, len(fg.values))
	for _, v := range fg.values {
		if v != 0.0 {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return 0, 0
	}

	sort.Float64s(vals)

	iMin := int(minPrct * float64(len(vals)))
	iMax := int(maxPrct * float64(len(vals)))
	if iMin < 0 {
		iMin = 0
	}
	if iMax >= len(vals) {
		iMax = len(vals) - 1
	}

	return vals[iMin], vals[iMax]
}

// MinMax ignores NaNs.
func (fg *FloatGrid) MinMax() (float64, float64) {
	min, max := math.Inf(1), math.Inf(-1)
	for _, v := range fg.values {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	return min, max
}

func (fg *FloatGrid) Stats() string {
	min, max := fg.MinMax()
	return fmt.Sprintf("fg[%dx%d, vals{%f,%f}]", fg.Dx(), fg.Dy(), min, max)
}

// ToImg saves a grayscale PNG scaled to the range of values in the grid,
// gamma expanded so it looks right, with the title drawn on top.
func (fg *FloatGrid) ToImg(title, filename string) error {
	min, max := fg.MinMax()
	span := max - min
	if span == 0 {
		span = 1
	}

	img := image.NewRGBA64(image.Rect(0, 0, fg.Dx(), fg.Dy()))
	for y := 0; y < fg.Dy(); y++ {
		for x := 0; x < fg.Dx(); x++ {
			gray := uint16(GammaExpand_F64((fg.Get(x, y)-min)/span) * 65535.0)
			img.Set(x, y, color.RGBA64{gray, gray, gray, 0xFFFF})
		}
	}

	dc := gg.NewContextForImage(img)
	dc.SetRGB(1, 0.2, 0.2)
	dc.DrawString(title, 10, 20)
	return dc.SavePNG(filename)
}
