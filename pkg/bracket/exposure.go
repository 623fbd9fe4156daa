package bracket

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// A Raster holds integer samples in [0, Zmax], row-major with channels
// interleaved: Pix[(y*Width + x)*Channels + c].
type Raster struct {
	Width    int
	Height   int
	Channels int
	Zmax     int
	Pix      []uint16
}

func NewRaster(w, h, channels, zmax int) Raster {
	return Raster{
		Width:    w,
		Height:   h,
		Channels: channels,
		Zmax:     zmax,
		Pix:      make([]uint16, w*h*channels),
	}
}

func (r Raster) Shape() Shape { return Shape{r.Width, r.Height, r.Channels, r.Zmax} }

func (r Raster) At(x, y, c int) int      { return int(r.Pix[(y*r.Width+x)*r.Channels+c]) }
func (r Raster) Set(x, y, c, z int)      { r.Pix[(y*r.Width+x)*r.Channels+c] = uint16(z) }
func (r Raster) InBounds(x, y int) bool  { return x >= 0 && y >= 0 && x < r.Width && y < r.Height }
func (r Raster) Bounds() image.Rectangle { return image.Rect(0, 0, r.Width, r.Height) }

// Readable is true if the buffer is consistent with the geometry, and
// holds either gray or RGB samples. An unreadable raster is dropped from
// a bracket, not treated as fatal.
func (r Raster) Readable() bool {
	return r.Width > 0 && r.Height > 0 && (r.Channels == 1 || r.Channels == 3) && r.Zmax > 0 && r.Zmax <= math.MaxUint16 &&
		len(r.Pix) == r.Width*r.Height*r.Channels
}

// An Exposure is one frame of the bracket.
type Exposure struct {
	Raster
	Name  string
	Time  float64 // seconds; 0 means not known
	Index int     // position in the caller's original input
}

func (e Exposure) String() string {
	return fmt.Sprintf("exposure[%d '%s', %dx%dx%d, t=%s]", e.Index, e.Name, e.Width, e.Height, e.Channels, ShutterString(e.Time))
}

// NewExposureFromImage quantizes a decoded image into a raster with
// samples in [0, 2^bitDepth - 1]. Gray images give one channel, all
// others three.
func NewExposureFromImage(name string, img image.Image, t float64, bitDepth int) Exposure {
	if bitDepth < 1 || bitDepth > 16 {
		bitDepth = 16
	}
	zmax := (1 << uint(bitDepth)) - 1
	shift := uint(16 - bitDepth)
	b := img.Bounds()

	channels := 3
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		channels = 1
	}

	r := NewRaster(b.Dx(), b.Dy(), channels, zmax)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := img.At(x+b.Min.X, y+b.Min.Y)
			if channels == 1 {
				g := color.Gray16Model.Convert(c).(color.Gray16)
				r.Set(x, y, 0, int(g.Y>>shift))
				continue
			}
			// Un-premultiplied samples, so transparency doesn't bias exposure
			nc := color.NRGBA64Model.Convert(c).(color.NRGBA64)
			r.Set(x, y, 0, int(nc.R>>shift))
			r.Set(x, y, 1, int(nc.G>>shift))
			r.Set(x, y, 2, int(nc.B>>shift))
		}
	}

	return Exposure{Raster: r, Name: name, Time: t}
}

// Image renders the raster as a 16-bit image, shifted by (dx,dy) so that
// reference pixel (x,y) shows sample (x+dx,y+dy). Pixels with no sample
// are transparent.
func (e Exposure) Image(offset AlignmentOffset) *image.NRGBA64 {
	out := image.NewNRGBA64(e.Bounds())
	scale := 65535.0 / float64(e.Zmax)
	for y := 0; y < e.Height; y++ {
		for x := 0; x < e.Width; x++ {
			sx, sy := x+offset.DX, y+offset.DY
			if !e.InBounds(sx, sy) {
				continue
			}
			var c color.NRGBA64
			c.A = 0xFFFF
			if e.Channels < 3 {
				v := uint16(float64(e.At(sx, sy, 0))*scale + 0.5)
				c.R, c.G, c.B = v, v, v
			} else {
				c.R = uint16(float64(e.At(sx, sy, 0))*scale + 0.5)
				c.G = uint16(float64(e.At(sx, sy, 1))*scale + 0.5)
				c.B = uint16(float64(e.At(sx, sy, 2))*scale + 0.5)
			}
			out.SetNRGBA64(x, y, c)
		}
	}
	return out
}
