package bracketio

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	"github.com/mdouchement/hdr"
	"github.com/mdouchement/hdr/codec/rgbe"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/tiff"

	"github.com/abworrall/bracket-hdr/pkg/bracket"
)

// WriteHDR outputs a Radiance RGBE (.hdr) image. You can load this into
// photoshop or other HDR tools.
func WriteHDR(img hdr.Image, filename string) error {
	writer, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("open+w '%s': %v", filename, err)
	}
	defer writer.Close()

	if err := rgbe.Encode(writer, img); err != nil {
		return fmt.Errorf("encoding RGBE '%s': %v", filename, err)
	}
	return nil
}

// WriteImage picks an encoder from the file extension: .png, .jpg or
// .tif. Anything else is written as PNG.
func WriteImage(img image.Image, filename string) error {
	writer, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("open+w '%s': %v", filename, err)
	}
	defer writer.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(writer, img, &jpeg.Options{Quality: 95})
	case ".tif", ".tiff":
		err = tiff.Encode(writer, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		err = png.Encode(writer, img)
	}
	if err != nil {
		return fmt.Errorf("encoding '%s': %v", filename, err)
	}
	return nil
}

// AlignedPreview shifts an exposure into the reference frame, so that
// flicking between previews shows how well the bracket lines up.
func AlignedPreview(e bracket.Exposure, offset bracket.AlignmentOffset) *image.NRGBA64 {
	src := e.Image(bracket.AlignmentOffset{})
	dst := image.NewNRGBA64(src.Bounds())
	draw.NearestNeighbor.Transform(dst, f64.Aff3(offset.ToMatrix()), src, src.Bounds(), draw.Src, nil)
	return dst
}

// PlotResponse draws the response curves, one line per channel, with
// g(z) up the side and z along the bottom.
func PlotResponse(curves []bracket.ResponseCurve, filename string) error {
	const w, h, margin = 512, 384, 24.0
	if len(curves) == 0 {
		return fmt.Errorf("no curves to plot")
	}

	lo, hi := curves[0].G[0], curves[0].G[0]
	for _, rc := range curves {
		for _, g := range rc.G {
			if g < lo {
				lo = g
			}
			if g > hi {
				hi = g
			}
		}
	}
	if hi == lo {
		hi = lo + 1
	}

	dc := gg.NewContext(w, h)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	colors := [][3]float64{{0.8, 0.1, 0.1}, {0.1, 0.6, 0.1}, {0.1, 0.1, 0.8}}
	for i, rc := range curves {
		if len(curves) == 1 {
			dc.SetRGB(0, 0, 0)
		} else {
			c := colors[i%len(colors)]
			dc.SetRGB(c[0], c[1], c[2])
		}
		zmax := float64(rc.Zmax())
		for z, g := range rc.G {
			x := margin + float64(z)/zmax*(w-2*margin)
			y := h - margin - (g-lo)/(hi-lo)*(h-2*margin)
			if z == 0 {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
		}
		dc.Stroke()
	}

	dc.SetRGB(0, 0, 0)
	dc.DrawString(fmt.Sprintf("g(z) in [%.2f, %.2f]", lo, hi), margin, margin)
	return dc.SavePNG(filename)
}

// WriteOptions says which of a run's products get written.
type WriteOptions struct {
	Format   string // extension for the tone mapped images; default png
	Mask     bool
	Previews bool // aligned exposures
	Response bool // plot of the response curves
}

// WriteResult writes the products of a run into dir, returning the
// files it wrote: fused.hdr, tmo-<name>.<format>, then the optional
// extras.
func WriteResult(r *bracket.Result, dir string, opts WriteOptions) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir '%s': %v", dir, err)
	}
	if opts.Format == "" {
		opts.Format = "png"
	}

	written := []string{}
	out := func(name string) string {
		f := filepath.Join(dir, name)
		written = append(written, f)
		return f
	}

	if err := WriteHDR(r.Radiance, out("fused.hdr")); err != nil {
		return written, err
	}

	for _, name := range bracket.Tonemappers {
		if ldr, exists := r.LDR[name]; exists {
			if err := WriteImage(ldr, out(fmt.Sprintf("tmo-%s.%s", name, opts.Format))); err != nil {
				return written, err
			}
		}
	}

	if opts.Mask && r.Mask != nil {
		for p := 0; p < r.Mask.Planes; p++ {
			name := "mask.png"
			if r.Mask.Planes > 1 {
				name = fmt.Sprintf("mask-%d.png", p)
			}
			if err := WriteImage(r.Mask.Image(p), out(name)); err != nil {
				return written, err
			}
		}
	}

	if opts.Previews {
		for i, e := range r.Bracket.Exposures {
			name := fmt.Sprintf("aligned-%02d-%s.png", i, strings.TrimSuffix(filepath.Base(e.Name), filepath.Ext(e.Name)))
			if err := WriteImage(AlignedPreview(e, r.Offsets[i]), out(name)); err != nil {
				return written, err
			}
		}
	}

	if opts.Response && len(r.Response) > 0 {
		if err := PlotResponse(r.Response, out("response.png")); err != nil {
			return written, err
		}
	}

	return written, nil
}
