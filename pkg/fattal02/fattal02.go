// Package fattal02 implements Fattal et al. (2002), "Gradient Domain
// High Dynamic Range Compression", following the PFSTMO implementation.
package fattal02

import (
	"fmt"
	"image"
	"log"
	"math"

	"github.com/mdouchement/hdr"

	"github.com/abworrall/bracket-hdr/pkg/ecolor"
	"github.com/abworrall/bracket-hdr/pkg/emath"
	"github.com/abworrall/bracket-hdr/pkg/pde"
	"github.com/abworrall/bracket-hdr/pkg/tonemap"
)

// Fattal02 attenuates large log luminance gradients at every scale of a
// Gaussian pyramid, then integrates the result back with a Poisson solve.
type Fattal02 struct {
	// Algo parameters
	DetailLevel int
	Noise       float64
	Alpha       float64
	Beta        float64
	Gamma       float64
	BlackPoint  float64
	WhitePoint  float64
	Saturation  float64

	GammaExpand bool   // whether to perform sRGB gamma expansion on final output
	DumpDir     string // if set, write greyscale PNGs of the intermediate grids here

	// Intermediate grids, all single channel, calculated in this order.
	logLuminance emath.FloatGrid   // H, log(lum)
	pyramid      []emath.FloatGrid // the Gaussian pyramid of H
	gradients    []emath.FloatGrid // gradient magnitudes for each layer in the pyramid
	avgGrad      []float64         // (and the average gradient for each layer)
	attenuation  emath.FloatGrid   // PHI, the 2D gradient attenuation function
	divG         emath.FloatGrid   // DivG
	u            emath.FloatGrid   // U, the solution to laplace(U) = DivG
	outputLum    emath.FloatGrid   // L, exp(U) renormalized between the black and white points
}

func (f02 *Fattal02) NumLevels() int { return len(f02.pyramid) }

// NewDefaultFattal02 uses the PFSTMO defaults for the FFT solver (see
// pfstmo_fattal02(1)), with the white point pulled right in so that
// bright highlights are not clipped.
func NewDefaultFattal02() *Fattal02 {
	return &Fattal02{
		DetailLevel: 3,
		Noise:       0.002,
		Alpha:       1.0,
		Beta:        0.9,
		Gamma:       0.8,
		BlackPoint:  0.1,
		WhitePoint:  0.00001,
		Saturation:  0.8,
		GammaExpand: true,
	}
}

func (f02 *Fattal02) Name() string { return "fattal02" }

// Tonemap implements tonemap.Operator.
func (f02 *Fattal02) Tonemap(img hdr.Image) (*image.RGBA, error) {
	if err := tonemap.CheckFinite(f02.Name(), img); err != nil {
		return nil, err
	}

	if !f02.createLogLuminanceGrid(img) {
		return blackImage(img.Bounds().Dx(), img.Bounds().Dy()), nil
	}
	f02.createGaussianPyramid()
	f02.calculateGradients()
	f02.calculateAttenuationMatrix()
	f02.calculateDivergence()

	f02.u = pde.Solve(f02.divG, false)
	f02.maybeDumpGrid(f02.u, "006-solved-PDE")

	f02.createExponentiatedLuminance()
	return f02.fillOutputImage(img), nil
}

func (f02 *Fattal02) maybeDumpGrid(f emath.FloatGrid, name string) {
	if f02.DumpDir == "" {
		return
	}
	log.Printf("fattal02: %s %s\n", name, f.Stats())
	if err := f.ToImg(name, fmt.Sprintf("%s/%s.png", f02.DumpDir, name)); err != nil {
		log.Printf("fattal02: dump %s: %v", name, err)
	}
}

func blackImage(w, h int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xFF
	}
	return out
}

// createLogLuminanceGrid fills H, reporting false if the image has no
// luminance range at all to work with.
func (f02 *Fattal02) createLogLuminanceGrid(img hdr.Image) bool {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	lumGrid := emath.NewFloatGrid(width, height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			lum := ecolor.HDRLuminance(img.HDRAt(x+bounds.Min.X, y+bounds.Min.Y))
			lumGrid.Set(x, y, math.Max(lum, 0))
		}
	}

	minLum, maxLum := lumGrid.MinMax()
	if !(maxLum > 0) || width < 2 || height < 2 {
		return false
	}
	span := maxLum - minLum
	if span == 0 {
		span = maxLum
	}

	H := lumGrid.NewFromThis()
	for i, lum := range lumGrid.Values() {
		H.Values()[i] = math.Log(100.0*(lum-minLum)/span + 0.0001) // black becomes log(0.0001) = -9.2
	}

	f02.maybeDumpGrid(lumGrid, "001-luminance")
	f02.maybeDumpGrid(H, "001-logLuminance")
	f02.logLuminance = H
	return true
}

func (f02 *Fattal02) createGaussianPyramid() {
	f02.pyramid = []emath.FloatGrid{f02.logLuminance.Copy()}

	for {
		top := f02.pyramid[len(f02.pyramid)-1]
		if top.Dx()/2 < 8 || top.Dy()/2 < 8 {
			break
		}
		blurred := top.GaussianBlur()
		next := blurred.DownSample()
		f02.maybeDumpGrid(next, fmt.Sprintf("002-pyramid%02d", len(f02.pyramid)))
		f02.pyramid = append(f02.pyramid, next)
	}
}

func (f02 *Fattal02) calculateGradients() {
	f02.gradients = make([]emath.FloatGrid, f02.NumLevels())
	f02.avgGrad = make([]float64, f02.NumLevels())

	for k := range f02.pyramid {
		f02.gradients[k], f02.avgGrad[k] = f02.pyramid[k].CalculateGradients(k)
		f02.maybeDumpGrid(f02.gradients[k], fmt.Sprintf("003-gradient%02d", k))
	}
}

func (f02 *Fattal02) calculateAttenuationMatrix() {
	nLevels := f02.NumLevels()
	phi := make([]emath.FloatGrid, nLevels)

	top := f02.gradients[nLevels-1].NewFromThis()
	for i := range top.Values() {
		top.Values()[i] = 1.0
	}
	phi[nLevels-1] = top

	// Walk down the pyramid from the top layer
	for k := nLevels - 1; k >= 0; k-- {
		// only attenuate levels >= DetailLevel, but always the coarsest
		if k >= f02.DetailLevel || k == nLevels-1 {
			a := f02.Alpha * f02.avgGrad[k]
			for i, grad := range f02.gradients[k].Values() {
				value := 1.0
				if grad > 1e-4 && a > 0 {
					value = a / (grad + f02.Noise) * math.Pow((grad+f02.Noise)/a, f02.Beta)
				}
				phi[k].Values()[i] *= value
			}
		}

		if k > 0 {
			upsampled := f02.gradients[k-1].NewFromThis()
			phi[k].UpSampleInto(&upsampled)
			phi[k-1] = upsampled.GaussianBlur()
		}

		f02.maybeDumpGrid(phi[k], fmt.Sprintf("004-attenuation%02d", k))
	}

	f02.attenuation = phi[0]
}

func (f02 *Fattal02) calculateDivergence() {
	H, PHI := f02.logLuminance, f02.attenuation
	Gx, Gy := pde.Gradients(H)
	width, height := H.Dx(), H.Dy()

	// Forward differences in H, so use the between-points PHI
	for y := 0; y < height; y++ {
		yp1 := y + 1
		if yp1 >= height {
			yp1 = height - 2
		}
		for x := 0; x < width; x++ {
			xp1 := x + 1
			if xp1 >= width {
				xp1 = width - 2
			}
			Gx.Set(x, y, Gx.Get(x, y)*0.5*(PHI.Get(xp1, y)+PHI.Get(x, y)))
			Gy.Set(x, y, Gy.Get(x, y)*0.5*(PHI.Get(x, yp1)+PHI.Get(x, y)))
		}
	}

	f02.maybeDumpGrid(Gx, "005-divGx")
	f02.maybeDumpGrid(Gy, "005-divGy")

	f02.divG = pde.Divergence(Gx, Gy)
	f02.maybeDumpGrid(f02.divG, "005-divG")
}

func (f02 *Fattal02) createExponentiatedLuminance() {
	L := f02.u.NewFromThis()
	for i, u := range f02.u.Values() {
		L.Values()[i] = math.Exp(f02.Gamma*u) - 1e-4
	}

	// remove percentile of min and max values and renormalize
	cutMin := 0.01 * f02.BlackPoint
	cutMax := 1.0 - 0.01*f02.WhitePoint
	minLum, maxLum := L.FindMaxMinLumAtPercentile(cutMin, cutMax)
	span := maxLum - minLum
	if !(span > 0) {
		span = 1
	}

	for i, v := range L.Values() {
		val := (v - minLum) / span
		if val <= 0.0 {
			val = 1e-4
		}
		L.Values()[i] = val
	}

	f02.maybeDumpGrid(L, "007-exponentiated")
	f02.outputLum = L
}

// fillOutputImage puts the new luminance back into the original colors:
// C_out = (C_in / L_before)^s * L_after
func (f02 *Fattal02) fillOutputImage(img hdr.Image) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			r, g, b, _ := img.HDRAt(x+bounds.Min.X, y+bounds.Min.Y).HDRRGBA()
			lumBefore := math.Max(ecolor.Luminance(r, g, b), 1e-4)
			lumAfter := math.Max(f02.outputLum.Get(x, y), 1e-4)
			r, g, b = ecolor.MapLuminance(r, g, b, lumBefore, lumAfter, f02.Saturation)
			out.SetRGBA(x, y, ecolor.ToRGBA(r, g, b, f02.GammaExpand))
		}
	}

	return out
}
