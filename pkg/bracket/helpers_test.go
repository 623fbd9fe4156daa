package bracket

import (
	"io"
	"log"
	"math"
)

func testConfig() Config {
	cfg := NewConfig()
	cfg.Logger = log.New(io.Discard, "", 0)
	cfg.Workers = 4
	cfg.Tonemappers = []string{"drago"}
	return cfg
}

// synthSlope is how many sample values a synthetic sensor advances per
// unit of log exposure; g(z) = (z - 128) / synthSlope.
const synthSlope = 20.0

func synthZ(lnE, t float64) int {
	z := int(math.Round(synthSlope*(lnE+math.Log(t)))) + 128
	if z < 0 {
		return 0
	} else if z > 255 {
		return 255
	}
	return z
}

func synthResponse() ResponseCurve {
	rc := ResponseCurve{G: make([]float64, 256)}
	for z := range rc.G {
		rc.G[z] = float64(z-128) / synthSlope
	}
	return rc
}

// synthExposure images a scene with log irradiance lnE(x,y) through the
// synthetic sensor, at time t.
func synthExposure(name string, w, h, channels int, t float64, lnE func(x, y int) float64) Exposure {
	r := NewRaster(w, h, channels, 255)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			z := synthZ(lnE(x, y), t)
			for c := 0; c < channels; c++ {
				r.Set(x, y, c, z)
			}
		}
	}
	return Exposure{Raster: r, Name: name, Time: t}
}

// flatExposure has the same value everywhere.
func flatExposure(name string, w, h, channels, z int, t float64) Exposure {
	r := NewRaster(w, h, channels, 255)
	for i := range r.Pix {
		r.Pix[i] = uint16(z)
	}
	return Exposure{Raster: r, Name: name, Time: t}
}

// rampScene spreads log irradiance over [-3.5, 3.5], varying in both
// directions so that every region is textured.
func rampScene(w, h int) func(x, y int) float64 {
	return func(x, y int) float64 {
		return -3.5 + 7.0*float64(x+y*w)/float64(w*h-1)
	}
}
