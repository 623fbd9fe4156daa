package tonemap

import (
	"image"
	"math"

	"github.com/mdouchement/hdr"

	"github.com/abworrall/bracket-hdr/pkg/pde"
)

// mantiukResponsePower is the exponent of the contrast transducer.
const mantiukResponsePower = 0.4185

// Mantiuk is a contrast-domain operator after Mantiuk et al. (2006).
// Log luminance gradients are pushed through the transducer, scaled,
// and mapped back; the compressed luminance is then reconstructed from
// the new gradient field with a Poisson solve.
type Mantiuk struct {
	MantiukParams
}

func NewMantiuk(p MantiukParams) *Mantiuk { return &Mantiuk{p} }

func (m *Mantiuk) Name() string { return "mantiuk" }

func (m *Mantiuk) Tonemap(img hdr.Image) (*image.RGBA, error) {
	ch, err := readChannels(m.Name(), img)
	if err != nil {
		return nil, err
	} else if !ch.normalize() {
		return blackImage(ch), nil
	}

	scale := m.Scale
	if scale <= 0 {
		scale = DefaultMantiukParams().Scale
	}

	H := ch.lum.NewFromThis()
	for i, v := range ch.lum.Values() {
		H.Values()[i] = math.Log10(floorLum(v))
	}

	Gx, Gy := pde.Gradients(H)
	for _, g := range [][]float64{Gx.Values(), Gy.Values()} {
		for i := range g {
			g[i] = mapContrast(g[i], scale)
		}
	}

	U := pde.Solve(pde.Divergence(Gx, Gy), false)

	newLum := U.NewFromThis()
	for i, u := range U.Values() {
		newLum.Values()[i] = math.Pow(10, u)
	}

	ch.mapLuminance(newLum, m.Saturation)
	return ch.finish(m.Gamma, m.Gain), nil
}

// mapContrast sends a log contrast through the transducer, scales the
// response, and inverts the transducer.
func mapContrast(g, scale float64) float64 {
	r := signedPow(g, mantiukResponsePower) * scale
	return signedPow(r, 1.0/mantiukResponsePower)
}

func signedPow(v, p float64) float64 {
	if v < 0 {
		return -math.Pow(-v, p)
	}
	return math.Pow(v, p)
}
