package bracket

import (
	"fmt"
	"image"
	"math"

	"github.com/valyala/fastrand"
	"gonum.org/v1/gonum/mat"

	"github.com/abworrall/bracket-hdr/pkg/emath"
)

// A sample location qualifies for calibration if at least one exposure
// has every channel at or above this weight there.
const sampleFloorWeight = 0.25

// A ResponseCurve maps a sample value z in [0, Zmax] to log exposure,
// g(z) = ln(E * t), for one channel. It is non-decreasing, and zero
// at mid-range.
type ResponseCurve struct {
	Channel int
	G       []float64
}

func (rc ResponseCurve) At(z int) float64 { return rc.G[z] }
func (rc ResponseCurve) Zmax() int        { return len(rc.G) - 1 }

func (rc ResponseCurve) String() string {
	if len(rc.G) == 0 {
		return fmt.Sprintf("g[%d]{}", rc.Channel)
	}
	zmax := rc.Zmax()
	return fmt.Sprintf("g[%d]{0:%.3f, %d:%.3f, %d:%.3f}", rc.Channel, rc.G[0], zmax/2, rc.G[zmax/2], zmax, rc.G[zmax])
}

// LinearResponse is the curve of an ideal linear sensor. Zero maps to
// half a level, to keep the log finite.
func LinearResponse(channel, zmax int) ResponseCurve {
	rc := ResponseCurve{Channel: channel, G: make([]float64, zmax+1)}
	mid := math.Log(float64(zmax / 2))
	for z := range rc.G {
		rc.G[z] = math.Log(math.Max(float64(z), 0.5)) - mid
	}
	return rc
}

// Validate checks a supplied curve can stand in for a calibrated one.
func (rc ResponseCurve) Validate(zmax int) error {
	if len(rc.G) != zmax+1 {
		return fmt.Errorf("curve for channel %d has %d entries, want %d", rc.Channel, len(rc.G), zmax+1)
	}
	for z, g := range rc.G {
		if !emath.IsFinite(g) {
			return fmt.Errorf("curve for channel %d: g(%d) = %v", rc.Channel, z, g)
		} else if z > 0 && g < rc.G[z-1] {
			return fmt.Errorf("curve for channel %d decreases at z=%d", rc.Channel, z)
		}
	}
	return nil
}

// responseLevels quantizes deep rasters onto the coarser set of levels
// that the solver works with.
type responseLevels struct {
	zmax int
	n    int // number of levels
}

func newResponseLevels(zmax, maxLevels int) responseLevels {
	return responseLevels{zmax: zmax, n: minInt(zmax+1, maxLevels)}
}

func (rl responseLevels) level(z int) int {
	if rl.n == rl.zmax+1 {
		return z
	}
	return int(math.Round(float64(z) * float64(rl.n-1) / float64(rl.zmax)))
}

// expand linearly interpolates a per-level curve back onto [0, zmax].
func (rl responseLevels) expand(g []float64) []float64 {
	if rl.n == rl.zmax+1 {
		return g
	}
	out := make([]float64, rl.zmax+1)
	for z := range out {
		pos := float64(z) * float64(rl.n-1) / float64(rl.zmax)
		lo := int(math.Floor(pos))
		if lo >= rl.n-1 {
			out[z] = g[rl.n-1]
			continue
		}
		frac := pos - float64(lo)
		out[z] = g[lo]*(1-frac) + g[lo+1]*frac
	}
	return out
}

// overlap is the area of the reference frame that every exposure covers.
func overlap(b *Bracket, offsets []AlignmentOffset) image.Rectangle {
	bounds := b.Ref().Bounds()
	r := bounds
	for _, o := range offsets {
		r = r.Intersect(bounds.Sub(image.Pt(o.DX, o.DY)))
	}
	return r
}

// qualifies is true if some exposure has a mid-range value in every
// channel at reference location pt.
func qualifies(b *Bracket, offsets []AlignmentOffset, wf WeightFunc, pt image.Point) bool {
	for i, e := range b.Exposures {
		x, y := pt.X+offsets[i].DX, pt.Y+offsets[i].DY
		ok := true
		for c := 0; c < e.Channels && ok; c++ {
			ok = wf.At(e.At(x, y, c)) >= sampleFloorWeight
		}
		if ok {
			return true
		}
	}
	return false
}

// selectSamples picks up to cfg.Samples locations, spread over the area
// all exposures cover, where some exposure is well exposed.
func selectSamples(cfg CalibrationConfig, b *Bracket, offsets []AlignmentOffset, wf WeightFunc) []image.Point {
	area := overlap(b, offsets)
	if area.Empty() {
		return nil
	}
	n := cfg.Samples

	if cfg.Sampling == SamplingRandom {
		rng := fastrand.RNG{}
		rng.Seed(cfg.Seed)
		seen := map[image.Point]bool{}
		pts := []image.Point{}
		for tries := 0; tries < 50*n && len(pts) < n; tries++ {
			pt := image.Pt(area.Min.X+int(rng.Uint32n(uint32(area.Dx()))), area.Min.Y+int(rng.Uint32n(uint32(area.Dy()))))
			if !seen[pt] && qualifies(b, offsets, wf, pt) {
				pts = append(pts, pt)
			}
			seen[pt] = true
		}
		return pts
	}

	// Lay a grid over the area, making it finer until enough points
	// qualify; then thin them out evenly.
	var pts []image.Point
	for density := 1; density <= 8; density *= 2 {
		want := n * density * density
		nx := int(math.Ceil(math.Sqrt(float64(want) * float64(area.Dx()) / float64(area.Dy()))))
		nx = maxInt(1, minInt(nx, area.Dx()))
		ny := maxInt(1, minInt((want+nx-1)/nx, area.Dy()))

		pts = pts[:0]
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				pt := image.Pt(area.Min.X+(2*i+1)*area.Dx()/(2*nx), area.Min.Y+(2*j+1)*area.Dy()/(2*ny))
				if qualifies(b, offsets, wf, pt) {
					pts = append(pts, pt)
				}
			}
		}
		if len(pts) >= n || nx*ny >= area.Dx()*area.Dy() {
			break
		}
	}

	if len(pts) > n {
		thinned := make([]image.Point, n)
		for k := range thinned {
			thinned[k] = pts[k*len(pts)/n]
		}
		pts = thinned
	}
	return pts
}

// Calibrate recovers a response curve per channel, after Debevec and
// Malik (1997): the unknowns are g at every level plus the log
// irradiance at every sample location, fitted by weighted least squares
// with a second difference smoothness term and g(mid) = 0.
func Calibrate(cfg Config, b *Bracket, offsets []AlignmentOffset) ([]ResponseCurve, error) {
	shape := b.Shape()
	levels := newResponseLevels(shape.Zmax, cfg.Calibration.Levels)
	wfLevels := NewWeightFunc(levels.n - 1)

	samples := selectSamples(cfg.Calibration, b, offsets, NewWeightFunc(shape.Zmax))
	if len(samples) < 2 {
		return nil, &CalibrationError{Channel: -1, Reason: fmt.Sprintf("only %d usable sample location(s)", len(samples))}
	}
	if cfg.Verbosity > 0 {
		cfg.Logger.Printf("Calibrating: %d samples x %d exposures, %d levels\n", len(samples), b.Len(), levels.n)
	}

	curves := make([]ResponseCurve, shape.Channels)
	errs := make([]error, shape.Channels)
	emath.ParallelEach(shape.Channels, cfg.Workers, func(c int) {
		g, err := solveResponse(cfg.Calibration.Lambda, b, offsets, samples, c, levels, wfLevels)
		if err != nil {
			errs[c] = err
			return
		}
		curves[c] = ResponseCurve{Channel: c, G: levels.expand(g)}
	})

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return curves, nil
}

func solveResponse(lambda float64, b *Bracket, offsets []AlignmentOffset, samples []image.Point, c int, levels responseLevels, wf WeightFunc) ([]float64, error) {
	L, nS, P := levels.n, len(samples), b.Len()
	refTime := b.RefTime()

	rows := nS*P + 1 + (L - 2)
	cols := L + nS
	A := mat.NewDense(rows, cols, nil)
	rhs := mat.NewVecDense(rows, nil)
	counts := make([]float64, L)

	k := 0
	for s, pt := range samples {
		for i, e := range b.Exposures {
			z := levels.level(e.At(pt.X+offsets[i].DX, pt.Y+offsets[i].DY, c))
			w := wf.At(z)
			A.Set(k, z, w)
			A.Set(k, L+s, -w)
			rhs.SetVec(k, w*math.Log(e.Time/refTime))
			if w > 0 {
				counts[z]++
			}
			k++
		}
	}

	// Fix the curve's offset
	A.Set(k, L/2, 1)
	k++

	for z := 1; z < L-1; z++ {
		w := lambda * wf.At(z)
		A.Set(k, z-1, w)
		A.Set(k, z, -2*w)
		A.Set(k, z+1, w)
		k++
	}

	distinct := 0
	for _, n := range counts {
		if n > 0 {
			distinct++
		}
	}
	if distinct < 2 {
		return nil, &CalibrationError{Channel: c, Reason: fmt.Sprintf("only %d distinct usable sample value(s)", distinct)}
	}

	var qr mat.QR
	qr.Factorize(A)
	x := mat.NewVecDense(cols, nil)
	if err := qr.SolveVecTo(x, false, rhs); err != nil {
		return nil, &CalibrationError{Channel: c, Reason: "rank-deficient system", Err: err}
	}

	g := make([]float64, L)
	for z := range g {
		g[z] = x.AtVec(z)
		if !emath.IsFinite(g[z]) {
			return nil, &CalibrationError{Channel: c, Reason: fmt.Sprintf("solution has g(%d) = %v", z, g[z])}
		}
	}

	// Enforce a physical (non-decreasing) response, then re-anchor
	for z := range counts {
		counts[z]++
	}
	g = emath.IsotonicIncreasing(g, counts)
	mid := g[L/2]
	for z := range g {
		g[z] -= mid
	}

	return g, nil
}
