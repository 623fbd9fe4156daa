package bracket

import (
	"math"
	"testing"
)

func knownCurves(channels int) []ResponseCurve {
	curves := []ResponseCurve{}
	for c := 0; c < channels; c++ {
		rc := synthResponse()
		rc.Channel = c
		curves = append(curves, rc)
	}
	return curves
}

func TestFuseShapeAndRange(t *testing.T) {
	exps := []Exposure{}
	for _, tm := range []float64{1.0 / 30, 1.0 / 4, 2} {
		exps = append(exps, synthExposure("x", 40, 30, 3, tm, rampScene(40, 30)))
	}
	b, _ := NewBracket(testConfig(), exps)

	rm, err := Fuse(testConfig(), b, make([]AlignmentOffset, 3), knownCurves(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rm.Width != 40 || rm.Height != 30 || rm.Channels != 3 || len(rm.Pix) != 40*30*3 {
		t.Fatalf("got %dx%dx%d", rm.Width, rm.Height, rm.Channels)
	}
	for i, v := range rm.Pix {
		if !(v >= 0) || math.IsInf(v, 0) {
			t.Fatalf("Pix[%d] = %v", i, v)
		}
	}

	// Radiance follows the scene, once steps are well above quantization
	for i := 20; i < 40*30; i += 20 {
		x0, y0 := (i-20)%40, (i-20)/40
		x1, y1 := i%40, i/40
		if rm.Value(x1, y1, 0) <= rm.Value(x0, y0, 0) {
			t.Errorf("radiance not increasing from (%d,%d) to (%d,%d)", x0, y0, x1, y1)
		}
	}
}

func TestFuseTimeScaleInvariance(t *testing.T) {
	fuse := func(k float64) *RadianceMap {
		exps := []Exposure{}
		for _, tm := range []float64{1.0 / 30, 1.0 / 4, 2} {
			e := synthExposure("x", 16, 16, 3, tm, rampScene(16, 16))
			e.Time *= k
			exps = append(exps, e)
		}
		b, _ := NewBracket(testConfig(), exps)
		rm, err := Fuse(testConfig(), b, make([]AlignmentOffset, 3), knownCurves(3))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return rm
	}

	base := fuse(1)
	for _, k := range []float64{1e-3, 7, 1000} {
		scaled := fuse(k)
		for i := range base.Pix {
			if d := math.Abs(scaled.Pix[i]-base.Pix[i]) / base.Pix[i]; d > 1e-9 {
				t.Fatalf("k=%v: Pix[%d] = %v, want %v", k, i, scaled.Pix[i], base.Pix[i])
			}
		}
		if d := scaled.TimeBase / base.TimeBase; math.Abs(d-k) > 1e-9*k {
			t.Errorf("k=%v: time base ratio %v", k, d)
		}
	}
}

func TestFuseFlatGrayEndToEnd(t *testing.T) {
	t1, t2 := 1.0/125, 1.0/15
	z1, z2 := 64, 191

	cfg := testConfig()
	cfg.Align.Enabled = false
	cfg.Response = knownCurves(3)

	r, err := Run(cfg, []Exposure{
		flatExposure("short", 8, 8, 3, z1, t1),
		flatExposure("long", 8, 8, 3, z2, t2),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g := synthResponse()
	want := math.Exp((g.At(z1) - math.Log(t1) + g.At(z2) - math.Log(t2)) / 2)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			for c := 0; c < 3; c++ {
				if got := r.Radiance.Absolute(x, y, c); math.Abs(got-want) > 1e-9*want {
					t.Fatalf("radiance(%d,%d,%d) = %v, want %v", x, y, c, got, want)
				}
			}
		}
	}
}

func TestFuseAllClippedFallsBack(t *testing.T) {
	b, _ := NewBracket(testConfig(), []Exposure{
		flatExposure("short", 4, 4, 1, 255, 0.5),
		flatExposure("long", 4, 4, 1, 255, 2),
	})
	rm, err := Fuse(testConfig(), b, make([]AlignmentOffset, 2), knownCurves(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Equally far from mid-range, so the shortest exposure wins
	g := synthResponse()
	want := math.Exp(g.At(255) - math.Log(0.5/2))
	if got := rm.Value(1, 1, 0); math.Abs(got-want) > 1e-9*want {
		t.Errorf("radiance = %v, want %v", got, want)
	}
}

func TestFuseExcludesUncoveredPixels(t *testing.T) {
	b, _ := NewBracket(testConfig(), []Exposure{
		flatExposure("short", 10, 10, 1, 100, 1),
		flatExposure("long", 10, 10, 1, 150, 2),
	})
	offsets := []AlignmentOffset{{3, 0}, {0, 0}}
	rm, _ := Fuse(testConfig(), b, offsets, knownCurves(1))

	g := synthResponse()
	wf := NewWeightFunc(255)
	lnShort := g.At(100) - math.Log(0.5)
	lnLong := g.At(150)
	both := math.Exp((wf.At(100)*lnShort + wf.At(150)*lnLong) / (wf.At(100) + wf.At(150)))
	onlyLong := math.Exp(lnLong)

	if got := rm.Value(2, 5, 0); math.Abs(got-both) > 1e-9 {
		t.Errorf("covered pixel: %v, want %v", got, both)
	}
	if got := rm.Value(8, 5, 0); math.Abs(got-onlyLong) > 1e-9 {
		t.Errorf("uncovered pixel: %v, want %v", got, onlyLong)
	}
}
