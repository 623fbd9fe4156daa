package bracket

import (
	"testing"
)

func maskOf(t *testing.T, policy string, exps ...Exposure) *SaturationMask {
	cfg := testConfig()
	cfg.Mask.Channels = policy
	b, err := NewBracket(cfg, exps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return BuildMask(cfg, b, make([]AlignmentOffset, b.Len()))
}

func TestMaskSaturatedAndMidRange(t *testing.T) {
	tests := []struct {
		name   string
		z1, z2 int
		want   uint8
	}{
		{"one saturated, one mid", 255, 128, 1},
		{"both saturated", 255, 255, 0},
		{"both floored", 0, 0, 0},
		{"floored and saturated", 0, 255, 0},
		{"at the ceiling", 250, 255, 0},
		{"just inside the ceiling", 249, 255, 1},
		{"at the floor", 5, 0, 0},
		{"just inside the floor", 6, 0, 1},
	}

	// With floor 0.02 and ceiling 0.98 of 255, inside means (5.1, 249.9)
	for _, tst := range tests {
		m := maskOf(t, MaskAll, flatExposure("a", 3, 3, 3, tst.z1, 1), flatExposure("b", 3, 3, 3, tst.z2, 2))
		if got := m.At(1, 1); got != tst.want {
			t.Errorf("%s: mask = %d, want %d", tst.name, got, tst.want)
		}
	}
}

func TestMaskChannelPolicies(t *testing.T) {
	// Red clipped, green and blue fine, in both exposures
	mixed := func(name string, tm float64) Exposure {
		e := flatExposure(name, 2, 2, 3, 128, tm)
		for i := 0; i < len(e.Pix); i += 3 {
			e.Pix[i] = 255
		}
		return e
	}

	if m := maskOf(t, MaskAll, mixed("a", 1), mixed("b", 2)); m.At(0, 0) != 0 || m.Planes != 1 {
		t.Errorf("all: mask %d with %d planes, want 0 with 1", m.At(0, 0), m.Planes)
	}
	if m := maskOf(t, MaskAny, mixed("a", 1), mixed("b", 2)); m.At(0, 0) != 1 {
		t.Errorf("any: mask %d, want 1", m.At(0, 0))
	}

	m := maskOf(t, MaskEach, mixed("a", 1), mixed("b", 2))
	if m.Planes != 3 {
		t.Fatalf("each: %d planes, want 3", m.Planes)
	}
	for c, want := range []uint8{0, 1, 1} {
		if got := m.AtPlane(1, 1, c); got != want {
			t.Errorf("each: plane %d = %d, want %d", c, got, want)
		}
	}
}

func TestMaskImageAndApply(t *testing.T) {
	m := maskOf(t, MaskAll, flatExposure("a", 2, 1, 1, 255, 1), flatExposure("b", 2, 1, 1, 255, 2))
	m.Pix[1] = 1

	img := m.Image(0)
	if img.GrayAt(0, 0).Y != 0 || img.GrayAt(1, 0).Y != 0xFF {
		t.Errorf("image = %v", img.Pix)
	}
	if cov := m.Coverage(); cov != 0.5 {
		t.Errorf("coverage = %v, want 0.5", cov)
	}

	rm := NewRadianceMap(2, 1, 1, 1)
	rm.Pix[0], rm.Pix[1] = 3, 4
	masked := MaskRadiance(rm, m)
	if masked.Pix[0] != 0 || masked.Pix[1] != 4 {
		t.Errorf("masked radiance = %v, want [0 4]", masked.Pix)
	}
}
