package bracket

import (
	"errors"
	"math"
	"testing"
)

func TestNewBracketSortsAndPicksReference(t *testing.T) {
	exps := []Exposure{
		flatExposure("b", 4, 4, 3, 100, 1.0/15),
		flatExposure("a", 4, 4, 3, 100, 1.0/125),
		flatExposure("c", 4, 4, 3, 100, 1.0/2),
	}

	b, err := NewBracket(testConfig(), exps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"a", "b", "c"}
	for i, e := range b.Exposures {
		if e.Name != want[i] {
			t.Errorf("exposure %d = %s, want %s", i, e.Name, want[i])
		}
	}
	if b.Ref().Name != "b" {
		t.Errorf("reference = %s, want b", b.Ref().Name)
	}
	if b.Exposures[0].Index != 1 {
		t.Errorf("a has input index %d, want 1", b.Exposures[0].Index)
	}
	if exps[0].Name != "b" {
		t.Errorf("input slice was reordered")
	}
}

func TestNewBracketDropsUnreadable(t *testing.T) {
	bad := flatExposure("bad", 4, 4, 3, 100, 1)
	bad.Pix = bad.Pix[:10]

	exps := []Exposure{flatExposure("a", 4, 4, 3, 100, 1), bad, flatExposure("c", 4, 4, 3, 100, 2)}
	b, err := NewBracket(testConfig(), exps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Len() != 2 {
		t.Errorf("got %d exposures, want 2", b.Len())
	}

	var unreadable *UnreadableExposureError
	if len(b.Warnings) != 1 || !errors.As(b.Warnings[0], &unreadable) || unreadable.Index != 1 {
		t.Errorf("warnings = %v, want one for exposure 1", b.Warnings)
	}
}

func TestNewBracketDropsOddChannelCounts(t *testing.T) {
	exps := []Exposure{
		flatExposure("gray", 4, 4, 1, 100, 1),
		flatExposure("two", 4, 4, 2, 100, 2),
		flatExposure("rgba", 4, 4, 4, 100, 4),
		flatExposure("gray2", 4, 4, 1, 120, 8),
	}
	b, err := NewBracket(testConfig(), exps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Len() != 2 || b.Shape().Channels != 1 {
		t.Errorf("bracket = %s, want the two gray exposures", b)
	}

	dropped := []int{}
	for _, w := range b.Warnings {
		var unreadable *UnreadableExposureError
		if errors.As(w, &unreadable) {
			dropped = append(dropped, unreadable.Index)
		}
	}
	if len(dropped) != 2 || dropped[0] != 1 || dropped[1] != 2 {
		t.Errorf("dropped %v, want [1 2]", dropped)
	}
}

func TestNewBracketErrors(t *testing.T) {
	unreadable := flatExposure("u", 4, 4, 3, 100, 1)
	unreadable.Pix = nil

	tests := []struct {
		name  string
		exps  []Exposure
		check func(error) bool
	}{
		{
			"one exposure",
			[]Exposure{flatExposure("a", 4, 4, 3, 100, 1)},
			func(err error) bool {
				var e *InsufficientInputError
				return errors.As(err, &e) && e.Usable == 1
			},
		},
		{
			"one readable",
			[]Exposure{flatExposure("a", 4, 4, 3, 100, 1), unreadable},
			func(err error) bool {
				var e *InsufficientInputError
				return errors.As(err, &e) && e.Usable == 1 && e.Dropped == 1
			},
		},
		{
			"size mismatch",
			[]Exposure{flatExposure("a", 4, 4, 3, 100, 1), flatExposure("b", 4, 5, 3, 100, 2)},
			func(err error) bool {
				var e *ShapeMismatchError
				return errors.As(err, &e) && e.Index == 1 && e.Got.Height == 5 && e.Want.Height == 4
			},
		},
		{
			"channel mismatch",
			[]Exposure{flatExposure("a", 4, 4, 3, 100, 1), flatExposure("b", 4, 4, 1, 100, 2)},
			func(err error) bool {
				var e *ShapeMismatchError
				return errors.As(err, &e) && e.Got.Channels == 1
			},
		},
		{
			"negative time",
			[]Exposure{flatExposure("a", 4, 4, 3, 100, 1), flatExposure("b", 4, 4, 3, 100, -2)},
			func(err error) bool {
				var e *InvalidExposureTimeError
				return errors.As(err, &e) && e.Index == 1
			},
		},
		{
			"nan time",
			[]Exposure{flatExposure("a", 4, 4, 3, 100, math.NaN()), flatExposure("b", 4, 4, 3, 100, 2)},
			func(err error) bool {
				var e *InvalidExposureTimeError
				return errors.As(err, &e) && e.Index == 0
			},
		},
		{
			"missing time, fail policy",
			[]Exposure{flatExposure("a", 4, 4, 3, 100, 1), flatExposure("b", 4, 4, 3, 100, 0)},
			func(err error) bool {
				var e *MissingExposureError
				return errors.As(err, &e) && e.Index == 1 && e.Name == "b"
			},
		},
	}

	for _, tst := range tests {
		_, err := NewBracket(testConfig(), tst.exps)
		if err == nil || !tst.check(err) {
			t.Errorf("%s: got error %v", tst.name, err)
		}
	}
}

func TestMissingTimesFromLadder(t *testing.T) {
	cfg := testConfig()
	cfg.MissingTimePolicy = MissingTimeLadder

	// A ladder longer than the bracket is truncated
	exps := []Exposure{
		flatExposure("a", 4, 4, 1, 100, 0),
		flatExposure("b", 4, 4, 1, 100, 0),
		flatExposure("c", 4, 4, 1, 100, 0),
	}
	b, err := NewBracket(cfg, exps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, want := range DefaultExposureLadder[:3] {
		if b.Exposures[i].Time != want {
			t.Errorf("exposure %d time %v, want %v", i, b.Exposures[i].Time, want)
		}
	}

	// Known times are left alone
	exps[1].Time = 4
	b, _ = NewBracket(cfg, exps)
	if got := b.Exposures[2]; got.Name != "b" || got.Time != 4 {
		t.Errorf("longest exposure = %s, want b at 4s", got)
	}
}

func TestMissingTimesLadderOverflow(t *testing.T) {
	exps := []Exposure{}
	for i := 0; i < 4; i++ {
		exps = append(exps, flatExposure("x", 4, 4, 1, 100, 0))
	}

	cfg := testConfig()
	cfg.MissingTimePolicy = MissingTimeLadder
	cfg.ExposureLadder = []float64{0.001, 0.01}

	_, err := NewBracket(cfg, exps)
	var missing *MissingExposureError
	if !errors.As(err, &missing) || missing.Index != 2 {
		t.Errorf("fail policy: got %v, want MissingExposureError for exposure 2", err)
	}

	cfg.LadderOverflow = LadderOverflowRepeat
	b, err := NewBracket(cfg, exps)
	if err != nil {
		t.Fatalf("repeat policy: unexpected error: %v", err)
	}
	want := []float64{0.001, 0.01, 0.01, 0.01}
	for i, e := range b.Exposures {
		if e.Time != want[i] {
			t.Errorf("repeat policy: exposure %d time %v, want %v", i, e.Time, want[i])
		}
	}
}

func TestMissingTimesEstimated(t *testing.T) {
	// A linear sensor, so the ratio estimator has something to go on
	linear := func(name string, t float64) Exposure {
		r := NewRaster(32, 32, 1, 255)
		for y := 0; y < 32; y++ {
			for x := 0; x < 32; x++ {
				r.Set(x, y, 0, int(math.Min(255, math.Round(float64(4+x+8*y)*t))))
			}
		}
		return Exposure{Raster: r, Name: name, Time: t}
	}

	exps := []Exposure{linear("a", 0.25), linear("b", 1), linear("c", 4)}
	exps[0].Time, exps[2].Time = 0, 0

	cfg := testConfig()
	cfg.MissingTimePolicy = MissingTimeEstimate
	cfg.FinalizeConfiguration()

	b, err := NewBracket(cfg, exps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]float64{"a": 0.25, "b": 1, "c": 4}
	for _, e := range b.Exposures {
		if math.Abs(math.Log2(e.Time/want[e.Name])) > 0.1 {
			t.Errorf("%s: time %v, want about %v", e.Name, e.Time, want[e.Name])
		}
	}
}
