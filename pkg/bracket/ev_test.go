package bracket

import (
	"math"
	"testing"
)

func TestShutterString(t *testing.T) {
	tests := []struct {
		t    float64
		want string
	}{
		{1.0 / 125, "1/125"},
		{1.0 / 8000, "1/8000"},
		{0.0667, "1/15"},
		{0.5, "1/2"},
		{1, "1s"},
		{30, "30s"},
		{0.003, "0.003s"},
		{0, "?"},
		{math.NaN(), "?"},
	}

	for _, tst := range tests {
		if got := ShutterString(tst.t); got != tst.want {
			t.Errorf("ShutterString(%v) = %q, want %q", tst.t, got, tst.want)
		}
	}
}

func TestExposureValue(t *testing.T) {
	tests := []struct {
		ev   ExposureValue
		want float64
	}{
		{ExposureValue{ISO: 100, FNumber: 1, Time: 1}, 0},
		{ExposureValue{ISO: 100, FNumber: 8, Time: 1.0 / 125}, math.Log2(64 * 125)},
		{ExposureValue{ISO: 400, FNumber: 8, Time: 1.0 / 125}, math.Log2(64*125) - 2},
		{ExposureValue{FNumber: 4, Time: 2}, 3},
	}

	for _, tst := range tests {
		if got := tst.ev.EV(); math.Abs(got-tst.want) > 1e-9 {
			t.Errorf("%v: EV = %v, want %v", tst.ev, got, tst.want)
		}
	}

	if ev := (ExposureValue{ISO: 100}).EV(); !math.IsNaN(ev) {
		t.Errorf("EV without a time = %v, want NaN", ev)
	}
}
