package bracket

import (
	"fmt"
	"math"
)

type rat64 [2]int64

// The sequence of "whole" shutter speeds; not quite mathematical.
var shutterSpeeds = []rat64{
	{1, 8000},
	{1, 4000},
	{1, 2000},
	{1, 1000},
	{1, 500},
	{1, 250},
	{1, 125},
	{1, 60},
	{1, 30},
	{1, 15},
	{1, 8},
	{1, 4},
	{1, 2},
	{1, 1},
	{2, 1},
	{4, 1},
	{8, 1},
	{15, 1},
	{30, 1},
	{60, 1},
}

func (r rat64) Float() float64 { return float64(r[0]) / float64(r[1]) }

func (r rat64) String() string {
	if r[1] == 1 {
		return fmt.Sprintf("%ds", r[0])
	}
	return fmt.Sprintf("%d/%d", r[0], r[1])
}

// closestShutterSpeed snaps t to the nearest whole shutter speed, in
// stops. It reports false if nothing is within a third of a stop.
func closestShutterSpeed(t float64) (rat64, bool) {
	best, bestStops := shutterSpeeds[0], math.Inf(1)
	for _, ss := range shutterSpeeds {
		if d := math.Abs(math.Log2(t / ss.Float())); d < bestStops {
			best, bestStops = ss, d
		}
	}
	return best, bestStops < 1.0/3
}

// ShutterString renders an exposure time the way a camera would.
func ShutterString(t float64) string {
	if !(t > 0) {
		return "?"
	}
	if ss, ok := closestShutterSpeed(t); ok && math.Abs(ss.Float()-t) < 0.05*t {
		return ss.String()
	}
	return fmt.Sprintf("%.4gs", t)
}

// An ExposureValue is how a frame was shot, as found in its EXIF data.
// Only the ratio of times inside one bracket matters for fusion; the
// EV is informational, and lets a loader cross-check a bracket shot at
// a fixed aperture and ISO.
type ExposureValue struct {
	ISO     int64
	FNumber float64
	Time    float64 // seconds
}

// EV is the ISO 100 exposure value, log2(N^2/t) adjusted for ISO.
func (ev ExposureValue) EV() float64 {
	if !(ev.Time > 0) || !(ev.FNumber > 0) {
		return math.NaN()
	}
	e := math.Log2(ev.FNumber * ev.FNumber / ev.Time)
	if ev.ISO > 0 {
		e -= math.Log2(float64(ev.ISO) / 100.0)
	}
	return e
}

func (ev ExposureValue) String() string {
	return fmt.Sprintf("f/%.1f, %s, ISO%d, EV %.1f", ev.FNumber, ShutterString(ev.Time), ev.ISO, ev.EV())
}
