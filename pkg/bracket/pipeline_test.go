package bracket

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"testing"
)

type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) Printf(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, v...))
}

func (l *captureLogger) contains(s string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, s) {
			return true
		}
	}
	return false
}

func blockBracket(seed uint32) []Exposure {
	scene := blockScene(seed)
	return []Exposure{
		shiftedExposure("long", scene, 4, 2, -1),
		shiftedExposure("short", scene, 0.25, -3, 2),
		shiftedExposure("ref", scene, 1, 0, 0),
	}
}

func TestRunEndToEnd(t *testing.T) {
	logger := &captureLogger{}
	cfg := testConfig()
	cfg.Logger = logger
	cfg.Tonemappers = []string{"drago", "reinhard"}
	cfg.DebugPixels = []image.Point{{64, 64}, {500, 500}}

	r, err := Run(cfg, blockBracket(7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(r.RunID) != 36 {
		t.Errorf("run ID %q", r.RunID)
	}
	if r.Bracket.Ref().Name != "ref" || r.Bracket.Exposures[0].Name != "short" {
		t.Errorf("bracket = %s", r.Bracket)
	}

	wantOffsets := []AlignmentOffset{{-3, 2}, {0, 0}, {2, -1}}
	for i, want := range wantOffsets {
		if r.Offsets[i] != want {
			t.Errorf("offset[%d] = %s, want %s", i, r.Offsets[i], want)
		}
	}
	if len(r.Warnings) != 0 {
		t.Errorf("warnings: %v", r.Warnings)
	}

	if len(r.Response) != 3 {
		t.Fatalf("%d response curves", len(r.Response))
	}
	for _, rc := range r.Response {
		if err := rc.Validate(255); err != nil {
			t.Errorf("channel %d: %v", rc.Channel, err)
		}
	}

	if r.Radiance.Width != 128 || r.Radiance.TimeBase != 1 {
		t.Errorf("radiance = %s", r.Radiance)
	}
	if r.Mask.Coverage() < 0.9 {
		t.Errorf("mask = %s; mid-range scene should be nearly all covered", r.Mask)
	}

	for _, name := range cfg.Tonemappers {
		if ldr, exists := r.LDR[name]; !exists || ldr.Bounds() != image.Rect(0, 0, 128, 128) {
			t.Errorf("LDR %s missing or wrong size", name)
		}
	}
	if len(r.LDR) != 2 {
		t.Errorf("%d LDR images, want 2", len(r.LDR))
	}

	if !logger.contains("Pixel @(64,64)") {
		t.Errorf("debug pixel not logged")
	}
	if logger.contains("Pixel @(500,500)") {
		t.Errorf("out of bounds debug pixel was logged")
	}
	if !logger.contains("[" + r.RunID[:8] + "]") {
		t.Errorf("log lines not tagged with the run ID")
	}
}

func TestRunAppliesMask(t *testing.T) {
	cfg := testConfig()
	cfg.Align.Enabled = false
	cfg.Response = knownCurves(1)
	cfg.Mask.Apply = true

	// Left half is clipped in both exposures
	short := flatExposure("short", 8, 4, 1, 100, 1)
	long := flatExposure("long", 8, 4, 1, 160, 2)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			short.Set(x, y, 0, 255)
			long.Set(x, y, 0, 255)
		}
	}

	r, err := Run(cfg, []Exposure{short, long})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Mask.At(1, 1) != 0 || r.Mask.At(6, 1) != 1 {
		t.Errorf("mask = %v", r.Mask.Pix)
	}

	// The unmasked radiance is kept; only the tone mapper sees zeros
	if r.Radiance.Value(1, 1, 0) == 0 {
		t.Errorf("radiance was zeroed in the result")
	}
	if c := r.LDR["drago"].RGBAAt(1, 1); c.R != 0 || c.G != 0 || c.B != 0 {
		t.Errorf("masked pixel tone mapped to %v", c)
	}
}

func TestRunErrors(t *testing.T) {
	cfg := testConfig()
	cfg.Calibration.Samples = 0
	if _, err := Run(cfg, blockBracket(1)); err == nil {
		t.Errorf("bad config: no error")
	}

	var insufficient *InsufficientInputError
	_, err := Run(testConfig(), []Exposure{flatExposure("only", 8, 8, 3, 128, 1)})
	if !errors.As(err, &insufficient) {
		t.Errorf("one exposure: got %v, want InsufficientInputError", err)
	}

	var cerr *CalibrationError
	_, err = Run(testConfig(), []Exposure{
		flatExposure("a", 16, 16, 3, 128, 1),
		flatExposure("b", 16, 16, 3, 128, 2),
	})
	if !errors.As(err, &cerr) {
		t.Errorf("flat scene: got %v, want CalibrationError", err)
	}
}

func TestRunScenes(t *testing.T) {
	logger := &captureLogger{}
	cfg := testConfig()
	cfg.Logger = logger

	scenes := []Scene{
		{Name: "one", Exposures: blockBracket(3)},
		{Name: "broken", Exposures: blockBracket(4)[:1]},
		{Name: "two", Exposures: blockBracket(5)},
	}

	results := RunScenes(cfg, scenes, 2)
	if len(results) != 3 {
		t.Fatalf("%d results", len(results))
	}
	for i, sr := range results {
		if sr.Name != scenes[i].Name {
			t.Errorf("result %d is %s, want %s", i, sr.Name, scenes[i].Name)
		}
	}

	if results[0].Err != nil || results[2].Err != nil {
		t.Errorf("good scenes failed: %v, %v", results[0].Err, results[2].Err)
	}
	if results[1].Err == nil || results[1].Result != nil {
		t.Errorf("broken scene: got %v, %v", results[1].Result, results[1].Err)
	}
	if results[0].Result.RunID == results[2].Result.RunID {
		t.Errorf("scenes share a run ID")
	}
}

func TestMaxParallel(t *testing.T) {
	scene := Scene{Name: "s", Exposures: []Exposure{
		flatExposure("a", 10, 10, 3, 1, 1),
		flatExposure("b", 10, 10, 3, 1, 2),
	}}
	per := SceneBytes(scene, 2)
	if want := uint64(2*300*2 + 300*8*floatPlanesPerRun + 100*4*2); per != want {
		t.Fatalf("SceneBytes = %d, want %d", per, want)
	}

	scenes := []Scene{scene, scene, scene, scene}
	tests := []struct {
		budget  uint64
		workers int
		want    int
	}{
		{per * 100, 16, 4},
		{per * 100, 2, 2},
		{per * 3, 16, 3},
		{per / 2, 16, 1},
		{0, 0, 1},
	}
	for _, tst := range tests {
		if got := MaxParallel(scenes, 2, tst.budget, tst.workers); got != tst.want {
			t.Errorf("budget %d, %d workers: got %d, want %d", tst.budget, tst.workers, got, tst.want)
		}
	}
}
