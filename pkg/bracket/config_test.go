package bracket

import (
	"errors"
	"image"
	"math"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewConfig()
	if err := cfg.FinalizeConfiguration(); err != nil {
		t.Fatalf("default config: %v", err)
	}
	if cfg.Workers < 1 {
		t.Errorf("workers = %d", cfg.Workers)
	}
}

func TestConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		field  string
		modify func(*Config)
	}{
		{"missingtimepolicy", func(c *Config) { c.MissingTimePolicy = "guess" }},
		{"ladderoverflow", func(c *Config) { c.LadderOverflow = "wrap" }},
		{"exposureladder", func(c *Config) { c.ExposureLadder = []float64{0.01, -1} }},
		{"exposureladder", func(c *Config) { c.ExposureLadder = []float64{math.Inf(1)} }},
		{"align.levels", func(c *Config) { c.Align.Levels = 0 }},
		{"align.searchradius", func(c *Config) { c.Align.SearchRadius = -1 }},
		{"align.maxdisagreement", func(c *Config) { c.Align.MaxDisagreement = 0 }},
		{"align.failurepolicy", func(c *Config) { c.Align.FailurePolicy = "panic" }},
		{"calibration.samples", func(c *Config) { c.Calibration.Samples = 1 }},
		{"calibration.lambda", func(c *Config) { c.Calibration.Lambda = math.NaN() }},
		{"calibration.levels", func(c *Config) { c.Calibration.Levels = 2 }},
		{"calibration.sampling", func(c *Config) { c.Calibration.Sampling = "sobol" }},
		{"mask", func(c *Config) { c.Mask.Floor, c.Mask.Ceiling = 0.9, 0.1 }},
		{"mask", func(c *Config) { c.Mask.Ceiling = 1.5 }},
		{"mask.channels", func(c *Config) { c.Mask.Channels = "some" }},
		{"tonemappers", func(c *Config) { c.Tonemappers = []string{"drago", "nosuchthing"} }},
	}

	for _, tst := range tests {
		cfg := NewConfig()
		tst.modify(&cfg)

		var cerr *ConfigError
		if err := cfg.FinalizeConfiguration(); !errors.As(err, &cerr) {
			t.Errorf("%s: got %v, want a ConfigError", tst.field, err)
		} else if cerr.Field != tst.field {
			t.Errorf("got field %q, want %q", cerr.Field, tst.field)
		}
	}
}

func TestConfigFromYaml(t *testing.T) {
	cfg, err := newConfigFromYaml([]byte(`
missingtimepolicy: ladder
exposureladder: [0.001, 0.01, 0.1]
align:
  searchradius: 6
calibration:
  samples: 120
mask:
  channels: each
  apply: true
tonemappers: [mantiuk, fattal02]
mantiuk:
  scale: 0.7
debugpixels:
  - {x: 120, y: 300}
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cfg.FinalizeConfiguration(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.MissingTimePolicy != MissingTimeLadder || len(cfg.ExposureLadder) != 3 {
		t.Errorf("ladder config = %s, %v", cfg.MissingTimePolicy, cfg.ExposureLadder)
	}
	if cfg.Align.SearchRadius != 6 || cfg.Align.Levels != 6 || !cfg.Align.Enabled {
		t.Errorf("align = %+v; want searchradius 6 and the other defaults", cfg.Align)
	}
	if cfg.Calibration.Samples != 120 || cfg.Calibration.Lambda != 10 {
		t.Errorf("calibration = %+v", cfg.Calibration)
	}
	if cfg.Mask.Channels != MaskEach || !cfg.Mask.Apply || cfg.Mask.Floor != 0.02 {
		t.Errorf("mask = %+v", cfg.Mask)
	}
	if cfg.Mantiuk.Scale != 0.7 || cfg.Mantiuk.Gamma != 2.2 {
		t.Errorf("mantiuk = %+v", cfg.Mantiuk)
	}
	if len(cfg.DebugPixels) != 1 || cfg.DebugPixels[0] != image.Pt(120, 300) {
		t.Errorf("debugpixels = %v", cfg.DebugPixels)
	}

	again, err := newConfigFromYaml([]byte(cfg.AsYaml()))
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if len(again.Tonemappers) != 2 || again.Tonemappers[1] != "fattal02" {
		t.Errorf("reparsed tonemappers = %v", again.Tonemappers)
	}
}

func TestGetTonemapper(t *testing.T) {
	cfg := NewConfig()
	for _, name := range Tonemappers {
		op, err := cfg.GetTonemapper(name)
		if err != nil || op == nil {
			t.Errorf("%s: got %v, %v", name, op, err)
		}
	}
	if op, err := cfg.GetTonemapper("all"); op != nil || err != nil {
		t.Errorf("all: got %v, %v", op, err)
	}
	if _, err := cfg.GetTonemapper("gimp"); err == nil {
		t.Errorf("unknown name: no error")
	}
	if names := expandTonemappers([]string{"all"}); len(names) != len(Tonemappers) {
		t.Errorf("all expanded to %v", names)
	}
}
