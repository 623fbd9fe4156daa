package bracket

import (
	"image"

	"github.com/google/uuid"
	"github.com/mdouchement/hdr"
	"github.com/pkg/errors"
)

// A Result is everything one run produced. Offsets line up with
// Bracket.Exposures.
type Result struct {
	RunID    string
	Bracket  *Bracket
	Offsets  []AlignmentOffset
	Response []ResponseCurve
	Radiance *RadianceMap
	Mask     *SaturationMask
	LDR      map[string]*image.RGBA
	Warnings []error // dropped exposures, alignment failures
}

// prefixLogger tags every line with the run it belongs to, so that
// concurrent runs can share one log.
type prefixLogger struct {
	Logger
	prefix string
}

func (l prefixLogger) Printf(format string, v ...interface{}) {
	l.Logger.Printf("[%s] "+format, append([]interface{}{l.prefix}, v...)...)
}

// Run takes one scene from raw exposures to radiance, mask and tone
// mapped images: registry, alignment, calibration, fusion, masking and
// tone mapping, strictly in that order. Any stage error aborts the run.
func Run(cfg Config, exposures []Exposure) (*Result, error) {
	if err := cfg.FinalizeConfiguration(); err != nil {
		return nil, errors.Wrap(err, "config")
	}

	r := &Result{RunID: uuid.New().String()}
	cfg.Logger = prefixLogger{cfg.Logger, r.RunID[:8]}

	b, err := NewBracket(cfg, exposures)
	if err != nil {
		return nil, errors.Wrap(err, "registry")
	}
	r.Bracket = b
	r.Warnings = append(r.Warnings, b.Warnings...)
	cfg.Logger.Printf("Loaded %s\n", b)

	if err := r.align(cfg); err != nil {
		return nil, errors.Wrap(err, "alignment")
	}

	if len(cfg.Response) > 0 {
		r.Response, err = knownResponse(cfg, b.Shape())
		if err != nil {
			return nil, errors.Wrap(err, "response")
		}
	} else if r.Response, err = Calibrate(cfg, b, r.Offsets); err != nil {
		return nil, errors.Wrap(err, "calibration")
	}
	for _, rc := range r.Response {
		cfg.Logger.Printf(" -- response %s\n", rc)
	}

	if r.Radiance, err = Fuse(cfg, b, r.Offsets, r.Response); err != nil {
		return nil, errors.Wrap(err, "fusion")
	}
	cfg.Logger.Printf("Fused %s\n", r.Radiance)

	r.Mask = BuildMask(cfg, b, r.Offsets)
	cfg.Logger.Printf("Built %s\n", r.Mask)

	var toneInput hdr.Image = r.Radiance
	if cfg.Mask.Apply {
		toneInput = MaskRadiance(r.Radiance, r.Mask)
	}
	if r.LDR, err = Tonemap(cfg, toneInput, cfg.Tonemappers); err != nil {
		return nil, errors.Wrap(err, "tonemap")
	}

	for _, pt := range cfg.DebugPixels {
		if pt.In(b.Ref().Bounds()) {
			cfg.Logger.Printf("%s", NewPixel(pt, b, r))
		}
	}

	for _, w := range r.Warnings {
		cfg.Logger.Printf("warning: %v\n", w)
	}

	return r, nil
}

// align runs the aligner, and applies the failure policy.
func (r *Result) align(cfg Config) error {
	b := r.Bracket
	offsets, failures := Align(cfg, b)

	failed := map[int]bool{}
	for _, f := range failures {
		r.Warnings = append(r.Warnings, f)
		failed[f.Index] = true
	}

	if cfg.Align.FailurePolicy == AlignFailDrop && len(failed) > 0 {
		ref := b.Ref().Index
		kept, keptOffsets := []Exposure{}, []AlignmentOffset{}
		for i, e := range b.Exposures {
			if failed[e.Index] {
				continue
			}
			if e.Index == ref {
				b.Reference = len(kept)
			}
			kept = append(kept, e)
			keptOffsets = append(keptOffsets, offsets[i])
		}
		b.Exposures, offsets = kept, keptOffsets

		if len(b.Exposures) < 2 {
			return &InsufficientInputError{Usable: len(b.Exposures), Dropped: len(failed), Stage: "alignment"}
		}
	}

	r.Offsets = offsets
	return nil
}

// knownResponse checks caller supplied curves fit the bracket.
func knownResponse(cfg Config, shape Shape) ([]ResponseCurve, error) {
	if len(cfg.Response) != shape.Channels {
		return nil, &ConfigError{"response", "need one curve per channel"}
	}
	for _, rc := range cfg.Response {
		if err := rc.Validate(shape.Zmax); err != nil {
			return nil, &ConfigError{"response", err.Error()}
		}
	}
	return cfg.Response, nil
}
