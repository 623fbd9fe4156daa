package bracket

import (
	"fmt"
	"image"
	"log"
	"os"
	"runtime"

	"github.com/klauspost/cpuid"
	"gopkg.in/yaml.v2"

	"github.com/abworrall/bracket-hdr/pkg/emath"
	"github.com/abworrall/bracket-hdr/pkg/tonemap"
)

/* Example config file ...

verbosity: 1
missingtimepolicy: ladder
exposureladder: [0.000125, 0.001, 0.008, 0.0667, 0.5]
align:
  enabled: true
  searchradius: 6
calibration:
  samples: 120
  lambda: 10
tonemappers: [drago, mantiuk]
mantiuk:
  gamma: 2.2
  scale: 0.7
  saturation: 1.2
  gain: 3
debugpixels:
  - {x: 120, y: 300}

*/

// A Logger receives progress and warning messages; a *log.Logger, such
// as the one zap.NewStdLog returns, fits.
type Logger interface {
	Printf(format string, v ...interface{})
}

const (
	MissingTimeFail     = "fail"
	MissingTimeLadder   = "ladder"
	MissingTimeEstimate = "estimate"

	LadderOverflowFail   = "fail"
	LadderOverflowRepeat = "repeat"

	AlignFailZero = "zero"
	AlignFailDrop = "drop"

	SamplingGrid   = "grid"
	SamplingRandom = "random"

	MaskAll  = "all"
	MaskAny  = "any"
	MaskEach = "each"
)

// DefaultExposureLadder is the ladder used for exposures without a time,
// in seconds, shortest first.
var DefaultExposureLadder = []float64{1.0 / 8000, 1.0 / 1000, 1.0 / 125, 1.0 / 15, 1.0 / 2}

type AlignConfig struct {
	Enabled         bool
	Levels          int     // pyramid levels, including full resolution
	SearchRadius    int     // search window at the coarsest level, in pixels
	ExcludeRange    int     // gray levels either side of the median that are ignored
	MaxDisagreement float64 // an offset that leaves more bits than this differing has failed
	FailurePolicy   string  // zero, drop
}

type CalibrationConfig struct {
	Samples  int     // number of pixel locations
	Lambda   float64 // smoothness weight
	Levels   int     // max distinct levels solved for; deeper rasters are binned
	Sampling string  // grid, random
	Seed     uint32  // for random sampling
}

// MaskConfig thresholds are fractions of Zmax; a sample is well exposed
// if it lies strictly between them.
type MaskConfig struct {
	Floor    float64
	Ceiling  float64
	Channels string // all, any, each
	Apply    bool   // zero the radiance of unmarked pixels before tone mapping
}

type Config struct {
	Verbosity int
	Workers   int

	MissingTimePolicy string    // fail, ladder, estimate
	ExposureLadder    []float64 // seconds, shortest first
	LadderOverflow    string    // fail, repeat

	Align       AlignConfig
	Calibration CalibrationConfig
	Mask        MaskConfig

	Tonemappers []string
	Drago       tonemap.DragoParams
	Reinhard    tonemap.ReinhardParams
	Mantiuk     tonemap.MantiukParams

	DebugPixels []image.Point // reference-frame pixels to dump as the pipeline runs
	DebugDir    string        // if set, operators that can dump intermediate images put them here

	// Not loadable from yaml
	Logger    Logger                `yaml:"-"`
	Response  []ResponseCurve       `yaml:"-"` // a known curve per channel; skips calibration
	Estimator ExposureTimeEstimator `yaml:"-"` // for the estimate policy
}

func NewConfig() Config {
	return Config{
		Workers: defaultWorkers(),

		MissingTimePolicy: MissingTimeFail,
		ExposureLadder:    append([]float64{}, DefaultExposureLadder...),
		LadderOverflow:    LadderOverflowFail,

		Align: AlignConfig{
			Enabled:         true,
			Levels:          6,
			SearchRadius:    4,
			ExcludeRange:    4,
			MaxDisagreement: 0.35,
			FailurePolicy:   AlignFailZero,
		},
		Calibration: CalibrationConfig{
			Samples:  70,
			Lambda:   10,
			Levels:   256,
			Sampling: SamplingGrid,
			Seed:     1,
		},
		Mask: MaskConfig{
			Floor:    0.02,
			Ceiling:  0.98,
			Channels: MaskAll,
		},

		Tonemappers: []string{"drago", "reinhard", "mantiuk"},
		Drago:       tonemap.DefaultDragoParams(),
		Reinhard:    tonemap.DefaultReinhardParams(),
		Mantiuk:     tonemap.DefaultMantiukParams(),

		Logger: log.Default(),
	}
}

// defaultWorkers is the number of logical cores, if cpuid can tell.
func defaultWorkers() int {
	if n := cpuid.CPU.LogicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

func newConfigFromYaml(b []byte) (Config, error) {
	c := NewConfig()
	err := yaml.Unmarshal(b, &c)
	return c, err
}

// LoadConfig reads a yaml file over the defaults, and finalizes it.
func LoadConfig(filename string) (Config, error) {
	contents, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("read '%s': %v", filename, err)
	}
	c, err := newConfigFromYaml(contents)
	if err != nil {
		return c, fmt.Errorf("parse '%s': %v", filename, err)
	}
	return c, c.FinalizeConfiguration()
}

func (c Config) AsYaml() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("# can't marshal config yaml: %v\n", err)
	}
	return string(b)
}

// FinalizeConfiguration fills in anything left unset, and checks every
// value is in range.
func (c *Config) FinalizeConfiguration() error {
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	if c.Workers < 1 {
		c.Workers = defaultWorkers()
	}
	if c.MissingTimePolicy == "" {
		c.MissingTimePolicy = MissingTimeFail
	}
	if c.LadderOverflow == "" {
		c.LadderOverflow = LadderOverflowFail
	}
	if c.Align.FailurePolicy == "" {
		c.Align.FailurePolicy = AlignFailZero
	}
	if c.Calibration.Sampling == "" {
		c.Calibration.Sampling = SamplingGrid
	}
	if c.Mask.Channels == "" {
		c.Mask.Channels = MaskAll
	}

	switch c.MissingTimePolicy {
	case MissingTimeFail, MissingTimeLadder:
	case MissingTimeEstimate:
		if c.Estimator == nil {
			c.Estimator = RatioEstimator{}
		}
	default:
		return &ConfigError{"missingtimepolicy", fmt.Sprintf("'%s' not one of fail, ladder, estimate", c.MissingTimePolicy)}
	}

	switch c.LadderOverflow {
	case LadderOverflowFail, LadderOverflowRepeat:
	default:
		return &ConfigError{"ladderoverflow", fmt.Sprintf("'%s' not one of fail, repeat", c.LadderOverflow)}
	}
	for i, t := range c.ExposureLadder {
		if !(t > 0) || !emath.IsFinite(t) {
			return &ConfigError{"exposureladder", fmt.Sprintf("entry %d (%v) is not a positive time", i, t)}
		}
	}

	if c.Align.Levels < 1 {
		return &ConfigError{"align.levels", "must be at least 1"}
	} else if c.Align.SearchRadius < 0 {
		return &ConfigError{"align.searchradius", "must not be negative"}
	} else if c.Align.ExcludeRange < 0 {
		return &ConfigError{"align.excluderange", "must not be negative"}
	} else if !(c.Align.MaxDisagreement > 0 && c.Align.MaxDisagreement <= 1) {
		return &ConfigError{"align.maxdisagreement", "must be in (0,1]"}
	}
	switch c.Align.FailurePolicy {
	case AlignFailZero, AlignFailDrop:
	default:
		return &ConfigError{"align.failurepolicy", fmt.Sprintf("'%s' not one of zero, drop", c.Align.FailurePolicy)}
	}

	if c.Calibration.Samples < 2 {
		return &ConfigError{"calibration.samples", "need at least 2"}
	} else if c.Calibration.Lambda < 0 || !emath.IsFinite(c.Calibration.Lambda) {
		return &ConfigError{"calibration.lambda", "must be finite and not negative"}
	} else if c.Calibration.Levels < 3 || c.Calibration.Levels > 65536 {
		return &ConfigError{"calibration.levels", "must be in [3,65536]"}
	}
	switch c.Calibration.Sampling {
	case SamplingGrid, SamplingRandom:
	default:
		return &ConfigError{"calibration.sampling", fmt.Sprintf("'%s' not one of grid, random", c.Calibration.Sampling)}
	}

	if !(c.Mask.Floor >= 0 && c.Mask.Floor < c.Mask.Ceiling && c.Mask.Ceiling <= 1) {
		return &ConfigError{"mask", fmt.Sprintf("need 0 <= floor < ceiling <= 1, got %v, %v", c.Mask.Floor, c.Mask.Ceiling)}
	}
	switch c.Mask.Channels {
	case MaskAll, MaskAny, MaskEach:
	default:
		return &ConfigError{"mask.channels", fmt.Sprintf("'%s' not one of all, any, each", c.Mask.Channels)}
	}

	for _, name := range c.Tonemappers {
		if _, err := c.GetTonemapper(name); err != nil {
			return &ConfigError{"tonemappers", err.Error()}
		}
	}

	return nil
}
