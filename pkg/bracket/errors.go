package bracket

import (
	"fmt"

	"github.com/abworrall/bracket-hdr/pkg/tonemap"
)

// Shape is the geometry every exposure in a bracket has to share.
type Shape struct {
	Width, Height int
	Channels      int
	Zmax          int
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d (Zmax=%d)", s.Width, s.Height, s.Channels, s.Zmax)
}

// InsufficientInputError means fewer than two usable exposures were left.
type InsufficientInputError struct {
	Usable  int
	Dropped int
	Stage   string
}

func (e *InsufficientInputError) Error() string {
	return fmt.Sprintf("insufficient input after %s: %d usable exposure(s), %d dropped; need at least 2",
		e.Stage, e.Usable, e.Dropped)
}

// ShapeMismatchError names an exposure whose geometry differs from the
// first usable one.
type ShapeMismatchError struct {
	Index int
	Name  string
	Want  Shape
	Got   Shape
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("exposure %d '%s': shape %s, want %s", e.Index, e.Name, e.Got, e.Want)
}

// MissingExposureError means an exposure has no time, and the configured
// policy could not supply one.
type MissingExposureError struct {
	Index  int
	Name   string
	Reason string
}

func (e *MissingExposureError) Error() string {
	return fmt.Sprintf("exposure %d '%s': no exposure time: %s", e.Index, e.Name, e.Reason)
}

// InvalidExposureTimeError is a time that is negative, NaN or infinite.
type InvalidExposureTimeError struct {
	Index int
	Name  string
	Time  float64
}

func (e *InvalidExposureTimeError) Error() string {
	return fmt.Sprintf("exposure %d '%s': invalid exposure time %v", e.Index, e.Name, e.Time)
}

// AlignmentFailure records an exposure whose best offset was implausible,
// or that had no texture to tell candidate offsets apart.
// It is carried as a warning; the policy says what was done about it.
type AlignmentFailure struct {
	Index        int
	Name         string
	Level        int     // pyramid level where the search gave up
	Disagreement float64 // fraction of considered bits that differed
	Bound        float64
	Ambiguous    bool // every candidate scored the same; nothing to lock on to
	Policy       string
}

func (e *AlignmentFailure) Error() string {
	if e.Ambiguous {
		return fmt.Sprintf("exposure %d '%s': alignment failed at level %d (every offset scores %.3f), policy %s",
			e.Index, e.Name, e.Level, e.Disagreement, e.Policy)
	}
	return fmt.Sprintf("exposure %d '%s': alignment failed at level %d (disagreement %.3f > %.3f), policy %s",
		e.Index, e.Name, e.Level, e.Disagreement, e.Bound, e.Policy)
}

// CalibrationError means the response curve for a channel could not be
// recovered from the samples.
type CalibrationError struct {
	Channel int
	Reason  string
	Err     error
}

func (e *CalibrationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("calibration, channel %d: %s: %v", e.Channel, e.Reason, e.Err)
	}
	return fmt.Sprintf("calibration, channel %d: %s", e.Channel, e.Reason)
}

func (e *CalibrationError) Unwrap() error { return e.Err }

// ConfigError is a configuration value outside its allowed range.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// ToneMapRangeError is a NaN or Inf reaching a tone mapper.
type ToneMapRangeError = tonemap.RangeError
