package bracket

import (
	"fmt"
	"sort"

	"github.com/abworrall/bracket-hdr/pkg/emath"
)

// UnreadableExposureError is a warning for an exposure whose buffer does
// not match its geometry, or whose channel count is neither 1 nor 3; the
// exposure is dropped.
type UnreadableExposureError struct {
	Index int
	Name  string
}

func (e *UnreadableExposureError) Error() string {
	return fmt.Sprintf("exposure %d '%s': unreadable, dropped", e.Index, e.Name)
}

// A Bracket is the validated, time-sorted set of exposures for one scene.
type Bracket struct {
	Exposures []Exposure // ascending exposure time; stable for equal times
	Reference int        // index into Exposures of the reference frame
	Warnings  []error
}

func (b *Bracket) Shape() Shape     { return b.Exposures[0].Shape() }
func (b *Bracket) Ref() Exposure    { return b.Exposures[b.Reference] }
func (b *Bracket) RefTime() float64 { return b.Exposures[b.Reference].Time }
func (b *Bracket) Len() int         { return len(b.Exposures) }

func (b *Bracket) String() string {
	s := fmt.Sprintf("Bracket %s [\n", b.Shape())
	for i, e := range b.Exposures {
		mark := " "
		if i == b.Reference {
			mark = "*"
		}
		s += fmt.Sprintf(" %s%s\n", mark, e)
	}
	return s + "]"
}

// NewBracket validates the exposures and puts them in order. Unreadable
// exposures are dropped with a warning; missing times are resolved per
// cfg.MissingTimePolicy. The input slice is not modified.
func NewBracket(cfg Config, exposures []Exposure) (*Bracket, error) {
	b := &Bracket{}

	var want Shape
	for i, e := range exposures {
		e.Index = i
		if !e.Readable() {
			b.Warnings = append(b.Warnings, &UnreadableExposureError{Index: i, Name: e.Name})
			continue
		}

		if len(b.Exposures) == 0 {
			want = e.Shape()
		} else if e.Shape() != want {
			return nil, &ShapeMismatchError{Index: i, Name: e.Name, Want: want, Got: e.Shape()}
		}

		if e.Time < 0 || !emath.IsFinite(e.Time) {
			return nil, &InvalidExposureTimeError{Index: i, Name: e.Name, Time: e.Time}
		}

		b.Exposures = append(b.Exposures, e)
	}

	if len(b.Exposures) < 2 {
		return nil, &InsufficientInputError{Usable: len(b.Exposures), Dropped: len(exposures) - len(b.Exposures), Stage: "registry"}
	}

	if err := b.resolveMissingTimes(cfg); err != nil {
		return nil, err
	}

	sort.SliceStable(b.Exposures, func(i, j int) bool { return b.Exposures[i].Time < b.Exposures[j].Time })
	b.Reference = len(b.Exposures) / 2

	return b, nil
}

func (b *Bracket) resolveMissingTimes(cfg Config) error {
	missing := []int{}
	for i, e := range b.Exposures {
		if e.Time == 0 {
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	switch cfg.MissingTimePolicy {
	case MissingTimeLadder:
		for _, i := range missing {
			t, err := ladderTime(cfg, i)
			if err != nil {
				e := b.Exposures[i]
				return &MissingExposureError{Index: e.Index, Name: e.Name, Reason: err.Error()}
			}
			b.Exposures[i].Time = t
		}

	case MissingTimeEstimate:
		estimator := cfg.Estimator
		if estimator == nil {
			estimator = RatioEstimator{}
		}
		times, err := estimator.EstimateTimes(b.Exposures)
		if err != nil {
			e := b.Exposures[missing[0]]
			return &MissingExposureError{Index: e.Index, Name: e.Name, Reason: fmt.Sprintf("estimate: %v", err)}
		}
		for _, i := range missing {
			if t := times[i]; !(t > 0) || !emath.IsFinite(t) {
				e := b.Exposures[i]
				return &MissingExposureError{Index: e.Index, Name: e.Name, Reason: fmt.Sprintf("estimated time %v", t)}
			}
			b.Exposures[i].Time = times[i]
		}

	default:
		e := b.Exposures[missing[0]]
		return &MissingExposureError{Index: e.Index, Name: e.Name, Reason: "policy is fail"}
	}

	return nil
}

// ladderTime is the ladder entry for the i'th usable exposure, in input
// order. A ladder longer than the bracket is truncated; a shorter one
// either fails or repeats its last entry.
func ladderTime(cfg Config, i int) (float64, error) {
	ladder := cfg.ExposureLadder
	if len(ladder) == 0 {
		return 0, fmt.Errorf("exposure ladder is empty")
	} else if i < len(ladder) {
		return ladder[i], nil
	} else if cfg.LadderOverflow == LadderOverflowRepeat {
		return ladder[len(ladder)-1], nil
	}
	return 0, fmt.Errorf("exposure ladder has %d entries, no entry for exposure #%d", len(ladder), i)
}
