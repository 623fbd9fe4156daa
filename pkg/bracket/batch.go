package bracket

import (
	"github.com/abworrall/bracket-hdr/pkg/emath"
)

// A Scene is one bracket to be processed independently of any other.
type Scene struct {
	Name      string
	Exposures []Exposure
}

type SceneResult struct {
	Name   string
	Result *Result
	Err    error
}

// RunScenes processes each scene in its own run, at most maxParallel at
// once. Runs share nothing but the (read-only) config, and one failing
// scene doesn't stop the others. Results come back in scene order.
func RunScenes(cfg Config, scenes []Scene, maxParallel int) []SceneResult {
	results := make([]SceneResult, len(scenes))

	// Split the workers between the concurrent runs
	if maxParallel < 1 {
		maxParallel = 1
	}
	if cfg.Workers > maxParallel {
		cfg.Workers /= maxParallel
	}

	emath.ParallelEach(len(scenes), maxParallel, func(i int) {
		r, err := Run(cfg, scenes[i].Exposures)
		results[i] = SceneResult{Name: scenes[i].Name, Result: r, Err: err}
	})

	return results
}

// Rough working set of a run, per pixel and channel: the radiance map,
// its masked copy, and the float planes the tone mappers work in.
const floatPlanesPerRun = 6

// SceneBytes estimates the memory one run of the scene needs.
func SceneBytes(s Scene, nTonemappers int) uint64 {
	var n uint64
	for _, e := range s.Exposures {
		n += uint64(len(e.Pix)) * 2
	}
	if len(s.Exposures) > 0 {
		e := s.Exposures[0]
		pixels := uint64(e.Width * e.Height)
		n += pixels * uint64(e.Channels) * 8 * floatPlanesPerRun
		n += pixels * 4 * uint64(nTonemappers)
	}
	return n
}

// MaxParallel is how many scenes can run at once within a memory budget
// (in bytes), and without more runs than workers. It is always at least
// one, so a scene larger than the budget still gets processed.
func MaxParallel(scenes []Scene, nTonemappers int, budget uint64, workers int) int {
	var largest uint64
	for _, s := range scenes {
		if b := SceneBytes(s, nTonemappers); b > largest {
			largest = b
		}
	}

	n := len(scenes)
	if workers < n {
		n = workers
	}
	if largest > 0 && budget/largest < uint64(n) {
		n = int(budget / largest)
	}
	if n < 1 {
		n = 1
	}
	return n
}
