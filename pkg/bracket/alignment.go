package bracket

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/codahale/hdrhistogram"

	"github.com/abworrall/bracket-hdr/pkg/ecolor"
	"github.com/abworrall/bracket-hdr/pkg/emath"
)

// Pyramid levels stop halving before either side drops below this.
const mtbMinDim = 8

// An AlignmentOffset registers an exposure to the reference: reference
// pixel (x,y) corresponds to pixel (x+DX, y+DY) of the exposure.
type AlignmentOffset struct {
	DX, DY int
}

func (o AlignmentOffset) String() string { return fmt.Sprintf("(%+d,%+d)", o.DX, o.DY) }

// ToMatrix maps exposure pixel locations onto reference pixel locations.
func (o AlignmentOffset) ToMatrix() emath.Aff3 {
	return emath.Identity().Translate(float64(-o.DX), float64(-o.DY))
}

// An mtbLevel is one level of a median threshold bitmap pyramid.
type mtbLevel struct {
	w, h      int
	threshold []bool // gray value above the median
	exclusion []bool // gray value far enough from the median to be trusted
}

// grayGrid converts an exposure into 8-bit scale grayscale.
func grayGrid(e Exposure, nWorkers int) emath.FloatGrid {
	g := emath.NewFloatGrid(e.Width, e.Height)
	scale := 255.0 / float64(e.Zmax)
	to8 := func(z int) uint32 { return uint32(float64(z)*scale + 0.5) }

	emath.ParallelRows(e.Height, nWorkers, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			row := g.Row(y)
			for x := 0; x < e.Width; x++ {
				if e.Channels >= 3 {
					row[x] = float64(ecolor.Gray8(to8(e.At(x, y, 0)), to8(e.At(x, y, 1)), to8(e.At(x, y, 2))))
				} else {
					row[x] = float64(to8(e.At(x, y, 0)))
				}
			}
		}
	})

	return g
}

// medianGray finds the median of a grid of 8-bit scale values.
func medianGray(g emath.FloatGrid) float64 {
	h := hdrhistogram.New(1, 256, 3)
	for _, v := range g.Values() {
		h.RecordValue(int64(v + 0.5))
	}
	return float64(h.ValueAtQuantile(50))
}

func newMTBPyramid(gray emath.FloatGrid, levels, excludeRange int) []mtbLevel {
	grids := gray.Pyramid(levels, mtbMinDim)
	pyr := make([]mtbLevel, len(grids))

	for k, g := range grids {
		med := medianGray(g)
		lvl := mtbLevel{
			w:         g.Dx(),
			h:         g.Dy(),
			threshold: make([]bool, len(g.Values())),
			exclusion: make([]bool, len(g.Values())),
		}
		for i, v := range g.Values() {
			lvl.threshold[i] = v > med
			lvl.exclusion[i] = math.Abs(v-med) > float64(excludeRange)
		}
		pyr[k] = lvl
	}

	return pyr
}

// diff counts, over the overlap of the two bitmaps at the given offset,
// the trusted bits and how many of them disagree.
func (ref *mtbLevel) diff(img *mtbLevel, dx, dy int) (int, int) {
	x0, x1 := maxInt(0, -dx), minInt(ref.w, img.w-dx)
	y0, y1 := maxInt(0, -dy), minInt(ref.h, img.h-dy)

	differ, considered := 0, 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			i, j := y*ref.w+x, (y+dy)*img.w+x+dx
			if !ref.exclusion[i] || !img.exclusion[j] {
				continue
			}
			considered++
			if ref.threshold[i] != img.threshold[j] {
				differ++
			}
		}
	}
	return differ, considered
}

// An offsetScore is a candidate offset at one pyramid level.
type offsetScore struct {
	seq        int // position in the candidate list, for tie breaking
	offset     AlignmentOffset
	differ     int
	considered int
}

// disagreement is the fraction of trusted bits that differ; a candidate
// with nothing to compare is as bad as it gets.
func (s offsetScore) disagreement() float64 {
	if s.considered == 0 {
		return 1.0
	}
	return float64(s.differ) / float64(s.considered)
}

// candidateOffsets lists every offset within radius of center, nearest
// first, so that ties resolve towards the smallest move.
func candidateOffsets(center AlignmentOffset, radius int) []AlignmentOffset {
	cands := []AlignmentOffset{}
	for oy := -radius; oy <= radius; oy++ {
		for ox := -radius; ox <= radius; ox++ {
			cands = append(cands, AlignmentOffset{center.DX + ox, center.DY + oy})
		}
	}
	dist := func(o AlignmentOffset) int { return absInt(o.DX-center.DX) + absInt(o.DY-center.DY) }
	sort.SliceStable(cands, func(i, j int) bool { return dist(cands[i]) < dist(cands[j]) })
	return cands
}

// scoreOffsetsConcurrently uses a pool of goroutines to score every
// candidate, and returns the one with the lowest disagreement. The flag
// is set when more than one candidate was scored and they all tied.
func scoreOffsetsConcurrently(ref, img *mtbLevel, cands []AlignmentOffset, nWorkers int) (offsetScore, bool) {
	var wg sync.WaitGroup
	jobsChan := make(chan offsetScore, len(cands))
	resultsChan := make(chan offsetScore, len(cands))

	if nWorkers < 1 {
		nWorkers = 1
	}
	for i := 0; i < nWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobsChan {
				job.differ, job.considered = ref.diff(img, job.offset.DX, job.offset.DY)
				resultsChan <- job
			}
		}()
	}

	for i, o := range cands {
		jobsChan <- offsetScore{seq: i, offset: o}
	}
	close(jobsChan)
	wg.Wait()
	close(resultsChan)

	best := offsetScore{seq: -1}
	flat := len(cands) > 1
	for result := range resultsChan {
		if best.seq < 0 {
			best = result
			continue
		}
		d, bd := result.disagreement(), best.disagreement()
		if d != bd {
			flat = false
		}
		if d < bd || (d == bd && result.seq < best.seq) {
			best = result
		}
	}

	return best, flat
}

// alignPyramids searches coarse to fine: the coarsest level looks within
// SearchRadius (in that level's pixels, capped at a quarter of its size),
// and each finer level doubles the estimate and looks one pixel either
// side. A level whose best candidate is still implausible fails the
// whole search, as does a coarsest level where every candidate ties.
func alignPyramids(cfg AlignConfig, ref, img []mtbLevel, nWorkers int) (AlignmentOffset, offsetScore, int, alignOutcome) {
	top := minInt(len(ref), len(img)) - 1
	est := AlignmentOffset{}
	var best offsetScore

	for lvl := top; lvl >= 0; lvl-- {
		radius := 1
		if lvl == top {
			// Keep at least half of the coarsest level overlapping
			radius = minInt(cfg.SearchRadius, minInt(ref[lvl].w, ref[lvl].h)/4)
		} else {
			est = AlignmentOffset{est.DX * 2, est.DY * 2}
		}

		var flat bool
		best, flat = scoreOffsetsConcurrently(&ref[lvl], &img[lvl], candidateOffsets(est, radius), nWorkers)
		if best.considered == 0 || best.disagreement() > cfg.MaxDisagreement {
			return AlignmentOffset{}, best, lvl, alignImplausible
		}
		if lvl == top && flat {
			return AlignmentOffset{}, best, lvl, alignAmbiguous
		}
		est = best.offset
	}

	return est, best, 0, alignOK
}

type alignOutcome int

const (
	alignOK alignOutcome = iota
	alignImplausible
	alignAmbiguous
)

// Align computes an offset for every exposure in the bracket, relative
// to the reference. Exposures that can't be aligned get a zero offset
// and a failure; applying the failure policy is up to the caller.
func Align(cfg Config, b *Bracket) ([]AlignmentOffset, []*AlignmentFailure) {
	offsets := make([]AlignmentOffset, b.Len())
	failures := []*AlignmentFailure{}
	if !cfg.Align.Enabled {
		return offsets, failures
	}

	refPyr := newMTBPyramid(grayGrid(b.Ref(), cfg.Workers), cfg.Align.Levels, cfg.Align.ExcludeRange)

	for i, e := range b.Exposures {
		if i == b.Reference {
			continue
		}

		pyr := newMTBPyramid(grayGrid(e, cfg.Workers), cfg.Align.Levels, cfg.Align.ExcludeRange)
		offset, score, lvl, outcome := alignPyramids(cfg.Align, refPyr, pyr, cfg.Workers)
		if outcome != alignOK {
			failures = append(failures, &AlignmentFailure{
				Index:        e.Index,
				Name:         e.Name,
				Level:        lvl,
				Disagreement: score.disagreement(),
				Bound:        cfg.Align.MaxDisagreement,
				Ambiguous:    outcome == alignAmbiguous,
				Policy:       cfg.Align.FailurePolicy,
			})
			continue
		}

		offsets[i] = offset
		if cfg.Verbosity > 0 {
			cfg.Logger.Printf(" -- align %s: %s (disagreement %.3f over %d bits)\n", e.Name, offset, score.disagreement(), score.considered)
		}
	}

	return offsets, failures
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func absInt(a int) int {
	if a < 0 {
		return -a
	}
	return a
}
