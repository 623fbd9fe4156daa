package bracket

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// An ExposureTimeEstimator supplies times for exposures that arrived
// without one.
type ExposureTimeEstimator interface {
	// EstimateTimes returns a time for every exposure. Entries for
	// exposures that already have a time are ignored by the caller.
	EstimateTimes(exps []Exposure) ([]float64, error)
}

// RatioEstimator assumes a roughly linear sensor. Exposures are ordered
// by mean brightness, and the time ratio between neighbours is the ratio
// of their summed samples over pixels well exposed in both. The chain is
// anchored on an exposure with a known time; if there is none, the
// middle exposure is taken to be one second long.
type RatioEstimator struct {
	Low, High float64 // well exposed band, as fractions of Zmax; default 0.05, 0.95
}

func (re RatioEstimator) EstimateTimes(exps []Exposure) ([]float64, error) {
	if len(exps) == 0 {
		return nil, nil
	}
	low, high := re.Low, re.High
	if !(high > low) {
		low, high = 0.05, 0.95
	}
	zmax := float64(exps[0].Zmax)
	zlo, zhi := int(math.Ceil(low*zmax)), int(math.Floor(high*zmax))

	means := make([]float64, len(exps))
	vals := make([]float64, len(exps[0].Pix))
	for i, e := range exps {
		for j, z := range e.Pix {
			vals[j] = float64(z)
		}
		means[i] = stat.Mean(vals, nil)
	}
	order := make([]int, len(exps))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return means[order[a]] < means[order[b]] })

	logT := make([]float64, len(exps))
	for k := 1; k < len(order); k++ {
		a, b := exps[order[k-1]], exps[order[k]]
		sumA, sumB := 0.0, 0.0
		for i := 0; i < len(a.Pix); i += a.Channels {
			if !wellExposed(a.Pix[i:i+a.Channels], zlo, zhi) || !wellExposed(b.Pix[i:i+b.Channels], zlo, zhi) {
				continue
			}
			for c := 0; c < a.Channels; c++ {
				sumA += float64(a.Pix[i+c])
				sumB += float64(b.Pix[i+c])
			}
		}
		if sumA == 0 || sumB == 0 {
			return nil, fmt.Errorf("'%s' and '%s' share no well exposed pixels", a.Name, b.Name)
		}
		logT[order[k]] = logT[order[k-1]] + math.Log(sumB/sumA)
	}

	offset := -logT[order[len(order)/2]]
	for i, e := range exps {
		if e.Time > 0 {
			offset = math.Log(e.Time) - logT[i]
			break
		}
	}

	times := make([]float64, len(exps))
	for i := range times {
		times[i] = math.Exp(logT[i] + offset)
	}
	return times, nil
}

func wellExposed(px []uint16, zlo, zhi int) bool {
	for _, z := range px {
		if int(z) < zlo || int(z) > zhi {
			return false
		}
	}
	return true
}
