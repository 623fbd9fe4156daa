package emath

// IsotonicIncreasing returns the non-decreasing sequence closest to v in
// the (weighted) least-squares sense, using pool-adjacent-violators. A
// nil w means equal weights; zero weights are treated as tiny.
func IsotonicIncreasing(v, w []float64) []float64 {
	n := len(v)
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	// Each block is a run of indices sharing one pooled value
	type block struct {
		sum, weight float64
		start, end  int
	}
	blocks := make([]block, 0, n)

	for i := 0; i < n; i++ {
		wi := 1.0
		if w != nil {
			wi = w[i]
			if wi <= 0 {
				wi = 1e-9
			}
		}
		blocks = append(blocks, block{sum: v[i] * wi, weight: wi, start: i, end: i})

		for len(blocks) > 1 {
			last := blocks[len(blocks)-1]
			prev := blocks[len(blocks)-2]
			if prev.sum/prev.weight <= last.sum/last.weight {
				break
			}
			merged := block{
				sum:    prev.sum + last.sum,
				weight: prev.weight + last.weight,
				start:  prev.start,
				end:    last.end,
			}
			blocks = append(blocks[:len(blocks)-2], merged)
		}
	}

	for _, b := range blocks {
		mean := b.sum / b.weight
		for i := b.start; i <= b.end; i++ {
			out[i] = mean
		}
	}
	return out
}
