package bracket

// A WeightFunc gives the confidence in a sample value: a hat peaking at
// the middle of [0, Zmax] and zero at both ends, so clipped samples
// never contribute.
type WeightFunc struct {
	Zmax  int
	table []float64
}

func NewWeightFunc(zmax int) WeightFunc {
	w := WeightFunc{Zmax: zmax, table: make([]float64, zmax+1)}
	zmid := float64(zmax) / 2.0
	for z := 0; z <= zmax; z++ {
		if float64(z) <= zmid {
			w.table[z] = float64(z) / zmid
		} else {
			w.table[z] = float64(zmax-z) / zmid
		}
	}
	return w
}

// At returns the weight of z; values outside [0, Zmax] weigh nothing.
func (w WeightFunc) At(z int) float64 {
	if z < 0 || z > w.Zmax {
		return 0
	}
	return w.table[z]
}

// Table is the weight of every value in [0, Zmax]; don't modify it.
func (w WeightFunc) Table() []float64 { return w.table }
