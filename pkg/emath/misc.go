package emath

import "math"

// Some functions that only operate on basic types, that are useful

// GammaExpand_F64 applies the sRGB transfer curve to a value in [0,1].
func GammaExpand_F64(f float64) float64 {
	if f <= 0.0031308 {
		return 12.92 * f
	}
	return 1.055*math.Pow(f, 1.0/2.4) - 0.055
}

// Clamp pins v into [lo, hi]; NaN comes back as lo.
func Clamp(v, lo, hi float64) float64 {
	if !(v > lo) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
