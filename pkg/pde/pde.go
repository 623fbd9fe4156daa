// Package pde solves the Poisson equation Laplace(U) = F on a grid with
// Neumann boundary conditions. It follows pde_fft.cpp from the PFSTMO
// package, with the 2D discrete cosine transforms done by gonum instead
// of a cgo binding to FFTW.
package pde

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/abworrall/bracket-hdr/pkg/emath"
)

// dct2d runs an unnormalized type-I DCT along every row and then every
// column of A. This is FFTW's REDFT00 in both dimensions.
func dct2d(A emath.FloatGrid) emath.FloatGrid {
	width, height := A.Dx(), A.Dy()
	T := A.Copy()

	rowDCT := fourier.NewDCT(width)
	for y := 0; y < height; y++ {
		row := T.Row(y)
		rowDCT.Transform(row, row)
	}

	colDCT := fourier.NewDCT(height)
	col := make([]float64, height)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			col[y] = T.Get(x, y)
		}
		colDCT.Transform(col, col)
		for y := 0; y < height; y++ {
			T.Set(x, y, col[y])
		}
	}

	return T
}

// transformEv2Normal returns T = EVy A EVx^tr; A is modified.
func transformEv2Normal(A emath.FloatGrid) emath.FloatGrid {
	width, height := A.Dx(), A.Dy()

	// The DCT is not exactly the transform we need; scale the input to fix it up
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			A.Set(x, y, A.Get(x, y)*0.25)
		}
	}
	for x := 1; x < width-1; x++ {
		A.Set(x, 0, A.Get(x, 0)*0.5)
		A.Set(x, height-1, A.Get(x, height-1)*0.5)
	}
	for y := 1; y < height-1; y++ {
		A.Set(0, y, A.Get(0, y)*0.5)
		A.Set(width-1, y, A.Get(width-1, y)*0.5)
	}

	return dct2d(A)
}

// transformNormal2Ev returns T = EVy^-1 A (EVx^-1)^tr
func transformNormal2Ev(A emath.FloatGrid) emath.FloatGrid {
	width, height := A.Dx(), A.Dy()
	T := dct2d(A)

	scale := 1.0 / float64((height-1)*(width-1))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			T.Set(x, y, T.Get(x, y)*scale)
		}
	}
	for x := 0; x < width; x++ {
		T.Set(x, 0, T.Get(x, 0)*0.5)
		T.Set(x, height-1, T.Get(x, height-1)*0.5)
	}
	for y := 0; y < height; y++ {
		T.Set(0, y, T.Get(0, y)*0.5)
		T.Set(width-1, y, T.Get(width-1, y)*0.5)
	}

	return T
}

// eigenvalues of the 1D discrete Laplace operator
func lambdas(n int) []float64 {
	v := make([]float64, n)
	for i := 0; i < n; i++ {
		u := math.Sin(float64(i) / float64(2*(n-1)) * math.Pi)
		v[i] = -4.0 * u * u
	}
	return v
}

// makeCompatibleBoundary adjusts the boundary of F so that the Neumann
// problem has a solution.
func makeCompatibleBoundary(F emath.FloatGrid) {
	width, height := F.Dx(), F.Dy()

	sum := 0.0
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			sum += F.Get(x, y)
		}
	}
	for x := 1; x < width-1; x++ {
		sum += 0.5 * (F.Get(x, 0) + F.Get(x, height-1))
	}
	for y := 1; y < height-1; y++ {
		sum += 0.5 * (F.Get(0, y) + F.Get(width-1, y))
	}
	sum += 0.25 * (F.Get(0, 0) + F.Get(0, height-1) + F.Get(width-1, 0) + F.Get(width-1, height-1))

	add := -1.0 * sum / float64(height+width-3)

	for x := 0; x < width; x++ {
		F.Set(x, 0, F.Get(x, 0)+add)
		F.Set(x, height-1, F.Get(x, height-1)+add)
	}
	for y := 1; y < height-1; y++ {
		F.Set(0, y, F.Get(0, y)+add)
		F.Set(width-1, y, F.Get(width-1, y)+add)
	}
}

// Solve returns U with Laplace(U) = F under Neumann boundary conditions.
// If adjustBound is set the boundary of F is first modified so that an
// exact solution exists; otherwise the least-error solution is returned.
// F is modified. The solution is shifted so its maximum is zero, which
// keeps exp(U) in (0,1].
//
// Grids narrower than two pixels in either dimension have no gradients
// to integrate, and come back as all zeros.
func Solve(F emath.FloatGrid, adjustBound bool) emath.FloatGrid {
	width, height := F.Dx(), F.Dy()
	if width < 2 || height < 2 {
		return F.NewFromThis()
	}

	if adjustBound {
		makeCompatibleBoundary(F)
	}

	Ftr := transformNormal2Ev(F)

	// In the eigenvector space the solution is a simple division
	Utr := Ftr.NewFromThis()
	l1 := lambdas(height)
	l2 := lambdas(width)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x == 0 && y == 0 {
				Utr.Set(x, y, 0.0) // any value ok, only adds a const to the solution
			} else {
				Utr.Set(x, y, Ftr.Get(x, y)/(l1[y]+l2[x]))
			}
		}
	}

	U := transformEv2Normal(Utr)

	_, max := U.MinMax()
	vals := U.Values()
	for i := range vals {
		vals[i] -= max
	}

	return U
}

// Gradients returns forward differences of H. The grid is mirrored at
// the far edges, H(N) = H(N-2), which is the boundary Solve assumes.
func Gradients(H emath.FloatGrid) (emath.FloatGrid, emath.FloatGrid) {
	width, height := H.Dx(), H.Dy()
	Gx, Gy := H.NewFromThis(), H.NewFromThis()
	if width < 2 || height < 2 {
		return Gx, Gy
	}

	for y := 0; y < height; y++ {
		yp1 := y + 1
		if yp1 >= height {
			yp1 = height - 2
		}
		for x := 0; x < width; x++ {
			xp1 := x + 1
			if xp1 >= width {
				xp1 = width - 2
			}
			Gx.Set(x, y, H.Get(xp1, y)-H.Get(x, y))
			Gy.Set(x, y, H.Get(x, yp1)-H.Get(x, y))
		}
	}
	return Gx, Gy
}

// Divergence assembles the right hand side for Solve from a gradient
// field built by Gradients (or weighted the same way). The first row and
// column are doubled up, since the solver takes U(-1) = U(1) where zero
// Neumann conditions would take U(-1) = U(0).
func Divergence(Gx, Gy emath.FloatGrid) emath.FloatGrid {
	width, height := Gx.Dx(), Gx.Dy()
	divG := Gx.NewFromThis()

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			val := Gx.Get(x, y) + Gy.Get(x, y)
			if x > 0 {
				val -= Gx.Get(x-1, y)
			} else {
				val += Gx.Get(x, y)
			}
			if y > 0 {
				val -= Gy.Get(x, y-1)
			} else {
				val += Gy.Get(x, y)
			}
			divG.Set(x, y, val)
		}
	}
	return divG
}
