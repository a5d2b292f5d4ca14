package utils

import (
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var ErrSingular = errors.New("utils: matrix is singular")

// Identity Matrix.
func Eye(n int) *mat.Dense {
	out := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		out.Set(i, i, 1)
	}
	return out
}

// ArgsortDesc returns the permutation that orders vals descending.
// Equivalent to numpy.argsort(vals)[::-1] with a stable tie order.
func ArgsortDesc(vals []float64) []int {
	idx := make([]int, len(vals))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return vals[idx[a]] > vals[idx[b]]
	})
	return idx
}

// InverseC computes the inverse of a square complex matrix through its
// real block embedding. For A = X + iY, the columns P + iQ of inv(A)
// solve
//
//	[X -Y] [P]   [I]
//	[Y  X] [Q] = [0]
//
// which is a single real linear solve of size 2n.
func InverseC(a *mat.CDense) (*mat.CDense, error) {
	n, c := a.Dims()
	if n != c {
		return nil, errors.Errorf("utils: non-square %dx%d matrix", n, c)
	}
	block := mat.NewDense(2*n, 2*n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := a.At(i, j)
			block.Set(i, j, real(v))
			block.Set(i, j+n, -imag(v))
			block.Set(i+n, j, imag(v))
			block.Set(i+n, j+n, real(v))
		}
	}
	rhs := mat.NewDense(2*n, n, nil)
	rhs.Slice(0, n, 0, n).(*mat.Dense).Copy(Eye(n))

	var sol mat.Dense
	if err := sol.Solve(block, rhs); err != nil {
		return nil, errors.Wrap(ErrSingular, err.Error())
	}
	out := mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out.Set(i, j, complex(sol.At(i, j), sol.At(i+n, j)))
		}
	}
	return out, nil
}
