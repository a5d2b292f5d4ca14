package amuset

import (
	"math"
	"math/cmplx"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Covariance estimates the time-lagged Koopman matrix over the reduced
// coordinates returned by Build. For every trajectory the source
// frames [start, start+len-lag) are paired with the target frames
// [start+lag, start+len); trajectories shorter than the lag contribute
// no pairs and are skipped, not rejected. The Koopman matrix
//
//	K = inv(C00 + C11) . (C01 + C01.T)
//
// is the symmetrized, time-reversal-regularized estimator. Its
// eigendecomposition is stored sorted by descending real part, and the
// implied timescales are derived from the eigenvalue magnitudes.
func (m *Model) Covariance(coords *mat.Dense, trajLens []int, lagTime int) error {
	if lagTime <= 0 {
		return errors.Wrapf(ErrBadLagTime, "got %d", lagTime)
	}
	rank, total := coords.Dims()
	sum := 0
	for _, n := range trajLens {
		sum += n
	}
	if sum != total {
		return errors.Wrapf(ErrShapeMismatch,
			"%d frames, length table sums to %d", total, sum)
	}

	// x_indices = [pos, pos+len-lag), y_indices = [pos+lag, pos+len)
	var xIdx, yIdx []int
	pos := 0
	for _, n := range trajLens {
		for t := 0; t < n-lagTime; t++ {
			xIdx = append(xIdx, pos+t)
			yIdx = append(yIdx, pos+t+lagTime)
		}
		pos += n
	}

	if len(xIdx) == 0 {
		return errors.Wrapf(ErrSingular, "no frame pairs at lag %d", lagTime)
	}

	x := gatherCols(coords, xIdx)
	y := gatherCols(coords, yIdx)

	// C00 = X.X^T, C11 = Y.Y^T, C01 = X.Y^T
	var c00, c11, c01 mat.Dense
	c00.Mul(x, x.T())
	c11.Mul(y, y.T())
	c01.Mul(x, y.T())

	var lhs, rhs mat.Dense
	lhs.Add(&c00, &c11)
	rhs.Add(&c01, c01.T())
	k := mat.NewDense(rank, rank, nil)
	if err := k.Solve(&lhs, &rhs); err != nil {
		return errors.Wrap(ErrSingular, err.Error())
	}

	var eig mat.Eigen
	if ok := eig.Factorize(k, mat.EigenRight); !ok {
		return errors.Wrap(ErrFactorization, "eigendecomposition did not converge")
	}
	vals := eig.Values(nil)
	var vecs mat.CDense
	eig.VectorsTo(&vecs)

	// Sort by descending real part; break real ties on the imaginary
	// part so conjugate pairs keep a fixed order.
	perm := make([]int, len(vals))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		va, vb := vals[perm[a]], vals[perm[b]]
		if real(va) != real(vb) {
			return real(va) > real(vb)
		}
		return imag(va) > imag(vb)
	})
	evK := make([]complex128, len(vals))
	vrK := mat.NewCDense(rank, rank, nil)
	for i, p := range perm {
		evK[i] = vals[p]
		for r := 0; r < rank; r++ {
			vrK.Set(r, i, vecs.At(r, p))
		}
	}

	m.k = k
	m.evK = evK
	m.vrK = vrK
	m.lagTime = lagTime
	m.timescales = impliedTimescales(evK, lagTime)
	return nil
}

// impliedTimescales scans the sorted eigenvalues from index 1 (the
// leading stationary eigenvalue is always dropped), collecting values
// while the real part stays strictly positive, and maps each to
// -lag / log|ev|. Magnitudes make the timescales real-valued even for
// near-real conjugate pairs.
func impliedTimescales(evK []complex128, lagTime int) []float64 {
	out := make([]float64, 0, len(evK))
	for i := 1; i < len(evK); i++ {
		if real(evK[i]) <= 0 {
			break
		}
		out = append(out, -float64(lagTime)/math.Log(cmplx.Abs(evK[i])))
	}
	return out
}

// gatherCols copies the listed columns, preserving order.
func gatherCols(a *mat.Dense, cols []int) *mat.Dense {
	rows, _ := a.Dims()
	out := mat.NewDense(rows, len(cols), nil)
	for j, c := range cols {
		for i := 0; i < rows; i++ {
			out.Set(i, j, a.At(i, c))
		}
	}
	return out
}
