package amuset

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/seechin/amuset/seq"
	"github.com/seechin/amuset/utils"
)

// CVSelector chooses which collective-variable components Transform
// returns: either an explicit ordered set of component indices, or a
// count n meaning components 1..n. Component 0 is the stationary,
// trivial eigenvector and is excluded by the count convention.
type CVSelector struct {
	count   int
	indices []int
}

// CVCount selects components 1..n.
func CVCount(n int) CVSelector { return CVSelector{count: n} }

// CVIndices selects explicit component indices. Index 0 addresses the
// stationary component.
func CVIndices(indices ...int) CVSelector {
	return CVSelector{indices: append([]int(nil), indices...)}
}

func (s CVSelector) resolve(rank int) ([]int, error) {
	if s.indices == nil {
		if s.count < 1 || s.count >= rank {
			return nil, errors.Wrapf(ErrBadSelector,
				"count %d with rank %d", s.count, rank)
		}
		idx := make([]int, s.count)
		for i := range idx {
			idx[i] = i + 1
		}
		return idx, nil
	}
	for _, i := range s.indices {
		if i < 0 || i >= rank {
			return nil, errors.Wrapf(ErrBadSelector,
				"index %d with rank %d", i, rank)
		}
	}
	return s.indices, nil
}

// Transform applies the fitted model to new trajectories. The
// outer-product expansion is replayed in apply mode using the recorded
// compression layers, the final layer projects onto the reduced
// coordinates, and the selected components are returned per trajectory
// as [n_frames x n_cvs] matrices in input order.
//
// With orthogonalize set, the reduced coordinates are first projected
// through the Koopman right eigenvectors (useRight) or through the
// rows of the inverted eigenvector matrix, i.e. the left eigenvectors.
// Projections are computed in complex arithmetic and the real part is
// returned. Without orthogonalize the raw reduced coordinates are
// sliced directly and no Koopman estimate is required.
func (m *Model) Transform(trajs []*mat.Dense, sel CVSelector, useRight, orthogonalize bool) ([]*mat.Dense, error) {
	if len(m.layers) == 0 || m.rankUsed == 0 {
		return nil, errors.Wrap(ErrNoModel, "amuset: transform before build")
	}
	if orthogonalize && m.vrK == nil {
		return nil, errors.Wrap(ErrNoModel, "amuset: transform before covariance")
	}
	data, lens, err := seq.ToMatrix(trajs)
	if err != nil {
		return nil, errors.Wrap(err, "amuset: converting trajectories")
	}
	if nDim, _ := data.Dims(); nDim != len(m.basisList) {
		return nil, errors.Wrapf(ErrShapeMismatch,
			"%d feature dimensions, model basis has %d", nDim, len(m.basisList))
	}

	outer, err := m.buildOuter(m.basisList, data, false)
	if err != nil {
		return nil, err
	}
	v, err := applyLayer(m.layers[len(m.layers)-1], outer)
	if err != nil {
		return nil, errors.Wrap(err, "amuset: replaying final layer")
	}
	if rows, _ := v.Dims(); m.maxRank > 0 && rows > m.maxRank {
		v = truncRows(v, m.maxRank)
	}
	rows, cols := v.Dims()
	idx, err := sel.resolve(rows)
	if err != nil {
		return nil, err
	}

	var all *mat.Dense
	if orthogonalize {
		// The reduced coordinates are real, so the real part of the
		// complex projection W.v is just Re(W).v.
		var w *mat.Dense
		if useRight {
			w = mat.DenseCopyOf(realPart(m.vrK).T())
		} else {
			inv, err := utils.InverseC(m.vrK)
			if err != nil {
				return nil, errors.Wrap(err, "amuset: inverting eigenvector matrix")
			}
			w = realPart(inv)
		}
		var proj mat.Dense
		proj.Mul(w, v)
		all = mat.NewDense(len(idx), cols, nil)
		for i, p := range idx {
			all.SetRow(i, proj.RawRowView(p))
		}
	} else {
		all = mat.NewDense(len(idx), cols, nil)
		for i, p := range idx {
			all.SetRow(i, v.RawRowView(p))
		}
	}
	return seq.ToTrajs(all, lens)
}

func realPart(a *mat.CDense) *mat.Dense {
	rows, cols := a.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, real(a.At(i, j)))
		}
	}
	return out
}
