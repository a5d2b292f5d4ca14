package amuset

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/seechin/amuset/basis"
)

// DoesBasisOverflow reports whether the outer-product expansion of
// list exceeds MaxRank before the last dimension is reached. The check
// is advisory: building still works, but truncation will then discard
// most of the expanded basis. Always false when MaxRank <= 0.
func (m *Model) DoesBasisOverflow(list basis.List) bool {
	if m.maxRank <= 0 || len(list) == 0 {
		return false
	}
	prod := 1
	for _, dim := range list[:len(list)-1] {
		prod *= len(dim) + 1
	}
	return prod > m.maxRank
}

// buildOuter expands the basis feature-by-feature via elementwise
// outer products over the time axis. With MaxRank set, every expanded
// intermediate is SVD-compressed before the next dimension is folded
// in: in fitting mode a new layer is recorded, in apply mode the layer
// recorded at the same step is replayed. The initial single all-ones
// row needs no compression, so a fit over d dimensions records d-1
// intra-expansion layers.
func (m *Model) buildOuter(list basis.List, data *mat.Dense, fitting bool) (*mat.Dense, error) {
	_, nFrames := data.Dims()
	outer := mat.NewDense(1, nFrames, nil)
	for t := 0; t < nFrames; t++ {
		outer.Set(0, t, 1)
	}

	layerIdx := 0
	for il := range list {
		if m.maxRank > 0 && il > 0 {
			if fitting {
				lyr, sorted, err := compress(outer)
				if err != nil {
					return nil, errors.Wrapf(err, "amuset: compressing before dimension %d", il)
				}
				m.layers = append(m.layers, lyr)
				outer = sorted
			} else {
				if layerIdx >= len(m.layers)-1 {
					return nil, errors.Wrapf(ErrShapeMismatch,
						"amuset: no compression layer recorded for dimension %d", il)
				}
				replayed, err := applyLayer(m.layers[layerIdx], outer)
				if err != nil {
					return nil, errors.Wrapf(err, "amuset: replaying layer %d", layerIdx)
				}
				outer = replayed
			}
			layerIdx++
			if rows, _ := outer.Dims(); rows > m.maxRank {
				outer = truncRows(outer, m.maxRank)
			}
		}

		// Local expansion of dimension il: the constant row, then one
		// Gaussian response row per basis function.
		// exp(-(x - mean)^2 / (2 * sigma^2))
		width := len(list[il]) + 1
		local := mat.NewDense(width, nFrames, nil)
		x := data.RawRowView(il)
		ones := local.RawRowView(0)
		for t := range ones {
			ones[t] = 1
		}
		for j, g := range list[il] {
			row := local.RawRowView(j + 1)
			denom := 2 * g.Sigma * g.Sigma
			for t := range row {
				d := x[t] - g.Mean
				row[t] = math.Exp(-d * d / denom)
			}
		}

		// outer[i] * local[j] lands at row i*width+j.
		rows, _ := outer.Dims()
		next := mat.NewDense(rows*width, nFrames, nil)
		for i := 0; i < rows; i++ {
			src := outer.RawRowView(i)
			for j := 0; j < width; j++ {
				bas := local.RawRowView(j)
				dst := next.RawRowView(i*width + j)
				for t := range dst {
					dst[t] = src[t] * bas[t]
				}
			}
		}
		outer = next
	}
	return outer, nil
}

// applyLayer replays a recorded compression:
// diag(1/s) . u.T . outer, rows reordered by the stored permutation.
func applyLayer(l layer, outer *mat.Dense) (*mat.Dense, error) {
	uRows, _ := l.u.Dims()
	oRows, oCols := outer.Dims()
	if oRows != uRows {
		return nil, errors.Wrapf(ErrShapeMismatch,
			"outer has %d rows, recorded transform expects %d", oRows, uRows)
	}
	var ut mat.Dense
	ut.Mul(l.u.T(), outer)
	out := mat.NewDense(len(l.perm), oCols, nil)
	for i, p := range l.perm {
		src := ut.RawRowView(p)
		dst := out.RawRowView(i)
		scale := 1.0 / l.s[p]
		for t := range dst {
			dst[t] = scale * src[t]
		}
	}
	return out, nil
}
