// Package amuset implements AMUSEt/AMUSEt-TICA: a tensor-train style
// basis expansion of multivariate time series, rank-truncated through
// iterated SVD, with a time-lagged Koopman estimator on the reduced
// coordinates.
package amuset

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/seechin/amuset/basis"
	"github.com/seechin/amuset/seq"
	"github.com/seechin/amuset/utils"
)

var (
	ErrShapeMismatch = errors.New("amuset: input shape mismatch")
	ErrNoModel       = errors.New("amuset: model has no fitted state")
	ErrFactorization = errors.New("amuset: matrix factorization failed")
	ErrSingular      = errors.New("amuset: singular covariance matrix")
	ErrBadLagTime    = errors.New("amuset: lag time must be positive")
	ErrBadSelector   = errors.New("amuset: cv selector out of range")
)

// layer is one recorded SVD compression step: the left singular
// vectors, the singular values, and the permutation that orders the
// values descending. Layers are replayed positionally during
// Transform, so fit and apply share the exact same projections.
type layer struct {
	u    *mat.Dense
	s    []float64
	perm []int
}

// Model is an AMUSEt model. It is built empty, populated by Build and
// Covariance (or Fit, which runs both), and must not be mutated from
// multiple goroutines without external synchronization.
type Model struct {
	maxRank int
	log     *zap.Logger

	basisList  basis.List
	layers     []layer // intra-expansion layers, then one final layer
	trajLens   []int
	rankUsed   int
	k          *mat.Dense
	evK        []complex128
	vrK        *mat.CDense
	lagTime    int
	timescales []float64
}

// Option configures a Model.
type Option func(*Model)

// WithMaxRank bounds the intermediate and final rank of the tensor
// expansion. Values <= 0 disable truncation.
func WithMaxRank(rank int) Option {
	return func(m *Model) { m.maxRank = rank }
}

// WithLogger attaches a logger for advisory diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(m *Model) { m.log = log }
}

func New(opts ...Option) *Model {
	m := &Model{log: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MaxRank reports the configured rank bound.
func (m *Model) MaxRank() int { return m.maxRank }

// Rank reports the number of reduced coordinates retained by the last
// Build.
func (m *Model) Rank() int { return m.rankUsed }

// LagTime reports the lag used by the last Covariance.
func (m *Model) LagTime() int { return m.lagTime }

// Eigenvalues returns the Koopman eigenvalues sorted by descending
// real part.
func (m *Model) Eigenvalues() []complex128 { return m.evK }

// Timescales returns the implied timescales derived from the Koopman
// eigenvalues. The leading stationary eigenvalue is always excluded.
func (m *Model) Timescales() []float64 { return m.timescales }

// Koopman returns the estimated Koopman matrix, or nil before
// Covariance has run.
func (m *Model) Koopman() *mat.Dense { return m.k }

// Build constructs the tensor structure from the basis list and the
// trajectories. It runs the outer-product expansion in fitting mode,
// compresses the result with one final SVD sorted by descending
// singular value and truncated to MaxRank, and returns the reduced
// coordinates [rank x n_all_frames] plus the trajectory length table.
// Any previously recorded state is reset.
func (m *Model) Build(list basis.List, trajs []*mat.Dense) (*mat.Dense, []int, error) {
	data, lens, err := seq.ToMatrix(trajs)
	if err != nil {
		return nil, nil, errors.Wrap(err, "amuset: converting trajectories")
	}
	nDim, _ := data.Dims()
	if nDim != len(list) {
		return nil, nil, errors.Wrapf(ErrShapeMismatch,
			"%d feature dimensions, basis list has %d", nDim, len(list))
	}
	if m.DoesBasisOverflow(list) {
		m.log.Warn("basis overflows max_rank; truncation will discard most information",
			zap.Int("max_rank", m.maxRank),
			zap.Int("basis_size", basis.Size(list)))
	}

	m.basisList = list
	m.layers = nil
	m.trajLens = lens

	outer, err := m.buildOuter(list, data, true)
	if err != nil {
		return nil, nil, err
	}

	// cvs = argsort-descending rows of v from svd(outer)
	final, cvs, err := compress(outer)
	if err != nil {
		return nil, nil, err
	}
	rows, _ := cvs.Dims()
	if m.maxRank > 0 && rows > m.maxRank {
		cvs = truncRows(cvs, m.maxRank)
		rows = m.maxRank
	}
	m.layers = append(m.layers, final)
	m.rankUsed = rows
	m.log.Debug("model built",
		zap.Int("rank", rows), zap.Int("layers", len(m.layers)))
	return cvs, lens, nil
}

// Fit is Build followed by Covariance at the given lag time.
func (m *Model) Fit(list basis.List, trajs []*mat.Dense, lagTime int) error {
	cvs, lens, err := m.Build(list, trajs)
	if err != nil {
		return err
	}
	return m.Covariance(cvs, lens, lagTime)
}

// compress factorizes a row set, orders the singular values
// descending, and returns the recorded layer together with the
// reordered right-singular-vector rows.
func compress(outer *mat.Dense) (layer, *mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(outer, mat.SVDThin); !ok {
		return layer{}, nil, errors.Wrap(ErrFactorization, "svd did not converge")
	}
	s := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	perm := utils.ArgsortDesc(s)

	_, cols := outer.Dims()
	rows := len(s)
	sorted := mat.NewDense(rows, cols, nil)
	for i, p := range perm {
		// sorted[i] = v[:, perm[i]].T
		for t := 0; t < cols; t++ {
			sorted.Set(i, t, v.At(t, p))
		}
	}
	return layer{u: mat.DenseCopyOf(&u), s: s, perm: perm}, sorted, nil
}

// truncRows keeps the first n rows.
func truncRows(a *mat.Dense, n int) *mat.Dense {
	_, cols := a.Dims()
	return mat.DenseCopyOf(a.Slice(0, n, 0, cols))
}
