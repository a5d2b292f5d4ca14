// Package seq converts between per-trajectory feature matrices and the
// concatenated feature-major layout the tensor pipeline works on.
package seq

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrEmpty         = errors.New("seq: no trajectories")
	ErrShapeMismatch = errors.New("seq: trajectory shape mismatch")
)

// ToMatrix converts trajectories, each [n_frames x n_features], into a
// single feature-major matrix [n_features x n_all_frames] plus the
// per-trajectory length table. Trajectory order is preserved.
func ToMatrix(trajs []*mat.Dense) (*mat.Dense, []int, error) {
	if len(trajs) == 0 {
		return nil, nil, ErrEmpty
	}
	_, nFeatures := trajs[0].Dims()
	total := 0
	lens := make([]int, len(trajs))
	for k, traj := range trajs {
		frames, features := traj.Dims()
		if features != nFeatures {
			return nil, nil, errors.Wrapf(ErrShapeMismatch,
				"trajectory %d has %d features, want %d", k, features, nFeatures)
		}
		if frames == 0 {
			return nil, nil, errors.Wrapf(ErrShapeMismatch, "trajectory %d is empty", k)
		}
		lens[k] = frames
		total += frames
	}
	data := mat.NewDense(nFeatures, total, nil)
	pos := 0
	for _, traj := range trajs {
		frames, _ := traj.Dims()
		// data[:, pos:pos+frames] = traj.T
		for t := 0; t < frames; t++ {
			for d := 0; d < nFeatures; d++ {
				data.Set(d, pos+t, traj.At(t, d))
			}
		}
		pos += frames
	}
	return data, lens, nil
}

// ToTrajs slices a concatenated coordinate matrix back into contiguous
// per-trajectory blocks in length-table order. The input may be either
// [n_dim x n_all_frames] or [n_all_frames x n_dim]; orientation is
// detected by comparing the two sizes, and the returned trajectories
// are always [n_frames x n_dim].
func ToTrajs(data *mat.Dense, lens []int) ([]*mat.Dense, error) {
	if len(lens) == 0 {
		return nil, ErrEmpty
	}
	rows, cols := data.Dims()
	total := 0
	for _, n := range lens {
		total += n
	}
	var frameMajor *mat.Dense
	if rows > cols {
		frameMajor = data
	} else {
		frameMajor = mat.DenseCopyOf(data.T())
	}
	frames, dim := frameMajor.Dims()
	if frames != total {
		return nil, errors.Wrapf(ErrShapeMismatch,
			"%d frames, length table sums to %d", frames, total)
	}
	out := make([]*mat.Dense, len(lens))
	pos := 0
	for k, n := range lens {
		block := mat.NewDense(n, dim, nil)
		block.Copy(frameMajor.Slice(pos, pos+n, 0, dim))
		out[k] = block
		pos += n
	}
	return out, nil
}
