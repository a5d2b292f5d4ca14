package seq_test

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/seechin/amuset/seq"
)

func randomTrajs(lens []int, features int, seed int64) []*mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	out := make([]*mat.Dense, len(lens))
	for k, n := range lens {
		traj := mat.NewDense(n, features, nil)
		for t := 0; t < n; t++ {
			for d := 0; d < features; d++ {
				traj.Set(t, d, rng.NormFloat64())
			}
		}
		out[k] = traj
	}
	return out
}

func TestToMatrixLayout(t *testing.T) {
	trajs := randomTrajs([]int{4, 6}, 3, 1)
	data, lens, err := seq.ToMatrix(trajs)
	require.NoError(t, err)
	require.Equal(t, []int{4, 6}, lens)
	rows, cols := data.Dims()
	require.Equal(t, 3, rows)
	require.Equal(t, 10, cols)
	// Second trajectory starts at column 4.
	require.Equal(t, trajs[1].At(2, 1), data.At(1, 4+2))
}

func TestRoundTrip(t *testing.T) {
	trajs := randomTrajs([]int{5, 9, 7}, 2, 2)
	data, lens, err := seq.ToMatrix(trajs)
	require.NoError(t, err)
	back, err := seq.ToTrajs(data, lens)
	require.NoError(t, err)
	require.Len(t, back, len(trajs))
	for k := range trajs {
		require.True(t, mat.Equal(trajs[k], back[k]), "trajectory %d", k)
	}
}

func TestToTrajsOrientation(t *testing.T) {
	trajs := randomTrajs([]int{8, 12}, 2, 3)
	data, lens, err := seq.ToMatrix(trajs)
	require.NoError(t, err)

	// Feature-major and frame-major inputs slice identically.
	fromFeatureMajor, err := seq.ToTrajs(data, lens)
	require.NoError(t, err)
	frameMajor := mat.DenseCopyOf(data.T())
	fromFrameMajor, err := seq.ToTrajs(frameMajor, lens)
	require.NoError(t, err)
	for k := range fromFeatureMajor {
		require.True(t, mat.Equal(fromFeatureMajor[k], fromFrameMajor[k]))
	}
}

func TestToMatrixErrors(t *testing.T) {
	_, _, err := seq.ToMatrix(nil)
	require.True(t, errors.Is(err, seq.ErrEmpty))

	mixed := []*mat.Dense{
		mat.NewDense(3, 2, nil),
		mat.NewDense(3, 4, nil),
	}
	_, _, err = seq.ToMatrix(mixed)
	require.True(t, errors.Is(err, seq.ErrShapeMismatch))
}

func TestToTrajsBadLengthTable(t *testing.T) {
	data := mat.NewDense(2, 10, nil)
	_, err := seq.ToTrajs(data, []int{4, 7})
	require.True(t, errors.Is(err, seq.ErrShapeMismatch))
}
