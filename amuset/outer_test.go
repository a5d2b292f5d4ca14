package amuset_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/seechin/amuset/amuset"
	"github.com/seechin/amuset/basis"
)

// requireReplay checks that apply mode reproduces the reduced
// coordinates returned by Build on the same trajectories.
func requireReplay(t *testing.T, model *amuset.Model, trajs []*mat.Dense, cvs *mat.Dense, lens []int, tol float64) {
	t.Helper()
	rank, _ := cvs.Dims()
	all := make([]int, rank)
	for i := range all {
		all[i] = i
	}
	replayed, err := model.Transform(trajs, amuset.CVIndices(all...), true, false)
	require.NoError(t, err)
	require.Len(t, replayed, len(lens))

	pos := 0
	for k, n := range lens {
		frames, comps := replayed[k].Dims()
		require.Equal(t, n, frames)
		require.Equal(t, rank, comps)
		for tt := 0; tt < n; tt++ {
			for c := 0; c < rank; c++ {
				require.InDelta(t, cvs.At(c, pos+tt), replayed[k].At(tt, c), tol,
					"trajectory %d frame %d component %d", k, tt, c)
			}
		}
		pos += n
	}
}

func TestTransformReplaysFit(t *testing.T) {
	trajs := uniformTrajs([]int{70, 50, 60}, 2, 21)
	model := amuset.New()
	cvs, lens, err := model.Build(twoFeatureBasis(), trajs)
	require.NoError(t, err)
	requireReplay(t, model, trajs, cvs, lens, 1e-8)
}

func TestTransformReplaysFitWithMaxRank(t *testing.T) {
	trajs := uniformTrajs([]int{90, 80}, 3, 22)
	dim := []basis.Gaussian{
		{Mean: 0.25, Sigma: 0.35},
		{Mean: 0.75, Sigma: 0.35},
	}
	list := basis.List{dim, dim, dim}
	model := amuset.New(amuset.WithMaxRank(5))
	cvs, lens, err := model.Build(list, trajs)
	require.NoError(t, err)
	require.Equal(t, 5, model.Rank())
	requireReplay(t, model, trajs, cvs, lens, 1e-6)
}

func TestLayerCounts(t *testing.T) {
	trajs := uniformTrajs([]int{60, 40}, 3, 23)
	dim := []basis.Gaussian{{Mean: 0.3, Sigma: 0.4}, {Mean: 0.7, Sigma: 0.4}}
	list := basis.List{dim, dim, dim}

	// With a rank bound: one intra layer per dimension after the
	// first, plus the final layer.
	bounded := amuset.New(amuset.WithMaxRank(4))
	_, _, err := bounded.Build(list, trajs)
	require.NoError(t, err)
	require.Equal(t, 3, bounded.Save()["n_tt_layers"])

	// Unbounded: only the final layer.
	free := amuset.New()
	_, _, err = free.Build(list, trajs)
	require.NoError(t, err)
	require.Equal(t, 1, free.Save()["n_tt_layers"])
}

func TestDoesBasisOverflow(t *testing.T) {
	dim2 := []basis.Gaussian{{Mean: 0, Sigma: 1}, {Mean: 1, Sigma: 1}}
	list := basis.List{dim2, dim2, dim2} // (2+1)*(2+1) = 9 before the last dimension

	require.False(t, amuset.New().DoesBasisOverflow(list),
		"max_rank <= 0 never overflows")
	require.True(t, amuset.New(amuset.WithMaxRank(8)).DoesBasisOverflow(list))
	require.False(t, amuset.New(amuset.WithMaxRank(9)).DoesBasisOverflow(list))
	require.False(t, amuset.New(amuset.WithMaxRank(4)).DoesBasisOverflow(nil))
}

func TestBuildResetsLayers(t *testing.T) {
	trajs := uniformTrajs([]int{80}, 2, 24)
	model := amuset.New(amuset.WithMaxRank(4))
	_, _, err := model.Build(twoFeatureBasis(), trajs)
	require.NoError(t, err)
	first := model.Save()["n_tt_layers"]

	// A second Build must not accumulate layers from the first.
	cvs, lens, err := model.Build(twoFeatureBasis(), trajs)
	require.NoError(t, err)
	require.Equal(t, first, model.Save()["n_tt_layers"])
	requireReplay(t, model, trajs, cvs, lens, 1e-6)
}
