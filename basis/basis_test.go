package basis_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seechin/amuset/basis"
)

func TestSize(t *testing.T) {
	list := basis.List{
		{{Mean: 0, Sigma: 1}, {Mean: 1, Sigma: 1}},
		{{Mean: 0.5, Sigma: 2}},
	}
	// (2+1) * (1+1)
	require.Equal(t, 6, basis.Size(list))
	require.Equal(t, 1, basis.Size(basis.List{}))
}

func TestMix(t *testing.T) {
	a := basis.Gaussian{Mean: 0, Sigma: 1}
	b := basis.Gaussian{Mean: 1, Sigma: 2}
	c := basis.Gaussian{Mean: 2, Sigma: 3}
	mixed := basis.Mix(basis.List{{a}, {b, c}})

	require.Len(t, mixed, 2)
	pool := []basis.Gaussian{a, b, c}
	for _, dim := range mixed {
		require.Equal(t, pool, dim)
	}
}

func TestScaleSigma(t *testing.T) {
	list := basis.List{
		{{Mean: -1, Sigma: 0.5}, {Mean: 2, Sigma: 1.5}},
		{{Mean: 0, Sigma: 3}},
	}
	scaled := basis.ScaleSigma(list, 2)
	require.Equal(t, 0.5, list[0][0].Sigma, "input must not be mutated")
	for i := range list {
		for j := range list[i] {
			require.Equal(t, list[i][j].Mean, scaled[i][j].Mean)
			require.InDelta(t, list[i][j].Sigma*2, scaled[i][j].Sigma, 1e-15)
		}
	}

	restored := basis.ScaleSigma(scaled, 0.5)
	for i := range list {
		for j := range list[i] {
			require.InDelta(t, list[i][j].Sigma, restored[i][j].Sigma, 1e-12)
		}
	}
}
