package amuset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestImpliedTimescales(t *testing.T) {
	evK := []complex128{1, 0.9, 0.5}
	ts := impliedTimescales(evK, 1)
	require.Len(t, ts, 2)
	require.InDelta(t, -1/math.Log(0.9), ts[0], 1e-12)
	require.InDelta(t, -1/math.Log(0.5), ts[1], 1e-12)
}

func TestImpliedTimescalesStopAtNonPositive(t *testing.T) {
	// The scan stops at the first non-positive real part even when
	// positive eigenvalues follow.
	evK := []complex128{1, 0.7, -0.1, 0.5}
	ts := impliedTimescales(evK, 3)
	require.Len(t, ts, 1)
	require.InDelta(t, -3/math.Log(0.7), ts[0], 1e-12)
}

func TestImpliedTimescalesNearRealPair(t *testing.T) {
	// A conjugate pair with a vanishing imaginary part must yield two
	// real timescales from the magnitude, not complex values.
	evK := []complex128{1, complex(0.8, 1e-9), complex(0.8, -1e-9), -0.2}
	ts := impliedTimescales(evK, 2)
	require.Len(t, ts, 2)
	want := -2 / math.Log(0.8)
	require.InDelta(t, want, ts[0], 1e-6)
	require.InDelta(t, want, ts[1], 1e-6)
}

func TestImpliedTimescalesDegenerate(t *testing.T) {
	require.Empty(t, impliedTimescales([]complex128{1}, 5))
	require.Empty(t, impliedTimescales(nil, 5))
}
