package utils_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/seechin/amuset/utils"
)

func TestEye(t *testing.T) {
	eye := utils.Eye(3)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			require.Equal(t, want, eye.At(i, j))
		}
	}
}

func TestArgsortDesc(t *testing.T) {
	require.Equal(t, []int{0, 2, 1}, utils.ArgsortDesc([]float64{3, 1, 2}))
	require.Equal(t, []int{1, 0, 2}, utils.ArgsortDesc([]float64{2, 5, 2}), "ties keep input order")
	require.Empty(t, utils.ArgsortDesc(nil))
}

func TestInverseC(t *testing.T) {
	a := mat.NewCDense(2, 2, []complex128{
		1 + 1i, 2,
		0.5i, 1 - 1i,
	})
	inv, err := utils.InverseC(a)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			got := complex128(0)
			for k := 0; k < 2; k++ {
				got += a.At(i, k) * inv.At(k, j)
			}
			want := complex128(0)
			if i == j {
				want = 1
			}
			require.InDelta(t, real(want), real(got), 1e-12)
			require.InDelta(t, imag(want), imag(got), 1e-12)
		}
	}
}

func TestInverseCSingular(t *testing.T) {
	a := mat.NewCDense(2, 2, []complex128{
		1 + 1i, 2 + 2i,
		2 + 2i, 4 + 4i,
	})
	_, err := utils.InverseC(a)
	require.Error(t, err)
}
