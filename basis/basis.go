// Package basis provides Gaussian radial basis lists for the tensor
// expansion, and the mixture-model fitting used to discover them.
package basis

// Gaussian is a radial basis function of a single feature dimension.
type Gaussian struct {
	Mean  float64
	Sigma float64
}

// List holds, per feature dimension, the ordered basis functions used
// to expand that dimension. A List is read-only once a model is built.
type List [][]Gaussian

// Size returns the total number of basis products spanned by the list,
// prod(len(list[i]) + 1). The +1 accounts for the constant function
// included in every dimension.
func Size(list List) int {
	size := 1
	for _, dim := range list {
		size *= len(dim) + 1
	}
	return size
}

// Mix pools the basis functions of all dimensions and duplicates the
// pool across every dimension: [[A], [B, C]] -> [[A, B, C], [A, B, C]].
// The pooled set is usually a larger and better basis than the
// per-dimension ones.
func Mix(list List) List {
	n := 0
	for _, dim := range list {
		n += len(dim)
	}
	pool := make([]Gaussian, 0, n)
	for _, dim := range list {
		pool = append(pool, dim...)
	}
	out := make(List, len(list))
	for i := range out {
		out[i] = pool
	}
	return out
}

// ScaleSigma returns a new list with every width multiplied by scale
// and every mean unchanged.
func ScaleSigma(list List, scale float64) List {
	out := make(List, len(list))
	for i, dim := range list {
		scaled := make([]Gaussian, len(dim))
		for j, g := range dim {
			scaled[j] = Gaussian{Mean: g.Mean, Sigma: g.Sigma * scale}
		}
		out[i] = scaled
	}
	return out
}
