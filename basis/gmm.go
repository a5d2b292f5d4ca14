package basis

import (
	"math"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/seechin/amuset/seq"
)

var (
	ErrBadComponents = errors.New("basis: component count must be positive")
	ErrTooFewFrames  = errors.New("basis: fewer frames than mixture components")
	ErrShapeMismatch = errors.New("basis: component counts do not match feature count")
)

const (
	emMaxIter  = 200
	emTol      = 1e-6
	minVar     = 1e-10
	minWeight  = 1e-12
	minRespSum = 1e-300
)

// Find fits a Gaussian mixture to every feature dimension and returns
// the resulting basis list. counts gives the number of mixture
// components per dimension. When sigma > 0 it overrides the fitted
// widths; otherwise the component variances are used. The same seed on
// the same data always yields the same list. When mix is true the
// per-dimension results are pooled with Mix.
func Find(trajs []*mat.Dense, counts []int, sigma float64, seed int64, mix bool) (List, error) {
	data, _, err := seq.ToMatrix(trajs)
	if err != nil {
		return nil, errors.Wrap(err, "basis: converting trajectories")
	}
	nDim, nFrames := data.Dims()
	if nDim != len(counts) {
		return nil, errors.Wrapf(ErrShapeMismatch,
			"%d feature dimensions, %d counts", nDim, len(counts))
	}
	list := make(List, nDim)
	for il := 0; il < nDim; il++ {
		xs := make([]float64, nFrames)
		mat.Row(xs, il, data)
		// Every dimension is fitted from the same seed, so adding a
		// dimension never perturbs the others.
		rng := rand.New(rand.NewSource(seed))
		means, vars, err := fitMixture(xs, counts[il], rng)
		if err != nil {
			return nil, errors.Wrapf(err, "basis: dimension %d", il)
		}
		dim := make([]Gaussian, counts[il])
		for i := range dim {
			if sigma > 0 {
				dim[i] = Gaussian{Mean: means[i], Sigma: sigma}
			} else {
				dim[i] = Gaussian{Mean: means[i], Sigma: vars[i]}
			}
		}
		list[il] = dim
	}
	if mix {
		return Mix(list), nil
	}
	return list, nil
}

// fitMixture runs 1-D expectation-maximization for a k-component
// Gaussian mixture. Components are returned sorted by mean ascending
// so the result is a deterministic function of data and rng state.
func fitMixture(xs []float64, k int, rng *rand.Rand) (means, vars []float64, err error) {
	n := len(xs)
	if k <= 0 {
		return nil, nil, ErrBadComponents
	}
	if n < k {
		return nil, nil, errors.Wrapf(ErrTooFewFrames, "%d frames, %d components", n, k)
	}

	means = make([]float64, k)
	vars = make([]float64, k)
	weights := make([]float64, k)
	dataVar := math.Max(stat.Variance(xs, nil), minVar)
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	for j := 0; j < k; j++ {
		// Seed the means on evenly spaced quantiles; the rng only
		// restarts components that collapse during iteration.
		q := (float64(j) + 0.5) / float64(k)
		means[j] = stat.Quantile(q, stat.Empirical, sorted, nil)
		vars[j] = dataVar
		weights[j] = 1.0 / float64(k)
	}

	resp := make([]float64, k)
	sums := make([]float64, k)
	sumX := make([]float64, k)
	sumX2 := make([]float64, k)
	prevLL := math.Inf(-1)
	for iter := 0; iter < emMaxIter; iter++ {
		for j := range sums {
			sums[j], sumX[j], sumX2[j] = 0, 0, 0
		}
		ll := 0.0
		for _, x := range xs {
			total := 0.0
			for j := 0; j < k; j++ {
				norm := distuv.Normal{Mu: means[j], Sigma: math.Sqrt(vars[j])}
				resp[j] = weights[j] * norm.Prob(x)
				total += resp[j]
			}
			if total < minRespSum {
				// A point no component explains; spread it uniformly.
				for j := 0; j < k; j++ {
					resp[j] = 1.0 / float64(k)
				}
				total = 1.0
			}
			ll += math.Log(total)
			for j := 0; j < k; j++ {
				r := resp[j] / total
				sums[j] += r
				sumX[j] += r * x
				sumX2[j] += r * x * x
			}
		}
		for j := 0; j < k; j++ {
			if sums[j] < minWeight {
				// Collapsed component; restart it on a random frame.
				means[j] = xs[rng.Intn(n)]
				vars[j] = dataVar
				weights[j] = minWeight
				continue
			}
			weights[j] = sums[j] / float64(n)
			means[j] = sumX[j] / sums[j]
			vars[j] = math.Max(sumX2[j]/sums[j]-means[j]*means[j], minVar)
		}
		if iter > 0 && math.Abs(ll-prevLL) < emTol*float64(n) {
			break
		}
		prevLL = ll
	}

	order := make([]int, k)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return means[order[a]] < means[order[b]] })
	outMeans := make([]float64, k)
	outVars := make([]float64, k)
	for i, j := range order {
		outMeans[i] = means[j]
		outVars[i] = vars[j]
	}
	return outMeans, outVars, nil
}
