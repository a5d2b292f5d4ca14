package amuset

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/seechin/amuset/basis"
)

var ErrBadSnapshot = errors.New("amuset: malformed snapshot")

// Snapshot is the flat key/value form of a saved model. Matrices are
// stored as row slices and complex arrays as {"real": ..., "imag":
// ...} maps, so a Snapshot survives a JSON round trip unchanged in
// meaning.
type Snapshot map[string]any

// Save serializes the full model state into a Snapshot. The layer
// records carry indexed keys (tt_u_<i>, tt_s_<i>, tt_indices_<i>) in
// the order they were learned; the final compression layer is the last
// entry. max_rank is stored as a float for snapshot-format
// compatibility and converted back to int on load.
func (m *Model) Save() Snapshot {
	snap := Snapshot{}
	snap["max_rank"] = float64(m.maxRank)
	snap["n_basis_list"] = len(m.basisList)
	for i, dim := range m.basisList {
		rows := make([][]float64, len(dim))
		for j, g := range dim {
			rows[j] = []float64{g.Mean, g.Sigma}
		}
		snap["basis_list_"+strconv.Itoa(i)] = rows
	}
	snap["n_tt_layers"] = len(m.layers)
	for i, l := range m.layers {
		snap["tt_u_"+strconv.Itoa(i)] = denseRows(l.u)
		snap["tt_s_"+strconv.Itoa(i)] = append([]float64(nil), l.s...)
		snap["tt_indices_"+strconv.Itoa(i)] = append([]int(nil), l.perm...)
	}
	snap["rank"] = m.rankUsed
	if m.k != nil {
		snap["K"] = denseRows(m.k)
	} else {
		snap["K"] = [][]float64{}
	}
	re := make([]float64, len(m.evK))
	im := make([]float64, len(m.evK))
	for i, v := range m.evK {
		re[i], im[i] = real(v), imag(v)
	}
	snap["ev_K"] = map[string]any{"real": re, "imag": im}
	if m.vrK != nil {
		vre, vim := cdenseRows(m.vrK)
		snap["vr_K"] = map[string]any{"real": vre, "imag": vim}
	} else {
		snap["vr_K"] = map[string]any{"real": [][]float64{}, "imag": [][]float64{}}
	}
	snap["lagtime"] = m.lagTime
	snap["timescales"] = append([]float64(nil), m.timescales...)
	return snap
}

// Load restores the model from a Snapshot, replacing all state. A
// snapshot written before lag times were recorded loads with lagtime
// zero rather than failing.
func (m *Model) Load(snap Snapshot) error {
	maxRank, err := snapFloat(snap, "max_rank")
	if err != nil {
		return err
	}
	nBasis, err := snapInt(snap, "n_basis_list")
	if err != nil {
		return err
	}
	list := make(basis.List, nBasis)
	for i := range list {
		rows, err := snapMatrix(snap, "basis_list_"+strconv.Itoa(i))
		if err != nil {
			return err
		}
		dim := make([]basis.Gaussian, len(rows))
		for j, row := range rows {
			if len(row) != 2 {
				return errors.Wrapf(ErrBadSnapshot,
					"basis_list_%d row %d has %d entries", i, j, len(row))
			}
			dim[j] = basis.Gaussian{Mean: row[0], Sigma: row[1]}
		}
		list[i] = dim
	}

	nLayers, err := snapInt(snap, "n_tt_layers")
	if err != nil {
		return err
	}
	layers := make([]layer, nLayers)
	for i := range layers {
		uRows, err := snapMatrix(snap, "tt_u_"+strconv.Itoa(i))
		if err != nil {
			return err
		}
		u, err := rowsDense(uRows)
		if err != nil {
			return errors.Wrapf(err, "tt_u_%d", i)
		}
		s, err := snapFloats(snap, "tt_s_"+strconv.Itoa(i))
		if err != nil {
			return err
		}
		perm, err := snapInts(snap, "tt_indices_"+strconv.Itoa(i))
		if err != nil {
			return err
		}
		layers[i] = layer{u: u, s: s, perm: perm}
	}

	rank, err := snapInt(snap, "rank")
	if err != nil {
		return err
	}
	kRows, err := snapMatrix(snap, "K")
	if err != nil {
		return err
	}
	var k *mat.Dense
	if len(kRows) > 0 {
		if k, err = rowsDense(kRows); err != nil {
			return errors.Wrap(err, "K")
		}
	}
	evRe, evIm, err := snapComplexVec(snap, "ev_K")
	if err != nil {
		return err
	}
	evK := make([]complex128, len(evRe))
	for i := range evK {
		evK[i] = complex(evRe[i], evIm[i])
	}
	vrK, err := snapComplexMat(snap, "vr_K")
	if err != nil {
		return err
	}
	timescales, err := snapFloats(snap, "timescales")
	if err != nil {
		return err
	}
	lagTime := 0
	if _, ok := snap["lagtime"]; ok {
		if lagTime, err = snapInt(snap, "lagtime"); err != nil {
			return err
		}
	}

	m.maxRank = int(maxRank)
	m.basisList = list
	m.layers = layers
	m.rankUsed = rank
	m.k = k
	m.evK = evK
	m.vrK = vrK
	m.lagTime = lagTime
	m.timescales = timescales
	return nil
}

// SaveFile writes the snapshot to path as a gzip-compressed JSON
// archive.
func (m *Model) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "amuset: creating snapshot file")
	}
	defer f.Close()
	zw := gzip.NewWriter(f)
	if err := json.NewEncoder(zw).Encode(m.Save()); err != nil {
		zw.Close()
		return errors.Wrap(err, "amuset: encoding snapshot")
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "amuset: flushing snapshot")
	}
	return f.Close()
}

// LoadFile restores the model from a file written by SaveFile.
func (m *Model) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "amuset: opening snapshot file")
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return errors.Wrap(err, "amuset: reading snapshot")
	}
	defer zr.Close()
	var snap Snapshot
	if err := json.NewDecoder(zr).Decode(&snap); err != nil {
		return errors.Wrap(err, "amuset: decoding snapshot")
	}
	return m.Load(snap)
}

func denseRows(a *mat.Dense) [][]float64 {
	rows, cols := a.Dims()
	out := make([][]float64, rows)
	for i := range out {
		out[i] = make([]float64, cols)
		copy(out[i], a.RawRowView(i))
	}
	return out
}

func cdenseRows(a *mat.CDense) (re, im [][]float64) {
	rows, cols := a.Dims()
	re = make([][]float64, rows)
	im = make([][]float64, rows)
	for i := range re {
		re[i] = make([]float64, cols)
		im[i] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			v := a.At(i, j)
			re[i][j], im[i][j] = real(v), imag(v)
		}
	}
	return re, im
}

func rowsDense(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errors.Wrap(ErrBadSnapshot, "empty matrix")
	}
	cols := len(rows[0])
	out := mat.NewDense(len(rows), cols, nil)
	for i, row := range rows {
		if len(row) != cols {
			return nil, errors.Wrapf(ErrBadSnapshot, "ragged row %d", i)
		}
		out.SetRow(i, row)
	}
	return out, nil
}

// The coercers below accept both the typed values produced by Save and
// the generic values produced by a JSON decode of the archive form.

func snapValue(snap Snapshot, key string) (any, error) {
	v, ok := snap[key]
	if !ok {
		return nil, errors.Wrapf(ErrBadSnapshot, "missing key %q", key)
	}
	return v, nil
}

func snapFloat(snap Snapshot, key string) (float64, error) {
	v, err := snapValue(snap, key)
	if err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	}
	return 0, errors.Wrapf(ErrBadSnapshot, "key %q is not numeric", key)
}

func snapInt(snap Snapshot, key string) (int, error) {
	f, err := snapFloat(snap, key)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func snapFloats(snap Snapshot, key string) ([]float64, error) {
	v, err := snapValue(snap, key)
	if err != nil {
		return nil, err
	}
	return coerceFloats(v, key)
}

func coerceFloats(v any, key string) ([]float64, error) {
	switch x := v.(type) {
	case []float64:
		return append([]float64(nil), x...), nil
	case []any:
		out := make([]float64, len(x))
		for i, e := range x {
			f, ok := e.(float64)
			if !ok {
				return nil, errors.Wrapf(ErrBadSnapshot, "key %q entry %d", key, i)
			}
			out[i] = f
		}
		return out, nil
	}
	return nil, errors.Wrapf(ErrBadSnapshot, "key %q is not a float array", key)
}

func snapInts(snap Snapshot, key string) ([]int, error) {
	v, err := snapValue(snap, key)
	if err != nil {
		return nil, err
	}
	if x, ok := v.([]int); ok {
		return append([]int(nil), x...), nil
	}
	fs, err := coerceFloats(v, key)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(fs))
	for i, f := range fs {
		out[i] = int(f)
	}
	return out, nil
}

func snapMatrix(snap Snapshot, key string) ([][]float64, error) {
	v, err := snapValue(snap, key)
	if err != nil {
		return nil, err
	}
	return coerceMatrix(v, key)
}

func coerceMatrix(v any, key string) ([][]float64, error) {
	switch x := v.(type) {
	case [][]float64:
		return x, nil
	case []any:
		out := make([][]float64, len(x))
		for i, e := range x {
			row, err := coerceFloats(e, key)
			if err != nil {
				return nil, err
			}
			out[i] = row
		}
		return out, nil
	}
	return nil, errors.Wrapf(ErrBadSnapshot, "key %q is not a matrix", key)
}

func snapComplexVec(snap Snapshot, key string) (re, im []float64, err error) {
	v, err := snapValue(snap, key)
	if err != nil {
		return nil, nil, err
	}
	parts, ok := v.(map[string]any)
	if !ok {
		return nil, nil, errors.Wrapf(ErrBadSnapshot, "key %q is not a complex array", key)
	}
	if re, err = coerceFloats(parts["real"], key+".real"); err != nil {
		return nil, nil, err
	}
	if im, err = coerceFloats(parts["imag"], key+".imag"); err != nil {
		return nil, nil, err
	}
	if len(re) != len(im) {
		return nil, nil, errors.Wrapf(ErrBadSnapshot, "key %q part lengths differ", key)
	}
	return re, im, nil
}

func snapComplexMat(snap Snapshot, key string) (*mat.CDense, error) {
	v, err := snapValue(snap, key)
	if err != nil {
		return nil, err
	}
	parts, ok := v.(map[string]any)
	if !ok {
		return nil, errors.Wrapf(ErrBadSnapshot, "key %q is not a complex matrix", key)
	}
	re, err := coerceMatrix(parts["real"], key+".real")
	if err != nil {
		return nil, err
	}
	im, err := coerceMatrix(parts["imag"], key+".imag")
	if err != nil {
		return nil, err
	}
	if len(re) == 0 {
		return nil, nil
	}
	if len(re) != len(im) || len(re[0]) != len(im[0]) {
		return nil, errors.Wrapf(ErrBadSnapshot, "key %q part shapes differ", key)
	}
	out := mat.NewCDense(len(re), len(re[0]), nil)
	for i := range re {
		if len(re[i]) != len(re[0]) || len(im[i]) != len(re[0]) {
			return nil, errors.Wrapf(ErrBadSnapshot, "key %q ragged row %d", key, i)
		}
		for j := range re[i] {
			out.Set(i, j, complex(re[i][j], im[i][j]))
		}
	}
	return out, nil
}
