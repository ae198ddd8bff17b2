// Package projector assembles idempotent projection matrices from active
// projection vectors and applies them to multichannel data.
//
// A projector is built as P = I - U*Uᵀ where U is an orthonormal basis of
// the active vectors restricted to the requested channel list. Restriction
// can destroy orthonormality established over a channel superset, so the
// restricted vectors are re-orthonormalized before P is formed. Excluded
// (bad) channels keep identity rows and columns.
package projector

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/algo-ssp/ssp/core"
)

// Errors returned when applying projectors.
var (
	ErrChannelCount = errors.New("projector: data row count must match the projector channel list")
	ErrRaggedData   = errors.New("projector: all data rows must have the same length")
)

const (
	// rankTol is the relative singular-value cutoff below which restricted
	// vectors are treated as numerically dependent.
	rankTol = 1e-8

	// magnitudeTol is the unit-norm deviation beyond which a restricted
	// vector is reported as dangerous.
	magnitudeTol = 1e-2

	// coverageFraction is the share of a vector's original channels that
	// must survive restriction to avoid a dangerous-vector warning.
	coverageFraction = 0.9
)

// Projector is an immutable snapshot of a built projection matrix.
// Toggling a vector's Active flag after Make has returned does not affect
// an already-built Projector.
type Projector struct {
	// Channels is the ordered channel list the matrix is defined over.
	Channels []string

	// NProj is the number of independent projection directions in use.
	NProj int

	// Matrix is the len(Channels) square projection matrix.
	Matrix *mat.Dense

	// Basis holds the orthonormal projection directions as columns
	// (len(Channels) x NProj). It is nil when NProj is zero.
	Basis *mat.Dense
}

// Make builds a projector from the active vectors over the given channel
// list, excluding bad channels from the projection column space. Inactive
// vectors and vectors with no surviving channels are skipped; numerically
// dependent directions are discarded during re-orthonormalization, so the
// returned NProj may be smaller than the number of active vectors.
//
// Make never fails: with no usable vectors (or all channels excluded) it
// returns the identity matrix and NProj == 0.
func Make(vectors []core.Vector, channels []string, bads []string) (*Projector, []core.Warning) {
	nchan := len(channels)
	if nchan == 0 {
		return &Projector{}, nil
	}

	index := make(map[string]int, nchan)
	for i, name := range channels {
		index[name] = i
	}

	badSet := make(map[string]bool, len(bads))
	for _, name := range bads {
		badSet[name] = true
	}

	var (
		columns  [][]float64
		warnings []core.Warning
	)

	for i := range vectors {
		v := &vectors[i]
		if !v.Active {
			continue
		}

		col, used := restrict(v, index, badSet, nchan)
		if col == nil {
			continue
		}

		if w := checkDangerous(v, col, used); w != nil {
			warnings = append(warnings, *w)
		}

		normalize(col)

		columns = append(columns, col)
	}

	p := &Projector{Channels: append([]string(nil), channels...)}

	if len(columns) == 0 {
		p.Matrix = identity(nchan)
		return p, warnings
	}

	basis, nproj := orthonormalize(columns, nchan)

	p.NProj = nproj
	p.Basis = basis

	if nproj == 0 {
		p.Matrix = identity(nchan)
		return p, warnings
	}

	// P = I - U*Uᵀ; excluded channels have zero basis rows, so their
	// diagonal stays at one with no cross terms.
	var uut mat.Dense

	uut.Mul(basis, basis.T())

	m := identity(nchan)
	m.Sub(m, &uut)

	p.Matrix = m

	return p, warnings
}

// restrict maps a vector's data onto the working channel space, dropping
// entries for bad or unknown channels. It returns a full-length column
// (zeros elsewhere) and the number of surviving channels, or nil when no
// channel survives or all surviving coefficients are zero.
func restrict(v *core.Vector, index map[string]int, badSet map[string]bool, nchan int) ([]float64, int) {
	col := make([]float64, nchan)
	used := 0
	nonzero := false

	for i, name := range v.ChannelNames {
		if i >= len(v.Data) {
			break
		}

		if badSet[name] {
			continue
		}

		pos, ok := index[name]
		if !ok {
			continue
		}

		col[pos] = v.Data[i]
		used++

		if v.Data[i] != 0 {
			nonzero = true
		}
	}

	if used == 0 || !nonzero {
		return nil, 0
	}

	return col, used
}

func checkDangerous(v *core.Vector, col []float64, used int) *core.Warning {
	// Average-reference vectors are built to survive channel exclusion;
	// they are exempt from the magnitude and coverage checks.
	if v.Kind == core.KindAverageReference {
		return nil
	}

	psize := norm(col)
	coverage := float64(used) / float64(len(v.ChannelNames))

	if math.Abs(psize-1) <= magnitudeTol && coverage >= coverageFraction {
		return nil
	}

	return &core.Warning{
		Kind: core.WarnDangerousVector,
		Message: fmt.Sprintf(
			"projector: vector %q has magnitude %.2f (should be unity), applying projector with %d/%d of the original channels available may be dangerous",
			v.Description, psize, used, len(v.ChannelNames)),
	}
}

// orthonormalize decomposes the restricted columns and keeps the
// directions whose singular values exceed rankTol relative to the largest.
func orthonormalize(columns [][]float64, nchan int) (*mat.Dense, int) {
	vecs := mat.NewDense(nchan, len(columns), nil)
	for j, col := range columns {
		vecs.SetCol(j, col)
	}

	var svd mat.SVD
	if ok := svd.Factorize(vecs, mat.SVDThinU); !ok {
		return nil, 0
	}

	values := svd.Values(nil)
	if len(values) == 0 || values[0] <= 0 {
		return nil, 0
	}

	nproj := 0
	for _, s := range values {
		if s > rankTol*values[0] {
			nproj++
		}
	}

	if nproj == 0 {
		return nil, 0
	}

	var u mat.Dense

	svd.UTo(&u)

	basis := mat.NewDense(nchan, nproj, nil)
	for j := 0; j < nproj; j++ {
		for i := 0; i < nchan; i++ {
			basis.Set(i, j, u.At(i, j))
		}
	}

	return basis, nproj
}

// Apply left-multiplies data by the projection matrix in place. Data rows
// follow the projector's channel order. Applying a projector twice is a
// no-op.
func (p *Projector) Apply(data [][]float64) error {
	if len(data) != len(p.Channels) {
		return ErrChannelCount
	}

	if p.NProj == 0 || len(data) == 0 {
		return nil
	}

	nTimes := len(data[0])
	for _, row := range data {
		if len(row) != nTimes {
			return ErrRaggedData
		}
	}

	orig := make([][]float64, len(data))
	for i, row := range data {
		orig[i] = append([]float64(nil), row...)
	}

	temp := make([]float64, nTimes)

	for i, row := range data {
		for k := range row {
			row[k] = 0
		}

		w := p.Matrix.RawRowView(i)

		for j, src := range orig {
			if w[j] == 0 {
				continue
			}

			// row += orig[j] * P[i,j]
			vecmath.ScaleBlock(temp, src, w[j])
			vecmath.AddBlockInPlace(row, temp)
		}
	}

	return nil
}

// Applied returns a projected copy of data, leaving the input untouched.
func (p *Projector) Applied(data [][]float64) ([][]float64, error) {
	out := make([][]float64, len(data))
	for i, row := range data {
		out[i] = append([]float64(nil), row...)
	}

	err := p.Apply(out)
	if err != nil {
		return nil, err
	}

	return out, nil
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}

	return m
}

func normalize(col []float64) {
	n := norm(col)
	if n == 0 {
		return
	}

	for i := range col {
		col[i] /= n
	}
}

func norm(col []float64) float64 {
	sum := 0.0
	for _, v := range col {
		sum += v * v
	}

	return math.Sqrt(sum)
}
