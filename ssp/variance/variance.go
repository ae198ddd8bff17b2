// Package variance computes ranked orthonormal variance directions
// (principal components) and their explained-variance fractions from
// observation matrices, one independent decomposition per channel class.
package variance

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/algo-ssp/ssp/core"
)

// Errors returned by extraction.
var (
	ErrEmptyObservations = errors.New("variance: observation matrix is empty")
	ErrShapeMismatch     = errors.New("variance: observation columns must match channel names")
)

// Observations is the input of one channel class: a matrix whose rows are
// stacked observations (segment samples, epoch samples, or a single evoked
// average) restricted to the class's channels, one column per channel.
type Observations struct {
	Class        core.Class
	ChannelNames []string
	Rows         *mat.Dense
}

// Components is the ranked decomposition result for one channel class.
// Vectors[i] is a unit channel-space direction; Explained[i] is its
// fraction of the class's total variance. Vectors are ordered by
// decreasing explained variance and are mutually orthonormal.
type Components struct {
	Class        core.Class
	ChannelNames []string
	Vectors      [][]float64
	Explained    []float64
}

// Extract decomposes each class's observation matrix and returns up to
// maxComponents ranked components per class (all available components when
// maxComponents <= 0). Near-zero directions are kept; truncating rank is
// the selector's job. The sign of each component is fixed so that its
// largest-magnitude coefficient is positive, making repeated extraction on
// identical input reproducible exactly.
func Extract(obs []Observations, maxComponents int) ([]Components, error) {
	out := make([]Components, len(obs))

	for i, o := range obs {
		comps, err := extractOne(o, maxComponents)
		if err != nil {
			return nil, fmt.Errorf("variance: class %s: %w", o.Class, err)
		}

		out[i] = comps
	}

	return out, nil
}

func extractOne(o Observations, maxComponents int) (Components, error) {
	if o.Rows == nil {
		return Components{}, ErrEmptyObservations
	}

	rows, cols := o.Rows.Dims()
	if rows == 0 || cols == 0 {
		return Components{}, ErrEmptyObservations
	}

	if cols != len(o.ChannelNames) {
		return Components{}, ErrShapeMismatch
	}

	var svd mat.SVD
	if ok := svd.Factorize(o.Rows, mat.SVDThinV); !ok {
		return Components{}, errors.New("decomposition failed to converge")
	}

	values := svd.Values(nil)

	var v mat.Dense

	svd.VTo(&v)

	total := 0.0
	for _, s := range values {
		total += s * s
	}

	count := len(values)
	if maxComponents > 0 && maxComponents < count {
		count = maxComponents
	}

	comps := Components{
		Class:        o.Class,
		ChannelNames: append([]string(nil), o.ChannelNames...),
		Vectors:      make([][]float64, count),
		Explained:    make([]float64, count),
	}

	for k := 0; k < count; k++ {
		vec := make([]float64, cols)
		for r := 0; r < cols; r++ {
			vec[r] = v.At(r, k)
		}

		normalizeSign(vec)

		comps.Vectors[k] = vec

		if total > 0 {
			comps.Explained[k] = values[k] * values[k] / total
		}
	}

	return comps, nil
}

// normalizeSign flips vec so that its largest-magnitude entry is positive.
func normalizeSign(vec []float64) {
	best := 0

	for i, v := range vec {
		if math.Abs(v) > math.Abs(vec[best]) {
			best = i
		}
	}

	if vec[best] < 0 {
		for i := range vec {
			vec[i] = -vec[i]
		}
	}
}
