package variance

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/algo-ssp/ssp/core"
)

// mixedObservations builds nObs observations over nChan channels as a
// random mixture of nDim sources, so the data has exactly rank nDim.
func mixedObservations(rng *rand.Rand, nObs, nChan, nDim int) (*mat.Dense, *mat.Dense) {
	mixing := mat.NewDense(nChan, nDim, nil)
	for i := 0; i < nChan; i++ {
		for j := 0; j < nDim; j++ {
			mixing.Set(i, j, rng.NormFloat64()+float64(j))
		}
	}

	sources := mat.NewDense(nObs, nDim, nil)
	for i := 0; i < nObs; i++ {
		for j := 0; j < nDim; j++ {
			sources.Set(i, j, rng.NormFloat64())
		}
	}

	var data mat.Dense

	data.Mul(sources, mixing.T())

	return &data, mixing
}

func names(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "EEG " + string(rune('A'+i))
	}

	return out
}

func TestExtractOrthonormalRanked(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	data, _ := mixedObservations(rng, 500, 8, 3)

	comps, err := Extract([]Observations{{
		Class:        core.ClassEEG,
		ChannelNames: names(8),
		Rows:         data,
	}}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c := comps[0]
	if len(c.Vectors) != 8 {
		t.Fatalf("expected all 8 components, got %d", len(c.Vectors))
	}

	for i := range c.Vectors {
		for j := range c.Vectors {
			dot := 0.0
			for k := range c.Vectors[i] {
				dot += c.Vectors[i][k] * c.Vectors[j][k]
			}

			want := 0.0
			if i == j {
				want = 1.0
			}

			if math.Abs(dot-want) > 1e-8 {
				t.Fatalf("components %d,%d not orthonormal: dot=%g", i, j, dot)
			}
		}
	}

	for i := 1; i < len(c.Explained); i++ {
		if c.Explained[i] > c.Explained[i-1]+1e-12 {
			t.Fatalf("explained variance not decreasing at %d: %v", i, c.Explained)
		}
	}

	sum := 0.0
	for _, e := range c.Explained {
		sum += e
	}

	if math.Abs(sum-1) > 1e-10 {
		t.Fatalf("explained fractions must sum to 1, got %g", sum)
	}

	// Rank-3 data: components beyond the third carry (numerically) no
	// variance but are still returned.
	if c.Explained[3] > 1e-12 {
		t.Fatalf("component 4 should be near-zero, got %g", c.Explained[3])
	}
}

func TestExtractDeterministicSign(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	data, _ := mixedObservations(rng, 200, 6, 2)

	first, err := Extract([]Observations{{Class: core.ClassEEG, ChannelNames: names(6), Rows: data}}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := Extract([]Observations{{Class: core.ClassEEG, ChannelNames: names(6), Rows: data}}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for k := range first[0].Vectors {
		maxAbs, maxVal := 0.0, 0.0

		for i, v := range first[0].Vectors[k] {
			if first[0].Vectors[k][i] != second[0].Vectors[k][i] {
				t.Fatalf("component %d not reproducible", k)
			}

			if math.Abs(v) > maxAbs {
				maxAbs, maxVal = math.Abs(v), v
			}
		}

		if maxVal < 0 {
			t.Fatalf("component %d largest coefficient must be positive", k)
		}
	}
}

func TestExtractMaxComponents(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	data, _ := mixedObservations(rng, 100, 5, 5)

	comps, err := Extract([]Observations{{Class: core.ClassEEG, ChannelNames: names(5), Rows: data}}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(comps[0].Vectors) != 2 || len(comps[0].Explained) != 2 {
		t.Fatalf("expected 2 components, got %d", len(comps[0].Vectors))
	}
}

func TestExtractRecoversDominantDirection(t *testing.T) {
	// One dominant source: the first component must align with its
	// mixing column.
	rng := rand.New(rand.NewSource(4))

	nChan := 10
	mixing := make([]float64, nChan)

	norm := 0.0
	for i := range mixing {
		mixing[i] = rng.NormFloat64()
		norm += mixing[i] * mixing[i]
	}

	norm = math.Sqrt(norm)
	for i := range mixing {
		mixing[i] /= norm
	}

	nObs := 400
	data := mat.NewDense(nObs, nChan, nil)

	for i := 0; i < nObs; i++ {
		s := rng.NormFloat64() * 10
		for j := 0; j < nChan; j++ {
			data.Set(i, j, s*mixing[j]+0.01*rng.NormFloat64())
		}
	}

	comps, err := Extract([]Observations{{Class: core.ClassEEG, ChannelNames: names(nChan), Rows: data}}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dot := 0.0
	for i, v := range comps[0].Vectors[0] {
		dot += v * mixing[i]
	}

	if math.Abs(math.Abs(dot)-1) > 1e-4 {
		t.Fatalf("first component misaligned with mixing direction: |dot|=%g", math.Abs(dot))
	}

	if comps[0].Explained[0] < 0.99 {
		t.Fatalf("dominant source should explain nearly all variance, got %g", comps[0].Explained[0])
	}
}

func TestExtractErrors(t *testing.T) {
	_, err := Extract([]Observations{{Class: core.ClassEEG, ChannelNames: names(3)}}, 0)
	if !errors.Is(err, ErrEmptyObservations) {
		t.Fatalf("expected ErrEmptyObservations, got %v", err)
	}

	_, err = Extract([]Observations{{
		Class:        core.ClassEEG,
		ChannelNames: names(3),
		Rows:         mat.NewDense(4, 2, nil),
	}}, 0)
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}
