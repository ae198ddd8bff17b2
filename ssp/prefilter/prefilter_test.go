package prefilter

import (
	"errors"
	"math"
	"testing"
)

func sine(n int, sampleRate, freq float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / sampleRate)
	}

	return out
}

func rms(x []float64) float64 {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}

	return math.Sqrt(sum / float64(len(x)))
}

func TestBandLimitRemovesOutOfBandTone(t *testing.T) {
	const (
		sampleRate = 1024.0
		n          = 1024
	)

	inBand := sine(n, sampleRate, 16)
	row := make([]float64, n)
	for i := range row {
		row[i] = inBand[i] + sine(n, sampleRate, 200)[i]
	}

	data := [][]float64{row}

	err := BandLimit(data, sampleRate, 4, 40)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	residual := make([]float64, n)
	for i := range residual {
		residual[i] = data[0][i] - inBand[i]
	}

	if r := rms(residual); r > 1e-9 {
		t.Fatalf("out-of-band tone not removed, residual RMS %g", r)
	}
}

func TestBandLimitDisabledEdges(t *testing.T) {
	data := [][]float64{sine(256, 256, 10)}
	want := append([]float64(nil), data[0]...)

	err := BandLimit(data, 256, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range want {
		if data[0][i] != want[i] {
			t.Fatalf("data changed at %d with both edges disabled", i)
		}
	}
}

func TestBandLimitValidation(t *testing.T) {
	data := [][]float64{{1, 2, 3}}

	if err := BandLimit(data, 0, 1, 2); !errors.Is(err, ErrInvalidSampleRate) {
		t.Fatalf("expected ErrInvalidSampleRate, got %v", err)
	}

	if err := BandLimit(data, 100, 5, 5); !errors.Is(err, ErrInvalidBand) {
		t.Fatalf("expected ErrInvalidBand, got %v", err)
	}

	ragged := [][]float64{{1, 2, 3}, {1, 2}}
	if err := BandLimit(ragged, 100, 1, 10); !errors.Is(err, ErrRaggedInput) {
		t.Fatalf("expected ErrRaggedInput, got %v", err)
	}
}
