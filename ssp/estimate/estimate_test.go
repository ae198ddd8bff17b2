package estimate

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/algo-ssp/ssp/core"
	"github.com/cwbudde/algo-ssp/ssp/selection"
)

// mixedRecording synthesizes an nChan-channel recording as a known mixture
// of nDim random sources, mirroring a recording dominated by a few
// artifact generators.
func mixedRecording(rng *rand.Rand, nChan, nDim, nTimes int) ([][]float64, *mat.Dense) {
	mixing := mat.NewDense(nChan, nDim, nil)
	for i := 0; i < nChan; i++ {
		for j := 0; j < nDim; j++ {
			mixing.Set(i, j, rng.NormFloat64()+float64(j))
		}
	}

	sources := make([][]float64, nDim)
	for j := range sources {
		sources[j] = make([]float64, nTimes)
		for t := range sources[j] {
			sources[j][t] = rng.NormFloat64()
		}
	}

	data := make([][]float64, nChan)
	for i := range data {
		data[i] = make([]float64, nTimes)
		for t := 0; t < nTimes; t++ {
			sum := 0.0
			for j := 0; j < nDim; j++ {
				sum += mixing.At(i, j) * sources[j][t]
			}

			data[i][t] = sum
		}
	}

	return data, mixing
}

func eegInfo(n int) *core.Info {
	info := &core.Info{}
	for i := 0; i < n; i++ {
		info.Channels = append(info.Channels, core.Channel{
			Name:  "EEG " + string(rune('A'+i/10)) + string(rune('0'+i%10)),
			Class: core.ClassEEG,
		})
	}

	return info
}

// maxSubspaceAngle returns the largest principal angle, in degrees,
// between the spans of the two column sets.
func maxSubspaceAngle(t *testing.T, vectors []core.Vector, mixing *mat.Dense) float64 {
	t.Helper()

	nChan, nDim := mixing.Dims()
	if len(vectors) != nDim {
		t.Fatalf("expected %d vectors, got %d", nDim, len(vectors))
	}

	qa := mat.NewDense(nChan, nDim, nil)
	for j, v := range vectors {
		if len(v.Data) != nChan {
			t.Fatalf("vector %d has %d coefficients, want %d", j, len(v.Data), nChan)
		}

		qa.SetCol(j, v.Data)
	}

	var svdMix mat.SVD
	if ok := svdMix.Factorize(mixing, mat.SVDThinU); !ok {
		t.Fatalf("mixing decomposition failed")
	}

	var qb mat.Dense

	svdMix.UTo(&qb)

	var cross mat.Dense

	cross.Mul(qa.T(), &qb)

	var svdCross mat.SVD
	if ok := svdCross.Factorize(&cross, mat.SVDNone); !ok {
		t.Fatalf("cross decomposition failed")
	}

	values := svdCross.Values(nil)
	cos := core.Clamp(values[len(values)-1], 0, 1)

	return math.Acos(cos) * 180 / math.Pi
}

func TestRawRecoversMixingSubspace(t *testing.T) {
	rng := rand.New(rand.NewSource(0))

	const (
		nChan  = 30
		nDim   = 3
		nTimes = 10000
	)

	data, mixing := mixedRecording(rng, nChan, nDim, nTimes)
	info := eegInfo(nChan)

	budgets := map[core.Class]selection.Budget{core.ClassEEG: selection.Count(nDim)}

	vectors, _, err := Raw(data, 1000, info, Config{Budgets: budgets})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if angle := maxSubspaceAngle(t, vectors, mixing); angle > 1e-5 {
		t.Fatalf("recovered subspace off by %g degrees", angle)
	}
}

func TestRawDurationEquivalence(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	const (
		nChan      = 30
		nDim       = 3
		sampleRate = 1000.0
		duration   = 1.0
	)

	// Length chosen so segments of `duration` divide the span exactly.
	data, mixing := mixedRecording(rng, nChan, nDim, 10*int(duration*sampleRate))
	info := eegInfo(nChan)
	budgets := map[core.Class]selection.Budget{core.ClassEEG: selection.Count(nDim)}

	whole, _, err := Raw(data, sampleRate, info, Config{Budgets: budgets})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	split, _, err := Raw(data, sampleRate, info, Config{Duration: duration, Budgets: budgets})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(whole) != nDim || len(split) != nDim {
		t.Fatalf("expected %d vectors each, got %d and %d", nDim, len(whole), len(split))
	}

	for k := range whole {
		for i := range whole[k].Data {
			if math.Abs(whole[k].Data[i]-split[k].Data[i]) > 1e-10 {
				t.Fatalf("vector %d differs between policies at %d", k, i)
			}
		}
	}

	for _, vectors := range [][]core.Vector{whole, split} {
		if angle := maxSubspaceAngle(t, vectors, mixing); angle > 1e-5 {
			t.Fatalf("subspace off by %g degrees", angle)
		}
	}
}

func TestRawTooFewSamplesWarns(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	data, _ := mixedRecording(rng, 8, 2, 25)
	info := eegInfo(8)

	vectors, warnings, err := Raw(data, 100, info, Config{
		Budgets: map[core.Class]selection.Budget{core.ClassEEG: selection.Count(3)},
	})
	if err != nil {
		t.Fatalf("estimation must degrade gracefully, got %v", err)
	}

	if len(vectors) != 3 {
		t.Fatalf("expected 3 vectors despite warning, got %d", len(vectors))
	}

	if core.CountWarnings(warnings, core.WarnTooFewSamples) != 1 {
		t.Fatalf("expected a too-few-samples warning, got %v", warnings)
	}
}

func TestRawExcludesBadChannels(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	data, _ := mixedRecording(rng, 10, 2, 500)
	info := eegInfo(10)
	info.Channels[4].Bad = true

	vectors, _, err := Raw(data, 100, info, Config{
		Budgets: map[core.Class]selection.Budget{core.ClassEEG: selection.Count(1)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(vectors[0].ChannelNames) != 9 {
		t.Fatalf("bad channel must be excluded, got %d names", len(vectors[0].ChannelNames))
	}

	for _, name := range vectors[0].ChannelNames {
		if name == info.Channels[4].Name {
			t.Fatalf("bad channel %q present in vector support", name)
		}
	}
}

func TestRawParallelMatchesSerial(t *testing.T) {
	rng := rand.New(rand.NewSource(4))

	const nChan = 12

	data, _ := mixedRecording(rng, nChan, 4, 2000)

	info := &core.Info{}
	for i := 0; i < nChan; i++ {
		class := core.ClassEEG
		if i%3 == 0 {
			class = core.ClassMagnetometer
		} else if i%3 == 1 {
			class = core.ClassGradiometer
		}

		info.Channels = append(info.Channels, core.Channel{
			Name:  "CH " + string(rune('A'+i)),
			Class: class,
		})
	}

	budgets := map[core.Class]selection.Budget{
		core.ClassMagnetometer: selection.Count(1),
		core.ClassGradiometer:  selection.Count(1),
		core.ClassEEG:          selection.Count(2),
	}

	serial, _, err := Raw(data, 100, info, Config{Budgets: budgets})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parallel, _, err := Raw(data, 100, info, Config{Budgets: budgets, Workers: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(serial) != len(parallel) || len(serial) != 4 {
		t.Fatalf("expected 4 vectors from both runs, got %d and %d", len(serial), len(parallel))
	}

	for i := range serial {
		if !serial[i].Equal(&parallel[i]) {
			t.Fatalf("vector %d differs between serial and parallel runs", i)
		}
	}
}

func TestEpochsMatchesRawStacking(t *testing.T) {
	rng := rand.New(rand.NewSource(5))

	const (
		nChan   = 10
		nTimes  = 3000
		nEpochs = 6
	)

	data, _ := mixedRecording(rng, nChan, 3, nTimes)
	info := eegInfo(nChan)
	budgets := map[core.Class]selection.Budget{core.ClassEEG: selection.Count(3)}

	epochs := make([][][]float64, nEpochs)
	epochLen := nTimes / nEpochs

	for e := range epochs {
		epochs[e] = make([][]float64, nChan)
		for i := range epochs[e] {
			epochs[e][i] = data[i][e*epochLen : (e+1)*epochLen]
		}
	}

	fromRaw, _, err := Raw(data, 100, info, Config{Budgets: budgets})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fromEpochs, _, err := Epochs(epochs, info, Config{Budgets: budgets})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fromRaw) != len(fromEpochs) {
		t.Fatalf("vector count mismatch: %d vs %d", len(fromRaw), len(fromEpochs))
	}

	for i := range fromRaw {
		if !fromRaw[i].Equal(&fromEpochs[i]) {
			t.Fatalf("vector %d differs between raw and epoch stacking", i)
		}
	}
}

func TestEvokedSingleWaveform(t *testing.T) {
	rng := rand.New(rand.NewSource(6))

	data, mixing := mixedRecording(rng, 12, 2, 800)
	info := eegInfo(12)

	vectors, _, err := Evoked(data, info, Config{
		Budgets: map[core.Class]selection.Budget{core.ClassEEG: selection.Count(2)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if angle := maxSubspaceAngle(t, vectors, mixing); angle > 1e-5 {
		t.Fatalf("evoked subspace off by %g degrees", angle)
	}
}

func TestEstimateValidation(t *testing.T) {
	info := eegInfo(4)

	_, _, err := Raw(make([][]float64, 3), 100, info, Config{})
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}

	ragged := [][]float64{{1, 2}, {1, 2}, {1, 2}, {1}}
	if _, _, err := Raw(ragged, 100, info, Config{}); !errors.Is(err, ErrRaggedData) {
		t.Fatalf("expected ErrRaggedData, got %v", err)
	}

	if _, _, err := Epochs(nil, info, Config{}); !errors.Is(err, ErrNoEpochs) {
		t.Fatalf("expected ErrNoEpochs, got %v", err)
	}
}

func TestRawBandLimitLeavesInputUntouched(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	data, _ := mixedRecording(rng, 6, 2, 512)
	info := eegInfo(6)

	before := make([]float64, len(data[0]))
	copy(before, data[0])

	_, _, err := Raw(data, 256, info, Config{
		Budgets:  map[core.Class]selection.Budget{core.ClassEEG: selection.Count(1)},
		BandLow:  1,
		BandHigh: 40,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range before {
		if data[0][i] != before[i] {
			t.Fatalf("caller data mutated at %d", i)
		}
	}
}
