// Package estimate provides the front doors for projection-vector
// estimation: it ties segment sampling, variance decomposition, and
// budgeted selection together for continuous recordings, epoched data,
// and averaged (evoked) waveforms.
package estimate

import (
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/algo-ssp/ssp/core"
	"github.com/cwbudde/algo-ssp/ssp/prefilter"
	"github.com/cwbudde/algo-ssp/ssp/segment"
	"github.com/cwbudde/algo-ssp/ssp/selection"
	"github.com/cwbudde/algo-ssp/ssp/variance"
)

// Errors returned by estimation entry points.
var (
	ErrShapeMismatch = errors.New("estimate: data rows must match the channel metadata")
	ErrRaggedData    = errors.New("estimate: all channel rows must have the same length")
	ErrNoEpochs      = errors.New("estimate: at least one epoch is required")
)

// Config controls projection-vector estimation. The zero value estimates
// nothing; at least one class budget is required for output.
type Config struct {
	// Duration is the analysis segment length in seconds for continuous
	// data. Zero or negative treats the whole span as one segment.
	Duration float64

	// Stop truncates the usable span in seconds. Zero or negative uses
	// the full length.
	Stop float64

	// Budgets limits the selected components per channel class.
	Budgets map[core.Class]selection.Budget

	// Prefix is prepended to every vector description.
	Prefix string

	// BandLow and BandHigh restrict continuous data to an artifact band
	// before decomposition. Non-positive edges are disabled.
	BandLow  float64
	BandHigh float64

	// Workers bounds the parallel per-class decompositions. Values below
	// two run serially. Output order is independent of Workers.
	Workers int
}

// Raw estimates projection vectors from a continuous recording. Data rows
// follow info.Channels; bad channels are excluded from the estimation
// column space. Vectors are returned inactive.
func Raw(data [][]float64, sampleRate float64, info *core.Info, cfg Config) ([]core.Vector, []core.Warning, error) {
	err := validate(data, info)
	if err != nil {
		return nil, nil, err
	}

	if cfg.BandLow > 0 || cfg.BandHigh > 0 {
		// Band-limiting mutates rows, so work on a copy.
		data = cloneRows(data)

		err = prefilter.BandLimit(data, sampleRate, cfg.BandLow, cfg.BandHigh)
		if err != nil {
			return nil, nil, err
		}
	}

	maxComp := maxRequestedComponents(info, cfg.Budgets)

	segments, warnings, err := segment.Sample(len(data[0]), sampleRate, segment.Policy{
		Duration: cfg.Duration,
		Stop:     cfg.Stop,
	}, maxComp)
	if err != nil {
		return nil, nil, err
	}

	obs := observationsFromSegments(data, segments, info, cfg.Budgets)

	vectors, err := decomposeAndSelect(obs, cfg)
	if err != nil {
		return nil, nil, err
	}

	return vectors, warnings, nil
}

// Epochs estimates projection vectors from a finite set of same-shaped
// epochs, stacking every epoch's samples into one observation matrix per
// channel class.
func Epochs(epochs [][][]float64, info *core.Info, cfg Config) ([]core.Vector, []core.Warning, error) {
	if len(epochs) == 0 {
		return nil, nil, ErrNoEpochs
	}

	nTimes := 0

	for i, e := range epochs {
		err := validate(e, info)
		if err != nil {
			return nil, nil, fmt.Errorf("epoch %d: %w", i, err)
		}

		if i == 0 {
			nTimes = len(e[0])
		} else if len(e[0]) != nTimes {
			return nil, nil, fmt.Errorf("epoch %d: %w", i, ErrShapeMismatch)
		}
	}

	maxComp := maxRequestedComponents(info, cfg.Budgets)

	var warnings []core.Warning

	if w := segment.CheckObservationCount(len(epochs)*nTimes, maxComp); w != nil {
		warnings = append(warnings, *w)
	}

	obs := observationsFromEpochs(epochs, info, cfg.Budgets)

	vectors, err := decomposeAndSelect(obs, cfg)
	if err != nil {
		return nil, nil, err
	}

	return vectors, warnings, nil
}

// Evoked estimates projection vectors from a single averaged waveform,
// treated as one observation block.
func Evoked(evoked [][]float64, info *core.Info, cfg Config) ([]core.Vector, []core.Warning, error) {
	return Epochs([][][]float64{evoked}, info, cfg)
}

func validate(data [][]float64, info *core.Info) error {
	if len(data) != len(info.Channels) {
		return ErrShapeMismatch
	}

	if len(data) == 0 || len(data[0]) == 0 {
		return ErrShapeMismatch
	}

	n := len(data[0])
	for _, row := range data {
		if len(row) != n {
			return ErrRaggedData
		}
	}

	return nil
}

func cloneRows(data [][]float64) [][]float64 {
	out := make([][]float64, len(data))
	for i, row := range data {
		out[i] = append([]float64(nil), row...)
	}

	return out
}

func maxRequestedComponents(info *core.Info, budgets map[core.Class]selection.Budget) int {
	maxComp := 0

	for class, budget := range budgets {
		available := len(info.ClassIndices(class, true))

		if n := budget.MaxComponents(available); n > maxComp {
			maxComp = n
		}
	}

	return maxComp
}

// budgetedClasses returns the classes to decompose, in channel order, so
// the output is deterministic regardless of map iteration or parallel
// completion order.
func budgetedClasses(info *core.Info, budgets map[core.Class]selection.Budget) []core.Class {
	var classes []core.Class

	for _, class := range info.Classes() {
		budget, ok := budgets[class]
		if !ok || budget.IsZero() {
			continue
		}

		if len(info.ClassIndices(class, true)) == 0 {
			continue
		}

		classes = append(classes, class)
	}

	return classes
}

func observationsFromSegments(data [][]float64, segments []segment.Segment, info *core.Info, budgets map[core.Class]selection.Budget) []variance.Observations {
	var obs []variance.Observations

	for _, class := range budgetedClasses(info, budgets) {
		indices := info.ClassIndices(class, true)

		total := 0
		for _, s := range segments {
			total += s.Length
		}

		rows := mat.NewDense(total, len(indices), nil)

		r := 0

		for _, s := range segments {
			for t := 0; t < s.Length; t++ {
				for c, idx := range indices {
					rows.Set(r, c, data[idx][s.Start+t])
				}

				r++
			}
		}

		obs = append(obs, variance.Observations{
			Class:        class,
			ChannelNames: classNames(info, indices),
			Rows:         rows,
		})
	}

	return obs
}

func observationsFromEpochs(epochs [][][]float64, info *core.Info, budgets map[core.Class]selection.Budget) []variance.Observations {
	nTimes := len(epochs[0][0])

	var obs []variance.Observations

	for _, class := range budgetedClasses(info, budgets) {
		indices := info.ClassIndices(class, true)
		rows := mat.NewDense(len(epochs)*nTimes, len(indices), nil)

		r := 0

		for _, e := range epochs {
			for t := 0; t < nTimes; t++ {
				for c, idx := range indices {
					rows.Set(r, c, e[idx][t])
				}

				r++
			}
		}

		obs = append(obs, variance.Observations{
			Class:        class,
			ChannelNames: classNames(info, indices),
			Rows:         rows,
		})
	}

	return obs
}

func classNames(info *core.Info, indices []int) []string {
	names := make([]string, len(indices))
	for i, idx := range indices {
		names[i] = info.Channels[idx].Name
	}

	return names
}

// decomposeAndSelect runs one variance decomposition per class, optionally
// in parallel, and applies the budgets. Results are merged by class index,
// so class order in the output never depends on completion order.
func decomposeAndSelect(obs []variance.Observations, cfg Config) ([]core.Vector, error) {
	comps := make([]variance.Components, len(obs))

	extractOne := func(i int) error {
		budget := cfg.Budgets[obs[i].Class]
		maxComp := budget.MaxComponents(len(obs[i].ChannelNames))

		out, err := variance.Extract(obs[i:i+1], maxComp)
		if err != nil {
			return err
		}

		comps[i] = out[0]

		return nil
	}

	if cfg.Workers > 1 {
		var g errgroup.Group

		g.SetLimit(cfg.Workers)

		for i := range obs {
			g.Go(func() error { return extractOne(i) })
		}

		err := g.Wait()
		if err != nil {
			return nil, err
		}
	} else {
		for i := range obs {
			err := extractOne(i)
			if err != nil {
				return nil, err
			}
		}
	}

	return selection.Select(comps, cfg.Budgets, cfg.Prefix), nil
}
