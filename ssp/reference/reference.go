// Package reference constructs average-reference projection vectors: the
// closed-form constant vector that removes the per-class channel mean.
// Unlike variance-derived vectors these are not estimated from data.
package reference

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cwbudde/algo-ssp/ssp/core"
)

// Errors returned by reference construction.
var (
	ErrCustomReference = errors.New("reference: a custom reference has already been applied, cannot add an average reference projection")
	ErrNoChannels      = errors.New("reference: no good channels available for the requested classes")
	ErrNotEligible     = errors.New("reference: channel class is not reference-eligible")
)

// BuildAverage constructs average-reference projection vectors for the
// requested channel classes: one vector per class, or a single vector over
// the union of all requested classes when joint is set. Each vector's data
// is the constant 1/N over the class's good channels, so applying the
// resulting projector zeroes the class mean.
//
// Vectors equivalent to one already present in existing (same kind and
// channel set) are not rebuilt; a non-fatal duplicate warning is returned
// instead. Construction fails with ErrCustomReference when the recording
// metadata reports a custom reference.
func BuildAverage(info *core.Info, classes []core.Class, joint bool, existing []core.Vector) ([]core.Vector, []core.Warning, error) {
	if info.CustomReference {
		return nil, nil, ErrCustomReference
	}

	for _, c := range classes {
		if !c.ReferenceEligible() {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotEligible, c)
		}
	}

	var (
		out      []core.Vector
		warnings []core.Warning
	)

	if joint {
		var names []string
		for _, c := range classes {
			names = append(names, info.GoodClassNames(c)...)
		}

		vec, err := averageVector(names, jointDescription(classes))
		if err != nil {
			return nil, nil, err
		}

		out, warnings = appendOrWarn(out, warnings, vec, existing)

		return out, warnings, nil
	}

	for _, c := range classes {
		vec, err := averageVector(info.GoodClassNames(c), fmt.Sprintf("average %s reference", c))
		if err != nil {
			return nil, nil, err
		}

		out, warnings = appendOrWarn(out, warnings, vec, existing)
	}

	return out, warnings, nil
}

func appendOrWarn(out []core.Vector, warnings []core.Warning, vec core.Vector, existing []core.Vector) ([]core.Vector, []core.Warning) {
	if hasEquivalent(existing, &vec) {
		warnings = append(warnings, core.Warning{
			Kind:    core.WarnDuplicateReference,
			Message: fmt.Sprintf("reference: projection %q already added, existing projection left untouched", vec.Description),
		})

		return out, warnings
	}

	return append(out, vec), warnings
}

func averageVector(names []string, description string) (core.Vector, error) {
	if len(names) == 0 {
		return core.Vector{}, ErrNoChannels
	}

	data := make([]float64, len(names))
	for i := range data {
		data[i] = 1 / float64(len(names))
	}

	return core.Vector{
		Description:  description,
		ChannelNames: append([]string(nil), names...),
		Data:         data,
		Active:       true,
		Kind:         core.KindAverageReference,
	}, nil
}

func jointDescription(classes []core.Class) string {
	names := make([]string, len(classes))
	for i, c := range classes {
		names[i] = c.String()
	}

	return fmt.Sprintf("average %s reference", strings.Join(names, "+"))
}

func hasEquivalent(existing []core.Vector, vec *core.Vector) bool {
	for i := range existing {
		if existing[i].Kind == core.KindAverageReference && existing[i].SameChannels(vec) {
			return true
		}
	}

	return false
}

// HasAverage reports whether projs already contains an average-reference
// vector covering the good channels of every requested class (a single
// joint vector or one vector per class both qualify).
func HasAverage(projs []core.Vector, info *core.Info, classes []core.Class) bool {
	for _, c := range classes {
		names := info.GoodClassNames(c)
		if len(names) == 0 {
			continue
		}

		if !classCovered(projs, names) {
			return false
		}
	}

	return true
}

func classCovered(projs []core.Vector, names []string) bool {
	for i := range projs {
		if projs[i].Kind != core.KindAverageReference {
			continue
		}

		set := make(map[string]bool, len(projs[i].ChannelNames))
		for _, n := range projs[i].ChannelNames {
			set[n] = true
		}

		covered := true

		for _, n := range names {
			if !set[n] {
				covered = false
				break
			}
		}

		if covered {
			return true
		}
	}

	return false
}

// NeedsAverage reports whether the recording still needs an average
// reference projection: it has reference-eligible channels, no custom
// reference was applied, and no average-reference vector covers them yet.
func NeedsAverage(info *core.Info, projs []core.Vector) bool {
	if info.CustomReference {
		return false
	}

	var present []core.Class

	for _, c := range core.ReferenceClasses() {
		if len(info.GoodClassNames(c)) > 0 {
			present = append(present, c)
		}
	}

	if len(present) == 0 {
		return false
	}

	return !HasAverage(projs, info, present)
}
