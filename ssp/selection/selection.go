// Package selection applies per-channel-class budgets to ranked variance
// components, producing named projection-vector records.
package selection

import (
	"fmt"

	"github.com/cwbudde/algo-ssp/ssp/core"
	"github.com/cwbudde/algo-ssp/ssp/variance"
)

// Budget limits how many components of one channel class become
// projection vectors. The zero value selects nothing.
type Budget struct {
	count    int
	fraction float64
}

// Count budgets an exact number of vectors. Counts beyond the available
// rank saturate to all available components.
func Count(n int) Budget {
	if n < 0 {
		n = 0
	}

	return Budget{count: n}
}

// Fraction budgets a cumulative explained-variance target in (0, 1].
// Components are taken in rank order until the cumulative fraction reaches
// the target, including the component that crosses it. An unreachable
// target saturates to all available components.
func Fraction(f float64) Budget {
	if f < 0 {
		f = 0
	}

	if f > 1 {
		f = 1
	}

	return Budget{fraction: f}
}

// IsZero reports whether the budget selects nothing.
func (b Budget) IsZero() bool { return b.count == 0 && b.fraction == 0 }

// MaxComponents returns the largest number of components the budget could
// select from a class with the given available rank. Fractional budgets
// may need every component in the worst case.
func (b Budget) MaxComponents(available int) int {
	if b.fraction > 0 {
		return available
	}

	if b.count > available {
		return available
	}

	return b.count
}

func (b Budget) pick(explained []float64) int {
	if b.fraction > 0 {
		cum := 0.0

		for i, e := range explained {
			cum += e
			if cum >= b.fraction {
				return i + 1
			}
		}

		return len(explained) // target unreachable: take all
	}

	if b.count > len(explained) {
		return len(explained)
	}

	return b.count
}

// Select turns ranked components into projection vectors according to the
// per-class budgets. Classes without a budget entry yield no vectors.
// Vectors are created inactive, with descriptions built from the optional
// prefix, the class name, and the 1-based selection index.
func Select(comps []variance.Components, budgets map[core.Class]Budget, prefix string) []core.Vector {
	var out []core.Vector

	for _, c := range comps {
		budget, ok := budgets[c.Class]
		if !ok || budget.IsZero() {
			continue
		}

		n := budget.pick(c.Explained)

		for k := 0; k < n; k++ {
			desc := fmt.Sprintf("%s-PCA-%02d", c.Class, k+1)
			if prefix != "" {
				desc = prefix + "-" + desc
			}

			out = append(out, core.Vector{
				Description:     desc,
				ChannelNames:    append([]string(nil), c.ChannelNames...),
				Data:            append([]float64(nil), c.Vectors[k]...),
				Active:          false,
				Kind:            core.KindVariance,
				ExplainedVar:    c.Explained[k],
				HasExplainedVar: true,
			})
		}
	}

	return out
}
