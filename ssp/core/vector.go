package core

import "math"

// Kind distinguishes how a projection vector was constructed.
type Kind int

const (
	// KindVariance marks vectors derived from a variance decomposition.
	KindVariance Kind = iota

	// KindAverageReference marks closed-form average-reference vectors.
	KindAverageReference
)

// String returns a short kind label.
func (k Kind) String() string {
	switch k {
	case KindVariance:
		return "variance"
	case KindAverageReference:
		return "average-reference"
	default:
		return "unknown"
	}
}

// Vector is a single projection vector: a unit row vector defined over an
// ordered set of channel names. Vectors are plain values; toggling Active
// on a copy never affects the original or any projector already built
// from it.
type Vector struct {
	Description  string
	ChannelNames []string
	Data         []float64
	Active       bool
	Kind         Kind

	// ExplainedVar is the fraction of total variance captured by this
	// vector. It is only meaningful when HasExplainedVar is set;
	// average-reference vectors carry no explained variance.
	ExplainedVar    float64
	HasExplainedVar bool
}

const equalDataTol = 1e-10

// Equal reports whether v and o describe the same projection. The channel
// sets are compared order-insensitively, Data up to an overall sign flip,
// and Description, Active, and Kind exactly.
func (v *Vector) Equal(o *Vector) bool {
	if v.Description != o.Description || v.Active != o.Active || v.Kind != o.Kind {
		return false
	}

	if !v.SameChannels(o) {
		return false
	}

	if len(v.Data) != len(v.ChannelNames) || len(o.Data) != len(o.ChannelNames) {
		return false
	}

	byName := make(map[string]float64, len(o.ChannelNames))
	for i, name := range o.ChannelNames {
		byName[name] = o.Data[i]
	}

	// Fix the relative sign from the first coefficient that is clearly
	// nonzero in both vectors.
	sign := 0.0

	for i, name := range v.ChannelNames {
		a := v.Data[i]
		b := byName[name]

		if sign == 0 && math.Abs(a) > equalDataTol && math.Abs(b) > equalDataTol {
			if a*b < 0 {
				sign = -1
			} else {
				sign = 1
			}
		}
	}

	if sign == 0 {
		sign = 1
	}

	for i, name := range v.ChannelNames {
		if math.Abs(v.Data[i]-sign*byName[name]) > equalDataTol {
			return false
		}
	}

	return true
}

// SameChannels reports whether v and o are defined over the same channel
// set, ignoring order.
func (v *Vector) SameChannels(o *Vector) bool {
	if len(v.ChannelNames) != len(o.ChannelNames) {
		return false
	}

	set := make(map[string]bool, len(v.ChannelNames))
	for _, name := range v.ChannelNames {
		set[name] = true
	}

	for _, name := range o.ChannelNames {
		if !set[name] {
			return false
		}
	}

	return true
}

// Clone returns a deep copy of v.
func (v *Vector) Clone() Vector {
	out := *v
	out.ChannelNames = append([]string(nil), v.ChannelNames...)
	out.Data = append([]float64(nil), v.Data...)

	return out
}

// Activate returns copies of vectors with the Active flag set. The inputs
// are left untouched.
func Activate(vectors []Vector) []Vector {
	return setActive(vectors, true)
}

// Deactivate returns copies of vectors with the Active flag cleared.
func Deactivate(vectors []Vector) []Vector {
	return setActive(vectors, false)
}

func setActive(vectors []Vector, active bool) []Vector {
	out := make([]Vector, len(vectors))

	for i := range vectors {
		out[i] = vectors[i].Clone()
		out[i].Active = active
	}

	return out
}
