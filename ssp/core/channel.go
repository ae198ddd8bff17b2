package core

// Class identifies a group of sensors sharing measurement characteristics.
// Variance budgets, average referencing, and sensitivity normalization are
// accounted per class.
type Class int

const (
	ClassGradiometer Class = iota
	ClassMagnetometer
	ClassEEG
	ClassECoG
	ClassSEEG
	ClassDBS
)

// String returns the lowercase class name.
func (c Class) String() string {
	switch c {
	case ClassGradiometer:
		return "grad"
	case ClassMagnetometer:
		return "mag"
	case ClassEEG:
		return "eeg"
	case ClassECoG:
		return "ecog"
	case ClassSEEG:
		return "seeg"
	case ClassDBS:
		return "dbs"
	default:
		return "unknown"
	}
}

// ReferenceEligible reports whether channels of this class may participate
// in an average-reference projection.
func (c Class) ReferenceEligible() bool {
	switch c {
	case ClassEEG, ClassECoG, ClassSEEG, ClassDBS:
		return true
	default:
		return false
	}
}

// ReferenceClasses lists all reference-eligible channel classes.
func ReferenceClasses() []Class {
	return []Class{ClassEEG, ClassECoG, ClassSEEG, ClassDBS}
}

// Channel describes a single sensor of a recording.
type Channel struct {
	Name  string
	Class Class
	Bad   bool
}

// Info carries per-recording channel metadata. Callers own Info instances;
// engine functions read them and never mutate them.
type Info struct {
	Channels []Channel

	// CustomReference marks that a custom (non-average) reference has
	// already been applied to the recording.
	CustomReference bool
}

// Names returns the ordered channel names.
func (in *Info) Names() []string {
	names := make([]string, len(in.Channels))
	for i, ch := range in.Channels {
		names[i] = ch.Name
	}

	return names
}

// Bads returns the names of channels flagged as bad, in channel order.
func (in *Info) Bads() []string {
	var bads []string

	for _, ch := range in.Channels {
		if ch.Bad {
			bads = append(bads, ch.Name)
		}
	}

	return bads
}

// ClassNames returns the names of all channels of class c, in channel
// order. Bad channels are included; use GoodClassNames to skip them.
func (in *Info) ClassNames(c Class) []string {
	var names []string

	for _, ch := range in.Channels {
		if ch.Class == c {
			names = append(names, ch.Name)
		}
	}

	return names
}

// GoodClassNames returns the names of all good channels of class c.
func (in *Info) GoodClassNames(c Class) []string {
	var names []string

	for _, ch := range in.Channels {
		if ch.Class == c && !ch.Bad {
			names = append(names, ch.Name)
		}
	}

	return names
}

// ClassIndices returns the positions of all channels of class c, skipping
// bad channels when excludeBads is set.
func (in *Info) ClassIndices(c Class, excludeBads bool) []int {
	var idx []int

	for i, ch := range in.Channels {
		if ch.Class != c {
			continue
		}

		if excludeBads && ch.Bad {
			continue
		}

		idx = append(idx, i)
	}

	return idx
}

// Classes returns the distinct channel classes present, in first-seen
// channel order.
func (in *Info) Classes() []Class {
	seen := make(map[Class]bool)

	var classes []Class

	for _, ch := range in.Channels {
		if !seen[ch.Class] {
			seen[ch.Class] = true

			classes = append(classes, ch.Class)
		}
	}

	return classes
}
