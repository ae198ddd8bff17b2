package core

// WarningKind classifies non-fatal conditions surfaced by engine calls.
type WarningKind int

const (
	// WarnTooFewSamples signals that fewer samples are available than
	// recommended for the requested component count. Estimation proceeds;
	// accuracy is the caller's concern.
	WarnTooFewSamples WarningKind = iota

	// WarnDangerousVector signals that a projection vector lost unit
	// magnitude or channel coverage after restriction to the requested
	// channel list. The projector is still built.
	WarnDangerousVector

	// WarnDuplicateReference signals that an equivalent average-reference
	// projection already exists and was left untouched.
	WarnDuplicateReference
)

// Warning is a non-fatal diagnostic. Calls return one Warning value per
// occurrence so callers can count them individually.
type Warning struct {
	Kind    WarningKind
	Message string
}

func (w Warning) String() string { return w.Message }

// CountWarnings returns how many warnings of the given kind are present.
func CountWarnings(warnings []Warning, kind WarningKind) int {
	n := 0

	for _, w := range warnings {
		if w.Kind == kind {
			n++
		}
	}

	return n
}
