// Package sensitivity quantifies how strongly modeled source locations
// couple into a channel set, and how much of that coupling a projector
// removes. It combines a forward (leadfield) model with the null space of
// a built projector; the geometry stays consistent with the projector
// construction in ssp/projector.
package sensitivity

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/algo-ssp/ssp/core"
	"github.com/cwbudde/algo-ssp/ssp/projector"
)

// Errors returned by sensitivity mapping.
var (
	// ErrAmbiguousProjections reports a projector-dependent mode called
	// with a nil projection list: the caller never decided whether
	// projections apply.
	ErrAmbiguousProjections = errors.New("sensitivity: projections must be provided for this mode (nil is ambiguous)")

	// ErrNoUsableProjections reports a non-nil projection list that
	// yielded no usable projection direction.
	ErrNoUsableProjections = errors.New("sensitivity: no usable projections found for the forward channels")

	ErrInvalidMode    = errors.New("sensitivity: unknown mode")
	ErrInvalidForward = errors.New("sensitivity: malformed forward model")
)

// Mode selects the per-source scalar computed by Map.
type Mode int

const (
	// ModeFree is the leadfield norm with no projector applied.
	ModeFree Mode = iota

	// ModeFixed is the norm of the fixed-orientation (normal) leadfield.
	ModeFixed

	// ModeRatio is the normal-leadfield norm after projection divided by
	// the norm before.
	ModeRatio

	// ModeRadiality is one minus the ratio: the attenuated share.
	ModeRadiality

	// ModeAngle is the subspace angle, in degrees, between the normal
	// leadfield and the projector's removed subspace.
	ModeAngle

	// ModeRemaining is the residual norm of the unit normal leadfield
	// after removing the projected subspace.
	ModeRemaining

	// ModeDampening is one minus the cosine between the normal leadfield
	// and the removed subspace.
	ModeDampening
)

// String returns the lowercase mode name.
func (m Mode) String() string {
	switch m {
	case ModeFree:
		return "free"
	case ModeFixed:
		return "fixed"
	case ModeRatio:
		return "ratio"
	case ModeRadiality:
		return "radiality"
	case ModeAngle:
		return "angle"
	case ModeRemaining:
		return "remaining"
	case ModeDampening:
		return "dampening"
	default:
		return "unknown"
	}
}

func (m Mode) requiresProjector() bool {
	switch m {
	case ModeRatio, ModeRadiality, ModeAngle, ModeRemaining, ModeDampening:
		return true
	default:
		return false
	}
}

func (m Mode) valid() bool {
	return m >= ModeFree && m <= ModeDampening
}

// Forward is a leadfield model restricted to one channel type. Leadfield
// columns are grouped per source point: NOrient consecutive columns per
// source, with the surface-normal orientation last when NOrient is 3.
type Forward struct {
	ChannelNames []string
	NSources     int
	NOrient      int
	Leadfield    *mat.Dense
}

func (f *Forward) validate() error {
	if f.NSources <= 0 {
		return fmt.Errorf("%w: source count %d", ErrInvalidForward, f.NSources)
	}

	if f.NOrient != 1 && f.NOrient != 3 {
		return fmt.Errorf("%w: orientation count %d (want 1 or 3)", ErrInvalidForward, f.NOrient)
	}

	if f.Leadfield == nil {
		return fmt.Errorf("%w: missing leadfield", ErrInvalidForward)
	}

	rows, cols := f.Leadfield.Dims()
	if rows != len(f.ChannelNames) || cols != f.NSources*f.NOrient {
		return fmt.Errorf("%w: leadfield is %dx%d, want %dx%d",
			ErrInvalidForward, rows, cols, len(f.ChannelNames), f.NSources*f.NOrient)
	}

	return nil
}

// Map computes one sensitivity scalar per source point. Channels listed in
// exclude are removed from the computation entirely (leadfield rows and
// projector column space). Free and fixed maps are normalized to a maximum
// of one; the projector-dependent modes are already dimensionless.
//
// For projector-dependent modes a nil projs is rejected with
// ErrAmbiguousProjections, while a non-nil projs without a single usable
// direction is rejected with ErrNoUsableProjections.
func Map(fwd *Forward, projs []core.Vector, mode Mode, exclude []string) ([]float64, error) {
	if !mode.valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, int(mode))
	}

	err := fwd.validate()
	if err != nil {
		return nil, err
	}

	if mode.requiresProjector() && projs == nil {
		return nil, fmt.Errorf("%w: mode %q", ErrAmbiguousProjections, mode)
	}

	gain, names := excludeRows(fwd, exclude)
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no channels left after exclusion", ErrInvalidForward)
	}

	var p *projector.Projector

	if projs != nil {
		p, _ = projector.Make(core.Activate(projs), names, nil)
		if mode.requiresProjector() && p.NProj == 0 {
			return nil, fmt.Errorf("%w: mode %q", ErrNoUsableProjections, mode)
		}
	}

	out := make([]float64, fwd.NSources)

	for k := 0; k < fwd.NSources; k++ {
		block := gain.Slice(0, len(names), k*fwd.NOrient, (k+1)*fwd.NOrient)
		normal := normalColumn(block, fwd.NOrient)

		out[k], err = sourceValue(block, normal, p, mode)
		if err != nil {
			return nil, err
		}
	}

	if mode == ModeFree || mode == ModeFixed {
		normalizeMax(out)
	}

	return out, nil
}

func sourceValue(block mat.Matrix, normal []float64, p *projector.Projector, mode Mode) (float64, error) {
	gz := norm(normal)

	switch mode {
	case ModeFree:
		return largestSingularValue(block)

	case ModeFixed:
		return gz, nil

	case ModeRatio, ModeRadiality:
		if gz == 0 {
			return 0, nil
		}

		projected := make([]float64, len(normal))
		for i := range projected {
			row := p.Matrix.RawRowView(i)
			for j, v := range normal {
				projected[i] += row[j] * v
			}
		}

		ratio := norm(projected) / gz
		if mode == ModeRatio {
			return ratio, nil
		}

		return 1 - ratio, nil

	case ModeAngle, ModeRemaining, ModeDampening:
		if gz == 0 {
			if mode == ModeAngle {
				return 90, nil
			}

			return 1, nil
		}

		// Cosine between the unit normal leadfield and the removed
		// subspace spanned by the basis columns.
		cosSq := 0.0

		for j := 0; j < p.NProj; j++ {
			dot := 0.0
			for i, v := range normal {
				dot += p.Basis.At(i, j) * v
			}

			cosSq += dot * dot
		}

		cos := core.Clamp(math.Sqrt(cosSq)/gz, 0, 1)

		switch mode {
		case ModeAngle:
			return math.Acos(cos) * 180 / math.Pi, nil
		case ModeRemaining:
			return math.Sqrt(1 - cos*cos), nil
		default: // ModeDampening
			return 1 - cos, nil
		}

	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidMode, int(mode))
	}
}

func excludeRows(fwd *Forward, exclude []string) (*mat.Dense, []string) {
	if len(exclude) == 0 {
		return fwd.Leadfield, append([]string(nil), fwd.ChannelNames...)
	}

	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}

	var keep []int

	names := make([]string, 0, len(fwd.ChannelNames))

	for i, name := range fwd.ChannelNames {
		if skip[name] {
			continue
		}

		keep = append(keep, i)

		names = append(names, name)
	}

	if len(keep) == 0 {
		return nil, nil
	}

	_, cols := fwd.Leadfield.Dims()
	gain := mat.NewDense(len(keep), cols, nil)

	for r, idx := range keep {
		for c := 0; c < cols; c++ {
			gain.Set(r, c, fwd.Leadfield.At(idx, c))
		}
	}

	return gain, names
}

// normalColumn extracts the fixed-orientation column of a source block:
// the last of three orientations, or the only column.
func normalColumn(block mat.Matrix, nOrient int) []float64 {
	rows, _ := block.Dims()
	out := make([]float64, rows)

	for i := 0; i < rows; i++ {
		out[i] = block.At(i, nOrient-1)
	}

	return out
}

func largestSingularValue(block mat.Matrix) (float64, error) {
	var svd mat.SVD
	if ok := svd.Factorize(block, mat.SVDNone); !ok {
		return 0, errors.New("sensitivity: leadfield decomposition failed")
	}

	values := svd.Values(nil)
	if len(values) == 0 {
		return 0, nil
	}

	return values[0], nil
}

func normalizeMax(out []float64) {
	maxVal := 0.0

	for _, v := range out {
		if v > maxVal {
			maxVal = v
		}
	}

	if maxVal == 0 {
		return
	}

	for i := range out {
		out[i] /= maxVal
	}
}

func norm(x []float64) float64 {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}

	return math.Sqrt(sum)
}
