// Package segment slices multichannel recordings into analysis segments
// according to a duration policy. Segments are windows into the original
// signal; they are consumed immediately by the variance extractor and
// never persisted.
package segment

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-ssp/ssp/core"
)

// Errors returned by segment sampling.
var (
	ErrInsufficientData  = errors.New("segment: zero usable segments")
	ErrInvalidSampleRate = errors.New("segment: sample rate must be positive")
	ErrInvalidLength     = errors.New("segment: signal length must be positive")
)

// Recommended minimum number of observations per requested variance
// component before a too-few-samples warning is emitted.
const minSamplesPerComponent = 10

// Policy controls how a signal span is split into segments. All times are
// in seconds.
type Policy struct {
	// Duration is the segment length. Zero or negative treats the whole
	// span as a single segment.
	Duration float64

	// Stop truncates the usable span. Zero or negative uses the full
	// signal length.
	Stop float64
}

// Segment is a contiguous sample window [Start, Start+Length) shared by
// all channels.
type Segment struct {
	Start  int
	Length int
}

// Sample splits a signal of nTimes samples into segments following the
// policy. maxComponents is the largest per-class component count the
// caller intends to estimate from the result; when the usable sample
// count is too small for it, a non-fatal too-few-samples warning is
// returned alongside the segments.
//
// The final partial segment is dropped rather than zero-padded. A policy
// that produces no usable segment at all fails with ErrInsufficientData.
func Sample(nTimes int, sampleRate float64, p Policy, maxComponents int) ([]Segment, []core.Warning, error) {
	if nTimes <= 0 {
		return nil, nil, ErrInvalidLength
	}

	if sampleRate <= 0 {
		return nil, nil, ErrInvalidSampleRate
	}

	stop := nTimes
	if p.Stop > 0 {
		stop = int(math.Round(p.Stop * sampleRate))
		if stop > nTimes {
			stop = nTimes
		}
	}

	if stop <= 0 {
		return nil, nil, ErrInsufficientData
	}

	segLen := stop
	if p.Duration > 0 {
		segLen = int(math.Round(p.Duration * sampleRate))
	}

	if segLen <= 0 || segLen > stop {
		return nil, nil, ErrInsufficientData
	}

	count := stop / segLen
	segments := make([]Segment, count)

	for i := range segments {
		segments[i] = Segment{Start: i * segLen, Length: segLen}
	}

	var warnings []core.Warning

	if w := CheckObservationCount(count*segLen, maxComponents); w != nil {
		warnings = append(warnings, *w)
	}

	return segments, warnings, nil
}

// CheckObservationCount returns a non-fatal too-few-samples warning when
// rows observations are not enough to reliably estimate maxComponents
// variance components, or nil when the count is adequate.
func CheckObservationCount(rows, maxComponents int) *core.Warning {
	if maxComponents <= 0 || rows >= minSamplesPerComponent*maxComponents {
		return nil
	}

	return &core.Warning{
		Kind: core.WarnTooFewSamples,
		Message: fmt.Sprintf(
			"segment: too few samples (%d) to accurately estimate %d components, at least %d are recommended",
			rows, maxComponents, minSamplesPerComponent*maxComponents),
	}
}

// Slice returns the channel rows of data restricted to s. The returned
// rows are views into data, not copies.
func Slice(data [][]float64, s Segment) [][]float64 {
	out := make([][]float64, len(data))

	for i, row := range data {
		out[i] = row[s.Start : s.Start+s.Length]
	}

	return out
}
