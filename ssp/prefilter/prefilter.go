// Package prefilter restricts multichannel signals to an artifact band
// before projection vectors are estimated. Drift and reference artifacts
// live in narrow bands; limiting the input to that band keeps the variance
// decomposition from spending components on broadband content.
package prefilter

import (
	"errors"
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// Errors returned by prefiltering.
var (
	ErrInvalidSampleRate = errors.New("prefilter: sample rate must be positive")
	ErrInvalidBand       = errors.New("prefilter: band edges must satisfy low < high")
	ErrRaggedInput       = errors.New("prefilter: all channel rows must have the same length")
)

// BandLimit zeroes all spectral content outside [low, high] Hz, in place,
// for every channel row of data. A non-positive low disables the high-pass
// edge; a non-positive high disables the low-pass edge. With both edges
// disabled the data is left untouched.
//
// The restriction is zero-phase: each row is transformed, masked with
// conjugate symmetry preserved, and transformed back.
func BandLimit(data [][]float64, sampleRate, low, high float64) error {
	if sampleRate <= 0 {
		return ErrInvalidSampleRate
	}

	if low > 0 && high > 0 && low >= high {
		return ErrInvalidBand
	}

	if low <= 0 && high <= 0 {
		return nil
	}

	if len(data) == 0 || len(data[0]) == 0 {
		return nil
	}

	n := len(data[0])
	for _, row := range data {
		if len(row) != n {
			return ErrRaggedInput
		}
	}

	fftSize := nextPowerOf2(n)

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return fmt.Errorf("prefilter: failed to create FFT plan: %w", err)
	}

	binHz := sampleRate / float64(fftSize)

	timeBuf := make([]complex128, fftSize)
	freqBuf := make([]complex128, fftSize)

	for _, row := range data {
		for i := range timeBuf {
			if i < n {
				timeBuf[i] = complex(row[i], 0)
			} else {
				timeBuf[i] = 0
			}
		}

		err = plan.Forward(freqBuf, timeBuf)
		if err != nil {
			return fmt.Errorf("prefilter: forward FFT failed: %w", err)
		}

		// Mask bins outside the band; bin k and its mirror fftSize-k carry
		// conjugate content and must be zeroed together.
		for k := 0; k <= fftSize/2; k++ {
			freq := float64(k) * binHz

			keep := true
			if low > 0 && freq < low {
				keep = false
			}

			if high > 0 && freq > high {
				keep = false
			}

			if keep {
				continue
			}

			freqBuf[k] = 0
			if k > 0 && k < fftSize-k {
				freqBuf[fftSize-k] = 0
			}
		}

		err = plan.Inverse(timeBuf, freqBuf)
		if err != nil {
			return fmt.Errorf("prefilter: inverse FFT failed: %w", err)
		}

		for i := range row {
			row[i] = real(timeBuf[i])
		}
	}

	return nil
}

func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}

	p := 1
	for p < n {
		p <<= 1
	}

	return p
}
