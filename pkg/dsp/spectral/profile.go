// Package spectral implements the frequency-domain half of the noise
// suppressor: estimating a noise fingerprint from a silent recording and
// subtracting it from the spectra of subsequent audio.
package spectral

import (
	"errors"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// ErrInsufficientCalibrationData is returned by Calibrate when the
// provided audio is shorter than a single transform frame.
var ErrInsufficientCalibrationData = errors.New("not enough calibration audio for a single transform frame")

// NoiseProfile is the averaged magnitude spectrum of background noise.
// Magnitudes holds one value per non-negative frequency bin, so its
// length is TransformSize/2+1.
type NoiseProfile struct {
	Magnitudes    []float64
	TransformSize int
	FrameCount    int
}

// Calibrate estimates a noise profile from audio known to contain no
// speech. The samples are split into Hann-windowed frames overlapping
// by half, and the magnitude spectra of all frames are averaged per bin.
//
// The chunks are treated as one contiguous signal; a trailing remainder
// shorter than transformSize is ignored.
func Calibrate(chunks [][]float64, transformSize int) (*NoiseProfile, error) {
	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}
	if total < transformSize {
		return nil, ErrInsufficientCalibrationData
	}

	samples := make([]float64, 0, total)
	for _, chunk := range chunks {
		samples = append(samples, chunk...)
	}

	window := HannWindow(transformSize)
	frame := make([]float64, transformSize)
	bins := transformSize/2 + 1

	profile := &NoiseProfile{
		Magnitudes:    make([]float64, bins),
		TransformSize: transformSize,
	}

	hop := transformSize / 2
	for offset := 0; offset+transformSize <= len(samples); offset += hop {
		for i := range frame {
			frame[i] = samples[offset+i] * window[i]
		}
		spectrum := fft.FFTReal(frame)
		for bin := 0; bin < bins; bin++ {
			profile.Magnitudes[bin] += cmplx.Abs(spectrum[bin])
		}
		profile.FrameCount++
	}

	for bin := range profile.Magnitudes {
		profile.Magnitudes[bin] /= float64(profile.FrameCount)
	}
	return profile, nil
}
