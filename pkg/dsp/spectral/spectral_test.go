package spectral

import (
	"errors"
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/mjibson/go-dsp/fft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHannWindow(t *testing.T) {
	window := HannWindow(512)
	require.Len(t, window, 512)
	assert.Zero(t, window[0])
	assert.InDelta(t, 1.0, window[256], 1e-12)

	// Frames overlapping by half the window must sum to a constant.
	for i := 0; i < 256; i++ {
		assert.InDelta(t, 1.0, window[i]+window[i+256], 1e-12)
	}
}

func TestCalibrate(t *testing.T) {
	t.Run("InsufficientData", func(t *testing.T) {
		_, err := Calibrate([][]float64{make([]float64, 100)}, 512)
		require.ErrorIs(t, err, ErrInsufficientCalibrationData)
	})

	t.Run("Silence", func(t *testing.T) {
		profile, err := Calibrate([][]float64{make([]float64, 2048)}, 512)
		require.NoError(t, err)
		require.Len(t, profile.Magnitudes, 257)
		assert.Equal(t, 512, profile.TransformSize)
		assert.Equal(t, 7, profile.FrameCount)
		for bin, magnitude := range profile.Magnitudes {
			assert.Zerof(t, magnitude, "bin %d", bin)
		}
	})

	t.Run("ChunksAreContiguous", func(t *testing.T) {
		samples := make([]float64, 2048)
		rng := rand.New(rand.NewSource(1))
		for i := range samples {
			samples[i] = rng.Float64()*2 - 1
		}

		whole, err := Calibrate([][]float64{samples}, 512)
		require.NoError(t, err)
		split, err := Calibrate([][]float64{samples[:700], samples[700:]}, 512)
		require.NoError(t, err)

		assert.Equal(t, whole, split)
	})

	t.Run("PureToneConcentratesInOneBin", func(t *testing.T) {
		samples := make([]float64, 4096)
		for i := range samples {
			// Bin 64 of a 512-point transform.
			samples[i] = math.Sin(2 * math.Pi * 64 * float64(i) / 512)
		}
		profile, err := Calibrate([][]float64{samples}, 512)
		require.NoError(t, err)

		peak := 0
		for bin, magnitude := range profile.Magnitudes {
			if magnitude > profile.Magnitudes[peak] {
				peak = bin
			}
		}
		assert.Equal(t, 64, peak)
	})
}

func TestSubtract(t *testing.T) {
	makeSpectrum := func(size int) []complex128 {
		samples := make([]float64, size)
		rng := rand.New(rand.NewSource(2))
		for i := range samples {
			samples[i] = rng.Float64()*2 - 1
		}
		return fft.FFTReal(samples)
	}

	t.Run("ZeroProfileIsPassthrough", func(t *testing.T) {
		spectrum := makeSpectrum(512)
		original := make([]complex128, len(spectrum))
		copy(original, spectrum)

		profile := &NoiseProfile{
			Magnitudes:    make([]float64, 257),
			TransformSize: 512,
		}
		require.NoError(t, Subtract(spectrum, profile, 2.0, 0.02))

		for bin := range spectrum {
			assert.InDeltaf(t, real(original[bin]), real(spectrum[bin]), 1e-9, "bin %d (real)", bin)
			assert.InDeltaf(t, imag(original[bin]), imag(spectrum[bin]), 1e-9, "bin %d (imag)", bin)
		}
	})

	t.Run("OverwhelmingProfileFloorsEveryBin", func(t *testing.T) {
		spectrum := makeSpectrum(512)
		original := make([]complex128, len(spectrum))
		copy(original, spectrum)

		profile := &NoiseProfile{
			Magnitudes:    make([]float64, 257),
			TransformSize: 512,
		}
		for bin := range profile.Magnitudes {
			profile.Magnitudes[bin] = 1e6
		}
		require.NoError(t, Subtract(spectrum, profile, 2.0, 0.02))

		for bin := 0; bin < 257; bin++ {
			assert.InDeltaf(t, 0.02*cmplx.Abs(original[bin]), cmplx.Abs(spectrum[bin]), 1e-9, "bin %d", bin)
		}
	})

	t.Run("PhaseIsPreserved", func(t *testing.T) {
		spectrum := makeSpectrum(512)
		original := make([]complex128, len(spectrum))
		copy(original, spectrum)

		profile := &NoiseProfile{
			Magnitudes:    make([]float64, 257),
			TransformSize: 512,
		}
		for bin := range profile.Magnitudes {
			profile.Magnitudes[bin] = 0.1
		}
		require.NoError(t, Subtract(spectrum, profile, 1.2, 0.05))

		for bin := 0; bin < 257; bin++ {
			if cmplx.Abs(spectrum[bin]) < 1e-9 {
				continue
			}
			assert.InDeltaf(t, cmplx.Phase(original[bin]), cmplx.Phase(spectrum[bin]), 1e-9, "bin %d", bin)
		}
	})

	t.Run("ConjugateSymmetry", func(t *testing.T) {
		spectrum := makeSpectrum(512)
		profile := &NoiseProfile{
			Magnitudes:    make([]float64, 257),
			TransformSize: 512,
		}
		for bin := range profile.Magnitudes {
			profile.Magnitudes[bin] = 0.1
		}
		require.NoError(t, Subtract(spectrum, profile, 2.0, 0.02))

		for _, sample := range fft.IFFT(spectrum) {
			assert.InDelta(t, 0, imag(sample), 1e-9)
		}
	})

	t.Run("SizeMismatch", func(t *testing.T) {
		profile := &NoiseProfile{
			Magnitudes:    make([]float64, 257),
			TransformSize: 512,
		}
		err := Subtract(make([]complex128, 256), profile, 2.0, 0.02)
		require.Error(t, err)
		var mismatchErr *ProfileSizeMismatchError
		require.True(t, errors.As(err, &mismatchErr))
		assert.Equal(t, 256, mismatchErr.SpectrumSize)
		assert.Equal(t, 512, mismatchErr.TransformSize)
	})
}
