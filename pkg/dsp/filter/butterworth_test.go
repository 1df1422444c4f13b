package filter

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/noisereduce/pkg/audio/types"
)

func TestDesign(t *testing.T) {
	t.Run("PassbandAndStopbands", func(t *testing.T) {
		c, err := Design(300, 3400, 44100, 4)
		require.NoError(t, err)

		// Mid-band passes almost unattenuated.
		assert.InDelta(t, 1.0, c.Response(1500), 0.01)

		// Way outside the passband the attenuation exceeds 20dB.
		assert.Less(t, c.Response(10), 0.1)
		assert.Less(t, c.Response(15000), 0.1)

		// The cutoffs themselves sit at roughly -3dB.
		assert.InDelta(t, math.Sqrt(0.5), c.Response(300), 0.1)
		assert.InDelta(t, math.Sqrt(0.5), c.Response(3400), 0.1)
	})

	t.Run("SectionCount", func(t *testing.T) {
		even, err := Design(300, 3400, 44100, 4)
		require.NoError(t, err)
		assert.Len(t, even.Sections, 4)

		odd, err := Design(300, 3400, 48000, 5)
		require.NoError(t, err)
		assert.Len(t, odd.Sections, 6)
	})

	t.Run("Deterministic", func(t *testing.T) {
		a, err := Design(80, 8000, 48000, 4)
		require.NoError(t, err)
		b, err := Design(80, 8000, 48000, 4)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("InvalidSpecs", func(t *testing.T) {
		for name, args := range map[string][4]float64{
			"InvertedCutoffs":  {3400, 300, 44100, 4},
			"EqualCutoffs":     {300, 300, 44100, 4},
			"NonPositiveLow":   {0, 3400, 44100, 4},
			"HighAboveNyquist": {300, 23000, 44100, 4},
			"ZeroOrder":        {300, 3400, 44100, 0},
			"ZeroSampleRate":   {300, 3400, 0, 4},
		} {
			t.Run(name, func(t *testing.T) {
				_, err := Design(args[0], args[1], types.SampleRate(args[2]), int(args[3]))
				require.Error(t, err)
				var specErr *InvalidSpecError
				assert.True(t, errors.As(err, &specErr))
			})
		}
	})
}

func TestState(t *testing.T) {
	c, err := Design(300, 3400, 44100, 4)
	require.NoError(t, err)

	signal := make([]float64, 4096)
	for i := range signal {
		tm := float64(i) / 44100
		signal[i] = 0.5*math.Sin(2*math.Pi*1000*tm) + 0.3*math.Sin(2*math.Pi*50*tm)
	}

	t.Run("ChunkedEqualsWhole", func(t *testing.T) {
		whole := make([]float64, len(signal))
		c.NewState().Process(whole, signal)

		chunked := make([]float64, len(signal))
		st := c.NewState()
		st.Process(chunked[:1000], signal[:1000])
		st.Process(chunked[1000:], signal[1000:])

		for i := range whole {
			require.InDelta(t, whole[i], chunked[i], 1e-12, "sample %d", i)
		}
	})

	t.Run("RejectsDC", func(t *testing.T) {
		dc := make([]float64, 44100)
		for i := range dc {
			dc[i] = 1.0
		}
		out := make([]float64, len(dc))
		c.NewState().Process(out, dc)

		// After the transient settles the output should be near zero.
		var tail float64
		for _, v := range out[len(out)-1000:] {
			tail += math.Abs(v)
		}
		assert.Less(t, tail/1000, 0.01)
	})

	t.Run("InPlace", func(t *testing.T) {
		expected := make([]float64, len(signal))
		c.NewState().Process(expected, signal)

		inPlace := make([]float64, len(signal))
		copy(inPlace, signal)
		c.NewState().Process(inPlace, inPlace)

		assert.Equal(t, expected, inPlace)
	})

	t.Run("Reset", func(t *testing.T) {
		first := make([]float64, len(signal))
		st := c.NewState()
		st.Process(first, signal)

		st.Reset()
		second := make([]float64, len(signal))
		st.Process(second, signal)

		assert.Equal(t, first, second)
	})
}
