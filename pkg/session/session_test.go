package session

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/noisereduce/pkg/dsp/spectral"
	"github.com/xaionaro-go/noisereduce/pkg/wav"
)

const (
	testRate      = 44100
	testChunkSize = 512
)

func testConfig(t *testing.T) Config {
	return Config{
		Mode:                ModeSingleSpeaker,
		SampleRate:          testRate,
		ChunkSize:           testChunkSize,
		Duration:            100 * time.Millisecond,
		CalibrationDuration: 50 * time.Millisecond,
		OutputPath:          filepath.Join(t.TempDir(), "out.wav"),
	}
}

func pcmBytes(samples []float64) []byte {
	buf := make([]byte, len(samples)*4)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
	}
	return buf
}

func noiseSamples(seed int64, count int, amplitude float64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	samples := make([]float64, count)
	for i := range samples {
		samples[i] = amplitude * (rng.Float64()*2 - 1)
	}
	return samples
}

func calibrated(t *testing.T, ctx context.Context, cfg Config) *Session {
	s, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Calibrate(ctx, bytes.NewReader(pcmBytes(noiseSamples(1, testRate/10, 0.05)))))
	require.True(t, s.Ready())
	return s
}

func TestNewValidation(t *testing.T) {
	t.Run("ZeroDuration", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Duration = 0
		_, err := New(cfg)
		require.Error(t, err)
	})

	t.Run("MissingOutputPath", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.OutputPath = ""
		_, err := New(cfg)
		require.Error(t, err)
	})

	t.Run("OddChunkSize", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.ChunkSize = 511
		_, err := New(cfg)
		require.Error(t, err)
	})

	t.Run("UnrealizablePassband", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.SampleRate = 8000 // single-speaker band reaches 3400Hz < 4000Hz, fine
		_, err := New(cfg)
		require.NoError(t, err)

		cfg.SampleRate = 4000 // now 3400Hz is above Nyquist
		_, err = New(cfg)
		require.Error(t, err)
	})

	t.Run("Defaults", func(t *testing.T) {
		s, err := New(Config{
			Duration:   time.Second,
			OutputPath: filepath.Join(t.TempDir(), "out.wav"),
		})
		require.NoError(t, err)
		assert.EqualValues(t, 44100, s.Config.SampleRate)
		assert.EqualValues(t, 2048, s.Config.ChunkSize)
		assert.Equal(t, 4, s.Config.FilterOrder)
		assert.Equal(t, time.Second, s.Config.CalibrationDuration)
	})
}

func TestStateMachine(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	s, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, s.State())
	assert.False(t, s.Ready())

	// Recording before calibration is rejected.
	_, err = s.Record(ctx, bytes.NewReader(nil))
	require.Error(t, err)

	require.NoError(t, s.Calibrate(ctx, bytes.NewReader(pcmBytes(noiseSamples(1, testRate/10, 0.05)))))
	assert.Equal(t, StateCountdown, s.State())
	assert.True(t, s.Ready())

	// Calibrating twice in a row is rejected.
	err = s.Calibrate(ctx, bytes.NewReader(pcmBytes(noiseSamples(2, testRate/10, 0.05))))
	require.Error(t, err)

	input := noiseSamples(3, testRate, 0.05)
	result, err := s.Record(ctx, bytes.NewReader(pcmBytes(input)))
	require.NoError(t, err)
	assert.Equal(t, StateIdle, s.State())
	assert.False(t, result.Truncated)
}

func TestCalibrateInsufficientData(t *testing.T) {
	ctx := context.Background()
	s, err := New(testConfig(t))
	require.NoError(t, err)

	err = s.Calibrate(ctx, bytes.NewReader(pcmBytes(noiseSamples(1, 100, 0.05))))
	require.ErrorIs(t, err, spectral.ErrInsufficientCalibrationData)
	assert.Equal(t, StateIdle, s.State())

	// The session remains usable: a proper calibration succeeds.
	require.NoError(t, s.Calibrate(ctx, bytes.NewReader(pcmBytes(noiseSamples(1, testRate/10, 0.05)))))
	assert.True(t, s.Ready())
}

func TestRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("FullDuration", func(t *testing.T) {
		cfg := testConfig(t)
		s := calibrated(t, ctx, cfg)

		// 100ms at 44100Hz is 4410 samples; the loop stops at the chunk
		// boundary after reaching it (9 chunks of 512 = 4608), plus the
		// half-chunk flush tail.
		input := noiseSamples(4, testRate/2, 0.05)
		result, err := s.Record(ctx, bytes.NewReader(pcmBytes(input)))
		require.NoError(t, err)

		expectedFrames := uint64(9*testChunkSize + testChunkSize/2)
		assert.Equal(t, expectedFrames, result.FramesWritten)
		assert.False(t, result.Truncated)
		assert.InDelta(t, float64(9*testChunkSize)/testRate, result.AudioDuration.Seconds(), 1e-6)

		samples, sampleRate, err := wav.ReadFile(cfg.OutputPath)
		require.NoError(t, err)
		assert.EqualValues(t, testRate, sampleRate)
		assert.Len(t, samples, int(expectedFrames))
	})

	t.Run("InputEndsEarly", func(t *testing.T) {
		cfg := testConfig(t)
		s := calibrated(t, ctx, cfg)

		// 1000 samples: one full chunk plus a final partial chunk that
		// must be zero-padded for the transform and truncated on output.
		input := noiseSamples(5, 1000, 0.05)
		result, err := s.Record(ctx, bytes.NewReader(pcmBytes(input)))
		require.NoError(t, err)

		assert.True(t, result.Truncated)
		assert.Equal(t, uint64(1000+testChunkSize/2), result.FramesWritten)
		assert.InDelta(t, 1000.0/testRate, result.AudioDuration.Seconds(), 1e-6)

		samples, _, err := wav.ReadFile(cfg.OutputPath)
		require.NoError(t, err)
		assert.Len(t, samples, 1000+testChunkSize/2)
	})

	t.Run("CancelledAtChunkBoundary", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Duration = time.Hour
		s := calibrated(t, ctx, cfg)

		pipeReader, pipeWriter := io.Pipe()
		go func() {
			data := pcmBytes(noiseSamples(6, 2*testChunkSize, 0.05))
			_, _ = pipeWriter.Write(data)
			// Keep the pipe open so the session has to act on the
			// cancellation rather than on EOF.
		}()

		recordCtx, cancelFunc := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancelFunc()
		result, err := s.Record(recordCtx, pipeReader)
		_ = pipeWriter.Close()
		require.NoError(t, err)

		assert.True(t, result.Truncated)
		assert.Equal(t, uint64(2*testChunkSize+testChunkSize/2), result.FramesWritten)
		assert.Equal(t, StateIdle, s.State())
	})

	t.Run("StreamFailurePreservesPartialOutput", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Duration = time.Hour
		s := calibrated(t, ctx, cfg)

		input := &brokenReader{
			data: pcmBytes(noiseSamples(7, 2*testChunkSize, 0.05)),
		}
		result, err := s.Record(ctx, input)
		require.Error(t, err)
		var failure *StreamFailureError
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, StateIdle, s.State())

		require.NotNil(t, result)
		assert.True(t, result.Truncated)
		assert.Equal(t, uint64(2*testChunkSize+testChunkSize/2), result.FramesWritten)

		samples, _, err := wav.ReadFile(cfg.OutputPath)
		require.NoError(t, err)
		assert.Len(t, samples, 2*testChunkSize+testChunkSize/2)
	})

	t.Run("MalformedChunkIsDroppedAndConcealed", func(t *testing.T) {
		cfg := testConfig(t)
		s := calibrated(t, ctx, cfg)

		good := noiseSamples(8, testChunkSize, 0.05)
		bad := make([]float64, testChunkSize)
		for i := range bad {
			bad[i] = math.NaN()
		}
		input := append(append(append([]float64{}, good...), bad...), good...)

		result, err := s.Record(ctx, bytes.NewReader(pcmBytes(input)))
		require.NoError(t, err)

		assert.EqualValues(t, 1, result.DroppedChunks)
		// The dropped chunk is replaced by interpolated audio, so the
		// output keeps the full three chunks of audio time.
		assert.Equal(t, uint64(3*testChunkSize+testChunkSize/2), result.FramesWritten)
	})
}

type brokenReader struct {
	data []byte
	pos  int
}

func (r *brokenReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, fmt.Errorf("the capture device vanished")
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("single_speaker")
	require.NoError(t, err)
	assert.Equal(t, ModeSingleSpeaker, mode)

	mode, err = ParseMode("multiple")
	require.NoError(t, err)
	assert.Equal(t, ModeMultipleSpeakers, mode)

	_, err = ParseMode("surround")
	require.Error(t, err)

	single := ModeSingleSpeaker.Parameters()
	multiple := ModeMultipleSpeakers.Parameters()
	assert.Greater(t, single.Oversubtraction, multiple.Oversubtraction)
	assert.Less(t, single.HighCutoffHz, multiple.HighCutoffHz)
}
