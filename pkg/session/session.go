// Package session drives one noise-cancellation recording from
// calibration to the finished WAV file. A Session walks through
// idle → calibrating → countdown → recording → finalizing → idle,
// owns the noise profile and the engine state exclusively, and never
// shares them with another session.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/noisereduce/pkg/audio"
	"github.com/xaionaro-go/noisereduce/pkg/chunkstream"
	"github.com/xaionaro-go/noisereduce/pkg/dsp/filter"
	"github.com/xaionaro-go/noisereduce/pkg/dsp/spectral"
	"github.com/xaionaro-go/noisereduce/pkg/interpolation"
	interpolationfourier "github.com/xaionaro-go/noisereduce/pkg/interpolation/fourier"
	"github.com/xaionaro-go/noisereduce/pkg/noisesuppression/implementations/spectralsub"
	"github.com/xaionaro-go/noisereduce/pkg/wav"
)

// Config is accepted at session start and immutable afterwards.
type Config struct {
	Mode                Mode
	SampleRate          audio.SampleRate
	ChunkSize           uint
	Duration            time.Duration
	CalibrationDuration time.Duration
	OutputPath          string
	FilterOrder         int
}

func (cfg Config) withDefaults() Config {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 44100
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 2048
	}
	if cfg.FilterOrder == 0 {
		cfg.FilterOrder = 4
	}
	if cfg.CalibrationDuration == 0 {
		cfg.CalibrationDuration = time.Second
	}
	return cfg
}

// Result summarizes a finished (or truncated) recording.
type Result struct {
	FramesWritten uint64
	AudioDuration time.Duration
	DroppedChunks uint64
	Truncated     bool
}

// Session is the per-recording state machine. All methods are safe for
// concurrent use, but Calibrate and Record each occupy the session
// exclusively for their duration.
type Session struct {
	Config       Config
	Interpolator interpolation.Interpolator

	locker  sync.Mutex
	state   State
	profile *spectral.NoiseProfile
}

// New validates the configuration and returns an idle session. All
// setup-time failures (an unrealizable passband, a zero duration)
// surface here, before any audio is captured.
func New(cfg Config) (*Session, error) {
	cfg = cfg.withDefaults()
	if cfg.Duration <= 0 {
		return nil, fmt.Errorf("the recording duration must be positive, got %s", cfg.Duration)
	}
	if cfg.OutputPath == "" {
		return nil, fmt.Errorf("an output path is required")
	}
	if cfg.ChunkSize%2 != 0 {
		return nil, fmt.Errorf("the chunk size must be even, got %d", cfg.ChunkSize)
	}

	params := cfg.Mode.Parameters()
	if _, err := filter.Design(params.LowCutoffHz, params.HighCutoffHz, cfg.SampleRate, cfg.FilterOrder); err != nil {
		return nil, err
	}

	return &Session{
		Config:       cfg,
		Interpolator: interpolationfourier.New(),
		state:        StateIdle,
	}, nil
}

// State reports the current lifecycle phase.
func (s *Session) State() State {
	s.locker.Lock()
	defer s.locker.Unlock()
	return s.state
}

// Ready reports whether calibration finished and the session is
// waiting for Record.
func (s *Session) Ready() bool {
	return s.State() == StateCountdown
}

func (s *Session) transition(from, to State) error {
	s.locker.Lock()
	defer s.locker.Unlock()
	if s.state != from {
		return fmt.Errorf("the session is %s, not %s", s.state, from)
	}
	s.state = to
	return nil
}

func (s *Session) setState(to State) {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.state = to
}

func (s *Session) encoding() audio.EncodingPCM {
	return audio.EncodingPCM{
		PCMFormat:  audio.PCMFormatFloat32LE,
		SampleRate: s.Config.SampleRate,
	}
}

func (s *Session) chunkBufferSize() uint {
	return s.Config.ChunkSize * 4 * 8
}

// Calibrate consumes CalibrationDuration of audio from input, which
// must contain no target signal (a protocol precondition the profiler
// cannot verify), and builds the session's noise profile. On success
// the session moves to the countdown phase.
func (s *Session) Calibrate(ctx context.Context, input io.Reader) (_err error) {
	logger.Debugf(ctx, "Calibrate")
	defer func() { logger.Debugf(ctx, "/Calibrate: %v", _err) }()

	if err := s.transition(StateIdle, StateCalibrating); err != nil {
		return err
	}
	defer func() {
		if _err != nil {
			s.setState(StateIdle)
		}
	}()

	stream, err := chunkstream.New(ctx, input, s.encoding(), s.Config.ChunkSize, s.chunkBufferSize())
	if err != nil {
		return fmt.Errorf("unable to start the calibration stream: %w", err)
	}
	defer stream.Close()

	targetSamples := uint64(s.Config.CalibrationDuration.Seconds() * float64(s.Config.SampleRate))
	var chunks [][]float64
	var collected uint64
	var chunkIndex uint64
	for collected < targetSamples {
		chunk, err := stream.ReadChunk(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return &StreamFailureError{Err: err}
		}
		chunkIndex++
		if reason := chunkDefect(chunk); reason != "" {
			logger.Warnf(ctx, "%v", &ChunkDroppedError{ChunkIndex: chunkIndex, Reason: reason})
			continue
		}
		chunks = append(chunks, chunk)
		collected += uint64(len(chunk))
	}

	profile, err := spectral.Calibrate(chunks, int(s.Config.ChunkSize))
	if err != nil {
		return err
	}
	logger.Debugf(ctx, "calibrated a noise profile from %d frames", profile.FrameCount)

	s.locker.Lock()
	defer s.locker.Unlock()
	s.profile = profile
	s.state = StateCountdown
	return nil
}

// Record pulls audio from input, suppresses noise chunk by chunk, and
// writes the result to Config.OutputPath. It stops once Duration of
// audio has been processed, the input ends, or ctx is cancelled; the
// cancellation takes effect at a chunk boundary, never mid-chunk.
//
// A fatal mid-stream failure is returned as a *StreamFailureError, but
// the output file is still finalized with everything processed so far.
func (s *Session) Record(ctx context.Context, input io.Reader) (_ret *Result, _err error) {
	logger.Debugf(ctx, "Record")
	defer func() { logger.Debugf(ctx, "/Record: %v, %v", _ret, _err) }()

	if err := s.transition(StateCountdown, StateRecording); err != nil {
		return nil, err
	}

	params := s.Config.Mode.Parameters()
	engine, err := spectralsub.New(spectralsub.Config{
		SampleRate:      s.Config.SampleRate,
		ChunkSize:       s.Config.ChunkSize,
		LowCutoffHz:     params.LowCutoffHz,
		HighCutoffHz:    params.HighCutoffHz,
		FilterOrder:     s.Config.FilterOrder,
		Oversubtraction: params.Oversubtraction,
		FloorRatio:      params.FloorRatio,
	}, s.profile)
	if err != nil {
		s.setState(StateIdle)
		return nil, fmt.Errorf("unable to construct the suppression engine: %w", err)
	}

	writer, err := wav.NewWriter(s.Config.OutputPath, s.Config.SampleRate)
	if err != nil {
		s.setState(StateIdle)
		return nil, err
	}

	stream, err := chunkstream.New(ctx, input, s.encoding(), s.Config.ChunkSize, s.chunkBufferSize())
	if err != nil {
		s.setState(StateIdle)
		_ = writer.Close()
		return nil, fmt.Errorf("unable to start the recording stream: %w", err)
	}
	defer stream.Close()

	result, failure := s.recordLoop(ctx, stream, engine, writer)

	// Finalizing preserves partial output even after a failure.
	s.setState(StateFinalizing)
	tail := make([]float64, s.Config.ChunkSize/2)
	if err := engine.Flush(ctx, tail); err == nil {
		if err := writer.WriteSamples(tail); err != nil && failure == nil {
			failure = &StreamFailureError{Err: err}
		}
	} else if failure == nil {
		failure = &StreamFailureError{Err: err}
	}
	if err := writer.Close(); err != nil && failure == nil {
		failure = &StreamFailureError{Err: err}
	}

	s.locker.Lock()
	s.profile = nil
	s.state = StateIdle
	s.locker.Unlock()

	result.FramesWritten = writer.SampleCount()
	if failure != nil {
		result.Truncated = true
		return result, failure
	}
	return result, nil
}

func (s *Session) recordLoop(
	ctx context.Context,
	stream *chunkstream.ChunkStream,
	engine *spectralsub.SpectralSub,
	writer *wav.Writer,
) (*Result, error) {
	chunkSize := int(s.Config.ChunkSize)
	targetSamples := uint64(s.Config.Duration.Seconds() * float64(s.Config.SampleRate))

	result := &Result{}
	dst := make([]float64, chunkSize)
	var processed uint64
	var chunkIndex uint64
	var prevChunk []float64
	var pendingGap int

	processChunk := func(chunk []float64) error {
		src := chunk
		if len(src) < chunkSize {
			// Final partial chunk: pad with silence for the transform,
			// truncate back to the actual length on output.
			src = make([]float64, chunkSize)
			copy(src, chunk)
		}
		if err := engine.ProcessChunk(ctx, dst, src); err != nil {
			return err
		}
		if err := writer.WriteSamples(dst[:len(chunk)]); err != nil {
			return err
		}
		processed += uint64(len(chunk))
		return nil
	}

	for processed < targetSamples {
		select {
		case <-ctx.Done():
			result.Truncated = true
			result.AudioDuration = samplesToDuration(processed, s.Config.SampleRate)
			return result, nil
		default:
		}

		chunk, err := stream.ReadChunk(ctx)
		if errors.Is(err, io.EOF) {
			result.Truncated = true
			break
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			result.Truncated = true
			break
		}
		if err != nil {
			result.AudioDuration = samplesToDuration(processed, s.Config.SampleRate)
			return result, &StreamFailureError{Err: err}
		}

		chunkIndex++
		if len(chunk) == 0 {
			result.DroppedChunks++
			logger.Warnf(ctx, "%v", &ChunkDroppedError{ChunkIndex: chunkIndex, Reason: "zero-length chunk"})
			continue
		}
		if reason := chunkDefect(chunk); reason != "" {
			result.DroppedChunks++
			logger.Warnf(ctx, "%v", &ChunkDroppedError{ChunkIndex: chunkIndex, Reason: reason})
			if len(chunk) == chunkSize {
				pendingGap += chunkSize
			}
			continue
		}

		// A dropped chunk left a hole; synthesize a plausible bridge
		// from the neighbors so the output keeps its audio-time length.
		if pendingGap > 0 && prevChunk != nil && s.Interpolator != nil {
			bridge := s.Interpolator.Interpolate(prevChunk, chunk, pendingGap)
			for offset := 0; offset+chunkSize <= len(bridge); offset += chunkSize {
				if err := processChunk(bridge[offset : offset+chunkSize]); err != nil {
					result.AudioDuration = samplesToDuration(processed, s.Config.SampleRate)
					return result, &StreamFailureError{Err: err}
				}
			}
		}
		pendingGap = 0

		if err := processChunk(chunk); err != nil {
			result.AudioDuration = samplesToDuration(processed, s.Config.SampleRate)
			return result, &StreamFailureError{Err: err}
		}
		prevChunk = chunk
	}

	result.AudioDuration = samplesToDuration(processed, s.Config.SampleRate)
	return result, nil
}

func samplesToDuration(samples uint64, sampleRate audio.SampleRate) time.Duration {
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}

// chunkDefect reports why a chunk is unusable, or "" if it is fine.
func chunkDefect(chunk []float64) string {
	for i, v := range chunk {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Sprintf("non-finite sample at offset %d", i)
		}
	}
	return ""
}
