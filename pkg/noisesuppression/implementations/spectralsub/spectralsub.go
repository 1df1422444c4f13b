// Package spectralsub is a pure-Go noise suppression engine built on
// spectral subtraction: a band-pass filter narrows the audio to the
// voice band, then a calibrated noise fingerprint is subtracted from
// the magnitude spectrum of every frame.
//
// Frames of one chunk length are taken at half-chunk hops under a
// periodic Hann window and recombined by overlap-add, so chunk
// boundaries introduce no discontinuities. The price is a fixed delay
// of half a chunk between input and output; Flush recovers the tail.
package spectralsub

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/mjibson/go-dsp/fft"
	"github.com/xaionaro-go/noisereduce/pkg/audio"
	"github.com/xaionaro-go/noisereduce/pkg/dsp/filter"
	"github.com/xaionaro-go/noisereduce/pkg/dsp/spectral"
	"github.com/xaionaro-go/noisereduce/pkg/noisesuppression"
)

// Config selects the band and the aggressiveness of the suppression.
type Config struct {
	SampleRate      audio.SampleRate
	ChunkSize       uint // samples per chunk, must be even
	LowCutoffHz     float64
	HighCutoffHz    float64
	FilterOrder     int
	Oversubtraction float64
	FloorRatio      float64
}

// SpectralSub suppresses stationary background noise in a mono stream
// of float64 samples (or their float32 PCM byte representation through
// the noisesuppression.NoiseSuppression interface).
type SpectralSub struct {
	Locker  sync.Mutex
	Config  Config
	Profile *spectral.NoiseProfile

	filterState *filter.State
	window      []float64

	// Overlap-add bookkeeping. inputTail is the last half-chunk of
	// filtered input (the start of the next frame), outputCarry the
	// partial overlap-add sums not yet final.
	inputTail   []float64
	outputCarry []float64

	filtered []float64
	frame    []float64
	flushed  bool
}

var _ noisesuppression.NoiseSuppression = (*SpectralSub)(nil)

func New(
	cfg Config,
	profile *spectral.NoiseProfile,
) (*SpectralSub, error) {
	if cfg.ChunkSize < 2 || cfg.ChunkSize%2 != 0 {
		return nil, fmt.Errorf("chunk size must be even and at least 2, got %d", cfg.ChunkSize)
	}
	if profile == nil {
		return nil, fmt.Errorf("a noise profile is required")
	}
	if profile.TransformSize != int(cfg.ChunkSize) {
		return nil, fmt.Errorf(
			"the noise profile was calibrated for transform size %d, but the chunk size is %d",
			profile.TransformSize, cfg.ChunkSize,
		)
	}

	coefficients, err := filter.Design(cfg.LowCutoffHz, cfg.HighCutoffHz, cfg.SampleRate, cfg.FilterOrder)
	if err != nil {
		return nil, fmt.Errorf("unable to design the band-pass filter: %w", err)
	}

	n := int(cfg.ChunkSize)
	return &SpectralSub{
		Config:      cfg,
		Profile:     profile,
		filterState: coefficients.NewState(),
		window:      spectral.HannWindow(n),
		inputTail:   make([]float64, n/2),
		outputCarry: make([]float64, n/2),
		filtered:    make([]float64, n),
		frame:       make([]float64, n),
	}, nil
}

func (s *SpectralSub) Close() error {
	return nil
}

func (s *SpectralSub) Encoding(context.Context) (audio.Encoding, error) {
	return audio.EncodingPCM{
		PCMFormat:  audio.PCMFormatFloat32LE,
		SampleRate: s.Config.SampleRate,
	}, nil
}

func (s *SpectralSub) Channels(context.Context) (audio.Channel, error) {
	return 1, nil
}

// ChunkSize is the chunk length in bytes of float32 PCM.
func (s *SpectralSub) ChunkSize() uint {
	return s.Config.ChunkSize * 4
}

// ProcessChunk consumes exactly one chunk of samples and produces
// exactly one chunk of cleaned-up samples. The output lags the input
// by half a chunk; the first call therefore begins with near-silence,
// and Flush emits the remaining half-chunk at the end of the stream.
func (s *SpectralSub) ProcessChunk(ctx context.Context, dst []float64, src []float64) (_err error) {
	logger.Tracef(ctx, "ProcessChunk, len:%d", len(src))
	defer func() { logger.Tracef(ctx, "/ProcessChunk: %v", _err) }()

	n := int(s.Config.ChunkSize)
	if len(src) != n {
		return fmt.Errorf("the input length is not one chunk: %d != %d", len(src), n)
	}
	if len(dst) != n {
		return fmt.Errorf("the output length is not one chunk: %d != %d", len(dst), n)
	}

	s.Locker.Lock()
	defer s.Locker.Unlock()
	if s.flushed {
		return fmt.Errorf("the stream was already flushed")
	}

	half := n / 2
	s.filterState.Process(s.filtered, src)

	// Frame A starts half a chunk back, frame B at the chunk boundary.
	copy(s.frame[:half], s.inputTail)
	copy(s.frame[half:], s.filtered[:half])
	frameA, err := s.denoiseFrame(s.frame)
	if err != nil {
		return err
	}
	frameB, err := s.denoiseFrame(s.filtered)
	if err != nil {
		return err
	}

	for i := 0; i < half; i++ {
		dst[i] = clip(s.outputCarry[i] + frameA[i])
		dst[half+i] = clip(frameA[half+i] + frameB[i])
	}
	copy(s.outputCarry, frameB[half:])
	copy(s.inputTail, s.filtered[half:])
	return nil
}

// Flush emits the last half-chunk of audio still held back by the
// overlap-add delay. The stream accepts no further chunks afterwards.
func (s *SpectralSub) Flush(ctx context.Context, dst []float64) (_err error) {
	logger.Tracef(ctx, "Flush")
	defer func() { logger.Tracef(ctx, "/Flush: %v", _err) }()

	half := int(s.Config.ChunkSize) / 2
	if len(dst) != half {
		return fmt.Errorf("the output length is not half a chunk: %d != %d", len(dst), half)
	}

	s.Locker.Lock()
	defer s.Locker.Unlock()
	if s.flushed {
		return fmt.Errorf("the stream was already flushed")
	}
	s.flushed = true

	// The final frame is the leftover tail padded with silence.
	copy(s.frame[:half], s.inputTail)
	for i := half; i < len(s.frame); i++ {
		s.frame[i] = 0
	}
	frame, err := s.denoiseFrame(s.frame)
	if err != nil {
		return err
	}
	for i := 0; i < half; i++ {
		dst[i] = clip(s.outputCarry[i] + frame[i])
	}
	return nil
}

func (s *SpectralSub) denoiseFrame(frame []float64) ([]float64, error) {
	windowed := make([]float64, len(frame))
	for i := range frame {
		windowed[i] = frame[i] * s.window[i]
	}
	spectrum := fft.FFTReal(windowed)
	err := spectral.Subtract(spectrum, s.Profile, s.Config.Oversubtraction, s.Config.FloorRatio)
	if err != nil {
		return nil, fmt.Errorf("unable to subtract the noise profile: %w", err)
	}
	timeDomain := fft.IFFT(spectrum)
	result := windowed[:0]
	for _, sample := range timeDomain {
		result = append(result, real(sample))
	}
	return result, nil
}

func clip(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
