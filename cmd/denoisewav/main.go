package main

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/noisereduce/pkg/dsp/spectral"
	"github.com/xaionaro-go/noisereduce/pkg/noisesuppression/implementations/spectralsub"
	"github.com/xaionaro-go/noisereduce/pkg/session"
	"github.com/xaionaro-go/noisereduce/pkg/wav"
)

func main() {
	loggerLevel := logger.LevelInfo
	pflag.Var(&loggerLevel, "log-level", "Log level")
	modeFlag := pflag.String("mode", "single_speaker", "'single_speaker' or 'multiple_speakers'")
	noiseSecondsFlag := pflag.Float64("noise-seconds", 1.0, "length of the noise-only lead-in used for calibration")
	chunkSizeFlag := pflag.Uint("chunk-size", 2048, "samples per processing chunk")
	pflag.Parse()

	if pflag.NArg() != 2 {
		panic(fmt.Errorf("expected exactly two arguments: <input-file> <output-file>"))
	}

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	mode, err := session.ParseMode(*modeFlag)
	assertNoError(err)

	samples, sampleRate, err := wav.ReadFile(pflag.Arg(0))
	assertNoError(err)
	logger.Infof(ctx, "read %d frames at %dHz from '%s'", len(samples), sampleRate, pflag.Arg(0))

	chunkSize := int(*chunkSizeFlag)
	noiseSamples := int(*noiseSecondsFlag * float64(sampleRate))
	if noiseSamples > len(samples) {
		noiseSamples = len(samples)
	}

	profile, err := spectral.Calibrate([][]float64{samples[:noiseSamples]}, chunkSize)
	assertNoError(err)
	logger.Debugf(ctx, "calibrated a noise profile from %d frames", profile.FrameCount)

	params := mode.Parameters()
	engine, err := spectralsub.New(spectralsub.Config{
		SampleRate:      sampleRate,
		ChunkSize:       uint(chunkSize),
		LowCutoffHz:     params.LowCutoffHz,
		HighCutoffHz:    params.HighCutoffHz,
		FilterOrder:     4,
		Oversubtraction: params.Oversubtraction,
		FloorRatio:      params.FloorRatio,
	}, profile)
	assertNoError(err)
	defer engine.Close()

	writer, err := wav.NewWriter(pflag.Arg(1), sampleRate)
	assertNoError(err)

	dst := make([]float64, chunkSize)
	src := make([]float64, chunkSize)
	for offset := 0; offset < len(samples); offset += chunkSize {
		end := offset + chunkSize
		if end > len(samples) {
			end = len(samples)
		}
		n := copy(src, samples[offset:end])
		for i := n; i < chunkSize; i++ {
			src[i] = 0
		}
		assertNoError(engine.ProcessChunk(ctx, dst, src))
		assertNoError(writer.WriteSamples(dst[:n]))
	}

	tail := make([]float64, chunkSize/2)
	assertNoError(engine.Flush(ctx, tail))
	assertNoError(writer.WriteSamples(tail))
	assertNoError(writer.Close())

	logger.Infof(ctx, "wrote %d frames to '%s'", writer.SampleCount(), pflag.Arg(1))
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
