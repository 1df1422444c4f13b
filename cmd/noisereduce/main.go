package main

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/noisereduce/pkg/audio"
	_ "github.com/xaionaro-go/noisereduce/pkg/audio/backends/portaudio"
	_ "github.com/xaionaro-go/noisereduce/pkg/audio/backends/pulseaudio"
	"github.com/xaionaro-go/noisereduce/pkg/session"
)

func main() {
	loggerLevel := logger.LevelInfo
	pflag.Var(&loggerLevel, "log-level", "Log level")
	modeFlag := pflag.String("mode", "single_speaker", "'single_speaker' or 'multiple_speakers'")
	durationFlag := pflag.Duration("duration", 10*time.Second, "how much audio to record")
	outputFlag := pflag.String("output", "output.wav", "path of the resulting WAV file")
	sampleRateFlag := pflag.Uint32("sample-rate", 44100, "sample rate in Hz")
	chunkSizeFlag := pflag.Uint("chunk-size", 2048, "samples per processing chunk")
	calibrationFlag := pflag.Duration("calibration-duration", time.Second, "how much silence to sample for the noise profile")
	countdownFlag := pflag.Duration("countdown", 3*time.Second, "pause between calibration and recording")
	pflag.Parse()

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)
	ctx, stopSignal := signal.NotifyContext(ctx, os.Interrupt)
	defer stopSignal()

	mode, err := session.ParseMode(*modeFlag)
	assertNoError(err)

	cfg := session.Config{
		Mode:                mode,
		SampleRate:          audio.SampleRate(*sampleRateFlag),
		ChunkSize:           *chunkSizeFlag,
		Duration:            *durationFlag,
		CalibrationDuration: *calibrationFlag,
		OutputPath:          *outputFlag,
	}
	logger.Debugf(ctx, "config: %s", spew.Sdump(cfg))

	s, err := session.New(cfg)
	assertNoError(err)

	logger.Infof(ctx, "calibrating the noise profile, keep silent for %s...", cfg.CalibrationDuration)
	err = withCapture(ctx, cfg.SampleRate, func(input io.Reader) error {
		return s.Calibrate(ctx, input)
	})
	assertNoError(err)

	for remaining := *countdownFlag; remaining > 0 && ctx.Err() == nil; remaining -= time.Second {
		logger.Infof(ctx, "recording in %s...", remaining)
		sleep := time.Second
		if remaining < sleep {
			sleep = remaining
		}
		time.Sleep(sleep)
	}

	logger.Infof(ctx, "recording %s to '%s'...", cfg.Duration, cfg.OutputPath)
	var result *session.Result
	err = withCapture(ctx, cfg.SampleRate, func(input io.Reader) error {
		var recordErr error
		result, recordErr = s.Record(ctx, input)
		return recordErr
	})
	if result != nil {
		logger.Infof(
			ctx,
			"wrote %d frames (%s of audio, %d dropped chunks, truncated:%v) to '%s'",
			result.FramesWritten, result.AudioDuration, result.DroppedChunks, result.Truncated, cfg.OutputPath,
		)
	}
	assertNoError(err)
}

// withCapture runs fn with a reader of live mono float32 PCM, and tears
// the capture stream down afterwards. A fresh recorder is selected per
// phase since some backends tie the client's lifetime to the stream.
func withCapture(
	ctx context.Context,
	sampleRate audio.SampleRate,
	fn func(input io.Reader) error,
) error {
	recorder := audio.NewRecorderAuto(ctx)
	defer recorder.Close()
	logger.Infof(ctx, "capturing with %T", recorder.RecorderPCM)

	pipeReader, pipeWriter := io.Pipe()
	defer pipeReader.Close()

	wc := datacounter.NewWriterCounter(pipeWriter)
	stream, err := recorder.RecordPCM(ctx, sampleRate, 1, audio.PCMFormatFloat32LE, wc)
	if err != nil {
		return fmt.Errorf("unable to start the capture stream: %w", err)
	}
	defer func() {
		_ = stream.Close()
		_ = pipeWriter.Close()
		logger.Debugf(ctx, "captured %d bytes", wc.Count())
	}()

	return fn(pipeReader)
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
