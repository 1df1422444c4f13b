package main

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/binary"
	"math"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/noisereduce/pkg/audio"
	_ "github.com/xaionaro-go/noisereduce/pkg/audio/backends/oto"
	_ "github.com/xaionaro-go/noisereduce/pkg/audio/backends/pulseaudio"
	"github.com/xaionaro-go/noisereduce/pkg/wav"
)

func main() {
	loggerLevel := logger.LevelInfo
	pflag.Var(&loggerLevel, "log-level", "Log level")
	pflag.Parse()

	if pflag.NArg() != 1 {
		panic("expected exactly one positional argument: path to a WAV file")
	}
	filePath := pflag.Arg(0)

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	samples, sampleRate, err := wav.ReadFile(filePath)
	assertNoError(err)
	logger.Infof(ctx, "playing %d frames at %dHz from '%s'", len(samples), sampleRate, filePath)

	pcm := make([]byte, len(samples)*4)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(pcm[i*4:], math.Float32bits(float32(v)))
	}

	player := audio.NewPlayerAuto(ctx)
	defer player.Close()
	logger.Tracef(ctx, "player.PlayPCM")
	streamPlay, err := player.PlayPCM(ctx, sampleRate, 1, audio.PCMFormatFloat32LE, 100*time.Millisecond, bytes.NewReader(pcm))
	logger.Tracef(ctx, "/player.PlayPCM: %v", err)
	assertNoError(err)
	logger.Infof(ctx, "started (file -> %T)", player.PlayerPCM)
	assertNoError(streamPlay.Drain())
	assertNoError(streamPlay.Close())
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
