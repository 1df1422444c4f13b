package portaudio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
	"unsafe"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gordonklaus/portaudio"
	"github.com/xaionaro-go/noisereduce/pkg/audio/types"
	"github.com/xaionaro-go/observability"
)

const (
	RecordBufferSize = time.Millisecond * 100
)

type RecordPCMStream struct {
	PortAudioStream *portaudio.Stream
	InputBuffer     []byte
	CancelFunc      context.CancelFunc
	WaitGroup       sync.WaitGroup
}

func newRecordPCMStream[T any](
	ctx context.Context,
	sampleRate types.SampleRate,
	channels types.Channel,
) (*RecordPCMStream, error) {
	bufferItemsCount := int(RecordBufferSize.Seconds() * float64(sampleRate))

	var sample T
	buf := make([]T, bufferItemsCount*int(channels))
	logger.Debugf(ctx, "newRecordPCMStream: %T, %d, %d, %s (%d items)", sample, sampleRate, channels, RecordBufferSize, bufferItemsCount)
	stream, err := portaudio.OpenDefaultStream(int(channels), 0, float64(sampleRate), bufferItemsCount, buf)
	if err != nil {
		return nil, err
	}

	ptr := unsafe.SliceData(buf)
	bytesBuf := unsafe.Slice((*byte)(unsafe.Pointer(ptr)), len(buf)*int(unsafe.Sizeof(sample)))

	return &RecordPCMStream{
		PortAudioStream: stream,
		InputBuffer:     bytesBuf,
	}, nil
}

func (s *RecordPCMStream) init(
	ctx context.Context,
	writer io.Writer,
) error {
	ctx, s.CancelFunc = context.WithCancel(ctx)

	err := s.PortAudioStream.Start()
	if err != nil {
		return fmt.Errorf("unable to start the stream: %w", err)
	}

	s.WaitGroup.Add(1)
	observability.Go(ctx, func(ctx context.Context) {
		defer s.WaitGroup.Done()
		defer s.CancelFunc()
		if err := s.captureLoop(ctx, writer); err != nil {
			logger.Errorf(ctx, "the capture loop returned: %v", err)
		}
	})
	return nil
}

func (s *RecordPCMStream) captureLoop(
	ctx context.Context,
	writer io.Writer,
) (_ret error) {
	logger.Debugf(ctx, "captureLoop")
	defer func() { logger.Debugf(ctx, "/captureLoop: %v", _ret) }()

	outBuf := make([]byte, len(s.InputBuffer))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		logger.Tracef(ctx, "Read")
		err := s.PortAudioStream.Read()
		logger.Tracef(ctx, "/Read: %v", err)
		if err != nil {
			return fmt.Errorf("unable to read from the capture device: %w", err)
		}

		copy(outBuf, s.InputBuffer)
		n, err := writer.Write(outBuf)
		if err != nil {
			return fmt.Errorf("unable to write the captured samples: %w", err)
		}
		if n != len(outBuf) {
			return fmt.Errorf("invalid write length: %d != %d", n, len(outBuf))
		}
	}
}

func (s *RecordPCMStream) Close() error {
	s.CancelFunc()
	return s.PortAudioStream.Abort()
}

func (s *RecordPCMStream) Drain() error {
	s.WaitGroup.Wait()
	return nil
}
