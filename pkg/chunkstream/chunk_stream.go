// Package chunkstream slices a continuous PCM byte stream into
// fixed-size chunks of float64 samples. A background goroutine drains
// the source into a bounded circular buffer, so a slow consumer applies
// backpressure instead of losing audio.
package chunkstream

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/iamcalledrob/circular"
	"github.com/xaionaro-go/noisereduce/pkg/audio"
	"github.com/xaionaro-go/observability"
)

type ChunkStream struct {
	ChunkSize uint // in samples

	encoding       audio.Encoding
	bytesPerSample uint
	cancelFunc     context.CancelFunc

	locker      sync.Mutex
	buffer      *circular.Buffer
	resultError error
	inputDone   bool

	readProgressedCh    chan struct{}
	consumeProgressedCh chan struct{}
}

var _ io.Closer = (*ChunkStream)(nil)

// New starts draining input into a circular buffer of bufferSize bytes.
// The input is expected to be mono float32 little-endian PCM, matching
// what the suppression engines consume.
func New(
	ctx context.Context,
	input io.Reader,
	encoding audio.Encoding,
	chunkSize uint,
	bufferSize uint,
) (*ChunkStream, error) {
	if chunkSize == 0 {
		return nil, fmt.Errorf("chunk size is zero")
	}
	bytesPerSample := encoding.BytesPerSample()
	if bytesPerSample != 4 {
		return nil, fmt.Errorf("unsupported sample size: %d bytes", bytesPerSample)
	}
	if bufferSize < chunkSize*bytesPerSample {
		return nil, fmt.Errorf("the buffer (%d bytes) cannot hold even one chunk (%d bytes)", bufferSize, chunkSize*bytesPerSample)
	}

	ctx, cancelFunc := context.WithCancel(ctx)
	s := &ChunkStream{
		ChunkSize:      chunkSize,
		encoding:       encoding,
		bytesPerSample: bytesPerSample,
		cancelFunc:     cancelFunc,
		buffer:         circular.NewBuffer(int(bufferSize)),

		readProgressedCh:    make(chan struct{}),
		consumeProgressedCh: make(chan struct{}),
	}
	observability.Go(ctx, func(ctx context.Context) {
		err := s.readerLoop(ctx, input)
		s.locker.Lock()
		defer s.locker.Unlock()
		if err != nil && s.resultError == nil {
			s.resultError = fmt.Errorf("got an error from the reader loop: %w", err)
		}
		s.inputDone = true
		s.signalReadProgressed()
	})
	return s, nil
}

func (s *ChunkStream) readerLoop(
	ctx context.Context,
	input io.Reader,
) (_err error) {
	logger.Tracef(ctx, "readerLoop")
	defer func() { logger.Tracef(ctx, "/readerLoop: %v", _err) }()

	readBuf := make([]byte, 65536)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := input.Read(readBuf)
		if n < 0 {
			return fmt.Errorf("received invalid value of received bytes: %d", n)
		}
		if n%int(s.bytesPerSample) != 0 {
			return fmt.Errorf("received a message of size %d that is not a multiple of the sample size %d", n, s.bytesPerSample)
		}
		if n > 0 {
			if bufErr := s.bufferChunk(ctx, readBuf[:n]); bufErr != nil {
				return bufErr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("unable to read the input: %w", err)
		}
	}
}

func (s *ChunkStream) bufferChunk(ctx context.Context, data []byte) error {
	s.locker.Lock()
	defer s.locker.Unlock()
	for len(data) > 0 {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		w, err := s.buffer.Write(data)
		if err != nil && !errors.Is(err, circular.ErrNoSpace) {
			return fmt.Errorf("unable to write to the circular buffer: %w", err)
		}
		if w > 0 {
			data = data[w:]
			s.signalReadProgressed()
		}
		if len(data) == 0 {
			return nil
		}
		s.waitForConsumeProgressed(ctx)
	}
	return nil
}

func (s *ChunkStream) signalReadProgressed() {
	oldCh := s.readProgressedCh
	s.readProgressedCh = make(chan struct{})
	close(oldCh)
}

func (s *ChunkStream) signalConsumeProgressed() {
	oldCh := s.consumeProgressedCh
	s.consumeProgressedCh = make(chan struct{})
	close(oldCh)
}

func (s *ChunkStream) waitForConsumeProgressed(ctx context.Context) {
	ch := s.consumeProgressedCh
	s.locker.Unlock()
	defer s.locker.Lock()
	select {
	case <-ctx.Done():
	case <-ch:
	}
}

func (s *ChunkStream) waitForReadProgressed(ctx context.Context) {
	ch := s.readProgressedCh
	s.locker.Unlock()
	defer s.locker.Lock()
	select {
	case <-ctx.Done():
	case <-ch:
	}
}

// ReadChunk blocks until a full chunk is available and returns it as
// float64 samples. When the input ends, the leftover samples (if any)
// are returned as one final short chunk, and every call after that
// returns io.EOF.
func (s *ChunkStream) ReadChunk(ctx context.Context) (_ret []float64, _err error) {
	logger.Tracef(ctx, "ReadChunk")
	defer func() { logger.Tracef(ctx, "/ReadChunk: %d, %v", len(_ret), _err) }()

	chunkBytes := int(s.ChunkSize * s.bytesPerSample)
	buf := make([]byte, chunkBytes)
	received := 0

	s.locker.Lock()
	defer s.locker.Unlock()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		n, err := s.buffer.Read(buf[received:])
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("unable to read from the circular buffer: %w", err)
		}
		if n > 0 {
			received += n
			s.signalConsumeProgressed()
		}
		if received == chunkBytes {
			break
		}
		if s.inputDone {
			if s.resultError != nil {
				return nil, s.resultError
			}
			if received == 0 {
				return nil, io.EOF
			}
			buf = buf[:received]
			break
		}
		s.waitForReadProgressed(ctx)
	}

	samples := make([]float64, len(buf)/int(s.bytesPerSample))
	for i := range samples {
		bits := binary.LittleEndian.Uint32(buf[i*4:])
		samples[i] = float64(math.Float32frombits(bits))
	}
	return samples, nil
}

// Close stops the reader goroutine. Chunks already buffered can still
// be read; afterwards ReadChunk reports io.EOF.
func (s *ChunkStream) Close() error {
	s.cancelFunc()
	s.locker.Lock()
	defer s.locker.Unlock()
	s.inputDone = true
	s.signalReadProgressed()
	return nil
}
