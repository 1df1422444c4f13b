package spectralsub

import (
	"context"
	"fmt"
	"unsafe"

	"github.com/facebookincubator/go-belt/tool/logger"
)

var floatSize = unsafe.Sizeof(float32(0))

// SuppressNoise is the byte-level entry point: input holds float32 PCM
// samples and must be a whole number of chunks. The return value is the
// fraction of signal energy retained after suppression.
func (s *SpectralSub) SuppressNoise(ctx context.Context, input []byte, outputVoice []byte) (_ret float64, _err error) {
	logger.Tracef(ctx, "SuppressNoise, len:%d", len(input))
	defer func() { logger.Tracef(ctx, "/SuppressNoise, len:%d: %v", len(input), _err) }()

	if len(input) != len(outputVoice) {
		return 0, fmt.Errorf("lengths of input and output slices are not equal: %d != %d", len(input), len(outputVoice))
	}
	if len(input) < int(s.ChunkSize()) {
		return 0, fmt.Errorf("the size of the input is too small: %d < %d", len(input), s.ChunkSize())
	}
	if len(input)%int(s.ChunkSize()) != 0 {
		return 0, fmt.Errorf("the size of the input is not a multiple of ChunkSize: %d %% %d != 0", len(input), s.ChunkSize())
	}

	in := unsafe.Slice((*float32)(unsafe.Pointer(unsafe.SliceData(input))), len(input)/int(floatSize))
	out := unsafe.Slice((*float32)(unsafe.Pointer(unsafe.SliceData(outputVoice))), len(outputVoice)/int(floatSize))

	n := int(s.Config.ChunkSize)
	src := make([]float64, n)
	dst := make([]float64, n)

	var inputEnergy, outputEnergy float64
	for offset := 0; offset < len(in); offset += n {
		for i := 0; i < n; i++ {
			src[i] = float64(in[offset+i])
			inputEnergy += src[i] * src[i]
		}
		if err := s.ProcessChunk(ctx, dst, src); err != nil {
			return 0, err
		}
		for i := 0; i < n; i++ {
			out[offset+i] = float32(dst[i])
			outputEnergy += dst[i] * dst[i]
		}
	}

	if inputEnergy == 0 {
		return 1, nil
	}
	retained := outputEnergy / inputEnergy
	if retained > 1 {
		retained = 1
	}
	return retained, nil
}
