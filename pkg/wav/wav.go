// Package wav reads and writes mono 16-bit PCM WAV files, converting
// between the on-disk integer samples and the float64 samples the
// processing pipeline works with.
package wav

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
	"github.com/xaionaro-go/noisereduce/pkg/audio"
)

const (
	bitDepth  = 16
	maxSample = 1<<(bitDepth-1) - 1
)

// Writer streams float64 samples into a WAV file. The header is
// finalized on Close, so an unclosed Writer leaves an invalid file.
type Writer struct {
	file        *os.File
	encoder     *gowav.Encoder
	sampleCount uint64
}

func NewWriter(path string, sampleRate audio.SampleRate) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create '%s': %w", path, err)
	}
	return &Writer{
		file:    file,
		encoder: gowav.NewEncoder(file, int(sampleRate), bitDepth, 1, 1),
	}, nil
}

// WriteSamples appends samples to the file. Values outside [-1, 1] are
// clipped.
func (w *Writer) WriteSamples(samples []float64) error {
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  w.encoder.SampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: bitDepth,
	}
	for i, v := range samples {
		if v > 1 {
			v = 1
		}
		if v < -1 {
			v = -1
		}
		buf.Data[i] = int(v * maxSample)
	}
	if err := w.encoder.Write(buf); err != nil {
		return fmt.Errorf("unable to write %d samples: %w", len(samples), err)
	}
	w.sampleCount += uint64(len(samples))
	return nil
}

// SampleCount reports how many samples were written so far.
func (w *Writer) SampleCount() uint64 {
	return w.sampleCount
}

// Close finalizes the WAV header and closes the file. The file is
// valid (and its real duration is known) only after Close returns.
func (w *Writer) Close() error {
	if err := w.encoder.Close(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("unable to finalize the WAV header: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("unable to close the file: %w", err)
	}
	return nil
}

// ReadFile loads a whole WAV file as float64 samples in [-1, 1].
// Multi-channel files are downmixed to mono by averaging.
func ReadFile(path string) ([]float64, audio.SampleRate, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("unable to open '%s': %w", path, err)
	}
	defer file.Close()

	decoder := gowav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("'%s' is not a valid WAV file", path)
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("unable to read the PCM data of '%s': %w", path, err)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		return nil, 0, fmt.Errorf("'%s' reports %d channels", path, channels)
	}
	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = bitDepth
	}
	scale := 1 / float64(uint64(1)<<(depth-1))

	samples := make([]float64, len(buf.Data)/channels)
	for i := range samples {
		sum := 0.0
		for ch := 0; ch < channels; ch++ {
			sum += float64(buf.Data[i*channels+ch])
		}
		samples[i] = sum / float64(channels) * scale
	}
	return samples, audio.SampleRate(buf.Format.SampleRate), nil
}
