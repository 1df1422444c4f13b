// Package noisesuppression defines the contract between audio transports
// and noise suppression engines: fixed-size PCM chunks in, cleaned-up
// chunks of the same size out.
package noisesuppression

import (
	"context"
	"io"

	"github.com/xaionaro-go/noisereduce/pkg/audio"
)

type NoiseSuppression interface {
	io.Closer

	Encoding(context.Context) (audio.Encoding, error)
	Channels(context.Context) (audio.Channel, error)
	ChunkSize() uint

	// SuppressNoise processes input into outputVoice (same length, a
	// multiple of ChunkSize) and reports the fraction of signal energy
	// that survived, 1.0 meaning nothing was removed.
	SuppressNoise(ctx context.Context, input []byte, outputVoice []byte) (float64, error)
}
