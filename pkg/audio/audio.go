package audio

import (
	"github.com/xaionaro-go/noisereduce/pkg/audio/types"
)

type SampleRate = types.SampleRate
type Channel = types.Channel
type PCMFormat = types.PCMFormat
type Encoding = types.Encoding
type EncodingPCM = types.EncodingPCM
type Stream = types.Stream
type PlayStream = types.PlayStream
type RecordStream = types.RecordStream
type RecorderPCM = types.RecorderPCM
type PlayerPCM = types.PlayerPCM

const (
	PCMFormatUndefined = types.PCMFormatUndefined
	PCMFormatU8        = types.PCMFormatU8
	PCMFormatS16LE     = types.PCMFormatS16LE
	PCMFormatS32LE     = types.PCMFormatS32LE
	PCMFormatFloat32LE = types.PCMFormatFloat32LE
	PCMFormatFloat64LE = types.PCMFormatFloat64LE
)
