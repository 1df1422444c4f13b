package types

import (
	"fmt"
)

type SampleRate uint32

type Channel uint16

type PCMFormat uint8

const (
	PCMFormatUndefined = PCMFormat(iota)
	PCMFormatU8
	PCMFormatS16LE
	PCMFormatS32LE
	PCMFormatFloat32LE
	PCMFormatFloat64LE
)

func (f PCMFormat) String() string {
	switch f {
	case PCMFormatUndefined:
		return "<undefined>"
	case PCMFormatU8:
		return "u8"
	case PCMFormatS16LE:
		return "s16le"
	case PCMFormatS32LE:
		return "s32le"
	case PCMFormatFloat32LE:
		return "f32le"
	case PCMFormatFloat64LE:
		return "f64le"
	default:
		return fmt.Sprintf("<unexpected value: %d>", uint8(f))
	}
}

// Size returns the amount of bytes a single sample occupies.
func (f PCMFormat) Size() uint {
	switch f {
	case PCMFormatU8:
		return 1
	case PCMFormatS16LE:
		return 2
	case PCMFormatS32LE, PCMFormatFloat32LE:
		return 4
	case PCMFormatFloat64LE:
		return 8
	default:
		panic(fmt.Errorf("unknown format: %v", f))
	}
}
