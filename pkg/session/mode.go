package session

import (
	"fmt"
)

// Mode selects what the suppression should preserve: a single dominant
// voice, or everything voiced from several speakers.
type Mode uint8

const (
	ModeSingleSpeaker Mode = iota
	ModeMultipleSpeakers
)

func (m Mode) String() string {
	switch m {
	case ModeSingleSpeaker:
		return "single_speaker"
	case ModeMultipleSpeakers:
		return "multiple_speakers"
	}
	return fmt.Sprintf("unknown_mode_%d", uint8(m))
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "single_speaker", "single":
		return ModeSingleSpeaker, nil
	case "multiple_speakers", "multiple":
		return ModeMultipleSpeakers, nil
	}
	return 0, fmt.Errorf("unknown mode '%s', expected 'single_speaker' or 'multiple_speakers'", s)
}

// ModeParameters is the suppression tuning implied by a Mode.
type ModeParameters struct {
	LowCutoffHz     float64
	HighCutoffHz    float64
	Oversubtraction float64
	FloorRatio      float64
}

// Parameters maps the mode to its passband and aggressiveness. The
// single-speaker mode keeps only the telephone voice band and subtracts
// hard; the multiple-speakers mode keeps a wide band and subtracts
// gently to preserve different voice timbres.
func (m Mode) Parameters() ModeParameters {
	switch m {
	case ModeMultipleSpeakers:
		return ModeParameters{
			LowCutoffHz:     80,
			HighCutoffHz:    8000,
			Oversubtraction: 1.2,
			FloorRatio:      0.05,
		}
	default:
		return ModeParameters{
			LowCutoffHz:     300,
			HighCutoffHz:    3400,
			Oversubtraction: 2.0,
			FloorRatio:      0.02,
		}
	}
}
