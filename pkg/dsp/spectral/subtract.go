package spectral

import (
	"fmt"
	"math/cmplx"
)

// ProfileSizeMismatchError is returned when a spectrum is subtracted
// against a profile calibrated for a different transform size.
type ProfileSizeMismatchError struct {
	SpectrumSize  int
	TransformSize int
}

func (e *ProfileSizeMismatchError) Error() string {
	return fmt.Sprintf(
		"spectrum size %d does not match the profile's transform size %d",
		e.SpectrumSize, e.TransformSize,
	)
}

// Subtract removes the noise fingerprint from a full complex spectrum
// in place. For each non-negative bin the magnitude becomes:
//
//	max(magnitude - oversubtraction*profile, floorRatio*magnitude)
//
// while the phase is kept as-is. The spectral floor prevents bins from
// collapsing to zero, which would otherwise come back as musical noise.
// The negative-frequency bins are rebuilt as conjugate mirrors so that
// the inverse transform stays real.
func Subtract(
	spectrum []complex128,
	profile *NoiseProfile,
	oversubtraction float64,
	floorRatio float64,
) error {
	if len(spectrum) != profile.TransformSize {
		return &ProfileSizeMismatchError{
			SpectrumSize:  len(spectrum),
			TransformSize: profile.TransformSize,
		}
	}

	bins := profile.TransformSize/2 + 1
	for bin := 0; bin < bins; bin++ {
		magnitude := cmplx.Abs(spectrum[bin])
		if magnitude == 0 {
			continue
		}
		reduced := magnitude - oversubtraction*profile.Magnitudes[bin]
		floor := floorRatio * magnitude
		if reduced < floor {
			reduced = floor
		}
		spectrum[bin] *= complex(reduced/magnitude, 0)
	}

	for bin := bins; bin < len(spectrum); bin++ {
		spectrum[bin] = cmplx.Conj(spectrum[len(spectrum)-bin])
	}
	return nil
}
