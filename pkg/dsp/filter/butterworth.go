// Package filter designs digital Butterworth band-pass filters suitable
// for streaming: the coefficients are immutable and shareable, while the
// delay line lives in a separate per-stream State.
package filter

import (
	"fmt"
	"math"

	"github.com/xaionaro-go/noisereduce/pkg/audio/types"
)

// InvalidSpecError is returned by Design when the requested cutoffs or
// order cannot produce a realizable filter.
type InvalidSpecError struct {
	LowCutoffHz  float64
	HighCutoffHz float64
	SampleRate   types.SampleRate
	Order        int
	Reason       string
}

func (e *InvalidSpecError) Error() string {
	return fmt.Sprintf(
		"invalid filter spec (low:%.1fHz, high:%.1fHz, rate:%d, order:%d): %s",
		e.LowCutoffHz, e.HighCutoffHz, e.SampleRate, e.Order, e.Reason,
	)
}

// Section is one second-order filter section in normalized form
// (the a0 coefficient is already divided out). First-order sections
// are represented with B2 == A2 == 0.
type Section struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// Coefficients describe a band-pass filter as a cascade of Butterworth
// high-pass sections at the low cutoff followed by Butterworth low-pass
// sections at the high cutoff. The passband is maximally flat.
type Coefficients struct {
	Sections     []Section
	SampleRate   types.SampleRate
	LowCutoffHz  float64
	HighCutoffHz float64
	Order        int
}

// Design computes band-pass coefficients for the given passband.
//
// Constraints: 0 < lowCutoffHz < highCutoffHz < sampleRate/2 and order >= 1;
// any violation yields an *InvalidSpecError. The function is pure: equal
// inputs always produce equal coefficients.
func Design(
	lowCutoffHz float64,
	highCutoffHz float64,
	sampleRate types.SampleRate,
	order int,
) (*Coefficients, error) {
	specErr := func(reason string) error {
		return &InvalidSpecError{
			LowCutoffHz:  lowCutoffHz,
			HighCutoffHz: highCutoffHz,
			SampleRate:   sampleRate,
			Order:        order,
			Reason:       reason,
		}
	}
	if sampleRate == 0 {
		return nil, specErr("sample rate is zero")
	}
	if order < 1 {
		return nil, specErr("order is below 1")
	}
	if lowCutoffHz <= 0 {
		return nil, specErr("low cutoff is not positive")
	}
	if highCutoffHz <= lowCutoffHz {
		return nil, specErr("high cutoff is not above the low cutoff")
	}
	nyquist := float64(sampleRate) / 2
	if highCutoffHz >= nyquist {
		return nil, specErr("high cutoff is at or above the Nyquist frequency")
	}

	c := &Coefficients{
		SampleRate:   sampleRate,
		LowCutoffHz:  lowCutoffHz,
		HighCutoffHz: highCutoffHz,
		Order:        order,
	}
	c.Sections = append(c.Sections, butterworthCascade(lowCutoffHz, sampleRate, order, true)...)
	c.Sections = append(c.Sections, butterworthCascade(highCutoffHz, sampleRate, order, false)...)
	return c, nil
}

// butterworthCascade builds an order-N Butterworth high-pass (or low-pass)
// as first/second-order sections with the standard pole Q values, each
// section obtained through the bilinear transform.
func butterworthCascade(
	cutoffHz float64,
	sampleRate types.SampleRate,
	order int,
	highpass bool,
) []Section {
	var sections []Section

	pairs := order / 2
	if order%2 == 1 {
		sections = append(sections, firstOrderSection(cutoffHz, sampleRate, highpass))
		for k := 0; k < pairs; k++ {
			q := 1 / (2 * math.Cos(math.Pi*float64(k+1)/float64(order)))
			sections = append(sections, biquadSection(cutoffHz, sampleRate, q, highpass))
		}
		return sections
	}

	for k := 0; k < pairs; k++ {
		q := 1 / (2 * math.Sin(math.Pi*float64(2*k+1)/float64(2*order)))
		sections = append(sections, biquadSection(cutoffHz, sampleRate, q, highpass))
	}
	return sections
}

func biquadSection(
	cutoffHz float64,
	sampleRate types.SampleRate,
	q float64,
	highpass bool,
) Section {
	w0 := 2 * math.Pi * cutoffHz / float64(sampleRate)
	cosW0 := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)

	a0 := 1 + alpha
	s := Section{
		A1: -2 * cosW0 / a0,
		A2: (1 - alpha) / a0,
	}
	if highpass {
		s.B0 = (1 + cosW0) / 2 / a0
		s.B1 = -(1 + cosW0) / a0
		s.B2 = (1 + cosW0) / 2 / a0
	} else {
		s.B0 = (1 - cosW0) / 2 / a0
		s.B1 = (1 - cosW0) / a0
		s.B2 = (1 - cosW0) / 2 / a0
	}
	return s
}

func firstOrderSection(
	cutoffHz float64,
	sampleRate types.SampleRate,
	highpass bool,
) Section {
	k := math.Tan(math.Pi * cutoffHz / float64(sampleRate))
	norm := 1 / (k + 1)
	if highpass {
		return Section{
			B0: norm,
			B1: -norm,
			A1: (k - 1) * norm,
		}
	}
	return Section{
		B0: k * norm,
		B1: k * norm,
		A1: (k - 1) * norm,
	}
}

// Response returns the magnitude of the filter's frequency response at
// the given frequency (1.0 means the frequency passes unattenuated).
func (c *Coefficients) Response(freqHz float64) float64 {
	w := 2 * math.Pi * freqHz / float64(c.SampleRate)
	z1 := complex(math.Cos(-w), math.Sin(-w))
	z2 := z1 * z1

	magnitude := 1.0
	for _, s := range c.Sections {
		num := complex(s.B0, 0) + complex(s.B1, 0)*z1 + complex(s.B2, 0)*z2
		den := complex(1, 0) + complex(s.A1, 0)*z1 + complex(s.A2, 0)*z2
		h := num / den
		magnitude *= math.Hypot(real(h), imag(h))
	}
	return magnitude
}
