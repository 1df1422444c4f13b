package filter

// State is the delay line of one audio stream being filtered. It is not
// safe for concurrent use; each stream owns its State, while the
// Coefficients may be shared between any number of streams.
type State struct {
	coefficients *Coefficients
	delays       [][2]float64
}

// NewState returns a fresh (silent history) delay line for the filter.
func (c *Coefficients) NewState() *State {
	return &State{
		coefficients: c,
		delays:       make([][2]float64, len(c.Sections)),
	}
}

// Process filters src into dst, which must have the same length
// (dst may be the same slice as src). The delay line carries over
// between calls, so processing a signal in chunks produces exactly
// the same output as processing it in one call.
func (s *State) Process(dst []float64, src []float64) {
	if len(dst) != len(src) {
		panic("dst and src lengths differ")
	}

	sections := s.coefficients.Sections
	for i, x := range src {
		for j := range sections {
			sec := &sections[j]
			z := &s.delays[j]
			y := sec.B0*x + z[0]
			z[0] = sec.B1*x - sec.A1*y + z[1]
			z[1] = sec.B2*x - sec.A2*y
			x = y
		}
		dst[i] = x
	}
}

// Reset clears the delay line, as if no samples were ever processed.
func (s *State) Reset() {
	for i := range s.delays {
		s.delays[i] = [2]float64{}
	}
}
