package spectral

import (
	"math"
)

// HannWindow returns the periodic Hann window of the given size.
//
// The periodic variant (denominator `size`, not `size-1`) sums to a
// constant when frames overlap at half the window size, which is what
// the overlap-add reconstruction in this module relies on.
func HannWindow(size int) []float64 {
	window := make([]float64, size)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size)))
	}
	return window
}
