package wordlm

import "math"

// newPositionTable precomputes the sinusoidal positional encoding for every
// position up to maxT. Channel pairs share a frequency: even channels carry
// sin(p / 10000^(c/d)), odd channels cos with the same exponent. The table is
// deterministic, never trained, and shared read-only by every forward pass.
func newPositionTable(maxT, C int) []float32 {
	table := make([]float32, maxT*C)
	for pos := 0; pos < maxT; pos++ {
		for c := 0; c < C; c++ {
			denom := math.Pow(10000, float64(2*(c/2))/float64(C))
			val := float64(pos) / denom
			if c%2 == 0 {
				table[pos*C+c] = float32(math.Sin(val))
			} else {
				table[pos*C+c] = float32(math.Cos(val))
			}
		}
	}
	return table
}
