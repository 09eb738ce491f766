package wordlm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPositionTable(t *testing.T) {
	maxT, C := 8, 6
	table := newPositionTable(maxT, C)
	assert.Len(t, table, maxT*C)

	// Position zero alternates sin(0)=0 and cos(0)=1.
	for c := 0; c < C; c++ {
		if c%2 == 0 {
			assert.Equal(t, float32(0), table[c])
		} else {
			assert.Equal(t, float32(1), table[c])
		}
	}

	// Each entry matches the closed form, and channel pairs share a
	// frequency.
	for pos := 0; pos < maxT; pos++ {
		for c := 0; c < C; c++ {
			denom := math.Pow(10000, float64(2*(c/2))/float64(C))
			want := math.Sin(float64(pos) / denom)
			if c%2 != 0 {
				want = math.Cos(float64(pos) / denom)
			}
			assert.InDelta(t, want, float64(table[pos*C+c]), 1e-6)
		}
	}

	// Everything stays in the sin/cos range.
	for _, v := range table {
		assert.LessOrEqual(t, float64(v), 1.0)
		assert.GreaterOrEqual(t, float64(v), -1.0)
	}
}

func TestNewPositionTableDeterministic(t *testing.T) {
	a := newPositionTable(16, 8)
	b := newPositionTable(16, 8)
	assert.Equal(t, a, b)
}

func TestNewPositionTableDistinctPositions(t *testing.T) {
	C := 8
	table := newPositionTable(4, C)
	for p := 0; p < 4; p++ {
		for q := p + 1; q < 4; q++ {
			assert.NotEqual(t, table[p*C:(p+1)*C], table[q*C:(q+1)*C])
		}
	}
}
