package wordlm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoderForward(t *testing.T) {
	type args struct {
		inp  []int32
		wte  []float32
		pos  []float32
		T, C int
	}
	tests := []struct {
		name string
		args args
		want []float32
	}{
		{
			name: "adds embedding row and position row",
			args: args{
				inp: []int32{1, 0},
				wte: []float32{
					10, 20,
					30, 40,
				},
				pos: []float32{
					0, 1,
					0.5, 0.25,
				},
				T: 2, C: 2,
			},
			want: []float32{30, 41, 10.5, 20.25},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := make([]float32, tt.args.T*tt.args.C)
			encoderForward(out, tt.args.inp, tt.args.wte, tt.args.pos, tt.args.T, tt.args.C)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestEncoderBackward(t *testing.T) {
	// Two positions holding the same token id must both accumulate into its
	// embedding row.
	dout := []float32{1, 2, 3, 4}
	dwte := make([]float32, 4)
	encoderBackward(dwte, dout, []int32{1, 1}, 2, 2)
	assert.Equal(t, []float32{0, 0, 4, 6}, dwte)
}

func TestMatmulForward(t *testing.T) {
	type args struct {
		inp      []float32
		weight   []float32
		bias     []float32
		T, C, OC int
	}
	tests := []struct {
		name string
		args args
		want []float32
	}{
		{
			name: "out equals inp times transposed weight plus bias",
			args: args{
				inp: []float32{
					1, 2,
					3, 4,
				},
				weight: []float32{
					1, 0,
					0, 1,
					1, 1,
				},
				bias: []float32{10, 20, 30},
				T:    2, C: 2, OC: 3,
			},
			want: []float32{11, 22, 33, 13, 24, 37},
		},
		{
			name: "nil bias leaves the product alone",
			args: args{
				inp:    []float32{2, 3},
				weight: []float32{1, 1},
				T:      1, C: 2, OC: 1,
			},
			want: []float32{5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := make([]float32, tt.args.T*tt.args.OC)
			matmulForward(out, tt.args.inp, tt.args.weight, tt.args.bias, tt.args.T, tt.args.C, tt.args.OC)
			assert.InDeltaSlice(t, tt.want, out, 1e-6)
		})
	}
}

func TestMatmulBackward(t *testing.T) {
	// With an identity weight, dinp is just dout, dweight is doutᵀ @ inp and
	// dbias collects column sums.
	inp := []float32{1, 2, 3, 4}
	weight := []float32{1, 0, 0, 1}
	dout := []float32{1, 1, 2, 2}
	dinp := make([]float32, 4)
	dweight := make([]float32, 4)
	dbias := make([]float32, 2)
	matmulBackward(dinp, dweight, dbias, dout, inp, weight, 2, 2, 2)
	assert.InDeltaSlice(t, []float32{1, 1, 2, 2}, dinp, 1e-6)
	assert.InDeltaSlice(t, []float32{7, 10, 7, 10}, dweight, 1e-6)
	assert.InDeltaSlice(t, []float32{3, 3}, dbias, 1e-6)

	// A second call accumulates instead of overwriting.
	matmulBackward(dinp, dweight, dbias, dout, inp, weight, 2, 2, 2)
	assert.InDeltaSlice(t, []float32{2, 2, 4, 4}, dinp, 1e-6)
	assert.InDeltaSlice(t, []float32{6, 6}, dbias, 1e-6)
}

func TestAttentionForward(t *testing.T) {
	T, C := 3, 4
	q := []float32{
		0.3, -0.2, 0.7, 0.1,
		-0.5, 0.4, 0.2, -0.1,
		0.9, 0.0, -0.3, 0.6,
	}
	k := []float32{
		0.1, 0.8, -0.4, 0.2,
		0.6, -0.7, 0.3, 0.5,
		-0.2, 0.1, 0.9, -0.6,
	}
	v := []float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
	}
	out := make([]float32, T*C)
	scores := make([]float32, T*T)
	att := make([]float32, T*T)
	attentionForward(out, scores, att, q, k, v, T, C)

	// Every attention row is a distribution over all T positions.
	for row := 0; row < T; row++ {
		var sum float32
		for j := 0; j < T; j++ {
			w := att[row*T+j]
			assert.GreaterOrEqual(t, w, float32(0))
			sum += w
		}
		assert.InDelta(t, 1.0, float64(sum), 1e-5)
	}
	// Outputs are convex mixes of the value rows, so they stay inside the
	// per-channel value range.
	for row := 0; row < T; row++ {
		for c := 0; c < C; c++ {
			got := out[row*C+c]
			assert.GreaterOrEqual(t, got, v[c])
			assert.LessOrEqual(t, got, v[2*C+c])
		}
	}
}

func TestAttentionForwardUniformWhenKeysEqual(t *testing.T) {
	T, C := 2, 2
	q := []float32{0.4, -0.3, 1.2, 0.5}
	k := []float32{0.7, 0.7, 0.7, 0.7} // identical keys
	v := []float32{0, 2, 4, 6}
	out := make([]float32, T*C)
	scores := make([]float32, T*T)
	att := make([]float32, T*T)
	attentionForward(out, scores, att, q, k, v, T, C)
	for i := range att {
		assert.InDelta(t, 0.5, float64(att[i]), 1e-6)
	}
	assert.InDeltaSlice(t, []float32{2, 4, 2, 4}, out, 1e-5)
}

func TestLayernormForward(t *testing.T) {
	T, C := 2, 4
	inp := []float32{
		1, 2, 3, 4,
		-10, 0, 10, 20,
	}
	weight := []float32{1, 1, 1, 1}
	bias := []float32{0, 0, 0, 0}
	out := make([]float32, T*C)
	mean := make([]float32, T)
	rstd := make([]float32, T)
	layernormForward(out, mean, rstd, inp, weight, bias, T, C)
	for row := 0; row < T; row++ {
		var m, v float64
		for c := 0; c < C; c++ {
			m += float64(out[row*C+c])
		}
		m /= float64(C)
		for c := 0; c < C; c++ {
			d := float64(out[row*C+c]) - m
			v += d * d
		}
		v /= float64(C)
		assert.InDelta(t, 0.0, m, 1e-5)
		assert.InDelta(t, 1.0, v, 1e-3)
	}
	assert.InDelta(t, 2.5, float64(mean[0]), 1e-6)
	assert.InDelta(t, 5.0, float64(mean[1]), 1e-6)
}

func TestLayernormForwardAppliesScaleAndShift(t *testing.T) {
	inp := []float32{1, 3}
	weight := []float32{2, 2}
	bias := []float32{10, -10}
	out := make([]float32, 2)
	mean := make([]float32, 1)
	rstd := make([]float32, 1)
	layernormForward(out, mean, rstd, inp, weight, bias, 1, 2)
	// normalised row is close to [-1, 1]
	assert.InDelta(t, 8.0, float64(out[0]), 1e-3)
	assert.InDelta(t, -8.0, float64(out[1]), 1e-3)
}

func TestReluForwardBackward(t *testing.T) {
	inp := []float32{-2, -0.5, 0, 0.5, 2}
	out := make([]float32, len(inp))
	reluForward(out, inp, len(inp))
	assert.Equal(t, []float32{0, 0, 0, 0.5, 2}, out)

	dout := []float32{1, 1, 1, 1, 1}
	dinp := make([]float32, len(inp))
	reluBackward(dinp, inp, dout, len(inp))
	assert.Equal(t, []float32{0, 0, 0, 1, 1}, dinp)
}

func TestResidualForwardBackward(t *testing.T) {
	out := make([]float32, 3)
	residualForward(out, []float32{1, 2, 3}, []float32{10, 20, 30}, 3)
	assert.Equal(t, []float32{11, 22, 33}, out)

	dinp1 := make([]float32, 3)
	dinp2 := []float32{1, 1, 1}
	residualBackward(dinp1, dinp2, []float32{5, 6, 7}, 3)
	assert.Equal(t, []float32{5, 6, 7}, dinp1)
	assert.Equal(t, []float32{6, 7, 8}, dinp2)
}

func TestSoftmaxForward(t *testing.T) {
	type args struct {
		logits      []float32
		rows, width int
	}
	tests := []struct {
		name string
		args args
	}{
		{name: "ordinary logits", args: args{logits: []float32{1, 2, 3, -1, 0, 1}, rows: 2, width: 3}},
		{name: "large logits do not overflow", args: args{logits: []float32{1000, 1001, 999}, rows: 1, width: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probs := make([]float32, len(tt.args.logits))
			softmaxForward(probs, tt.args.logits, tt.args.rows, tt.args.width)
			for r := 0; r < tt.args.rows; r++ {
				var sum float64
				for i := 0; i < tt.args.width; i++ {
					p := probs[r*tt.args.width+i]
					require.False(t, math.IsNaN(float64(p)))
					assert.GreaterOrEqual(t, p, float32(0))
					sum += float64(p)
				}
				assert.InDelta(t, 1.0, sum, 1e-5)
			}
		})
	}
}

func TestSoftmaxForwardPreservesOrder(t *testing.T) {
	logits := []float32{0.5, 2.5, 1.5}
	probs := make([]float32, 3)
	softmaxForward(probs, logits, 1, 3)
	assert.Greater(t, probs[1], probs[2])
	assert.Greater(t, probs[2], probs[0])
}

func TestCrossEntropyForward(t *testing.T) {
	probs := []float32{0.1, 0.7, 0.2}
	loss := crossEntropyForward(probs, 1)
	assert.InDelta(t, -math.Log(0.7), float64(loss), 1e-5)

	// A zero probability is clamped rather than producing +Inf.
	loss = crossEntropyForward([]float32{1, 0}, 1)
	assert.False(t, math.IsInf(float64(loss), 1))
	assert.Greater(t, loss, float32(0))
}

func TestCrossentropySoftmaxBackward(t *testing.T) {
	probs := []float32{0.1, 0.7, 0.2}
	dlogits := make([]float32, 3)
	crossentropySoftmaxBackward(dlogits, probs, 1)
	assert.InDeltaSlice(t, []float32{0.1, -0.3, 0.2}, dlogits, 1e-6)
	// Gradient rows of a softmax cross-entropy sum to zero.
	assert.InDelta(t, 0.0, float64(dlogits[0]+dlogits[1]+dlogits[2]), 1e-6)
}
