package wordlm

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// general wraps a row-major float32 matrix for the BLAS calls below.
func general(rows, cols int, data []float32) blas32.General {
	return blas32.General{Rows: rows, Cols: cols, Stride: cols, Data: data[:rows*cols]}
}

// encoderForward combines the token embedding rows with the precomputed
// positional table: out[t] = wte[inp[t]] + pos[t]. Token ids are validated by
// the caller; position t indexes the table directly.
func encoderForward(out []float32, inp []int32, wte, pos []float32, T, C int) {
	for t := 0; t < T; t++ {
		wteRow := wte[int(inp[t])*C:]
		posRow := pos[t*C:]
		outRow := out[t*C:]
		for i := 0; i < C; i++ {
			outRow[i] = wteRow[i] + posRow[i]
		}
	}
}

// encoderBackward scatters the gradient of the encoded sequence into the
// embedding rows that produced it. The positional table is not learned, so
// its share of the gradient is dropped on the floor.
func encoderBackward(dwte []float32, dout []float32, inp []int32, T, C int) {
	for t := 0; t < T; t++ {
		dwteRow := dwte[int(inp[t])*C:]
		doutRow := dout[t*C:]
		for i := 0; i < C; i++ {
			dwteRow[i] += doutRow[i]
		}
	}
}

// matmulForward computes out = inp @ weightᵀ + bias, where inp is (T, C),
// weight is (OC, C) and out is (T, OC). The product runs through float32 GEMM.
func matmulForward(out, inp, weight, bias []float32, T, C, OC int) {
	blas32.Gemm(blas.NoTrans, blas.Trans, 1,
		general(T, C, inp), general(OC, C, weight),
		0, general(T, OC, out))
	if bias != nil {
		for t := 0; t < T; t++ {
			outRow := out[t*OC:]
			for o := 0; o < OC; o++ {
				outRow[o] += bias[o]
			}
		}
	}
}

// matmulBackward accumulates the three gradients of matmulForward:
// dinp += dout @ weight, dweight += doutᵀ @ inp, dbias += column sums of dout.
func matmulBackward(dinp, dweight, dbias, dout, inp, weight []float32, T, C, OC int) {
	if dinp != nil {
		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
			general(T, OC, dout), general(OC, C, weight),
			1, general(T, C, dinp))
	}
	blas32.Gemm(blas.Trans, blas.NoTrans, 1,
		general(T, OC, dout), general(T, C, inp),
		1, general(OC, C, dweight))
	if dbias != nil {
		for t := 0; t < T; t++ {
			doutRow := dout[t*OC:]
			for o := 0; o < OC; o++ {
				dbias[o] += doutRow[o]
			}
		}
	}
}

// attentionForward mixes the value vectors according to query/key similarity.
// scores = q @ kᵀ scaled by 1/sqrt(C), att = row-softmax(scores),
// out = att @ v. Every query position attends over the whole sequence it was
// given; the unit itself has no notion of causality.
func attentionForward(out, scores, att, q, k, v []float32, T, C int) {
	scale := 1 / Sqrt(float32(C))
	blas32.Gemm(blas.NoTrans, blas.Trans, scale,
		general(T, C, q), general(T, C, k),
		0, general(T, T, scores))
	softmaxForward(att, scores, T, T)
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
		general(T, T, att), general(T, C, v),
		0, general(T, C, out))
}

// attentionBackward is the paired backward pass of attentionForward. datt and
// dscores are scratch owned by this call; dq, dk and dv are accumulated into.
func attentionBackward(dq, dk, dv, dscores, datt, dout, q, k, v, att []float32, T, C int) {
	scale := 1 / Sqrt(float32(C))
	// out = att @ v
	blas32.Gemm(blas.NoTrans, blas.Trans, 1,
		general(T, C, dout), general(T, C, v),
		0, general(T, T, datt))
	blas32.Gemm(blas.Trans, blas.NoTrans, 1,
		general(T, T, att), general(T, C, dout),
		1, general(T, C, dv))
	// att = softmax(scores), rows are independent:
	// dscores[t][j] = att[t][j] * (datt[t][j] - sum_i att[t][i]*datt[t][i])
	for t := 0; t < T; t++ {
		attRow := att[t*T : t*T+T]
		dattRow := datt[t*T : t*T+T]
		dscoresRow := dscores[t*T : t*T+T]
		var dot float32
		for i := 0; i < T; i++ {
			dot += attRow[i] * dattRow[i]
		}
		for j := 0; j < T; j++ {
			dscoresRow[j] = attRow[j] * (dattRow[j] - dot)
		}
	}
	// scores = scale * q @ kᵀ
	blas32.Gemm(blas.NoTrans, blas.NoTrans, scale,
		general(T, T, dscores), general(T, C, k),
		1, general(T, C, dq))
	blas32.Gemm(blas.Trans, blas.NoTrans, scale,
		general(T, T, dscores), general(T, C, q),
		1, general(T, C, dk))
}

// layernormForward normalises each position's C-wide vector to zero mean and
// unit variance, then applies the learned scale and shift. mean and rstd are
// kept for the backward pass.
func layernormForward(out, mean, rstd, inp, weight, bias []float32, T, C int) {
	const eps = 1e-5
	for t := 0; t < T; t++ {
		x := inp[t*C : t*C+C]
		var m float32
		for i := 0; i < C; i++ {
			m += x[i]
		}
		m /= float32(C)
		var v float32
		for i := 0; i < C; i++ {
			xshift := x[i] - m
			v += xshift * xshift
		}
		v /= float32(C)
		s := 1 / Sqrt(v+eps)
		outRow := out[t*C : t*C+C]
		for i := 0; i < C; i++ {
			n := s * (x[i] - m)
			outRow[i] = n*weight[i] + bias[i]
		}
		mean[t] = m
		rstd[t] = s
	}
}

func layernormBackward(dinp, dweight, dbias, dout, inp, weight, mean, rstd []float32, T, C int) {
	for t := 0; t < T; t++ {
		doutRow := dout[t*C : t*C+C]
		inpRow := inp[t*C : t*C+C]
		dinpRow := dinp[t*C : t*C+C]
		m := mean[t]
		s := rstd[t]

		var dnormMean, dnormNormMean float32
		for i := 0; i < C; i++ {
			norm := (inpRow[i] - m) * s
			dnorm := weight[i] * doutRow[i]
			dnormMean += dnorm
			dnormNormMean += dnorm * norm
		}
		dnormMean /= float32(C)
		dnormNormMean /= float32(C)

		for i := 0; i < C; i++ {
			norm := (inpRow[i] - m) * s
			dnorm := weight[i] * doutRow[i]
			dbias[i] += doutRow[i]
			dweight[i] += norm * doutRow[i]
			dinpRow[i] += (dnorm - dnormMean - norm*dnormNormMean) * s
		}
	}
}

func reluForward(out, inp []float32, n int) {
	for i := 0; i < n; i++ {
		if inp[i] > 0 {
			out[i] = inp[i]
		} else {
			out[i] = 0
		}
	}
}

func reluBackward(dinp, inp, dout []float32, n int) {
	for i := 0; i < n; i++ {
		if inp[i] > 0 {
			dinp[i] += dout[i]
		}
	}
}

func residualForward(out, inp1, inp2 []float32, n int) {
	for i := 0; i < n; i++ {
		out[i] = inp1[i] + inp2[i]
	}
}

func residualBackward(dinp1, dinp2, dout []float32, n int) {
	for i := 0; i < n; i++ {
		dinp1[i] += dout[i]
		dinp2[i] += dout[i]
	}
}

// softmaxForward exponentiates and normalises each row of logits, with the
// usual max subtraction so large logits cannot overflow.
func softmaxForward(probs, logits []float32, rows, width int) {
	for r := 0; r < rows; r++ {
		logitsRow := logits[r*width : r*width+width]
		probsRow := probs[r*width : r*width+width]
		maxval := logitsRow[0]
		for i := 1; i < width; i++ {
			if logitsRow[i] > maxval {
				maxval = logitsRow[i]
			}
		}
		var sum float64
		for i := 0; i < width; i++ {
			probsRow[i] = Exp(logitsRow[i] - maxval)
			sum += float64(probsRow[i])
		}
		for i := 0; i < width; i++ {
			probsRow[i] /= float32(sum)
		}
	}
}

// crossEntropyForward returns -log p(target) for one softmaxed row. The clamp
// keeps an untrained model's worst miss finite in float32.
func crossEntropyForward(probs []float32, target int32) float32 {
	p := probs[target]
	if p < 1e-30 {
		p = 1e-30
	}
	return -Log(p)
}

// crossentropySoftmaxBackward fuses the gradient of cross-entropy through
// softmax for one row: dlogits[i] += p[i] - 1{i == target}.
func crossentropySoftmaxBackward(dlogits, probs []float32, target int32) {
	for i := range dlogits {
		indicator := float32(0)
		if int32(i) == target {
			indicator = 1
		}
		dlogits[i] += probs[i] - indicator
	}
}
