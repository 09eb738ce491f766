package wordlm

// tensor is a flat float32 buffer with shape bookkeeping. All tensors of a
// group are carved out of one contiguous Memory slice so the optimizer can
// walk every parameter in a single loop.
type tensor struct {
	data []float32
	dims []int
}

func newTensor(data []float32, dims ...int) (tensor, int) {
	s := 1
	for _, d := range dims {
		s *= d
	}
	if s > len(data) {
		panic("dimensions larger than supplied data")
	}
	return tensor{
		data: data[:s],
		dims: dims,
	}, s
}

// Data returns the backing slice.
func (t tensor) Data() []float32 {
	return t.data
}

// ParameterTensors are the learned weights of the model. Per-layer tensors
// are disjoint slices of Memory, so no parameter is aliased across layers.
type ParameterTensors struct {
	Memory       []float32
	WordTokEmbed tensor // (V, C) - token embedding table
	QueryW       tensor // (L, C, C) - attention query projection weights
	QueryB       tensor // (L, C) - attention query projection biases
	KeyW         tensor // (L, C, C) - attention key projection weights
	KeyB         tensor // (L, C) - attention key projection biases
	ValueW       tensor // (L, C, C) - attention value projection weights
	ValueB       tensor // (L, C) - attention value projection biases
	Norm1W       tensor // (L, C) - post-attention layernorm scale
	Norm1B       tensor // (L, C) - post-attention layernorm shift
	FeedFwdW     tensor // (L, H, C) - feed-forward expansion weights
	FeedFwdB     tensor // (L, H) - feed-forward expansion biases
	FeedFwdProjW tensor // (L, C, H) - feed-forward contraction weights
	FeedFwdProjB tensor // (L, C) - feed-forward contraction biases
	Norm2W       tensor // (L, C) - post-feed-forward layernorm scale
	Norm2B       tensor // (L, C) - post-feed-forward layernorm shift
	OutProjW     tensor // (V, C) - output projection to vocabulary logits
	OutProjB     tensor // (V) - output projection biases
}

// Init allocates the packed parameter memory and carves the individual
// tensors out of it.
func (p *ParameterTensors) Init(V, C, H, L int) {
	p.Memory = make([]float32,
		V*C+ // WordTokEmbed
			L*C*C+ // QueryW
			L*C+ // QueryB
			L*C*C+ // KeyW
			L*C+ // KeyB
			L*C*C+ // ValueW
			L*C+ // ValueB
			L*C+ // Norm1W
			L*C+ // Norm1B
			L*H*C+ // FeedFwdW
			L*H+ // FeedFwdB
			L*C*H+ // FeedFwdProjW
			L*C+ // FeedFwdProjB
			L*C+ // Norm2W
			L*C+ // Norm2B
			V*C+ // OutProjW
			V, // OutProjB
	)
	var ptr int
	memPtr := p.Memory
	p.WordTokEmbed, ptr = newTensor(memPtr, V, C)
	memPtr = memPtr[ptr:]
	p.QueryW, ptr = newTensor(memPtr, L, C, C)
	memPtr = memPtr[ptr:]
	p.QueryB, ptr = newTensor(memPtr, L, C)
	memPtr = memPtr[ptr:]
	p.KeyW, ptr = newTensor(memPtr, L, C, C)
	memPtr = memPtr[ptr:]
	p.KeyB, ptr = newTensor(memPtr, L, C)
	memPtr = memPtr[ptr:]
	p.ValueW, ptr = newTensor(memPtr, L, C, C)
	memPtr = memPtr[ptr:]
	p.ValueB, ptr = newTensor(memPtr, L, C)
	memPtr = memPtr[ptr:]
	p.Norm1W, ptr = newTensor(memPtr, L, C)
	memPtr = memPtr[ptr:]
	p.Norm1B, ptr = newTensor(memPtr, L, C)
	memPtr = memPtr[ptr:]
	p.FeedFwdW, ptr = newTensor(memPtr, L, H, C)
	memPtr = memPtr[ptr:]
	p.FeedFwdB, ptr = newTensor(memPtr, L, H)
	memPtr = memPtr[ptr:]
	p.FeedFwdProjW, ptr = newTensor(memPtr, L, C, H)
	memPtr = memPtr[ptr:]
	p.FeedFwdProjB, ptr = newTensor(memPtr, L, C)
	memPtr = memPtr[ptr:]
	p.Norm2W, ptr = newTensor(memPtr, L, C)
	memPtr = memPtr[ptr:]
	p.Norm2B, ptr = newTensor(memPtr, L, C)
	memPtr = memPtr[ptr:]
	p.OutProjW, ptr = newTensor(memPtr, V, C)
	memPtr = memPtr[ptr:]
	p.OutProjB, ptr = newTensor(memPtr, V)
	memPtr = memPtr[ptr:]
	if len(memPtr) != 0 {
		panic("parameter memory accounting is off")
	}
}

// Len returns the total parameter count.
func (p *ParameterTensors) Len() int {
	return len(p.Memory)
}

// ActivationTensors hold the hidden state of one forward pass over a T-token
// sequence. They are owned by that pass: the model reallocates them whenever
// the sequence length changes and the backward pass reads them before they
// are overwritten.
type ActivationTensors struct {
	Memory      []float32
	Encoded     tensor // (T, C) - token embedding + positional encoding
	Query       tensor // (L, T, C) - projected queries
	Key         tensor // (L, T, C) - projected keys
	Value       tensor // (L, T, C) - projected values
	Scores      tensor // (L, T, T) - scaled dot-product scores
	Attn        tensor // (L, T, T) - row-softmaxed attention weights
	AttnOut     tensor // (L, T, C) - attention-weighted values
	Residual1   tensor // (L, T, C) - block input + attention output
	Norm1       tensor // (L, T, C) - layer-normalised first residual
	Norm1Mean   tensor // (L, T) - per-position means, kept for backward
	Norm1Rstd   tensor // (L, T) - per-position reciprocal stddevs
	FeedFwd     tensor // (L, T, H) - feed-forward pre-activation
	ReluAct     tensor // (L, T, H) - feed-forward after ReLU
	FeedFwdProj tensor // (L, T, C) - feed-forward output
	Residual2   tensor // (L, T, C) - norm1 output + feed-forward output
	Norm2       tensor // (L, T, C) - block output
	Norm2Mean   tensor // (L, T)
	Norm2Rstd   tensor // (L, T)
	Logits      tensor // (T, V) - unnormalised vocabulary scores
	Probs       tensor // (T, V) - row-softmaxed logits
}

func (a *ActivationTensors) Init(T, C, H, L, V int) {
	a.Memory = make([]float32,
		T*C+ // Encoded
			L*T*C+ // Query
			L*T*C+ // Key
			L*T*C+ // Value
			L*T*T+ // Scores
			L*T*T+ // Attn
			L*T*C+ // AttnOut
			L*T*C+ // Residual1
			L*T*C+ // Norm1
			L*T+ // Norm1Mean
			L*T+ // Norm1Rstd
			L*T*H+ // FeedFwd
			L*T*H+ // ReluAct
			L*T*C+ // FeedFwdProj
			L*T*C+ // Residual2
			L*T*C+ // Norm2
			L*T+ // Norm2Mean
			L*T+ // Norm2Rstd
			T*V+ // Logits
			T*V, // Probs
	)
	var ptr int
	memPtr := a.Memory
	a.Encoded, ptr = newTensor(memPtr, T, C)
	memPtr = memPtr[ptr:]
	a.Query, ptr = newTensor(memPtr, L, T, C)
	memPtr = memPtr[ptr:]
	a.Key, ptr = newTensor(memPtr, L, T, C)
	memPtr = memPtr[ptr:]
	a.Value, ptr = newTensor(memPtr, L, T, C)
	memPtr = memPtr[ptr:]
	a.Scores, ptr = newTensor(memPtr, L, T, T)
	memPtr = memPtr[ptr:]
	a.Attn, ptr = newTensor(memPtr, L, T, T)
	memPtr = memPtr[ptr:]
	a.AttnOut, ptr = newTensor(memPtr, L, T, C)
	memPtr = memPtr[ptr:]
	a.Residual1, ptr = newTensor(memPtr, L, T, C)
	memPtr = memPtr[ptr:]
	a.Norm1, ptr = newTensor(memPtr, L, T, C)
	memPtr = memPtr[ptr:]
	a.Norm1Mean, ptr = newTensor(memPtr, L, T)
	memPtr = memPtr[ptr:]
	a.Norm1Rstd, ptr = newTensor(memPtr, L, T)
	memPtr = memPtr[ptr:]
	a.FeedFwd, ptr = newTensor(memPtr, L, T, H)
	memPtr = memPtr[ptr:]
	a.ReluAct, ptr = newTensor(memPtr, L, T, H)
	memPtr = memPtr[ptr:]
	a.FeedFwdProj, ptr = newTensor(memPtr, L, T, C)
	memPtr = memPtr[ptr:]
	a.Residual2, ptr = newTensor(memPtr, L, T, C)
	memPtr = memPtr[ptr:]
	a.Norm2, ptr = newTensor(memPtr, L, T, C)
	memPtr = memPtr[ptr:]
	a.Norm2Mean, ptr = newTensor(memPtr, L, T)
	memPtr = memPtr[ptr:]
	a.Norm2Rstd, ptr = newTensor(memPtr, L, T)
	memPtr = memPtr[ptr:]
	a.Logits, ptr = newTensor(memPtr, T, V)
	memPtr = memPtr[ptr:]
	a.Probs, ptr = newTensor(memPtr, T, V)
	memPtr = memPtr[ptr:]
	if len(memPtr) != 0 {
		panic("activation memory accounting is off")
	}
}
