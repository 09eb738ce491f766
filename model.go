package wordlm

import (
	"errors"
	"fmt"
	"math/rand"
)

// Model is a stack of transformer blocks over a learned token embedding, with
// a final projection to vocabulary logits. All learned state lives in Params;
// everything else is either deterministic (the positional table) or transient
// per forward pass (the activations). Operations take the model explicitly;
// there are no package-level singletons.
type Model struct {
	Config Config
	// Params has the weights of the model; Params.Memory exists so the
	// optimizer can walk every parameter in one loop.
	Params ParameterTensors
	// Grads holds the gradient for each entry of Params.Memory.
	Grads ParameterTensors
	// First and second moment estimates for AdamW.
	MMemory []float32
	VMemory []float32
	// Acts holds the activations of the most recent forward pass, GradsActs
	// their gradients during the backward pass.
	Acts      ActivationTensors
	GradsActs ActivationTensors

	Pos     []float32 // (MaxSeqLen, C) sinusoidal positional table, read-only
	T       int       // sequence length of the activations currently held
	Inputs  []int32   // input tokens of the most recent forward pass
	Target  int32     // training target of the most recent forward pass, -1 if none
	Loss    float32   // cross-entropy of the last forward pass, -1 if no target
	AdamT   int       // AdamW step counter
}

// NewModel validates the configuration and builds a model with randomly
// initialised parameters.
func NewModel(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	model := &Model{
		Config: cfg,
		Pos:    newPositionTable(cfg.MaxSeqLen, cfg.EmbedDim),
		Target: -1,
		Loss:   -1,
	}
	model.Params.Init(cfg.VocabSize, cfg.EmbedDim, cfg.HiddenDim, cfg.NumLayers)
	model.initParams(rand.New(rand.NewSource(cfg.Seed)))
	return model, nil
}

// initParams fills the weight matrices with small uniform noise and the
// normalisation scales with ones. Biases and shifts start at zero.
func (model *Model) initParams(rng *rand.Rand) {
	p := &model.Params
	C := model.Config.EmbedDim
	fillUniform(rng, p.WordTokEmbed.data, 0.02)
	scale := 1 / Sqrt(float32(C))
	fillUniform(rng, p.QueryW.data, scale)
	fillUniform(rng, p.KeyW.data, scale)
	fillUniform(rng, p.ValueW.data, scale)
	fillUniform(rng, p.FeedFwdW.data, scale)
	fillUniform(rng, p.FeedFwdProjW.data, scale)
	fillUniform(rng, p.OutProjW.data, scale)
	fillOnes(p.Norm1W.data)
	fillOnes(p.Norm2W.data)
}

func fillUniform(rng *rand.Rand, dst []float32, scale float32) {
	for i := range dst {
		dst[i] = (rng.Float32()*2 - 1) * scale
	}
}

func fillOnes(dst []float32) {
	for i := range dst {
		dst[i] = 1
	}
}

func (model *Model) String() string {
	var s string
	s += "[wordlm]\n"
	s += fmt.Sprintf("vocab_size: %d\n", model.Config.VocabSize)
	s += fmt.Sprintf("embed_dim: %d\n", model.Config.EmbedDim)
	s += fmt.Sprintf("hidden_dim: %d\n", model.Config.HiddenDim)
	s += fmt.Sprintf("num_layers: %d\n", model.Config.NumLayers)
	s += fmt.Sprintf("max_seq_len: %d\n", model.Config.MaxSeqLen)
	s += fmt.Sprintf("num_parameters: %d\n", model.Params.Len())
	return s
}

// checkInput enforces the caller-side contracts: a non-empty sequence, within
// the positional table's capacity, with every id inside the vocabulary.
func (model *Model) checkInput(input []int32) error {
	if len(input) == 0 {
		return errors.New("model: empty input sequence")
	}
	if len(input) > model.Config.MaxSeqLen {
		return fmt.Errorf("model: sequence length %d exceeds positional capacity %d",
			len(input), model.Config.MaxSeqLen)
	}
	for t, id := range input {
		if id < 0 || int(id) >= model.Config.VocabSize {
			return fmt.Errorf("model: token id %d at position %d outside vocabulary of size %d",
				id, t, model.Config.VocabSize)
		}
	}
	return nil
}

// Forward runs one pass over input, leaving per-position logits and
// probabilities in the activations. If target is a valid token id the
// cross-entropy of the final position against it is stored in Loss;
// pass target = -1 for inference.
func (model *Model) Forward(input []int32, target int32) error {
	if err := model.checkInput(input); err != nil {
		return err
	}
	if target >= 0 && int(target) >= model.Config.VocabSize {
		return fmt.Errorf("model: target id %d outside vocabulary of size %d",
			target, model.Config.VocabSize)
	}
	V, C, H, L := model.Config.VocabSize, model.Config.EmbedDim, model.Config.HiddenDim, model.Config.NumLayers
	T := len(input)
	if model.Acts.Memory == nil || model.T != T {
		model.T = T
		model.Acts.Init(T, C, H, L, V)
		model.GradsActs = ActivationTensors{}
		model.Inputs = make([]int32, T)
	}
	copy(model.Inputs, input)
	model.Target = target
	params, acts := &model.Params, &model.Acts

	encoderForward(acts.Encoded.data, input, params.WordTokEmbed.data, model.Pos, T, C)
	x := acts.Encoded.data
	for l := 0; l < L; l++ {
		// Parameters of this block
		l_qw := params.QueryW.data[l*C*C:]
		l_qb := params.QueryB.data[l*C:]
		l_kw := params.KeyW.data[l*C*C:]
		l_kb := params.KeyB.data[l*C:]
		l_vw := params.ValueW.data[l*C*C:]
		l_vb := params.ValueB.data[l*C:]
		l_ln1w := params.Norm1W.data[l*C:]
		l_ln1b := params.Norm1B.data[l*C:]
		l_fcw := params.FeedFwdW.data[l*H*C:]
		l_fcb := params.FeedFwdB.data[l*H:]
		l_fcprojw := params.FeedFwdProjW.data[l*C*H:]
		l_fcprojb := params.FeedFwdProjB.data[l*C:]
		l_ln2w := params.Norm2W.data[l*C:]
		l_ln2b := params.Norm2B.data[l*C:]
		// Activations of this block
		l_q := acts.Query.data[l*T*C:]
		l_k := acts.Key.data[l*T*C:]
		l_v := acts.Value.data[l*T*C:]
		l_scores := acts.Scores.data[l*T*T:]
		l_att := acts.Attn.data[l*T*T:]
		l_attout := acts.AttnOut.data[l*T*C:]
		l_residual1 := acts.Residual1.data[l*T*C:]
		l_ln1 := acts.Norm1.data[l*T*C:]
		l_ln1_mean := acts.Norm1Mean.data[l*T:]
		l_ln1_rstd := acts.Norm1Rstd.data[l*T:]
		l_fch := acts.FeedFwd.data[l*T*H:]
		l_relu := acts.ReluAct.data[l*T*H:]
		l_fcproj := acts.FeedFwdProj.data[l*T*C:]
		l_residual2 := acts.Residual2.data[l*T*C:]
		l_ln2 := acts.Norm2.data[l*T*C:]
		l_ln2_mean := acts.Norm2Mean.data[l*T:]
		l_ln2_rstd := acts.Norm2Rstd.data[l*T:]

		// Self-attention over the block input, then residual and norm.
		matmulForward(l_q, x, l_qw, l_qb, T, C, C)
		matmulForward(l_k, x, l_kw, l_kb, T, C, C)
		matmulForward(l_v, x, l_vw, l_vb, T, C, C)
		attentionForward(l_attout, l_scores, l_att, l_q, l_k, l_v, T, C)
		residualForward(l_residual1, x, l_attout, T*C)
		layernormForward(l_ln1, l_ln1_mean, l_ln1_rstd, l_residual1, l_ln1w, l_ln1b, T, C)
		// Position-wise feed-forward, then the second residual and norm.
		matmulForward(l_fch, l_ln1, l_fcw, l_fcb, T, C, H)
		reluForward(l_relu, l_fch, T*H)
		matmulForward(l_fcproj, l_relu, l_fcprojw, l_fcprojb, T, H, C)
		residualForward(l_residual2, l_ln1, l_fcproj, T*C)
		layernormForward(l_ln2, l_ln2_mean, l_ln2_rstd, l_residual2, l_ln2w, l_ln2b, T, C)
		x = l_ln2
	}
	matmulForward(acts.Logits.data, x, params.OutProjW.data, params.OutProjB.data, T, C, V)
	softmaxForward(acts.Probs.data, acts.Logits.data, T, V)
	if target >= 0 {
		model.Loss = crossEntropyForward(acts.Probs.data[(T-1)*V:], target)
	} else {
		model.Loss = -1
	}
	return nil
}

// Logits returns the (T, V) logit matrix of the most recent forward pass.
func (model *Model) Logits() []float32 {
	return model.Acts.Logits.data
}

// Backward computes the gradient of the last forward pass's loss with respect
// to every parameter, accumulating into Grads. Forward must have been called
// with a target first.
func (model *Model) Backward() error {
	if model.Target < 0 {
		return errors.New("model: must forward with a target before backward")
	}
	V, C, H, L := model.Config.VocabSize, model.Config.EmbedDim, model.Config.HiddenDim, model.Config.NumLayers
	T := model.T
	if len(model.Grads.Memory) == 0 {
		model.Grads.Init(V, C, H, L)
	}
	if model.GradsActs.Memory == nil {
		model.GradsActs.Init(T, C, H, L, V)
	}
	params, grads, acts, gradsActs := &model.Params, &model.Grads, &model.Acts, &model.GradsActs

	// The loss reads only the final position, so only that row of dlogits is
	// non-zero to start the chain.
	lastRow := (T - 1) * V
	crossentropySoftmaxBackward(
		gradsActs.Logits.data[lastRow:lastRow+V],
		acts.Probs.data[lastRow:lastRow+V],
		model.Target)

	final := acts.Norm2.data[(L-1)*T*C:]
	dfinal := gradsActs.Norm2.data[(L-1)*T*C:]
	matmulBackward(dfinal, grads.OutProjW.data, grads.OutProjB.data,
		gradsActs.Logits.data, final, params.OutProjW.data, T, C, V)

	for l := L - 1; l >= 0; l-- {
		var x, dx []float32
		if l == 0 {
			x = acts.Encoded.data
			dx = gradsActs.Encoded.data
		} else {
			x = acts.Norm2.data[(l-1)*T*C:]
			dx = gradsActs.Norm2.data[(l-1)*T*C:]
		}
		// Parameters and their gradients
		l_qw := params.QueryW.data[l*C*C:]
		l_kw := params.KeyW.data[l*C*C:]
		l_vw := params.ValueW.data[l*C*C:]
		l_ln1w := params.Norm1W.data[l*C:]
		l_fcw := params.FeedFwdW.data[l*H*C:]
		l_fcprojw := params.FeedFwdProjW.data[l*C*H:]
		l_ln2w := params.Norm2W.data[l*C:]
		dl_qw := grads.QueryW.data[l*C*C:]
		dl_qb := grads.QueryB.data[l*C:]
		dl_kw := grads.KeyW.data[l*C*C:]
		dl_kb := grads.KeyB.data[l*C:]
		dl_vw := grads.ValueW.data[l*C*C:]
		dl_vb := grads.ValueB.data[l*C:]
		dl_ln1w := grads.Norm1W.data[l*C:]
		dl_ln1b := grads.Norm1B.data[l*C:]
		dl_fcw := grads.FeedFwdW.data[l*H*C:]
		dl_fcb := grads.FeedFwdB.data[l*H:]
		dl_fcprojw := grads.FeedFwdProjW.data[l*C*H:]
		dl_fcprojb := grads.FeedFwdProjB.data[l*C:]
		dl_ln2w := grads.Norm2W.data[l*C:]
		dl_ln2b := grads.Norm2B.data[l*C:]
		// Activations and their gradients
		l_q := acts.Query.data[l*T*C:]
		l_k := acts.Key.data[l*T*C:]
		l_v := acts.Value.data[l*T*C:]
		l_att := acts.Attn.data[l*T*T:]
		l_residual1 := acts.Residual1.data[l*T*C:]
		l_ln1 := acts.Norm1.data[l*T*C:]
		l_ln1_mean := acts.Norm1Mean.data[l*T:]
		l_ln1_rstd := acts.Norm1Rstd.data[l*T:]
		l_fch := acts.FeedFwd.data[l*T*H:]
		l_relu := acts.ReluAct.data[l*T*H:]
		l_residual2 := acts.Residual2.data[l*T*C:]
		l_ln2_mean := acts.Norm2Mean.data[l*T:]
		l_ln2_rstd := acts.Norm2Rstd.data[l*T:]
		dl_q := gradsActs.Query.data[l*T*C:]
		dl_k := gradsActs.Key.data[l*T*C:]
		dl_v := gradsActs.Value.data[l*T*C:]
		dl_scores := gradsActs.Scores.data[l*T*T:]
		dl_att := gradsActs.Attn.data[l*T*T:]
		dl_attout := gradsActs.AttnOut.data[l*T*C:]
		dl_residual1 := gradsActs.Residual1.data[l*T*C:]
		dl_ln1 := gradsActs.Norm1.data[l*T*C:]
		dl_fch := gradsActs.FeedFwd.data[l*T*H:]
		dl_relu := gradsActs.ReluAct.data[l*T*H:]
		dl_fcproj := gradsActs.FeedFwdProj.data[l*T*C:]
		dl_residual2 := gradsActs.Residual2.data[l*T*C:]
		dl_ln2 := gradsActs.Norm2.data[l*T*C:]

		layernormBackward(dl_residual2, dl_ln2w, dl_ln2b, dl_ln2, l_residual2, l_ln2w, l_ln2_mean, l_ln2_rstd, T, C)
		residualBackward(dl_ln1, dl_fcproj, dl_residual2, T*C)
		matmulBackward(dl_relu, dl_fcprojw, dl_fcprojb, dl_fcproj, l_relu, l_fcprojw, T, H, C)
		reluBackward(dl_fch, l_fch, dl_relu, T*H)
		matmulBackward(dl_ln1, dl_fcw, dl_fcb, dl_fch, l_ln1, l_fcw, T, C, H)
		layernormBackward(dl_residual1, dl_ln1w, dl_ln1b, dl_ln1, l_residual1, l_ln1w, l_ln1_mean, l_ln1_rstd, T, C)
		residualBackward(dx, dl_attout, dl_residual1, T*C)
		attentionBackward(dl_q, dl_k, dl_v, dl_scores, dl_att, dl_attout, l_q, l_k, l_v, l_att, T, C)
		matmulBackward(dx, dl_qw, dl_qb, dl_q, x, l_qw, T, C, C)
		matmulBackward(dx, dl_kw, dl_kb, dl_k, x, l_kw, T, C, C)
		matmulBackward(dx, dl_vw, dl_vb, dl_v, x, l_vw, T, C, C)
	}
	encoderBackward(grads.WordTokEmbed.data, gradsActs.Encoded.data, model.Inputs, T, C)
	return nil
}

// Update applies one bias-corrected AdamW step to every parameter. t counts
// optimizer steps starting from 1.
func (model *Model) Update(learningRate, beta1, beta2, eps, weightDecay float32, t int) {
	if model.MMemory == nil {
		model.MMemory = make([]float32, model.Params.Len())
		model.VMemory = make([]float32, model.Params.Len())
	}
	for i := 0; i < model.Params.Len(); i++ {
		parameter := model.Params.Memory[i]
		gradient := model.Grads.Memory[i]
		// Momentum update
		m := beta1*model.MMemory[i] + (1.0-beta1)*gradient
		// RMSprop update
		v := beta2*model.VMemory[i] + (1.0-beta2)*gradient*gradient
		// Bias correction
		mHat := m / (1.0 - Pow(beta1, float32(t)))
		vHat := v / (1.0 - Pow(beta2, float32(t)))
		model.MMemory[i] = m
		model.VMemory[i] = v
		model.Params.Memory[i] -= learningRate * (mHat/(Sqrt(vHat)+eps) + weightDecay*parameter)
	}
}

// ZeroGradient clears the parameter and activation gradients before the next
// backward pass.
func (model *Model) ZeroGradient() {
	for i := range model.Grads.Memory {
		model.Grads.Memory[i] = 0.0
	}
	for i := range model.GradsActs.Memory {
		model.GradsActs.Memory[i] = 0.0
	}
}
