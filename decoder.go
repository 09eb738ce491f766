package wordlm

import "fmt"

// Predict returns the greedy next token for the given prefix: the id with the
// highest logit at the final position, taking the lowest id on ties.
func (model *Model) Predict(input []int32) (int32, error) {
	if err := model.Forward(input, -1); err != nil {
		return 0, err
	}
	V := model.Config.VocabSize
	logits := model.Acts.Logits.data[(model.T-1)*V:]
	best := int32(0)
	for i := 1; i < V; i++ {
		if logits[i] > logits[best] {
			best = int32(i)
		}
	}
	return best, nil
}

// Generate greedily extends input by up to maxNew tokens, feeding each
// prediction back in. It stops early when the sequence reaches the positional
// capacity, returning only the newly generated tokens.
func (model *Model) Generate(input []int32, maxNew int) ([]int32, error) {
	if maxNew < 0 {
		return nil, fmt.Errorf("model: maxNew must be non-negative, got %d", maxNew)
	}
	seq := make([]int32, len(input), len(input)+maxNew)
	copy(seq, input)
	out := make([]int32, 0, maxNew)
	for i := 0; i < maxNew; i++ {
		if len(seq) >= model.Config.MaxSeqLen {
			break
		}
		next, err := model.Predict(seq)
		if err != nil {
			return out, err
		}
		seq = append(seq, next)
		out = append(out, next)
	}
	return out, nil
}
