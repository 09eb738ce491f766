package wordlm

import "fmt"

// ProgressFunc receives the mean per-prefix loss after each epoch.
type ProgressFunc func(epoch int, loss float32)

// Train runs fully-online teacher forcing over the corpus. Every sentence is
// expanded into all of its (prefix, next word) pairs and each pair triggers a
// full forward, backward, and optimizer step before the next one is seen.
// Sentences with fewer than two tokens contribute no pairs and are skipped.
func (model *Model) Train(corpus [][]int32, progress ProgressFunc) error {
	cfg := model.Config
	for i, sentence := range corpus {
		if len(sentence) > cfg.MaxSeqLen {
			return fmt.Errorf("train: sentence %d has %d tokens, exceeds positional capacity %d",
				i, len(sentence), cfg.MaxSeqLen)
		}
	}
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		var epochLoss float32
		var steps int
		for _, sentence := range corpus {
			for i := 1; i < len(sentence); i++ {
				if err := model.Forward(sentence[:i], sentence[i]); err != nil {
					return err
				}
				model.ZeroGradient()
				if err := model.Backward(); err != nil {
					return err
				}
				model.AdamT++
				model.Update(cfg.LearningRate, cfg.Beta1, cfg.Beta2, cfg.Eps, cfg.WeightDecay, model.AdamT)
				epochLoss += model.Loss
				steps++
			}
		}
		if progress != nil {
			if steps > 0 {
				progress(epoch, epochLoss/float32(steps))
			} else {
				progress(epoch, 0)
			}
		}
	}
	return nil
}
