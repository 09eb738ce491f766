package wordlm

import "fmt"

// Config holds the hyper-parameters of the model and its trainer.
type Config struct {
	VocabSize int // V, number of distinct token ids (including the unknown id)
	EmbedDim  int // C, width of embeddings and every hidden representation
	HiddenDim int // H, inner width of the position-wise feed-forward network
	NumLayers int // L, number of stacked transformer blocks
	MaxSeqLen int // capacity of the precomputed positional table
	Epochs    int // fixed number of passes over the corpus

	// AdamW hyper-parameters. Zero values are replaced by defaults in
	// NewModel; see withDefaults.
	LearningRate float32
	Beta1        float32
	Beta2        float32
	Eps          float32
	WeightDecay  float32

	Seed int64 // seed for parameter initialisation
}

// Validate reports the first construction-time contract violation. Dimension
// mismatches are rejected here, never coerced.
func (c Config) Validate() error {
	switch {
	case c.VocabSize < 1:
		return fmt.Errorf("config: vocab size must be at least 1, got %d", c.VocabSize)
	case c.EmbedDim < 1:
		return fmt.Errorf("config: embedding dim must be positive, got %d", c.EmbedDim)
	case c.EmbedDim%2 != 0:
		return fmt.Errorf("config: embedding dim must be even for sin/cos position pairs, got %d", c.EmbedDim)
	case c.HiddenDim < 1:
		return fmt.Errorf("config: hidden dim must be positive, got %d", c.HiddenDim)
	case c.NumLayers < 1:
		return fmt.Errorf("config: num layers must be positive, got %d", c.NumLayers)
	case c.MaxSeqLen < 1:
		return fmt.Errorf("config: max sequence length must be positive, got %d", c.MaxSeqLen)
	case c.Epochs < 0:
		return fmt.Errorf("config: epochs must not be negative, got %d", c.Epochs)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.LearningRate == 0 {
		c.LearningRate = 1e-3
	}
	if c.Beta1 == 0 {
		c.Beta1 = 0.9
	}
	if c.Beta2 == 0 {
		c.Beta2 = 0.999
	}
	if c.Eps == 0 {
		c.Eps = 1e-8
	}
	return c
}
