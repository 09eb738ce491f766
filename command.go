package wordlm

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wordlm",
	Short: "Train a small word-level transformer language model and predict next words",
}

var (
	flagCorpus    string
	flagEmbedDim  int
	flagHiddenDim int
	flagLayers    int
	flagMaxSeqLen int
	flagEpochs    int
	flagLR        float32
	flagSeed      int64
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train on a corpus file, then read prefixes from stdin and print the predicted next word",
	RunE: func(cmd *cobra.Command, args []string) error {
		sentences, err := LoadCorpus(flagCorpus)
		if err != nil {
			return err
		}
		vocab := NewVocabulary(sentences)
		model, err := NewModel(Config{
			VocabSize:    vocab.Size(),
			EmbedDim:     flagEmbedDim,
			HiddenDim:    flagHiddenDim,
			NumLayers:    flagLayers,
			MaxSeqLen:    flagMaxSeqLen,
			Epochs:       flagEpochs,
			LearningRate: flagLR,
			Seed:         flagSeed,
		})
		if err != nil {
			return err
		}
		fmt.Print(model)
		corpus := EncodeCorpus(vocab, sentences)
		err = model.Train(corpus, func(epoch int, loss float32) {
			if (epoch+1)%10 == 0 || epoch == 0 {
				fmt.Printf("epoch %d: loss %f\n", epoch+1, loss)
			}
		})
		if err != nil {
			return err
		}
		fmt.Println("enter a prefix (ctrl-d to quit):")
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			next, err := model.Predict(vocab.Encode(line))
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				continue
			}
			fmt.Printf("%s -> %s\n", line, vocab.Word(next))
		}
		return scanner.Err()
	},
}

func init() {
	trainCmd.Flags().StringVar(&flagCorpus, "corpus", "", "path to a text file with one sentence per line")
	trainCmd.Flags().IntVar(&flagEmbedDim, "embed-dim", 32, "embedding width, must be even")
	trainCmd.Flags().IntVar(&flagHiddenDim, "hidden-dim", 64, "feed-forward hidden width")
	trainCmd.Flags().IntVar(&flagLayers, "layers", 2, "number of transformer blocks")
	trainCmd.Flags().IntVar(&flagMaxSeqLen, "max-seq", 64, "maximum sequence length")
	trainCmd.Flags().IntVar(&flagEpochs, "epochs", 100, "training epochs")
	trainCmd.Flags().Float32Var(&flagLR, "lr", 1e-3, "learning rate")
	trainCmd.Flags().Int64Var(&flagSeed, "seed", 1337, "random seed for parameter init")
	trainCmd.MarkFlagRequired("corpus")
	rootCmd.AddCommand(trainCmd)
}

// Execute runs the command line interface.
func Execute() error {
	return rootCmd.Execute()
}
