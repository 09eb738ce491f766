package wordlm

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadCorpus reads a training file with one sentence per line, dropping blank
// lines.
func LoadCorpus(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("corpus: %w", err)
	}
	defer f.Close()
	var sentences []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		sentences = append(sentences, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("corpus: %w", err)
	}
	return sentences, nil
}

// EncodeCorpus tokenizes every sentence with the vocabulary.
func EncodeCorpus(v *Vocabulary, sentences []string) [][]int32 {
	encoded := make([][]int32, len(sentences))
	for i, sentence := range sentences {
		encoded[i] = v.Encode(sentence)
	}
	return encoded
}
