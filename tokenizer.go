package wordlm

import (
	"fmt"
	"strings"
)

// Unknown is the word every out-of-vocabulary token maps to. It always has
// id 0.
const Unknown = "<unk>"

// Vocabulary is a bijection between words and dense token ids, built once
// from a corpus and immutable afterwards. Words are whitespace-separated;
// ids are assigned in first-seen order after the reserved unknown word.
type Vocabulary struct {
	idToWord []string
	wordToID map[string]int32
}

// NewVocabulary collects the distinct words of the given sentences.
func NewVocabulary(sentences []string) *Vocabulary {
	v := &Vocabulary{
		idToWord: []string{Unknown},
		wordToID: map[string]int32{Unknown: 0},
	}
	for _, sentence := range sentences {
		for _, word := range strings.Fields(sentence) {
			if _, ok := v.wordToID[word]; !ok {
				v.wordToID[word] = int32(len(v.idToWord))
				v.idToWord = append(v.idToWord, word)
			}
		}
	}
	return v
}

// Size returns the number of distinct words, the unknown word included.
func (v *Vocabulary) Size() int {
	return len(v.idToWord)
}

// Encode splits text on whitespace and maps each word to its id. Words not in
// the vocabulary become the unknown id, so Encode never fails.
func (v *Vocabulary) Encode(text string) []int32 {
	words := strings.Fields(text)
	ids := make([]int32, len(words))
	for i, word := range words {
		if id, ok := v.wordToID[word]; ok {
			ids[i] = id
		}
	}
	return ids
}

// Decode maps ids back to words, joined by single spaces.
func (v *Vocabulary) Decode(ids []int32) (string, error) {
	words := make([]string, len(ids))
	for i, id := range ids {
		if id < 0 || int(id) >= len(v.idToWord) {
			return "", fmt.Errorf("vocabulary: id %d outside vocabulary of size %d", id, len(v.idToWord))
		}
		words[i] = v.idToWord[id]
	}
	return strings.Join(words, " "), nil
}

// Word returns the word for a single id, or the unknown word when the id is
// out of range.
func (v *Vocabulary) Word(id int32) string {
	if id < 0 || int(id) >= len(v.idToWord) {
		return Unknown
	}
	return v.idToWord[id]
}
