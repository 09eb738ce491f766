package wordlm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVocabulary(t *testing.T) {
	v := NewVocabulary([]string{"the cat sat", "the dog sat down"})
	// unknown plus the five distinct words, ids in first-seen order
	assert.Equal(t, 6, v.Size())
	assert.Equal(t, []int32{1, 2, 3}, v.Encode("the cat sat"))
	assert.Equal(t, []int32{1, 4, 3, 5}, v.Encode("the dog sat down"))
}

func TestVocabularyEncodeUnknown(t *testing.T) {
	v := NewVocabulary([]string{"hello world"})
	assert.Equal(t, []int32{1, 0, 2}, v.Encode("hello zebra world"))
	assert.Empty(t, v.Encode("   "))
}

func TestVocabularyDecode(t *testing.T) {
	v := NewVocabulary([]string{"hello world"})
	got, err := v.Decode([]int32{1, 2, 0})
	require.NoError(t, err)
	assert.Equal(t, "hello world <unk>", got)

	_, err = v.Decode([]int32{7})
	assert.Error(t, err)
	_, err = v.Decode([]int32{-1})
	assert.Error(t, err)
}

func TestVocabularyRoundTrip(t *testing.T) {
	sentence := "to be or not to be"
	v := NewVocabulary([]string{sentence})
	decoded, err := v.Decode(v.Encode(sentence))
	require.NoError(t, err)
	assert.Equal(t, sentence, decoded)
}

func TestVocabularyWord(t *testing.T) {
	v := NewVocabulary([]string{"alpha beta"})
	assert.Equal(t, "alpha", v.Word(1))
	assert.Equal(t, Unknown, v.Word(99))
	assert.Equal(t, Unknown, v.Word(0))
}
