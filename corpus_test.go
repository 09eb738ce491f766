package wordlm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCorpus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.txt")
	content := "the cat sat\n\n  \nthe dog ran\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	sentences, err := LoadCorpus(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"the cat sat", "the dog ran"}, sentences)
}

func TestLoadCorpusMissingFile(t *testing.T) {
	_, err := LoadCorpus(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestEncodeCorpus(t *testing.T) {
	sentences := []string{"a b", "b a"}
	v := NewVocabulary(sentences)
	encoded := EncodeCorpus(v, sentences)
	require.Len(t, encoded, 2)
	assert.Equal(t, []int32{1, 2}, encoded[0])
	assert.Equal(t, []int32{2, 1}, encoded[1])
}
