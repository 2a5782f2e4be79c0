package rag

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIndexSaveLoadRoundtrip(t *testing.T) {
	idx := NewIndex("test-model", 3)
	require.NoError(t, idx.Add("first chunk", "a.txt", []float32{1, 0, 0}))
	require.NoError(t, idx.Add("second chunk", "a.txt", []float32{0, 1, 0}))

	path := filepath.Join(t.TempDir(), "user", "doc.json")
	require.NoError(t, idx.Save(path))

	loaded, err := LoadIndex(path)
	require.NoError(t, err)
	require.Equal(t, "test-model", loaded.Model)
	require.Equal(t, 3, loaded.Dimension)
	require.Len(t, loaded.Entries, 2)
	require.Equal(t, "first chunk", loaded.Entries[0].Content)
}

func TestIndexAddDimensionMismatch(t *testing.T) {
	idx := NewIndex("test-model", 3)
	require.Error(t, idx.Add("chunk", "a.txt", []float32{1, 0}))
}

func TestIndexSearchRanksByCosine(t *testing.T) {
	idx := NewIndex("test-model", 2)
	require.NoError(t, idx.Add("east", "a.txt", []float32{1, 0}))
	require.NoError(t, idx.Add("north", "a.txt", []float32{0, 1}))
	require.NoError(t, idx.Add("northeast", "a.txt", []float32{1, 1}))

	matches := idx.Search([]float32{1, 0.1}, 2)
	require.Len(t, matches, 2)
	require.Equal(t, "east", matches[0].Content)
	require.Equal(t, "northeast", matches[1].Content)
	require.Greater(t, matches[0].Score, matches[1].Score)
}

func TestIndexSearchEdgeCases(t *testing.T) {
	idx := NewIndex("test-model", 2)
	require.Nil(t, idx.Search([]float32{1, 0}, 2))

	require.NoError(t, idx.Add("only", "a.txt", []float32{1, 0}))
	require.Nil(t, idx.Search([]float32{1, 0, 0}, 2), "dimension mismatch returns nothing")
	require.Nil(t, idx.Search([]float32{1, 0}, 0))
	require.Len(t, idx.Search([]float32{1, 0}, 10), 1)
}

func TestLoadIndexCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := LoadIndex(path)
	require.Error(t, err)
}

func TestCosineSimilarity(t *testing.T) {
	require.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2}, []float32{1, 2}), 1e-6)
	require.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	require.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	require.Equal(t, float32(0), cosineSimilarity([]float32{1}, []float32{1, 2}))
	require.Equal(t, float32(0), cosineSimilarity([]float32{0, 0}, []float32{1, 2}))
}
