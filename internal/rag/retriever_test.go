package rag

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/abundance-ai/abundance/internal/model"
)

// fakeEmbedder maps known words onto fixed axes so similarity is predictable.
type fakeEmbedder struct {
	model string
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.calls++
	switch text {
	case "cats":
		return []float32{1, 0}, nil
	case "dogs":
		return []float32{0, 1}, nil
	default:
		return []float32{0.7, 0.7}, nil
	}
}

func (f *fakeEmbedder) ModelName() string {
	return f.model
}

func writeTestIndex(t *testing.T, dir, name, modelName string, entries map[string][]float32) string {
	t.Helper()
	idx := NewIndex(modelName, 2)
	for content, vec := range entries {
		require.NoError(t, idx.Add(content, name, vec))
	}
	path := filepath.Join(dir, name+".json")
	require.NoError(t, idx.Save(path))
	return path
}

func TestRetrieverReturnsSnippetsInDocumentOrder(t *testing.T) {
	dir := t.TempDir()
	embedder := &fakeEmbedder{model: "fake"}
	pathA := writeTestIndex(t, dir, "a", "fake", map[string][]float32{
		"cats sleep all day": {1, 0},
	})
	pathB := writeTestIndex(t, dir, "b", "fake", map[string][]float32{
		"dogs chase balls": {0, 1},
	})
	docs := []*model.Document{
		{ID: "doc-a", OriginalFilename: "pets-a.txt", EmbedStatus: model.EmbedStatusEmbedded, IndexPath: pathA},
		{ID: "doc-b", OriginalFilename: "pets-b.txt", EmbedStatus: model.EmbedStatusEmbedded, IndexPath: pathB},
	}

	r := NewRetriever(embedder, 2)
	snippets, err := r.Retrieve(context.Background(), docs, "cats")
	require.NoError(t, err)
	require.Len(t, snippets, 2)
	require.Equal(t, "From pets-a.txt: cats sleep all day", snippets[0])
	require.Equal(t, "From pets-b.txt: dogs chase balls", snippets[1])
	require.Equal(t, 1, embedder.calls, "query embedded exactly once")
}

func TestRetrieverSkipsUnindexedAndCorruptDocuments(t *testing.T) {
	dir := t.TempDir()
	embedder := &fakeEmbedder{model: "fake"}
	goodPath := writeTestIndex(t, dir, "good", "fake", map[string][]float32{
		"useful content": {1, 0},
	})
	corruptPath := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corruptPath, []byte("garbage"), 0o644))

	docs := []*model.Document{
		{ID: "pending", OriginalFilename: "p.txt", EmbedStatus: model.EmbedStatusPending},
		{ID: "corrupt", OriginalFilename: "c.txt", EmbedStatus: model.EmbedStatusEmbedded, IndexPath: corruptPath},
		{ID: "good", OriginalFilename: "g.txt", EmbedStatus: model.EmbedStatusEmbedded, IndexPath: goodPath},
	}

	r := NewRetriever(embedder, 2)
	snippets, err := r.Retrieve(context.Background(), docs, "cats")
	require.NoError(t, err)
	require.Len(t, snippets, 1)
	require.Equal(t, "From g.txt: useful content", snippets[0])
}

func TestRetrieverSkipsIndexFromDifferentModel(t *testing.T) {
	dir := t.TempDir()
	embedder := &fakeEmbedder{model: "fake"}
	stalePath := writeTestIndex(t, dir, "stale", "other-model", map[string][]float32{
		"old content": {1, 0},
	})
	docs := []*model.Document{
		{ID: "stale", OriginalFilename: "s.txt", EmbedStatus: model.EmbedStatusEmbedded, IndexPath: stalePath},
	}

	r := NewRetriever(embedder, 2)
	snippets, err := r.Retrieve(context.Background(), docs, "cats")
	require.NoError(t, err)
	require.Empty(t, snippets)
}

func TestRetrieverEmptyInputs(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{model: "fake"}, 2)
	snippets, err := r.Retrieve(context.Background(), nil, "query")
	require.NoError(t, err)
	require.Empty(t, snippets)

	snippets, err = r.Retrieve(context.Background(), []*model.Document{{ID: "x"}}, "   ")
	require.NoError(t, err)
	require.Empty(t, snippets)
}

func TestRetrieverInvalidateDropsCache(t *testing.T) {
	dir := t.TempDir()
	embedder := &fakeEmbedder{model: "fake"}
	path := writeTestIndex(t, dir, "v1", "fake", map[string][]float32{
		"version one": {1, 0},
	})
	docs := []*model.Document{
		{ID: "doc", OriginalFilename: "d.txt", EmbedStatus: model.EmbedStatusEmbedded, IndexPath: path},
	}
	r := NewRetriever(embedder, 2)

	snippets, err := r.Retrieve(context.Background(), docs, "cats")
	require.NoError(t, err)
	require.Equal(t, []string{"From d.txt: version one"}, snippets)

	// rewrite the index in place, then invalidate: new content must be served
	idx := NewIndex("fake", 2)
	require.NoError(t, idx.Add("version two", "d.txt", []float32{1, 0}))
	require.NoError(t, idx.Save(path))
	r.Invalidate(path)

	snippets, err = r.Retrieve(context.Background(), docs, "cats")
	require.NoError(t, err)
	require.Equal(t, []string{"From d.txt: version two"}, snippets)
}
