package rag

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// IndexEntry is one embedded chunk with the text it came from.
type IndexEntry struct {
	Content string    `json:"content"`
	Source  string    `json:"source"`
	Vector  []float32 `json:"vector"`
}

// Index is a per-document vector index persisted as a single JSON file. At
// document scale an exact scan beats approximate structures, and a flat file
// survives restarts with no extra infrastructure.
type Index struct {
	Model     string       `json:"model"`
	Dimension int          `json:"dimension"`
	Entries   []IndexEntry `json:"entries"`
}

func NewIndex(model string, dimension int) *Index {
	return &Index{Model: model, Dimension: dimension}
}

func (idx *Index) Add(content, source string, vector []float32) error {
	if len(vector) != idx.Dimension {
		return fmt.Errorf("vector dimension %d does not match index dimension %d", len(vector), idx.Dimension)
	}
	idx.Entries = append(idx.Entries, IndexEntry{Content: content, Source: source, Vector: vector})
	return nil
}

// Save writes atomically so a crash mid-write never leaves a torn index.
func (idx *Index) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func LoadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	idx := &Index{}
	if err := json.Unmarshal(data, idx); err != nil {
		return nil, fmt.Errorf("decode index %s: %w", path, err)
	}
	if idx.Dimension <= 0 {
		return nil, fmt.Errorf("index %s has invalid dimension %d", path, idx.Dimension)
	}
	return idx, nil
}

// Match is a scored search hit.
type Match struct {
	Content string
	Source  string
	Score   float32
}

// Search returns the topK entries by cosine similarity against query.
func (idx *Index) Search(query []float32, topK int) []Match {
	if topK <= 0 || len(idx.Entries) == 0 || len(query) != idx.Dimension {
		return nil
	}
	matches := make([]Match, 0, len(idx.Entries))
	for _, entry := range idx.Entries {
		matches = append(matches, Match{
			Content: entry.Content,
			Source:  entry.Source,
			Score:   cosineSimilarity(query, entry.Vector),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
