package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/abundance-ai/abundance/internal/ai"
	"github.com/abundance-ai/abundance/internal/model"
)

const (
	DefaultPerDocMatches = 2
	indexCacheSize       = 64
	indexCacheTTL        = 10 * time.Minute

	taskTypeQuery = "RETRIEVAL_QUERY"
)

// Retriever answers a query against a user's embedded documents. Each document
// carries its own index file; the query is embedded once and every index
// contributes its best matches in document order.
type Retriever struct {
	embedder ai.IEmbedder
	perDoc   int
	cache    *lru.LRU[string, *Index]
}

func NewRetriever(embedder ai.IEmbedder, perDoc int) *Retriever {
	if perDoc <= 0 {
		perDoc = DefaultPerDocMatches
	}
	return &Retriever{
		embedder: embedder,
		perDoc:   perDoc,
		cache:    lru.NewLRU[string, *Index](indexCacheSize, nil, indexCacheTTL),
	}
}

// Retrieve returns context snippets for the query, one block per hit, in the
// order the documents were given. A document whose index is missing or corrupt
// is skipped with a log line rather than failing the whole query.
func (r *Retriever) Retrieve(ctx context.Context, docs []*model.Document, query string) ([]string, error) {
	if len(docs) == 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	queryVec, err := r.embedder.Embed(ctx, query, taskTypeQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	var snippets []string
	for _, doc := range docs {
		if !doc.Embedded() || doc.IndexPath == "" {
			continue
		}
		idx, err := r.loadIndex(doc.IndexPath)
		if err != nil {
			logutil.GetLogger(ctx).Warn("skip unreadable document index",
				zap.String("document_id", doc.ID), zap.String("path", doc.IndexPath), zap.Error(err))
			continue
		}
		if idx.Model != r.embedder.ModelName() {
			logutil.GetLogger(ctx).Warn("skip document indexed with different model",
				zap.String("document_id", doc.ID), zap.String("index_model", idx.Model))
			continue
		}
		for _, match := range idx.Search(queryVec, r.perDoc) {
			snippets = append(snippets, fmt.Sprintf("From %s: %s", doc.OriginalFilename, match.Content))
		}
	}
	return snippets, nil
}

// Invalidate drops a cached index, for use after reindex or delete.
func (r *Retriever) Invalidate(indexPath string) {
	if indexPath != "" {
		r.cache.Remove(indexPath)
	}
}

func (r *Retriever) loadIndex(path string) (*Index, error) {
	if idx, ok := r.cache.Get(path); ok {
		return idx, nil
	}
	idx, err := LoadIndex(path)
	if err != nil {
		return nil, err
	}
	r.cache.Add(path, idx)
	return idx, nil
}
