package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/abundance-ai/abundance/internal/repo"
)

const cacheRetention = 30 * 24 * time.Hour

// CacheCleanupJob evicts embedding cache rows older than the retention
// window; stale entries just get re-embedded on next use.
type CacheCleanupJob struct {
	cache *repo.EmbeddingCacheRepo
}

func NewCacheCleanupJob(cache *repo.EmbeddingCacheRepo) *CacheCleanupJob {
	return &CacheCleanupJob{cache: cache}
}

func (j *CacheCleanupJob) Name() string {
	return "embedding_cache_cleanup"
}

func (j *CacheCleanupJob) Run(ctx context.Context) {
	cutoff := time.Now().Add(-cacheRetention).UnixMilli()
	deleted, err := j.cache.DeleteBefore(ctx, cutoff)
	if err != nil {
		logutil.GetLogger(ctx).Error("embedding cache cleanup failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		logutil.GetLogger(ctx).Info("embedding cache cleanup", zap.Int64("deleted", deleted))
	}
}
