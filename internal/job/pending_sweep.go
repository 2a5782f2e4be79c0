package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/abundance-ai/abundance/internal/service"
)

const sweepBatchSize = 100

// PendingSweepJob re-enqueues documents stuck in pending state, covering
// enqueue drops and restarts that lost the in-memory queue.
type PendingSweepJob struct {
	docs  *service.DocumentService
	queue *IndexQueue
}

func NewPendingSweepJob(docs *service.DocumentService, queue *IndexQueue) *PendingSweepJob {
	return &PendingSweepJob{docs: docs, queue: queue}
}

func (j *PendingSweepJob) Name() string {
	return "pending_document_sweep"
}

func (j *PendingSweepJob) Run(ctx context.Context) {
	ids, err := j.docs.PendingIDs(ctx, sweepBatchSize)
	if err != nil {
		logutil.GetLogger(ctx).Error("list pending documents failed", zap.Error(err))
		return
	}
	if len(ids) == 0 {
		return
	}
	enqueued := 0
	for _, id := range ids {
		if j.queue.Enqueue(id) {
			enqueued++
		}
	}
	logutil.GetLogger(ctx).Info("pending sweep",
		zap.Int("found", len(ids)), zap.Int("enqueued", enqueued))
}
