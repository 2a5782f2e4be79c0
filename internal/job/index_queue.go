package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type ProcessFunc func(ctx context.Context, docID string) error

// IndexQueue serializes document indexing through a bounded channel. A full
// queue drops the enqueue; the pending sweep picks the document up later, so
// nothing is lost, only delayed.
type IndexQueue struct {
	ch      chan string
	process ProcessFunc
}

func NewIndexQueue(size int, process ProcessFunc) *IndexQueue {
	if size <= 0 {
		size = 64
	}
	return &IndexQueue{
		ch:      make(chan string, size),
		process: process,
	}
}

func (q *IndexQueue) Enqueue(docID string) bool {
	select {
	case q.ch <- docID:
		return true
	default:
		return false
	}
}

// Start runs the worker loop until ctx is cancelled.
func (q *IndexQueue) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case docID := <-q.ch:
				if err := q.process(ctx, docID); err != nil {
					logutil.GetLogger(ctx).Error("index document failed",
						zap.String("document_id", docID), zap.Error(err))
				}
			}
		}
	}()
}
