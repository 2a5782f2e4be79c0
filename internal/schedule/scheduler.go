package schedule

import (
	"context"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Job is a named unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context)
}

type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
}

func NewScheduler(ctx context.Context) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		ctx:  ctx,
	}
}

// Add registers a job on a cron spec. A run still in flight when the next
// tick fires is not doubled up; the tick is skipped with a log line.
func (s *Scheduler) Add(spec string, job Job) error {
	var running atomic.Bool
	_, err := s.cron.AddFunc(spec, func() {
		if !running.CompareAndSwap(false, true) {
			logutil.GetLogger(s.ctx).Warn("previous run still in progress, skip",
				zap.String("job", job.Name()))
			return
		}
		defer running.Store(false)
		logutil.GetLogger(s.ctx).Debug("job start", zap.String("job", job.Name()))
		job.Run(s.ctx)
	})
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
