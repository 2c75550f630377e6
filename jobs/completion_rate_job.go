package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Recounter rebuilds derived professional statistics.
type Recounter interface {
	RecountAll(ctx context.Context) (int, error)
}

// CompletionRateJob periodically recounts every professional's completion
// rate so drift from manual data fixes heals without a completion event.
type CompletionRateJob struct {
	recounter Recounter
	interval  time.Duration
	log       *zap.Logger

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewCompletionRateJob(recounter Recounter, interval time.Duration, log *zap.Logger) *CompletionRateJob {
	if log == nil {
		log = zap.NewNop()
	}
	return &CompletionRateJob{
		recounter: recounter,
		interval:  interval,
		log:       log.Named("completion_rate_job"),
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}
}

// Start runs one pass immediately, then one per interval, until Stop.
func (j *CompletionRateJob) Start() {
	go j.run()
	j.log.Info("started", zap.Duration("interval", j.interval))
}

// Stop waits for an in-flight pass to finish.
func (j *CompletionRateJob) Stop() {
	j.stopOnce.Do(func() { close(j.stopChan) })
	<-j.doneChan
	j.log.Info("stopped")
}

func (j *CompletionRateJob) run() {
	defer close(j.doneChan)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.RunOnce()
	for {
		select {
		case <-ticker.C:
			j.RunOnce()
		case <-j.stopChan:
			return
		}
	}
}

// RunOnce performs a single recount pass. Stop cancels it.
func (j *CompletionRateJob) RunOnce() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-j.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	start := time.Now()
	n, err := j.recounter.RecountAll(ctx)
	if err != nil {
		j.log.Error("recount failed", zap.Int("recounted", n), zap.Error(err))
		return
	}
	j.log.Info("recount finished", zap.Int("recounted", n), zap.Duration("took", time.Since(start)))
}
