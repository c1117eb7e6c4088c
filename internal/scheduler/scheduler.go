package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"curation-service/internal/pipeline"
)

// Scheduler runs the periodic full re-evaluation pass. Overlapping runs are
// skipped rather than queued.
type Scheduler struct {
	cron     *cron.Cron
	pipeline *pipeline.Pipeline
	spec     string
	running  atomic.Bool
	logger   *logrus.Entry
}

func New(p *pipeline.Pipeline, spec string, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		pipeline: p,
		spec:     spec,
		logger:   logger.WithField("component", "curation-scheduler"),
	}
}

// Start registers the re-evaluation job and starts the cron loop
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.runReevaluation); err != nil {
		return fmt.Errorf("invalid re-evaluation cron spec %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.logger.WithField("spec", s.spec).Info("Scheduler started")
	return nil
}

// Stop halts the cron loop and waits for a running job to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) runReevaluation() {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("Previous re-evaluation still running, skipping")
		return
	}
	defer s.running.Store(false)

	started := time.Now()
	s.logger.Info("Starting scheduled re-evaluation")
	if err := s.pipeline.ReevaluateAll(context.Background()); err != nil {
		s.logger.WithError(err).Error("Scheduled re-evaluation failed")
		return
	}
	s.logger.WithField("elapsed", time.Since(started).String()).Info("Scheduled re-evaluation finished")
}
