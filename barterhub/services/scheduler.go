package services

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/barterhub/barterhub/barterhub/feedback"
	"github.com/barterhub/barterhub/barterhub/logger"
	"github.com/barterhub/barterhub/barterhub/matching"
)

// Scheduler drives the background lifecycle: periodic matching passes,
// stale-proposal sweeps, and retraining once enough feedback accumulates.
type Scheduler struct {
	engine  *matching.Engine
	manager *feedback.Manager
	trainer *feedback.Trainer
	blender *matching.Blender

	artifactPath   string
	runInterval    time.Duration
	expireInterval time.Duration

	running atomic.Bool
}

func NewScheduler(
	engine *matching.Engine,
	manager *feedback.Manager,
	trainer *feedback.Trainer,
	blender *matching.Blender,
	artifactPath string,
	runInterval, expireInterval time.Duration,
) *Scheduler {
	return &Scheduler{
		engine:         engine,
		manager:        manager,
		trainer:        trainer,
		blender:        blender,
		artifactPath:   artifactPath,
		runInterval:    runInterval,
		expireInterval: expireInterval,
	}
}

// Start launches the background loops; they stop when ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.loop(ctx, s.runInterval, func(ctx context.Context) {
		s.RunOnce(ctx)
	})
	go s.loop(ctx, s.expireInterval, func(ctx context.Context) {
		if _, err := s.engine.ExpireStale(ctx); err != nil {
			logger.LogError("Stale-proposal sweep failed", err)
		}
	})

	logger.LogSystem("Scheduler started",
		slog.Duration("run_interval", s.runInterval),
		slog.Duration("expire_interval", s.expireInterval))
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// RunOnce executes a single matching pass followed by a retraining check.
// Overlapping invocations are dropped, not queued: a pass that outlives its
// interval must not stack up behind itself.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		slog.Warn("Matching pass still in progress, skipping this tick",
			slog.String("type", "sys"))
		return
	}
	defer s.running.Store(false)

	if _, err := s.engine.Run(ctx); err != nil {
		logger.LogError("Matching pass failed", err)
		return
	}

	s.maybeRetrain(ctx)
}

func (s *Scheduler) maybeRetrain(ctx context.Context) {
	due, count, err := s.manager.ShouldRetrain(ctx)
	if err != nil {
		logger.LogError("Retrain check failed", err)
		return
	}
	if !due {
		return
	}

	logger.LogSystem("Retraining triggered", slog.Int("new_feedback", count))

	if _, err := s.manager.CommitToTraining(ctx); err != nil {
		logger.LogError("Failed to commit feedback for retraining", err)
		return
	}
	if err := s.trainer.TrainAndInstall(ctx, s.blender, s.artifactPath); err != nil {
		logger.LogError("Retraining failed, keeping current model", err)
	}
}
