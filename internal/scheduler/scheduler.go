// Package scheduler roda tarefas periódicas independentes. Cada tarefa executa
// uma vez na partida e depois a cada intervalo; tarefas diferentes podem se
// sobrepor no tempo (o motor tolera passadas concorrentes).
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Task é uma tarefa periódica.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler executa as tarefas até o contexto terminar.
type Scheduler struct {
	Log   *zap.Logger
	Tasks []Task

	OnRun func(task string, took time.Duration, err error) // métricas
}

// Run bloqueia até ctx ser cancelado. Erro de uma execução é logado e não para o loop.
func (s *Scheduler) Run(ctx context.Context) error {
	for _, t := range s.Tasks {
		if t.Interval <= 0 {
			return fmt.Errorf("task %q: interval must be positive", t.Name)
		}
		if t.Run == nil {
			return fmt.Errorf("task %q: run func is nil", t.Name)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, t := range s.Tasks {
		t := t
		g.Go(func() error {
			s.loop(ctx, t)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, t Task) {
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	s.runOnce(ctx, t)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, t)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, t Task) {
	log := s.logger().With(zap.String("task", t.Name), zap.String("run_id", uuid.NewString()))
	log.Debug("task started")

	start := time.Now()
	err := t.Run(ctx)
	took := time.Since(start)

	if s.OnRun != nil {
		s.OnRun(t.Name, took, err)
	}
	switch {
	case err != nil && ctx.Err() != nil:
		log.Info("task interrupted by shutdown", zap.Duration("took", took))
	case err != nil:
		log.Warn("task failed", zap.Duration("took", took), zap.Error(err))
	default:
		log.Info("task finished", zap.Duration("took", took))
	}
}

func (s *Scheduler) logger() *zap.Logger {
	if s.Log != nil {
		return s.Log
	}
	return zap.NewNop()
}
