package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"flowgate/internal/logging"
	"flowgate/internal/manager"
	"flowgate/internal/telemetry"
)

type State int32

const (
	StateCreated State = iota
	StateConfigured
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConfigured:
		return "configured"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Scheduler drives the reconciler at a fixed interval. Ticks are serialized:
// if one overruns the interval the next is skipped and the overrun logged.
// A stopped scheduler cannot be restarted.
type Scheduler struct {
	interval time.Duration
	rec      *Reconciler
	tasks    manager.Lister
	pool     *Pool

	mu     sync.Mutex // guards state transitions
	state  State
	cancel context.CancelFunc
	done   chan struct{}

	tickMu sync.Mutex // held for the duration of one tick
}

func NewScheduler(interval time.Duration, rec *Reconciler, tasks manager.Lister, pool *Pool) *Scheduler {
	return &Scheduler{
		interval: interval,
		rec:      rec,
		tasks:    tasks,
		pool:     pool,
		state:    StateConfigured,
	}
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start runs one reconciliation synchronously, then arms the periodic loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateConfigured {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("scheduler: cannot start from state %s", st)
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = StateRunning
	s.mu.Unlock()

	s.tick(ctx)
	go s.loop(ctx)
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !s.tickMu.TryLock() {
				telemetry.ReconcileSkipped.Inc()
				logging.L().Warn("reconcile overran interval, skipping tick", "interval", s.interval)
				continue
			}
			s.runLocked(ctx)
			s.tickMu.Unlock()
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	s.runLocked(ctx)
}

// runLocked fetches the desired snapshot and reconciles against it. A fetch
// failure skips the whole tick: a partial list must not read as mass removal.
func (s *Scheduler) runLocked(ctx context.Context) {
	desired, err := s.tasks.List(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logging.L().Warn("desired task fetch failed, keeping current pool", "err", err)
		}
		return
	}
	s.rec.ReconcileOnce(ctx, desired)
	telemetry.ReconcileTotal.Inc()
}

// Stop cancels future ticks, waits for an in-flight one to finish, then
// closes every pooled client best-effort. Safe to call more than once and
// concurrently with a running tick.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done

	for _, id := range s.pool.IDs() {
		h := s.pool.Remove(id)
		if h == nil {
			continue
		}
		if err := h.Client.Close(); err != nil {
			telemetry.ClientCloseFailures.Inc()
			logging.L().Error("client close failed during shutdown", "task", id, "err", err)
		}
	}
	telemetry.ActiveClients.Set(0)
	logging.L().Info("scheduler stopped")
}
