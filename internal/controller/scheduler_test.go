package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"flowgate/internal/manager"
	"flowgate/internal/telemetry"
)

type fakeLister struct {
	mu    sync.Mutex
	tasks []manager.TaskConfig
	err   error
	calls int
}

func (l *fakeLister) set(tasks []manager.TaskConfig, err error) {
	l.mu.Lock()
	l.tasks, l.err = tasks, err
	l.mu.Unlock()
}

func (l *fakeLister) List(context.Context) ([]manager.TaskConfig, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.tasks, l.err
}

func newTestScheduler(t *testing.T, interval time.Duration, l manager.Lister) (*Scheduler, *Pool, *harness) {
	t.Helper()
	h := newHarness()
	e := manager.NewEndpoints("http://mgr", "c1")
	pool := NewPool()
	rec := NewReconciler(pool, newTestFactory(t, h, e), e)
	return NewScheduler(interval, rec, l, pool), pool, h
}

func TestScheduler_StartReconcilesSynchronously(t *testing.T) {
	l := &fakeLister{}
	l.set(tasks("a", "b"), nil)
	s, pool, _ := newTestScheduler(t, time.Hour, l)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	// interval is one hour, so anything pooled came from the immediate pass
	poolHas(t, pool, "a", "b")
	if s.State() != StateRunning {
		t.Fatalf("want running, got %s", s.State())
	}
}

func TestScheduler_StopClosesAllAndRejectsRestart(t *testing.T) {
	l := &fakeLister{}
	l.set(tasks("a", "b"), nil)
	s, pool, _ := newTestScheduler(t, time.Hour, l)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	drivers := make([]*fakeDriver, 0, 2)
	for _, id := range pool.IDs() {
		drivers = append(drivers, pool.Get(id).Client.(*fakeDriver))
	}

	s.Stop()
	if pool.Len() != 0 {
		t.Fatalf("pool not swept on stop: %v", pool.IDs())
	}
	for _, d := range drivers {
		if !d.isClosed() {
			t.Fatal("pooled client not closed on stop")
		}
	}
	if s.State() != StateStopped {
		t.Fatalf("want stopped, got %s", s.State())
	}

	if err := s.Start(context.Background()); err == nil {
		t.Fatal("a stopped scheduler must not restart")
	}
	s.Stop() // second stop is a no-op
}

func TestScheduler_FetchFailureKeepsPool(t *testing.T) {
	l := &fakeLister{}
	l.set(tasks("a"), nil)
	s, pool, _ := newTestScheduler(t, 10*time.Millisecond, l)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()
	poolHas(t, pool, "a")

	l.set(nil, errors.New("manager down"))
	time.Sleep(50 * time.Millisecond)

	// failed fetches must not read as "no tasks desired"
	poolHas(t, pool, "a")
}

func TestScheduler_PeriodicTicksConverge(t *testing.T) {
	l := &fakeLister{}
	l.set(tasks("a"), nil)
	s, pool, _ := newTestScheduler(t, 10*time.Millisecond, l)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	l.set(tasks("b"), nil)
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if pool.Get("b") != nil && pool.Get("a") == nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("pool never converged to new snapshot: %v", pool.IDs())
}

func TestScheduler_OverrunSkipsTick(t *testing.T) {
	l := &fakeLister{}
	l.set(nil, nil)
	s, _, _ := newTestScheduler(t, 10*time.Millisecond, l)

	before := testutil.ToFloat64(telemetry.ReconcileSkipped)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	// simulate a long-running tick by holding the tick lock across intervals
	s.tickMu.Lock()
	time.Sleep(45 * time.Millisecond)
	s.tickMu.Unlock()

	if after := testutil.ToFloat64(telemetry.ReconcileSkipped); after < before+1 {
		t.Fatalf("expected skipped ticks to be counted, before=%v after=%v", before, after)
	}
}
