package controller

import (
	"context"
	"errors"
	"testing"

	"flowgate/consume"
	"flowgate/internal/manager"
)

func TestFactory_CreateWiresClient(t *testing.T) {
	h := newHarness()
	e := manager.NewEndpoints("http://mgr", "c1")
	f := newTestFactory(t, h, e)

	handle, err := f.Create(context.Background(), manager.TaskConfig{ID: "a"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	cfg := handle.Config
	if cfg.Task != "a" || cfg.Cluster != "c1" || cfg.Strategy != consume.FromLatest {
		t.Fatalf("unexpected client config: %+v", cfg)
	}
	if cfg.LocalAddr != "127.0.0.1" {
		t.Fatalf("local addr not applied: %q", cfg.LocalAddr)
	}
	if cfg.ManagerURL() != "http://mgr" {
		t.Fatalf("manager url not applied: %q", cfg.ManagerURL())
	}

	// the callback must be bound to the live client so acks land on it
	handle.Ack(consume.Token{Task: "a", Offset: 3})
	d := handle.Client.(*fakeDriver)
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.acks) != 1 {
		t.Fatalf("callback not bound to client, acks: %+v", d.acks)
	}
}

func TestFactory_DescriptorClusterWins(t *testing.T) {
	h := newHarness()
	e := manager.NewEndpoints("http://mgr", "c1")
	f := newTestFactory(t, h, e)

	handle, err := f.Create(context.Background(), manager.TaskConfig{ID: "a", Cluster: "other"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if handle.Config.Cluster != "other" {
		t.Fatalf("descriptor cluster ignored: %q", handle.Config.Cluster)
	}
}

func TestFactory_LocalAddrFailure(t *testing.T) {
	h := newHarness()
	e := manager.NewEndpoints("http://mgr", "c1")
	f := newTestFactory(t, h, e)
	f.localAddr = func() (string, error) { return "", errors.New("no nic") }

	if _, err := f.Create(context.Background(), manager.TaskConfig{ID: "a"}); err == nil {
		t.Fatal("expected creation failure on address resolution error")
	}
	if h.creations() != 0 {
		t.Fatalf("no client should be built, got %d", h.creations())
	}
}

func TestFactory_UnknownDriver(t *testing.T) {
	e := manager.NewEndpoints("http://mgr", "c1")
	f := NewFactory("no-such-driver", e, func(*consume.Record) error { return nil })
	f.localAddr = func() (string, error) { return "127.0.0.1", nil }

	if _, err := f.Create(context.Background(), manager.TaskConfig{ID: "a"}); err == nil {
		t.Fatal("expected error for unregistered driver")
	}
}

type stubQuery struct{}

func (stubQuery) Query(context.Context, *consume.ClientConfig) (consume.ConsumeDetail, error) {
	return consume.ConsumeDetail{}, nil
}

func TestFactory_QueryResolution(t *testing.T) {
	consume.RegisterQuery("custom/"+t.Name(), func() any { return stubQuery{} })
	consume.RegisterQuery("broken/"+t.Name(), func() any { return 42 })

	e := manager.NewEndpoints("http://mgr", "c1")
	f := NewFactory("d", e, nil)

	e.SetQueryConfigType("custom/" + t.Name())
	if _, ok := f.resolveQuery().(stubQuery); !ok {
		t.Fatalf("registered strategy not selected: %T", f.resolveQuery())
	}

	// capability mismatch falls back to the manager query, never errors
	e.SetQueryConfigType("broken/" + t.Name())
	if _, ok := f.resolveQuery().(*consume.ManagerQuery); !ok {
		t.Fatalf("mismatch must fall back to manager query, got %T", f.resolveQuery())
	}

	// unknown and blank names do the same
	e.SetQueryConfigType("nope")
	if _, ok := f.resolveQuery().(*consume.ManagerQuery); !ok {
		t.Fatalf("unknown name must fall back to manager query, got %T", f.resolveQuery())
	}
	e.SetQueryConfigType("")
	if _, ok := f.resolveQuery().(*consume.ManagerQuery); !ok {
		t.Fatalf("blank name must fall back to manager query, got %T", f.resolveQuery())
	}
}

func TestFactory_QueryTypeFollowsHolder(t *testing.T) {
	// a reloaded strategy name must apply to the next creation without
	// rebuilding the factory
	consume.RegisterQuery("custom/"+t.Name(), func() any { return stubQuery{} })

	e := manager.NewEndpoints("http://mgr", "c1")
	f := NewFactory("d", e, nil)

	if _, ok := f.resolveQuery().(*consume.ManagerQuery); !ok {
		t.Fatalf("want manager query before reload, got %T", f.resolveQuery())
	}
	e.SetQueryConfigType("custom/" + t.Name())
	if _, ok := f.resolveQuery().(stubQuery); !ok {
		t.Fatalf("reloaded strategy not picked up: %T", f.resolveQuery())
	}
	e.SetQueryConfigType("")
	if _, ok := f.resolveQuery().(*consume.ManagerQuery); !ok {
		t.Fatalf("blanked strategy must return to manager query, got %T", f.resolveQuery())
	}
}
