package controller

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"flowgate/consume"
	"flowgate/internal/logging"
	"flowgate/internal/manager"
)

// deliverCallback is the delivery/ack conduit bound to one client. It is
// constructed before the client exists and bound to it after Init, so acks
// always land on the connection that fetched the record.
type deliverCallback struct {
	task string
	push consume.DeliverFunc

	mu  sync.RWMutex
	cli consume.Client
}

func (cb *deliverCallback) Deliver(r *consume.Record) error {
	r.Task = cb.task
	return cb.push(r)
}

func (cb *deliverCallback) Bind(c consume.Client) {
	cb.mu.Lock()
	cb.cli = c
	cb.mu.Unlock()
}

func (cb *deliverCallback) Ack(tok consume.Token) {
	cb.mu.RLock()
	cli := cb.cli
	cb.mu.RUnlock()
	if cli != nil {
		cli.Ack(tok)
	}
}

// Factory builds one live Handle per task descriptor.
type Factory struct {
	driver    string
	endpoints *manager.Endpoints
	push      consume.DeliverFunc

	// localAddr is swappable for tests.
	localAddr func() (string, error)
}

func NewFactory(driver string, endpoints *manager.Endpoints, push consume.DeliverFunc) *Factory {
	return &Factory{
		driver:    driver,
		endpoints: endpoints,
		push:      push,
		localAddr: localHostAddr,
	}
}

// Create builds, initializes, and wires a client for one task. Any failure
// discards the partially built client and surfaces as an error; the caller
// retries on a later tick while the task stays desired.
func (f *Factory) Create(ctx context.Context, tc manager.TaskConfig) (*Handle, error) {
	addr, err := f.localAddr()
	if err != nil {
		return nil, fmt.Errorf("resolve local address for task %q: %w", tc.ID, err)
	}
	cluster := tc.Cluster
	if cluster == "" {
		cluster = f.endpoints.ClusterName()
	}

	cfg := consume.NewClientConfig(tc.ID, cluster, consume.FromLatest, addr)
	cfg.SetManagerURL(f.endpoints.ManagerURL())

	cb := &deliverCallback{task: tc.ID, push: f.push}
	cli, err := consume.NewClient(f.driver, cfg, f.resolveQuery(), cb.Deliver)
	if err != nil {
		return nil, fmt.Errorf("build client for task %q: %w", tc.ID, err)
	}
	if err := cli.Init(ctx); err != nil {
		return nil, fmt.Errorf("init client for task %q: %w", tc.ID, err)
	}
	cb.Bind(cli)
	return &Handle{ID: tc.ID, Client: cli, Config: cfg, cb: cb}, nil
}

// resolveQuery selects the desired-state query strategy by its configured
// name, read fresh from the holder on every creation so a config reload
// applies to the next client. Blank, unknown, or non-conforming names fall
// back to the manager query; selection never fails a creation.
func (f *Factory) resolveQuery() consume.QueryConfig {
	name := f.endpoints.QueryConfigType()
	if name == "" {
		return consume.NewManagerQuery()
	}
	q, ok := consume.LookupQuery(name)
	if !ok {
		logging.L().Warn("unknown query config type, using manager default", "type", name)
		return consume.NewManagerQuery()
	}
	return q
}

func localHostAddr() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, a := range addrs {
		if ipn, ok := a.(*net.IPNet); ok && !ipn.IP.IsLoopback() && ipn.IP.To4() != nil {
			return ipn.IP.String(), nil
		}
	}
	return "", errors.New("no non-loopback ipv4 address")
}
