package controller

import (
	"context"

	"flowgate/consume"
	"flowgate/internal/logging"
	"flowgate/internal/manager"
	"flowgate/internal/telemetry"
)

// Reconciler converges the live client pool to the latest desired task
// snapshot. It is the pool's only writer.
type Reconciler struct {
	pool      *Pool
	factory   *Factory
	endpoints *manager.Endpoints
}

func NewReconciler(pool *Pool, factory *Factory, endpoints *manager.Endpoints) *Reconciler {
	return &Reconciler{pool: pool, factory: factory, endpoints: endpoints}
}

// ReconcileOnce applies one desired snapshot: create clients for new tasks,
// evict and close clients whose tasks disappeared, then push the current
// manager URL into every survivor. Creations and removals both complete
// before the refresh pass starts.
func (r *Reconciler) ReconcileOnce(ctx context.Context, desired []manager.TaskConfig) {
	r.startNew(ctx, desired)
	r.stopExpired(desired)
	r.refreshAll()
	telemetry.ActiveClients.Set(float64(r.pool.Len()))
}

// startNew creates a client for every desired task missing from the pool.
// A failed creation is logged and skipped; the task stays absent and is
// retried on the next tick.
func (r *Reconciler) startNew(ctx context.Context, desired []manager.TaskConfig) {
	for _, tc := range desired {
		if r.pool.Get(tc.ID) != nil {
			continue
		}
		h, err := r.factory.Create(ctx, tc)
		if err != nil {
			telemetry.ClientCreateFailures.Inc()
			logging.L().Warn("client creation failed", "task", tc.ID, "err", err)
			continue
		}
		r.pool.Put(tc.ID, h)
		telemetry.ClientsCreated.Inc()
		logging.L().Info("client started", "task", tc.ID, "cluster", h.Config.Cluster)
	}
}

// stopExpired evicts every pooled task absent from the snapshot. The handle
// leaves the pool before close so a close failure cannot leave it behind;
// the close itself is best-effort and never retried.
func (r *Reconciler) stopExpired(desired []manager.TaskConfig) {
	want := make(map[string]struct{}, len(desired))
	for _, tc := range desired {
		want[tc.ID] = struct{}{}
	}
	for _, id := range r.pool.IDs() {
		if _, ok := want[id]; ok {
			continue
		}
		h := r.pool.Remove(id)
		if h == nil {
			continue
		}
		logging.L().Info("closing client", "task", id)
		if err := h.Client.Close(); err != nil {
			telemetry.ClientCloseFailures.Inc()
			logging.L().Error("client close failed", "task", id, "err", err)
		}
		telemetry.ClientsClosed.Inc()
	}
}

// refreshAll pushes the freshest manager URL into every surviving client's
// config. The update is non-disruptive; clients pick it up on their next
// manager round-trip.
func (r *Reconciler) refreshAll() {
	u := r.endpoints.ManagerURL()
	for _, h := range r.pool.Handles() {
		h.Config.SetManagerURL(u)
	}
}

// NewAckDispatcher returns the delivery/ack capability: given a token, it
// resolves the owning task's live client through the pool and forwards the
// ack. Tokens for unknown tasks (already evicted) are dropped.
func NewAckDispatcher(pool *Pool) func(consume.Token) {
	return func(tok consume.Token) {
		if h := pool.Get(tok.Task); h != nil {
			h.Ack(tok)
		}
	}
}
