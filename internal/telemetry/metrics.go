package telemetry

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ReconcileTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flowgate_reconcile_total",
		Help: "Completed reconcile ticks.",
	})
	ReconcileSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flowgate_reconcile_skipped_total",
		Help: "Ticks skipped because the previous one was still running.",
	})
	ClientsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flowgate_clients_created_total",
		Help: "Consume clients created.",
	})
	ClientCreateFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flowgate_client_create_failures_total",
		Help: "Consume client creations that failed; retried next tick.",
	})
	ClientsClosed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flowgate_clients_closed_total",
		Help: "Consume clients evicted and closed.",
	})
	ClientCloseFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flowgate_client_close_failures_total",
		Help: "Close errors swallowed during eviction.",
	})
	ActiveClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flowgate_clients_active",
		Help: "Live consume clients in the pool.",
	})
)

func init() {
	prometheus.MustRegister(
		ReconcileTotal, ReconcileSkipped,
		ClientsCreated, ClientCreateFailures,
		ClientsClosed, ClientCloseFailures,
		ActiveClients,
	)
}

func Expose(port int) {
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		_ = http.ListenAndServe(fmt.Sprintf(":%d", port), nil)
	}()
}
