package engine

import (
	"context"
	"fmt"
	"time"

	"flowgate/consume"
	"flowgate/internal/config"
	"flowgate/internal/controller"
	"flowgate/internal/logging"
	"flowgate/internal/manager"
	"flowgate/internal/telemetry"
	"flowgate/internal/transport"
	"flowgate/sink"
)

func Bootstrap(ctx context.Context, cfg config.Config, cfgPath string) (*Engine, error) {
	endpoints := manager.NewEndpoints(cfg.ManagerURL, cfg.ClusterName)
	endpoints.SetQueryConfigType(cfg.QueryType)

	pool := controller.NewPool()
	dispatch := controller.NewAckDispatcher(pool)

	sinks := make([]sink.Adapter, 0, len(cfg.Sinks))
	for _, name := range cfg.Sinks {
		s, err := sink.NewAdapter(name)
		if err != nil {
			return nil, err
		}
		if err := s.Configure(sinkConfigFor(name, cfg.SinkConfigs)); err != nil {
			return nil, fmt.Errorf("sink %s: %w", name, err)
		}
		if aw, ok := s.(sink.AckAware); ok {
			aw.BindAck(dispatch)
		}
		sinks = append(sinks, s)
	}

	e := &Engine{sinks: sinks}

	factory := controller.NewFactory(cfg.Driver, endpoints, e.pushRecord)
	rec := controller.NewReconciler(pool, factory, endpoints)

	var tasks manager.Lister
	if cfg.TasksFile != "" {
		tasks = &manager.FileSource{Path: cfg.TasksFile}
	} else {
		tasks = manager.NewHTTPSource(endpoints)
	}

	e.scheduler = controller.NewScheduler(
		time.Duration(cfg.ReloadInterval)*time.Second, rec, tasks, pool)

	srv, err := transport.StartServer(cfg.HealthPort)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	e.transport = srv

	telemetry.Expose(cfg.MetricsPort)

	// The endpoint holder tracks config file edits so survivors pick up a
	// moved manager (or a changed query strategy) on the next tick without
	// restarting.
	if cfgPath != "" {
		unwatch, err := config.Watch(cfgPath, func(c config.Config) {
			endpoints.Update(c.ManagerURL, c.ClusterName)
			endpoints.SetQueryConfigType(c.QueryType)
		})
		if err != nil {
			logging.L().Warn("config watch unavailable", "path", cfgPath, "err", err)
		} else {
			e.unwatch = unwatch
		}
	}

	return e, nil
}

func sinkConfigFor(name string, sc config.SinkConfigs) any {
	switch name {
	case "stdout":
		return sc.Stdout
	case "kafka":
		return sc.Kafka
	default:
		return nil
	}
}

func (e *Engine) pushRecord(r *consume.Record) error {
	for _, s := range e.sinks {
		if err := s.Push(r); err != nil {
			return err
		}
	}
	return nil
}
