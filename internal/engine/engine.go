package engine

import (
	"context"

	"flowgate/internal/controller"
	"flowgate/internal/transport"
	"flowgate/sink"
)

type Engine struct {
	transport *transport.Server
	scheduler *controller.Scheduler
	sinks     []sink.Adapter
	unwatch   func() error
}

func (e *Engine) Run(ctx context.Context) error {
	if err := e.scheduler.Start(ctx); err != nil {
		return err
	}
	e.transport.Ready()

	go func() {
		<-ctx.Done()
		if e.unwatch != nil {
			_ = e.unwatch()
		}
		e.scheduler.Stop()
		for _, s := range e.sinks {
			_ = s.Close()
		}
		e.transport.Stop()
	}()

	return e.transport.Serve()
}
