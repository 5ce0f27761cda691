package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"flowgate/consume"
	"flowgate/internal/config"
	"flowgate/internal/engine"
	"flowgate/internal/logging"

	_ "flowgate/sink/kafka"
	_ "flowgate/sink/stdout"
)

func main() {
	path := "flowgate.yml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	logging.InitFromEnv()

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consume.Register("sarama", consume.NewSaramaDriver)

	e, err := engine.Bootstrap(ctx, cfg, path)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	if err := e.Run(ctx); err != nil {
		log.Fatalf("engine: %v", err)
	}
}
