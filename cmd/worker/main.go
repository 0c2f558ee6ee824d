package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/junksamiad/template-sender-engine-sub000/internal/bootstrap"
	"github.com/junksamiad/template-sender-engine-sub000/internal/config"
	"github.com/junksamiad/template-sender-engine-sub000/internal/processor"
)

// The worker runs the processor outside Lambda by long-polling the queue.
func main() {
	config.Load()
	cfg := config.LoadProcessor()

	log, err := cfg.Logger()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid worker config", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	proc, err := bootstrap.NewProcessor(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to init processor", "error", err)
	}
	defer proc.Close()

	poller, err := processor.NewPoller(proc.Queue, proc, processor.PollerConfig{QueueURL: cfg.QueueURL}, log)
	if err != nil {
		log.Fatal("Failed to init poller", "error", err)
	}
	if err := poller.Run(ctx); err != nil {
		log.Error("Worker stopped", "error", err)
	}
}
