package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/junksamiad/template-sender-engine-sub000/internal/bootstrap"
	"github.com/junksamiad/template-sender-engine-sub000/internal/config"
)

func main() {
	config.Load()
	cfg := config.LoadProcessor()

	log, err := cfg.Logger()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid processor config", "error", err)
	}

	proc, err := bootstrap.NewProcessor(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("Failed to init processor", "error", err)
	}
	defer proc.Close()

	log.Info("Processor lambda started", "queue_url", cfg.QueueURL)
	lambda.Start(proc.HandleSQSEvent)
}
