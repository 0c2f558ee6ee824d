package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/junksamiad/template-sender-engine-sub000/internal/config"
	httpapi "github.com/junksamiad/template-sender-engine-sub000/internal/http"
	"github.com/junksamiad/template-sender-engine-sub000/internal/queue"
	"github.com/junksamiad/template-sender-engine-sub000/internal/store"
)

func main() {
	config.Load()
	cfg := config.LoadRouter()

	log, err := cfg.Logger()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid router config", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := config.LoadAWSConfig(ctx, cfg.AWSRegion)
	if err != nil {
		log.Fatal("Failed to load aws config", "error", err)
	}
	tenants, err := store.NewTenantStore(store.NewDynamoClient(awsCfg, cfg.DynamoEndpoint), cfg.CompanyDataTable)
	if err != nil {
		log.Fatal("Failed to init tenant store", "error", err)
	}

	app := &httpapi.App{
		Tenants:       tenants,
		Queue:         queue.NewSQSClient(sqs.NewFromConfig(awsCfg)),
		QueueURLs:     cfg.QueueURLs,
		RouterVersion: cfg.RouterVersion,
		Log:           log.With("component", "ChannelRouter"),
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(app, cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("Router listening", "addr", cfg.HTTPAddr, "router_version", cfg.RouterVersion)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("Router stopped", "error", err)
	}
}
