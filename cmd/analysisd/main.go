package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"timeseries-analysis/config"
	"timeseries-analysis/internal/analysisd"
	"timeseries-analysis/internal/logger"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg := config.Load()
	logger.Init("analysisd", logger.ParseLevel(cfg.LogLevel))
	log.Printf("[analysisd] series: %v, generator interval: %v", cfg.ParseSeriesIDs(), cfg.GeneratorInterval)

	svc, err := analysisd.New(cfg)
	if err != nil {
		log.Fatalf("[analysisd] init failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := svc.Run(ctx); err != nil {
		log.Fatalf("[analysisd] fatal: %v", err)
	}
}
