package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

// gracefulShutdown waits for a SIGINT or SIGTERM signal or for ctx to end
// and cancels the application context. After the timeout, it forces a shutdown
func gracefulShutdown(ctx context.Context, cancel context.CancelFunc, timeout time.Duration) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
		log.Warning("Received shutdown signal")
	case <-ctx.Done():
		return
	}

	cancel()
	time.Sleep(timeout)
	log.Fatal("Graceful shutdown timed out")
}
