// perfstream-sink is an InfluxDB stand-in that accepts writes and logs them
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/martin2250/perfstream/ingest"
	"github.com/martin2250/perfstream/ingest/pointlistener"
	log "github.com/sirupsen/logrus"
)

// drain logs a summary of the received points every interval
func drain(ctx context.Context, fifo ingest.PointFifo, interval time.Duration, printPoints bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		counts := make(map[string]int)

		for {
			p, err := fifo.GetPoint()
			if err != nil {
				break
			}
			counts[p.Database+"."+p.Measurement]++
			if printPoints {
				fmt.Println(p.String())
			}
		}

		for name, n := range counts {
			log.WithField("measurement", name).Infof("Received %d points", n)
		}
	}
}

func main() {
	opts := readCommandLineOptions()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fifo := ingest.NewPointFifo()
	go drain(ctx, fifo, time.Second, opts.Print)

	r := mux.NewRouter()
	r.Handle("/write", pointlistener.WriteHandler{
		Sink:     fifo,
		Log:      log.StandardLogger(),
		Username: opts.Username,
		Password: opts.Password,
		Reject:   opts.Reject,
	})
	r.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:              opts.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Warning("Received shutdown signal")
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		srv.Shutdown(sctx)
	}()

	log.WithField("address", opts.Address).Info("Accepting writes")

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("HTTP server failed")
		os.Exit(1)
	}
}
