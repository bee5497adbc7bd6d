package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"

	"github.com/gorilla/mux"
	"github.com/martin2250/perfstream/api"
	"github.com/martin2250/perfstream/pkg/influx"
	"github.com/martin2250/perfstream/streamer"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func newSink(conf Configuration, stdout bool) streamer.Sink {
	if stdout {
		return &influx.StreamWriter{W: os.Stdout}
	}

	return &influx.Writer{
		Address:   conf.Sink.Address,
		Username:  conf.Sink.Username,
		Password:  conf.Sink.Password,
		Precision: conf.Sink.Precision,
		Timeout:   conf.Sink.Timeout,
	}
}

// newRouter serves the status API and the runtime profiles
func newRouter(manager *streamer.Manager) *mux.Router {
	r := mux.NewRouter()
	api.Register(manager, r)

	// Index only serves the named profiles
	r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	r.HandleFunc("/debug/pprof/profile", pprof.Profile)
	r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	r.HandleFunc("/debug/pprof/trace", pprof.Trace)
	r.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)

	return r
}

func main() {
	// command line
	opts := readCommandLineOptions()

	// profiling
	if opts.Profile != "" {
		defer startProfile(opts)()
	}

	// configuration
	conf := readConfigurationFile(opts.ConfigPath)
	logSetup(conf, opts.Debug)

	streamers, err := loadStreamers(conf, newSink(conf, opts.Stdout), log.StandardLogger())
	if err != nil {
		log.WithError(err).Fatal("Failed to load sources")
	}

	// shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gracefulShutdown(ctx, cancel, conf.ShutdownTimeout)

	g, ctx := errgroup.WithContext(ctx)

	// streaming
	manager := streamer.NewManager(log.StandardLogger())
	for _, s := range streamers {
		if err := manager.Start(ctx, s); err != nil {
			log.WithError(err).Fatal("Failed to start streaming")
		}
	}

	g.Go(func() error {
		<-ctx.Done()
		manager.StopAll()
		return nil
	})

	// http
	if conf.API.Address != "" {
		srv := &http.Server{
			Addr:    conf.API.Address,
			Handler: newRouter(manager),

			ReadHeaderTimeout: conf.API.Timeout,
			ReadTimeout:       conf.API.Timeout,
			WriteTimeout:      conf.API.Timeout,
			IdleTimeout:       conf.API.Timeout,
		}

		g.Go(func() error {
			log.WithField("address", srv.Addr).Info("Serving status API")
			err := srv.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})

		g.Go(func() error {
			<-ctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), conf.API.Timeout)
			defer scancel()
			return srv.Shutdown(sctx)
		})
	}

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("HTTP server failed")
	}

	log.Info("Terminating")
}
