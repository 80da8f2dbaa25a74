// rulserve exposes the bearing simulation over HTTP. A run is started with
// POST /api/start-simulation and its records are streamed to clients over
// server-sent events (/api/events) or WebSocket (/api/ws).
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/OrlandoFon/Backend-TCCRolamentos/config"
	"github.com/OrlandoFon/Backend-TCCRolamentos/server"
)

var version = "dev"

func main() {
	var (
		addr       string
		basePath   string
		format     string
		configPath string
		logLevel   string
		delay      time.Duration
		backlog    int
	)

	cmd := &cobra.Command{
		Use:   "rulserve",
		Short: "Serve bearing RUL simulations over HTTP",
		Long: `rulserve runs one bearing simulation at a time and broadcasts its
records to every connected client.

Routes:
  GET  /api/bearings          bearings available for simulation
  POST /api/start-simulation  start a run (JSON body, bearingName required)
  GET  /api/stop-simulation   stop the active run
  GET  /api/events            server-sent event stream
  GET  /api/ws                WebSocket stream`,
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := log.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			log.SetLevel(level)
			log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

			cfg := config.Default()
			if configPath != "" {
				if cfg, err = config.Load(configPath); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("delay") {
				cfg.StepDelay = delay
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), addr, cfg, basePath, format, backlog)
		},
		SilenceUsage: true,
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", ":3001", "listen address")
	f.StringVar(&basePath, "base-path", "", "dataset root used when a request has no basePath")
	f.StringVar(&format, "format", "csv", "dataset file format: csv or wav")
	f.StringVar(&configPath, "config", "", "YAML file overriding the default configuration")
	f.StringVar(&logLevel, "log-level", "info", "log level")
	f.DurationVar(&delay, "delay", 0, "pause between steps")
	f.IntVar(&backlog, "backlog", 4096, "records replayed to late subscribers")

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, addr string, cfg config.Config, basePath, format string, backlog int) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.StandardLogger()
	srv := server.New(cfg,
		server.NewDriverFactory(cfg, basePath, format, logger),
		server.WithLogger(logger),
		server.WithBacklog(backlog),
		server.WithBaseContext(ctx),
	)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", addr).Info("listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		srv.Stop()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return httpSrv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	srv.Wait()
	log.Info("server stopped")
	return err
}
