package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reinodovo/boto-heapsort/internal/bot"
	"github.com/reinodovo/boto-heapsort/internal/config"
	"github.com/reinodovo/boto-heapsort/internal/database"
	"github.com/reinodovo/boto-heapsort/internal/logging"
	"github.com/reinodovo/boto-heapsort/internal/store"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.LookupEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error initialising logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		level.Error(logger).Log("msg", "error running boto_sort", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	level.Info(logger).Log("msg", "database ready", "backend", cfg.Database.Backend)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	b, err := bot.NewTelegramBot(cfg.Telegram, store.NewStore(db), logger, reg)
	if err != nil {
		return err
	}

	if cfg.HTTP.ListenAddress != "" {
		srv := &http.Server{
			Addr:              cfg.HTTP.ListenAddress,
			Handler:           newRouter(reg),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			level.Info(logger).Log("msg", "serving http", "addr", cfg.HTTP.ListenAddress)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				level.Error(logger).Log("msg", "http server failed", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	return b.Start(ctx)
}

func newRouter(reg *prometheus.Registry) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})).Methods(http.MethodGet)
	r.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}).Methods(http.MethodGet)
	return r
}
