package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/senomardetritos/sgbd-sqlserver/internal/alter"
	"github.com/senomardetritos/sgbd-sqlserver/internal/catalog"
	"github.com/senomardetritos/sgbd-sqlserver/internal/config"
	"github.com/senomardetritos/sgbd-sqlserver/internal/engine"
	"github.com/senomardetritos/sgbd-sqlserver/internal/journal"
	"github.com/senomardetritos/sgbd-sqlserver/internal/logging"
	"github.com/senomardetritos/sgbd-sqlserver/internal/metrics"
	"github.com/senomardetritos/sgbd-sqlserver/internal/metrics/datadog"
	"github.com/senomardetritos/sgbd-sqlserver/internal/metrics/prom"
	"github.com/senomardetritos/sgbd-sqlserver/internal/ws"
)

// runtime holds everything a command needs to talk to the catalog.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   catalog.Store
	sink    journal.Sink
	journal *journal.Journal
	engine  *engine.Engine
	hub     *ws.Hub

	// metricsHandler is set when the prometheus backend is selected.
	metricsHandler http.Handler
}

type runtimeOptions struct {
	// hub pushes plan progress to websocket clients.
	hub bool
	// quiet keeps log lines off the terminal (interactive review).
	quiet bool
}

// loadRuntime loads the config, sets up logging, connects to the catalog and
// wires the metrics backend and journal.
func loadRuntime(ctx context.Context, opts runtimeOptions) (*runtime, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	level := cfg.Logging.Level
	if rootCmd.PersistentFlags().Changed("log-level") {
		level = logLevel
	}
	var console io.Writer = os.Stderr
	if opts.quiet {
		console = nil
	}
	logger, err := logging.Setup(level, cfg.Logging.Directory, console)
	if err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: logger}
	if err := rt.setupMetrics(); err != nil {
		return nil, err
	}

	store, err := catalog.Open(ctx, cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("connecting to catalog: %w", err)
	}
	rt.store = store

	sink, err := journal.Open(ctx, cfg.Journal)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	rt.sink = sink
	rt.journal = journal.New(sink, logger)

	observers := []alter.Observer{rt.journal}
	if opts.hub {
		rt.hub = ws.NewHub(logger)
		observers = append(observers, rt.hub)
	}
	rt.engine = engine.New(cfg, store, logger, observers...)

	logger.Debug("runtime ready",
		"dialect", cfg.Catalog.Dialect,
		"host", cfg.Catalog.Host,
		"metrics", cfg.Metrics.Backend,
		"journal", cfg.Journal.Sink,
	)
	return rt, nil
}

func (rt *runtime) setupMetrics() error {
	m := rt.cfg.Metrics
	switch m.Backend {
	case "prometheus":
		b, err := prom.NewBackend(m.Namespace, m.PushgatewayURL)
		if err != nil {
			return fmt.Errorf("prometheus metrics: %w", err)
		}
		metrics.SetBackend(b)
		rt.metricsHandler = b.Handler()
	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:      m.StatsdAddr,
			Namespace: m.Namespace + ".",
			Tags:      m.Tags,
		})
		if err != nil {
			return fmt.Errorf("datadog metrics: %w", err)
		}
		metrics.SetBackend(b)
	}
	return nil
}

// reader returns the journal sink as a Reader when it supports listing.
func (rt *runtime) reader() (journal.Reader, bool) {
	r, ok := rt.sink.(journal.Reader)
	return r, ok
}

// close flushes metrics and releases the journal and the catalog.
func (rt *runtime) close() {
	if err := metrics.Flush(); err != nil {
		rt.logger.Warn("flushing metrics", "error", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.journal.Close(ctx); err != nil {
		rt.logger.Warn("closing journal", "error", err)
	}
	if err := rt.store.Close(); err != nil {
		rt.logger.Warn("closing catalog", "error", err)
	}
}
