package main

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/golovatskygroup/compliance-mcp/internal/audit"
	"github.com/golovatskygroup/compliance-mcp/internal/compliance"
	"github.com/golovatskygroup/compliance-mcp/internal/config"
	"github.com/golovatskygroup/compliance-mcp/internal/logging"
	"github.com/golovatskygroup/compliance-mcp/internal/metrics"
	"github.com/golovatskygroup/compliance-mcp/internal/upstream"
)

// app holds the wiring shared by serve and call.
type app struct {
	cfg        config.Config
	logger     *slog.Logger
	registry   *prometheus.Registry
	dispatcher *compliance.Dispatcher
	journal    *audit.Journal
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Lookup("dev") != nil {
		if dev, _ := cmd.Flags().GetBool("dev"); dev {
			cfg.DevelopmentMode = true
		}
	}
	return cfg, nil
}

func newApp(cfg config.Config) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}),
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(a.registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	for _, w := range cfg.Warnings() {
		a.logger.Warn(w)
	}

	client := upstream.NewClient(cfg.Upstream, cfg.HTTPCache,
		upstream.WithMetrics(m),
		upstream.WithLogger(logging.Component(a.logger, "upstream")),
	)

	opts := []compliance.Option{
		compliance.WithLogger(a.logger),
		compliance.WithMetrics(m),
	}
	if cfg.Audit.Path != "" {
		j, err := audit.Open(cfg.Audit.Path)
		if err != nil {
			return nil, err
		}
		a.journal = j
		opts = append(opts, compliance.WithJournal(j))
	}

	a.dispatcher, err = compliance.NewDispatcher(compliance.NewFetcher(cfg.DevelopmentMode, client), opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Warn("closing audit journal", "error", err)
		}
	}
}
