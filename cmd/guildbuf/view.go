package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/aeolun/guildbuf/pkg/buffers"
	"github.com/aeolun/guildbuf/pkg/config"
	"github.com/aeolun/guildbuf/pkg/host"
	"github.com/aeolun/guildbuf/pkg/logging"
	"github.com/aeolun/guildbuf/pkg/session"
	"github.com/aeolun/guildbuf/pkg/uiloop"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type viewOptions struct {
	configPath  *string
	snapshot    string
	metricsAddr string
	gateway     string
	logFile     string
}

func newViewCmd(configPath *string) *cobra.Command {
	opts := viewOptions{configPath: configPath}
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Browse the buffers of a session snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.snapshot, "snapshot", "", "session snapshot to load (required)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides [metrics] listen)")
	cmd.Flags().StringVar(&opts.gateway, "gateway", "", "websocket URL to send member lookups to")
	cmd.Flags().StringVar(&opts.logFile, "log-file", "", "write logs to this file instead of discarding them")
	_ = cmd.MarkFlagRequired("snapshot")
	return cmd
}

func runView(ctx context.Context, opts viewOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadConfig(*opts.configPath)
	if err != nil {
		return err
	}

	var logOut io.Writer = io.Discard
	if opts.logFile != "" {
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: logOut})
	logger := logging.Component("view")

	autojoin, err := cfg.AutojoinItems()
	if err != nil {
		return err
	}
	watched, err := cfg.WatchedItems()
	if err != nil {
		return err
	}

	mem, err := session.LoadSnapshot(opts.snapshot)
	if err != nil {
		return err
	}
	if opts.gateway != "" {
		gw, err := session.DialGateway(ctx, opts.gateway)
		if err != nil {
			return err
		}
		defer gw.Close()
		mem.SetRequester(gw)
	}

	var metrics *buffers.Metrics
	addr := cfg.Metrics.Listen
	if opts.metricsAddr != "" {
		addr = opts.metricsAddr
	}
	if addr != "" {
		reg := prometheus.NewRegistry()
		metrics = buffers.NewMetrics(reg)
		srv := startMetricsServer(addr, reg, logger)
		defer srv.Close()
	}

	mh := host.NewMemory()
	var h host.Host = mh
	if cfg.Notify.Enabled {
		h = newNotifyingHost(mh, desktopNotify, logging.Component("notify"))
	}

	loop := uiloop.New(buffers.NewRegistry(h, metrics), logging.Component("loop"))
	loop.Start()
	defer loop.Stop()

	holder := session.NewHolder(mem)
	mgr := buffers.NewManager(holder, loop, cfg, logging.Component("buffers"), metrics)

	if err := mgr.CreateBuffers(ctx); err != nil {
		return err
	}
	if err := mgr.CreateAutojoinBuffers(ctx, autojoin, watched); err != nil {
		return err
	}
	if err := loop.Flush(ctx); err != nil {
		return err
	}
	logger.Info().Int("buffers", len(mh.Keys())).Msg("buffers created")

	reload := func() (<-chan struct{}, int, error) {
		return reloadMembers(mem, opts.snapshot, mgr)
	}
	program := tea.NewProgram(newViewer(mh, mgr, reload), tea.WithAltScreen())
	_, err = program.Run()
	return err
}

func startMetricsServer(addr string, reg *prometheus.Registry, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	return srv
}
