package commands

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"docchain/internal/backup"
	"docchain/internal/blob"
	"docchain/internal/collections"
	"docchain/internal/config"
	"docchain/internal/core"
	"docchain/internal/observability"
	"docchain/internal/platform/logger"
	"docchain/internal/printer"
	"docchain/internal/registry"
)

// app carries the state shared by every subcommand of one invocation.
type app struct {
	configPath string
	trace      bool

	cfg      config.Config
	log      *logger.Logger
	recorder observability.Recorder
	promReg  *prometheus.Registry
	registry *registry.Registry
	engine   *core.Engine
	metrics  *http.Server
}

// openRegistry loads configuration, logging, metrics and the collection
// registry. It is idempotent.
func (a *app) openRegistry(cmd *cobra.Command) error {
	if a.registry != nil {
		return nil
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return printer.Error(cmd.ErrOrStderr(), "Configuration error", err.Error(),
			"Check the file passed with --config", "Check DOCCHAIN_* environment variables")
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	promReg := prometheus.NewRegistry()
	prom, err := observability.NewPrometheusRecorder(promReg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	recorders := observability.Multi{prom}
	if cfg.Metrics.Expvar {
		recorders = append(recorders, observability.NewExpvarRecorder(""))
	}
	reg := registry.New(
		registry.WithLogger(log),
		registry.WithObserver(observability.NewHookObserver(log, recorders)),
	)
	if err := collections.Register(reg); err != nil {
		return fmt.Errorf("define collections: %w", err)
	}
	a.cfg, a.log, a.recorder, a.promReg, a.registry = cfg, log, recorders, promReg, reg
	return nil
}

// openEngine additionally opens the configured backend, registers every
// collection with a fresh engine and starts the metrics listener.
func (a *app) openEngine(cmd *cobra.Command) error {
	if a.engine != nil {
		return nil
	}
	if err := a.openRegistry(cmd); err != nil {
		return err
	}
	ctx := cmd.Context()
	backend, err := core.OpenBackend(ctx, a.cfg.Storage)
	if err != nil {
		return printer.Error(cmd.ErrOrStderr(), "Storage unavailable", err.Error(),
			fmt.Sprintf("Verify the %s backend is reachable", a.cfg.Storage.Driver))
	}
	opts := []core.Option{core.WithLogger(a.log), core.WithRecorder(a.recorder)}
	if a.trace {
		opts = append(opts, core.WithTracer(observability.NewJSONTracer(cmd.ErrOrStderr())))
	}
	engine := core.NewEngine(backend, opts...)
	if err := a.registry.RegisterAll(ctx, engine); err != nil {
		_ = engine.Close()
		return fmt.Errorf("register collections: %w", err)
	}
	a.engine = engine
	return a.serveMetrics()
}

func (a *app) serveMetrics() error {
	if a.cfg.Metrics.Addr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", a.cfg.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.promReg, promhttp.HandlerOpts{}))
	mux.Handle("/debug/vars", expvar.Handler())
	a.metrics = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.metrics.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics server stopped", "error", err)
		}
	}()
	a.log.Info("serving metrics", "addr", ln.Addr().String())
	return nil
}

func (a *app) backups(cmd *cobra.Command) (*backup.Service, error) {
	if err := a.openEngine(cmd); err != nil {
		return nil, err
	}
	store, err := blob.Open(cmd.Context(), a.cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	return backup.New(a.engine.Backend(), store, backup.WithLogger(a.log)), nil
}

func (a *app) collection(cmd *cobra.Command, name string) (*registry.Collection, error) {
	if err := a.openRegistry(cmd); err != nil {
		return nil, err
	}
	c, ok := a.registry.Lookup(name)
	if !ok {
		var names []string
		for _, c := range a.registry.Collections() {
			names = append(names, c.Name)
		}
		return nil, printer.Error(cmd.ErrOrStderr(), fmt.Sprintf("Unknown collection %q", name),
			fmt.Sprintf("Defined collections: %v", names))
	}
	return c, nil
}

func (a *app) close() error {
	var errs []error
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		errs = append(errs, a.metrics.Shutdown(ctx))
		cancel()
		a.metrics = nil
	}
	if a.engine != nil {
		errs = append(errs, a.engine.Close())
		a.engine = nil
	}
	if a.log != nil {
		a.log.Sync()
	}
	return errors.Join(errs...)
}
