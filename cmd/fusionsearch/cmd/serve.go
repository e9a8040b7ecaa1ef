package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/fusionsearch/internal/catalog"
	apperrors "github.com/Aman-CERP/fusionsearch/internal/errors"
	"github.com/Aman-CERP/fusionsearch/internal/logging"
	"github.com/Aman-CERP/fusionsearch/internal/mcp"
	"github.com/Aman-CERP/fusionsearch/internal/output"
)

// serveLockName guards against two HTTP servers sharing one state directory.
const serveLockName = "serve.lock"

// serveOptions holds CLI flags for serve.
type serveOptions struct {
	transport   string
	addr        string
	metricsAddr string
	watch       bool
}

func newServeCmd(global *globalOptions) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP server exposing the search, suggest and query_stats tools.

The stdio transport is meant to be launched by an MCP client. The http
transport serves the streamable HTTP protocol on --addr.`,
		Example: `  fusionsearch serve --catalog catalog.yaml
  fusionsearch serve --transport http --addr 127.0.0.1:8765 --watch
  fusionsearch serve --transport http --metrics-addr 127.0.0.1:9090`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, global, opts)
		},
	}

	cmd.Flags().StringVar(&opts.transport, "transport", "", "Transport: stdio or http (default from config)")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address for the http transport")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Reindex when the catalog changes")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, global *globalOptions, opts serveOptions) error {
	cfg, err := global.loadConfig()
	if err != nil {
		return err
	}
	if opts.transport != "" {
		cfg.Server.Transport = strings.ToLower(opts.transport)
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}
	if opts.metricsAddr != "" {
		cfg.Server.MetricsAddr = opts.metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return apperrors.ConfigError("invalid server flags", err)
	}
	if opts.watch && cfg.Sources.Catalog == "" {
		return errors.New("--watch requires a catalog (--catalog or sources.catalog)")
	}

	// stdout carries JSON-RPC on stdio, so logs go to the file only
	logCfg := cfg.Logging
	if cfg.Server.Transport == mcp.TransportStdio {
		logCfg = logging.ServeConfig(logCfg)
	}
	logger, logCleanup, err := global.setupLogging(logCfg)
	if err != nil {
		return err
	}
	defer logCleanup()

	if cfg.Server.Transport == mcp.TransportStdio {
		if err := verifyStdinForMCP(); err != nil {
			output.New(cmd.ErrOrStderr()).Warning(err.Error())
		}
	} else {
		lock, err := acquireServeLock(filepath.Join(logging.DefaultLogDir(), serveLockName))
		if err != nil {
			return err
		}
		defer func() { _ = lock.Unlock() }()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	server, err := mcp.NewServer(a.engine, mcp.WithLogger(logger))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(gctx, cfg.Server.Transport, cfg.Server.Addr)
	})

	if cfg.Server.MetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.Server.MetricsAddr, a.metrics.Handler(), logger)
		})
	}

	if opts.watch {
		watcher := catalog.NewWatcher(cfg.Sources.Catalog, a.indexer, catalog.WithWatchLogger(logger))
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// verifyStdinForMCP reports an interactive stdin, which no MCP client will
// ever write to.
func verifyStdinForMCP() error {
	if output.IsTTY(os.Stdin) {
		return errors.New("stdin is a terminal; the stdio transport expects an MCP client on a pipe")
	}
	return nil
}

// acquireServeLock takes an exclusive lock and records the pid in it.
func acquireServeLock(path string) (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire %s: %w", path, err)
	}
	if !locked {
		pid, _ := os.ReadFile(path)
		return nil, fmt.Errorf("another fusionsearch server is running (pid %s)", strings.TrimSpace(string(pid)))
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to write pid: %w", err)
	}
	return lock, nil
}

// serveMetrics exposes /metrics until ctx is canceled.
func serveMetrics(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics_server_starting", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
