// Command ccproxy is the entry point for the cc-proxy reverse proxy.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/cc-proxy/internal/compare"
	"github.com/anthropics/cc-proxy/internal/config"
	"github.com/anthropics/cc-proxy/internal/forward"
	"github.com/anthropics/cc-proxy/internal/mode"
	"github.com/anthropics/cc-proxy/internal/rewrite"
	"github.com/anthropics/cc-proxy/internal/server"
	"github.com/anthropics/cc-proxy/internal/stats"
	"github.com/anthropics/cc-proxy/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath         string
		targetURL          string
		modelOverride      string
		allowAnthropicOnly bool
	)

	flag.StringVar(&configPath, "config", "config.toml", "path to the TOML config file")
	flag.StringVar(&targetURL, "target-url", "", "override the target upstream's base URL")
	flag.StringVar(&modelOverride, "model", "", "override the request's model field before forwarding")
	flag.BoolVar(&allowAnthropicOnly, "allow-anthropic-only", false, "permit the anthropic-only mode to be selected")
	flag.Parse()

	// Positional first argument is an alternate config path, per spec §6.
	if flag.NArg() > 0 {
		configPath = flag.Arg(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if targetURL != "" {
		cfg.Target.URL = targetURL
	}
	allowAnthropicOnly = allowAnthropicOnly || cfg.AllowAnthropicOnly

	modeReg, ok := mode.Parse(cfg.DefaultMode)
	if !ok {
		return fmt.Errorf("unknown default_mode %q", cfg.DefaultMode)
	}
	if modeReg == mode.AnthropicOnly && !allowAnthropicOnly {
		return errors.New("default_mode is anthropic-only but the proxy wasn't started with --allow-anthropic-only")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracingFlag := mode.NewFlag(cfg.Tracing.Enabled)
	tracerProvider, err := telemetry.Setup(ctx, cfg.Tracing.OTLPEndpoint, tracingFlag)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracerProvider.Shutdown(shutdownCtx)
	}()

	st := stats.New()

	passthroughForwarder := forward.New(cfg.Passthrough.URL, cfg.Passthrough.Timeout, false, logger)
	targetForwarder := forward.New(cfg.Target.URL, cfg.Target.Timeout, true, logger)
	catchall := forward.NewCatchall(cfg.Passthrough.URL, cfg.Passthrough.Timeout, logger)
	compareDispatcher := compare.New(cfg.Target.URL, cfg.Target.MaxConcurrent, cfg.Target.Timeout, logger, tracerProvider)

	srv := server.New(server.Deps{
		Logger:             logger,
		Tracer:             tracerProvider,
		ModeReg:            mode.NewRegister(modeReg),
		TracingFlag:        tracingFlag,
		Stats:              st,
		Passthrough:        passthroughForwarder,
		Target:             targetForwarder,
		Catchall:           catchall,
		Compare:            compareDispatcher,
		ModelOverride:      modelOverride,
		DefaultMaxTokens:   rewrite.DefaultMaxTokens,
		AllowAnthropicOnly: allowAnthropicOnly,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("cc-proxy listening", "addr", cfg.Server.Addr, "mode", modeReg.String())
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down, draining in-flight requests")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
	}

	return nil
}
