// Command mcp-gate serves a tool server behind bearer-token authorization.
//
// Configuration is read from the environment; see internal/config.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ggoodman/mcp-gate/audit"
	"github.com/ggoodman/mcp-gate/auth"
	"github.com/ggoodman/mcp-gate/gate"
	"github.com/ggoodman/mcp-gate/internal/config"
	"github.com/ggoodman/mcp-gate/internal/logctx"
	"github.com/ggoodman/mcp-gate/internal/telemetry"
	"github.com/ggoodman/mcp-gate/toolserver"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	lvl, _ := cfg.SlogLevel()
	log := slog.New(logctx.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))

	ac, opts, err := cfg.VerifierConfig()
	if err != nil {
		return err
	}
	verifier, err := auth.NewVerifier(ac, opts...)
	if err != nil {
		return err
	}

	tools, err := toolserver.New(
		[]toolserver.StaticTool{toolserver.Greet(log)},
		toolserver.WithLogger(log),
		toolserver.WithServerInfo("mcp-gate", "1.0.0"),
	)
	if err != nil {
		return err
	}

	mp, err := telemetry.NewMeterProvider(ctx, cfg.MetricsExporter, os.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := mp.Shutdown(flushCtx); err != nil {
			log.Warn("metrics.shutdown.fail", slog.String("err", err.Error()))
		}
	}()

	gateOpts := []gate.Option{
		gate.WithLogger(log),
		gate.WithMeter(mp.Meter("github.com/ggoodman/mcp-gate/gate")),
	}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()

		sink, err := audit.NewRedisStreamSink(client, cfg.AuditStream, 0)
		if err != nil {
			return err
		}
		d, err := audit.NewDispatcher(sink, audit.WithLogger(log))
		if err != nil {
			return err
		}
		defer d.Close()
		gateOpts = append(gateOpts, gate.WithAuditor(d))
		log.Info("audit.enabled", slog.String("stream", cfg.AuditStream))
	}

	g := gate.New(tools, verifier, gateOpts...)
	if err := g.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           g,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http.listen", slog.String("addr", cfg.ListenAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutdown.start")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Close event streams first so the HTTP server does not wait on them.
	if err := g.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown.handler.fail", slog.String("err", err.Error()))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	log.Info("shutdown.done")
	return nil
}
