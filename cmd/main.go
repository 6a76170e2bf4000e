// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package main runs the WebSocket reverse proxy with metrics, health
// checks, per-target circuit breakers, and optional rate limiting.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/absmach/wsproxy"
	"github.com/absmach/wsproxy/examples/simple"
	"github.com/absmach/wsproxy/pkg/health"
	"github.com/absmach/wsproxy/pkg/metrics"
	"github.com/absmach/wsproxy/pkg/middleware"
	"github.com/absmach/wsproxy/pkg/proxy"
	"github.com/absmach/wsproxy/pkg/ratelimit"
)

const envPrefix = "WSPROXY_"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	// Load .env file
	if err := godotenv.Load(); err != nil {
		// .env file is optional
	}

	cfg, err := wsproxy.NewConfig(env.Options{Prefix: envPrefix})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Port == "" {
		fmt.Fprintf(os.Stderr, "%sPORT not configured\n", envPrefix)
		os.Exit(1)
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)

	m := metrics.New("wsproxy")

	var limiter *ratelimit.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = cfg.RateLimit
		}
		limiter = ratelimit.NewLimiter(burst, cfg.RateLimit, 10000)
		defer limiter.Close()
	}

	handler := simple.New(logger, limiter)

	p := proxy.New(proxy.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		ConnectTimeout:  cfg.ConnectTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		TLSConfig:       cfg.TLSConfig,
		Metrics:         m,
		Logger:          logger,
	}, handler)

	pairs, err := cfg.RoutePairs()
	if err != nil {
		logger.Error("invalid route configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	for _, pair := range pairs {
		p.Route(pair[0], pair[1], nil)
		logger.Info("route registered",
			slog.String("pattern", pair[0]),
			slog.String("target", pair[1]))
	}

	p.Use(middleware.Logging(logger))
	if limiter != nil {
		p.Use(middleware.RateLimit(limiter))
	}

	// Ops server: metrics and health probes
	if cfg.OpsPort != "" {
		checker := health.NewChecker(10 * time.Second)
		checker.Register("routes", func(ctx context.Context) error {
			if p.Routes().Len() == 0 {
				return fmt.Errorf("no routes configured")
			}
			return nil
		})
		checker.Register("sessions", func(ctx context.Context) error {
			m.ActiveSessions.Set(float64(p.Sessions().Len()))
			return nil
		})

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/health", checker.HTTPHandler())
		mux.HandleFunc("/readyz", checker.ReadinessHandler())
		mux.HandleFunc("/livez", health.LivenessHandler())

		opsSrv := &http.Server{
			Addr:    net.JoinHostPort(cfg.Host, cfg.OpsPort),
			Handler: mux,
		}

		g.Go(func() error {
			logger.Info("ops server started", slog.String("address", opsSrv.Addr))
			if err := opsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer shutdownCancel()
			return opsSrv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		return p.Listen(ctx)
	})

	g.Go(func() error {
		return StopSignalHandler(ctx, cancel, logger)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("wsproxy service terminated with error: %s", err))
	} else {
		logger.Info("wsproxy service stopped")
	}
}

// setupLogger creates a structured logger with the specified level and format.
func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	var h slog.Handler
	if format == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(h)
}

func StopSignalHandler(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger) error {
	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-c:
		logger.Info("received shutdown signal")
		cancel()
		return nil
	case <-ctx.Done():
		return nil
	}
}
