// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Command evolu-relay runs a single relay process: an HTTP and
// WebSocket frontend over relay.Storage, serving every owner that
// connects to it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/evoluhq/evolu-sub007/relay"
	"github.com/evoluhq/evolu-sub007/telemetry"
)

func main() {
	addr := flag.String("addr", ":8787", "address to serve sync traffic on")
	metricsAddr := flag.String("metrics-addr", ":9091", "address to serve Prometheus metrics on")
	quotaBytes := flag.Uint64("quota-bytes", 100*1024*1024, "default per-owner storage quota, in bytes")
	development := flag.Bool("dev", false, "use a human-readable console logger instead of JSON")
	flag.Parse()

	logger, err := newLogger(*development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "evolu-relay: failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	storage := relay.NewStorage(newMemStore(), relay.FixedQuota{LimitBytes: *quotaBytes}, logger, metrics)

	ctx := context.Background()
	if err := storage.CreateSchema(ctx); err != nil {
		logger.Error("evolu-relay: failed to create schema", zap.Error(err))
		os.Exit(1)
	}

	srv := &server{storage: storage, logger: logger, metrics: metrics}

	syncServer := &http.Server{Addr: *addr, Handler: srv.router()}
	metricsServer := &http.Server{Addr: *metricsAddr, Handler: promhttp.Handler()}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("evolu-relay: serving sync traffic", zap.String("addr", *addr))
		errCh <- syncServer.ListenAndServe()
	}()
	go func() {
		logger.Info("evolu-relay: serving metrics", zap.String("addr", *metricsAddr))
		errCh <- metricsServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("evolu-relay: shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("evolu-relay: server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = syncServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)
}

func newLogger(development bool) (*telemetry.Logger, error) {
	if development {
		return telemetry.NewDevelopmentLogger()
	}
	z, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return telemetry.NewLogger(z), nil
}
