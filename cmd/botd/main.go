// Allianced - Multi-Tenant Alliance Management Bot
// Copyright 2026 OrbisTech
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/orbistech/allianced

// Package main is the entry point for the Allianced bot daemon.
//
// Allianced runs one supervised chat gateway session per provisioned
// alliance tenant. Each session carries its own slash command
// dispatcher and a recurring member sync against the game API; tenant
// credentials are stored envelope-encrypted and only decrypted at
// session start.
//
// # Startup order
//
//  1. Configuration: Koanf v2 layered sources (env > file > defaults)
//  2. Logging: global zerolog logger
//  3. Store: BadgerDB tenant and member snapshot store
//  4. Vault: AES-256-GCM credential vault keyed by ENCRYPTION_KEY
//  5. Supervision tree: suture root with a sessions layer
//  6. Fleet startup: one session per fully provisioned ACTIVE tenant
//  7. Metrics: optional Prometheus /metrics listener
//
// # Signal handling
//
// SIGINT and SIGTERM trigger a graceful shutdown: all tenant sessions
// are stopped concurrently, the supervision tree drains, and the store
// is closed.
//
// # Example usage
//
//	export ENCRYPTION_KEY=$(openssl rand -base64 32)
//	export GATEWAY_URL=wss://gateway.example.com/ws
//	export DATABASE_PATH=/data/allianced
//	./botd
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orbistech/allianced/internal/bot"
	"github.com/orbistech/allianced/internal/config"
	"github.com/orbistech/allianced/internal/gateway"
	"github.com/orbistech/allianced/internal/logging"
	"github.com/orbistech/allianced/internal/pnw"
	"github.com/orbistech/allianced/internal/store"
	"github.com/orbistech/allianced/internal/vault"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Msg("Starting allianced")

	v, err := vault.New(cfg.Vault.Passphrase)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize credential vault")
	}

	var st *store.Store
	if cfg.Database.InMemory {
		st, err = store.OpenInMemory()
	} else {
		st, err = store.Open(cfg.Database.Path)
	}
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("Failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Err(err).Msg("Store close failed")
		}
	}()

	newAPI := func(apiKey string) bot.GameClient {
		return pnw.NewClient(pnw.Config{
			Endpoint:          cfg.Game.Endpoint,
			APIKey:            apiKey,
			RequestsPerMinute: cfg.Game.RequestsPerMinute,
			Timeout:           cfg.Game.Timeout,
		})
	}

	tree := bot.NewTree(bot.DefaultTreeConfig())
	sup := bot.NewSupervisor(
		tree,
		v,
		st,
		st,
		gateway.NewDialer(cfg.Gateway.URL),
		newAPI,
		bot.SupervisorConfig{StopGrace: cfg.Supervisor.StopGrace},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	treeDone := tree.ServeBackground(ctx)

	if err := sup.StartAll(ctx); err != nil {
		// Per-tenant failures are not fatal to the fleet.
		logging.Err(err).Msg("Some tenant sessions failed to start")
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		metricsServer = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logging.Info().Str("addr", cfg.Metrics.Addr).Msg("Metrics listener started")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Err(err).Msg("Metrics listener failed")
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logging.Info().Str("signal", sig.String()).Msg("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := sup.Shutdown(shutdownCtx); err != nil {
		logging.Err(err).Msg("Session shutdown reported errors")
	}

	cancel()
	select {
	case err := <-treeDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Err(err).Msg("Supervision tree exited with error")
		}
	case <-shutdownCtx.Done():
		if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
			logging.Warn().Int("services", len(report)).Msg("Services did not stop before timeout")
		}
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logging.Err(err).Msg("Metrics listener shutdown failed")
		}
	}

	logging.Info().Msg("Shutdown complete")
}
