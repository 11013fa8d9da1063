// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/engagement/internal/analytics"
	"github.com/tomtom215/engagement/internal/api"
	"github.com/tomtom215/engagement/internal/auth"
	"github.com/tomtom215/engagement/internal/authz"
	"github.com/tomtom215/engagement/internal/config"
	"github.com/tomtom215/engagement/internal/engagement"
	"github.com/tomtom215/engagement/internal/identity"
	"github.com/tomtom215/engagement/internal/logging"
	"github.com/tomtom215/engagement/internal/supervisor"
	"github.com/tomtom215/engagement/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not configured yet.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("auth_mode", cfg.Security.AuthMode).
		Msg("Starting engagement server with supervisor tree")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	contentStore, err := openContentStore(&cfg.Storage)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open content store")
	}
	defer func() {
		if err := contentStore.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing content store")
		}
	}()

	anomalies, closeAnomalies, err := openAnomalyStore(ctx, &cfg.Anomaly)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open anomaly log")
	}
	defer closeAnomalies()

	bus, err := openEventBus(ctx, &cfg.Events)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize event bus")
	}
	if bus != nil {
		defer func() {
			if err := bus.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing event bus")
			}
		}()
	}

	resolver := identity.NewResolver(identity.New(&cfg.Identity), cfg.Engagement.DefaultAvatar)

	opts := engagement.OptionsFromConfig(&cfg.Engagement)
	if bus != nil {
		opts.Events = bus
	}
	recorder := engagement.NewRecorder(contentStore, opts)
	engine := analytics.NewEngine(contentStore, resolver, &cfg.API, nil)

	var jwtManager *auth.JWTManager
	if cfg.Security.AuthMode == auth.ModeJWT {
		jwtManager, err = auth.NewJWTManager(&cfg.Security)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
		}
	}
	authMiddleware := auth.NewMiddleware(&cfg.Security, jwtManager)

	enforcer, err := authz.NewEnforcer(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authorization enforcer")
	}

	handler := api.NewHandler(recorder, engine, anomalies, enforcer, readinessChecks(contentStore, bus)...)
	router := api.NewRouter(handler, authMiddleware, authz.NewMiddleware(enforcer), &cfg.Security)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	// === SUPERVISOR TREE ===

	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout + 5*time.Second,
	})

	if gc := storeGCService(contentStore, &cfg.Storage); gc != nil {
		tree.AddDataService(gc)
		logging.Info().Dur("interval", cfg.Storage.GCInterval).Msg("Badger GC service added")
	}

	if cfg.Reconcile.Enabled {
		tree.AddMaintenanceService(engagement.NewReconciler(contentStore, anomalies, &cfg.Reconcile, nil))
		logging.Info().Dur("interval", cfg.Reconcile.Interval).Msg("Reconciler added to supervisor tree")
	} else {
		logging.Info().Msg("Reconciliation sweep disabled (RECONCILE_ENABLED=false)")
	}

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for supervisor to finish...")
		err = <-errCh
	case err = <-errCh:
		cancel()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
