// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/cartographus/internal/api"
	"github.com/tomtom215/cartographus/internal/auth"
	"github.com/tomtom215/cartographus/internal/authz"
	"github.com/tomtom215/cartographus/internal/broadcast"
	"github.com/tomtom215/cartographus/internal/config"
	"github.com/tomtom215/cartographus/internal/gateway"
	"github.com/tomtom215/cartographus/internal/hotstore"
	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/poll"
	"github.com/tomtom215/cartographus/internal/presence"
	"github.com/tomtom215/cartographus/internal/qa"
	"github.com/tomtom215/cartographus/internal/registration"
	"github.com/tomtom215/cartographus/internal/snapshot"
	"github.com/tomtom215/cartographus/internal/store"
	"github.com/tomtom215/cartographus/internal/supervisor"
	"github.com/tomtom215/cartographus/internal/supervisor/services"
	"github.com/tomtom215/cartographus/internal/validator"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})
	slogLogger := logging.NewSlogLogger()
	logging.Info().Str("environment", cfg.Server.Environment).Msg("cartographus event server starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hot, err := hotstore.Open(hotstore.Config{Dir: cfg.HotStore.Dir})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open hot store")
	}
	defer func() {
		if err := hot.Close(); err != nil {
			logging.Warn().Err(err).Msg("hot store close failed")
		}
	}()

	pool, err := store.Open(ctx, store.Config{
		DSN:            cfg.Database.DSN,
		MaxConns:       cfg.Database.MaxConns,
		ConnectTimeout: cfg.Database.ConnectTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open durable store")
	}
	defer pool.Close()

	if err := store.ApplySchema(ctx, pool); err != nil {
		logging.Fatal().Err(err).Msg("failed to apply durable store schema")
	}

	chatRepo := store.NewChatRepository(pool)
	eventRepo := store.NewEventRepository(pool)
	staffRepo := store.NewEventStaffRepository(pool)
	pollRepo := store.NewPollRepository(pool)
	questionRepo := store.NewQuestionRepository(pool)
	eventRoleRepo := store.NewEventRoleRepository(pool)
	roleRepo := store.NewRoleRepository(pool)
	sessionAnalyticsRepo := store.NewSessionAnalyticsRepository(pool)

	sessionStoreFactory, err := auth.NewSessionStoreFactory(
		auth.SessionStoreType(cfg.Security.SessionStore), cfg.Security.SessionStorePath)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to construct session store")
	}
	defer func() {
		if err := sessionStoreFactory.Close(); err != nil {
			logging.Warn().Err(err).Msg("session store close failed")
		}
	}()
	sessionStore := sessionStoreFactory.CreateStore()

	authMW := auth.NewMiddleware(
		sessionStore,
		cfg.Security.SessionTimeout,
		cfg.Security.RateLimitReqs,
		cfg.Security.RateLimitWindow,
		cfg.Security.RateLimitDisabled,
		cfg.Security.CORSOrigins,
		cfg.Security.TrustedProxies,
	)
	if cfg.Security.BearerSecret != "" {
		bearerMgr, err := auth.NewBearerManager(cfg.Security.BearerSecret, cfg.Security.BearerTTL)
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to construct bearer manager")
		}
		authMW = authMW.WithBearerManager(bearerMgr)
	}

	enforcer, err := authz.NewEnforcer(ctx, &authz.EnforcerConfig{
		ModelPath:      cfg.Security.Casbin.ModelPath,
		PolicyPath:     cfg.Security.Casbin.PolicyPath,
		AutoReload:     cfg.Security.Casbin.AutoReload,
		ReloadInterval: cfg.Security.Casbin.ReloadInterval,
		DefaultRole:    cfg.Security.Casbin.DefaultRole,
		CacheEnabled:   cfg.Security.Casbin.CacheEnabled,
		CacheTTL:       cfg.Security.Casbin.CacheTTL,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to construct casbin enforcer")
	}
	authzSvc, err := authz.NewService(enforcer, roleRepo, &authz.ServiceConfig{
		DefaultRole:  cfg.Security.Casbin.DefaultRole,
		CacheEnabled: cfg.Security.Casbin.CacheEnabled,
		CacheTTL:     cfg.Security.Casbin.CacheTTL,
		AuditEnabled: true,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to construct authorization service")
	}

	hub := broadcast.New(nil)
	if cfg.NATS.Enabled {
		bridge, err := broadcast.NewNATSBridge(cfg.NATS.URL, hub)
		if err != nil {
			logging.Warn().Err(err).Msg("nats broadcast bridge unavailable, running single-instance")
		} else {
			hub.SetBridge(bridge)
			defer func() {
				if err := bridge.Close(); err != nil {
					logging.Warn().Err(err).Msg("nats broadcast bridge close failed")
				}
			}()
		}
	}

	presenceT := presence.New(hot, sessionAnalyticsRepo).
		WithDetailsSource(store.AsPresenceDetailsSource(sessionAnalyticsRepo))
	valid := validator.New(hot)
	qaPipeline := qa.New(questionRepo, hub)
	pollEngine := poll.New(hot, pollRepo, hub)
	roles := gateway.NewRoleResolver(authzSvc, staffRepo, eventRoleRepo)
	regSvc := registration.New(presenceT)

	wbCfg := store.DefaultWriteBehindQueueConfig()
	wbCfg.Workers = cfg.WriteBehind.Workers
	wbCfg.MaxRetries = cfg.WriteBehind.MaxRetries
	wbCfg.RetryDelay = cfg.WriteBehind.RetryDelay
	wbQueue := store.NewWriteBehindQueue(wbCfg, logging.Logger())

	gw := gateway.New(gateway.Config{
		Sessions:     sessionStore,
		CORSOrigins:  cfg.Security.CORSOrigins,
		Roles:        roles,
		Hub:          hub,
		Presence:     presenceT,
		QA:           qaPipeline,
		Poll:         pollEngine,
		Validator:    valid,
		Chat:         chatRepo,
		WriteBehind:  wbQueue,
		Events:       eventRepo,
		Registration: regSvc,
	})

	chartBuckets := 1
	if cfg.Snapshot.ChartBucket > 0 {
		chartBuckets = int(cfg.Snapshot.ChartWindow / cfg.Snapshot.ChartBucket)
		if chartBuckets <= 0 {
			chartBuckets = 1
		}
	}
	pub := snapshot.New(snapshot.Config{
		TickInterval: cfg.Snapshot.Interval,
		CacheTTL:     cfg.Snapshot.CacheTTL,
		ChartWindow:  cfg.Snapshot.ChartWindow,
		ChartBuckets: chartBuckets,
	}, gw, presenceT, qaPipeline, sessionAnalyticsRepo, hub)
	gw.SetSnapshot(pub)

	handler := api.NewHandler(sessionStore)
	chiMW := api.NewChiMiddleware(&api.ChiMiddlewareConfig{
		CORSAllowedOrigins:   cfg.Security.CORSOrigins,
		CORSAllowCredentials: true,
		RateLimitRequests:    cfg.Security.RateLimitReqs,
		RateLimitWindow:      cfg.Security.RateLimitWindow,
		RateLimitDisabled:    cfg.Security.RateLimitDisabled,
	})
	router := api.NewRouter(handler, gw, authMW, chiMW)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to construct supervisor tree")
	}
	tree.AddMessagingService(services.NewTickerService(pub, "snapshot-publisher"))
	tree.AddAPIService(services.NewHTTPServerService(httpServer, cfg.Server.Timeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		cancel()
	}()

	logging.Info().Str("addr", httpServer.Addr).Msg("listening")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor shutdown error")
		}
	}

	unstopped, err := tree.UnstoppedServiceReport()
	if err != nil {
		logging.Warn().Err(err).Msg("failed to collect unstopped service report")
	} else if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("services failed to stop within their deadline")
		for _, svc := range unstopped {
			logging.Warn().Str("service", fmt.Sprintf("%v", svc)).Msg("service failed to stop")
		}
	}

	logging.Info().Msg("cartographus event server stopped")
}
