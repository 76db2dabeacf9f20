// README: Entry point; loads config, wires services, starts HTTP server and the offer expiry poller.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"evconnect/internal/alert"
	"evconnect/internal/config"
	httptransport "evconnect/internal/http"
	"evconnect/internal/infra"
	"evconnect/internal/logging"
	"evconnect/internal/maps"
	"evconnect/internal/modules/agent"
	"evconnect/internal/modules/dispatch"
	"evconnect/internal/modules/location"
	"evconnect/internal/modules/offer"
	"evconnect/internal/modules/ranking"
	"evconnect/internal/modules/servicereq"
	"evconnect/internal/notify"
	"evconnect/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing.Enabled, "evconnect-api", os.Stdout)
	if err != nil {
		log.Fatalf("tracing init: %v", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	if cfg.Firebase.ProjectID == "" {
		log.Fatal("EVC_FIREBASE_PROJECT_ID is required")
	}
	app, err := infra.NewFirebaseApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		log.Fatalf("firebase init: %v", err)
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, app)
	if err != nil {
		log.Fatalf("firebase auth init: %v", err)
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr, cfg.Redis.DB)
	defer redisClient.Close()

	registry := prometheus.NewRegistry()
	metrics, err := observability.NewDispatchMetrics(registry)
	if err != nil {
		log.Fatalf("metrics init: %v", err)
	}

	var gateway notify.Gateway = notify.NewLogGateway(logger)
	if cfg.Twilio.AccountSID != "" {
		gateway = notify.NewTwilioGateway(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.From)
	} else {
		logger.Warn(ctx, "twilio not configured; messages are only logged")
	}

	alerts := alert.Multi{alert.NewSMSAlerter(gateway, cfg.Alert.OpsPhone, logger)}
	if cfg.Firebase.AlertTopic != "" {
		push, err := alert.NewPushAlerter(ctx, app, cfg.Firebase.AlertTopic, logger)
		if err != nil {
			log.Fatalf("push alerts init: %v", err)
		}
		alerts = append(alerts, push)
	}

	var provider ranking.Provider
	var geocoder dispatch.Geocoder
	if cfg.Maps.APIKey != "" {
		routes, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			log.Fatal(err)
		}
		geo, err := maps.NewGeocodeService(cfg.Maps.APIKey)
		if err != nil {
			log.Fatal(err)
		}
		provider, geocoder = routes, geo
	} else {
		logger.Warn(ctx, "maps api key not set; ranking uses direct distance only")
	}

	agentStore := agent.NewStore(dbPool, logger)
	serviceStore := servicereq.NewStore(dbPool)
	offerStore := offer.NewStore(dbPool)

	coordinator := dispatch.NewCoordinator(cfg.Dispatch, dispatch.Deps{
		Agents:    agentStore,
		Services:  serviceStore,
		Offers:    offerStore,
		Ranker:    ranking.NewRanker(provider, logger, metrics),
		Gateway:   gateway,
		Alerts:    alerts,
		Geocoder:  geocoder,
		Runs:      dispatch.NewRedisRunStore(redisClient, cfg.Dispatch.RunTTL),
		Scheduler: dispatch.NewRedisScheduler(redisClient),
		Metrics:   metrics,
		Log:       logger,
	})

	locationSvc := location.NewService(agentStore, location.NewStore(dbPool, redisClient), logger)

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Services:   servicereq.NewService(serviceStore),
		Dispatcher: coordinator,
		Location:   locationSvc,
		Verifier:   verifier,
		Metrics:    metrics.Handler(),
		Log:        logger,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler.Routes(), ReadHeaderTimeout: 10 * time.Second}

	go coordinator.RunExpiryLoop(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info(ctx, "listening", logging.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
