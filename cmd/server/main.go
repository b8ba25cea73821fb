package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"intake-gateway/internal/auth"
	"intake-gateway/internal/backup"
	"intake-gateway/internal/blob"
	"intake-gateway/internal/clients/renapo"
	"intake-gateway/internal/clients/scanner"
	"intake-gateway/internal/clients/sif"
	"intake-gateway/internal/forms"
	"intake-gateway/internal/platform/config"
	"intake-gateway/internal/platform/httpserver"
	"intake-gateway/internal/platform/logger"
	"intake-gateway/internal/platform/metrics"
	"intake-gateway/internal/platform/ratelimit"
	"intake-gateway/internal/platform/redis"
	"intake-gateway/internal/precheck"
	"intake-gateway/internal/refdata"
	refdatahandler "intake-gateway/internal/refdata/handler"
	sessionhandler "intake-gateway/internal/session/handler"
	sessionmetrics "intake-gateway/internal/session/metrics"
	sessionservice "intake-gateway/internal/session/service"
	"intake-gateway/internal/session/store"
	"intake-gateway/internal/submit"
	submithandler "intake-gateway/internal/submit/handler"
	submitmetrics "intake-gateway/internal/submit/metrics"
	httptransport "intake-gateway/internal/transport/http"
	id "intake-gateway/pkg/domain"
	"intake-gateway/pkg/platform/audit/publisher"
	kafkasink "intake-gateway/pkg/platform/audit/publishers/kafka"
	auditmemory "intake-gateway/pkg/platform/audit/store/memory"
)

const (
	jwtIssuer   = "intake-gateway"
	jwtAudience = "intake-clients"
)

// main wires the dependencies and keeps the server lifecycle small.
// Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog := forms.NewCatalog()
	stage := blob.NewStage()
	sessionStore := store.NewInMemorySessionStore()

	sifClient := sif.New(cfg.SIF.BaseURL, cfg.SIF.APIKey, cfg.SIF.Timeout)
	renapoClient := renapo.New(cfg.RENAPO.BaseURL, cfg.RENAPO.APIKey, cfg.RENAPO.Timeout)

	var sink publisher.Sink
	if len(cfg.Kafka.Brokers) > 0 {
		ks, err := kafkasink.NewSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("kafka audit sink init failed", "error", err.Error())
			os.Exit(1)
		}
		defer ks.Close()
		sink = ks
	} else {
		log.Warn("no kafka brokers configured; audit events stay in memory")
		sink = auditmemory.NewInMemoryStore()
	}
	auditor := publisher.NewPublisher(sink,
		publisher.WithAsyncBuffer(cfg.Kafka.Buffer),
		publisher.WithLogger(log),
	)
	defer auditor.Close()

	sessionOpts := []sessionservice.Option{
		sessionservice.WithLogger(log),
		sessionservice.WithMetrics(sessionmetrics.New()),
		sessionservice.WithAuditor(auditor),
		sessionservice.WithDeleteHook(func(sessionID id.SessionID) {
			stage.DropSession(sessionID.String())
		}),
	}
	if cfg.Scanner.BaseURL != "" {
		sessionOpts = append(sessionOpts, sessionservice.WithScanner(
			scanner.NewHTTP(cfg.Scanner.BaseURL, cfg.Scanner.APIKey, cfg.Scanner.Timeout)))
	}
	sessions := sessionservice.New(
		catalog,
		sessionStore,
		precheck.NewIdentityGate(sifClient, renapoClient),
		precheck.NewPhoneGate(sifClient),
		sessionOpts...,
	)

	var checks []httptransport.HealthCheck

	var uploader blob.Uploader
	if cfg.S3.Bucket != "" {
		s3, err := blob.NewS3Uploader(ctx, blob.S3Config{
			Bucket:   cfg.S3.Bucket,
			Region:   cfg.S3.Region,
			Endpoint: cfg.S3.Endpoint,
			Prefix:   cfg.S3.Prefix,
		})
		if err != nil {
			log.Error("s3 uploader init failed", "error", err.Error())
			os.Exit(1)
		}
		uploader = s3
	} else {
		log.Warn("no S3 bucket configured; photos will be kept in memory")
		uploader = blob.NewMemoryUploader()
	}

	submitOpts := []submit.Option{
		submit.WithLogger(log),
		submit.WithMetrics(submitmetrics.New()),
	}

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			log.Error("postgres pool init failed", "error", err.Error())
			os.Exit(1)
		}
		defer pool.Close()
		backupStore := backup.NewPostgresStore(pool)
		if err := backupStore.EnsureSchema(ctx); err != nil {
			log.Error("backup schema init failed", "error", err.Error())
			os.Exit(1)
		}
		submitOpts = append(submitOpts, submit.WithBackup(backupStore))
		checks = append(checks, httptransport.HealthCheck{Name: "postgres", Probe: pool.Ping})
	} else {
		log.Warn("no postgres configured; submission backups disabled")
	}

	submitOpts = append(submitOpts, submit.WithAuditor(auditor))

	submissions := submit.New(catalog, sessionStore, sifClient, uploader, stage, submitOpts...)

	var refdataCache refdata.Cache
	rdb, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis init failed", "error", err.Error())
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
		refdataCache = refdata.NewRedisCache(rdb.Client)
		checks = append(checks, httptransport.HealthCheck{Name: "redis", Probe: rdb.Health})
	}
	refdataService := refdata.NewService(
		refdata.NewClient(cfg.Refdata.BaseURL, cfg.Refdata.Timeout),
		refdataCache,
		cfg.Refdata.CacheTTL,
		log,
	)

	jwtService := auth.NewJWTService(cfg.Auth.JWTSigningKey, jwtIssuer, jwtAudience)
	httpMetrics := metrics.New()

	router := httptransport.NewRouter(httptransport.Config{
		Logger:    log,
		Metrics:   httpMetrics,
		Validator: jwtService,
		Authenticated: []httptransport.Registrar{
			sessionhandler.New(sessions, catalog, stage, log,
				sessionhandler.WithRemoteCheckLimit(ratelimit.Middleware(
					ratelimit.New(cfg.RateLimit.RemoteChecksPerMinute, time.Minute)))),
			submithandler.New(submissions, log),
		},
		Public: []httptransport.Registrar{
			refdatahandler.New(refdataService, log),
		},
		Checks: checks,
	})

	go sessions.RunJanitor(ctx, cfg.Session.JanitorInterval, cfg.Session.IdleTTL)

	srv := httpserver.New(cfg.Server.Addr, router)

	go func() {
		log.Info("starting intake-gateway", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
	}
}
