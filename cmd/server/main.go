package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	billinghandler "givebridge/internal/billing/handler"
	"givebridge/internal/billing/lease"
	billingmetrics "givebridge/internal/billing/metrics"
	"givebridge/internal/billing/origin"
	"givebridge/internal/billing/scheduler"
	charitymemory "givebridge/internal/charity/store/memory"
	charitypostgres "givebridge/internal/charity/store/postgres"
	donationhandler "givebridge/internal/donation/handler"
	donationmetrics "givebridge/internal/donation/metrics"
	donationservice "givebridge/internal/donation/service"
	donationmemory "givebridge/internal/donation/store/memory"
	donationpostgres "givebridge/internal/donation/store/postgres"
	"givebridge/internal/platform/config"
	"givebridge/internal/platform/httpserver"
	"givebridge/internal/platform/kafka"
	"givebridge/internal/platform/logger"
	platformmetrics "givebridge/internal/platform/metrics"
	"givebridge/internal/platform/middleware"
	pgplatform "givebridge/internal/platform/postgres"
	redisplatform "givebridge/internal/platform/redis"
	subscriptionhandler "givebridge/internal/subscription/handler"
	subscriptionservice "givebridge/internal/subscription/service"
	subscriptionmemory "givebridge/internal/subscription/store/memory"
	subscriptionpostgres "givebridge/internal/subscription/store/postgres"
	"givebridge/pkg/platform/audit"
	auditkafka "givebridge/pkg/platform/audit/publishers/kafka"
	auditmemory "givebridge/pkg/platform/audit/publishers/memory"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	// Ledger stores: postgres when configured, in-memory otherwise.
	var (
		charityStore      donationservice.CharityStore
		donationStore     donationservice.Store
		subscriptionStore subscriptionservice.Store
		dueStore          scheduler.SubscriptionStore
	)
	if cfg.DatabaseURL != "" {
		db, err := pgplatform.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := pgplatform.Migrate(ctx, db); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		charityStore = charitypostgres.New(db)
		donationStore = donationpostgres.New(db)
		pgSubs := subscriptionpostgres.New(db)
		subscriptionStore = pgSubs
		dueStore = pgSubs
	} else {
		log.Warn("no database configured, using in-memory ledger store")
		charities := charitymemory.New()
		charityStore = charities
		donationStore = donationmemory.New(charities)
		memSubs := subscriptionmemory.New()
		subscriptionStore = memSubs
		dueStore = memSubs
	}

	// Tick lease: distributed via redis when configured.
	var tickLease lease.Lease = lease.NewInProcess()
	redisClient, err := redisplatform.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		tickLease = lease.NewRedis(redisClient.Client, "givebridge:billing:tick")
	}

	// Audit trail: kafka when configured.
	var auditPublisher audit.Publisher = auditmemory.New()
	producer, err := kafka.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		log.Error("kafka connection failed", "error", err)
		os.Exit(1)
	}
	if producer != nil {
		defer producer.Close()
		auditPublisher, err = auditkafka.New(ctx, producer, cfg.AuditTopic)
		if err != nil {
			log.Error("audit topic setup failed", "error", err)
			os.Exit(1)
		}
	}

	recorder, err := donationservice.New(donationStore, charityStore,
		donationservice.WithLogger(log),
		donationservice.WithMetrics(donationmetrics.New()),
		donationservice.WithAuditPublisher(auditPublisher),
	)
	if err != nil {
		log.Error("recorder setup failed", "error", err)
		os.Exit(1)
	}

	lifecycle, err := subscriptionservice.New(subscriptionStore, charityStore, recorder,
		subscriptionservice.WithLogger(log),
		subscriptionservice.WithAuditPublisher(auditPublisher),
	)
	if err != nil {
		log.Error("lifecycle setup failed", "error", err)
		os.Exit(1)
	}

	billing, err := scheduler.New(dueStore, recorder, origin.Instant{}, tickLease,
		scheduler.WithLogger(log),
		scheduler.WithMetrics(billingmetrics.New()),
		scheduler.WithAuditPublisher(auditPublisher),
		scheduler.WithCycleTimeout(cfg.CycleTimeout),
	)
	if err != nil {
		log.Error("scheduler setup failed", "error", err)
		os.Exit(1)
	}

	verifier := middleware.NewDonorVerifier(cfg.JWTSigningKey)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(platformmetrics.NewHTTP().Middleware)
	router.Handle("/metrics", promhttp.Handler())
	router.Group(func(r chi.Router) {
		r.Use(middleware.OptionalDonor(verifier, log))
		donationhandler.New(recorder, log).Register(r)
	})
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireDonor(verifier, log))
		subscriptionhandler.New(lifecycle, log).Register(r)
	})
	billinghandler.New(billing, cfg.TickSecret, log).Register(router)

	srv := httpserver.New(cfg.Addr, router)

	// The periodic trigger. Non-overlapping by construction here; the lease
	// still guards against a second replica ticking at the same time.
	tickCtx, stopTicks := context.WithCancel(ctx)
	defer stopTicks()
	go func() {
		ticker := time.NewTicker(cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-tickCtx.Done():
				return
			case <-ticker.C:
				if _, err := billing.RunTick(tickCtx); err != nil && err != scheduler.ErrTickInProgress {
					log.Error("billing tick failed", "error", err)
				}
			}
		}
	}()

	log.Info("starting givebridge ledger engine", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	stopTicks()
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
