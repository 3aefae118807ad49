package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/text/language"

	"intake/internal/buyer"
	"intake/internal/cascade"
	"intake/internal/catalog"
	catalogmemory "intake/internal/catalog/memory"
	"intake/internal/catalog/monday"
	"intake/internal/platform/config"
	"intake/internal/platform/httpserver"
	"intake/internal/platform/logger"
	"intake/internal/platform/metrics"
	"intake/internal/platform/middleware"
	platformredis "intake/internal/platform/redis"
	"intake/internal/session"
	"intake/internal/submission"
	"intake/internal/submission/events"
	"intake/internal/submission/journal"
	httptransport "intake/internal/transport/http"
)

// main wires dependencies and owns the server lifecycle. Business logic
// lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	m := metrics.New()

	client := newCatalogClient(cfg, log, m)

	locale, err := language.Parse(cfg.Locale)
	if err != nil {
		log.Warn("invalid locale, using und", "locale", cfg.Locale, "error", err)
		locale = language.Und
	}

	factory := func() *cascade.Cascade {
		return cascade.New(client, cfg.Schema, locale, log, m)
	}

	var sessionStore session.Store
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		sessionStore = session.NewRedisStore(redisClient.Client)
		log.Info("session snapshots in redis")
	} else {
		sessionStore = session.NewMemoryStore()
	}
	sessions := session.NewManager(factory, sessionStore, cfg.SessionTTL, log)

	var journalStore journal.Store
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		pg := journal.NewPostgres(db)
		migrateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = pg.Migrate(migrateCtx)
		cancel()
		if err != nil {
			return err
		}
		journalStore = pg
		log.Info("submission journal in postgres")
	} else {
		journalStore = journal.NewInMemory()
	}

	reconciler := buyer.NewReconciler(client, cfg.Schema, cfg.PhoneCountry, log, m)
	policy := buyer.PolicyFromName(cfg.RequiredFields)

	orchOpts := []submission.Option{
		submission.WithJournal(journalStore),
		submission.WithMetrics(m),
	}
	if cfg.KafkaBrokers != "" {
		publisher, err := events.NewKafka(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaTopic, log)
		if err != nil {
			return err
		}
		defer publisher.Close()
		orchOpts = append(orchOpts, submission.WithEvents(publisher))
		log.Info("submission events to kafka", "topic", cfg.KafkaTopic)
	}
	orch := submission.New(client, cfg.Schema, reconciler, policy, log, orchOpts...)

	handler := httptransport.NewHandler(sessions, orch, journalStore, log)
	router := httptransport.NewRouter(handler, httptransport.RouterConfig{
		Logger:   log,
		Metrics:  m,
		Verifier: middleware.NewHS256Verifier(cfg.ClientSecret),
		DevMode:  cfg.DevMode,
	})

	if cfg.DevMode {
		log.Warn("dev mode enabled, session-token verification is off")
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sessions.Sweep(sweepCtx, cfg.SessionTTL/2)

	srv := httpserver.New(cfg.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting intake server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// newCatalogClient connects to the remote catalog when a token is
// configured and falls back to the in-memory catalog otherwise, which keeps
// local development and tests offline.
func newCatalogClient(cfg config.Config, log *slog.Logger, m *metrics.Metrics) catalog.Client {
	if cfg.CatalogToken == "" {
		log.Warn("no catalog token configured, using in-memory catalog")
		return catalogmemory.New()
	}
	return monday.New(cfg.CatalogAPIURL, cfg.CatalogToken,
		monday.WithLogger(log),
		monday.WithMetrics(m),
		monday.WithPageSize(cfg.PageSize),
	)
}
