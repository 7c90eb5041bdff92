package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/museumhub/centralauth/pkg/api"
	"github.com/museumhub/centralauth/pkg/audit"
	"github.com/museumhub/centralauth/pkg/config"
	"github.com/museumhub/centralauth/pkg/observability"
	"github.com/museumhub/centralauth/pkg/reconcile"
	"github.com/museumhub/centralauth/pkg/resolver"
	"github.com/museumhub/centralauth/pkg/session"
	"github.com/museumhub/centralauth/pkg/source"
)

var (
	authConfigPath = flag.String("auth-config", "", "Path to the auth settings YAML file (reloaded on change). Falls back to CENTRALAUTH_* environment settings.")
	auditLogPath   = flag.String("audit-log", "", "Path to a JSON-lines audit trail file. The database trail is always written when postgres is configured.")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	// Auth settings: a YAML file with reload-on-save, or a fixed
	// snapshot from the environment.
	var provider config.Provider
	if *authConfigPath != "" {
		fileProvider, err := config.NewFileProvider(*authConfigPath, logger)
		if err != nil {
			log.Fatalf("Failed to load auth config file: %v", err)
		}
		defer fileProvider.Close()
		provider = fileProvider
		logger.WithField("path", *authConfigPath).Info("auth settings loaded from file")
	} else {
		provider = config.NewStatic(cfg.Auth)
	}

	// User store: Postgres when configured, in-memory otherwise.
	var (
		userStore interface {
			resolver.Resolver
			source.CredentialStore
		}
		healthDB = (*resolver.Store)(nil)
	)
	if cfg.Storage.PostgresURL != "" {
		store, err := resolver.Open(cfg.Storage.PostgresURL)
		if err != nil {
			log.Fatalf("Failed to connect to user store: %v", err)
		}
		defer store.Close()
		userStore = store
		healthDB = store
		logger.Info("user store connected")
	} else {
		logger.Warn("no postgres url configured, using empty in-memory user store")
		userStore = resolver.NewMemory()
	}

	// Session store: Redis when configured, in-memory otherwise.
	var (
		sessions    session.Store
		redisClient *redis.Client
	)
	if cfg.Storage.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Storage.RedisURL)
		if err != nil {
			log.Fatalf("Invalid redis url: %v", err)
		}
		if cfg.Storage.RedisPassword != "" {
			opts.Password = cfg.Storage.RedisPassword
		}
		opts.DB = cfg.Storage.RedisDB
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		sessions = session.NewRedisStore(redisClient, cfg.Storage.SessionTTL)
		logger.Info("session store connected")
	} else {
		logger.Warn("no redis url configured, sessions are process local")
		sessions = session.NewMemoryStore(cfg.Storage.SessionTTL)
	}

	// Audit trail: database table when postgres is available, plus an
	// optional local file.
	var recorders []audit.Recorder
	if healthDB != nil {
		dbRecorder, err := audit.NewDBRecorder(healthDB.DB())
		if err != nil {
			log.Fatalf("Failed to initialize audit trail: %v", err)
		}
		recorders = append(recorders, dbRecorder)
	}
	if *auditLogPath != "" {
		fileRecorder, err := audit.NewFileRecorder(*auditLogPath)
		if err != nil {
			log.Fatalf("Failed to open audit log file: %v", err)
		}
		defer fileRecorder.Close()
		recorders = append(recorders, fileRecorder)
	}
	var auditor audit.Recorder = audit.NopRecorder{}
	if len(recorders) > 0 {
		auditor = audit.NewMultiRecorder(recorders...)
	}

	policy := reconcile.New(userStore, logger)
	server := api.NewServer(provider, policy, userStore, sessions, auditor, cfg.Server.ExternalURL, logger, metrics)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	server.StartCleanup(cleanupCtx)

	// Health and metrics on a separate listener for probes.
	var db = sqlFromStore(healthDB)
	health := observability.NewHealthChecker(db, redisClient)
	healthMux := mux.NewRouter()
	healthMux.HandleFunc("/healthz", health.Liveness).Methods("GET")
	healthMux.HandleFunc("/readyz", health.Readiness).Methods("GET")
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", metrics.Handler()).Methods("GET")
	}

	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}
	go func() {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Health server failed: %v", err)
		}
	}()

	mainServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	go func() {
		logger.WithField("addr", mainServer.Addr).Info("centralauth listening")
		if err := mainServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := mainServer.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("server shutdown failed")
	}
	if err := healthServer.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("health server shutdown failed")
	}
	logger.Info("stopped")
}

// sqlFromStore unwraps the database handle for health checks
func sqlFromStore(store *resolver.Store) *sql.DB {
	if store == nil {
		return nil
	}
	return store.DB()
}
