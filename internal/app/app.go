// Package app wires together the registry's infrastructure (database, Redis,
// metrics) and domain components, then runs either the API server or the
// background worker pool depending on the configured mode.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/skillnest/registry/internal/classifier"
	"github.com/skillnest/registry/internal/config"
	"github.com/skillnest/registry/internal/contentcache"
	"github.com/skillnest/registry/internal/devauth"
	"github.com/skillnest/registry/internal/httpserver"
	"github.com/skillnest/registry/internal/indexer"
	"github.com/skillnest/registry/internal/lifecycle"
	"github.com/skillnest/registry/internal/platform"
	"github.com/skillnest/registry/internal/poller"
	"github.com/skillnest/registry/internal/ranking"
	"github.com/skillnest/registry/internal/registryapi"
	"github.com/skillnest/registry/internal/sourcehost"
	"github.com/skillnest/registry/internal/store"
	"github.com/skillnest/registry/internal/telemetry"
)

// Run is the main application entry point. Given the loaded config, it
// connects to infrastructure, applies migrations, and starts the configured
// mode (api or worker; migrate exits once migrations are applied).
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting registry",
		"mode", cfg.Mode,
		"listen", cfg.ListenAddr(),
	)

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	metricsReg := prometheus.NewRegistry()
	metricsReg.MustRegister(telemetry.All()...)

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, cfg, logger, db, rdb, metricsReg)
	case "worker":
		return runWorker(ctx, cfg, logger, db, rdb)
	case "migrate":
		logger.Info("migrate mode: migrations already applied, exiting")
		return nil
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

func sourcehostClient(cfg *config.Config, logger *slog.Logger) *sourcehost.Client {
	return sourcehost.New(sourcehost.Options{
		APIURL:    cfg.SourceHostAPIURL,
		Token:     cfg.SourceHostToken,
		UserAgent: cfg.SourceHostUserAgent,
	}, logger)
}

// sourcehostEventClient points at the public event firehose rather than the
// general REST API — only the poller uses it.
func sourcehostEventClient(cfg *config.Config, logger *slog.Logger) *sourcehost.Client {
	return sourcehost.New(sourcehost.Options{
		APIURL:    cfg.SourceHostEventURL,
		Token:     cfg.SourceHostToken,
		UserAgent: cfg.SourceHostUserAgent,
	}, logger)
}

func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry) error {
	skills := store.NewSkillStore(db)
	categories := store.NewCategoryStore(db)
	favorites := store.NewFavoriteStore(db)
	perms := store.NewPermissionStore(db)
	sessions := store.NewSessionStore(db)
	tokens := store.NewTokenStore(db)
	users := store.NewUserStore(db)

	objects := contentcache.NewFilesystemStore(cfg.ObjectStoreDir)
	cache := contentcache.NewLRU(objects, cfg.ContentCacheMaxItems, cfg.ContentCachePruneFraction)

	client := sourcehostClient(cfg, logger)

	lifecycleInterval, err := time.ParseDuration(cfg.LifecycleInterval)
	if err != nil {
		return fmt.Errorf("parsing lifecycle interval %q: %w", cfg.LifecycleInterval, err)
	}
	lc := lifecycle.New(client, skills, logger, lifecycleInterval)

	signingSecret := cfg.DeviceAuthSigningSecret
	if signingSecret == "" {
		return fmt.Errorf("DEVICE_AUTH_SIGNING_SECRET must be set")
	}
	accessTTL, err := time.ParseDuration(cfg.AccessTokenTTL)
	if err != nil {
		return fmt.Errorf("parsing access token TTL %q: %w", cfg.AccessTokenTTL, err)
	}
	refreshTTL, err := time.ParseDuration(cfg.RefreshTokenTTL)
	if err != nil {
		return fmt.Errorf("parsing refresh token TTL %q: %w", cfg.RefreshTokenTTL, err)
	}
	issuer, err := devauth.NewTokenIssuer(signingSecret, accessTTL, refreshTTL)
	if err != nil {
		return fmt.Errorf("creating token issuer: %w", err)
	}

	srv := httpserver.NewServer(cfg, logger, db, rdb, metricsReg)

	authHandler := devauth.NewHandler(sessions, tokens, users, issuer, logger)
	srv.Router.Mount("/auth", authHandler.Routes())

	registryHandler := registryapi.NewHandler(skills, categories, favorites, perms, cache, lc, rdb, logger)
	rateLimiter := registryapi.NewRateLimiter(rdb, cfg.SearchRateLimitPerMinute)
	srv.Router.
		With(registryapi.OptionalAuth(issuer, perms)).
		Mount("/", registryHandler.Routes(rateLimiter))

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func runWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client) error {
	logger.Info("worker started")

	skills := store.NewSkillStore(db)
	authors := store.NewAuthorStore(db)
	categories := store.NewCategoryStore(db)

	objects := contentcache.NewFilesystemStore(cfg.ObjectStoreDir)
	cache := contentcache.NewLRU(objects, cfg.ContentCacheMaxItems, cfg.ContentCachePruneFraction)

	client := sourcehostClient(cfg, logger)
	eventClient := sourcehostEventClient(cfg, logger)

	pollInterval, err := time.ParseDuration(cfg.PollInterval)
	if err != nil {
		return fmt.Errorf("parsing poll interval %q: %w", cfg.PollInterval, err)
	}
	rankingInterval, err := time.ParseDuration(cfg.RankingInterval)
	if err != nil {
		return fmt.Errorf("parsing ranking interval %q: %w", cfg.RankingInterval, err)
	}
	lifecycleInterval, err := time.ParseDuration(cfg.LifecycleInterval)
	if err != nil {
		return fmt.Errorf("parsing lifecycle interval %q: %w", cfg.LifecycleInterval, err)
	}

	var provider *classifier.SuggestionProvider
	if cfg.TextModelProviderURL != "" {
		provider = classifier.NewSuggestionProvider(cfg.TextModelProviderURL, cfg.TextModelProviderKey)
	} else {
		logger.Info("classifier: text model suggestions disabled (TEXT_MODEL_PROVIDER_URL not set)")
	}

	eventPoller := poller.New(eventClient, rdb, logger, pollInterval)
	indexWorker := indexer.New(client, rdb, skills, authors, cache, logger, "indexer-1")
	classifyWorker := classifier.New(rdb, skills, categories, provider, logger, "classifier-1")
	rankEngine := ranking.New(client, rdb, skills, authors, objects, logger, rankingInterval)
	lifecycleMgr := lifecycle.New(client, skills, logger, lifecycleInterval)

	errCh := make(chan error, 5)
	runners := []func(context.Context) error{
		eventPoller.Run,
		indexWorker.Run,
		classifyWorker.Run,
		rankEngine.Run,
		lifecycleMgr.Run,
	}
	for _, run := range runners {
		run := run
		go func() {
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("worker stopping")
		return nil
	case err := <-errCh:
		return err
	}
}
