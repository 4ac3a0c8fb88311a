// Command server boots the HTTP API: it loads configuration, opens the
// database, wires every domain component (Stable Diffusion gateway, LoRA
// catalog, content classifier, generation queue, upload router,
// conversation store, LLM router, tool surface, and conversational core),
// and serves them over the tool-catalog REST API until interrupted.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sdforge/sdforge/internal/config"
	"github.com/sdforge/sdforge/internal/contentclassifier"
	"github.com/sdforge/sdforge/internal/convstore"
	httpapi "github.com/sdforge/sdforge/internal/http"
	"github.com/sdforge/sdforge/internal/llmrouter"
	"github.com/sdforge/sdforge/internal/loracatalog"
	"github.com/sdforge/sdforge/internal/observability"
	"github.com/sdforge/sdforge/internal/personacore"
	"github.com/sdforge/sdforge/internal/queue"
	"github.com/sdforge/sdforge/internal/repo"
	"github.com/sdforge/sdforge/internal/sdgateway"
	"github.com/sdforge/sdforge/internal/sysutil"
	"github.com/sdforge/sdforge/internal/toolsurface"
	"github.com/sdforge/sdforge/internal/uploadrouter"
)

// version is stamped at build time via -ldflags; "dev" otherwise.
var version = "dev"

func main() {
	// .env is a developer convenience; real deployments set the environment
	// directly, so a missing file is not an error.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up OpenTelemetry")
	}
	defer func() {
		if err := shutdownOTel(context.Background()); err != nil {
			log.Error().Err(err).Msg("otel shutdown failed")
		}
	}()

	db, err := repo.OpenSQLite(cfg.Catalog.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	gateway := sdgateway.New(cfg.SD)

	catalog := loracatalog.New(db, gateway, cfg.Catalog)
	if _, err := catalog.SyncFromGateway(ctx); err != nil {
		log.Error().Err(err).Msg("initial LoRA catalog sync failed, continuing with existing rows")
	}

	classifier := contentclassifier.New(db)
	if err := contentclassifier.SeedBuiltins(ctx, db); err != nil {
		log.Error().Err(err).Msg("content taxonomy seed failed, continuing with existing rows")
	}

	uploader := uploadrouter.New(db, cfg.Hosting)
	q := queue.New(ctx, gateway, gateway, uploader, cfg.NSFW, 200)

	store, err := convstore.New(ctx, db, cfg.AutoClean)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize conversation store")
	}
	store.RecordLaunchAndMaybeClean(ctx)

	router := llmrouter.New(ctx, cfg.Chat)
	persona := personacore.New(store, router, classifier, q, cfg.Rate)
	surface := toolsurface.New(gateway, catalog, classifier, q, uploader, store, router, cfg.Moderation)

	r := gin.New()
	httpapi.RegisterRoutes(r, db, surface, persona, cfg)

	if sysutil.IsTruthy(os.Getenv("PRINT_ROUTES")) {
		for _, rt := range r.Routes() {
			log.Info().Str("method", rt.Method).Str("path", rt.Path).Msg("route registered")
		}
	}

	addr := sysutil.FirstNonEmpty(os.Getenv("LISTEN_ADDR"), ":"+cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", addr).Str("version", version).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
