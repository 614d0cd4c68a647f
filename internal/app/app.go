package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/isinmap/config"
	"github.com/guttosm/isinmap/internal/api"
	"github.com/guttosm/isinmap/internal/logger"
	"github.com/guttosm/isinmap/internal/secmaster"
	"github.com/guttosm/isinmap/internal/service"
	"github.com/guttosm/isinmap/internal/storage"
)

// NewRepository returns the security master selected by cfg.Lookup.Source
// and a cleanup that releases whatever it holds.
//
// The file source opens nothing up front; a missing file surfaces on the
// first lookup as a reference-file failure.
func NewRepository(ctx context.Context, cfg config.Config) (storage.SecurityRepository, func(), error) {
	switch cfg.Lookup.Source {
	case config.SourceFile, "":
		repo := secmaster.NewFileRepository(cfg.Lookup.FilePath)
		logger.L().Debug().Str("source", config.SourceFile).Str("path", repo.Path()).Msg("security master selected")
		return repo, func() {}, nil
	case config.SourcePostgres:
		db, err := postgresOpener(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize postgres: %w", err)
		}
		logger.L().Debug().Str("source", config.SourcePostgres).Str("host", cfg.Postgres.Host).Str("db", cfg.Postgres.DBName).Msg("security master selected")
		return storage.NewSecurityRepository(db), func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported security master source %q", cfg.Lookup.Source)
	}
}

// NewLookupService wires the configured repository and code suffixes into a LookupService.
func NewLookupService(ctx context.Context, cfg config.Config) (service.LookupService, storage.SecurityRepository, func(), error) {
	repo, cleanup, err := NewRepository(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	codes := service.Codes{BBGSuffix: cfg.Lookup.BBGSuffix, RICSuffix: cfg.Lookup.RICSuffix}
	return service.NewLookupService(repo, codes), repo, cleanup, nil
}

// InitializeApp sets up all application dependencies and returns
// a fully configured Gin router, a cleanup function for graceful shutdown,
// and any error encountered during initialization.
//
// Responsibilities:
//   - Builds the security master repository from config.AppConfig.
//   - Creates the lookup service and the HTTP handler layer.
//   - Configures the Gin router with rate limiting from ServerConfig.
//   - Registers health and readiness probes backed by the repository's Ping.
func InitializeApp() (*gin.Engine, func(), error) {
	cfg := config.AppConfig

	svc, repo, cleanup, err := NewLookupService(context.Background(), cfg)
	if err != nil {
		return nil, nil, err
	}

	handler := api.NewHandler(svc)

	router := api.NewRouter(handler, api.RouterOptions{
		RateLimit:  cfg.Server.RateLimit,
		RateWindow: cfg.Server.RateWindow,
	})

	api.NewHealthHandler(repo.Ping).Register(router)

	return router, cleanup, nil
}
