package main

//
//  @title           isinmap API
//  @version         1.0
//  @description     ISIN to Bloomberg/Reuters code lookup backed by a security master.
//  @termsOfService  https://github.com/guttosm/isinmap
//  @contact.name    API Support
//  @contact.url     https://github.com/guttosm/isinmap
//  @contact.email   support@example.com
//  @license.name    MIT
//  @license.url     https://opensource.org/licenses/MIT
//  @host            localhost:8080
//  @BasePath        /
//  @schemes         http
//
//  @tag.name        lookup
//  @tag.description Resolve an ISIN to vendor instrument codes
//
//  @tag.name        health
//  @tag.description Liveness and readiness probes

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guttosm/isinmap/config"
	_ "github.com/guttosm/isinmap/docs" // swagger docs
	"github.com/guttosm/isinmap/internal/app"
	"github.com/guttosm/isinmap/internal/cli"
	"github.com/guttosm/isinmap/internal/domain"
	"github.com/guttosm/isinmap/internal/loader"
	"github.com/guttosm/isinmap/internal/logger"
	"github.com/guttosm/isinmap/internal/storage"
	"github.com/guttosm/isinmap/migrations"
)

// startServer initializes and starts the HTTP server in a separate goroutine.
//
// Parameters:
//   - router (http.Handler): The HTTP router (Gin Engine) configured with all routes.
//   - port (string): The port where the server will listen for incoming requests.
//
// Returns:
//   - *http.Server: The initialized HTTP server instance.
func startServer(router http.Handler, port string) *http.Server {
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.L().Info().Str("port", port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal().Err(err).Msg("server failed to start")
		}
	}()

	return server
}

// gracefulShutdown gracefully terminates the HTTP server and cleans up resources
// when an OS interrupt signal (SIGINT, SIGTERM) is received.
func gracefulShutdown(ctx context.Context, server *http.Server, cleanup func()) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	logger.L().Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.L().Fatal().Err(err).Msg("server forced to shutdown")
	}

	cleanup()
	logger.L().Info().Msg("server exited gracefully")
}

// runLookup answers one request from in on out and returns the process exit code.
// A configuration or source failure still produces a JSON failure line.
func runLookup(ctx context.Context, cfg config.Config, cfgErr error, in io.Reader, out io.Writer, strict bool) int {
	if cfgErr != nil {
		return cli.ExitCode(cli.Fail(out, fmt.Errorf("invalid configuration: %w", cfgErr)), strict)
	}

	svc, _, cleanup, err := app.NewLookupService(ctx, cfg)
	if err != nil {
		return cli.ExitCode(cli.Fail(out, fmt.Errorf("%w: %w", domain.ErrReferenceFile, err)), strict)
	}
	defer cleanup()

	err = cli.Run(ctx, in, out, svc)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		logger.L().Warn().Err(err).Msg("lookup failed")
	}
	return cli.ExitCode(err, strict)
}

// runLoad migrates db and replaces its security master with the TSV at path.
func runLoad(ctx context.Context, db *sql.DB, path string, batch int) error {
	if err := migrations.Up(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	stats, err := loader.LoadFile(ctx, path, storage.NewSecurityRepository(db), batch)
	if err != nil {
		return err
	}
	logger.L().Info().Int("rows", stats.Rows).Int("duplicates", stats.Duplicates).Msg("load completed successfully")
	return nil
}

// main is the entry point of the isinmap application.
//
// Modes (selected via --mode flag):
//   - lookup: Reads one {"isin": ...} request from stdin and writes the codes to stdout.
//   - api:    Starts the REST API exposing the same lookup.
//   - load:   Copies a security master TSV into PostgreSQL.
//
// Flags:
//   - --mode:        Execution mode ("lookup", "api" or "load"). Default: "lookup".
//   - --file:        Security master TSV. Defaults to SECMASTER_PATH.
//   - --batch:       Rows per COPY batch in load mode.
//   - --port:        Port for the API server. Defaults to SERVER_PORT.
//   - --strict-exit: Exit 1 when a lookup fails. Defaults to LOOKUP_STRICT_EXIT.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration from environment or .env file
	cfgErr := config.LoadConfig()

	// Initialize JSON logger (stderr)
	logger.Init()

	mode := flag.String("mode", "lookup", "Mode: lookup, api or load")
	file := flag.String("file", config.AppConfig.Lookup.FilePath, "Security master TSV file")
	batch := flag.Int("batch", loader.DefaultBatchSize, "Rows per COPY batch (load mode)")
	port := flag.String("port", config.AppConfig.Server.Port, "Port for API mode")
	strict := flag.Bool("strict-exit", config.AppConfig.Lookup.StrictExit, "Exit non-zero when the lookup fails")
	flag.Parse()

	config.AppConfig.Lookup.FilePath = *file

	switch *mode {
	case "lookup":
		code := runLookup(ctx, config.AppConfig, cfgErr, os.Stdin, os.Stdout, *strict)
		stop()
		os.Exit(code)

	case "api":
		config.MustLoadConfig()
		config.AppConfig.Lookup.FilePath = *file
		logger.L().Info().Str("source", config.AppConfig.Lookup.Source).Msg("starting API server")

		router, cleanup, err := app.InitializeApp()
		if err != nil {
			logger.L().Fatal().Err(err).Msg("app init error")
		}

		server := startServer(router, *port)
		gracefulShutdown(context.Background(), server, cleanup)

	case "load":
		config.MustLoadConfig()
		config.AppConfig.Lookup.FilePath = *file

		db, err := app.InitPostgres(ctx, config.AppConfig)
		if err != nil {
			logger.L().Fatal().Err(err).Msg("db connect error")
		}
		defer func() { _ = db.Close() }()

		if err := runLoad(ctx, db, *file, *batch); err != nil {
			logger.L().Error().Err(err).Msg("load failed")
			_ = db.Close()
			stop()
			os.Exit(1)
		}

	default:
		logger.L().Fatal().Str("mode", *mode).Msg("unknown mode")
	}
}
