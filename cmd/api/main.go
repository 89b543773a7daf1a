package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/finsec-io/finsec-api/internal/api"
	"github.com/finsec-io/finsec-api/internal/auth"
	"github.com/finsec-io/finsec-api/internal/config"
	"github.com/finsec-io/finsec-api/internal/database"
	"github.com/finsec-io/finsec-api/internal/events"
	"github.com/finsec-io/finsec-api/internal/logging"
	"github.com/finsec-io/finsec-api/internal/payments"
	"github.com/finsec-io/finsec-api/internal/receipts"
	"github.com/finsec-io/finsec-api/internal/scheduler"
	"github.com/finsec-io/finsec-api/internal/store"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const version = "0.1.0"

// application bundles the server with the resources that must be released
// when it stops.
type application struct {
	api       *api.Api
	db        *database.DB
	publisher events.Publisher
	scheduler *scheduler.Scheduler
}

func (a *application) Close() {
	if a.scheduler != nil {
		<-a.scheduler.Stop().Done()
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

func initializeAPI(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*application, error) {
	db, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	app := &application{db: db}
	st := store.New(db)

	app.publisher = events.Connect(cfg.Events.Enabled, cfg.Events.URL, cfg.Events.Exchange, logger)

	archiver, err := receipts.New(ctx, cfg.Receipts, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	sessions := auth.NewSessionManager(st, cfg.Auth.SessionTTL, logger)
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	authService := auth.NewService(st, sessions, tokens, app.publisher, cfg.Auth.MFAIssuer, logger)
	paymentService := payments.NewService(st, app.publisher, archiver, logger)

	app.scheduler = scheduler.New(scheduler.NewJobs(sessions, st, logger), cfg.Scheduler, logger)
	if err := app.scheduler.Start(); err != nil {
		app.Close()
		return nil, err
	}

	app.api, err = api.NewApi(*cfg, authService, paymentService, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func main() {
	configPath := flag.String("config", "app.yml", "Path to configuration file")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging)
	logger.Info().Str("version", version).Str("config", *configPath).Str("env", cfg.Env).Msg("starting FinSec API")
	if cfg.Auth.EphemeralSecret {
		logger.Warn().Msg("auth.jwtSecret is not set; using a random secret, tokens will not survive a restart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := initializeAPI(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize API")
	}
	defer app.Close()

	if err := app.api.Serve(ctx); err != nil {
		logger.Error().Err(err).Msg("API server stopped with error")
		return
	}
	logger.Info().Msg("API server stopped")
}
