package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iliyamo/karaoke-booking/internal/clock"
	"github.com/iliyamo/karaoke-booking/internal/config"
	"github.com/iliyamo/karaoke-booking/internal/database"
	"github.com/iliyamo/karaoke-booking/internal/handler"
	"github.com/iliyamo/karaoke-booking/internal/logging"
	"github.com/iliyamo/karaoke-booking/internal/middleware"
	"github.com/iliyamo/karaoke-booking/internal/queue"
	"github.com/iliyamo/karaoke-booking/internal/repository"
	"github.com/iliyamo/karaoke-booking/internal/router"
	"github.com/iliyamo/karaoke-booking/internal/service"
)

var (
	logger zerolog.Logger
	cfg    config.Config
)

var rootCmd = &cobra.Command{
	Use:   "karaoke",
	Short: "Karaoke song-request backend",
	Long:  "HTTP API for DJs and their attendees: QR sessions, song catalogs and the booking board.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, cleanupCmd, consumeCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration and sets up logging for a command.
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = logging.Setup(cfg.Env)
	return nil
}

func openDatabase() (*sql.DB, error) {
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if cfg.DBAutoMigrate {
		if err := database.Migrate(cmd.Context(), db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn().Msg("redis unreachable; using in-process rate limiting and no response cache")
	} else {
		defer func() { _ = rdb.Close() }()
	}

	var events service.EventPublisher
	if cfg.EventsEnabled {
		events = queue.NewPublisher(cfg.RabbitMQURL, logger)
	}

	clk := clock.Real()
	store := repository.NewStore(db)
	sessions := service.NewSessionManager(store, clk, cfg.SessionDuration, logger)
	ledger := service.NewBookingLedger(store, clk, events, logger)
	registry := service.NewVenueRegistry(store, logger)

	djs := repository.NewDJRepo(db)
	tokens := repository.NewTokenRepo(db)
	songs := repository.NewSongRepo(db)

	e := echo.New()
	router.Setup(e, cfg, logger)
	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, djs, tokens), cfg.JWTSecret)
	router.RegisterVenues(e, handler.NewVenueHandler(repository.NewVenueRepo(db), registry), cfg.JWTSecret)
	songHandler := handler.NewSongHandler(songs, djs)
	router.RegisterSongs(e, songHandler, cfg.JWTSecret)
	bookings := handler.NewBookingHandler(ledger)
	router.RegisterDJBookings(e, bookings, cfg.JWTSecret)
	router.RegisterAttendee(e, router.AttendeeDeps{
		Sessions:  handler.NewSessionHandler(sessions, cfg.CookieSecure, cfg.Development()),
		Bookings:  bookings,
		Songs:     songHandler,
		Checker:   sessions,
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger),
		Cache:     middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
		JWTSecret: cfg.JWTSecret,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.SessionCleanupInterval > 0 {
		go runCleanupLoop(ctx, sessions, tokens, cfg.SessionCleanupInterval)
	}
	if cfg.ConsumerEnabled {
		go func() {
			if err := queue.StartBookingConsumer(ctx, cfg.RabbitMQURL, cfg.EventLogDir, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("booking consumer stopped")
			}
		}()
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("http server listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down gracefully")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// runCleanupLoop deletes expired sessions and refresh tokens every interval
// until ctx is cancelled.
func runCleanupLoop(ctx context.Context, sessions *service.SessionManager, tokens *repository.TokenRepo, every time.Duration) {
	log := logger.With().Str("component", "cleanup").Logger()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if _, err := sessions.CleanupExpired(runCtx); err != nil {
				log.Error().Err(err).Msg("session cleanup failed")
			}
			if n, err := tokens.PurgeExpired(runCtx, time.Now().UTC()); err != nil {
				log.Error().Err(err).Msg("refresh token purge failed")
			} else if n > 0 {
				log.Debug().Int64("purged", n).Msg("expired refresh tokens purged")
			}
			cancel()
		}
	}
}
