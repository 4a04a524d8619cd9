package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iliyamo/karaoke-booking/internal/clock"
	"github.com/iliyamo/karaoke-booking/internal/database"
	"github.com/iliyamo/karaoke-booking/internal/queue"
	"github.com/iliyamo/karaoke-booking/internal/repository"
	"github.com/iliyamo/karaoke-booking/internal/service"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup-sessions",
	Short: "Delete expired attendee sessions once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		sessions := service.NewSessionManager(repository.NewStore(db), clock.Real(), cfg.SessionDuration, logger)
		n, err := sessions.CleanupExpired(cmd.Context())
		if err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired sessions\n", n)
		return nil
	},
}

var consumeCmd = &cobra.Command{
	Use:   "consume-events",
	Short: "Append booking events from RabbitMQ to the booking log",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		logger.Info().Str("dir", cfg.EventLogDir).Msg("booking consumer starting")
		if err := queue.StartBookingConsumer(ctx, cfg.RabbitMQURL, cfg.EventLogDir, logger); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		if err := database.Migrate(cmd.Context(), db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Msg("schema up to date")
		return nil
	},
}
