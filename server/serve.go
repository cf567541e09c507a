package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/meikuraledutech/workflow/api"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, closeStore, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		app := api.New(store, logger)
		logger.Info("listening", "addr", cfg.Listen, "store", cfg.Store)
		err = app.Listen(cfg.Listen, fiber.ListenConfig{
			GracefulContext:       ctx,
			ShutdownTimeout:       10 * time.Second,
			DisableStartupMessage: true,
		})
		if err != nil {
			return err
		}
		logger.Info("server stopped")
		return nil
	},
}

// commandContext bounds one-shot commands.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), time.Minute)
}
