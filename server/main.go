// Command workflowd serves agent workflows and the component catalog over
// REST.
//
//	workflowd serve              start the HTTP server
//	workflowd schema create      create tables / indexes
//	workflowd schema drop        drop everything
//	workflowd seed               insert the sample component catalog
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/badger"
	"github.com/meikuraledutech/workflow/config"
	"github.com/meikuraledutech/workflow/postgres"
	"github.com/spf13/cobra"
)

var (
	configPath string
	cfg        config.Config
	logger     *slog.Logger

	rootCmd = &cobra.Command{
		Use:           "workflowd",
		Short:         "Agent workflow and component catalog server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			logger = cfg.Log.Logger(os.Stderr)
			slog.SetDefault(logger)
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	rootCmd.AddCommand(serveCmd)

	rootCmd.AddCommand(schemaCmd)
	schemaCmd.AddCommand(schemaCreateCmd)
	schemaCmd.AddCommand(schemaDropCmd)

	rootCmd.AddCommand(seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "workflowd:", err)
		os.Exit(1)
	}
}

// openStore opens the configured backend. The returned func releases it.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (workflow.Store, func(), error) {
	switch cfg.Store {
	case config.StoreBadger:
		opts := []badger.Option{badger.WithLogger(logger.With("component", "badger"))}
		if cfg.Badger.InMemory {
			opts = append(opts, badger.InMemory())
		}
		s, err := badger.Open(cfg.Badger.Path, opts...)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Error("close badger", "error", err)
			}
		}, nil

	case config.StorePostgres:
		pc, err := pgxpool.ParseConfig(cfg.Postgres.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse database url: %w", err)
		}
		if cfg.Postgres.MaxConns > 0 {
			pc.MaxConns = cfg.Postgres.MaxConns
		}
		pool, err := pgxpool.NewWithConfig(ctx, pc)
		if err != nil {
			return nil, nil, fmt.Errorf("connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping database: %w", err)
		}
		return postgres.New(pool), pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
}
