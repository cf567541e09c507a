package main

import (
	"github.com/spf13/cobra"
)

var (
	schemaCmd = &cobra.Command{
		Use:   "schema",
		Short: "Manage the store schema",
	}

	schemaCreateCmd = &cobra.Command{
		Use:   "create",
		Short: "Create tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			store, closeStore, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.CreateSchema(ctx); err != nil {
				return err
			}
			logger.Info("schema created", "store", cfg.Store)
			return nil
		},
	}

	schemaDropCmd = &cobra.Command{
		Use:   "drop",
		Short: "Drop all tables and data",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			store, closeStore, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.DropSchema(ctx); err != nil {
				return err
			}
			logger.Info("schema dropped", "store", cfg.Store)
			return nil
		},
	}
)
