package main

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/meikuraledutech/workflow"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the sample component catalog",
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
		n, err := seedCatalog(ctx, store, logger)
		if err != nil {
			return err
		}
		logger.Info("catalog seeded", "inserted", n)
		return nil
	},
}

var sampleCatalog = []workflow.Component{
	{
		Name:        "Weather lookup",
		Description: "Fetches the current weather for a city.",
		Kind:        workflow.KindLPI,
		Category:    "rest",
		Content:     json.RawMessage(`{"method":"GET","url":"https://api.example.com/weather","params":{"city":""}}`),
	},
	{
		Name:        "Knowledge search",
		Description: "Searches the knowledge base.",
		Kind:        workflow.KindLPI,
		Category:    "search",
		Content:     json.RawMessage(`{"index":"default","top_k":5}`),
	},
	{
		Name:        "Customer service bot",
		Description: "Answers customer questions.",
		Kind:        workflow.KindAgent,
		Content:     json.RawMessage(`{"prompt":"You are a helpful customer service agent."}`),
	},
	{
		Name:        "Data analysis assistant",
		Description: "Summarizes and analyzes tabular data.",
		Kind:        workflow.KindAgent,
		Content:     json.RawMessage(`{"prompt":"You are a data analyst."}`),
	},
	{
		Name:        "Condition jump",
		Description: "Branches on a field value.",
		Kind:        workflow.KindCommon,
		Category:    "condition",
		Content:     json.RawMessage(`{"component_subtype":"condition","condition_type":"simple","field":"","operator":"eq","value":""}`),
	},
	{
		Name:        "Executor",
		Description: "Transforms data between steps.",
		Kind:        workflow.KindCommon,
		Category:    "executor",
		Content:     json.RawMessage(`{"component_subtype":"executor","executor_type":"transform","transform_type":"map","mapping":{}}`),
	},
}

// seedCatalog inserts the sample components whose names are not taken yet
// and returns how many it inserted.
func seedCatalog(ctx context.Context, store workflow.Store, logger *slog.Logger) (int, error) {
	existing, err := store.ListComponents(ctx, workflow.ComponentFilter{})
	if err != nil {
		return 0, err
	}
	taken := make(map[string]bool, len(existing))
	for _, c := range existing {
		taken[c.Name] = true
	}

	inserted := 0
	for _, c := range sampleCatalog {
		if taken[c.Name] {
			logger.Debug("component exists, skipping", "name", c.Name)
			continue
		}
		if _, err := store.CreateComponent(ctx, &c); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}
