package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"prismview/internal/artifact"
	"prismview/internal/catalog"
	"prismview/internal/config"
	"prismview/internal/metrics"
	"prismview/internal/pipeline"
)

// newLogger builds the process logger. Production config keeps output terse;
// --verbose switches to the development encoder with debug enabled.
func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// setup loads config and opens the stores shared by every stage command.
func setup(ctx context.Context) (*pipeline.Pipeline, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger()
	if err != nil {
		return nil, nil, err
	}
	store, err := artifact.Open(ctx, cfg.ArtifactOptions())
	if err != nil {
		log.Sync()
		return nil, nil, fmt.Errorf("open artifact store: %w", err)
	}
	cat, err := catalog.Open(cfg.CatalogOptions())
	if err != nil {
		log.Sync()
		return nil, nil, fmt.Errorf("open run catalog: %w", err)
	}
	cleanup := func() {
		cat.Close()
		log.Sync()
	}
	return pipeline.New(cfg, store, cat, metrics.New(), log), cleanup, nil
}

func reshapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reshape",
		Short: "Join the raw tables into cleaned per-site CSVs",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, cleanup, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			return p.Reshape(cmd.Context())
		},
	}
}

func renderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "render",
		Short: "Render household viewers from previously written CSVs",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, cleanup, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			return p.Render(cmd.Context())
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Reshape and render in one pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, cleanup, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			return p.Run(cmd.Context())
		},
	}
}
