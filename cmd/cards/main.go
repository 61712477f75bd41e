package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vanshika/quickpay/backend/internal/app"
	"github.com/vanshika/quickpay/backend/internal/config"
	"github.com/vanshika/quickpay/backend/internal/logging"
	"github.com/vanshika/quickpay/backend/internal/service"
)

var Version = "dev"

// serviceFactory opens a card service and returns a func releasing it.
type serviceFactory func(ctx context.Context, fixturesDir string) (*service.CardService, func(), error)

func main() {
	if err := newRootCmd(buildService).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(factory serviceFactory) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "cards",
		Short:         "Inspect and repair client payment cards across entities",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("fixtures", "", "Serve clients from a fixture directory instead of the configured upstream")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(listCmd(factory))
	rootCmd.AddCommand(setDefaultCmd(factory))
	rootCmd.AddCommand(deleteCmd(factory))

	return rootCmd
}

func buildService(ctx context.Context, fixturesDir string) (*service.CardService, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if fixturesDir != "" {
		cfg.Upstream.Mode = "fixtures"
		cfg.Upstream.FixturesDir = fixturesDir
	}

	logger := logging.NewWithWriter(os.Stderr, cfg.Logging)
	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if err := rt.Close(context.Background()); err != nil {
			logger.Warn("closing runtime failed", "error", err)
		}
	}
	return rt.Cards, release, nil
}

// open resolves the persistent flags and builds the service for cmd.
func open(cmd *cobra.Command, factory serviceFactory) (*service.CardService, func(), error) {
	fixturesDir, _ := cmd.Flags().GetString("fixtures")
	return factory(cmd.Context(), fixturesDir)
}
