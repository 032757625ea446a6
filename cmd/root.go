// Package cmd implements the matchwatch command line interface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/matchwatch/internal/api"
	"github.com/JakeFAU/matchwatch/internal/app"
	"github.com/JakeFAU/matchwatch/internal/client"
	"github.com/JakeFAU/matchwatch/internal/config"
	"github.com/JakeFAU/matchwatch/internal/dashboard"
	"github.com/JakeFAU/matchwatch/internal/logging"
	"github.com/JakeFAU/matchwatch/internal/poller"
	"github.com/JakeFAU/matchwatch/internal/registry"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands use.
type App interface {
	Close(ctx context.Context) error
	Config() config.Config
	Logger() *zap.Logger
	Client() *client.Client
	Poller() *poller.Poller
	Registry() *registry.Registry
	Reports() dashboard.BlobStore
	Server() *api.Server
}

// newApp is the application factory. It is a variable so tests can build the
// App against their own Prometheus registry.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger, app.Options{})
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "matchwatch",
		Short: "Track article backend jobs and compare news sources.",
		Long: `matchwatch launches and follows long-running jobs on the article backend
(fetching articles, finding matches, comparing quality) and turns the
resulting articles and matches into per-source comparison reports.

Example usage:
  matchwatch launch fetch-articles --wait
  matchwatch track 5f0c2a 9b1e77
  matchwatch compare --only-new
  matchwatch report --export
  matchwatch articles mark-checked 41 42
  matchwatch serve`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			logger, err := logging.NewWithLevel(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			closeApp(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); MATCHWATCH_* env vars override it")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newLaunchCmd())
	cmd.AddCommand(newTrackCmd())
	cmd.AddCommand(newCompareCmd())
	cmd.AddCommand(newReportCmd())
	cmd.AddCommand(newArticlesCmd())
	cmd.AddCommand(newMatchesCmd())
	return cmd
}

// appFrom returns the App stored by PersistentPreRunE.
func appFrom(cmd *cobra.Command) (App, error) {
	a, ok := cmd.Context().Value(appKey).(App)
	if !ok || a == nil {
		return nil, errors.New("application services are not initialized")
	}
	return a, nil
}

// closeApp releases the App. PersistentPostRun does not run when RunE fails,
// so Execute calls it as well; App.Close tolerates repeated calls.
func closeApp(cmd *cobra.Command) {
	a, err := appFrom(cmd)
	if err != nil {
		return
	}
	timeout := time.Duration(a.Config().Jobs.CloseTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		a.Logger().Warn("error closing application services", zap.Error(err))
	}
	_ = a.Logger().Sync()
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	root := newRootCmd()
	cmd, err := root.ExecuteC()
	if cmd != nil {
		closeApp(cmd)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error:"), err)
		os.Exit(1)
	}
}
