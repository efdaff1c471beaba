// Package cmd defines and implements the CLI commands for the harvester
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bankrot/harvester/internal/config"
	"bankrot/harvester/internal/logging"
)

var cfgFile string

// envKeyType is the key for storing the Env in the context.
type envKeyType string

const envKey envKeyType = "env"

// Env bundles the configuration and logger every subcommand needs.
type Env struct {
	Cfg    config.Config
	Logger *zap.Logger
}

// newEnv is the environment factory. It's a variable so tests can
// substitute a canned environment.
var newEnv = func() (*Env, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}
	return &Env{Cfg: cfg, Logger: logger}, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Incremental auction lot harvester",
		Long: `harvester walks a paginated auction catalog, extracts every lot not
recorded by a previous run, and appends the results to a cross-linked
Excel workbook. Runs are incremental: identifiers of successfully
recorded lots persist between invocations, so a scheduled run only
pays for what is new.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Runs before the subcommand's RunE; builds and injects the
		// environment so subcommands stay wiring-only.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			env, err := newEnv()
			if err != nil {
				return fmt.Errorf("initialize: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), envKey, env))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if env, ok := cmd.Context().Value(envKey).(*Env); ok && env != nil {
				_ = env.Logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML; built-in defaults apply when omitted)")
	cmd.AddCommand(newHarvestCmd())

	return cmd
}

func resolveEnv(ctx context.Context) (*Env, error) {
	env, ok := ctx.Value(envKey).(*Env)
	if !ok || env == nil {
		return nil, errors.New("environment not initialized")
	}
	return env, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the command
// context so a run can stop between items without corrupting its outputs.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "harvester:", err)
		os.Exit(1)
	}
}
