package main

import (
	"fmt"
	"log/slog"

	"github.com/phrazzld/slidegen/internal/config"
	"github.com/phrazzld/slidegen/internal/platform/logger"
	"github.com/spf13/cobra"
)

// globalOptions holds the persistent flags and what PersistentPreRunE
// derives from them.
type globalOptions struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "slidegen",
		Short:         "Turn documents into slide decks, summaries and reviews",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ./config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override server.log_level")

	cmd.AddCommand(
		newGenerateCommand(opts),
		newCancelCommand(opts),
		newClearCommand(opts),
		newProvidersCommand(opts),
		newModelsCommand(opts),
		newTokenCommand(opts),
		newMigrateCommand(opts),
	)
	return cmd
}

// load reads configuration and sets up logging on stderr so that stdout
// carries only command output.
func (o *globalOptions) load(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	level := cfg.Server.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	l, err := logger.Setup(logger.LoggerConfig{Level: level, Output: cmd.ErrOrStderr()})
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	o.cfg = cfg
	o.logger = l
	return nil
}
