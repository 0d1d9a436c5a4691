package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/equidex/internal/config"
	logpkg "github.com/kailas-cloud/equidex/internal/logger"
)

// NewRootCmd creates the root equidex command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "equidex",
		Short:         "equidex: multi-agent equity research over financial documents",
		Long:          "equidex ingests pre-extracted financial reports, retrieves context per analyst agent and runs the agent panel concurrently.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("env", "e", config.GetEnv(), "environment name, selects config/<env>.yaml")
	root.PersistentFlags().StringP("config", "c", "", "explicit config file path (overrides --env lookup)")
	root.PersistentFlags().String("log-level", "", "log level override: debug, info, warn, error")

	root.AddCommand(
		newServeCmd(),
		newAnalyzeCmd(),
		newAgentsCmd(),
		newVersionCmd(),
	)

	return root
}

// loadRuntime reads the config and builds the logger selected by the global flags.
func loadRuntime(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	flags := cmd.Root().PersistentFlags()
	env, _ := flags.GetString("env")
	path, _ := flags.GetString("config")
	level, _ := flags.GetString("log-level")

	var (
		cfg config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logpkg.NewLogger(env, level)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}
