// Command tokenguard runs the token lifecycle service and its maintenance
// tasks.
package main

import (
	"fmt"
	"os"

	"github.com/MrEthical07/tokenguard/internal/appconfig"
	"github.com/MrEthical07/tokenguard/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	Version = "0.1.0"
	appName = "tokenguard"
)

// BuildTime is set with -ldflags at release time.
var BuildTime = "dev"

type rootFlags struct {
	configPath string
	logLevel   string
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Token lifecycle service",
		Long: `tokenguard issues and rotates JWT access/refresh pairs, detects refresh
token reuse, enforces login lockout and keeps an audit trail.

Secrets are read from ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "config.yaml", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	cmd.AddCommand(
		serveCmd(flags),
		migrateCmd(flags),
		sweepCmd(flags),
		unlockCmd(flags),
		userCmd(flags),
		reportCmd(flags),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)

	return cmd
}

// setup loads configuration and builds the logger every subcommand shares.
func setup(flags *rootFlags) (appconfig.Config, *zap.Logger, error) {
	cfg, err := appconfig.Load(flags.configPath)
	if err != nil {
		return appconfig.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		return appconfig.Config{}, nil, err
	}
	return cfg, log, nil
}
