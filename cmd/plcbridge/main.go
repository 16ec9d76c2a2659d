package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/plcbridge/internal/config"
	"github.com/danmuck/plcbridge/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootOptions carries the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "plcbridge: %s\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "plcbridge",
		Short: "Exchange fixed-size PLC records over TCP",
		Long: `plcbridge moves fixed-size binary records between a PLC and a host.

The record layout is declared once in the [schema] section of the config
file. The client sends a record and waits for the reply at a fixed rate,
reconnecting when the link drops. The server answers each record it
receives with an echo or a processed copy.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.ConfigureRuntime()
			if opts.logLevel == "" {
				return nil
			}
			level, ok := logging.ParseLevel(opts.logLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", opts.logLevel)
			}
			zerolog.SetGlobalLevel(level)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a TOML config file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(
		clientCmd(opts),
		serverCmd(opts),
		schemaCmd(opts),
		configCmd(),
		versionCmd(),
	)
	return rootCmd
}

// loadConfig reads the config file when one is given and falls back to the
// built-in defaults otherwise.
func (o *rootOptions) loadConfig() (config.Config, error) {
	path := strings.TrimSpace(o.configPath)
	if path == "" {
		cfg := config.Default()
		return cfg, config.Validate(cfg)
	}
	return config.Load(path)
}
