// Package cli implements the schedctl command tree.
package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/schedctl/internal/config"
	"github.com/me/schedctl/internal/logging"
	"github.com/me/schedctl/internal/schedclient"
	"github.com/me/schedctl/internal/session"
)

var (
	flagConfig      string
	flagServer      string
	flagDebug       bool
	flagLogLevel    string
	flagLogFormat   string
	flagCredentials string
	flagTimeout     time.Duration
	flagMetricsAddr string

	cfg    config.ClientConfig
	logger *slog.Logger
	sess   *session.Manager
	port   schedclient.Port
)

// NewRootCmd creates the root cobra command for the schedctl CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "schedctl",
		Short: "schedctl: manage scheduler tasks and jobs",
		Long:  "schedctl creates, monitors, cancels, reschedules and deletes recurring data-collection tasks on a scheduler.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(flagConfig)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			applyFlags(cmd)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger = logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			sess = session.Default()
			sess.Configure(cfg.CredentialsPath,
				session.WithLogger(logger),
				session.WithRedirect(func(reason string) {
					fmt.Fprintf(cmd.ErrOrStderr(), "Session ended (%s). Run 'schedctl login' to sign in again.\n", reason)
				}),
			)
			if err := sess.Init(cmd.Context()); err != nil {
				return err
			}
			port = newPort(cfg, sess, logger)
			return nil
		},
		SilenceUsage: true,
	}

	defaults := config.DefaultClientConfig()
	root.PersistentFlags().StringVar(&flagConfig, "config", config.DefaultPath(), "Config file")
	root.PersistentFlags().StringVar(&flagServer, "server", defaults.Server, "Scheduler URL (or SCHEDCTL_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", defaults.LogLevel, "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", defaults.LogFormat, "Log format (text, json)")
	root.PersistentFlags().StringVar(&flagCredentials, "credentials", defaults.CredentialsPath, "Credential file")
	root.PersistentFlags().DurationVar(&flagTimeout, "timeout", defaults.Timeout, "Per-request timeout")
	root.PersistentFlags().StringVar(&flagMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while watching")

	root.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newEcosystemCmd(),
		newTasksCmd(),
		newTaskCmd(),
		newJobsCmd(),
		newJobCmd(),
	)

	return root
}

// applyFlags lets explicitly set flags override the loaded configuration.
func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.Server = flagServer
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if flagDebug {
		cfg.LogLevel = "debug"
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = flagLogFormat
	}
	if flags.Changed("credentials") {
		cfg.CredentialsPath = flagCredentials
	}
	if flags.Changed("timeout") {
		cfg.Timeout = flagTimeout
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = flagMetricsAddr
	}
}
