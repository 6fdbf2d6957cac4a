package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/forgo/taskhooks/internal/config"
	"github.com/forgo/taskhooks/internal/logging"
)

// app carries state shared by subcommands once the root pre-run has loaded it
type app struct {
	configFile string
	logLevel   string
	logFormat  string
	baseURL    string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "taskhooks",
		Short: "Contract-test hooks for the task-management API",
		Long: `taskhooks prepares a running task-management service for an API
contract run: it provisions an account, logs in, seeds a task and adjusts
every transaction (auth header, request body, task id) before the runner
sends it.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}
	cmd.SetVersionTemplate(`{{printf "taskhooks version %s\n" .Version}}`)
	cmd.Version = version

	cmd.PersistentFlags().StringVar(&a.configFile, "config", "", "YAML config file (overrides TASKHOOKS_CONFIG)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format: json or text")
	cmd.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "task service base URL")

	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newPreflightCmd(a))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// load reads configuration (env, then file, then flags), validates it and
// installs the default logger
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.configFile != "" {
		if err := cfg.MergeFile(a.configFile); err != nil {
			return err
		}
	}

	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if a.baseURL != "" {
		cfg.Service.BaseURL = a.baseURL
	}
	if err := a.applyCommandFlags(cmd, cfg); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cmd.OutOrStdout(), cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	a.cfg = cfg
	a.logger = logger
	return nil
}

// applyCommandFlags copies serve flags that were set explicitly onto cfg
func (a *app) applyCommandFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Lookup("host") != nil && flags.Changed("host") {
		host, err := flags.GetString("host")
		if err != nil {
			return err
		}
		cfg.Hooks.Host = host
	}
	if flags.Lookup("port") != nil && flags.Changed("port") {
		port, err := flags.GetInt("port")
		if err != nil {
			return err
		}
		cfg.Hooks.Port = port
	}
	if flags.Lookup("path-match") != nil && flags.Changed("path-match") {
		mode, err := flags.GetString("path-match")
		if err != nil {
			return err
		}
		cfg.Hooks.PathMatch = mode
	}
	return nil
}
