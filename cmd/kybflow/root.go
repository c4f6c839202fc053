package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/alexcabrera/kybflow/internal/client"
	"github.com/alexcabrera/kybflow/internal/config"
	"github.com/alexcabrera/kybflow/internal/logging"
	"github.com/alexcabrera/kybflow/internal/paths"
)

// globals are the persistent flags shared by every command.
type globals struct {
	cfgPath string
	server  string
	json    bool
	dev     bool
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:           "kybflow",
		Short:         "Design and store KYB/KYC verification workflows",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if g.dev {
				paths.SetLocalDevMode()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&g.cfgPath, "config", "", "path to config file (default "+paths.ConfigFile()+")")
	cmd.PersistentFlags().StringVar(&g.server, "server", "", "API base URL (overrides config)")
	cmd.PersistentFlags().BoolVar(&g.json, "json", false, "print JSON instead of tables")
	cmd.PersistentFlags().BoolVar(&g.dev, "dev", false, "keep config and data under the current directory")

	cmd.AddCommand(newServeCmd(g))
	cmd.AddCommand(newWorkflowsCmd(g))
	cmd.AddCommand(newLayoutCmd(g))
	cmd.AddCommand(newConnectedCmd(g))
	cmd.AddCommand(newSeedCmd(g))
	cmd.AddCommand(newValidateCmd(g))
	cmd.AddCommand(newSampleCmd(g))

	return cmd
}

func (g *globals) config() (config.Config, error) {
	path := g.cfgPath
	if path == "" {
		path = paths.ConfigFile()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if g.server != "" {
		cfg.ServerURL = g.server
	}
	return cfg, nil
}

func (g *globals) logger(cfg config.Config) *slog.Logger {
	return logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
}

// withClient loads config and calls fn with an API client.
func (g *globals) withClient(fn func(cfg config.Config, c *client.Client) error) error {
	cfg, err := g.config()
	if err != nil {
		return err
	}
	c := client.NewClient(
		client.WithHost(cfg.ServerURL),
		client.WithRetry(cfg.SaveRetries, cfg.RetryDelay),
	)
	if err := fn(cfg, c); err != nil {
		return fmt.Errorf("%s: %w", cfg.ServerURL, err)
	}
	return nil
}
