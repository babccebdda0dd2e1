// ABOUTME: Entry point for guday-portal, the public services site and admin back-office
// ABOUTME: Builds the cobra command tree; each subcommand lives in its own file

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/2389/guday-portal/internal/config"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                  _
   __ _ _   _  __| | __ _ _   _
  / _' | | | |/ _' |/ _' | | | |
 | (_| | |_| | (_| | (_| | |_| |
  \__, |\__,_|\__,_|\__,_|\__, |
  |___/                   |___/
`

// cli holds the flags shared by every subcommand.
type cli struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "guday-portal",
		Short: "Public government services portal and admin back-office",
		Long: `guday-portal serves the public services catalogue and the admin
back-office in front of the services REST API.

Configuration is read from --config, then GUDAY_CONFIG, then
$XDG_CONFIG_HOME/guday/portal.yaml. A .env file, when present, is loaded first.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadEnv()
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default: GUDAY_CONFIG or ~/.config/guday/portal.yaml)")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "environment file loaded before the config")

	root.AddCommand(
		c.serveCmd(),
		c.initCmd(),
		c.healthCmd(),
		c.checkBackendCmd(),
		c.importCmd(),
		c.auditCmd(),
		versionCmd(),
	)
	return root
}

// loadEnv loads the .env file. A missing default file is not an error.
func (c *cli) loadEnv() error {
	if c.envFile == "" {
		return nil
	}
	if err := godotenv.Load(c.envFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", c.envFile, err)
	}
	return nil
}

func (c *cli) resolveConfigPath() string {
	if c.configPath != "" {
		return c.configPath
	}
	return config.DefaultPath()
}

func (c *cli) loadConfig() (*config.Config, string, error) {
	path := c.resolveConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "guday-portal %s\n", version)
		},
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
