// ABOUTME: serve command: prints the banner and runs the HTTP server until interrupted
// ABOUTME: Startup summary lines show config, listen address, backend and database

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/guday-portal/internal/config"
	"github.com/2389/guday-portal/internal/server"
)

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the portal server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cyan := color.New(color.FgCyan)
			_, _ = cyan.Fprint(out, banner)
			_, _ = color.New(color.FgHiBlack).Fprintf(out, "    version: %s\n\n", version)

			cfg, path, err := c.loadConfig()
			if err != nil {
				return err
			}
			printStartup(out, path, cfg)

			logger := setupLogger(cfg.Logging, os.Stdout)
			logger.Info("starting guday-portal",
				"config", path,
				"http_addr", cfg.Server.HTTPAddr,
				"backend", cfg.Backend.BaseURL,
			)

			srv, err := server.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			return srv.Run(cmd.Context())
		},
	}
}

func printStartup(out io.Writer, path string, cfg *config.Config) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	line := func(label, value string) {
		_, _ = green.Fprint(out, "    ▶ ")
		fmt.Fprintf(out, "%-10s %s\n", label+":", value)
	}
	line("Config", path)
	line("HTTP", cfg.Server.HTTPAddr)
	line("Backend", cfg.Backend.BaseURL)
	line("Database", cfg.Database.Path)
	if !cfg.Session.SecureCookies {
		_, _ = yellow.Fprintln(out, "    ! session.secure_cookies is off; enable it behind HTTPS")
	}
	fmt.Fprintln(out)
}
