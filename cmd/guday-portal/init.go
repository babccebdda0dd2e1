// ABOUTME: init command: writes a starter config file, annotated or from interactive answers
// ABOUTME: Refuses to overwrite an existing file unless --force is given

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/2389/guday-portal/internal/config"
)

func (c *cli) initCmd() *cobra.Command {
	var force, interactive bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.resolveConfigPath()
			out := cmd.OutOrStdout()

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			content := []byte(config.DefaultYAML)
			if interactive {
				var err error
				content, err = askConfig(bufio.NewReader(cmd.InOrStdin()), out)
				if err != nil {
					return err
				}
			}

			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("creating config directory: %w", err)
			}
			if err := os.WriteFile(path, content, 0o600); err != nil {
				return fmt.Errorf("writing config file: %w", err)
			}

			fmt.Fprintf(out, "Config written to %s\n", path)
			fmt.Fprintln(out, "\nTo start the server:")
			fmt.Fprintln(out, "  guday-portal serve")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing config file")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "ask for the main settings")
	return cmd
}

// askConfig prompts for the settings most installs change and returns the
// resulting YAML.
func askConfig(reader *bufio.Reader, out io.Writer) ([]byte, error) {
	cfg := config.Default()

	fmt.Fprintln(out, "guday-portal configuration setup")
	fmt.Fprintln(out, "================================")

	fmt.Fprintln(out, "\n--- Server ---")
	cfg.Server.HTTPAddr = prompt(reader, out, "HTTP address", cfg.Server.HTTPAddr)
	cfg.Server.BaseURL = prompt(reader, out, "Public base URL (optional)", cfg.Server.BaseURL)
	cfg.Session.SecureCookies = yes(prompt(reader, out, "Serve over HTTPS (secure cookies)?", "no"))

	fmt.Fprintln(out, "\n--- Services API ---")
	cfg.Backend.BaseURL = prompt(reader, out, "API base URL", cfg.Backend.BaseURL)

	fmt.Fprintln(out, "\n--- Storage ---")
	cfg.Database.Path = prompt(reader, out, "SQLite database path", cfg.Database.Path)

	fmt.Fprintln(out, "\n--- Site ---")
	cfg.Portal.SiteName = prompt(reader, out, "Site name", cfg.Portal.SiteName)

	fmt.Fprintln(out, "\n--- Logging ---")
	cfg.Logging.Level = prompt(reader, out, "Log level (debug/info/warn/error)", cfg.Logging.Level)
	cfg.Logging.Format = prompt(reader, out, "Log format (text/json)", cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return append([]byte("# guday-portal configuration\n# Generated by guday-portal init\n\n"), data...), nil
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if err != nil && input == "" {
		// EOF keeps the default.
		fmt.Fprintln(out)
		return defaultVal
	}
	if input == "" {
		return defaultVal
	}
	return input
}

func yes(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "y" || s == "yes"
}
