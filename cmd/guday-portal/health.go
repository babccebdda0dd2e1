// ABOUTME: health and check-backend commands for probing a running portal and its API
// ABOUTME: health hits the local /health endpoints; check-backend lists categories from the API

package main

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/guday-portal/internal/backend"
)

// localURL turns a listen address into a URL reachable from this host.
func localURL(addr, path string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr + path
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + path
}

func (c *cli) healthCmd() *cobra.Command {
	var ready bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that a running portal is healthy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := c.loadConfig()
			if err != nil {
				return err
			}

			path := "/health"
			if ready {
				path = "/health/ready"
			}
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, localURL(cfg.Server.HTTPAddr, path), nil)
			if err != nil {
				return fmt.Errorf("creating request: %w", err)
			}

			client := &http.Client{Timeout: 10 * time.Second}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, body)
			}

			if ready {
				fmt.Fprintln(cmd.OutOrStdout(), string(body))
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "healthy")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&ready, "ready", false, "check readiness (store and services API) instead of liveness")
	return cmd
}

func (c *cli) checkBackendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-backend",
		Short: "Check that the services API is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := c.loadConfig()
			if err != nil {
				return err
			}

			api, err := backend.New(backend.Options{
				BaseURL:   cfg.Backend.BaseURL,
				Timeout:   cfg.Backend.Timeout,
				UserAgent: cfg.Backend.UserAgent,
			})
			if err != nil {
				return err
			}

			start := time.Now()
			tree, err := api.ListCategories(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing categories from %s: %w", api.BaseURL(), err)
			}

			out := cmd.OutOrStdout()
			_, _ = color.New(color.FgGreen).Fprint(out, "  ✓ ")
			fmt.Fprintf(out, "%s answered in %s with %d categories\n",
				api.BaseURL(),
				time.Since(start).Round(time.Millisecond),
				len(backend.FlattenCategories(tree)),
			)
			return nil
		},
	}
}
