// ABOUTME: import command: validates a JSON or YAML services file and bulk imports it
// ABOUTME: Signs in with admin credentials and records the import in the local audit log

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/guday-portal/internal/auth"
	"github.com/2389/guday-portal/internal/backend"
	"github.com/2389/guday-portal/internal/config"
	"github.com/2389/guday-portal/internal/store"
	"github.com/2389/guday-portal/internal/validate"
)

type importOptions struct {
	username string
	password string
	dryRun   bool
}

func (c *cli) importCmd() *cobra.Command {
	var opts importOptions
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Bulk import services from a JSON or YAML file",
		Long: `Bulk import services from a JSON or YAML file.

The file holds either a list of services or {"items": [...]}. Every item is
validated before anything is sent. Credentials default to the
GUDAY_ADMIN_USERNAME and GUDAY_ADMIN_PASSWORD environment variables.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.username == "" {
				opts.username = os.Getenv("GUDAY_ADMIN_USERNAME")
			}
			if opts.password == "" {
				opts.password = os.Getenv("GUDAY_ADMIN_PASSWORD")
			}

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
			return runImport(cmd.Context(), cmd.OutOrStdout(), cfg, api, args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.username, "username", "u", "", "admin username")
	cmd.Flags().StringVarP(&opts.password, "password", "p", "", "admin password")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "validate the file without importing")
	return cmd
}

// importAPI is the part of the services API the import command uses.
type importAPI interface {
	AdminLogin(ctx context.Context, creds backend.Credentials) (backend.LoginResult, error)
	BulkImportServices(ctx context.Context, auth string, items []backend.ServiceRequest) (backend.BulkImportResult, error)
}

func runImport(ctx context.Context, out io.Writer, cfg *config.Config, api importAPI, file string, opts importOptions) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading import file: %w", err)
	}

	items, err := validate.BulkImport(data, time.Now())
	if err != nil {
		var verrs *validate.Errors
		if errors.As(err, &verrs) {
			for _, msg := range verrs.Messages() {
				_, _ = color.New(color.FgRed).Fprintf(out, "  ✗ %s\n", msg)
			}
			return fmt.Errorf("%s: %d invalid field(s)", file, verrs.Len())
		}
		return err
	}
	fmt.Fprintf(out, "  %s valid in %s\n", countServices(len(items)), file)
	if opts.dryRun {
		return nil
	}

	creds, err := validate.Login(map[string][]string{
		"username": {opts.username},
		"password": {opts.password},
	})
	if err != nil {
		return errors.New("admin credentials required (--username/--password or GUDAY_ADMIN_USERNAME/GUDAY_ADMIN_PASSWORD)")
	}
	login, err := api.AdminLogin(ctx, creds)
	if err != nil {
		return fmt.Errorf("admin login: %w", err)
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	result, err := api.BulkImportServices(ctx, auth.AuthHeader(login.TokenType, login.Token), items)

	entry := &store.AuditEntry{
		Actor:      creds.Username,
		Action:     store.AuditImportServices,
		TargetType: "service",
		Detail:     map[string]any{"count": len(items), "source": "cli", "file": file},
	}
	if err != nil {
		entry.Outcome = store.OutcomeError
		entry.Detail["error"] = err.Error()
	} else {
		entry.Detail["imported"] = result.Imported
		entry.Detail["failed"] = result.Failed
	}
	if aerr := st.AppendAuditLog(ctx, entry); aerr != nil {
		fmt.Fprintf(os.Stderr, "warning: recording audit entry: %v\n", aerr)
	}
	if err != nil {
		return fmt.Errorf("bulk import: %w", err)
	}

	_, _ = color.New(color.FgGreen).Fprint(out, "  ✓ ")
	fmt.Fprintf(out, "%s imported", countServices(result.Imported))
	if result.Failed > 0 {
		_, _ = color.New(color.FgYellow).Fprintf(out, ", %d failed", result.Failed)
	}
	fmt.Fprintln(out)
	for _, msg := range result.Errors {
		fmt.Fprintf(out, "    %s\n", msg)
	}
	return nil
}

func countServices(n int) string {
	if n == 1 {
		return "1 service"
	}
	return humanize.Comma(int64(n)) + " services"
}
