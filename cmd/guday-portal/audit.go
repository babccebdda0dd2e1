// ABOUTME: audit command: prints recent back-office audit entries from the local database
// ABOUTME: Supports filtering by actor, action and age

package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/guday-portal/internal/store"
)

type auditOptions struct {
	limit  int
	actor  string
	action string
	since  time.Duration
}

func (c *cli) auditCmd() *cobra.Command {
	var opts auditOptions
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent admin audit entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := c.loadConfig()
			if err != nil {
				return err
			}
			st, err := store.NewSQLiteStore(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer st.Close()
			return printAudit(cmd.Context(), cmd.OutOrStdout(), st, opts, time.Now())
		},
	}
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 50, "maximum entries to show")
	cmd.Flags().StringVar(&opts.actor, "actor", "", "only entries by this admin")
	cmd.Flags().StringVar(&opts.action, "action", "", "only entries with this action")
	cmd.Flags().DurationVar(&opts.since, "since", 0, "only entries newer than this, e.g. 24h")
	return cmd
}

func printAudit(ctx context.Context, out io.Writer, audit store.AuditStore, opts auditOptions, now time.Time) error {
	f := store.AuditFilter{Limit: opts.limit}
	if opts.actor != "" {
		f.Actor = &opts.actor
	}
	if opts.action != "" {
		action := store.AuditAction(opts.action)
		if !slices.Contains(store.ValidAuditActions, action) {
			names := make([]string, 0, len(store.ValidAuditActions))
			for _, a := range store.ValidAuditActions {
				names = append(names, string(a))
			}
			sort.Strings(names)
			return fmt.Errorf("unknown action %q (one of %s)", opts.action, strings.Join(names, ", "))
		}
		f.Action = &action
	}
	if opts.since > 0 {
		since := now.Add(-opts.since)
		f.Since = &since
	}

	entries, err := audit.ListAuditLog(ctx, f)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "no audit entries")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tACTOR\tACTION\tTARGET\tOUTCOME")
	for _, e := range entries {
		target := e.TargetType
		if e.TargetID != "" {
			target += " " + e.TargetID
		}
		outcome := color.GreenString(e.Outcome)
		if e.Outcome == store.OutcomeError {
			outcome = color.RedString(e.Outcome)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			humanize.RelTime(e.Timestamp, now, "ago", "from now"),
			e.Actor, e.Action, target, outcome)
	}
	return tw.Flush()
}
