package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-operator/internal/actionlog"
	"github.com/nerrad567/gray-logic-operator/internal/operation"
	"github.com/nerrad567/gray-logic-operator/migrations"
)

// errNoHistory is returned when the SQLite sink is disabled.
var errNoHistory = errors.New("history requires action_log.sqlite")

func (c *cli) historyCmd() *cobra.Command {
	var (
		filter actionlog.Filter
		since  time.Duration
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent action records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			if a.history == nil {
				return errNoHistory
			}

			if since > 0 {
				filter.Since = time.Now().UTC().Add(-since)
			}
			res, err := a.history.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			return printHistory(cmd.OutOrStdout(), res)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&filter.Point, "point", "p", "", "only records for this point")
	f.StringVar(&filter.Action, "action", "", "only this action (force, unforce, read, auto_evaluate, bulk_read, ...)")
	f.StringVar(&filter.Source, "source", "", "only this source (cli, batch, auto, scheduler)")
	f.BoolVar(&filter.Failed, "failed", false, "only unsuccessful records")
	f.DurationVar(&since, "since", 0, "only records newer than this, e.g. 24h")
	f.IntVar(&filter.Limit, "limit", 50, "records per page (max 500)")
	f.IntVar(&filter.Offset, "offset", 0, "records to skip")
	f.BoolVar(&asJSON, "json", false, "print the page as JSON")
	return cmd
}

func printHistory(w io.Writer, res *actionlog.ListResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tPOINT\tVALUE\tRESULT\tATTEMPT\tMESSAGE")
	for _, r := range res.Records {
		result := "ok"
		if !r.Success {
			result = "FAILED"
		}
		if r.DryRun {
			result += " (dry-run)"
		}
		attempt := ""
		if r.Attempt > 0 {
			attempt = fmt.Sprint(r.Attempt)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Timestamp.Local().Format(time.DateTime),
			r.Action,
			r.Point,
			formatOptional(r.Value),
			result,
			attempt,
			singleLine(r.Message),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d of %d records\n", len(res.Records), res.Total)
	return nil
}

// printOutcome writes one line per final outcome.
func printOutcome(w io.Writer, out operation.Outcome) {
	status := "OK"
	if !out.Success {
		status = "FAILED"
	}
	fmt.Fprintf(w, "%-6s %s (attempt %d): %s\n", status, out.Request, out.Attempt, out.Message)
	if out.Success && out.Request.Kind == operation.KindRead && out.ObservedValue != nil {
		fmt.Fprintf(w, "%s = %s\n", out.Request.Point, operation.FormatValue(*out.ObservedValue))
	}
	if out.ScreenshotRef != "" {
		fmt.Fprintf(w, "       diagnostic: %s\n", out.ScreenshotRef)
	}
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return operation.FormatValue(*v)
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (c *cli) dbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Inspect or roll back the history database schema",
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			if a.db == nil {
				return errNoHistory
			}
			applied, pending, err := a.db.MigrationStatus(cmd.Context(), migrations.FS)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "database %s\n", a.db.Path())
			for _, m := range applied {
				fmt.Fprintf(w, "applied  %s  %s\n", m.Version, m.AppliedAt.Local().Format(time.DateTime))
			}
			for _, m := range pending {
				fmt.Fprintf(w, "pending  %s  %s\n", m.Version, m.Name)
			}
			return nil
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Long: `Roll back the most recent migration. Any later command that opens the
history database applies it again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			if a.db == nil {
				return errNoHistory
			}
			if err := a.db.MigrateDown(cmd.Context(), migrations.FS); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "rolled back the most recent migration")
			return nil
		},
	}

	cmd.AddCommand(status, down)
	return cmd
}
