package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"autoclock/internal/config"
	"autoclock/internal/engine"
	"autoclock/internal/model"
	"autoclock/internal/page"
	"autoclock/internal/probe"
	"autoclock/internal/settings"
	"autoclock/shared/audit"
)

func checkCmd(flags *globalFlags) *cobra.Command {
	var test bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one clock cycle now",
		Long: `Runs a single cycle against the stored schedule.
With --test the per-day history is ignored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd.Context(), flags, true)
			if err != nil {
				return err
			}
			defer a.Close()

			rep, err := a.runner.CheckNow(cmd.Context(), test)
			return printReport(cmd.OutOrStdout(), rep, err)
		},
	}
	cmd.Flags().BoolVar(&test, "test", false, "ignore today's history")
	return cmd
}

func clockCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:       "clock <in|out>",
		Short:     "Clock in or out now, ignoring the schedule",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"in", "out"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := model.ParseAction(args[0])
			if err != nil {
				return err
			}
			a, err := setup(cmd.Context(), flags, true)
			if err != nil {
				return err
			}
			defer a.Close()

			rep, err := a.runner.Clock(cmd.Context(), action)
			return printReport(cmd.OutOrStdout(), rep, err)
		},
	}
}

// inspectCmd classifies a saved page without a browser.
func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <page.html>",
		Short: "Show which clock controls a saved page offers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			snap, err := page.ParseSnapshot(f)
			if err != nil {
				return err
			}
			els, err := snap.Elements(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), probe.New(nil).Explain(els))
		},
	}
}

func settingsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or import the stored schedule",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print stored settings and history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd.Context(), flags, false)
			if err != nil {
				return err
			}
			defer a.Close()

			sched, err := a.repo.LoadSchedule(cmd.Context())
			if err != nil {
				return err
			}
			hist, err := a.repo.LoadHistory(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"summary":  sched.Summary(),
				"schedule": settings.ViewOf(sched),
				"history":  settings.HistoryViewOf(hist),
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import <schedule.yaml>",
		Short: "Replace the stored schedule with a schedule file",
		Long: `Replace the stored schedule with a schedule file.

The import writes straight to storage. A running daemon is not notified and
keeps its current timer until it restarts. To change the schedule of a running
daemon use POST /api/settings on the control API, or edit the file named by
schedule_file in the config, which the daemon watches.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, err := config.LoadSchedule(args[0])
			if err != nil {
				return err
			}
			a, err := setup(cmd.Context(), flags, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.repo.SaveSchedule(cmd.Context(), sched); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sched.Summary())
			fmt.Fprintln(cmd.ErrOrStderr(), "A running daemon picks this up on restart; use POST /api/settings to apply it live.")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "dump <schedule.yaml>",
		Short: "Write the stored schedule to a schedule file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), flags, false)
			if err != nil {
				return err
			}
			defer a.Close()

			sched, err := a.repo.LoadSchedule(cmd.Context())
			if err != nil {
				return err
			}
			return config.WriteSchedule(args[0], sched)
		},
	})
	return cmd
}

func exportCmd(flags *globalFlags) *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a month of the clock journal to xlsx",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd.Context(), flags, false)
			if err != nil {
				return err
			}
			defer a.Close()

			loc, err := a.cfg.Location()
			if err != nil {
				return err
			}
			at := time.Now().In(loc).AddDate(0, -1, 0)
			if month != "" {
				at, err = time.ParseInLocation("2006-01", month, loc)
				if err != nil {
					return fmt.Errorf("month must look like 2024-05: %w", err)
				}
			}

			svc := audit.NewService(audit.Config{
				RetentionDays: a.cfg.Journal.RetentionDays,
				Dir:           a.cfg.Journal.ExportDir,
				Location:      loc,
			}, a.database, nil, nil, a.logger)
			path, err := svc.Export(cmd.Context(), at)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month to export as YYYY-MM (default: previous month)")
	return cmd
}

func printReport(w io.Writer, rep engine.Report, cycleErr error) error {
	fmt.Fprintln(w, rep.StatusText())
	if err := writeJSON(w, rep); err != nil {
		return err
	}
	if cycleErr != nil && !errors.Is(cycleErr, context.Canceled) {
		return cycleErr
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
