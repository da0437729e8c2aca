package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/rustyeddy/swingtrader/journal"
	"github.com/spf13/cobra"
)

const defaultJournalDB = "journal/trader.db"

func newJournalCmd() *cobra.Command {
	var dbPath string
	open := func() (*journal.SQLite, error) {
		j, err := journal.NewSQLite(dbPath)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		return j, nil
	}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Query the trade journal",
		Long: `Query and display trade journal records from the SQLite database.

Examples:
  trader journal trade <trade-id>
  trader journal today
  trader journal day 2024-01-15
  trader journal signals 2024-01-15
  trader journal run <run-id>`,
	}
	cmd.PersistentFlags().StringVarP(&dbPath, "db", "d", defaultJournalDB, "path to SQLite journal DB")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "trade <trade-id>",
			Short: "Show one closed trade",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				j, err := open()
				if err != nil {
					return err
				}
				defer j.Close()

				rec, err := j.GetTrade(args[0])
				if err != nil {
					return fmt.Errorf("get trade: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradeOrg(rec))
				return nil
			},
		},
		&cobra.Command{
			Use:   "today",
			Short: "List trades closed today",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				j, err := open()
				if err != nil {
					return err
				}
				defer j.Close()
				return printTradesOn(cmd.OutOrStdout(), j, time.Now().Format(time.DateOnly))
			},
		},
		&cobra.Command{
			Use:   "day <YYYY-MM-DD>",
			Short: "List trades closed on a specific day",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				j, err := open()
				if err != nil {
					return err
				}
				defer j.Close()
				return printTradesOn(cmd.OutOrStdout(), j, args[0])
			},
		},
		&cobra.Command{
			Use:   "signals [YYYY-MM-DD]",
			Short: "List signals, fills and rejections journaled on a day (default today)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				day := time.Now().Format(time.DateOnly)
				if len(args) == 1 {
					day = args[0]
				}
				start, end, err := dayBounds(time.Local, day)
				if err != nil {
					return fmt.Errorf("date: %w", err)
				}
				j, err := open()
				if err != nil {
					return err
				}
				defer j.Close()

				entries, err := j.ListEntriesBetween(start, end)
				if err != nil {
					return fmt.Errorf("query entries: %w", err)
				}
				w := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintf(w, "no journal entries on %s\n", day)
					return nil
				}
				for _, e := range entries {
					fmt.Fprintln(w, journal.FormatEntry(e))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "run <run-id>",
			Short: "Export a backtest run and its trades as Org",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				j, err := open()
				if err != nil {
					return err
				}
				defer j.Close()

				org, err := j.ExportBacktestOrg(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("export run: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), org)
				return nil
			},
		},
	)
	return cmd
}

func printTradesOn(w io.Writer, j *journal.SQLite, day string) error {
	start, end, err := dayBounds(time.Local, day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	recs, err := j.ListTradesClosedBetween(start, end)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}
	fmt.Fprintln(w, journal.FormatTradesOrg(recs))
	return nil
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1), nil
}
