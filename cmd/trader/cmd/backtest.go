package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/rustyeddy/swingtrader/backtest"
	"github.com/rustyeddy/swingtrader/desk"
	"github.com/rustyeddy/swingtrader/journal"
	"github.com/rustyeddy/swingtrader/market"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type backtestOptions struct {
	Strategy   string
	RunID      string
	Seed       int64
	CloseAtEnd bool
	Org        string
	Equity     float64
}

func newBacktestCmd(ro *rootOptions) *cobra.Command {
	o := &backtestOptions{}
	cmd := &cobra.Command{
		Use:   "backtest [SYMBOL...]",
		Short: "Replay history bar by bar through the strategy and risk engine",
		Long: `Backtest replays the configured bars in time order. On every bar the
strategy sees only data up to that bar; open positions are checked for
stop and target before any new entry, and entries go through the same
sizer and risk validator as paper trading.

The run summary is stored in the SQLite journal when one is configured.

Example:
  trader backtest --strategy momentum --close-at-end --org runs/momentum.org`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := ro.load()
			if err != nil {
				return err
			}
			defer log.Sync()

			if o.Strategy != "" {
				cfg.Strategy.Name = o.Strategy
			}
			if cmd.Flags().Changed("close-at-end") {
				cfg.Backtest.CloseAtEnd = o.CloseAtEnd
			}
			if cmd.Flags().Changed("seed") {
				cfg.Backtest.Seed = o.Seed
			}
			equity := cfg.Account.StartingEquity
			if o.Equity > 0 {
				equity = o.Equity
			}

			strat, err := cfg.NewStrategy()
			if err != nil {
				return err
			}
			symbols := universe(cfg, args)
			if len(symbols) == 0 {
				return fmt.Errorf("no symbols: pass them as arguments or set data.symbols")
			}
			start, end, err := cfg.Range()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			bars, skipped, err := desk.Fetch(ctx, market.NewCSVSource(cfg.Data.Dir), symbols, cfg.Data.Timeframe, start, end, log)
			if err != nil {
				return err
			}
			for sym, e := range skipped {
				log.Warn("symbol left out of backtest", zap.String("symbol", sym), zap.Error(e))
			}
			if len(bars) == 0 {
				return fmt.Errorf("no bars for any of %d symbol(s) under %s", len(symbols), cfg.Data.Dir)
			}

			j, err := openJournal(cfg.Journal)
			if err != nil {
				return err
			}
			defer closeJournal(log, j)

			eng := &backtest.Engine{
				Strategy:    strat,
				Limits:      cfg.Limits(),
				StartEquity: equity,
				Options: backtest.Options{
					CloseAtEnd: cfg.Backtest.CloseAtEnd,
					Seed:       cfg.Backtest.Seed,
					RunID:      o.RunID,
				},
				Journal: j,
				Logger:  log,
			}
			res, err := eng.Run(ctx, bars)
			if err != nil {
				return err
			}
			backtest.PrintReport(cmd.OutOrStdout(), res)

			settings, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			run := res.BacktestRun(cfg.Data.Timeframe, cfg.Data.Dir, string(settings))
			if db, ok := j.(*journal.SQLite); ok {
				if err := db.RecordBacktest(ctx, run); err != nil {
					return fmt.Errorf("record backtest: %w", err)
				}
				log.Info("backtest recorded", zap.String("run_id", run.RunID), zap.String("db", cfg.Journal.DBPath))
			}

			orgPath := o.Org
			if orgPath == "" && cfg.Backtest.OrgDir != "" {
				orgPath = filepath.Join(cfg.Backtest.OrgDir, run.RunID+".org")
			}
			if orgPath != "" {
				if err := ensureDir(orgPath); err != nil {
					return err
				}
				if err := run.WriteOrg(orgPath); err != nil {
					return fmt.Errorf("write org: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "org summary written to %s\n", orgPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&o.Strategy, "strategy", "s", "", "strategy name; default from config")
	cmd.Flags().StringVar(&o.RunID, "run-id", "", "run identifier (generated when empty)")
	cmd.Flags().Int64Var(&o.Seed, "seed", 0, "seed for trade IDs; equal seeds give equal IDs")
	cmd.Flags().BoolVar(&o.CloseAtEnd, "close-at-end", false, "close open positions at the last bar")
	cmd.Flags().StringVar(&o.Org, "org", "", "write an Org-mode run summary to this file")
	cmd.Flags().Float64Var(&o.Equity, "equity", 0, "starting equity (default account.starting_equity)")
	return cmd
}
