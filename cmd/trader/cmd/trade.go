package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/rustyeddy/swingtrader/broker"
	"github.com/rustyeddy/swingtrader/broker/sim"
	"github.com/rustyeddy/swingtrader/config"
	"github.com/rustyeddy/swingtrader/desk"
	"github.com/rustyeddy/swingtrader/market"
	"github.com/rustyeddy/swingtrader/risk"
	"github.com/rustyeddy/swingtrader/strategies"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultStateFile = "paper.json"

type tradeOptions struct {
	Strategy string
	State    string
	DryRun   bool
	Summary  bool
}

func newTradeCmd(ro *rootOptions) *cobra.Command {
	o := &tradeOptions{}
	cmd := &cobra.Command{
		Use:   "trade [SYMBOL...]",
		Short: "Run one paper-trading pass over the latest bars",
		Long: `Trade loads the paper account, manages every open position against
its newest bar (stop, target, breakeven and trail), then scans flat
symbols and sends each setup through sizing, risk validation and the
paper gateway. The account is saved afterwards unless --dry-run is set.

Example:
  trader trade --summary
  trader trade --dry-run AAPL MSFT`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := ro.load()
			if err != nil {
				return err
			}
			defer log.Sync()
			if o.Strategy != "" {
				cfg.Strategy.Name = o.Strategy
			}
			return runTrade(cmd.Context(), cmd.OutOrStdout(), cfg, o, args, log)
		},
	}
	cmd.Flags().StringVarP(&o.Strategy, "strategy", "s", "", "strategy name; default from config")
	cmd.Flags().StringVar(&o.State, "state", "", "paper account file (default account.state_file or "+defaultStateFile+")")
	cmd.Flags().BoolVar(&o.DryRun, "dry-run", false, "size and validate only; send no orders and keep the account unchanged")
	cmd.Flags().BoolVar(&o.Summary, "summary", false, "print the account summary afterwards")
	return cmd
}

func runTrade(ctx context.Context, w io.Writer, cfg *config.Config, o *tradeOptions, args []string, log *zap.Logger) error {
	strat, err := cfg.NewStrategy()
	if err != nil {
		return err
	}
	statePath := o.State
	if statePath == "" {
		statePath = cfg.Account.StateFile
	}
	if statePath == "" {
		statePath = defaultStateFile
	}
	ps, err := desk.LoadPortfolio(statePath, cfg.Account.StartingEquity)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return err
	}
	defer closeJournal(log, j)

	gw := sim.NewEngine()
	d, err := desk.New(ps, desk.Config{
		Limits:  cfg.Limits(),
		Gateway: gw,
		Journal: j,
		Logger:  log,
		Exits:   exitPolicies(cfg.Strategy.Params),
		DryRun:  o.DryRun,
	})
	if err != nil {
		return err
	}

	held := ps.Symbols()
	symbols := config.SplitSymbols(strings.Join(slices.Concat(universe(cfg, args), held), ","))
	start, end, err := cfg.Range()
	if err != nil {
		return err
	}
	bars, skipped, err := desk.Fetch(ctx, market.NewCSVSource(cfg.Data.Dir), symbols, cfg.Data.Timeframe, start, end, log)
	if err != nil {
		return err
	}

	// open positions first, so exits free capacity before new entries
	var closed []risk.ClosedTrade
	for _, sym := range held {
		series, ok := bars[sym]
		if !ok {
			log.Warn("no bars for open position", zap.String("symbol", sym))
			continue
		}
		last := series[len(series)-1]
		gw.SetPrice(sym, broker.RoundCents(last.Close))
		tr, err := d.Manage(ctx, sym, series)
		if err != nil {
			log.Warn("manage failed", zap.String("symbol", sym), zap.Error(err))
			continue
		}
		if tr != nil {
			closed = append(closed, *tr)
		} else {
			d.Mark(sym, last.Close)
		}
	}

	flat := make(map[string][]market.Bar, len(bars))
	for sym, series := range bars {
		if !d.Holding(sym) {
			flat[sym] = series
		}
	}
	res, err := strategies.NewScanner(log).Scan(ctx, strat, flat)
	if err != nil {
		return err
	}
	for sym, e := range skipped {
		res.Skipped[sym] = e
	}

	var attempts []desk.Attempt
	var setups []market.Setup
	for _, s := range res.Setups {
		gw.SetPrice(s.Symbol, broker.RoundCents(s.Entry))
		a, err := d.Attempt(ctx, s)
		if err != nil && !isRejection(err) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("attempt failed", zap.String("symbol", s.Symbol), zap.Error(err))
		}
		attempts = append(attempts, a)
		setups = append(setups, s)
	}

	if !o.DryRun {
		if err := ensureDir(statePath); err != nil {
			return err
		}
		if err := d.Save(statePath); err != nil {
			return fmt.Errorf("save account: %w", err)
		}
	}

	printTradePass(w, closed, setups, attempts)
	if len(res.Skipped) > 0 {
		fmt.Fprintf(w, "skipped %d symbol(s) without usable data\n", len(res.Skipped))
	}
	if o.Summary {
		fmt.Fprintln(w)
		desk.PrintSummary(w, d.Summary())
	}
	return nil
}

// exitPolicies maps every known strategy to its exits, so positions opened
// by a different strategy in an earlier run are still managed correctly.
func exitPolicies(p strategies.Params) map[string]risk.ExitPolicy {
	out := make(map[string]risk.ExitPolicy)
	for _, name := range strategies.Names() {
		s, err := strategies.ByName(name, p)
		if err != nil {
			continue
		}
		out[name] = s.Exits()
	}
	return out
}

func isRejection(err error) bool {
	var rr *risk.RiskRejectedError
	var br *broker.RejectedError
	return errors.As(err, &rr) || errors.As(err, &br)
}

func printTradePass(w io.Writer, closed []risk.ClosedTrade, setups []market.Setup, attempts []desk.Attempt) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(closed) > 0 {
		fmt.Fprintln(tw, "CLOSED\tSHARES\tIN\tOUT\tNET\tR\tREASON")
		for _, t := range closed {
			fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%s\n",
				t.Symbol, t.Quantity, t.EntryPrice, t.ExitPrice, t.NetPnL, t.RMultiple, t.Reason)
		}
		fmt.Fprintln(tw)
	}
	if len(setups) == 0 {
		fmt.Fprintln(tw, "no setups")
		tw.Flush()
		return
	}
	fmt.Fprintln(tw, "SETUP\tSTRATEGY\tENTRY\tSTOP\tSHARES\tRESULT\tDETAIL")
	for i, s := range setups {
		a := attempts[i]
		detail := a.Reason
		if a.Check != "" {
			detail = a.Check + ": " + a.Reason
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f\t%d\t%s\t%s\n",
			s.Symbol, s.Strategy, s.Entry, s.Stop, a.Order.Shares, a.Action, detail)
	}
	tw.Flush()
}
