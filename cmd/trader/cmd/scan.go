package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rustyeddy/swingtrader/config"
	"github.com/rustyeddy/swingtrader/desk"
	"github.com/rustyeddy/swingtrader/market"
	"github.com/rustyeddy/swingtrader/strategies"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var en = message.NewPrinter(language.English)

type scanOptions struct {
	Strategy string
	JSON     bool
}

func newScanCmd(ro *rootOptions) *cobra.Command {
	o := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan [SYMBOL...]",
		Short: "Scan the universe for setups",
		Long: `Scan loads bars for every symbol (from the arguments, or data.symbols
in the config) and prints the setups the strategy finds, best first.
Symbols without data or with too little history are listed as skipped.

Example:
  trader scan --strategy pullback AAPL MSFT NVDA`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := ro.load()
			if err != nil {
				return err
			}
			defer log.Sync()

			if o.Strategy != "" {
				cfg.Strategy.Name = o.Strategy
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

			res, _, err := desk.Scan(cmd.Context(), market.NewCSVSource(cfg.Data.Dir), strat,
				symbols, cfg.Data.Timeframe, start, end, log)
			if err != nil {
				return err
			}
			if o.JSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res.Setups)
			}
			printSetups(cmd.OutOrStdout(), strat.Name(), res)
			return nil
		},
	}
	cmd.Flags().StringVarP(&o.Strategy, "strategy", "s", "", "strategy name (momentum, pullback); default from config")
	cmd.Flags().BoolVar(&o.JSON, "json", false, "print setups as JSON")
	return cmd
}

// universe returns args when given, else the configured symbols.
func universe(cfg *config.Config, args []string) []string {
	if len(args) > 0 {
		return config.SplitSymbols(strings.Join(args, ","))
	}
	return cfg.Data.Symbols
}

func printSetups(w io.Writer, strategy string, res strategies.Result) {
	if len(res.Setups) == 0 {
		fmt.Fprintf(w, "%s: no setups\n", strategy)
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SYMBOL\tSTRATEGY\tDATE\tENTRY\tSTOP\tTARGET\tR:R\tCONF\tADV")
		for _, s := range res.Setups {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%s\n",
				s.Symbol, s.Strategy, s.Time.Format(time.DateOnly),
				s.Entry, s.Stop, s.Target, s.RewardRisk(), s.Confidence, en.Sprintf("%.0f", s.AvgDollarVolume))
		}
		tw.Flush()
	}

	if len(res.Skipped) == 0 {
		return
	}
	syms := make([]string, 0, len(res.Skipped))
	for sym := range res.Skipped {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "skipped %d symbol(s):\n", len(syms))
	for _, sym := range syms {
		fmt.Fprintf(w, "  %s: %v\n", sym, res.Skipped[sym])
	}
}
