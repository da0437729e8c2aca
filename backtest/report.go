package backtest

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rustyeddy/swingtrader/journal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var en = message.NewPrinter(language.English)

const rule = "--------------------------------------------------"

// PrintReport writes a fixed-width summary of r followed by its trade list.
func PrintReport(w io.Writer, r *Result) {
	st := r.Stats

	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintf(w, "Run ID:        %s\n", r.RunID)
	fmt.Fprintf(w, "Strategy:      %s\n", r.Strategy)
	fmt.Fprintf(w, "Symbols:       %s\n", strings.Join(r.Symbols, ", "))
	fmt.Fprintf(w, "Period:        %s to %s\n", r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, rule)
	en.Fprintf(w, "Start Equity:  $%.2f\n", r.StartEquity)
	en.Fprintf(w, "End Equity:    $%.2f\n", r.EndEquity)
	en.Fprintf(w, "Net P/L:       $%.2f\n", st.NetPnL)
	fmt.Fprintf(w, "Return:        %.2f%%\n", st.TotalReturn*100)
	fmt.Fprintf(w, "CAGR:          %.2f%%\n", st.CAGR*100)
	en.Fprintf(w, "Max Drawdown:  %.2f%% ($%.2f)\n", st.MaxDrawdownPct*100, st.MaxDrawdown)
	fmt.Fprintf(w, "Sharpe:        %.2f\n", st.Sharpe)
	fmt.Fprintf(w, "Exposure:      %.1f%%\n", st.Exposure*100)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Trades:        %d\n", st.Trades)
	fmt.Fprintf(w, "Wins:          %d\n", st.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", st.Losses)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", st.WinRate*100)
	fmt.Fprintf(w, "Profit Factor: %s\n", profitFactor(st.ProfitFactor))
	fmt.Fprintf(w, "Average R:     %.2f\n", st.AvgR)
	en.Fprintf(w, "Average Win:   $%.2f\n", st.AvgWin)
	en.Fprintf(w, "Average Loss:  $%.2f\n", st.AvgLoss)
	en.Fprintf(w, "Largest Win:   $%.2f\n", st.LargestWin)
	en.Fprintf(w, "Largest Loss:  $%.2f\n", st.LargestLoss)
	en.Fprintf(w, "Commission:    $%.2f\n", st.TotalCommission)
	en.Fprintf(w, "Slippage:      $%.2f\n", st.TotalSlippage)

	if len(r.Open) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Open at end:   %d position(s)\n", len(r.Open))
	}

	if len(r.Trades) == 0 {
		fmt.Fprintln(w)
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trades")
	fmt.Fprintln(w, rule)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tENTRY\tEXIT\tSHARES\tIN\tOUT\tNET\tR\tREASON")
	for _, t := range r.Trades {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%s\n",
			t.Symbol, t.EntryTime.Format(time.DateOnly), t.ExitTime.Format(time.DateOnly),
			t.Quantity, t.EntryPrice, t.ExitPrice, t.NetPnL, t.RMultiple, t.Reason)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func profitFactor(pf float64) string {
	if math.IsInf(pf, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", pf)
}

// BacktestRun converts the result into the journal's run summary.
func (r *Result) BacktestRun(timeframe, dataset, config string) journal.BacktestRun {
	st := r.Stats
	return journal.BacktestRun{
		RunID:        r.RunID,
		Created:      time.Now().UTC(),
		Strategy:     r.Strategy,
		Timeframe:    timeframe,
		Dataset:      dataset,
		Symbols:      strings.Join(r.Symbols, ","),
		Start:        r.Start,
		End:          r.End,
		StartEquity:  r.StartEquity,
		EndEquity:    r.EndEquity,
		Trades:       st.Trades,
		Wins:         st.Wins,
		Losses:       st.Losses,
		NetPnL:       st.NetPnL,
		ReturnPct:    st.TotalReturn,
		CAGR:         st.CAGR,
		MaxDDPct:     st.MaxDrawdownPct,
		WinRate:      st.WinRate,
		ProfitFactor: st.ProfitFactor,
		AvgR:         st.AvgR,
		Sharpe:       st.Sharpe,
		Config:       config,
	}
}
