package desk

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rustyeddy/swingtrader/risk"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PositionView is a read-only copy of an open position.
type PositionView struct {
	Symbol      string
	Strategy    string
	Quantity    int
	EntryPrice  float64
	LastPrice   float64
	Stop        float64
	Target      float64
	State       string
	UnrealizedR float64
}

// Summary is the end-of-day account snapshot.
type Summary struct {
	Time        time.Time
	Equity      float64
	Cash        float64
	BuyingPower float64
	Exposure    float64
	Positions   []PositionView
}

func (d *Desk) Summary() Summary {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.ps.Mark()
	s := Summary{
		Time:        d.cfg.Now(),
		Equity:      d.ps.Equity,
		Cash:        d.ps.Cash,
		BuyingPower: d.ps.BuyingPower,
		Exposure:    d.ps.Exposure(),
	}
	for _, sym := range d.ps.Symbols() {
		p := d.ps.Positions[sym]
		s.Positions = append(s.Positions, view(p))
	}
	return s
}

func view(p *risk.Position) PositionView {
	return PositionView{
		Symbol:      p.Symbol,
		Strategy:    p.Strategy,
		Quantity:    p.Quantity,
		EntryPrice:  p.EntryPrice,
		LastPrice:   p.LastPrice,
		Stop:        p.Stop,
		Target:      p.Target,
		State:       p.State.String(),
		UnrealizedR: p.UnrealizedR(p.LastPrice),
	}
}

var en = message.NewPrinter(language.English)

// PrintSummary writes s as a short plain-text report.
func PrintSummary(w io.Writer, s Summary) {
	fmt.Fprintf(w, "Account summary %s\n", s.Time.Format(time.DateTime))
	en.Fprintf(w, "Equity:        $%.2f\n", s.Equity)
	en.Fprintf(w, "Cash:          $%.2f\n", s.Cash)
	en.Fprintf(w, "Buying power:  $%.2f\n", s.BuyingPower)
	en.Fprintf(w, "Exposure:      $%.2f\n", s.Exposure)
	if len(s.Positions) == 0 {
		fmt.Fprintln(w, "No open positions")
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tSTRATEGY\tSHARES\tENTRY\tLAST\tSTOP\tTARGET\tSTATE\tR")
	for _, p := range s.Positions {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%s\t%.2f\n",
			p.Symbol, p.Strategy, p.Quantity, p.EntryPrice, p.LastPrice, p.Stop, p.Target, p.State, p.UnrealizedR)
	}
	tw.Flush()
}
