package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/swingtrader/risk"
)

// FormatTradeOrg renders a closed trade as an Org-mode block with the facts
// in a PROPERTIES drawer and empty review sections.
func FormatTradeOrg(t risk.ClosedTrade) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** Trade: %s %s (%s)\n", t.Symbol, t.Strategy, shortID(t.ID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":TRADE_ID: %s\n", t.ID)
	fmt.Fprintf(&b, ":SYMBOL: %s\n", t.Symbol)
	fmt.Fprintf(&b, ":STRATEGY: %s\n", t.Strategy)
	fmt.Fprintf(&b, ":SHARES: %d\n", t.Quantity)
	fmt.Fprintf(&b, ":ENTRY_PRICE: %s\n", price(t.EntryPrice))
	fmt.Fprintf(&b, ":EXIT_PRICE: %s\n", price(t.ExitPrice))
	fmt.Fprintf(&b, ":INITIAL_STOP: %s\n", price(t.InitialStop))
	fmt.Fprintf(&b, ":TARGET: %s\n", price(t.Target))
	fmt.Fprintf(&b, ":OPEN_TIME: %s\n", t.EntryTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":CLOSE_TIME: %s\n", t.ExitTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":NET_PNL: %s\n", cash(t.NetPnL))
	fmt.Fprintf(&b, ":R_MULTIPLE: %.2f\n", t.RMultiple)
	fmt.Fprintf(&b, ":MAE: %s\n", cash(t.MAE))
	fmt.Fprintf(&b, ":MFE: %s\n", cash(t.MFE))
	fmt.Fprintf(&b, ":REASON: %s\n", t.Reason)
	b.WriteString(":END:\n\n")
	b.WriteString("*** Thesis\n- \n\n")
	b.WriteString("*** Execution\n- \n\n")
	b.WriteString("*** Review\n- \n")
	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []risk.ClosedTrade) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

// FormatEntry renders one journal entry on a single line.
func FormatEntry(e Entry) string {
	s := fmt.Sprintf("%s %-6s %-8s %-6s %-9s", e.Time.UTC().Format(time.RFC3339), e.Kind, e.Action, e.Symbol, e.Strategy)
	switch e.Kind {
	case KindSignal:
		s += fmt.Sprintf(" entry=%s stop=%s target=%s conf=%.2f", price(e.Entry), price(e.Stop), price(e.Target), e.Confidence)
	case KindEntry:
		s += fmt.Sprintf(" shares=%d price=%s stop=%s", e.Shares, price(e.Price), price(e.Stop))
	case KindExit:
		s += fmt.Sprintf(" shares=%d price=%s pnl=%s R=%.2f", e.Shares, price(e.Price), cash(e.PnL), e.RMultiple)
	}
	if e.Reason != "" {
		s += fmt.Sprintf(" reason=%q", e.Reason)
	}
	return s
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
