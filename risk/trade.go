package risk

import "time"

// ClosedTrade is the immutable ledger record of a finished position.
type ClosedTrade struct {
	ID          string     `json:"id"`
	Symbol      string     `json:"symbol"`
	Strategy    string     `json:"strategy"`
	Quantity    int        `json:"quantity"`
	EntryPrice  float64    `json:"entry_price"`
	ExitPrice   float64    `json:"exit_price"`
	EntryTime   time.Time  `json:"entry_time"`
	ExitTime    time.Time  `json:"exit_time"`
	InitialStop float64    `json:"initial_stop"`
	Target      float64    `json:"target"`
	GrossPnL    float64    `json:"gross_pnl"`
	Commission  float64    `json:"commission"`
	Slippage    float64    `json:"slippage"`
	NetPnL      float64    `json:"net_pnl"`
	InitialRisk float64    `json:"initial_risk"`
	RMultiple   float64    `json:"r_multiple"`
	MAE         float64    `json:"mae"`
	MFE         float64    `json:"mfe"`
	Reason      ExitReason `json:"reason"`
	Bars        int        `json:"bars"`
}

// Winner reports a trade with positive net P&L.
func (t ClosedTrade) Winner() bool {
	return t.NetPnL > 0
}

// Exit describes how a position is being closed.
type Exit struct {
	Price      float64 // quoted exit price before slippage
	Fill       float64 // price actually received
	Time       time.Time
	Index      int
	Commission float64
	Reason     ExitReason
}

// CloseTrade turns a position and its exit into a ledger record. The exit
// fill is folded into MAE/MFE so excursions never understate the outcome.
func CloseTrade(p *Position, x Exit) ClosedTrade {
	q := float64(p.Quantity)
	p.Observe(x.Fill, x.Fill)

	gross := q * (x.Fill - p.EntryPrice)
	commission := p.EntryCost + x.Commission
	net := gross - commission

	return ClosedTrade{
		ID:          p.ID,
		Symbol:      p.Symbol,
		Strategy:    p.Strategy,
		Quantity:    p.Quantity,
		EntryPrice:  p.EntryPrice,
		ExitPrice:   x.Fill,
		EntryTime:   p.EntryTime,
		ExitTime:    x.Time,
		InitialStop: p.InitialStop,
		Target:      p.Target,
		GrossPnL:    gross,
		Commission:  commission,
		Slippage:    p.EntrySlip + q*(x.Price-x.Fill),
		NetPnL:      net,
		InitialRisk: p.InitialRisk,
		RMultiple:   RMultiple(net, p.InitialRisk),
		MAE:         p.MAE,
		MFE:         p.MFE,
		Reason:      x.Reason,
		Bars:        x.Index - p.EntryIndex,
	}
}
