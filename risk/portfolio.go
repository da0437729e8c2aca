package risk

import (
	"fmt"
	"sort"
	"time"
)

// TrailState is the lifecycle stage of an open position.
type TrailState int

const (
	Entered TrailState = iota
	TrailingActive
)

func (s TrailState) String() string {
	switch s {
	case Entered:
		return "entered"
	case TrailingActive:
		return "trailing"
	}
	return fmt.Sprintf("TrailState(%d)", int(s))
}

// Position is an open long position.
type Position struct {
	ID          string
	Symbol      string
	Strategy    string
	EntryPrice  float64 // fill price, slippage included
	Stop        float64
	InitialStop float64
	Target      float64
	Quantity    int
	EntryTime   time.Time
	EntryIndex  int
	InitialRisk float64 // dollars at InitialStop
	EntryCost   float64 // commission paid on entry
	EntrySlip   float64 // slippage paid on entry, dollars

	State     TrailState
	Breakeven bool
	LastPrice float64
	LastIndex int     // bar index of the last managed bar
	MAE       float64 // most negative unrealized P&L seen
	MFE       float64 // most positive unrealized P&L seen
}

// NewPosition opens a position from a sized order filled at fillPrice.
func NewPosition(id string, o SizedOrder, fillPrice float64, at time.Time, commission float64) *Position {
	s := o.Setup
	return &Position{
		ID:          id,
		Symbol:      s.Symbol,
		Strategy:    s.Strategy,
		EntryPrice:  fillPrice,
		Stop:        s.Stop,
		InitialStop: s.Stop,
		Target:      s.Target,
		Quantity:    o.Shares,
		EntryTime:   at,
		EntryIndex:  s.Index,
		InitialRisk: float64(o.Shares) * (fillPrice - s.Stop),
		EntryCost:   commission,
		EntrySlip:   float64(o.Shares) * (fillPrice - s.Entry),
		LastPrice:   fillPrice,
		LastIndex:   s.Index,
	}
}

// Notional is the position marked at its last price.
func (p *Position) Notional() float64 {
	px := p.LastPrice
	if px <= 0 {
		px = p.EntryPrice
	}
	return float64(p.Quantity) * px
}

// RiskPerShare is the initial distance from entry to stop.
func (p *Position) RiskPerShare() float64 {
	return p.EntryPrice - p.InitialStop
}

// UnrealizedR is the open profit at price in multiples of initial risk.
func (p *Position) UnrealizedR(price float64) float64 {
	rps := p.RiskPerShare()
	if rps <= 0 {
		return 0
	}
	return (price - p.EntryPrice) / rps
}

// Observe widens MAE/MFE with the excursion range [low, high].
func (p *Position) Observe(low, high float64) {
	q := float64(p.Quantity)
	if adverse := q * (low - p.EntryPrice); adverse < p.MAE {
		p.MAE = adverse
	}
	if favorable := q * (high - p.EntryPrice); favorable > p.MFE {
		p.MFE = favorable
	}
}

// PortfolioState is the single owned view of the account. It is not safe
// for concurrent use; callers serialize access.
type PortfolioState struct {
	Equity      float64
	Cash        float64
	BuyingPower float64
	Positions   map[string]*Position
}

// NewPortfolio starts an all-cash portfolio with no leverage.
func NewPortfolio(equity float64) *PortfolioState {
	return &PortfolioState{
		Equity:      equity,
		Cash:        equity,
		BuyingPower: equity,
		Positions:   make(map[string]*Position),
	}
}

func (ps *PortfolioState) Has(symbol string) bool {
	_, ok := ps.Positions[symbol]
	return ok
}

func (ps *PortfolioState) Count() int {
	return len(ps.Positions)
}

// Exposure is the summed notional of every open position.
func (ps *PortfolioState) Exposure() float64 {
	total := 0.0
	for _, p := range ps.Positions {
		total += p.Notional()
	}
	return total
}

// Symbols returns open symbols in lexical order.
func (ps *PortfolioState) Symbols() []string {
	out := make([]string, 0, len(ps.Positions))
	for s := range ps.Positions {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Open books a filled position, paying its cost out of cash.
func (ps *PortfolioState) Open(p *Position) error {
	if ps.Positions == nil {
		ps.Positions = make(map[string]*Position)
	}
	if ps.Has(p.Symbol) {
		return fmt.Errorf("open %s: position already exists", p.Symbol)
	}
	if p.Quantity <= 0 {
		return fmt.Errorf("open %s: quantity must be positive", p.Symbol)
	}
	ps.Positions[p.Symbol] = p
	ps.Cash -= float64(p.Quantity)*p.EntryPrice + p.EntryCost
	ps.Mark()
	return nil
}

// Close removes the position for symbol and credits the exit proceeds.
func (ps *PortfolioState) Close(symbol string, fillPrice, commission float64) (*Position, error) {
	p, ok := ps.Positions[symbol]
	if !ok {
		return nil, fmt.Errorf("close %s: no open position", symbol)
	}
	delete(ps.Positions, symbol)
	ps.Cash += float64(p.Quantity)*fillPrice - commission
	ps.Mark()
	return p, nil
}

// Mark recomputes equity and buying power from cash and last prices.
func (ps *PortfolioState) Mark() {
	ps.Equity = ps.Cash + ps.Exposure()
	ps.BuyingPower = ps.Equity
}

// MarkPrice updates the last price of symbol's position, if any.
func (ps *PortfolioState) MarkPrice(symbol string, price float64) {
	if p, ok := ps.Positions[symbol]; ok && price > 0 {
		p.LastPrice = price
	}
}
