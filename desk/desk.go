// Package desk is the single authority for paper and live trade attempts.
//
// Strategies may scan symbols concurrently, but sizing, validation and every
// change to the portfolio go through one Desk, serialized by its mutex, so
// the duplicate-position and max-positions checks always see current state.
package desk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/swingtrader/broker"
	"github.com/rustyeddy/swingtrader/indicators"
	"github.com/rustyeddy/swingtrader/internal/id"
	"github.com/rustyeddy/swingtrader/internal/logger"
	"github.com/rustyeddy/swingtrader/journal"
	"github.com/rustyeddy/swingtrader/market"
	"github.com/rustyeddy/swingtrader/risk"
	"go.uber.org/zap"
)

// CheckGateway is the check code journaled for venue rejections.
const CheckGateway = "gateway"

type Config struct {
	Limits  risk.Limits
	Gateway broker.Gateway
	Journal journal.Journal
	Logger  *zap.Logger

	// Exits maps a strategy name to the exit policy for its positions.
	Exits map[string]risk.ExitPolicy

	// DryRun sizes and validates but never submits an order.
	DryRun bool

	// RunID labels closed trades in the journal.
	RunID string

	Now   func() time.Time
	NewID func() string
}

type Desk struct {
	mu  sync.Mutex
	cfg Config
	log *zap.Logger
	ps  *risk.PortfolioState
}

// New starts a desk over ps. The limits are checked once here and never
// change afterwards.
func New(ps *risk.PortfolioState, cfg Config) (*Desk, error) {
	if ps == nil {
		return nil, errors.New("desk: portfolio is required")
	}
	if err := cfg.Limits.Validate(); err != nil {
		return nil, fmt.Errorf("desk: %w", err)
	}
	if cfg.Gateway == nil && !cfg.DryRun {
		return nil, errors.New("desk: gateway is required unless dry run")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = id.New
	}
	if cfg.RunID == "" {
		cfg.RunID = "paper"
	}
	return &Desk{cfg: cfg, log: logger.OrNop(cfg.Logger), ps: ps}, nil
}

// Attempt is what happened to one setup.
type Attempt struct {
	Action   journal.Action
	Check    string
	Reason   string
	Order    risk.SizedOrder
	Position *risk.Position
}

// Attempt runs setup through sizing, validation and the gateway. A zero
// share count is a skip, not an error. Risk and gateway rejections are
// journaled and returned as *risk.RiskRejectedError and
// *broker.RejectedError. Nothing is retried.
func (d *Desk) Attempt(ctx context.Context, setup market.Setup) (Attempt, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	at := d.cfg.Now()
	log := d.log.With(zap.String("symbol", setup.Symbol), zap.String("strategy", setup.Strategy))

	if err := setup.Validate(); err != nil {
		d.signal(setup, journal.Skipped, err.Error(), "", at)
		return Attempt{Action: journal.Skipped, Reason: err.Error()}, err
	}

	// Size on the price the limit order actually carries.
	priced := setup
	priced.Entry = broker.RoundCents(setup.Entry)
	o, err := risk.Size(priced, d.ps.Equity, d.cfg.Limits.MaxRiskPct, d.cfg.Limits.MaxPositionPct)
	if err != nil {
		d.signal(setup, journal.Skipped, err.Error(), "", at)
		return Attempt{Action: journal.Skipped, Reason: err.Error()}, err
	}
	if o.IsZero() {
		log.Info("skipped: zero shares")
		d.signal(setup, journal.Skipped, "zero shares", "", at)
		return Attempt{Action: journal.Skipped, Reason: "zero shares", Order: o}, nil
	}

	dec := risk.Validate(o, d.ps, d.cfg.Limits)
	if !dec.Allowed {
		log.Info("rejected by risk", zap.String("check", dec.Check), zap.String("reason", dec.Reason))
		d.signal(setup, journal.Rejected, dec.Reason, dec.Check, at)
		return Attempt{Action: journal.Rejected, Check: dec.Check, Reason: dec.Reason, Order: o}, dec.Err()
	}

	if d.cfg.DryRun {
		d.signal(setup, journal.Skipped, "dry run", "", at)
		return Attempt{Action: journal.Skipped, Reason: "dry run", Order: o}, nil
	}

	req := broker.LimitOrder(setup.Symbol, broker.Buy, o.Shares, o.Setup.Entry)
	req.ClientID = d.cfg.NewID()
	fill, err := d.cfg.Gateway.SubmitOrder(ctx, req)
	if err != nil {
		log.Warn("order failed", zap.Error(err))
		d.signal(setup, journal.Rejected, err.Error(), CheckGateway, at)
		return Attempt{Action: journal.Rejected, Check: CheckGateway, Reason: err.Error(), Order: o}, err
	}

	o.Shares = fill.Quantity
	p := risk.NewPosition(req.ClientID, o, fill.Price, fill.Time, d.cfg.Limits.CommissionPerTrade)
	if err := d.ps.Open(p); err != nil {
		return Attempt{}, fmt.Errorf("desk: %w", err)
	}

	log.Info("position opened",
		zap.String("trade_id", p.ID),
		zap.Int("shares", p.Quantity),
		zap.Float64("price", p.EntryPrice),
		zap.Float64("stop", p.Stop))
	d.signal(setup, journal.Executed, "", "", at)
	journal.Post(d.log, d.cfg.Journal, journal.Opened(p))

	cp := *p
	return Attempt{Action: journal.Executed, Order: o, Position: &cp}, nil
}

// Manage feeds the latest bars for symbol to its open position: an exit is
// taken when the last bar touches the stop or target, otherwise the stop is
// trailed from the last close. It returns nil when nothing closed.
func (d *Desk) Manage(ctx context.Context, symbol string, bars []market.Bar) (*risk.ClosedTrade, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.ps.Positions[symbol]
	if !ok || len(bars) == 0 {
		return nil, nil
	}
	last := bars[len(bars)-1]
	if !last.Time.After(p.EntryTime) {
		return nil, nil
	}
	idx := p.EntryIndex + barsSince(bars, p.EntryTime)

	if price, reason, hit := risk.CheckExit(p, last); hit {
		tr, err := d.close(ctx, p, price, reason, idx)
		if err != nil {
			return nil, err
		}
		return &tr, nil
	}

	p.LastIndex = idx
	p.Observe(last.Low, last.High)
	d.ps.MarkPrice(symbol, last.Close)
	d.ps.Mark()

	pol := d.cfg.Exits[p.Strategy]
	period := pol.ATRPeriod
	if period <= 0 {
		period = indicators.DefaultParams().ATR
	}
	atr := indicators.Last(indicators.Run(indicators.NewATR(period), bars))
	before := p.Stop
	risk.UpdateTrail(p, last, atr, pol)
	if p.Stop != before {
		d.log.Info("stop raised",
			zap.String("symbol", symbol),
			zap.Float64("from", before),
			zap.Float64("to", p.Stop),
			zap.Stringer("state", p.State))
	}
	return nil, nil
}

// Close exits symbol's position at the market.
func (d *Desk) Close(ctx context.Context, symbol string, reason risk.ExitReason) (risk.ClosedTrade, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.ps.Positions[symbol]
	if !ok {
		return risk.ClosedTrade{}, fmt.Errorf("close %s: no open position", symbol)
	}
	return d.close(ctx, p, p.LastPrice, reason, max(p.LastIndex, p.EntryIndex))
}

func (d *Desk) close(ctx context.Context, p *risk.Position, quote float64, reason risk.ExitReason, idx int) (risk.ClosedTrade, error) {
	if d.cfg.DryRun {
		return risk.ClosedTrade{}, fmt.Errorf("close %s: dry run", p.Symbol)
	}
	req := broker.MarketOrder(p.Symbol, broker.Sell, p.Quantity)
	req.ClientID = d.cfg.NewID()
	fill, err := d.cfg.Gateway.SubmitOrder(ctx, req)
	if err != nil {
		d.log.Warn("exit order failed", zap.String("symbol", p.Symbol), zap.String("reason", string(reason)), zap.Error(err))
		journal.Post(d.log, d.cfg.Journal, journal.Entry{
			Time:     d.cfg.Now(),
			Kind:     journal.KindExit,
			Action:   journal.Rejected,
			Symbol:   p.Symbol,
			Strategy: p.Strategy,
			Reason:   err.Error(),
			Check:    CheckGateway,
			TradeID:  p.ID,
		})
		return risk.ClosedTrade{}, err
	}

	if _, err := d.ps.Close(p.Symbol, fill.Price, d.cfg.Limits.CommissionPerTrade); err != nil {
		return risk.ClosedTrade{}, err
	}
	if quote <= 0 {
		quote = fill.Price
	}
	tr := risk.CloseTrade(p, risk.Exit{
		Price:      quote,
		Fill:       fill.Price,
		Time:       fill.Time,
		Index:      idx,
		Commission: d.cfg.Limits.CommissionPerTrade,
		Reason:     reason,
	})

	d.log.Info("position closed",
		zap.String("symbol", tr.Symbol),
		zap.String("trade_id", tr.ID),
		zap.String("reason", string(tr.Reason)),
		zap.Float64("net_pnl", tr.NetPnL),
		zap.Float64("r", tr.RMultiple))
	journal.Post(d.log, d.cfg.Journal, journal.Closed(tr))
	if d.cfg.Journal != nil {
		if err := d.cfg.Journal.RecordTrade(d.cfg.RunID, tr); err != nil {
			d.log.Warn("record trade failed", zap.String("trade_id", tr.ID), zap.Error(err))
		}
	}
	return tr, nil
}

// Mark sets the last price of symbol's position, if one is open.
func (d *Desk) Mark(symbol string, price float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ps.MarkPrice(symbol, price)
	d.ps.Mark()
}

// Holding reports whether symbol has an open position.
func (d *Desk) Holding(symbol string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ps.Has(symbol)
}

func (d *Desk) signal(s market.Setup, action journal.Action, reason, check string, at time.Time) {
	e := journal.Signal(s, action, reason, at)
	e.Check = check
	journal.Post(d.log, d.cfg.Journal, e)
}

func barsSince(bars []market.Bar, t time.Time) int {
	n := 0
	for _, b := range bars {
		if b.Time.After(t) {
			n++
		}
	}
	return n
}
