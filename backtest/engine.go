// Package backtest replays bar history through a strategy, the sizer and the
// risk validator, one timestamp at a time.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rustyeddy/swingtrader/indicators"
	"github.com/rustyeddy/swingtrader/internal/id"
	"github.com/rustyeddy/swingtrader/internal/logger"
	"github.com/rustyeddy/swingtrader/journal"
	"github.com/rustyeddy/swingtrader/market"
	"github.com/rustyeddy/swingtrader/risk"
	"github.com/rustyeddy/swingtrader/strategies"
	"go.uber.org/zap"
)

// Options controls how a run behaves.
type Options struct {
	// CloseAtEnd exits every open position at the last close of its series.
	CloseAtEnd bool

	// Seed feeds the trade ID generator. Equal seeds give equal IDs.
	Seed int64

	// RunID labels journal rows. One is generated when empty.
	RunID string
}

// Engine holds everything a run needs. It keeps no state between runs.
type Engine struct {
	Strategy    strategies.Strategy
	Limits      risk.Limits
	StartEquity float64
	Options     Options

	// Journal, when set, receives signals, trades and equity marks.
	Journal journal.Journal
	Logger  *zap.Logger
}

// Result is the output of one run.
type Result struct {
	RunID       string
	Strategy    string
	Symbols     []string
	Start       time.Time
	End         time.Time
	StartEquity float64
	EndEquity   float64

	Trades []risk.ClosedTrade
	Equity []journal.EquityPoint
	// Open lists positions still held when the data ran out.
	Open []risk.Position

	Stats Stats
}

type series struct {
	symbol string
	bars   []market.Bar
	atr    []float64
	next   int
}

// at returns the index of the bar stamped t and advances the cursor.
func (s *series) at(t time.Time) (int, bool) {
	if s.next < len(s.bars) && s.bars[s.next].Time.Equal(t) {
		i := s.next
		s.next++
		return i, true
	}
	return 0, false
}

type run struct {
	*Engine
	log    *zap.Logger
	ids    *id.Generator
	ps     *risk.PortfolioState
	exits  risk.ExitPolicy
	res    *Result
	series map[string]*series
}

// Run replays universe. Symbols are processed in lexical order on every
// timestamp; entries are ranked the way the scanner ranks them.
func (e *Engine) Run(ctx context.Context, universe map[string][]market.Bar) (*Result, error) {
	if e.Strategy == nil {
		return nil, errors.New("backtest: strategy is required")
	}
	if err := e.Limits.Validate(); err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	if e.StartEquity <= 0 {
		return nil, fmt.Errorf("backtest: start equity must be positive, got %.2f", e.StartEquity)
	}
	if len(universe) == 0 {
		return nil, errors.New("backtest: no bars")
	}

	r := &run{
		Engine: e,
		log:    logger.OrNop(e.Logger),
		ids:    id.NewGenerator(e.Options.Seed),
		ps:     risk.NewPortfolio(e.StartEquity),
		exits:  e.Strategy.Exits(),
		series: make(map[string]*series, len(universe)),
	}

	atrPeriod := r.exits.ATRPeriod
	if atrPeriod <= 0 {
		atrPeriod = indicators.DefaultParams().ATR
	}

	symbols := make([]string, 0, len(universe))
	for sym, bars := range universe {
		if err := market.ValidateBars(bars); err != nil {
			return nil, fmt.Errorf("backtest %s: %w", sym, err)
		}
		symbols = append(symbols, sym)
		r.series[sym] = &series{
			symbol: sym,
			bars:   bars,
			atr:    indicators.Run(indicators.NewATR(atrPeriod), bars),
		}
	}
	sort.Strings(symbols)

	times := timeline(universe)
	if len(times) == 0 {
		return nil, errors.New("backtest: no bars")
	}

	r.res = &Result{
		RunID:       e.Options.RunID,
		Strategy:    e.Strategy.Name(),
		Symbols:     symbols,
		Start:       times[0],
		End:         times[len(times)-1],
		StartEquity: e.StartEquity,
	}
	if r.res.RunID == "" {
		r.res.RunID = r.ids.At(times[0])
	}

	r.log.Info("backtest start",
		zap.String("run_id", r.res.RunID),
		zap.String("strategy", r.res.Strategy),
		zap.Int("symbols", len(symbols)),
		zap.Int("timestamps", len(times)))

	for k, t := range times {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		final := k == len(times)-1
		if err := r.step(t, symbols, final && e.Options.CloseAtEnd); err != nil {
			return nil, err
		}
	}

	res := r.res
	for _, sym := range r.ps.Symbols() {
		res.Open = append(res.Open, *r.ps.Positions[sym])
	}
	res.EndEquity = r.ps.Equity
	res.Stats = ComputeStats(res.Trades, res.Equity, e.StartEquity)

	r.log.Info("backtest done",
		zap.String("run_id", res.RunID),
		zap.Int("trades", len(res.Trades)),
		zap.Float64("end_equity", res.EndEquity))
	return res, nil
}

// step processes every symbol that has a bar at t, then looks for entries
// among the symbols that were flat before the bar. With closing set every
// open position is exited before the bar is marked.
func (r *run) step(t time.Time, symbols []string, closing bool) error {
	type candidate struct {
		sym string
		i   int
	}
	var flat []candidate

	for _, sym := range symbols {
		s := r.series[sym]
		i, ok := s.at(t)
		if !ok {
			continue
		}
		bar := s.bars[i]

		p, open := r.ps.Positions[sym]
		if !open {
			flat = append(flat, candidate{sym, i})
			continue
		}

		// The stop in force was set from earlier closes; this bar's close
		// only moves it for the next bar.
		if price, reason, hit := risk.CheckExit(p, bar); hit {
			if err := r.exit(p, bar, i, price, reason); err != nil {
				return err
			}
			continue
		}
		p.Observe(bar.Low, bar.High)
		r.ps.MarkPrice(sym, bar.Close)
		risk.UpdateTrail(p, bar, s.atr[i], r.exits)
	}
	r.ps.Mark()

	if closing {
		// Nothing is opened on the bar everything is closed on.
		flat = nil
	}
	var setups []market.Setup
	for _, c := range flat {
		s := r.series[c.sym]
		setup, err := r.Strategy.Scan(c.sym, s.bars[:c.i+1])
		if err != nil {
			var ide *indicators.InsufficientDataError
			if !errors.As(err, &ide) {
				r.log.Debug("scan error", zap.String("symbol", c.sym), zap.Error(err))
			}
			continue
		}
		if setup != nil {
			setups = append(setups, *setup)
		}
	}
	strategies.SortSetups(setups)

	for _, setup := range setups {
		if err := r.enter(setup, t); err != nil {
			return err
		}
	}

	if closing {
		if err := r.closeAll(); err != nil {
			return err
		}
	}
	r.ps.Mark()
	r.mark(t)
	return nil
}

// enter sizes the setup on its slipped fill, validates it against the live
// portfolio and books the position.
func (r *run) enter(setup market.Setup, t time.Time) error {
	fill := r.Limits.BuyFill(setup.Entry)

	slipped := setup
	slipped.Entry = fill
	o, err := risk.Size(slipped, r.ps.Equity, r.Limits.MaxRiskPct, r.Limits.MaxPositionPct)
	if err != nil {
		r.signal(setup, journal.Skipped, err.Error(), "", t)
		return nil
	}
	if o.IsZero() {
		r.signal(setup, journal.Skipped, "zero shares", "", t)
		return nil
	}
	if d := risk.Validate(o, r.ps, r.Limits); !d.Allowed {
		r.signal(setup, journal.Rejected, d.Reason, d.Check, t)
		return nil
	}

	o.Setup = setup
	p := risk.NewPosition(r.ids.At(t), o, fill, t, r.Limits.CommissionPerTrade)
	if err := r.ps.Open(p); err != nil {
		return fmt.Errorf("backtest: %w", err)
	}
	r.ps.MarkPrice(p.Symbol, setup.Entry)
	r.ps.Mark()
	r.signal(setup, journal.Executed, "", "", t)
	journal.Post(r.log, r.Journal, journal.Opened(p))

	r.log.Debug("entry",
		zap.String("symbol", p.Symbol),
		zap.Int("shares", p.Quantity),
		zap.Float64("fill", fill),
		zap.Float64("stop", p.Stop))
	return nil
}

func (r *run) exit(p *risk.Position, bar market.Bar, i int, price float64, reason risk.ExitReason) error {
	fill := r.Limits.SellFill(price)
	if _, err := r.ps.Close(p.Symbol, fill, r.Limits.CommissionPerTrade); err != nil {
		return fmt.Errorf("backtest: %w", err)
	}
	tr := risk.CloseTrade(p, risk.Exit{
		Price:      price,
		Fill:       fill,
		Time:       bar.Time,
		Index:      i,
		Commission: r.Limits.CommissionPerTrade,
		Reason:     reason,
	})
	r.res.Trades = append(r.res.Trades, tr)

	journal.Post(r.log, r.Journal, journal.Closed(tr))
	if r.Journal != nil {
		if err := r.Journal.RecordTrade(r.res.RunID, tr); err != nil {
			r.log.Warn("record trade failed", zap.String("trade_id", tr.ID), zap.Error(err))
		}
	}
	r.log.Debug("exit",
		zap.String("symbol", tr.Symbol),
		zap.String("reason", string(reason)),
		zap.Float64("net_pnl", tr.NetPnL))
	return nil
}

// closeAll exits what is left at each series' final close.
func (r *run) closeAll() error {
	for _, sym := range r.ps.Symbols() {
		s := r.series[sym]
		last := len(s.bars) - 1
		bar := s.bars[last]
		if err := r.exit(r.ps.Positions[sym], bar, last, bar.Close, risk.ExitEndOfData); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) mark(t time.Time) {
	pt := journal.EquityPoint{
		Time:      t,
		Cash:      r.ps.Cash,
		Equity:    r.ps.Equity,
		Exposure:  r.ps.Exposure(),
		Positions: r.ps.Count(),
	}
	r.res.Equity = append(r.res.Equity, pt)
	if r.Journal != nil {
		if err := r.Journal.RecordEquity(r.res.RunID, pt); err != nil {
			r.log.Warn("record equity failed", zap.Error(err))
		}
	}
}

func (r *run) signal(s market.Setup, action journal.Action, reason, check string, t time.Time) {
	e := journal.Signal(s, action, reason, t)
	e.Check = check
	journal.Post(r.log, r.Journal, e)
}

// timeline is the sorted union of every bar timestamp.
func timeline(universe map[string][]market.Bar) []time.Time {
	seen := make(map[int64]time.Time)
	for _, bars := range universe {
		for _, b := range bars {
			seen[b.Time.UnixNano()] = b.Time
		}
	}
	out := make([]time.Time, 0, len(seen))
	for _, t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
