// Package journal records signals, trade events, closed trades and equity.
//
// The trading core only produces entries; a Sink decides how they are
// stored. Appends are fire-and-forget from the caller's point of view: Post
// logs a failed write and moves on.
package journal

import (
	"errors"
	"sync"
	"time"

	"github.com/rustyeddy/swingtrader/market"
	"github.com/rustyeddy/swingtrader/risk"
	"go.uber.org/zap"
)

type Kind string

const (
	KindSignal Kind = "signal"
	KindEntry  Kind = "entry"
	KindExit   Kind = "exit"
)

type Action string

const (
	Executed Action = "executed"
	Rejected Action = "rejected"
	Skipped  Action = "skipped"
)

// ErrNotFound is wrapped by lookups that match no row.
var ErrNotFound = errors.New("not found")

// Entry is one append-only journal line.
type Entry struct {
	Time       time.Time `json:"time"`
	Kind       Kind      `json:"kind"`
	Action     Action    `json:"action,omitempty"`
	Symbol     string    `json:"symbol"`
	Strategy   string    `json:"strategy"`
	Reason     string    `json:"reason,omitempty"`
	Check      string    `json:"check,omitempty"`
	TradeID    string    `json:"trade_id,omitempty"`
	Entry      float64   `json:"entry,omitempty"`
	Stop       float64   `json:"stop,omitempty"`
	Target     float64   `json:"target,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Shares     int       `json:"shares,omitempty"`
	Price      float64   `json:"price,omitempty"`
	PnL        float64   `json:"pnl,omitempty"`
	RMultiple  float64   `json:"r_multiple,omitempty"`
}

// EquityPoint is one mark of the account.
type EquityPoint struct {
	Time      time.Time `json:"time"`
	Cash      float64   `json:"cash"`
	Equity    float64   `json:"equity"`
	Exposure  float64   `json:"exposure"`
	Positions int       `json:"positions"`
}

// Sink accepts journal entries.
type Sink interface {
	Append(Entry) error
}

// Journal is a Sink that also stores closed trades and equity marks.
type Journal interface {
	Sink
	RecordTrade(runID string, t risk.ClosedTrade) error
	RecordEquity(runID string, p EquityPoint) error
	Close() error
}

// Signal describes what happened to a setup.
func Signal(s market.Setup, action Action, reason string, at time.Time) Entry {
	return Entry{
		Time:       at,
		Kind:       KindSignal,
		Action:     action,
		Symbol:     s.Symbol,
		Strategy:   s.Strategy,
		Reason:     reason,
		Entry:      s.Entry,
		Stop:       s.Stop,
		Target:     s.Target,
		Confidence: s.Confidence,
	}
}

// Opened records a new position.
func Opened(p *risk.Position) Entry {
	return Entry{
		Time:     p.EntryTime,
		Kind:     KindEntry,
		Action:   Executed,
		Symbol:   p.Symbol,
		Strategy: p.Strategy,
		TradeID:  p.ID,
		Entry:    p.EntryPrice,
		Stop:     p.Stop,
		Target:   p.Target,
		Shares:   p.Quantity,
		Price:    p.EntryPrice,
	}
}

// Closed records the exit of a position.
func Closed(t risk.ClosedTrade) Entry {
	return Entry{
		Time:      t.ExitTime,
		Kind:      KindExit,
		Action:    Executed,
		Symbol:    t.Symbol,
		Strategy:  t.Strategy,
		Reason:    string(t.Reason),
		TradeID:   t.ID,
		Entry:     t.EntryPrice,
		Stop:      t.InitialStop,
		Target:    t.Target,
		Shares:    t.Quantity,
		Price:     t.ExitPrice,
		PnL:       t.NetPnL,
		RMultiple: t.RMultiple,
	}
}

// Post appends e to s and logs, rather than returns, any failure.
func Post(log *zap.Logger, s Sink, e Entry) {
	if s == nil {
		return
	}
	if err := s.Append(e); err != nil && log != nil {
		log.Warn("journal append failed",
			zap.String("kind", string(e.Kind)),
			zap.String("symbol", e.Symbol),
			zap.Error(err))
	}
}

// Memory keeps everything in slices. It is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
	trades  []risk.ClosedTrade
	equity  []EquityPoint
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Append(e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *Memory) RecordTrade(_ string, t risk.ClosedTrade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, t)
	return nil
}

func (m *Memory) RecordEquity(_ string, p EquityPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.equity = append(m.equity, p)
	return nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

func (m *Memory) Trades() []risk.ClosedTrade {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]risk.ClosedTrade(nil), m.trades...)
}

func (m *Memory) Equity() []EquityPoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EquityPoint(nil), m.equity...)
}

// Multi fans every call out to each journal and joins the errors.
type Multi []Journal

func (ms Multi) Append(e Entry) error {
	var errs []error
	for _, j := range ms {
		errs = append(errs, j.Append(e))
	}
	return errors.Join(errs...)
}

func (ms Multi) RecordTrade(runID string, t risk.ClosedTrade) error {
	var errs []error
	for _, j := range ms {
		errs = append(errs, j.RecordTrade(runID, t))
	}
	return errors.Join(errs...)
}

func (ms Multi) RecordEquity(runID string, p EquityPoint) error {
	var errs []error
	for _, j := range ms {
		errs = append(errs, j.RecordEquity(runID, p))
	}
	return errors.Join(errs...)
}

func (ms Multi) Close() error {
	var errs []error
	for _, j := range ms {
		errs = append(errs, j.Close())
	}
	return errors.Join(errs...)
}
