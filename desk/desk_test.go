package desk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rustyeddy/swingtrader/broker"
	"github.com/rustyeddy/swingtrader/broker/sim"
	"github.com/rustyeddy/swingtrader/journal"
	"github.com/rustyeddy/swingtrader/market"
	"github.com/rustyeddy/swingtrader/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 5, 21, 0, 0, 0, time.UTC)

func limits() risk.Limits {
	return risk.Limits{
		MaxPositions:       5,
		MaxPositionPct:     0.3,
		MaxRiskPct:         0.01,
		MinPrice:           5,
		MinAvgDollarVolume: 1_000_000,
		SlippagePct:        0,
		CommissionPerTrade: 1,
	}
}

func setup(symbol string) market.Setup {
	return market.Setup{
		Symbol:          symbol,
		Strategy:        "momentum",
		Entry:           105,
		Stop:            100,
		Target:          115,
		Confidence:      0.8,
		Time:            now,
		AvgDollarVolume: 50_000_000,
	}
}

// stubGateway records every request and answers with err or a fill at the
// limit price.
type stubGateway struct {
	mu   sync.Mutex
	reqs []broker.OrderRequest
	err  error
}

func (g *stubGateway) SubmitOrder(_ context.Context, req broker.OrderRequest) (broker.Fill, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reqs = append(g.reqs, req)
	if g.err != nil {
		return broker.Fill{}, g.err
	}
	price := 0.0
	if req.LimitPrice != nil {
		price = *req.LimitPrice
	}
	return broker.Fill{OrderID: "o", ClientID: req.ClientID, Symbol: req.Symbol, Side: req.Side,
		Quantity: req.Quantity, Price: price, Time: now}, nil
}

func newDesk(t *testing.T, equity float64, gw broker.Gateway, mutate ...func(*Config)) (*Desk, *journal.Memory) {
	t.Helper()
	mem := journal.NewMemory()
	n := 0
	var idMu sync.Mutex
	cfg := Config{
		Limits:  limits(),
		Gateway: gw,
		Journal: mem,
		Now:     func() time.Time { return now },
		NewID: func() string {
			idMu.Lock()
			defer idMu.Unlock()
			n++
			return fmt.Sprintf("T%03d", n)
		},
		Exits: map[string]risk.ExitPolicy{
			"momentum": {BreakevenR: 1, TrailR: 1, TrailATRMult: 2, ATRPeriod: 2},
		},
	}
	for _, m := range mutate {
		m(&cfg)
	}
	d, err := New(risk.NewPortfolio(equity), cfg)
	require.NoError(t, err)
	return d, mem
}

func paper() *sim.Engine {
	e := sim.NewEngine()
	e.SetClock(func() time.Time { return now })
	return e
}

func actions(mem *journal.Memory) []journal.Action {
	var out []journal.Action
	for _, e := range mem.Entries() {
		if e.Kind == journal.KindSignal {
			out = append(out, e.Action)
		}
	}
	return out
}

func TestAttemptExecutes(t *testing.T) {
	t.Parallel()

	gw := paper()
	gw.SetPrice("AAPL", 105)
	d, mem := newDesk(t, 100_000, gw)

	a, err := d.Attempt(context.Background(), setup("AAPL"))
	require.NoError(t, err)
	assert.Equal(t, journal.Executed, a.Action)
	require.NotNil(t, a.Position)
	assert.Equal(t, 200, a.Position.Quantity)
	assert.Equal(t, "T001", a.Position.ID)
	assert.InDelta(t, 1000.0, a.Position.InitialRisk, 1e-9)

	s := d.Summary()
	assert.InDelta(t, 100_000-21_000-1, s.Cash, 1e-9)
	assert.InDelta(t, 100_000-1, s.Equity, 1e-9)
	require.Len(t, s.Positions, 1)
	assert.Equal(t, "entered", s.Positions[0].State)

	assert.Equal(t, []journal.Action{journal.Executed}, actions(mem))
	entries := mem.Entries()
	assert.Equal(t, journal.KindEntry, entries[len(entries)-1].Kind)
}

func TestAttemptRejections(t *testing.T) {
	t.Parallel()

	t.Run("duplicate position", func(t *testing.T) {
		t.Parallel()
		gw := &stubGateway{}
		d, mem := newDesk(t, 100_000, gw)
		ctx := context.Background()

		_, err := d.Attempt(ctx, setup("AAPL"))
		require.NoError(t, err)

		better := setup("AAPL")
		better.Confidence = 1
		a, err := d.Attempt(ctx, better)
		var rr *risk.RiskRejectedError
		require.ErrorAs(t, err, &rr)
		assert.Equal(t, risk.CheckDuplicate, rr.Check)
		assert.Contains(t, a.Reason, "duplicate position")
		assert.Len(t, gw.reqs, 1)
		assert.Equal(t, []journal.Action{journal.Executed, journal.Rejected}, actions(mem))
	})

	t.Run("gateway reject is journaled once", func(t *testing.T) {
		t.Parallel()
		gw := &stubGateway{err: &broker.RejectedError{Symbol: "AAPL", Reason: "halted"}}
		d, mem := newDesk(t, 100_000, gw)

		a, err := d.Attempt(context.Background(), setup("AAPL"))
		var rej *broker.RejectedError
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, CheckGateway, a.Check)
		assert.Len(t, gw.reqs, 1)
		assert.False(t, d.Holding("AAPL"))

		sig := mem.Entries()
		require.Len(t, sig, 1)
		assert.Equal(t, journal.Rejected, sig[0].Action)
		assert.Equal(t, CheckGateway, sig[0].Check)
	})

	t.Run("sub-penny entry is rounded", func(t *testing.T) {
		t.Parallel()
		gw := &stubGateway{}
		d, _ := newDesk(t, 100_000, gw)

		s := setup("AAPL")
		s.Entry = 105.123
		_, err := d.Attempt(context.Background(), s)
		require.NoError(t, err)
		require.Len(t, gw.reqs, 1)
		assert.InDelta(t, 105.12, *gw.reqs[0].LimitPrice, 1e-9)
	})

	t.Run("invalid setup", func(t *testing.T) {
		t.Parallel()
		gw := &stubGateway{}
		d, mem := newDesk(t, 100_000, gw)

		s := setup("AAPL")
		s.Stop = 106
		_, err := d.Attempt(context.Background(), s)
		var inv *market.InvalidSetupError
		require.ErrorAs(t, err, &inv)
		assert.Empty(t, gw.reqs)
		assert.Equal(t, []journal.Action{journal.Skipped}, actions(mem))
	})
}

func TestAttemptZeroShares(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{}
	d, mem := newDesk(t, 100, gw)

	a, err := d.Attempt(context.Background(), setup("AAPL"))
	require.NoError(t, err)
	assert.Equal(t, journal.Skipped, a.Action)
	assert.Equal(t, "zero shares", a.Reason)
	assert.Empty(t, gw.reqs)
	assert.Equal(t, []journal.Action{journal.Skipped}, actions(mem))
}

func TestAttemptDryRun(t *testing.T) {
	t.Parallel()

	d, mem := newDesk(t, 100_000, nil, func(c *Config) { c.DryRun = true })

	a, err := d.Attempt(context.Background(), setup("AAPL"))
	require.NoError(t, err)
	assert.Equal(t, journal.Skipped, a.Action)
	assert.Equal(t, 200, a.Order.Shares)
	assert.False(t, d.Holding("AAPL"))
	assert.Equal(t, "dry run", mem.Entries()[0].Reason)
}

func TestAttemptsAreSerialized(t *testing.T) {
	t.Parallel()

	t.Run("max positions", func(t *testing.T) {
		t.Parallel()
		d, _ := newDesk(t, 100_000, &stubGateway{}, func(c *Config) { c.Limits.MaxPositions = 2 })

		var wg sync.WaitGroup
		results := make([]journal.Action, 10)
		for n := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				a, _ := d.Attempt(context.Background(), setup(fmt.Sprintf("S%02d", n)))
				results[n] = a.Action
			}()
		}
		wg.Wait()

		count := map[journal.Action]int{}
		for _, a := range results {
			count[a]++
		}
		assert.Equal(t, 2, count[journal.Executed])
		assert.Equal(t, 8, count[journal.Rejected])
		assert.Len(t, d.Summary().Positions, 2)
	})

	t.Run("same symbol", func(t *testing.T) {
		t.Parallel()
		gw := &stubGateway{}
		d, _ := newDesk(t, 100_000, gw)

		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = d.Attempt(context.Background(), setup("AAPL"))
			}()
		}
		wg.Wait()
		assert.Len(t, gw.reqs, 1)
	})
}

func TestManage(t *testing.T) {
	t.Parallel()

	day := func(n int, o, h, l, c float64) market.Bar {
		return market.Bar{Time: now.AddDate(0, 0, n), Open: o, High: h, Low: l, Close: c, Volume: 1e6}
	}

	t.Run("trails and then stops out", func(t *testing.T) {
		t.Parallel()
		gw := paper()
		gw.SetPrice("AAPL", 105)
		d, mem := newDesk(t, 100_000, gw)
		ctx := context.Background()

		_, err := d.Attempt(ctx, setup("AAPL"))
		require.NoError(t, err)

		bars := []market.Bar{day(0, 104, 106, 103, 105), day(1, 106, 112.5, 105.5, 112)}
		tr, err := d.Manage(ctx, "AAPL", bars)
		require.NoError(t, err)
		assert.Nil(t, tr)

		pos := d.Summary().Positions[0]
		assert.Equal(t, "trailing", pos.State)
		// Breakeven at 105 beats the ATR trail of 112 - 2*5.25.
		assert.InDelta(t, 105.0, pos.Stop, 1e-9)
		assert.InDelta(t, 112.0, pos.LastPrice, 1e-9)

		gw.SetPrice("AAPL", 104.5)
		bars = append(bars, day(2, 108, 108.5, 104, 104.5))
		tr, err = d.Manage(ctx, "AAPL", bars)
		require.NoError(t, err)
		require.NotNil(t, tr)
		assert.Equal(t, risk.ExitBreakevenStop, tr.Reason)
		assert.InDelta(t, 104.5, tr.ExitPrice, 1e-9)
		assert.InDelta(t, 200*(104.5-105)-2, tr.NetPnL, 1e-9)
		assert.Equal(t, 2, tr.Bars)
		assert.False(t, d.Holding("AAPL"))

		require.Len(t, mem.Trades(), 1)
		last := mem.Entries()[len(mem.Entries())-1]
		assert.Equal(t, journal.KindExit, last.Kind)
	})

	t.Run("failed exit keeps the position", func(t *testing.T) {
		t.Parallel()
		gw := &stubGateway{}
		d, mem := newDesk(t, 100_000, gw)
		ctx := context.Background()

		_, err := d.Attempt(ctx, setup("AAPL"))
		require.NoError(t, err)

		gw.err = errors.New("connection reset")
		_, err = d.Manage(ctx, "AAPL", []market.Bar{day(1, 101, 102, 95, 96)})
		assert.Error(t, err)
		assert.True(t, d.Holding("AAPL"))
		last := mem.Entries()[len(mem.Entries())-1]
		assert.Equal(t, journal.Rejected, last.Action)
		assert.Equal(t, journal.KindExit, last.Kind)
	})

	t.Run("no position", func(t *testing.T) {
		t.Parallel()
		d, _ := newDesk(t, 100_000, &stubGateway{})
		tr, err := d.Manage(context.Background(), "AAPL", []market.Bar{day(1, 1, 1, 1, 1)})
		assert.NoError(t, err)
		assert.Nil(t, tr)
	})
}

func TestCloseManual(t *testing.T) {
	t.Parallel()

	gw := paper()
	gw.SetPrice("AAPL", 105)
	d, _ := newDesk(t, 100_000, gw)
	ctx := context.Background()

	_, err := d.Attempt(ctx, setup("AAPL"))
	require.NoError(t, err)

	gw.SetPrice("AAPL", 108)
	d.Mark("AAPL", 108)
	tr, err := d.Close(ctx, "AAPL", risk.ExitManual)
	require.NoError(t, err)
	assert.Equal(t, risk.ExitManual, tr.Reason)
	assert.InDelta(t, 200*3.0-2, tr.NetPnL, 1e-9)

	_, err = d.Close(ctx, "AAPL", risk.ExitManual)
	assert.Error(t, err)
}

func TestCloseManualCountsManagedBars(t *testing.T) {
	t.Parallel()

	gw := paper()
	gw.SetPrice("AAPL", 105)
	d, _ := newDesk(t, 100_000, gw)
	ctx := context.Background()

	s := setup("AAPL")
	s.Index = 30
	_, err := d.Attempt(ctx, s)
	require.NoError(t, err)

	day := func(n int, c float64) market.Bar {
		return market.Bar{Time: now.AddDate(0, 0, n), Open: c, High: c + 0.5, Low: c - 0.5, Close: c, Volume: 1e6}
	}
	bars := []market.Bar{day(0, 105), day(1, 106), day(2, 106.5)}
	tr, err := d.Manage(ctx, "AAPL", bars)
	require.NoError(t, err)
	require.Nil(t, tr)

	gw.SetPrice("AAPL", 106.5)
	closed, err := d.Close(ctx, "AAPL", risk.ExitManual)
	require.NoError(t, err)
	assert.Equal(t, 2, closed.Bars)
}

func TestAttemptSizesOnSubmittedPrice(t *testing.T) {
	t.Parallel()

	gw := &stubGateway{}
	d, _ := newDesk(t, 10_000, gw, func(c *Config) { c.Limits.MaxRiskPct = 0.1 })

	s := setup("XYZ")
	s.Entry, s.Stop, s.Target = 7.006, 6.5, 8
	a, err := d.Attempt(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, journal.Executed, a.Action)

	// 428 shares fit at 7.006 but cost 3000.28 at the 7.01 limit.
	require.Len(t, gw.reqs, 1)
	require.NotNil(t, gw.reqs[0].LimitPrice)
	assert.InDelta(t, 7.01, *gw.reqs[0].LimitPrice, 1e-9)
	assert.Equal(t, 427, gw.reqs[0].Quantity)
	assert.InDelta(t, 7.01, a.Order.Setup.Entry, 1e-9)
	assert.LessOrEqual(t, a.Order.Notional, 10_000*0.3)
}

func TestSummaryAndState(t *testing.T) {
	t.Parallel()

	gw := paper()
	gw.SetPrice("AAPL", 105)
	d, _ := newDesk(t, 100_000, gw)
	_, err := d.Attempt(context.Background(), setup("AAPL"))
	require.NoError(t, err)

	var buf bytes.Buffer
	PrintSummary(&buf, d.Summary())
	out := buf.String()
	assert.Contains(t, out, "Equity:        $99,999.00")
	assert.Contains(t, out, "AAPL")

	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, d.Save(path))

	ps, err := LoadPortfolio(path, 1)
	require.NoError(t, err)
	assert.InDelta(t, 99_999.0, ps.Equity, 1e-9)
	require.True(t, ps.Has("AAPL"))
	assert.Equal(t, 200, ps.Positions["AAPL"].Quantity)

	fresh, err := LoadPortfolio(filepath.Join(t.TempDir(), "none.json"), 50_000)
	require.NoError(t, err)
	assert.InDelta(t, 50_000.0, fresh.Cash, 1e-9)

	var empty bytes.Buffer
	PrintSummary(&empty, Summary{Time: now})
	assert.Contains(t, empty.String(), "No open positions")
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Limits: limits(), Gateway: &stubGateway{}})
	assert.Error(t, err)
	_, err = New(risk.NewPortfolio(1), Config{Gateway: &stubGateway{}})
	assert.Error(t, err)
	_, err = New(risk.NewPortfolio(1), Config{Limits: limits()})
	assert.Error(t, err)
}
