package journal

import (
	"context"
	"database/sql"
	"math"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rustyeddy/swingtrader/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	return j, path
}

func sampleTrade(id string, exit time.Time) risk.ClosedTrade {
	return risk.ClosedTrade{
		ID:          id,
		Symbol:      "AAPL",
		Strategy:    "momentum",
		Quantity:    97,
		EntryPrice:  105,
		ExitPrice:   110.5,
		EntryTime:   exit.Add(-72 * time.Hour),
		ExitTime:    exit,
		InitialStop: 100.43,
		Target:      114.14,
		GrossPnL:    533.5,
		Commission:  2,
		Slippage:    0.97,
		NetPnL:      531.5,
		InitialRisk: 443.29,
		RMultiple:   531.5 / 443.29,
		MAE:         -48.5,
		MFE:         600,
		Reason:      risk.ExitTarget,
		Bars:        3,
	}
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table'`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())

	for _, name := range []string{"entries", "trades", "equity", "backtest_runs"} {
		assert.True(t, found[name], name)
	}
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	exit := time.Date(2024, 3, 8, 20, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordTrade("run-1", sampleTrade("T1", exit)))
	require.NoError(t, j.Close())

	j2, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j2.Close() })

	got, err := j2.GetTrade("T1")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got.Symbol)
}

func TestSQLiteTradeRoundTrip(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	exit := time.Date(2024, 3, 8, 20, 0, 0, 0, time.UTC)
	want := sampleTrade("T1", exit)
	require.NoError(t, j.RecordTrade("run-1", want))

	got, err := j.GetTrade("T1")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Quantity, got.Quantity)
	assert.InDelta(t, want.NetPnL, got.NetPnL, 1e-9)
	assert.InDelta(t, want.RMultiple, got.RMultiple, 1e-9)
	assert.Equal(t, risk.ExitTarget, got.Reason)
	assert.True(t, want.ExitTime.Equal(got.ExitTime))
	assert.True(t, want.EntryTime.Equal(got.EntryTime))

	// The primary key rejects a second write of the same trade.
	assert.Error(t, j.RecordTrade("run-1", want))
}

func TestSQLiteGetTradeNotFound(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	_, err := j.GetTrade("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteListTrades(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	day := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordTrade("run-a", sampleTrade("T2", day.Add(15*time.Hour))))
	require.NoError(t, j.RecordTrade("run-a", sampleTrade("T1", day.Add(14*time.Hour))))
	require.NoError(t, j.RecordTrade("run-b", sampleTrade("T3", day.Add(30*time.Hour))))

	got, err := j.ListTradesClosedBetween(day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "T1", got[0].ID)
	assert.Equal(t, "T2", got[1].ID)

	byRun, err := j.ListTradesByRunID(context.Background(), "run-b")
	require.NoError(t, err)
	require.Len(t, byRun, 1)
	assert.Equal(t, "T3", byRun[0].ID)
}

func TestSQLiteEntriesAndEquity(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	at := time.Date(2024, 3, 5, 21, 0, 0, 0, time.UTC)
	require.NoError(t, j.Append(Entry{
		Time: at, Kind: KindSignal, Action: Rejected, Symbol: "MSFT", Strategy: "pullback",
		Reason: "max positions reached", Check: "max_positions", Entry: 410, Stop: 400, Target: 430,
	}))
	require.NoError(t, j.Append(Entry{Time: at.Add(time.Hour), Kind: KindEntry, Action: Executed, Symbol: "AAPL"}))

	got, err := j.ListEntriesBetween(at, at.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Rejected, got[0].Action)
	assert.Equal(t, "max_positions", got[0].Check)
	assert.InDelta(t, 410.0, got[0].Entry, 1e-9)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, j.RecordEquity("run-1", EquityPoint{
			Time: at.AddDate(0, 0, i), Cash: 100000, Equity: 100000 + float64(i)*10, Positions: i,
		}))
	}
	require.NoError(t, j.RecordEquity("run-2", EquityPoint{Time: at, Equity: 1}))

	curve, err := j.ListEquityByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, curve, 3)
	assert.InDelta(t, 100020.0, curve[2].Equity, 1e-9)
	assert.Equal(t, 2, curve[2].Positions)
}

func TestSQLiteBacktestRun(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })
	ctx := context.Background()

	start := time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC)
	run := BacktestRun{
		RunID:        "run-1",
		Created:      start,
		Strategy:     "momentum",
		Timeframe:    "D1",
		Symbols:      "AAPL,MSFT",
		Start:        start,
		End:          start.AddDate(1, 0, 0),
		StartEquity:  100000,
		EndEquity:    104200,
		Trades:       3,
		Wins:         3,
		NetPnL:       4200,
		ReturnPct:    0.042,
		WinRate:      1,
		ProfitFactor: math.Inf(1),
		AvgR:         1.4,
		Config:       "strategy: momentum",
	}
	require.NoError(t, j.RecordBacktest(ctx, run))
	require.NoError(t, j.RecordTrade("run-1", sampleTrade("T1", start.AddDate(0, 1, 0))))

	got, err := j.GetBacktestRun(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, math.IsInf(got.ProfitFactor, 1))
	assert.Equal(t, 3, got.Wins)
	assert.Equal(t, "AAPL,MSFT", got.Symbols)

	_, err = j.GetBacktestRun(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	org, err := j.ExportBacktestOrg(ctx, "run-1")
	require.NoError(t, err)
	assert.Contains(t, org, "* BACKTEST: momentum D1")
	assert.Contains(t, org, ":PROFIT_FAC:  inf")
	assert.Contains(t, org, "** Trade: AAPL momentum (T1)")
}
