package journal

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rustyeddy/swingtrader/risk"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (j *SQLite) Append(e Entry) error {
	_, err := j.db.Exec(`
		INSERT INTO entries
		(time, kind, action, symbol, strategy, reason, check_code, trade_id,
		 entry, stop, target, confidence, shares, price, pnl, r_multiple)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Time.UTC(), string(e.Kind), string(e.Action), e.Symbol, e.Strategy, e.Reason, e.Check, e.TradeID,
		e.Entry, e.Stop, e.Target, e.Confidence, e.Shares, e.Price, e.PnL, e.RMultiple,
	)
	return err
}

func (j *SQLite) RecordTrade(runID string, t risk.ClosedTrade) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, run_id, symbol, strategy, quantity, entry_price, exit_price, entry_time, exit_time,
		 initial_stop, target, gross_pnl, commission, slippage, net_pnl, initial_risk, r_multiple,
		 mae, mfe, reason, bars)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, runID, t.Symbol, t.Strategy, t.Quantity, t.EntryPrice, t.ExitPrice,
		t.EntryTime.UTC(), t.ExitTime.UTC(), t.InitialStop, t.Target, t.GrossPnL, t.Commission,
		t.Slippage, t.NetPnL, t.InitialRisk, t.RMultiple, t.MAE, t.MFE, string(t.Reason), t.Bars,
	)
	return err
}

func (j *SQLite) RecordEquity(runID string, p EquityPoint) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (run_id, time, cash, equity, exposure, positions)
		VALUES (?, ?, ?, ?, ?, ?)`,
		runID, p.Time.UTC(), p.Cash, p.Equity, p.Exposure, p.Positions,
	)
	return err
}

// RecordBacktest stores the run summary. An infinite profit factor is
// stored as NULL.
func (j *SQLite) RecordBacktest(ctx context.Context, r BacktestRun) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO backtest_runs
		(run_id, created, strategy, timeframe, dataset, symbols, start_time, end_time,
		 start_equity, end_equity, trades, wins, losses, net_pnl, return_pct, cagr,
		 max_dd_pct, win_rate, profit_factor, avg_r, sharpe, config)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created.UTC(), r.Strategy, r.Timeframe, r.Dataset, r.Symbols,
		r.Start.UTC(), r.End.UTC(), r.StartEquity, r.EndEquity, r.Trades, r.Wins, r.Losses,
		r.NetPnL, r.ReturnPct, r.CAGR, r.MaxDDPct, r.WinRate, finite(r.ProfitFactor),
		r.AvgR, r.Sharpe, r.Config,
	)
	return err
}

// ExportBacktestOrg loads a run with its trades and returns the Org text.
func (j *SQLite) ExportBacktestOrg(ctx context.Context, runID string) (string, error) {
	run, err := j.GetBacktestRun(ctx, runID)
	if err != nil {
		return "", err
	}
	trades, err := j.ListTradesByRunID(ctx, runID)
	if err != nil {
		return "", err
	}
	head, err := run.Org()
	if err != nil {
		return "", err
	}
	if len(trades) == 0 {
		return head, nil
	}
	return head + "\n" + FormatTradesOrg(trades), nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

func finite(x float64) sql.NullFloat64 {
	if math.IsInf(x, 0) || math.IsNaN(x) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: x, Valid: true}
}
