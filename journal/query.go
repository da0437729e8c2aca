package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/swingtrader/risk"
)

const tradeColumns = `trade_id, symbol, strategy, quantity, entry_price, exit_price, entry_time, exit_time,
	initial_stop, target, gross_pnl, commission, slippage, net_pnl, initial_risk, r_multiple,
	mae, mfe, reason, bars`

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (risk.ClosedTrade, error) {
	var t risk.ClosedTrade
	var reason string
	err := s.Scan(
		&t.ID, &t.Symbol, &t.Strategy, &t.Quantity, &t.EntryPrice, &t.ExitPrice,
		&t.EntryTime, &t.ExitTime, &t.InitialStop, &t.Target, &t.GrossPnL, &t.Commission,
		&t.Slippage, &t.NetPnL, &t.InitialRisk, &t.RMultiple, &t.MAE, &t.MFE, &reason, &t.Bars,
	)
	t.Reason = risk.ExitReason(reason)
	return t, err
}

// GetTrade returns a single closed trade by ID.
func (j *SQLite) GetTrade(tradeID string) (risk.ClosedTrade, error) {
	row := j.db.QueryRow(`SELECT `+tradeColumns+` FROM trades WHERE trade_id = ?`, tradeID)
	t, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return risk.ClosedTrade{}, fmt.Errorf("trade %q: %w", tradeID, ErrNotFound)
		}
		return risk.ClosedTrade{}, err
	}
	return t, nil
}

// ListTradesClosedBetween returns trades whose exit_time is within [start, end).
func (j *SQLite) ListTradesClosedBetween(start, end time.Time) ([]risk.ClosedTrade, error) {
	rows, err := j.db.Query(`
		SELECT `+tradeColumns+`
		FROM trades
		WHERE exit_time >= ? AND exit_time < ?
		ORDER BY exit_time ASC, trade_id ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	return collectTrades(rows)
}

// ListTradesByRunID returns the ledger of one backtest run in exit order.
func (j *SQLite) ListTradesByRunID(ctx context.Context, runID string) ([]risk.ClosedTrade, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE run_id = ?
		ORDER BY exit_time ASC, trade_id ASC`, runID)
	if err != nil {
		return nil, err
	}
	return collectTrades(rows)
}

func collectTrades(rows *sql.Rows) ([]risk.ClosedTrade, error) {
	defer rows.Close()
	var out []risk.ClosedTrade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEntriesBetween returns journal entries with time in [start, end).
func (j *SQLite) ListEntriesBetween(start, end time.Time) ([]Entry, error) {
	rows, err := j.db.Query(`
		SELECT time, kind, action, symbol, strategy, reason, check_code, trade_id,
		       entry, stop, target, confidence, shares, price, pnl, r_multiple
		FROM entries
		WHERE time >= ? AND time < ?
		ORDER BY time ASC, id ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var kind, action string
		if err := rows.Scan(&e.Time, &kind, &action, &e.Symbol, &e.Strategy, &e.Reason, &e.Check,
			&e.TradeID, &e.Entry, &e.Stop, &e.Target, &e.Confidence, &e.Shares, &e.Price,
			&e.PnL, &e.RMultiple); err != nil {
			return nil, err
		}
		e.Kind, e.Action = Kind(kind), Action(action)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEquityByRunID returns the equity curve of a run.
func (j *SQLite) ListEquityByRunID(ctx context.Context, runID string) ([]EquityPoint, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT time, cash, equity, exposure, positions
		FROM equity
		WHERE run_id = ?
		ORDER BY time ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquityPoint
	for rows.Next() {
		var p EquityPoint
		if err := rows.Scan(&p.Time, &p.Cash, &p.Equity, &p.Exposure, &p.Positions); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetBacktestRun loads one run summary.
func (j *SQLite) GetBacktestRun(ctx context.Context, runID string) (BacktestRun, error) {
	var r BacktestRun
	var pf sql.NullFloat64
	err := j.db.QueryRowContext(ctx, `
		SELECT run_id, created, strategy, timeframe, dataset, symbols, start_time, end_time,
		       start_equity, end_equity, trades, wins, losses, net_pnl, return_pct, cagr,
		       max_dd_pct, win_rate, profit_factor, avg_r, sharpe, config
		FROM backtest_runs
		WHERE run_id = ?`, runID).Scan(
		&r.RunID, &r.Created, &r.Strategy, &r.Timeframe, &r.Dataset, &r.Symbols, &r.Start, &r.End,
		&r.StartEquity, &r.EndEquity, &r.Trades, &r.Wins, &r.Losses, &r.NetPnL, &r.ReturnPct, &r.CAGR,
		&r.MaxDDPct, &r.WinRate, &pf, &r.AvgR, &r.Sharpe, &r.Config,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BacktestRun{}, fmt.Errorf("backtest run %q: %w", runID, ErrNotFound)
		}
		return BacktestRun{}, err
	}
	r.ProfitFactor = math.Inf(1)
	if pf.Valid {
		r.ProfitFactor = pf.Float64
	}
	return r, nil
}
