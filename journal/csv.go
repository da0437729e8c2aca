package journal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rustyeddy/swingtrader/risk"
	"github.com/shopspring/decimal"
)

const (
	EntriesFile = "entries.csv"
	TradesFile  = "trades.csv"
	EquityFile  = "equity.csv"
)

var (
	entriesHeader = []string{
		"time", "kind", "action", "symbol", "strategy", "reason", "check", "trade_id",
		"entry", "stop", "target", "confidence", "shares", "price", "pnl", "r_multiple",
	}
	tradesHeader = []string{
		"trade_id", "run_id", "symbol", "strategy", "quantity", "entry_price", "exit_price",
		"entry_time", "exit_time", "initial_stop", "target", "gross_pnl", "commission",
		"slippage", "net_pnl", "initial_risk", "r_multiple", "mae", "mfe", "reason", "bars",
	}
	equityHeader = []string{"run_id", "time", "cash", "equity", "exposure", "positions"}
)

// CSV appends to three files under a directory. Files are opened in append
// mode and a header is written only when a file starts out empty.
type CSV struct {
	mu      sync.Mutex
	entries *csvFile
	trades  *csvFile
	equity  *csvFile
}

type csvFile struct {
	f *os.File
	w *csv.Writer
}

func NewCSV(dir string) (*CSV, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	entries, err := openCSV(filepath.Join(dir, EntriesFile), entriesHeader)
	if err != nil {
		return nil, err
	}
	trades, err := openCSV(filepath.Join(dir, TradesFile), tradesHeader)
	if err != nil {
		entries.close()
		return nil, err
	}
	equity, err := openCSV(filepath.Join(dir, EquityFile), equityHeader)
	if err != nil {
		entries.close()
		trades.close()
		return nil, err
	}
	return &CSV{entries: entries, trades: trades, equity: equity}, nil
}

func openCSV(path string, header []string) (*csvFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	c := &csvFile{f: f, w: csv.NewWriter(f)}
	if st.Size() == 0 {
		if err := c.write(header); err != nil {
			f.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *csvFile) write(rec []string) error {
	if err := c.w.Write(rec); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

func (c *csvFile) close() error {
	c.w.Flush()
	return errors.Join(c.w.Error(), c.f.Close())
}

func (j *CSV) Append(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.entries.write([]string{
		stamp(e.Time), string(e.Kind), string(e.Action), e.Symbol, e.Strategy, e.Reason, e.Check, e.TradeID,
		price(e.Entry), price(e.Stop), price(e.Target), ratio(e.Confidence),
		strconv.Itoa(e.Shares), price(e.Price), cash(e.PnL), ratio(e.RMultiple),
	})
}

func (j *CSV) RecordTrade(runID string, t risk.ClosedTrade) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.trades.write([]string{
		t.ID, runID, t.Symbol, t.Strategy, strconv.Itoa(t.Quantity),
		price(t.EntryPrice), price(t.ExitPrice), stamp(t.EntryTime), stamp(t.ExitTime),
		price(t.InitialStop), price(t.Target), cash(t.GrossPnL), cash(t.Commission),
		cash(t.Slippage), cash(t.NetPnL), cash(t.InitialRisk), ratio(t.RMultiple),
		cash(t.MAE), cash(t.MFE), string(t.Reason), strconv.Itoa(t.Bars),
	})
}

func (j *CSV) RecordEquity(runID string, p EquityPoint) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.equity.write([]string{
		runID, stamp(p.Time), cash(p.Cash), cash(p.Equity), cash(p.Exposure), strconv.Itoa(p.Positions),
	})
}

func (j *CSV) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return errors.Join(j.entries.close(), j.trades.close(), j.equity.close())
}

func stamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func cash(x float64) string  { return fixed(x, 2) }
func price(x float64) string { return fixed(x, 4) }
func ratio(x float64) string { return fixed(x, 4) }

// fixed goes through decimal so the files never show binary float noise.
// decimal panics on NaN and Inf, so those are written as-is.
func fixed(x float64, places int32) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return decimal.NewFromFloat(x).StringFixed(places)
}
