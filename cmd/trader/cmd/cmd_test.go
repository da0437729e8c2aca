package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rustyeddy/swingtrader/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 2, 21, 0, 0, 0, time.UTC)

type row struct{ open, high, low, close, vol float64 }

func quiet(n int) []row {
	out := make([]row, n)
	for i := range out {
		out[i] = row{100, 101, 99, 100, 1_000_000}
	}
	return out
}

// breakout is a quiet base followed by a high-volume close above it.
func breakout() []row {
	return append(quiet(22), row{100, 106, 100, 105, 2_000_000})
}

// cycles repeats a breakout, a bar through the target and a drop.
func cycles(n int) []row {
	var rows []row
	for c := 0; c < n; c++ {
		rows = append(rows, breakout()...)
		rows = append(rows, row{105, 115, 104, 114, 1_000_000}, row{114, 114, 100, 100, 1_000_000})
	}
	return rows
}

// workspace writes bars for each symbol plus a default config and returns
// the config path.
func workspace(t *testing.T, bars map[string][]row) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data", "D1"), 0755))
	var symbols []string
	for sym, rows := range bars {
		var b strings.Builder
		b.WriteString("time,open,high,low,close,volume\n")
		for i, r := range rows {
			fmt.Fprintf(&b, "%s,%g,%g,%g,%g,%g\n", t0.AddDate(0, 0, i).Format(time.RFC3339), r.open, r.high, r.low, r.close, r.vol)
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "D1", sym+".csv"), []byte(b.String()), 0644))
		symbols = append(symbols, sym)
	}

	cfg := config.Default()
	cfg.Data.Dir = filepath.Join(dir, "data")
	cfg.Data.Symbols = symbols
	cfg.Journal.DBPath = filepath.Join(dir, "journal", "trader.db")
	cfg.Account.StateFile = filepath.Join(dir, "paper.json")
	cfgPath = filepath.Join(dir, "trader.yaml")
	require.NoError(t, cfg.SaveToFile(cfgPath))
	return dir, cfgPath
}

func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd(&out)
	base := []string{"--config", cfgPath, "--env", filepath.Join(filepath.Dir(cfgPath), ".env"), "--log-level", "error"}
	root.SetArgs(append(args, base...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	t.Parallel()
	out, err := run(t, "unused.yaml", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "trader version")
}

func TestConfigInitAndValidate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trader.yaml")
	out, err := run(t, path, "config", "init", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "created default configuration")

	_, err = run(t, path, "config", "init", "-o", path)
	assert.ErrorContains(t, err, "already exists")

	out, err = run(t, path, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "configuration valid")
	assert.Contains(t, out, "1.00% per trade")
}

func TestConfigValidateRejectsMissingRisk(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trader.yaml")
	require.NoError(t, os.WriteFile(path, []byte("risk:\n  max_positions: 2\n"), 0644))
	_, err := run(t, path, "config", "validate")
	assert.ErrorContains(t, err, "is required")
}

func TestScan(t *testing.T) {
	t.Parallel()

	_, cfgPath := workspace(t, map[string][]row{"AAA": breakout(), "BBB": quiet(30)})

	out, err := run(t, cfgPath, "scan")
	require.NoError(t, err)
	assert.Contains(t, out, "AAA")
	assert.Contains(t, out, "momentum")
	assert.NotContains(t, out, "BBB")

	out, err = run(t, cfgPath, "scan", "BBB", "ZZZ")
	require.NoError(t, err)
	assert.Contains(t, out, "no setups")
	assert.Contains(t, out, "ZZZ")
}

func TestTrade(t *testing.T) {
	t.Parallel()

	dir, cfgPath := workspace(t, map[string][]row{"AAA": breakout()})
	state := filepath.Join(dir, "paper.json")

	out, err := run(t, cfgPath, "trade", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "dry run")
	assert.NoFileExists(t, state)

	out, err = run(t, cfgPath, "trade")
	require.NoError(t, err)
	assert.Contains(t, out, "executed")
	assert.FileExists(t, state)

	// the saved position is carried into the next pass
	out, err = run(t, cfgPath, "trade", "--summary")
	require.NoError(t, err)
	assert.Contains(t, out, "no setups")
	assert.Contains(t, out, "Account summary")
	assert.NotContains(t, out, "No open positions")

	out, err = run(t, cfgPath, "journal", "signals", "--db", filepath.Join(dir, "journal", "trader.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "AAA")
}

func TestBacktestAndJournalRun(t *testing.T) {
	t.Parallel()

	dir, cfgPath := workspace(t, map[string][]row{"AAA": cycles(2)})
	org := filepath.Join(dir, "runs", "momentum.org")

	out, err := run(t, cfgPath, "backtest", "--run-id", "bt-1", "--seed", "7", "--org", org)
	require.NoError(t, err)
	assert.Contains(t, out, "Backtest Result")
	assert.Contains(t, out, "Trades:        2")
	assert.FileExists(t, org)

	out, err = run(t, cfgPath, "journal", "run", "bt-1", "--db", filepath.Join(dir, "journal", "trader.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "BACKTEST: momentum")
	assert.Contains(t, out, "AAA")

	_, err = run(t, cfgPath, "journal", "run", "nope", "--db", filepath.Join(dir, "journal", "trader.db"))
	assert.Error(t, err)
}

func TestBacktestNoData(t *testing.T) {
	t.Parallel()

	_, cfgPath := workspace(t, map[string][]row{})
	_, err := run(t, cfgPath, "backtest", "ZZZ")
	assert.ErrorContains(t, err, "no bars")
}
