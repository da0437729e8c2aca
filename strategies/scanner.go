package strategies

import (
	"context"
	"errors"
	"runtime"
	"sort"

	"github.com/rustyeddy/swingtrader/indicators"
	"github.com/rustyeddy/swingtrader/internal/logger"
	"github.com/rustyeddy/swingtrader/market"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Result is the outcome of scanning a universe. Skipped holds symbols that
// produced an error; they never abort the scan.
type Result struct {
	Setups  []market.Setup
	Skipped map[string]error
}

// Scanner runs one strategy over many symbols. Symbols are independent, so
// they are evaluated concurrently.
type Scanner struct {
	Workers int
	Logger  *zap.Logger
}

func NewScanner(log *zap.Logger) *Scanner {
	return &Scanner{Workers: runtime.NumCPU(), Logger: logger.OrNop(log)}
}

type scanOutcome struct {
	setup *market.Setup
	err   error
}

// Scan evaluates strat on every series in universe and returns the setups
// ranked by SortSetups. Only context cancellation is returned as an error.
func (s *Scanner) Scan(ctx context.Context, strat Strategy, universe map[string][]market.Bar) (Result, error) {
	log := logger.OrNop(s.Logger)

	symbols := make([]string, 0, len(universe))
	for sym := range universe {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	out := make([]scanOutcome, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.Workers))
	for n, sym := range symbols {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			setup, err := strat.Scan(sym, universe[sym])
			out[n] = scanOutcome{setup: setup, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res := Result{Skipped: make(map[string]error)}
	for n, o := range out {
		sym := symbols[n]
		switch {
		case o.err != nil:
			res.Skipped[sym] = o.err
			logSkip(log, strat.Name(), sym, o.err)
		case o.setup != nil:
			res.Setups = append(res.Setups, *o.setup)
		}
	}
	SortSetups(res.Setups)

	log.Info("scan complete",
		zap.String("strategy", strat.Name()),
		zap.Int("symbols", len(symbols)),
		zap.Int("setups", len(res.Setups)),
		zap.Int("skipped", len(res.Skipped)))
	return res, nil
}

func logSkip(log *zap.Logger, strategy, symbol string, err error) {
	var ide *indicators.InsufficientDataError
	var inv *market.InvalidSetupError
	switch {
	case errors.As(err, &ide):
		log.Debug("not enough bars", zap.String("strategy", strategy), zap.String("symbol", symbol),
			zap.Int("need", ide.Need), zap.Int("have", ide.Have))
	case errors.As(err, &inv):
		log.Info("discarded setup", zap.String("strategy", strategy), zap.String("symbol", symbol),
			zap.String("reason", inv.Reason))
	default:
		log.Warn("scan failed", zap.String("strategy", strategy), zap.String("symbol", symbol), zap.Error(err))
	}
}

// SortSetups orders setups by confidence, highest first, then by symbol.
func SortSetups(setups []market.Setup) {
	sort.SliceStable(setups, func(i, j int) bool {
		if setups[i].Confidence != setups[j].Confidence {
			return setups[i].Confidence > setups[j].Confidence
		}
		return setups[i].Symbol < setups[j].Symbol
	})
}
