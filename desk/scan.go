package desk

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rustyeddy/swingtrader/internal/logger"
	"github.com/rustyeddy/swingtrader/market"
	"github.com/rustyeddy/swingtrader/strategies"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Fetch loads bars for every symbol from src. Symbols the source cannot
// serve land in skipped; only context cancellation fails the call.
func Fetch(ctx context.Context, src market.DataSource, symbols []string, timeframe string, start, end time.Time, log *zap.Logger) (map[string][]market.Bar, map[string]error, error) {
	log = logger.OrNop(log)

	var mu sync.Mutex
	universe := make(map[string][]market.Bar, len(symbols))
	skipped := make(map[string]error)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, sym := range symbols {
		g.Go(func() error {
			bars, err := src.GetBars(gctx, sym, timeframe, start, end)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				var du *market.DataUnavailableError
				if errors.As(err, &du) {
					log.Info("no data", zap.String("symbol", sym), zap.String("reason", du.Reason))
				} else {
					log.Warn("fetch failed", zap.String("symbol", sym), zap.Error(err))
				}
				mu.Lock()
				skipped[sym] = err
				mu.Unlock()
				return nil
			}
			mu.Lock()
			universe[sym] = bars
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return universe, skipped, nil
}

// Scan fetches symbols and runs strat over them. Fetch failures are merged
// into the result's Skipped map.
func Scan(ctx context.Context, src market.DataSource, strat strategies.Strategy, symbols []string, timeframe string, start, end time.Time, log *zap.Logger) (strategies.Result, map[string][]market.Bar, error) {
	universe, skipped, err := Fetch(ctx, src, symbols, timeframe, start, end, log)
	if err != nil {
		return strategies.Result{}, nil, err
	}
	res, err := strategies.NewScanner(log).Scan(ctx, strat, universe)
	if err != nil {
		return strategies.Result{}, nil, err
	}
	for sym, e := range skipped {
		res.Skipped[sym] = e
	}
	return res, universe, nil
}
