package strategies

import (
	"math"

	"github.com/rustyeddy/swingtrader/indicators"
	"github.com/rustyeddy/swingtrader/market"
	"github.com/rustyeddy/swingtrader/risk"
)

// Pullback buys the first upward re-break after a breakout has pulled back
// to the EMA on fading volume.
type Pullback struct {
	Params

	BreakoutWindow int     // bars back to search for the breakout
	PullbackWindow int     // bars before the signal that form the pullback
	EMATolerance   float64 // max |low-ema|/ema to count as touching the EMA
	MinDeclines    int     // bars in the pullback with volume below the prior bar
}

// NewPullback trails from +1.5R unless p sets TrailR.
func NewPullback(p Params) *Pullback {
	if p.TrailR == 0 {
		p.TrailR = 1.5
	}
	return &Pullback{
		Params:         p,
		BreakoutWindow: 10,
		PullbackWindow: 5,
		EMATolerance:   0.02,
		MinDeclines:    2,
	}
}

func (pb *Pullback) Name() string { return PullbackName }

func (pb *Pullback) Exits() risk.ExitPolicy { return pb.exits() }

// MinBars covers the breakout search plus the high it is measured against.
func (pb *Pullback) MinBars() int {
	return max(pb.Lookback+pb.BreakoutWindow+1, pb.ATRPeriod, pb.LiquidityWindow, pb.PullbackWindow+1)
}

func (pb *Pullback) Scan(symbol string, bars []market.Bar) (*market.Setup, error) {
	if len(bars) < pb.MinBars() {
		return nil, &indicators.InsufficientDataError{Need: pb.MinBars(), Have: len(bars)}
	}
	set, err := indicators.Compute(bars, pb.indicatorParams())
	if err != nil {
		return nil, err
	}

	i := len(bars) - 1
	bar, prev := bars[i], bars[i-1]

	// re-break: price and volume must both rise
	if bar.Close <= prev.High || bar.Volume <= prev.Volume {
		return nil, nil
	}

	if !pb.hadBreakout(bars, set, i) {
		return nil, nil
	}

	dist, ok := pb.pulledBack(bars, set, i)
	if !ok {
		return nil, nil
	}

	atr, volAvg := set.ATR[i], set.Volume[i]
	if !allDefined(atr, volAvg) || volAvg <= 0 {
		return nil, nil
	}

	lowest := math.Inf(1)
	for _, b := range bars[max(0, i-4):] {
		lowest = math.Min(lowest, b.Low)
	}

	emaScore := math.Max(0, 1-dist/0.05)
	volScore := math.Min(bar.Volume/volAvg/2, 1)
	conf := 0.4*emaScore + 0.6*volScore

	return pb.build(pb.Name(), symbol, bars, atr, conf, lowest, bar.Close-pb.ATRStopMult*atr)
}

// hadBreakout looks for a close above the prior high in [i-BreakoutWindow, i-2).
func (pb *Pullback) hadBreakout(bars []market.Bar, set indicators.Set, i int) bool {
	for j := max(1, i-pb.BreakoutWindow); j < i-2; j++ {
		level := set.High[j-1]
		if indicators.Defined(level) && bars[j].Close > level {
			return true
		}
	}
	return false
}

// pulledBack reports whether a bar in the pullback window touched the EMA
// while volume faded, and returns the closest relative distance.
func (pb *Pullback) pulledBack(bars []market.Bar, set indicators.Set, i int) (float64, bool) {
	closest := math.Inf(1)
	declines := 0
	for k := max(1, i-pb.PullbackWindow); k < i; k++ {
		if ema := set.EMA[k]; indicators.Defined(ema) && ema > 0 {
			closest = math.Min(closest, math.Abs(bars[k].Low-ema)/ema)
		}
		if bars[k].Volume < bars[k-1].Volume {
			declines++
		}
	}
	return closest, closest < pb.EMATolerance && declines >= pb.MinDeclines
}
