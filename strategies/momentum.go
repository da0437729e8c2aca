package strategies

import (
	"math"

	"github.com/rustyeddy/swingtrader/indicators"
	"github.com/rustyeddy/swingtrader/market"
	"github.com/rustyeddy/swingtrader/risk"
)

// Momentum buys a close above the prior Lookback-bar high on expanding
// volume while price is above its EMA.
type Momentum struct {
	Params
}

// NewMomentum trails from +1R unless p sets TrailR.
func NewMomentum(p Params) *Momentum {
	if p.TrailR == 0 {
		p.TrailR = 1.0
	}
	return &Momentum{Params: p}
}

func (m *Momentum) Name() string { return MomentumName }

func (m *Momentum) Exits() risk.ExitPolicy { return m.exits() }

// MinBars needs one bar beyond the lookback so the prior high is defined.
func (m *Momentum) MinBars() int {
	return max(m.Lookback+1, m.ATRPeriod, m.LiquidityWindow)
}

func (m *Momentum) Scan(symbol string, bars []market.Bar) (*market.Setup, error) {
	if len(bars) < m.MinBars() {
		return nil, &indicators.InsufficientDataError{Need: m.MinBars(), Have: len(bars)}
	}
	set, err := indicators.Compute(bars, m.indicatorParams())
	if err != nil {
		return nil, err
	}

	i := len(bars) - 1
	bar := bars[i]
	level, volAvg, ema, atr := set.High[i-1], set.Volume[i], set.EMA[i], set.ATR[i]
	if !allDefined(level, volAvg, ema, atr) || volAvg <= 0 {
		return nil, nil
	}

	if bar.Close <= level || bar.Volume <= m.VolumeMult*volAvg || bar.Close <= ema {
		return nil, nil
	}

	volRatio := bar.Volume / volAvg
	trend := (bar.Close - ema) / ema
	conf := math.Min((volRatio/m.VolumeMult)*0.5+math.Min(trend*10, 1)*0.5, 1)

	return m.build(m.Name(), symbol, bars, atr, conf, level, bar.Close-m.ATRStopMult*atr)
}
