// Package strategies turns bar series into trade setups.
//
// The set of strategies is closed: Momentum and Pullback. Each Scan is a
// pure function of the bars it is given, so the same code serves live
// scanning and backtest replay.
package strategies

import (
	"fmt"
	"math"
	"strings"

	"github.com/rustyeddy/swingtrader/indicators"
	"github.com/rustyeddy/swingtrader/market"
	"github.com/rustyeddy/swingtrader/risk"
)

const (
	MomentumName = "momentum"
	PullbackName = "pullback"
)

// Strategy scans the last bar of a series for a long setup. A nil setup with
// a nil error means no signal.
type Strategy interface {
	Name() string
	MinBars() int
	Scan(symbol string, bars []market.Bar) (*market.Setup, error)
	Exits() risk.ExitPolicy
}

// Params are the knobs shared by both strategies.
type Params struct {
	Lookback        int     `json:"lookback" yaml:"lookback"`
	ATRPeriod       int     `json:"atr_period" yaml:"atr_period"`
	VolumeMult      float64 `json:"volume_multiplier" yaml:"volume_multiplier"`
	ATRStopMult     float64 `json:"atr_stop_multiplier" yaml:"atr_stop_multiplier"`
	TargetR         float64 `json:"target_r" yaml:"target_r"`
	BreakevenR      float64 `json:"breakeven_r" yaml:"breakeven_r"`
	TrailR          float64 `json:"trail_r" yaml:"trail_r"`
	TrailATRMult    float64 `json:"trail_atr_multiplier" yaml:"trail_atr_multiplier"`
	LiquidityWindow int     `json:"liquidity_window" yaml:"liquidity_window"`
}

// DefaultParams returns the standard 20-bar settings.
func DefaultParams() Params {
	return Params{
		Lookback:        20,
		ATRPeriod:       14,
		VolumeMult:      1.5,
		ATRStopMult:     2.0,
		TargetR:         2.0,
		BreakevenR:      1.0,
		TrailATRMult:    2.0,
		LiquidityWindow: 20,
	}
}

// Validate checks that every window and multiplier is usable.
func (p Params) Validate() error {
	switch {
	case p.Lookback < 2:
		return fmt.Errorf("lookback must be at least 2, got %d", p.Lookback)
	case p.ATRPeriod < 1:
		return fmt.Errorf("atr_period must be positive, got %d", p.ATRPeriod)
	case p.LiquidityWindow < 1:
		return fmt.Errorf("liquidity_window must be positive, got %d", p.LiquidityWindow)
	case p.VolumeMult <= 0:
		return fmt.Errorf("volume_multiplier must be positive, got %g", p.VolumeMult)
	case p.ATRStopMult <= 0:
		return fmt.Errorf("atr_stop_multiplier must be positive, got %g", p.ATRStopMult)
	case p.TargetR <= 0:
		return fmt.Errorf("target_r must be positive, got %g", p.TargetR)
	}
	return nil
}

func (p Params) indicatorParams() indicators.Params {
	return indicators.Params{EMA: p.Lookback, ATR: p.ATRPeriod, High: p.Lookback, Volume: p.Lookback}
}

func (p Params) exits() risk.ExitPolicy {
	return risk.ExitPolicy{
		BreakevenR:   p.BreakevenR,
		TrailR:       p.TrailR,
		TrailATRMult: p.TrailATRMult,
		ATRPeriod:    p.ATRPeriod,
	}
}

// build finishes a setup from an entry and the candidate stops, taking the
// lowest stop. Setups that fail validation come back as errors.
func (p Params) build(name, symbol string, bars []market.Bar, atr, conf float64, stops ...float64) (*market.Setup, error) {
	i := len(bars) - 1
	entry := bars[i].Close

	stop := math.Inf(1)
	for _, s := range stops {
		stop = math.Min(stop, s)
	}
	adv, err := indicators.AvgDollarVolume(bars, p.LiquidityWindow)
	if err != nil {
		return nil, err
	}

	s := &market.Setup{
		Symbol:          symbol,
		Strategy:        name,
		Entry:           entry,
		Stop:            stop,
		Target:          entry + p.TargetR*(entry-stop),
		Confidence:      clamp01(conf),
		Index:           i,
		Time:            bars[i].Time,
		ATR:             atr,
		AvgDollarVolume: adv,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	return math.Min(x, 1)
}

func allDefined(xs ...float64) bool {
	for _, x := range xs {
		if !indicators.Defined(x) {
			return false
		}
	}
	return true
}

// Names lists the registered strategies.
func Names() []string {
	return []string{MomentumName, PullbackName}
}

// ByName builds a strategy with params p.
func ByName(name string, p Params) (Strategy, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("strategy %s: %w", name, err)
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case MomentumName:
		return NewMomentum(p), nil
	case PullbackName:
		return NewPullback(p), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
}
