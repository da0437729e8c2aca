// Package indicators computes rolling technical features over bar series.
//
// Every indicator is available as a streaming Indicator and as a batch
// function returning one value per input bar. Values before an indicator is
// warmed up are NaN and must never be read as zero.
package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/swingtrader/market"
)

// Indicator is a streaming indicator updated one bar at a time.
type Indicator interface {
	Name() string
	Warmup() int
	Reset()
	Update(b market.Bar)
	Ready() bool
	Value() float64
}

// InsufficientDataError reports that a series is shorter than the window an
// indicator or strategy needs.
type InsufficientDataError struct {
	Need int
	Have int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need %d bars, have %d", e.Need, e.Have)
}

// Run feeds bars through ind and returns the aligned output series.
func Run(ind Indicator, bars []market.Bar) []float64 {
	ind.Reset()
	out := make([]float64, len(bars))
	for i, b := range bars {
		ind.Update(b)
		if ind.Ready() {
			out[i] = ind.Value()
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

func batch(ind Indicator, bars []market.Bar) ([]float64, error) {
	if len(bars) < ind.Warmup() {
		return nil, &InsufficientDataError{Need: ind.Warmup(), Have: len(bars)}
	}
	return Run(ind, bars), nil
}

func checkPeriod(period int) {
	if period <= 0 {
		panic(fmt.Sprintf("indicator period must be > 0, got %d", period))
	}
}

// Defined reports whether v holds a real indicator value.
func Defined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Last returns the final value of a series, NaN for an empty one.
func Last(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return xs[len(xs)-1]
}

// Params are the lookback windows used by Compute.
type Params struct {
	EMA    int
	ATR    int
	High   int
	Volume int
}

// DefaultParams are EMA(20), ATR(14), 20-bar high and 20-bar volume mean.
func DefaultParams() Params {
	return Params{EMA: 20, ATR: 14, High: 20, Volume: 20}
}

// Window returns the largest of the configured lookbacks.
func (p Params) Window() int {
	return max(p.EMA, p.ATR, p.High, p.Volume)
}

// Set holds the per-bar features strategies read.
type Set struct {
	EMA    []float64
	ATR    []float64
	High   []float64 // rolling max of high
	Volume []float64 // rolling mean of volume
}

// Compute calculates every feature in one pass over bars.
func Compute(bars []market.Bar, p Params) (Set, error) {
	if n := p.Window(); len(bars) < n {
		return Set{}, &InsufficientDataError{Need: n, Have: len(bars)}
	}
	return Set{
		EMA:    Run(NewEMA(p.EMA), bars),
		ATR:    Run(NewATR(p.ATR), bars),
		High:   Run(NewRollingMax(p.High, High), bars),
		Volume: Run(NewSMA(p.Volume, Volume), bars),
	}, nil
}
