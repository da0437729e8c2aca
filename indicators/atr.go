package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/swingtrader/market"
)

// trueRange of the first bar is its high-low range.
func trueRange(c, prev market.Bar, hasPrev bool) float64 {
	tr := c.High - c.Low
	if !hasPrev {
		return tr
	}
	return math.Max(tr, math.Max(math.Abs(c.High-prev.Close), math.Abs(c.Low-prev.Close)))
}

// ATR is the simple rolling mean of true range over period bars.
type ATR struct {
	period int
	ring   *ring

	prev    market.Bar
	hasPrev bool
}

func NewATR(period int) *ATR {
	checkPeriod(period)
	return &ATR{period: period, ring: newRing(period)}
}

func (a *ATR) Name() string   { return fmt.Sprintf("ATR(%d)", a.period) }
func (a *ATR) Warmup() int    { return a.period }
func (a *ATR) Ready() bool    { return a.ring.full() }
func (a *ATR) Value() float64 { return a.ring.mean() }

func (a *ATR) Reset() {
	a.ring.reset()
	a.hasPrev = false
}

func (a *ATR) Update(b market.Bar) {
	a.ring.push(trueRange(b, a.prev, a.hasPrev))
	a.prev = b
	a.hasPrev = true
}

// ATRSeries returns ATR(period) aligned with bars.
func ATRSeries(bars []market.Bar, period int) ([]float64, error) {
	return batch(NewATR(period), bars)
}
