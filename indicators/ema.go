package indicators

import (
	"fmt"

	"github.com/rustyeddy/swingtrader/market"
)

// EMA is an exponential moving average of closes with alpha = 2/(n+1),
// seeded with the first close and ready after n bars.
type EMA struct {
	n     int
	alpha float64

	seen  int
	value float64
}

func NewEMA(period int) *EMA {
	checkPeriod(period)
	return &EMA{n: period, alpha: 2.0 / float64(period+1)}
}

func (e *EMA) Name() string   { return fmt.Sprintf("EMA(%d)", e.n) }
func (e *EMA) Warmup() int    { return e.n }
func (e *EMA) Ready() bool    { return e.seen >= e.n }
func (e *EMA) Value() float64 { return e.value }

func (e *EMA) Reset() {
	e.seen = 0
	e.value = 0
}

func (e *EMA) Update(b market.Bar) {
	e.seen++
	if e.seen == 1 {
		e.value = b.Close
		return
	}
	e.value = e.alpha*b.Close + (1.0-e.alpha)*e.value
}

// EMASeries returns EMA(period) aligned with bars.
func EMASeries(bars []market.Bar, period int) ([]float64, error) {
	return batch(NewEMA(period), bars)
}
