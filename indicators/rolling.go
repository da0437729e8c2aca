package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/swingtrader/market"
)

// Field selects the bar value a rolling indicator reads.
type Field func(market.Bar) float64

func Close(b market.Bar) float64        { return b.Close }
func High(b market.Bar) float64         { return b.High }
func Low(b market.Bar) float64          { return b.Low }
func Volume(b market.Bar) float64       { return b.Volume }
func DollarVolume(b market.Bar) float64 { return b.Close * b.Volume }

// ring is a fixed-size window of the most recent values.
type ring struct {
	buf  []float64
	next int
	n    int
}

func newRing(size int) *ring { return &ring{buf: make([]float64, size)} }

func (r *ring) push(v float64) {
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if r.n < len(r.buf) {
		r.n++
	}
}

func (r *ring) full() bool { return r.n == len(r.buf) }

func (r *ring) reset() {
	r.next = 0
	r.n = 0
}

// mean sums the window each call so long runs do not drift.
func (r *ring) mean() float64 {
	if r.n == 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := 0; i < r.n; i++ {
		sum += r.buf[i]
	}
	return sum / float64(r.n)
}

func (r *ring) max() float64 {
	if r.n == 0 {
		return math.NaN()
	}
	m := math.Inf(-1)
	for i := 0; i < r.n; i++ {
		m = math.Max(m, r.buf[i])
	}
	return m
}

// SMA is the simple rolling mean of a bar field.
type SMA struct {
	period int
	field  Field
	ring   *ring
}

func NewSMA(period int, f Field) *SMA {
	checkPeriod(period)
	return &SMA{period: period, field: f, ring: newRing(period)}
}

func (s *SMA) Name() string        { return fmt.Sprintf("SMA(%d)", s.period) }
func (s *SMA) Warmup() int         { return s.period }
func (s *SMA) Ready() bool         { return s.ring.full() }
func (s *SMA) Value() float64      { return s.ring.mean() }
func (s *SMA) Reset()              { s.ring.reset() }
func (s *SMA) Update(b market.Bar) { s.ring.push(s.field(b)) }

// RollingMax is the highest value of a bar field over the window.
type RollingMax struct {
	period int
	field  Field
	ring   *ring
}

func NewRollingMax(period int, f Field) *RollingMax {
	checkPeriod(period)
	return &RollingMax{period: period, field: f, ring: newRing(period)}
}

func (m *RollingMax) Name() string        { return fmt.Sprintf("MAX(%d)", m.period) }
func (m *RollingMax) Warmup() int         { return m.period }
func (m *RollingMax) Ready() bool         { return m.ring.full() }
func (m *RollingMax) Value() float64      { return m.ring.max() }
func (m *RollingMax) Reset()              { m.ring.reset() }
func (m *RollingMax) Update(b market.Bar) { m.ring.push(m.field(b)) }

// RollingMaxSeries returns the rolling max of f aligned with bars.
func RollingMaxSeries(bars []market.Bar, period int, f Field) ([]float64, error) {
	return batch(NewRollingMax(period, f), bars)
}

// RollingMeanSeries returns the rolling mean of f aligned with bars.
func RollingMeanSeries(bars []market.Bar, period int, f Field) ([]float64, error) {
	return batch(NewSMA(period, f), bars)
}

// AvgDollarVolume is the mean close*volume of the last period bars.
func AvgDollarVolume(bars []market.Bar, period int) (float64, error) {
	checkPeriod(period)
	if len(bars) < period {
		return 0, &InsufficientDataError{Need: period, Have: len(bars)}
	}
	sum := 0.0
	for _, b := range bars[len(bars)-period:] {
		sum += DollarVolume(b)
	}
	return sum / float64(period), nil
}
