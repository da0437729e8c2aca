package market

import (
	"fmt"
	"math"
	"time"
)

// Bar is one OHLCV price bar.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Range returns high minus low.
func (b Bar) Range() float64 {
	return b.High - b.Low
}

// Closes returns the close column of bars.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Highs returns the high column of bars.
func Highs(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

// Volumes returns the volume column of bars.
func Volumes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}

// ValidateBars checks that timestamps strictly increase and every bar is a
// sane OHLCV record.
func ValidateBars(bars []Bar) error {
	for i, b := range bars {
		if b.Time.IsZero() {
			return fmt.Errorf("bar %d: missing timestamp", i)
		}
		for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("bar %d (%s): non-finite value %v", i, b.Time.Format(time.RFC3339), v)
			}
		}
		if b.Low > b.High {
			return fmt.Errorf("bar %d (%s): low %.4f above high %.4f", i, b.Time.Format(time.RFC3339), b.Low, b.High)
		}
		if b.Open < b.Low || b.Open > b.High || b.Close < b.Low || b.Close > b.High {
			return fmt.Errorf("bar %d (%s): open/close outside high-low range", i, b.Time.Format(time.RFC3339))
		}
		if b.Volume < 0 {
			return fmt.Errorf("bar %d (%s): negative volume", i, b.Time.Format(time.RFC3339))
		}
		if i > 0 && !b.Time.After(bars[i-1].Time) {
			return fmt.Errorf("bar %d (%s): timestamp not after previous bar", i, b.Time.Format(time.RFC3339))
		}
	}
	return nil
}

// Window returns the sub-slice of bars whose time falls in [start, end].
// Zero start or end leave that side open.
func Window(bars []Bar, start, end time.Time) []Bar {
	lo, hi := 0, len(bars)
	for lo < hi && !start.IsZero() && bars[lo].Time.Before(start) {
		lo++
	}
	for hi > lo && !end.IsZero() && bars[hi-1].Time.After(end) {
		hi--
	}
	return bars[lo:hi]
}
