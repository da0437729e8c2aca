package strategies

import (
	"time"

	"github.com/rustyeddy/swingtrader/market"
)

var t0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func bar(i int, open, high, low, close, vol float64) market.Bar {
	return market.Bar{Time: t0.AddDate(0, 0, i), Open: open, High: high, Low: low, Close: close, Volume: vol}
}

// flatBars are n quiet bars around 100.
func flatBars(n int) []market.Bar {
	out := make([]market.Bar, n)
	for i := range out {
		out[i] = bar(i, 100, 101, 99, 100, 1_000_000)
	}
	return out
}

// momentumSeries is 25 bars with a single breakout at bar 21.
func momentumSeries() []market.Bar {
	bars := flatBars(21)
	bars = append(bars, bar(21, 100, 106, 100, 105, 2_000_000))
	for i := 22; i < 25; i++ {
		bars = append(bars, bar(i, 103, 104, 102, 103, 1_000_000))
	}
	return bars
}

// pullbackSeries is 31 bars: breakout at 22, a fading drift back to the
// EMA, then a re-break on rising volume at bar 30.
func pullbackSeries() []market.Bar {
	bars := flatBars(22)
	rows := [][5]float64{
		{100, 105, 100, 104, 2_000_000},     // 22 breakout
		{104, 104.5, 103, 103.5, 1_800_000}, // 23
		{103.5, 104, 102.5, 103, 1_600_000}, // 24
		{103, 103.5, 101.5, 102.5, 1_400_000},
		{102.5, 102.8, 101.2, 102, 1_200_000},
		{102, 102.5, 101, 101.8, 1_100_000},
		{101.8, 102.2, 100.9, 101.6, 1_000_000},
		{101.6, 102, 101, 101.7, 900_000}, // 29
		{101.8, 103.5, 101.5, 103, 1_500_000}, // 30 re-break
	}
	for n, r := range rows {
		bars = append(bars, bar(22+n, r[0], r[1], r[2], r[3], r[4]))
	}
	return bars
}
