package indicators

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rustyeddy/swingtrader/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestBars() []market.Bar {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	raw := [][5]float64{
		{100, 105, 99, 102, 1000},
		{102, 107, 101, 105, 1100},
		{105, 108, 104, 106, 900},
		{106, 110, 105, 108, 1200},
		{108, 112, 107, 110, 1300},
		{110, 113, 109, 111, 800},
		{111, 115, 110, 113, 1000},
		{113, 116, 112, 114, 1500},
		{114, 118, 113, 116, 1400},
		{116, 120, 115, 118, 1600},
	}
	bars := make([]market.Bar, len(raw))
	for i, r := range raw {
		bars[i] = market.Bar{
			Time: start.AddDate(0, 0, i),
			Open: r[0], High: r[1], Low: r[2], Close: r[3], Volume: r[4],
		}
	}
	return bars
}

func TestEMASeries(t *testing.T) {
	t.Parallel()
	bars := createTestBars()

	ema, err := EMASeries(bars, 5)
	require.NoError(t, err)
	require.Len(t, ema, len(bars))

	for i := 0; i < 4; i++ {
		assert.True(t, math.IsNaN(ema[i]), "index %d should be undefined", i)
	}

	// seeded with the first close, alpha = 1/3
	want := 102.0
	for _, b := range bars[1:5] {
		want = b.Close/3 + want*2/3
	}
	assert.InDelta(t, want, ema[4], 1e-9)
	assert.Greater(t, ema[9], ema[4])
}

func TestATRSeries(t *testing.T) {
	t.Parallel()
	bars := createTestBars()

	atr, err := ATRSeries(bars, 3)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(atr[0]))
	assert.True(t, math.IsNaN(atr[1]))

	// TR: bar0 = 6, bar1 = max(6, |107-102|, |101-102|) = 6, bar2 = max(4, 3, 1) = 4
	assert.InDelta(t, 16.0/3.0, atr[2], 1e-9)
	for _, v := range atr[2:] {
		assert.Greater(t, v, 0.0)
	}
}

func TestTrueRangeGap(t *testing.T) {
	t.Parallel()
	prev := market.Bar{Close: 100}
	gapUp := market.Bar{High: 112, Low: 110}
	assert.InDelta(t, 12.0, trueRange(gapUp, prev, true), 1e-9)
	assert.InDelta(t, 2.0, trueRange(gapUp, prev, false), 1e-9)
}

func TestRollingMaxAndMean(t *testing.T) {
	t.Parallel()
	bars := createTestBars()

	hi, err := RollingMaxSeries(bars, 3, High)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(hi[1]))
	assert.InDelta(t, 108.0, hi[2], 1e-9)
	assert.InDelta(t, 120.0, hi[9], 1e-9)

	vol, err := RollingMeanSeries(bars, 4, Volume)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(vol[2]))
	assert.InDelta(t, (1000.0+1100+900+1200)/4, vol[3], 1e-9)
	assert.InDelta(t, (1000.0+1500+1400+1600)/4, vol[9], 1e-9)
}

func TestInsufficientData(t *testing.T) {
	t.Parallel()
	bars := createTestBars()[:3]

	_, err := EMASeries(bars, 5)
	var ide *InsufficientDataError
	require.True(t, errors.As(err, &ide))
	assert.Equal(t, 5, ide.Need)
	assert.Equal(t, 3, ide.Have)

	_, err = Compute(bars, DefaultParams())
	assert.True(t, errors.As(err, &ide))

	_, err = AvgDollarVolume(bars, 20)
	assert.True(t, errors.As(err, &ide))
}

func TestCompute(t *testing.T) {
	t.Parallel()
	bars := createTestBars()

	set, err := Compute(bars, Params{EMA: 3, ATR: 3, High: 4, Volume: 5})
	require.NoError(t, err)
	assert.Len(t, set.EMA, len(bars))
	assert.Len(t, set.ATR, len(bars))
	assert.True(t, math.IsNaN(set.High[2]))
	assert.False(t, math.IsNaN(set.High[3]))
	assert.True(t, math.IsNaN(set.Volume[3]))
	assert.True(t, Defined(set.Volume[4]))
}

func TestRunResets(t *testing.T) {
	t.Parallel()
	bars := createTestBars()
	ema := NewEMA(3)

	first := Run(ema, bars)
	second := Run(ema, bars)
	assert.Equal(t, first[len(first)-1], second[len(second)-1])
	assert.Equal(t, "EMA(3)", ema.Name())
}

func TestAvgDollarVolume(t *testing.T) {
	t.Parallel()
	bars := createTestBars()

	adv, err := AvgDollarVolume(bars, 2)
	require.NoError(t, err)
	assert.InDelta(t, (116.0*1400+118.0*1600)/2, adv, 1e-6)
}
