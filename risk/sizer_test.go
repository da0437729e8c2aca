package risk

import (
	"errors"
	"testing"

	"github.com/rustyeddy/swingtrader/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSize_NotionalBindsBeforeRisk(t *testing.T) {
	t.Parallel()

	setup := market.Setup{Symbol: "XYZ", Entry: 308.53, Stop: 307.10, Target: 311.39}
	o, err := Size(setup, 100_000, 0.01, 0.30)
	require.NoError(t, err)

	assert.Equal(t, 97, o.Shares)
	assert.InDelta(t, 138.71, o.DollarRisk, 1e-6)
	assert.InDelta(t, 97*308.53, o.Notional, 1e-6)
	assert.InDelta(t, 1.43, o.RiskPerShare, 1e-9)
	assert.LessOrEqual(t, o.Notional, 100_000*0.30)
	assert.LessOrEqual(t, o.DollarRisk, 100_000*0.01)
}

func TestSize_RiskBinds(t *testing.T) {
	t.Parallel()

	setup := market.Setup{Symbol: "ABC", Entry: 50, Stop: 45, Target: 60}
	o, err := Size(setup, 100_000, 0.01, 0.30)
	require.NoError(t, err)

	// risk: 1000/5 = 200 shares, notional cap: 30000/50 = 600
	assert.Equal(t, 200, o.Shares)
	assert.InDelta(t, 1000.0, o.DollarRisk, 1e-9)
	assert.InDelta(t, 10_000.0, o.Notional, 1e-9)
	assert.InDelta(t, 0.10, o.PositionPct, 1e-12)
	assert.InDelta(t, 0.01, o.RiskPct, 1e-12)
}

func TestSize_ZeroSharesIsNotAnError(t *testing.T) {
	t.Parallel()

	setup := market.Setup{Symbol: "BRK", Entry: 600_000, Stop: 590_000, Target: 620_000}
	o, err := Size(setup, 100_000, 0.01, 0.30)
	require.NoError(t, err)
	assert.True(t, o.IsZero())
	assert.Equal(t, 0.0, o.Notional)
	assert.Equal(t, 0.0, o.DollarRisk)
}

func TestSize_InvalidSetup(t *testing.T) {
	t.Parallel()

	for _, stop := range []float64{100, 101} {
		_, err := Size(market.Setup{Symbol: "BAD", Entry: 100, Stop: stop, Target: 110}, 100_000, 0.01, 0.3)
		var inv *market.InvalidSetupError
		assert.True(t, errors.As(err, &inv), "stop %.0f", stop)
	}

	_, err := Size(market.Setup{Symbol: "OK", Entry: 100, Stop: 90, Target: 120}, 0, 0.01, 0.3)
	assert.Error(t, err)
}

func TestSize_InvariantsHoldAcrossInputs(t *testing.T) {
	t.Parallel()

	equities := []float64{5_000, 25_000, 100_000, 1_234_567.89}
	entries := []float64{2.17, 19.99, 47.5, 308.53, 1234.5}
	stopsPct := []float64{0.005, 0.02, 0.07, 0.15}
	riskFracs := []float64{0.0025, 0.01, 0.02}
	posFracs := []float64{0.05, 0.3, 1}

	for _, eq := range equities {
		for _, entry := range entries {
			for _, sp := range stopsPct {
				setup := market.Setup{Symbol: "X", Entry: entry, Stop: entry * (1 - sp), Target: entry * (1 + 2*sp)}
				for _, rf := range riskFracs {
					for _, pf := range posFracs {
						o, err := Size(setup, eq, rf, pf)
						require.NoError(t, err)
						assert.GreaterOrEqual(t, o.Shares, 0)
						assert.LessOrEqual(t, o.DollarRisk, eq*rf+1e-6)
						assert.LessOrEqual(t, o.Notional, eq*pf+1e-6)
						assert.InDelta(t, float64(o.Shares)*entry, o.Notional, 1e-6)

						// one more share would break a limit
						next := float64(o.Shares + 1)
						broke := next*entry > eq*pf-1e-6 || next*setup.RiskPerShare() > eq*rf-1e-6
						assert.True(t, broke)
					}
				}
			}
		}
	}
}
