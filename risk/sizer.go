package risk

import (
	"fmt"
	"math"

	"github.com/rustyeddy/swingtrader/market"
)

// SizedOrder is a setup with a concrete whole-share quantity. Notional and
// DollarRisk always come from Shares, never from the continuous bounds.
type SizedOrder struct {
	Setup        market.Setup
	Shares       int
	RiskPerShare float64
	Notional     float64
	DollarRisk   float64
	PositionPct  float64
	RiskPct      float64
}

// IsZero reports a sized order with no shares, meaning no trade.
func (o SizedOrder) IsZero() bool {
	return o.Shares <= 0
}

// Size converts a setup into a share count limited by both the risk budget
// and the position size cap.
func Size(setup market.Setup, equity, riskFraction, maxPositionFraction float64) (SizedOrder, error) {
	rps := setup.Entry - setup.Stop
	if rps <= 0 {
		return SizedOrder{}, &market.InvalidSetupError{
			Symbol: setup.Symbol,
			Reason: fmt.Sprintf("non-positive risk per share (entry %.4f, stop %.4f)", setup.Entry, setup.Stop),
		}
	}
	if equity <= 0 {
		return SizedOrder{}, fmt.Errorf("size %s: equity must be positive, got %.2f", setup.Symbol, equity)
	}
	if riskFraction <= 0 || maxPositionFraction <= 0 {
		return SizedOrder{}, fmt.Errorf("size %s: risk and position fractions must be positive", setup.Symbol)
	}

	byRisk := math.Floor(equity * riskFraction / rps)
	byNotional := math.Floor(equity * maxPositionFraction / setup.Entry)
	shares := int(math.Max(0, math.Min(byRisk, byNotional)))

	o := SizedOrder{
		Setup:        setup,
		Shares:       shares,
		RiskPerShare: rps,
		Notional:     float64(shares) * setup.Entry,
		DollarRisk:   float64(shares) * rps,
	}
	o.PositionPct = o.Notional / equity
	o.RiskPct = o.DollarRisk / equity
	return o, nil
}
