package risk

import "fmt"

// Limits are the hard trading limits every order is checked against.
// Fractions are expressed as 0.01 for 1%.
type Limits struct {
	MaxPositions       int
	MaxPositionPct     float64 // notional / equity
	MaxRiskPct         float64 // dollar risk / equity
	MinPrice           float64
	MinAvgDollarVolume float64
	SlippagePct        float64
	CommissionPerTrade float64
}

// Validate rejects limits that are out of range. It does not supply
// defaults for anything.
func (l Limits) Validate() error {
	if l.MaxPositions < 1 {
		return fmt.Errorf("max_positions must be at least 1, got %d", l.MaxPositions)
	}
	if l.MaxPositionPct <= 0 || l.MaxPositionPct > 1 {
		return fmt.Errorf("max_position_size_pct must be in (0, 1], got %g", l.MaxPositionPct)
	}
	if l.MaxRiskPct <= 0 || l.MaxRiskPct > 0.1 {
		return fmt.Errorf("max_risk_per_trade_pct must be in (0, 0.1], got %g", l.MaxRiskPct)
	}
	if l.MinPrice < 0 {
		return fmt.Errorf("min_price must not be negative, got %g", l.MinPrice)
	}
	if l.MinAvgDollarVolume < 0 {
		return fmt.Errorf("min_avg_dollar_volume must not be negative, got %g", l.MinAvgDollarVolume)
	}
	if l.SlippagePct < 0 || l.SlippagePct >= 0.05 {
		return fmt.Errorf("slippage_pct must be in [0, 0.05), got %g", l.SlippagePct)
	}
	if l.CommissionPerTrade < 0 {
		return fmt.Errorf("commission_per_trade must not be negative, got %g", l.CommissionPerTrade)
	}
	return nil
}

// BuyFill is the price paid for a long entry after slippage.
func (l Limits) BuyFill(price float64) float64 {
	return price * (1 + l.SlippagePct)
}

// SellFill is the price received for a long exit after slippage.
func (l Limits) SellFill(price float64) float64 {
	return price * (1 - l.SlippagePct)
}
