package risk

import "math"

// RR is reward over risk for a long trade.
func RR(entry, stop, target float64) float64 {
	risk := entry - stop
	if risk <= 0 {
		return 0
	}
	return (target - entry) / risk
}

// Pct is part over whole, +Inf when whole is not positive.
func Pct(part, whole float64) float64 {
	if whole <= 0 {
		return math.Inf(1)
	}
	return part / whole
}

// RMultiple is P&L expressed in units of the initial dollar risk.
func RMultiple(pnl, initialRisk float64) float64 {
	if initialRisk <= 0 {
		return 0
	}
	return pnl / initialRisk
}
