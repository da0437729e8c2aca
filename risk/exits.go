package risk

import (
	"math"

	"github.com/rustyeddy/swingtrader/market"
)

// ExitReason names why a position closed.
type ExitReason string

const (
	ExitStop          ExitReason = "stop"
	ExitTarget        ExitReason = "target"
	ExitTrailingStop  ExitReason = "trailing_stop"
	ExitBreakevenStop ExitReason = "breakeven_stop"
	ExitManual        ExitReason = "manual"
	ExitEndOfData     ExitReason = "end_of_data"
)

// ExitPolicy controls how an open position's stop moves. A zero threshold
// disables that rule.
type ExitPolicy struct {
	BreakevenR   float64 // move stop to entry once this R is reached
	TrailR       float64 // start trailing once this R is reached
	TrailATRMult float64 // trail distance in ATRs below the close
	ATRPeriod    int     // window of the ATR the trail is measured in
}

// UpdateTrail applies breakeven and trailing rules using bar's close and
// the current ATR. The stop only ever moves up.
func UpdateTrail(p *Position, bar market.Bar, atr float64, pol ExitPolicy) {
	r := p.UnrealizedR(bar.Close)

	if pol.BreakevenR > 0 && !p.Breakeven && r >= pol.BreakevenR {
		if p.EntryPrice > p.Stop {
			p.Stop = p.EntryPrice
		}
		p.Breakeven = true
	}

	if pol.TrailR > 0 && r >= pol.TrailR {
		p.State = TrailingActive
	}
	if p.State == TrailingActive && pol.TrailATRMult > 0 && atr > 0 && !math.IsNaN(atr) {
		if trail := bar.Close - pol.TrailATRMult*atr; trail > p.Stop {
			p.Stop = trail
		}
	}
}

// CheckExit decides whether bar touched the stop or target. When both are
// inside the bar's range the stop wins. A bar opening through the stop fills
// at the open.
func CheckExit(p *Position, bar market.Bar) (price float64, reason ExitReason, hit bool) {
	stopHit := bar.Low <= p.Stop
	targetHit := bar.High >= p.Target

	if stopHit {
		price = p.Stop
		if bar.Open < p.Stop {
			price = bar.Open
		}
		return price, stopReason(p), true
	}
	if targetHit {
		return p.Target, ExitTarget, true
	}
	return 0, "", false
}

func stopReason(p *Position) ExitReason {
	switch {
	case p.Stop > p.EntryPrice:
		return ExitTrailingStop
	case p.Breakeven && p.Stop >= p.EntryPrice:
		return ExitBreakevenStop
	}
	return ExitStop
}
