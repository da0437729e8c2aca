package risk

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Check codes, in the order Validate runs them.
const (
	CheckDuplicate    = "duplicate_position"
	CheckMaxPositions = "max_positions"
	CheckMinPrice     = "min_price"
	CheckLiquidity    = "min_liquidity"
	CheckPositionSize = "max_position_size"
	CheckRiskPerTrade = "max_risk_per_trade"
	CheckBuyingPower  = "buying_power"
)

// tolerance absorbs float noise on dollar comparisons, well under a cent.
const tolerance = 1e-6

var money = message.NewPrinter(language.English)

// Decision is the validator's verdict. A rejected decision names the first
// check that failed.
type Decision struct {
	Allowed bool
	Check   string
	Reason  string
}

// Err returns nil for an allowed decision and a *RiskRejectedError otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &RiskRejectedError{Check: d.Check, Reason: d.Reason}
}

// RiskRejectedError carries the code of the failed check.
type RiskRejectedError struct {
	Check  string
	Reason string
}

func (e *RiskRejectedError) Error() string {
	return fmt.Sprintf("risk rejected (%s): %s", e.Check, e.Reason)
}

// Check is one validator rule. Pass returns an empty reason when the order
// is acceptable.
type Check struct {
	Code string
	Pass func(o SizedOrder, ps *PortfolioState, l Limits) string
}

// Checks returns the validator rules in evaluation order.
func Checks() []Check {
	return []Check{
		{CheckDuplicate, checkDuplicate},
		{CheckMaxPositions, checkMaxPositions},
		{CheckMinPrice, checkMinPrice},
		{CheckLiquidity, checkLiquidity},
		{CheckPositionSize, checkPositionSize},
		{CheckRiskPerTrade, checkRiskPerTrade},
		{CheckBuyingPower, checkBuyingPower},
	}
}

// Validate runs every check in order and stops at the first failure.
func Validate(o SizedOrder, ps *PortfolioState, l Limits) Decision {
	for _, c := range Checks() {
		if reason := c.Pass(o, ps, l); reason != "" {
			return Decision{Allowed: false, Check: c.Code, Reason: reason}
		}
	}
	return Decision{Allowed: true}
}

func checkDuplicate(o SizedOrder, ps *PortfolioState, _ Limits) string {
	if ps.Has(o.Setup.Symbol) {
		return fmt.Sprintf("duplicate position: %s already open", o.Setup.Symbol)
	}
	return ""
}

func checkMaxPositions(_ SizedOrder, ps *PortfolioState, l Limits) string {
	if ps.Count() >= l.MaxPositions {
		return fmt.Sprintf("max positions: %d open, limit %d", ps.Count(), l.MaxPositions)
	}
	return ""
}

func checkMinPrice(o SizedOrder, _ *PortfolioState, l Limits) string {
	if o.Setup.Entry < l.MinPrice {
		return fmt.Sprintf("price %.2f below minimum %.2f", o.Setup.Entry, l.MinPrice)
	}
	return ""
}

func checkLiquidity(o SizedOrder, _ *PortfolioState, l Limits) string {
	if o.Setup.AvgDollarVolume < l.MinAvgDollarVolume {
		return money.Sprintf("avg dollar volume $%.0f below minimum $%.0f",
			o.Setup.AvgDollarVolume, l.MinAvgDollarVolume)
	}
	return ""
}

func checkPositionSize(o SizedOrder, ps *PortfolioState, l Limits) string {
	limit := ps.Equity * l.MaxPositionPct
	if o.Notional > limit+tolerance {
		return money.Sprintf("position $%.2f exceeds %.0f%% of equity ($%.2f)",
			o.Notional, 100*l.MaxPositionPct, limit)
	}
	return ""
}

func checkRiskPerTrade(o SizedOrder, ps *PortfolioState, l Limits) string {
	limit := ps.Equity * l.MaxRiskPct
	if o.DollarRisk > limit+tolerance {
		return money.Sprintf("risk $%.2f exceeds %.2f%% of equity ($%.2f)",
			o.DollarRisk, 100*l.MaxRiskPct, limit)
	}
	return ""
}

func checkBuyingPower(o SizedOrder, ps *PortfolioState, _ Limits) string {
	total := ps.Exposure() + o.Notional
	if total > ps.BuyingPower+tolerance {
		return money.Sprintf("total exposure $%.2f exceeds buying power $%.2f", total, ps.BuyingPower)
	}
	return ""
}
