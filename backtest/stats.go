package backtest

import (
	"math"

	"github.com/rustyeddy/swingtrader/journal"
	"github.com/rustyeddy/swingtrader/risk"
)

// Stats are derived only from the trade ledger and the equity curve.
type Stats struct {
	Trades int
	Wins   int
	Losses int

	StartEquity float64
	EndEquity   float64
	NetPnL      float64 // sum of closed-trade net P&L
	TotalReturn float64 // (end - start) / start
	CAGR        float64

	MaxDrawdown    float64 // dollars
	MaxDrawdownPct float64 // of the peak the drawdown fell from

	WinRate      float64
	ProfitFactor float64 // +Inf when there are wins and no losses
	AvgR         float64
	AvgWin       float64
	AvgLoss      float64 // negative
	LargestWin   float64
	LargestLoss  float64

	Sharpe   float64 // per-point returns, annualized with sqrt(252)
	Exposure float64 // fraction of equity points holding a position

	TotalCommission float64
	TotalSlippage   float64
}

const tradingDays = 252

// ComputeStats summarizes a run. The curve is expected in time order; the
// start equity seeds the drawdown peak.
func ComputeStats(trades []risk.ClosedTrade, curve []journal.EquityPoint, startEquity float64) Stats {
	st := Stats{
		Trades:      len(trades),
		StartEquity: startEquity,
		EndEquity:   startEquity,
	}
	if n := len(curve); n > 0 {
		st.EndEquity = curve[n-1].Equity
	}
	if startEquity > 0 {
		st.TotalReturn = (st.EndEquity - startEquity) / startEquity
	}

	var grossWin, grossLoss, sumR float64
	for k, t := range trades {
		st.NetPnL += t.NetPnL
		st.TotalCommission += t.Commission
		st.TotalSlippage += t.Slippage
		sumR += t.RMultiple

		switch {
		case t.NetPnL > 0:
			st.Wins++
			grossWin += t.NetPnL
		case t.NetPnL < 0:
			st.Losses++
			grossLoss += -t.NetPnL
		}
		if k == 0 || t.NetPnL > st.LargestWin {
			st.LargestWin = t.NetPnL
		}
		if k == 0 || t.NetPnL < st.LargestLoss {
			st.LargestLoss = t.NetPnL
		}
	}

	if st.Trades > 0 {
		st.WinRate = float64(st.Wins) / float64(st.Trades)
		st.AvgR = sumR / float64(st.Trades)
		switch {
		case grossLoss > 0:
			st.ProfitFactor = grossWin / grossLoss
		case grossWin > 0:
			st.ProfitFactor = math.Inf(1)
		}
	}
	if st.Wins > 0 {
		st.AvgWin = grossWin / float64(st.Wins)
	}
	if st.Losses > 0 {
		st.AvgLoss = -grossLoss / float64(st.Losses)
	}

	st.CAGR = cagr(curve, startEquity)
	st.MaxDrawdown, st.MaxDrawdownPct = drawdown(curve, startEquity)
	st.Sharpe = sharpe(curve)
	st.Exposure = exposure(curve)
	return st
}

func cagr(curve []journal.EquityPoint, start float64) float64 {
	if len(curve) < 2 || start <= 0 {
		return 0
	}
	years := curve[len(curve)-1].Time.Sub(curve[0].Time).Hours() / 24 / 365.25
	if years <= 0 {
		return 0
	}
	end := curve[len(curve)-1].Equity
	if end <= 0 {
		return -1
	}
	return math.Pow(end/start, 1/years) - 1
}

func drawdown(curve []journal.EquityPoint, start float64) (dollars, pct float64) {
	peak := start
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if dd := peak - p.Equity; dd > dollars {
			dollars = dd
			pct = dd / peak
		}
	}
	return dollars, pct
}

// sharpe uses the sample standard deviation of point-to-point returns and
// no risk-free rate.
func sharpe(curve []journal.EquityPoint) float64 {
	if len(curve) < 3 {
		return 0
	}
	rets := make([]float64, 0, len(curve)-1)
	for k := 1; k < len(curve); k++ {
		prev := curve[k-1].Equity
		if prev <= 0 {
			continue
		}
		rets = append(rets, curve[k].Equity/prev-1)
	}
	if len(rets) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	ss := 0.0
	for _, r := range rets {
		ss += (r - mean) * (r - mean)
	}
	sd := math.Sqrt(ss / float64(len(rets)-1))
	if sd == 0 {
		return 0
	}
	return mean / sd * math.Sqrt(tradingDays)
}

func exposure(curve []journal.EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}
	held := 0
	for _, p := range curve {
		if p.Positions > 0 {
			held++
		}
	}
	return float64(held) / float64(len(curve))
}
