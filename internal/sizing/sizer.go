// Package sizing computes risk-bounded position sizes with fractional Kelly.
// Everything here is a pure function of its inputs; invalid inputs size to
// zero rather than erroring on the hot path.
package sizing

import "math"

// Inputs holds everything a sizing decision needs. Equity and volatility are
// refreshed by the caller per decision; WinProbability should come from fusion
// confidence for the active direction, falling back to a raw per-bar
// probability only when fusion is unavailable.
type Inputs struct {
	WinProbability     float64 // p, in (0, 1)
	PayoffRatio        float64 // b, average win over average loss
	KellyFraction      float64 // fraction of full Kelly to deploy, e.g. 0.25
	MaxRiskPerTrade    float64 // cap on equity fraction risked, e.g. 0.02
	MaxLeverage        float64 // notional cap as multiple of equity
	AccountEquity      float64
	Price              float64
	Volatility         float64 // ATR in price units
	StopLossMultiplier float64 // ATR multiples to the stop
}

// ComputeSize returns the position size in notional units. It is always >= 0
// and its notional value never exceeds equity times max leverage. A zero
// return means no trade: negative edge, invalid inputs, or a degenerate stop.
func ComputeSize(in Inputs) float64 {
	if !valid(in.WinProbability) || in.WinProbability <= 0 || in.WinProbability >= 1 {
		return 0
	}
	if !valid(in.PayoffRatio) || in.PayoffRatio <= 0 {
		return 0
	}
	if !valid(in.Volatility) || in.Volatility <= 0 {
		return 0
	}
	if !valid(in.Price) || in.Price <= 0 {
		return 0
	}
	if !valid(in.AccountEquity) || in.AccountEquity <= 0 {
		return 0
	}

	// Kelly: f* = (p(b+1) - 1) / b. Non-positive edge sizes to zero.
	kelly := (in.WinProbability*(in.PayoffRatio+1) - 1) / in.PayoffRatio
	if kelly <= 0 {
		return 0
	}

	riskPct := kelly * in.KellyFraction
	if riskPct > in.MaxRiskPerTrade {
		riskPct = in.MaxRiskPerTrade
	}

	stopDistance := in.Volatility * in.StopLossMultiplier
	if stopDistance <= 0 {
		return 0
	}

	units := in.AccountEquity * riskPct / stopDistance

	// Leverage clip on notional value.
	if maxNotional := in.AccountEquity * in.MaxLeverage; units*in.Price > maxNotional {
		units = maxNotional / in.Price
	}

	if units < 0 {
		return 0
	}
	return units
}

// KellyFraction returns the raw full-Kelly fraction for given p and b, which
// may be negative when the edge is negative.
func KellyFraction(p, b float64) float64 {
	if !valid(p) || !valid(b) || b <= 0 {
		return 0
	}
	return (p*(b+1) - 1) / b
}

func valid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
