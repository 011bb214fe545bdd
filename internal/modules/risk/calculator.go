// Package risk provides position sizing, protective price levels, and trade
// admissibility checks. Everything in this package is a pure function over
// its inputs; the calculator holds configured limits and no other state.
package risk

import (
	"github.com/shopspring/decimal"

	"github.com/aristath/papertrader/internal/domain"
)

// QuantityPrecision is the instrument's minimum tradable unit, expressed as
// decimal places. Sizes are truncated toward zero at this precision so an
// order can never exceed the capital that produced it.
const QuantityPrecision = 8

// Limits holds the configured admissibility thresholds
type Limits struct {
	MinCapital        decimal.Decimal
	MaxPositionRatio  decimal.Decimal
	MaxDailyLossRatio decimal.Decimal
	MinTradeAmount    decimal.Decimal
}

// DefaultLimits returns the stock limits: 1.00 minimum capital, 25% of
// capital per position, 5% daily loss ceiling, 0.10 minimum trade.
func DefaultLimits() Limits {
	return Limits{
		MinCapital:        decimal.RequireFromString("1.0"),
		MaxPositionRatio:  decimal.RequireFromString("0.25"),
		MaxDailyLossRatio: decimal.RequireFromString("0.05"),
		MinTradeAmount:    decimal.RequireFromString("0.10"),
	}
}

// Calculator sizes positions and validates trade requests
type Calculator struct {
	limits Limits
}

// NewCalculator creates a calculator with the given limits
func NewCalculator(limits Limits) *Calculator {
	return &Calculator{limits: limits}
}

// Limits returns the configured thresholds
func (c *Calculator) Limits() Limits {
	return c.limits
}

// SizePosition computes the order quantity for a request. Confidence scales
// exposure between 50% and 100% of the base size; volatility scales it down
// to a floor of 30%. The constants are preserved from the original heuristic
// and are not derived from any statistical model.
func (c *Calculator) SizePosition(availableCapital, entryPrice decimal.Decimal, confidence, volatility float64) decimal.Decimal {
	if !entryPrice.IsPositive() || !availableCapital.IsPositive() {
		return decimal.Zero
	}

	confidence = clampConfidence(confidence)
	volatility = clampVolatility(volatility)

	confidenceMultiplier := decimal.NewFromFloat(0.5 + confidence*0.5)

	volatilityFactor := 1.0 - volatility
	if volatilityFactor < 0.3 {
		volatilityFactor = 0.3
	}
	volatilityMultiplier := decimal.NewFromFloat(volatilityFactor)

	baseSize := availableCapital.Mul(c.limits.MaxPositionRatio)
	adjustedSize := baseSize.Mul(confidenceMultiplier).Mul(volatilityMultiplier)

	return adjustedSize.Div(entryPrice).Truncate(QuantityPrecision)
}

// StopLoss returns the protective stop price: 2% from entry at zero
// volatility, widening by 3% per unit of volatility. Below entry for longs,
// above for shorts.
func (c *Calculator) StopLoss(entryPrice decimal.Decimal, side domain.Side, volatility float64) decimal.Decimal {
	pct := decimal.NewFromFloat(0.02 + clampVolatility(volatility)*0.03)

	if side == domain.SideShort {
		return entryPrice.Mul(decimal.NewFromInt(1).Add(pct))
	}
	return entryPrice.Mul(decimal.NewFromInt(1).Sub(pct))
}

// TakeProfit returns the profit target: 3% from entry at zero confidence,
// widening by 5% per unit of confidence. Above entry for longs, below for
// shorts.
func (c *Calculator) TakeProfit(entryPrice decimal.Decimal, side domain.Side, confidence float64) decimal.Decimal {
	pct := decimal.NewFromFloat(0.03 + clampConfidence(confidence)*0.05)

	if side == domain.SideShort {
		return entryPrice.Mul(decimal.NewFromInt(1).Sub(pct))
	}
	return entryPrice.Mul(decimal.NewFromInt(1).Add(pct))
}

// ValidateTrade checks whether a trade of the given total cost is admissible.
// A nil result means the trade may proceed; a non-nil Rejection is a normal
// business outcome the caller must branch on, never an error.
func (c *Calculator) ValidateTrade(availableCapital, tradeAmount, dailyPnL decimal.Decimal) *domain.Rejection {
	if availableCapital.LessThan(c.limits.MinCapital) {
		return domain.NewRejection(domain.RejectInsufficientFunds,
			"available capital %s below minimum %s", availableCapital, c.limits.MinCapital)
	}

	if tradeAmount.LessThan(c.limits.MinTradeAmount) {
		return domain.NewRejection(domain.RejectBelowMinimumTradeAmount,
			"trade amount %s below minimum %s", tradeAmount, c.limits.MinTradeAmount)
	}

	if tradeAmount.GreaterThan(availableCapital) {
		return domain.NewRejection(domain.RejectInsufficientFunds,
			"trade amount %s exceeds available capital %s", tradeAmount, availableCapital)
	}

	// dailyPnL is the day's signed realized P&L; only a net loss counts
	// against the limit.
	maxDailyLoss := availableCapital.Mul(c.limits.MaxDailyLossRatio)
	if dailyPnL.IsNegative() && dailyPnL.Abs().GreaterThan(maxDailyLoss) {
		return domain.NewRejection(domain.RejectDailyLossLimit,
			"daily loss %s exceeds limit %s", dailyPnL.Abs(), maxDailyLoss)
	}

	return nil
}

func clampConfidence(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

func clampVolatility(volatility float64) float64 {
	if volatility < 0 {
		return 0
	}
	return volatility
}
