package domain

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// ProfitFactor is gross wins divided by gross losses. It is positive infinity
// when there are wins and no losses, which encoding/json cannot represent as a
// number, so it marshals as the string "inf" in that case.
type ProfitFactor float64

func (p ProfitFactor) MarshalJSON() ([]byte, error) {
	f := float64(p)
	if math.IsInf(f, 1) {
		return []byte(`"inf"`), nil
	}
	return []byte(strconv.FormatFloat(f, 'f', -1, 64)), nil
}

// IsInfinite reports whether the portfolio has wins and no losses
func (p ProfitFactor) IsInfinite() bool {
	return math.IsInf(float64(p), 1)
}

// PortfolioMetrics aggregates performance over the trade ledger and the
// snapshot history.
type PortfolioMetrics struct {
	TotalValue           decimal.Decimal `json:"total_value"`
	AvailableCash        decimal.Decimal `json:"available_cash"`
	InvestedAmount       decimal.Decimal `json:"invested_amount"`
	TotalPnL             decimal.Decimal `json:"total_pnl"`
	TotalPnLPercentage   decimal.Decimal `json:"total_pnl_percentage"`
	DailyPnL             decimal.Decimal `json:"daily_pnl"`
	DailyPnLPercentage   decimal.Decimal `json:"daily_pnl_percentage"`
	TotalFeesPaid        decimal.Decimal `json:"total_fees_paid"`
	BestTrade            decimal.Decimal `json:"best_trade"`
	WorstTrade           decimal.Decimal `json:"worst_trade"`
	AverageWin           decimal.Decimal `json:"average_win"`
	AverageLoss          decimal.Decimal `json:"average_loss"`
	NumberOfTrades       int             `json:"number_of_trades"`
	ClosedTrades         int             `json:"closed_trades"`
	WinRate              float64         `json:"win_rate"`
	ProfitFactor         ProfitFactor    `json:"profit_factor"`
	SharpeRatio          float64         `json:"sharpe_ratio"`
	MaxDrawdown          float64         `json:"max_drawdown"`
	PositionsCount       int             `json:"positions_count"`
	DiversificationScore float64         `json:"diversification_score"`
}

// RiskMetrics describes current exposure concentration and trading headroom.
// Exposure and cash ratios are percentages of total portfolio value.
type RiskMetrics struct {
	PositionExposures    map[string]float64 `json:"position_exposures"`
	TotalValue           decimal.Decimal    `json:"total_value"`
	DailyPnL             decimal.Decimal    `json:"daily_pnl"`
	AvailableCashRatio   float64            `json:"available_cash_ratio"`
	MaxPositionRisk      float64            `json:"max_position_risk"`
	MaxDrawdown          float64            `json:"max_drawdown"`
	PositionsCount       int                `json:"positions_count"`
	DiversificationScore float64            `json:"diversification_score"`
	CanTrade             bool               `json:"can_trade"`
}
