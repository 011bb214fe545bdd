// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the direction of a position
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// SideFromString parses a position side, case-insensitively
func SideFromString(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long":
		return SideLong, nil
	case "short":
		return SideShort, nil
	default:
		return "", fmt.Errorf("invalid position side: %q", s)
	}
}

// Direction returns +1 for long and -1 for short, used in P&L math
func (s Side) Direction() decimal.Decimal {
	if s == SideShort {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// OrderSide represents the executed direction of a single trade leg
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OpenOrderSide returns the order side that opens a position (buy for long,
// sell for short). CloseOrderSide is its mirror.
func OpenOrderSide(s Side) OrderSide {
	if s == SideShort {
		return OrderSideSell
	}
	return OrderSideBuy
}

func CloseOrderSide(s Side) OrderSide {
	if s == SideShort {
		return OrderSideBuy
	}
	return OrderSideSell
}

// TradeStatus represents which leg of a position's lifecycle a trade records
type TradeStatus string

const (
	TradeStatusOpen         TradeStatus = "open"
	TradeStatusClosed       TradeStatus = "closed"
	TradeStatusPartialClose TradeStatus = "partial_close"
)

// IsClosing reports whether the trade realized P&L by reducing a position
func (s TradeStatus) IsClosing() bool {
	return s == TradeStatusClosed || s == TradeStatusPartialClose
}

// Position represents an open exposure to one symbol
type Position struct {
	EntryTime     time.Time       `json:"entry_time"`
	Symbol        string          `json:"symbol"`
	Side          Side            `json:"side"`
	Quantity      decimal.Decimal `json:"quantity"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	StopLoss      decimal.Decimal `json:"stop_loss"`
	TakeProfit    decimal.Decimal `json:"take_profit"`
	FeesPaid      decimal.Decimal `json:"fees_paid"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
}

// UpdateCurrentPrice sets the latest observed price and recomputes unrealized
// P&L. Unrealized P&L is always derived, never mutated independently.
func (p *Position) UpdateCurrentPrice(price decimal.Decimal) {
	p.CurrentPrice = price
	p.UnrealizedPnL = p.Side.Direction().
		Mul(price.Sub(p.EntryPrice)).
		Mul(p.Quantity).
		Sub(p.FeesPaid)
}

// MarketValue returns quantity times the latest observed price
func (p *Position) MarketValue() decimal.Decimal {
	return p.Quantity.Mul(p.CurrentPrice)
}

// InvestedAmount returns quantity times the entry price
func (p *Position) InvestedAmount() decimal.Decimal {
	return p.Quantity.Mul(p.EntryPrice)
}

// PnLPercentage returns unrealized P&L as a percentage of the invested amount
func (p *Position) PnLPercentage() decimal.Decimal {
	invested := p.InvestedAmount()
	if !invested.IsPositive() {
		return decimal.Zero
	}
	return p.UnrealizedPnL.Div(invested).Mul(decimal.NewFromInt(100))
}

// Trade represents one immutable executed leg (open, partial close, or full
// close). Corrections are modeled as new trades, never as mutations.
type Trade struct {
	Timestamp            time.Time       `json:"timestamp"`
	ID                   string          `json:"id"`
	Symbol               string          `json:"symbol"`
	Side                 OrderSide       `json:"side"`
	Status               TradeStatus     `json:"status"`
	StrategyUsed         string          `json:"strategy_used"`
	Quantity             decimal.Decimal `json:"quantity"`
	Price                decimal.Decimal `json:"price"`
	Fees                 decimal.Decimal `json:"fees"`
	PortfolioValueBefore decimal.Decimal `json:"portfolio_value_before"`
	PortfolioValueAfter  decimal.Decimal `json:"portfolio_value_after"`
	PnL                  decimal.Decimal `json:"pnl"`
	ConfidenceScore      float64         `json:"confidence_score"`
}

// Notional returns quantity times the execution price, before fees
func (t *Trade) Notional() decimal.Decimal {
	return t.Quantity.Mul(t.Price)
}

// CashDelta returns the signed cash movement the trade produced: an open
// debits notional plus fees, a close credits notional minus fees.
func (t *Trade) CashDelta() decimal.Decimal {
	if t.Status.IsClosing() {
		return t.Notional().Sub(t.Fees)
	}
	return t.Notional().Add(t.Fees).Neg()
}

// PortfolioSnapshot is a point-in-time aggregate of portfolio state, appended
// periodically for drawdown and Sharpe computation. Snapshots are never
// mutated; old entries may be pruned under the retention policy.
type PortfolioSnapshot struct {
	Timestamp      time.Time       `json:"timestamp"`
	ID             int64           `json:"id"`
	TotalValue     decimal.Decimal `json:"total_value"`
	AvailableCash  decimal.Decimal `json:"available_cash"`
	InvestedAmount decimal.Decimal `json:"invested_amount"`
	UnrealizedPnL  decimal.Decimal `json:"unrealized_pnl"`
	RealizedPnL    decimal.Decimal `json:"realized_pnl"`
	DailyPnL       decimal.Decimal `json:"daily_pnl"`
	TotalFeesPaid  decimal.Decimal `json:"total_fees_paid"`
	NumberOfTrades int             `json:"number_of_trades"`
	WinRate        float64         `json:"win_rate"`
	PositionsCount int             `json:"positions_count"`
}
