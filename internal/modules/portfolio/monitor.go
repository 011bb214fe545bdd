package portfolio

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/papertrader/internal/domain"
)

// CloseReason records what caused a position to close
type CloseReason string

const (
	CloseReasonManual     CloseReason = "manual"
	CloseReasonStopLoss   CloseReason = "stop_loss"
	CloseReasonTakeProfit CloseReason = "take_profit"
)

// Trigger describes a protective close the monitor decided on
type Trigger struct {
	Symbol string
	Reason CloseReason
	Price  decimal.Decimal
}

// Monitor evaluates open positions against their protective levels. It runs
// once per mark-to-market cycle, inside the book's critical section, and the
// closes it triggers execute through the same path as manual closes.
type Monitor struct {
	log zerolog.Logger
}

// NewMonitor creates a protective order monitor
func NewMonitor(log zerolog.Logger) *Monitor {
	return &Monitor{
		log: log.With().Str("service", "monitor").Logger(),
	}
}

// Evaluate returns a trigger when the position's latest price crosses its
// stop-loss or take-profit. Stop-loss is always checked first: on a gap move
// that crosses both levels in one update, the position closes as a stop.
func (m *Monitor) Evaluate(pos *domain.Position) *Trigger {
	price := pos.CurrentPrice

	if pos.Side == domain.SideShort {
		if !pos.StopLoss.IsZero() && price.GreaterThanOrEqual(pos.StopLoss) {
			return m.trigger(pos, CloseReasonStopLoss, price)
		}
		if !pos.TakeProfit.IsZero() && price.LessThanOrEqual(pos.TakeProfit) {
			return m.trigger(pos, CloseReasonTakeProfit, price)
		}
		return nil
	}

	if !pos.StopLoss.IsZero() && price.LessThanOrEqual(pos.StopLoss) {
		return m.trigger(pos, CloseReasonStopLoss, price)
	}
	if !pos.TakeProfit.IsZero() && price.GreaterThanOrEqual(pos.TakeProfit) {
		return m.trigger(pos, CloseReasonTakeProfit, price)
	}
	return nil
}

func (m *Monitor) trigger(pos *domain.Position, reason CloseReason, price decimal.Decimal) *Trigger {
	m.log.Info().
		Str("symbol", pos.Symbol).
		Str("side", string(pos.Side)).
		Str("reason", string(reason)).
		Str("price", price.String()).
		Str("stop_loss", pos.StopLoss.String()).
		Str("take_profit", pos.TakeProfit.String()).
		Msg("Protective close triggered")

	return &Trigger{
		Symbol: pos.Symbol,
		Reason: reason,
		Price:  price,
	}
}
