package trading

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/papertrader/internal/domain"
)

// TradeStoreInterface defines the persistence operations the ledger needs
type TradeStoreInterface interface {
	InsertTx(tx *sql.Tx, trade *domain.Trade) error
	GetHistory(limit int) ([]domain.Trade, error)
	GetAllInRange(from, to time.Time) ([]domain.Trade, error)
	GetAllAfter(after time.Time) ([]domain.Trade, error)
	GetBySymbol(symbol string) ([]domain.Trade, error)
	GetClosedTrades() ([]domain.Trade, error)
	RealizedPnLSince(since time.Time) (decimal.Decimal, error)
	Count() (int, error)
}

// Ledger is the append-only record of executed trade legs. Appends happen
// inside the position book's transaction; reads are unrestricted.
type Ledger struct {
	store TradeStoreInterface
	log   zerolog.Logger
}

// NewLedger creates a trade ledger over the given store
func NewLedger(store TradeStoreInterface, log zerolog.Logger) *Ledger {
	return &Ledger{
		store: store,
		log:   log.With().Str("service", "ledger").Logger(),
	}
}

// NewTradeID builds a unique trade identifier. The leg and symbol prefix keep
// raw ledger rows readable; the UUID suffix guarantees uniqueness for legs
// recorded within the same second.
func NewTradeID(status domain.TradeStatus, symbol string) string {
	leg := "open"
	if status.IsClosing() {
		leg = "close"
	}
	return fmt.Sprintf("%s_%s_%s", leg, strings.ToUpper(strings.TrimSpace(symbol)), uuid.New().String())
}

// Append records one executed leg inside the caller's transaction. When the
// trade carries no ID the ledger assigns one; the caller sees it on return.
func (l *Ledger) Append(tx *sql.Tx, trade *domain.Trade) error {
	if trade != nil && trade.ID == "" {
		trade.ID = NewTradeID(trade.Status, trade.Symbol)
	}

	if err := validateTrade(trade); err != nil {
		return fmt.Errorf("failed to append trade: %w", err)
	}

	if err := l.store.InsertTx(tx, trade); err != nil {
		return err
	}

	l.log.Info().
		Str("trade_id", trade.ID).
		Str("symbol", trade.Symbol).
		Str("side", string(trade.Side)).
		Str("status", string(trade.Status)).
		Str("quantity", trade.Quantity.String()).
		Str("price", trade.Price.String()).
		Str("pnl", trade.PnL.String()).
		Msg("Trade appended")

	return nil
}

// validateTrade rejects malformed records before they reach the ledger.
// These are programming errors, not business rejections.
func validateTrade(trade *domain.Trade) error {
	if trade == nil {
		return fmt.Errorf("trade is nil")
	}
	if trade.ID == "" {
		return fmt.Errorf("trade id is required")
	}
	if strings.TrimSpace(trade.Symbol) == "" {
		return fmt.Errorf("trade symbol is required")
	}
	if !trade.Quantity.IsPositive() {
		return fmt.Errorf("trade quantity must be positive, got %s", trade.Quantity)
	}
	if trade.Price.IsNegative() {
		return fmt.Errorf("trade price must not be negative, got %s", trade.Price)
	}
	switch trade.Status {
	case domain.TradeStatusOpen, domain.TradeStatusClosed, domain.TradeStatusPartialClose:
	default:
		return fmt.Errorf("unknown trade status %q", trade.Status)
	}
	switch trade.Side {
	case domain.OrderSideBuy, domain.OrderSideSell:
	default:
		return fmt.Errorf("unknown order side %q", trade.Side)
	}
	return nil
}

// History returns the most recent trades, newest first
func (l *Ledger) History(limit int) ([]domain.Trade, error) {
	return l.store.GetHistory(limit)
}

// AllInRange returns trades within the window, oldest first
func (l *Ledger) AllInRange(from, to time.Time) ([]domain.Trade, error) {
	return l.store.GetAllInRange(from, to)
}

// AllAfter returns trades recorded strictly after the given time
func (l *Ledger) AllAfter(after time.Time) ([]domain.Trade, error) {
	return l.store.GetAllAfter(after)
}

// BySymbol returns all trades for one symbol, oldest first
func (l *Ledger) BySymbol(symbol string) ([]domain.Trade, error) {
	return l.store.GetBySymbol(symbol)
}

// ClosedTrades returns every closing leg, oldest first
func (l *Ledger) ClosedTrades() ([]domain.Trade, error) {
	return l.store.GetClosedTrades()
}

// RealizedPnLToday sums realized P&L since midnight UTC
func (l *Ledger) RealizedPnLToday(now time.Time) (decimal.Decimal, error) {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return l.store.RealizedPnLSince(startOfDay)
}

// RealizedPnLTotal sums realized P&L across the entire ledger
func (l *Ledger) RealizedPnLTotal() (decimal.Decimal, error) {
	return l.store.RealizedPnLSince(time.Unix(0, 0))
}

// Count returns the total number of recorded trades
func (l *Ledger) Count() (int, error) {
	return l.store.Count()
}

// Interface compliance check
var _ TradeStoreInterface = (*TradeRepository)(nil)
