// Package portfolio maintains the virtual trading book: available cash, open
// positions, and the protective order monitor. The book is the single writer
// of ledger state; every mutation persists through one SQLite transaction
// before it is applied in memory, so a crash can never leave the two apart.
package portfolio

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/papertrader/internal/database"
	"github.com/aristath/papertrader/internal/domain"
	"github.com/aristath/papertrader/internal/modules/risk"
	"github.com/aristath/papertrader/internal/utils"
)

// PositionStoreInterface defines the persistence operations the book needs
// for positions
type PositionStoreInterface interface {
	GetAllActive() ([]domain.Position, error)
	UpsertTx(tx *sql.Tx, pos *domain.Position) error
	UpdatePriceTx(tx *sql.Tx, symbol string, price, unrealizedPnL decimal.Decimal) error
	DeactivateTx(tx *sql.Tx, symbol string, exitPrice, realizedPnL decimal.Decimal) error
}

// LedgerInterface defines the trade ledger operations the book needs
type LedgerInterface interface {
	Append(tx *sql.Tx, trade *domain.Trade) error
	AllAfter(after time.Time) ([]domain.Trade, error)
	ClosedTrades() ([]domain.Trade, error)
	RealizedPnLToday(now time.Time) (decimal.Decimal, error)
	RealizedPnLTotal() (decimal.Decimal, error)
	Count() (int, error)
}

// SnapshotStoreInterface defines the snapshot operations the book needs
type SnapshotStoreInterface interface {
	InsertTx(tx *sql.Tx, snap *domain.PortfolioSnapshot) error
	Latest() (*domain.PortfolioSnapshot, error)
}

// BookConfig holds the book's capital and fee parameters
type BookConfig struct {
	InitialCapital   decimal.Decimal
	FeeRate          decimal.Decimal
	MaxOpenPositions int
}

// OpenRequest asks the book to open or extend a position. Quantity is not a
// caller input: the risk calculator sizes the order from available capital,
// confidence, and volatility.
type OpenRequest struct {
	Symbol       string          `json:"symbol"`
	Side         domain.Side     `json:"side"`
	EntryPrice   decimal.Decimal `json:"entry_price"`
	Confidence   float64         `json:"confidence"`
	Volatility   float64         `json:"volatility"`
	StrategyUsed string          `json:"strategy_used"`
}

// OpenResult reports the outcome of an open request. A rejection is a normal
// business outcome; errors are reserved for infrastructure faults.
type OpenResult struct {
	Executed  bool              `json:"executed"`
	Rejection *domain.Rejection `json:"reason,omitempty"`
	Position  *domain.Position  `json:"position,omitempty"`
	Trade     *domain.Trade     `json:"trade,omitempty"`
}

// CloseResult reports the outcome of a close request
type CloseResult struct {
	Executed    bool              `json:"executed"`
	Rejection   *domain.Rejection `json:"reason,omitempty"`
	Reason      CloseReason       `json:"close_reason,omitempty"`
	RealizedPnL decimal.Decimal   `json:"realized_pnl"`
	Remaining   decimal.Decimal   `json:"remaining_quantity"`
	Trade       *domain.Trade     `json:"trade,omitempty"`
}

// MarkToMarketResult reports what one price sweep did: how many positions were
// re-marked, which protective closes fired, and the snapshot that was appended.
type MarkToMarketResult struct {
	PricesApplied int                       `json:"prices_applied"`
	Closes        []CloseResult             `json:"closes,omitempty"`
	Snapshot      *domain.PortfolioSnapshot `json:"snapshot,omitempty"`
	Rejection     *domain.Rejection         `json:"reason,omitempty"`
}

var (
	// cashSafetyFactor caps an affordability-adjusted order at 95% of cash so
	// fee rounding can never overdraw the account
	cashSafetyFactor = decimal.RequireFromString("0.95")
	one              = decimal.NewFromInt(1)
)

// Book is the virtual trading book. All access goes through one mutex; write
// operations hold it across the SQLite transaction so persisted state and
// memory always agree.
type Book struct {
	mu sync.RWMutex

	db      *sql.DB
	store   PositionStoreInterface
	ledger  LedgerInterface
	snaps   SnapshotStoreInterface
	calc    *risk.Calculator
	monitor *Monitor
	log     zerolog.Logger

	initialCapital   decimal.Decimal
	feeRate          decimal.Decimal
	maxOpenPositions int

	cash      decimal.Decimal
	positions map[string]*domain.Position
	totalFees decimal.Decimal

	// maxValue is the running portfolio high-water mark since startup
	maxValue      decimal.Decimal
	dayStartValue decimal.Decimal
	dayStartDate  time.Time

	clock func() time.Time
}

// NewBook creates a position book starting from the configured capital.
// Call Restore before serving to replay persisted state.
func NewBook(
	db *sql.DB,
	store PositionStoreInterface,
	ledger LedgerInterface,
	snaps SnapshotStoreInterface,
	calc *risk.Calculator,
	cfg BookConfig,
	log zerolog.Logger,
) *Book {
	now := time.Now().UTC()

	return &Book{
		db:               db,
		store:            store,
		ledger:           ledger,
		snaps:            snaps,
		calc:             calc,
		monitor:          NewMonitor(log),
		log:              log.With().Str("service", "book").Logger(),
		initialCapital:   cfg.InitialCapital,
		feeRate:          cfg.FeeRate,
		maxOpenPositions: cfg.MaxOpenPositions,
		cash:             cfg.InitialCapital,
		positions:        make(map[string]*domain.Position),
		totalFees:        decimal.Zero,
		maxValue:         cfg.InitialCapital,
		dayStartValue:    cfg.InitialCapital,
		dayStartDate:     utcDate(now),
		clock:            time.Now,
	}
}

// Restore rebuilds in-memory state from the database: cash starts from the
// latest snapshot (or initial capital) and replays the cash delta of every
// trade recorded after it; open positions come from the positions table,
// which is authoritative for protective levels.
func (b *Book) Restore() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cash := b.initialCapital
	fees := decimal.Zero
	since := time.Unix(0, 0)

	snap, err := b.snaps.Latest()
	if err != nil {
		return fmt.Errorf("failed to load latest snapshot: %w", err)
	}
	if snap != nil {
		cash = snap.AvailableCash
		fees = snap.TotalFeesPaid
		since = snap.Timestamp
	}

	trades, err := b.ledger.AllAfter(since)
	if err != nil {
		return fmt.Errorf("failed to replay trades: %w", err)
	}
	for i := range trades {
		cash = cash.Add(trades[i].CashDelta())
		fees = fees.Add(trades[i].Fees)
	}

	active, err := b.store.GetAllActive()
	if err != nil {
		return fmt.Errorf("failed to load open positions: %w", err)
	}

	b.positions = make(map[string]*domain.Position, len(active))
	for i := range active {
		pos := active[i]
		b.positions[pos.Symbol] = &pos
	}
	b.cash = cash
	b.totalFees = fees

	now := b.clock().UTC()
	total := b.totalValueLocked()
	b.dayStartDate = utcDate(now)
	b.dayStartValue = total
	b.maxValue = decimal.Max(b.initialCapital, total)

	b.log.Info().
		Str("cash", cash.String()).
		Str("total_value", total.String()).
		Int("positions", len(active)).
		Int("replayed_trades", len(trades)).
		Bool("from_snapshot", snap != nil).
		Msg("Book state restored")

	return nil
}

// Open sizes, validates, records, and applies one open (or same-side extend)
// request. The trade and the resulting position state commit in a single
// transaction; memory is only mutated after the commit succeeds.
func (b *Book) Open(req OpenRequest) (*OpenResult, error) {
	symbol := normalizeSymbol(req.Symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if req.Side != domain.SideLong && req.Side != domain.SideShort {
		return nil, fmt.Errorf("invalid position side: %q", req.Side)
	}
	if !req.EntryPrice.IsPositive() {
		return nil, fmt.Errorf("entry price must be positive, got %s", req.EntryPrice)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock().UTC()
	b.rollDayLocked(now)

	existing := b.positions[symbol]
	if existing != nil && existing.Side != req.Side {
		return &OpenResult{Rejection: domain.NewRejection(domain.RejectPositionSideMismatch,
			"%s is already open %s; close it before opening %s", symbol, existing.Side, req.Side)}, nil
	}
	if existing == nil && b.maxOpenPositions > 0 && len(b.positions) >= b.maxOpenPositions {
		return &OpenResult{Rejection: domain.NewRejection(domain.RejectDiversificationCap,
			"already holding %d of %d positions", len(b.positions), b.maxOpenPositions)}, nil
	}

	dailyPnL, err := b.ledger.RealizedPnLToday(now)
	if err != nil {
		return nil, fmt.Errorf("failed to compute daily realized pnl: %w", err)
	}

	quantity := b.calc.SizePosition(b.cash, req.EntryPrice, req.Confidence, req.Volatility)
	if !quantity.IsPositive() {
		return &OpenResult{Rejection: domain.NewRejection(domain.RejectBelowMinimumTradeAmount,
			"calculated size for %s rounded to zero", symbol)}, nil
	}

	notional := quantity.Mul(req.EntryPrice)
	fees := notional.Mul(b.feeRate)
	totalCost := notional.Add(fees)

	// When fees push the order past available cash, shrink it to 95% of cash
	// net of the fee it will incur.
	if totalCost.GreaterThan(b.cash) {
		quantity = b.cash.Mul(cashSafetyFactor).
			Div(req.EntryPrice.Mul(one.Add(b.feeRate))).
			Truncate(risk.QuantityPrecision)
		if !quantity.IsPositive() {
			return &OpenResult{Rejection: domain.NewRejection(domain.RejectBelowMinimumTradeAmount,
				"affordable size for %s rounded to zero", symbol)}, nil
		}
		notional = quantity.Mul(req.EntryPrice)
		fees = notional.Mul(b.feeRate)
		totalCost = notional.Add(fees)
	}

	if rej := b.calc.ValidateTrade(b.cash, totalCost, dailyPnL); rej != nil {
		return &OpenResult{Rejection: rej}, nil
	}

	var next domain.Position
	if existing != nil {
		// Same-side extend: blend the entry by quantity and recompute the
		// protective levels around the blended entry.
		next = *existing
		newQuantity := existing.Quantity.Add(quantity)
		next.EntryPrice = existing.EntryPrice.Mul(existing.Quantity).
			Add(req.EntryPrice.Mul(quantity)).
			Div(newQuantity)
		next.Quantity = newQuantity
		next.FeesPaid = existing.FeesPaid.Add(fees)
		next.StopLoss = b.calc.StopLoss(next.EntryPrice, req.Side, req.Volatility)
		next.TakeProfit = b.calc.TakeProfit(next.EntryPrice, req.Side, req.Confidence)
	} else {
		next = domain.Position{
			Symbol:     symbol,
			Side:       req.Side,
			Quantity:   quantity,
			EntryPrice: req.EntryPrice,
			EntryTime:  now,
			StopLoss:   b.calc.StopLoss(req.EntryPrice, req.Side, req.Volatility),
			TakeProfit: b.calc.TakeProfit(req.EntryPrice, req.Side, req.Confidence),
			FeesPaid:   fees,
		}
	}
	next.UpdateCurrentPrice(req.EntryPrice)

	othersValue := b.totalValueLocked().Sub(b.cash)
	existingValue := decimal.Zero
	if existing != nil {
		existingValue = existing.MarketValue()
		othersValue = othersValue.Sub(existingValue)
	}
	valueBefore := b.cash.Add(othersValue).Add(existingValue)
	valueAfter := b.cash.Sub(totalCost).Add(othersValue).Add(next.MarketValue())

	trade := &domain.Trade{
		Symbol:               symbol,
		Side:                 domain.OpenOrderSide(req.Side),
		Status:               domain.TradeStatusOpen,
		Quantity:             quantity,
		Price:                req.EntryPrice,
		Timestamp:            now,
		Fees:                 fees,
		PortfolioValueBefore: valueBefore,
		PortfolioValueAfter:  valueAfter,
		PnL:                  decimal.Zero,
		StrategyUsed:         req.StrategyUsed,
		ConfidenceScore:      req.Confidence,
	}

	err = database.WithTransaction(b.db, func(tx *sql.Tx) error {
		if err := b.ledger.Append(tx, trade); err != nil {
			return err
		}
		return b.store.UpsertTx(tx, &next)
	})
	if err != nil {
		b.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to persist open")
		return &OpenResult{Rejection: domain.NewRejection(domain.RejectPersistenceFailure,
			"failed to record open for %s", symbol)}, nil
	}

	b.positions[symbol] = &next
	b.cash = b.cash.Sub(totalCost)
	b.totalFees = b.totalFees.Add(fees)

	b.log.Info().
		Str("symbol", symbol).
		Str("side", string(req.Side)).
		Str("quantity", quantity.String()).
		Str("entry_price", req.EntryPrice.String()).
		Str("notional", notional.String()).
		Str("fees", fees.String()).
		Str("stop_loss", next.StopLoss.String()).
		Str("take_profit", next.TakeProfit.String()).
		Bool("extended", existing != nil).
		Msg("Position opened")

	resultPos := next
	return &OpenResult{Executed: true, Position: &resultPos, Trade: trade}, nil
}

// Close closes a position at the given exit price. A zero quantity closes the
// full position; a smaller quantity closes part of it and leaves the rest
// open with prorated entry fees.
func (b *Book) Close(symbol string, exitPrice, quantity decimal.Decimal) (*CloseResult, error) {
	normalized := normalizeSymbol(symbol)
	if normalized == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if !exitPrice.IsPositive() {
		return nil, fmt.Errorf("exit price must be positive, got %s", exitPrice)
	}
	if quantity.IsNegative() {
		return nil, fmt.Errorf("close quantity must not be negative, got %s", quantity)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock().UTC()
	b.rollDayLocked(now)

	return b.closeLocked(normalized, exitPrice, quantity, CloseReasonManual, now)
}

// closeLocked executes a close under the held write lock. Both manual closes
// and monitor-triggered closes run through here, so every exit is recorded
// and settled identically.
func (b *Book) closeLocked(symbol string, exitPrice, quantity decimal.Decimal, reason CloseReason, now time.Time) (*CloseResult, error) {
	pos := b.positions[symbol]
	if pos == nil {
		return &CloseResult{Rejection: domain.NewRejection(domain.RejectPositionNotFound,
			"no open position for %s", symbol)}, nil
	}

	closeQuantity := quantity
	if closeQuantity.IsZero() {
		closeQuantity = pos.Quantity
	}
	if closeQuantity.GreaterThan(pos.Quantity) {
		return &CloseResult{Rejection: domain.NewRejection(domain.RejectInsufficientQuantity,
			"requested %s exceeds held %s for %s", closeQuantity, pos.Quantity, symbol)}, nil
	}

	full := closeQuantity.Equal(pos.Quantity)

	exitValue := closeQuantity.Mul(exitPrice)
	exitFees := exitValue.Mul(b.feeRate)
	netProceeds := exitValue.Sub(exitFees)

	// Entry fees follow the quantity out: a partial close realizes its share,
	// the remainder stays on the position.
	entryFees := pos.FeesPaid
	if !full {
		entryFees = pos.FeesPaid.Mul(closeQuantity).Div(pos.Quantity)
	}

	realized := pos.Side.Direction().
		Mul(exitPrice.Sub(pos.EntryPrice)).
		Mul(closeQuantity).
		Sub(entryFees.Add(exitFees))

	marked := *pos
	marked.UpdateCurrentPrice(exitPrice)

	status := domain.TradeStatusClosed
	var next domain.Position
	remainingValue := decimal.Zero
	if !full {
		status = domain.TradeStatusPartialClose
		next = *pos
		next.Quantity = pos.Quantity.Sub(closeQuantity)
		next.FeesPaid = pos.FeesPaid.Sub(entryFees)
		next.RealizedPnL = pos.RealizedPnL.Add(realized)
		next.UpdateCurrentPrice(exitPrice)
		remainingValue = next.MarketValue()
	}

	othersValue := b.totalValueLocked().Sub(b.cash).Sub(pos.MarketValue())
	valueBefore := b.cash.Add(othersValue).Add(marked.MarketValue())
	valueAfter := b.cash.Add(netProceeds).Add(othersValue).Add(remainingValue)

	trade := &domain.Trade{
		Symbol:               symbol,
		Side:                 domain.CloseOrderSide(pos.Side),
		Status:               status,
		Quantity:             closeQuantity,
		Price:                exitPrice,
		Timestamp:            now,
		Fees:                 exitFees,
		PortfolioValueBefore: valueBefore,
		PortfolioValueAfter:  valueAfter,
		PnL:                  realized,
		StrategyUsed:         string(reason),
	}

	err := database.WithTransaction(b.db, func(tx *sql.Tx) error {
		if err := b.ledger.Append(tx, trade); err != nil {
			return err
		}
		if full {
			return b.store.DeactivateTx(tx, symbol, exitPrice, pos.RealizedPnL.Add(realized))
		}
		return b.store.UpsertTx(tx, &next)
	})
	if err != nil {
		b.log.Error().Err(err).Str("symbol", symbol).Str("reason", string(reason)).Msg("Failed to persist close")
		return &CloseResult{Rejection: domain.NewRejection(domain.RejectPersistenceFailure,
			"failed to record close for %s", symbol)}, nil
	}

	b.cash = b.cash.Add(netProceeds)
	b.totalFees = b.totalFees.Add(exitFees)
	remaining := decimal.Zero
	if full {
		delete(b.positions, symbol)
	} else {
		b.positions[symbol] = &next
		remaining = next.Quantity
	}

	b.log.Info().
		Str("symbol", symbol).
		Str("reason", string(reason)).
		Str("quantity", closeQuantity.String()).
		Str("exit_price", exitPrice.String()).
		Str("realized_pnl", realized.String()).
		Str("remaining", remaining.String()).
		Msg("Position closed")

	return &CloseResult{
		Executed:    true,
		Reason:      reason,
		RealizedPnL: realized,
		Remaining:   remaining,
		Trade:       trade,
	}, nil
}

// MarkToMarket applies a batch of observed prices, re-marks the affected
// positions, lets the monitor fire protective closes, and appends one
// portfolio snapshot. Positions without a fresh price are still evaluated at
// their last observed price.
func (b *Book) MarkToMarket(prices map[string]decimal.Decimal) (*MarkToMarketResult, error) {
	defer utils.OperationTimer("mark_to_market", b.log)()

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock().UTC()
	b.rollDayLocked(now)

	result := &MarkToMarketResult{}

	updates := make([]*domain.Position, 0, len(prices))
	for symbol, price := range prices {
		pos := b.positions[normalizeSymbol(symbol)]
		if pos == nil || !price.IsPositive() {
			continue
		}
		updated := *pos
		updated.UpdateCurrentPrice(price)
		updates = append(updates, &updated)
	}

	if len(updates) > 0 {
		err := database.WithTransaction(b.db, func(tx *sql.Tx) error {
			for _, u := range updates {
				if err := b.store.UpdatePriceTx(tx, u.Symbol, u.CurrentPrice, u.UnrealizedPnL); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			b.log.Error().Err(err).Int("updates", len(updates)).Msg("Failed to persist price updates")
			result.Rejection = domain.NewRejection(domain.RejectPersistenceFailure,
				"failed to persist %d price updates", len(updates))
			return result, nil
		}
		for _, u := range updates {
			b.positions[u.Symbol] = u
		}
		result.PricesApplied = len(updates)
	}

	// Evaluate all open positions, deterministically ordered. Triggered
	// closes run through the same path as manual closes, one transaction each.
	var triggers []*Trigger
	for _, pos := range b.positions {
		if t := b.monitor.Evaluate(pos); t != nil {
			triggers = append(triggers, t)
		}
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i].Symbol < triggers[j].Symbol })

	for _, t := range triggers {
		closeRes, err := b.closeLocked(t.Symbol, t.Price, decimal.Zero, t.Reason, now)
		if err != nil {
			return nil, err
		}
		result.Closes = append(result.Closes, *closeRes)
	}

	total := b.totalValueLocked()
	if total.GreaterThan(b.maxValue) {
		b.maxValue = total
	}

	snap, err := b.currentSnapshotLocked(now)
	if err != nil {
		return nil, err
	}
	if err := database.WithTransaction(b.db, func(tx *sql.Tx) error {
		return b.snaps.InsertTx(tx, &snap)
	}); err != nil {
		b.log.Error().Err(err).Msg("Failed to persist snapshot")
		result.Rejection = domain.NewRejection(domain.RejectPersistenceFailure, "failed to persist snapshot")
		return result, nil
	}
	result.Snapshot = &snap

	return result, nil
}

// CanOpen reports whether a new position of the given notional would be
// admitted, without executing anything.
func (b *Book) CanOpen(notional decimal.Decimal) (bool, *domain.Rejection) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if notional.GreaterThan(b.cash) {
		return false, domain.NewRejection(domain.RejectInsufficientFunds,
			"notional %s exceeds available cash %s", notional, b.cash)
	}
	if b.maxOpenPositions > 0 && len(b.positions) >= b.maxOpenPositions {
		return false, domain.NewRejection(domain.RejectDiversificationCap,
			"already holding %d of %d positions", len(b.positions), b.maxOpenPositions)
	}
	if notional.LessThan(b.calc.Limits().MinTradeAmount) {
		return false, domain.NewRejection(domain.RejectBelowMinimumTradeAmount,
			"notional %s below minimum %s", notional, b.calc.Limits().MinTradeAmount)
	}
	return true, nil
}

// CurrentSnapshot builds a point-in-time snapshot of the book. It is not
// persisted here; the snapshot service and mark-to-market handle that.
func (b *Book) CurrentSnapshot() (domain.PortfolioSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock().UTC()
	b.rollDayLocked(now)

	return b.currentSnapshotLocked(now)
}

func (b *Book) currentSnapshotLocked(now time.Time) (domain.PortfolioSnapshot, error) {
	realized, err := b.ledger.RealizedPnLTotal()
	if err != nil {
		return domain.PortfolioSnapshot{}, fmt.Errorf("failed to sum realized pnl: %w", err)
	}
	count, err := b.ledger.Count()
	if err != nil {
		return domain.PortfolioSnapshot{}, fmt.Errorf("failed to count trades: %w", err)
	}
	closed, err := b.ledger.ClosedTrades()
	if err != nil {
		return domain.PortfolioSnapshot{}, fmt.Errorf("failed to load closed trades: %w", err)
	}

	total := b.totalValueLocked()

	return domain.PortfolioSnapshot{
		Timestamp:      now,
		TotalValue:     total,
		AvailableCash:  b.cash,
		InvestedAmount: b.investedLocked(),
		UnrealizedPnL:  b.unrealizedLocked(),
		RealizedPnL:    realized,
		DailyPnL:       total.Sub(b.dayStartValue),
		TotalFeesPaid:  b.totalFees,
		NumberOfTrades: count,
		WinRate:        winRate(closed),
		PositionsCount: len(b.positions),
	}, nil
}

// RiskMetrics summarizes current exposure for the risk endpoint
func (b *Book) RiskMetrics() (*domain.RiskMetrics, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock().UTC()
	b.rollDayLocked(now)

	total := b.totalValueLocked()
	hundred := decimal.NewFromInt(100)

	// Exposures and the cash ratio are percentages of total portfolio value.
	exposures := make(map[string]float64, len(b.positions))
	maxRisk := 0.0
	if total.IsPositive() {
		for symbol, pos := range b.positions {
			exposure, _ := pos.MarketValue().Div(total).Mul(hundred).Float64()
			exposures[symbol] = exposure
			if exposure > maxRisk {
				maxRisk = exposure
			}
		}
	}

	// An empty book is all cash.
	cashRatio := 100.0
	if total.IsPositive() {
		cashRatio, _ = b.cash.Div(total).Mul(hundred).Float64()
	}

	drawdown := 0.0
	if b.maxValue.IsPositive() && total.LessThan(b.maxValue) {
		drawdown, _ = b.maxValue.Sub(total).Div(b.maxValue).Float64()
	}

	diversification := 0.0
	if b.maxOpenPositions > 0 && len(b.positions) > 0 {
		diversification = math.Min(1, float64(len(b.positions))/float64(b.maxOpenPositions))
	}

	return &domain.RiskMetrics{
		PositionExposures:    exposures,
		TotalValue:           total,
		DailyPnL:             total.Sub(b.dayStartValue),
		AvailableCashRatio:   cashRatio,
		MaxPositionRisk:      maxRisk,
		MaxDrawdown:          drawdown,
		PositionsCount:       len(b.positions),
		DiversificationScore: diversification,
		// Trading needs headroom: at least 10% of the portfolio in cash.
		CanTrade: cashRatio > 10,
	}, nil
}

// PositionSummary returns copies of all open positions, sorted by symbol
func (b *Book) PositionSummary() []domain.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]domain.Position, 0, len(b.positions))
	for _, pos := range b.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Position returns a copy of one open position
func (b *Book) Position(symbol string) (domain.Position, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	pos, ok := b.positions[normalizeSymbol(symbol)]
	if !ok {
		return domain.Position{}, false
	}
	return *pos, true
}

// OpenPositionsCount returns the number of open positions
func (b *Book) OpenPositionsCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.positions)
}

// AvailableCash returns the uncommitted cash balance
func (b *Book) AvailableCash() decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cash
}

// TotalValue returns cash plus the market value of all open positions
func (b *Book) TotalValue() decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.totalValueLocked()
}

// TotalFeesPaid returns lifetime fees taken by the book
func (b *Book) TotalFeesPaid() decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.totalFees
}

// InitialCapital returns the configured starting capital
func (b *Book) InitialCapital() decimal.Decimal {
	return b.initialCapital
}

// DailyPnL returns today's change in total portfolio value. The baseline
// resets at the first call on a new UTC day.
func (b *Book) DailyPnL() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollDayLocked(b.clock().UTC())
	return b.totalValueLocked().Sub(b.dayStartValue)
}

func (b *Book) totalValueLocked() decimal.Decimal {
	total := b.cash
	for _, pos := range b.positions {
		total = total.Add(pos.MarketValue())
	}
	return total
}

func (b *Book) investedLocked() decimal.Decimal {
	invested := decimal.Zero
	for _, pos := range b.positions {
		invested = invested.Add(pos.InvestedAmount())
	}
	return invested
}

func (b *Book) unrealizedLocked() decimal.Decimal {
	unrealized := decimal.Zero
	for _, pos := range b.positions {
		unrealized = unrealized.Add(pos.UnrealizedPnL)
	}
	return unrealized
}

// rollDayLocked resets the daily baseline when the UTC date changes
func (b *Book) rollDayLocked(now time.Time) {
	today := utcDate(now)
	if !today.Equal(b.dayStartDate) {
		b.dayStartDate = today
		b.dayStartValue = b.totalValueLocked()
		b.log.Debug().Str("baseline", b.dayStartValue.String()).Msg("Daily baseline reset")
	}
}

// winRate returns the fraction of closing trades with positive realized P&L.
// Only closed legs count; open trades have no outcome yet.
func winRate(closed []domain.Trade) float64 {
	if len(closed) == 0 {
		return 0
	}
	wins := 0
	for i := range closed {
		if closed[i].PnL.IsPositive() {
			wins++
		}
	}
	return float64(wins) / float64(len(closed))
}

func utcDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
