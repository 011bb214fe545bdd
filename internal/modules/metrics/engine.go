// Package metrics derives aggregate performance statistics from the trade
// ledger and the snapshot history. The engine is read-only: calling it twice
// with no intervening trades returns identical results.
package metrics

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/papertrader/internal/domain"
)

// tradingDaysPerYear annualizes the Sharpe ratio computed from per-snapshot
// returns.
const tradingDaysPerYear = 252

// LedgerReader provides the closed-trade view the engine aggregates over
type LedgerReader interface {
	ClosedTrades() ([]domain.Trade, error)
}

// SnapshotReader provides the value history used for drawdown and Sharpe
type SnapshotReader interface {
	Recent(limit int) ([]domain.PortfolioSnapshot, error)
}

// BookReader provides the live book state reported alongside ledger statistics
type BookReader interface {
	CurrentSnapshot() (domain.PortfolioSnapshot, error)
	InitialCapital() decimal.Decimal
}

// Engine computes portfolio performance metrics
type Engine struct {
	ledger       LedgerReader
	snaps        SnapshotReader
	book         BookReader
	window       int
	maxPositions int
	log          zerolog.Logger
}

// NewEngine creates a metrics engine. window bounds how many snapshots feed
// the drawdown and Sharpe computations; maxPositions is the diversification
// cap the score is measured against.
func NewEngine(
	ledger LedgerReader,
	snaps SnapshotReader,
	book BookReader,
	window int,
	maxPositions int,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		ledger:       ledger,
		snaps:        snaps,
		book:         book,
		window:       window,
		maxPositions: maxPositions,
		log:          log.With().Str("service", "metrics").Logger(),
	}
}

// PortfolioMetrics computes the full performance report: live book state,
// closed-trade statistics, and snapshot-derived risk figures.
func (e *Engine) PortfolioMetrics() (*domain.PortfolioMetrics, error) {
	snap, err := e.book.CurrentSnapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to read book state: %w", err)
	}

	closed, err := e.ledger.ClosedTrades()
	if err != nil {
		return nil, fmt.Errorf("failed to load closed trades: %w", err)
	}

	history, err := e.snaps.Recent(e.window)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot history: %w", err)
	}

	stats := aggregateClosedTrades(closed)
	values := snapshotValues(history)

	initial := e.book.InitialCapital()
	hundred := decimal.NewFromInt(100)

	totalPnL := snap.TotalValue.Sub(initial)
	totalPnLPct := decimal.Zero
	if initial.IsPositive() {
		totalPnLPct = totalPnL.Div(initial).Mul(hundred)
	}

	// The daily baseline is today's opening value: current total minus what
	// was gained or lost since the day rolled over.
	dailyPnLPct := decimal.Zero
	dayStart := snap.TotalValue.Sub(snap.DailyPnL)
	if dayStart.IsPositive() {
		dailyPnLPct = snap.DailyPnL.Div(dayStart).Mul(hundred)
	}

	diversification := 0.0
	if e.maxPositions > 0 && snap.PositionsCount > 0 {
		diversification = math.Min(1, float64(snap.PositionsCount)/float64(e.maxPositions))
	}

	return &domain.PortfolioMetrics{
		TotalValue:           snap.TotalValue,
		AvailableCash:        snap.AvailableCash,
		InvestedAmount:       snap.InvestedAmount,
		TotalPnL:             totalPnL,
		TotalPnLPercentage:   totalPnLPct,
		DailyPnL:             snap.DailyPnL,
		DailyPnLPercentage:   dailyPnLPct,
		TotalFeesPaid:        snap.TotalFeesPaid,
		BestTrade:            stats.best,
		WorstTrade:           stats.worst,
		AverageWin:           stats.averageWin(),
		AverageLoss:          stats.averageLoss(),
		NumberOfTrades:       snap.NumberOfTrades,
		ClosedTrades:         stats.count,
		WinRate:              snap.WinRate,
		ProfitFactor:         stats.profitFactor(),
		SharpeRatio:          sharpeRatio(values),
		MaxDrawdown:          maxDrawdown(values),
		PositionsCount:       snap.PositionsCount,
		DiversificationScore: diversification,
	}, nil
}

// closedTradeStats accumulates win/loss aggregates over closing trade legs
type closedTradeStats struct {
	count     int
	wins      int
	losses    int
	grossWins decimal.Decimal
	grossLoss decimal.Decimal
	best      decimal.Decimal
	worst     decimal.Decimal
}

func aggregateClosedTrades(closed []domain.Trade) closedTradeStats {
	s := closedTradeStats{
		count:     len(closed),
		grossWins: decimal.Zero,
		grossLoss: decimal.Zero,
		best:      decimal.Zero,
		worst:     decimal.Zero,
	}

	for i := range closed {
		pnl := closed[i].PnL
		switch {
		case pnl.IsPositive():
			s.wins++
			s.grossWins = s.grossWins.Add(pnl)
		case pnl.IsNegative():
			s.losses++
			s.grossLoss = s.grossLoss.Add(pnl)
		}
		if i == 0 || pnl.GreaterThan(s.best) {
			s.best = pnl
		}
		if i == 0 || pnl.LessThan(s.worst) {
			s.worst = pnl
		}
	}
	return s
}

func (s closedTradeStats) averageWin() decimal.Decimal {
	if s.wins == 0 {
		return decimal.Zero
	}
	return s.grossWins.Div(decimal.NewFromInt(int64(s.wins)))
}

// averageLoss keeps the loss sign: a mean of losing trades is negative.
func (s closedTradeStats) averageLoss() decimal.Decimal {
	if s.losses == 0 {
		return decimal.Zero
	}
	return s.grossLoss.Div(decimal.NewFromInt(int64(s.losses)))
}

// profitFactor is gross wins over absolute gross losses. A book with wins and
// no losses has an infinite factor; a book with no closed trades has none.
func (s closedTradeStats) profitFactor() domain.ProfitFactor {
	if s.count == 0 {
		return 0
	}
	if s.losses == 0 {
		if s.wins > 0 {
			return domain.ProfitFactor(math.Inf(1))
		}
		return 0
	}
	wins, _ := s.grossWins.Float64()
	losses, _ := s.grossLoss.Abs().Float64()
	return domain.ProfitFactor(wins / losses)
}

func snapshotValues(history []domain.PortfolioSnapshot) []float64 {
	values := make([]float64, 0, len(history))
	for i := range history {
		v, _ := history[i].TotalValue.Float64()
		values = append(values, v)
	}
	return values
}

// maxDrawdown is the largest peak-to-trough decline over the value series,
// as a fraction of the running peak.
func maxDrawdown(values []float64) float64 {
	peak := 0.0
	dd := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if d := (peak - v) / peak; d > dd {
				dd = d
			}
		}
	}
	return dd
}

// sharpeRatio annualizes mean/stddev of per-snapshot returns. Too short a
// history or a flat one yields 0 rather than a division by zero.
func sharpeRatio(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		returns = append(returns, (values[i]-values[i-1])/values[i-1])
	}
	if len(returns) < 2 {
		return 0
	}

	sd := stat.StdDev(returns, nil)
	if sd == 0 || math.IsNaN(sd) {
		return 0
	}
	return stat.Mean(returns, nil) / sd * math.Sqrt(tradingDaysPerYear)
}
