package risk

import (
	"github.com/markcheno/go-talib"
)

// defaultVolatility is used when there is not enough price history to
// estimate anything; mid-range keeps sizing conservative without refusing
// the trade.
const defaultVolatility = 0.5

// EstimateVolatility derives a volatility figure in [0, 1] from recent close
// prices, for callers that do not supply one with the open request. It is the
// standard deviation of simple per-period returns over the window. Prices are
// plain floats here; no money arithmetic happens on them.
func EstimateVolatility(closes []float64) float64 {
	if len(closes) < 3 {
		return defaultVolatility
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, (closes[i]-closes[i-1])/closes[i-1])
	}
	if len(returns) < 2 {
		return defaultVolatility
	}

	// StdDev with the window spanning the whole series yields one defined
	// value at the final index.
	dev := talib.StdDev(returns, len(returns), 1.0)
	vol := dev[len(dev)-1]

	if vol < 0 {
		vol = 0
	}
	if vol > 1 {
		vol = 1
	}
	return vol
}
