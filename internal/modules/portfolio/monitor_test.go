package portfolio

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/papertrader/internal/domain"
)

func monitorPosition(side domain.Side, stop, takeProfit, current string) *domain.Position {
	pos := &domain.Position{
		Symbol:     "BTC",
		Side:       side,
		Quantity:   d("1"),
		EntryPrice: d("10"),
		StopLoss:   d(stop),
		TakeProfit: d(takeProfit),
	}
	pos.UpdateCurrentPrice(d(current))
	return pos
}

func TestMonitor_Evaluate(t *testing.T) {
	monitor := NewMonitor(zerolog.Nop())

	testCases := []struct {
		name       string
		side       domain.Side
		stop       string
		takeProfit string
		current    string
		want       CloseReason // empty means no trigger
	}{
		{
			name: "long within bracket holds",
			side: domain.SideLong, stop: "9.785", takeProfit: "10.7", current: "10.2",
		},
		{
			name: "long stop fires at the level",
			side: domain.SideLong, stop: "9.785", takeProfit: "10.7", current: "9.785",
			want: CloseReasonStopLoss,
		},
		{
			name: "long stop fires below the level",
			side: domain.SideLong, stop: "9.785", takeProfit: "10.7", current: "9.2",
			want: CloseReasonStopLoss,
		},
		{
			name: "long take-profit fires at the level",
			side: domain.SideLong, stop: "9.785", takeProfit: "10.7", current: "10.7",
			want: CloseReasonTakeProfit,
		},
		{
			name: "long take-profit fires above the level",
			side: domain.SideLong, stop: "9.785", takeProfit: "10.7", current: "11.4",
			want: CloseReasonTakeProfit,
		},
		{
			name: "short within bracket holds",
			side: domain.SideShort, stop: "10.215", takeProfit: "9.3", current: "9.8",
		},
		{
			name: "short stop fires above entry",
			side: domain.SideShort, stop: "10.215", takeProfit: "9.3", current: "10.5",
			want: CloseReasonStopLoss,
		},
		{
			name: "short take-profit fires below entry",
			side: domain.SideShort, stop: "10.215", takeProfit: "9.3", current: "9.1",
			want: CloseReasonTakeProfit,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			trigger := monitor.Evaluate(monitorPosition(tc.side, tc.stop, tc.takeProfit, tc.current))

			if tc.want == "" {
				assert.Nil(t, trigger)
				return
			}
			require.NotNil(t, trigger)
			assert.Equal(t, tc.want, trigger.Reason)
			assert.Equal(t, "BTC", trigger.Symbol)
			assert.True(t, trigger.Price.Equal(d(tc.current)),
				"trigger price = %s, want %s", trigger.Price, tc.current)
		})
	}
}

func TestMonitor_StopWinsWhenBothLevelsCross(t *testing.T) {
	monitor := NewMonitor(zerolog.Nop())

	// Degenerate bracket where one price satisfies both conditions. The stop
	// must win so a gap move never books a profit on a losing exit rule.
	pos := monitorPosition(domain.SideLong, "11", "10.5", "10.8")

	trigger := monitor.Evaluate(pos)
	require.NotNil(t, trigger)
	assert.Equal(t, CloseReasonStopLoss, trigger.Reason)
}

func TestMonitor_ZeroLevelsNeverTrigger(t *testing.T) {
	monitor := NewMonitor(zerolog.Nop())

	long := monitorPosition(domain.SideLong, "0", "0", "0.0001")
	assert.Nil(t, monitor.Evaluate(long))

	short := monitorPosition(domain.SideShort, "0", "0", "99999")
	assert.Nil(t, monitor.Evaluate(short))
}
