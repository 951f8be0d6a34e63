package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func fptr(v float64) *float64 { return &v }

func TestCheckStopTake(t *testing.T) {
	tests := []struct {
		name       string
		side       Direction
		stop       *float64
		take       *float64
		price      float64
		wantHit    bool
		wantFill   float64
		wantReason string
	}{
		{"long stop crossed", DirectionLong, fptr(95), fptr(110), 94, true, 95, CloseReasonStopLoss},
		{"long stop exact", DirectionLong, fptr(95), fptr(110), 95, true, 95, CloseReasonStopLoss},
		{"long target crossed", DirectionLong, fptr(95), fptr(110), 111, true, 110, CloseReasonTakeProfit},
		{"long in range", DirectionLong, fptr(95), fptr(110), 100, false, 0, ""},
		{"short stop crossed", DirectionShort, fptr(105), fptr(90), 106, true, 105, CloseReasonStopLoss},
		{"short target crossed", DirectionShort, fptr(105), fptr(90), 89, true, 90, CloseReasonTakeProfit},
		{"short in range", DirectionShort, fptr(105), fptr(90), 100, false, 0, ""},
		{"no levels never triggers", DirectionLong, nil, nil, 1, false, 0, ""},
		{"stop only", DirectionLong, fptr(95), nil, 200, false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trade := &ShadowTrade{Side: tt.side, StopLoss: tt.stop, TakeProfit: tt.take, Status: ShadowStatusOpen}
			hit, fill, reason := trade.CheckStopTake(tt.price)
			assert.Equal(t, tt.wantHit, hit)
			assert.Equal(t, tt.wantFill, fill)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestGrossPnL(t *testing.T) {
	long := &ShadowTrade{Side: DirectionLong, EntryPrice: 100, Size: 2}
	assert.InDelta(t, 20.0, long.GrossPnL(110), 1e-9)
	assert.InDelta(t, -10.0, long.GrossPnL(95), 1e-9)

	short := &ShadowTrade{Side: DirectionShort, EntryPrice: 100, Size: 2}
	assert.InDelta(t, -20.0, short.GrossPnL(110), 1e-9)
	assert.InDelta(t, 10.0, short.GrossPnL(95), 1e-9)
}

func TestSettleMaintainsEquityIdentity(t *testing.T) {
	a := &ShadowAccountState{
		AccountID:     "primary",
		InitialEquity: 1000,
		CurrentEquity: 1000,
	}

	a.Settle(50, 2, 1)  // net +47
	a.Settle(-30, 1, 1) // net -32
	a.Settle(3, 2, 2)   // net -1: costs turn a gross gain into a loss

	assert.InDelta(t, 23.0, a.TotalPnL, 1e-9)
	assert.InDelta(t, 5.0, a.TotalFees, 1e-9)
	assert.InDelta(t, 4.0, a.TotalSlippage, 1e-9)
	assert.InDelta(t, a.InitialEquity+a.TotalPnL-a.TotalFees-a.TotalSlippage, a.CurrentEquity, 1e-9)
	assert.InDelta(t, 1014.0, a.CurrentEquity, 1e-9)

	// Win/loss counters follow the net result, not the gross one.
	assert.Equal(t, 1, a.WinningTrades)
	assert.Equal(t, 2, a.LosingTrades)
	assert.InDelta(t, 1.0/3.0, a.WinRate(), 1e-9)
	assert.InDelta(t, 1.4, a.EquityChangePct(), 1e-9)
}

func TestWinRateEmptyAccount(t *testing.T) {
	a := &ShadowAccountState{}
	assert.Zero(t, a.WinRate())
	assert.Zero(t, a.EquityChangePct())
}
