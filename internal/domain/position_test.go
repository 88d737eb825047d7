package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceHistory_EvictsOldest(t *testing.T) {
	var h PriceHistory
	base := time.Unix(0, 0)
	for i := 0; i < PriceHistoryCapacity+5; i++ {
		h.Append(PricePoint{Time: base.Add(time.Duration(i) * time.Second), Price: float64(i)})
	}

	require.Equal(t, PriceHistoryCapacity, h.Len())
	prices := h.Prices()
	assert.Equal(t, 5.0, prices[0])
	assert.Equal(t, float64(PriceHistoryCapacity+4), prices[len(prices)-1])
}

func TestPriceHistory_CopyIsIndependent(t *testing.T) {
	var h PriceHistory
	h.Append(PricePoint{Price: 1})
	cp := h
	cp.Append(PricePoint{Price: 2})

	assert.Equal(t, 1, h.Len())
	assert.Equal(t, 2, cp.Len())
}

func TestPosition_ObservePrice(t *testing.T) {
	now := time.Now()
	p := NewPosition("id", "mint", 1.0, 0.05, 1000, 6, now)

	moved := p.ObservePrice(1.5, now.Add(time.Second))
	assert.True(t, moved)
	assert.Equal(t, 1.5, p.HighPrice)
	assert.Equal(t, 1.0, p.LowPrice)
	assert.InDelta(t, 50.0, p.PercentChange, 1e-9)

	moved = p.ObservePrice(1.2, now.Add(2*time.Second))
	assert.False(t, moved)
	assert.Equal(t, 1.5, p.HighPrice)
	assert.InDelta(t, 50.0, p.HighROI(), 1e-9)

	moved = p.ObservePrice(0.8, now.Add(3*time.Second))
	assert.True(t, moved)
	assert.Equal(t, 0.8, p.LowPrice)
	assert.Equal(t, 4, p.History.Len())
}

func TestPosition_AddSoldClamps(t *testing.T) {
	p := Position{}
	p.AddSold(60)
	p.AddSold(-10)
	assert.Equal(t, 60.0, p.SoldPercent)
	p.AddSold(60)
	assert.Equal(t, 100.0, p.SoldPercent)
}

func TestAmountConversions(t *testing.T) {
	tests := []struct {
		name     string
		ui       float64
		decimals uint8
		raw      uint64
	}{
		{"one sol", 1, BaseDecimals, 1_000_000_000},
		{"buy amount", 0.05, BaseDecimals, 50_000_000},
		{"six decimals", 12.345678, 6, 12_345_678},
		{"negative", -1, 6, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.raw, FromUI(tt.ui, tt.decimals))
		})
	}

	assert.InDelta(t, 0.05, ToUI(50_000_000, BaseDecimals), 1e-12)
	assert.Equal(t, uint64(250), ScaleRaw(1000, 25))
	assert.Equal(t, uint64(10), ScaleRaw(1000, 1))
	assert.InDelta(t, 0.0001, UnitPrice(100_000_000, BaseDecimals, 1_000_000_000, 6), 1e-12)
	assert.Equal(t, 0.0, UnitPrice(1, 9, 0, 6))
}
