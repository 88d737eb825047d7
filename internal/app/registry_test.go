package app

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

func testPosition(token string, at time.Time) domain.Position {
	return domain.NewPosition("pos-"+token, token, 1.0, 0.5, 1_000_000_000, 6, at)
}

func TestRegistry_OpenRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	require.NoError(t, r.Open(testPosition("MINT", now)))

	err := r.Open(testPosition("MINT", now))
	assert.ErrorIs(t, err, ports.ErrPositionExists)
	assert.Equal(t, 1, r.Count())
	assert.True(t, r.Has("MINT"))
}

func TestRegistry_SnapshotIsACopy(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Open(testPosition("MINT", time.Now())))

	snap, ok := r.Snapshot("MINT")
	require.True(t, ok)
	snap.SoldPercent = 80
	snap.History.Append(domain.PricePoint{Price: 9})

	again, _ := r.Snapshot("MINT")
	assert.Equal(t, 0.0, again.SoldPercent)
	assert.Equal(t, 1, again.History.Len())
}

func TestRegistry_UpdateProtectsOwnedFields(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Open(testPosition("MINT", time.Now())))

	_, err := r.Update("MINT", func(p *domain.Position) error {
		p.TrailingStopPrice, p.TrailingStopROI = 1.5, 50
		return nil
	})
	require.NoError(t, err)

	pos, err := r.Update("MINT", func(p *domain.Position) error {
		p.SoldPercent = 90
		p.SellInProgress = true
		p.TokenID = "OTHER"
		p.TrailingStopPrice, p.TrailingStopROI = 1.2, 20
		p.CurrentPrice = 1.7
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "MINT", pos.TokenID)
	assert.Equal(t, 0.0, pos.SoldPercent)
	assert.False(t, pos.SellInProgress)
	assert.Equal(t, 1.5, pos.TrailingStopPrice, "trailing stop never moves down")
	assert.Equal(t, 50.0, pos.TrailingStopROI)
	assert.Equal(t, 1.7, pos.CurrentPrice)
}

func TestRegistry_UpdateErrors(t *testing.T) {
	r := NewRegistry()
	_, err := r.Update("missing", func(p *domain.Position) error { return nil })
	assert.ErrorIs(t, err, ports.ErrPositionNotFound)

	require.NoError(t, r.Open(testPosition("MINT", time.Now())))
	_, err = r.Update("MINT", func(p *domain.Position) error {
		p.CurrentPrice = 3
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	snap, _ := r.Snapshot("MINT")
	assert.Equal(t, 1.0, snap.CurrentPrice, "failed update is discarded")

	_, err = r.BeginSell("MINT")
	require.NoError(t, err)
	_, err = r.Update("MINT", func(p *domain.Position) error { return nil })
	assert.ErrorIs(t, err, ports.ErrSellInProgress)
}

func TestRegistry_SellLifecycle(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Open(testPosition("MINT", time.Now())))

	pos, err := r.BeginSell("MINT")
	require.NoError(t, err)
	assert.True(t, pos.SellInProgress)
	assert.Equal(t, domain.StatusSelling, pos.Status)

	_, err = r.BeginSell("MINT")
	assert.ErrorIs(t, err, ports.ErrSellInProgress)

	pos, err = r.CompleteSell("MINT", 25)
	require.NoError(t, err)
	assert.Equal(t, 25.0, pos.SoldPercent)
	assert.False(t, pos.SellInProgress)
	assert.Equal(t, domain.StatusOpen, pos.Status)

	_, err = r.BeginSell("MINT")
	require.NoError(t, err)
	require.NoError(t, r.AbortSell("MINT"))
	snap, _ := r.Snapshot("MINT")
	assert.Equal(t, 25.0, snap.SoldPercent, "abort keeps sold percent")
	assert.False(t, snap.SellInProgress)

	_, err = r.BeginSell("MINT")
	require.NoError(t, err)
	pos, err = r.CompleteSell("MINT", 75)
	require.NoError(t, err)
	assert.Equal(t, 100.0, pos.SoldPercent)
	assert.Equal(t, domain.StatusClosed, pos.Status)
	assert.False(t, r.Has("MINT"), "fully sold position is retired")

	assert.ErrorIs(t, r.AbortSell("MINT"), ports.ErrPositionNotFound)
	_, err = r.CompleteSell("MINT", 10)
	assert.ErrorIs(t, err, ports.ErrPositionNotFound)
}

func TestRegistry_ConcurrentBeginSellHasOneWinner(t *testing.T) {
	for round := 0; round < 50; round++ {
		r := NewRegistry()
		require.NoError(t, r.Open(testPosition("MINT", time.Now())))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := r.BeginSell("MINT"); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	}
}

func TestRegistry_ListOrderedByBuyTime(t *testing.T) {
	r := NewRegistry()
	base := time.Now()
	require.NoError(t, r.Open(testPosition("C", base.Add(2*time.Minute))))
	require.NoError(t, r.Open(testPosition("A", base)))
	require.NoError(t, r.Open(testPosition("B", base.Add(time.Minute))))

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{list[0].TokenID, list[1].TokenID, list[2].TokenID})

	assert.True(t, r.Remove("B"))
	assert.False(t, r.Remove("B"))
	assert.Equal(t, 2, r.Count())
}

func TestRegistry_GoAndWait(t *testing.T) {
	r := NewRegistry()
	var n atomic.Int32
	for i := 0; i < 5; i++ {
		r.Go(func() error {
			n.Add(1)
			return nil
		})
	}
	require.NoError(t, r.Wait())
	assert.Equal(t, int32(5), n.Load())
}
