package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(Config{
		DBPath: filepath.Join(t.TempDir(), "nested", "test.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func buyEvent(id, token string, at time.Time) domain.LifecycleEvent {
	return domain.LifecycleEvent{
		ID:         "evt-" + id,
		Type:       domain.EventBuyRecorded,
		PositionID: "pos-" + token,
		TokenID:    token,
		Time:       at,
		Trade: &domain.Trade{
			ID:          "trade-" + id,
			PositionID:  "pos-" + token,
			TokenID:     token,
			Side:        domain.Buy,
			Signature:   "sig-" + id,
			BaseAmount:  0.5,
			TokenAmount: 10_000_000_000_000_000_000,
			Price:       0.0005,
			Source:      "telegram",
			ExecutedAt:  at,
		},
	}
}

func sellEvent(id, token string, at time.Time, pct, pnl float64, reason domain.ExitReason) domain.LifecycleEvent {
	return domain.LifecycleEvent{
		ID:         "evt-" + id,
		Type:       domain.EventSellRecorded,
		PositionID: "pos-" + token,
		TokenID:    token,
		Time:       at,
		HighPrice:  0.002,
		LowPrice:   0.0004,
		MaxROI:     300,
		Trade: &domain.Trade{
			ID:            "trade-" + id,
			PositionID:    "pos-" + token,
			TokenID:       token,
			Side:          domain.Sell,
			Signature:     "sig-" + id,
			BaseAmount:    0.5 + pnl,
			TokenAmount:   1_000,
			Price:         0.001,
			SoldPercent:   pct,
			ProfitPercent: 100,
			PNL:           pnl,
			Reason:        reason,
			Paper:         true,
			ExecutedAt:    at,
		},
	}
}

func TestRepository_RecordAndFindTrades(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	require.NoError(t, repo.Record(ctx, buyEvent("1", "MINT", base)))
	require.NoError(t, repo.Record(ctx, sellEvent("2", "MINT", base.Add(10*time.Minute), 25, 0.1, domain.ExitReasonMultiTakeProfit)))
	require.NoError(t, repo.Record(ctx, sellEvent("3", "MINT", base.Add(20*time.Minute), 75, 0.3, domain.ExitReasonTrailingStop)))

	trades, err := repo.FindTrades(ctx, base.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, trades, 3)

	assert.Equal(t, domain.Buy, trades[0].Side)
	assert.Equal(t, uint64(10_000_000_000_000_000_000), trades[0].TokenAmount, "amounts above MaxInt64 round-trip")
	assert.Equal(t, "telegram", trades[0].Source)
	assert.Empty(t, trades[0].Reason)
	assert.False(t, trades[0].Paper)
	assert.WithinDuration(t, base, trades[0].ExecutedAt, time.Millisecond)

	assert.Equal(t, domain.Sell, trades[1].Side)
	assert.Equal(t, domain.ExitReasonMultiTakeProfit, trades[1].Reason)
	assert.Equal(t, 25.0, trades[1].SoldPercent)
	assert.True(t, trades[1].Paper)
	assert.Equal(t, domain.ExitReasonTrailingStop, trades[2].Reason)

	later, err := repo.FindTrades(ctx, base.Add(15*time.Minute))
	require.NoError(t, err)
	require.Len(t, later, 1)
	assert.Equal(t, "trade-3", later[0].ID)
}

func TestRepository_RecordDuplicate(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	evt := buyEvent("1", "MINT", time.Now())

	require.NoError(t, repo.Record(ctx, evt))
	err := repo.Record(ctx, evt)
	assert.ErrorIs(t, err, ports.ErrDuplicateEntry)

	trades, err := repo.FindTrades(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}

func TestRepository_RecordRejectsTradeEventWithoutTrade(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	evt := buyEvent("1", "MINT", time.Now())
	evt.Trade = nil

	err := repo.Record(ctx, evt)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)

	n, err := repo.CountEvents(ctx, domain.EventBuyRecorded)
	require.NoError(t, err)
	assert.Zero(t, n, "event insert rolled back")
}

func TestRepository_HasBoughtAndCountToday(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	bought, err := repo.HasBought(ctx, "MINT")
	require.NoError(t, err)
	assert.False(t, bought)

	require.NoError(t, repo.Record(ctx, buyEvent("1", "MINT", now)))
	require.NoError(t, repo.Record(ctx, buyEvent("2", "OTHER", now.Add(-48*time.Hour))))
	require.NoError(t, repo.Record(ctx, sellEvent("3", "MINT", now, 100, 0.1, domain.ExitReasonStopLoss)))

	bought, err = repo.HasBought(ctx, "MINT")
	require.NoError(t, err)
	assert.True(t, bought)

	count, err := repo.CountTodayBuys(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRepository_Watermarks(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	mark := func(id string, high, low, roi float64) domain.LifecycleEvent {
		return domain.LifecycleEvent{
			ID:         "wm-" + id,
			Type:       domain.EventWatermarkUpdated,
			PositionID: "pos-MINT",
			TokenID:    "MINT",
			Time:       now,
			HighPrice:  high,
			LowPrice:   low,
			MaxROI:     roi,
		}
	}
	require.NoError(t, repo.Record(ctx, mark("1", 1.5, 0.9, 50)))
	require.NoError(t, repo.Record(ctx, mark("2", 1.2, 0.8, 20)))

	marks, err := repo.Watermarks(ctx)
	require.NoError(t, err)
	require.Contains(t, marks, "pos-MINT")
	w := marks["pos-MINT"]
	assert.Equal(t, 1.5, w.HighPrice, "high never decreases")
	assert.Equal(t, 0.8, w.LowPrice)
	assert.Equal(t, 50.0, w.MaxROI)

	n, err := repo.CountEvents(ctx, domain.EventWatermarkUpdated)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRepository_SellFailedEvent(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	err := repo.Record(ctx, domain.LifecycleEvent{
		ID:         "evt-fail",
		Type:       domain.EventSellFailed,
		PositionID: "pos-MINT",
		TokenID:    "MINT",
		Time:       time.Now(),
		Message:    "no route",
	})
	require.NoError(t, err)

	n, err := repo.CountEvents(ctx, domain.EventSellFailed)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	trades, err := repo.FindTrades(ctx, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestNewRepository_RequiresLogger(t *testing.T) {
	_, err := NewRepository(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
	assert.Error(t, err)
}

func TestRepository_Blacklist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bl.db")
	repo, err := NewRepository(Config{DBPath: path, Logger: &mockLogger{}})
	require.NoError(t, err)
	ctx := context.Background()

	listed, err := repo.IsBlacklisted(ctx, "MINT")
	require.NoError(t, err)
	assert.False(t, listed)

	require.NoError(t, repo.Blacklist(ctx, "MINT", "no sell route"))
	require.NoError(t, repo.Blacklist(ctx, "MINT", "again"), "marking twice is not an error")

	listed, err = repo.IsBlacklisted(ctx, "MINT")
	require.NoError(t, err)
	assert.True(t, listed)
	require.NoError(t, repo.Close())

	reopened, err := NewRepository(Config{DBPath: path, Logger: &mockLogger{}})
	require.NoError(t, err)
	defer reopened.Close()
	listed, err = reopened.IsBlacklisted(ctx, "MINT")
	require.NoError(t, err)
	assert.True(t, listed, "blacklist survives restarts")
	listed, err = reopened.IsBlacklisted(ctx, "OTHER")
	require.NoError(t, err)
	assert.False(t, listed)
}
