package ports

import (
	"context"
	"time"

	"sniperBot/internal/domain"
)

// EventSink receives position lifecycle events.
type EventSink interface {
	Record(ctx context.Context, event domain.LifecycleEvent) error
}

// TradeRepository defines read access to recorded trades.
type TradeRepository interface {
	// FindTrades returns trades executed at or after since, oldest first.
	FindTrades(ctx context.Context, since time.Time) ([]*domain.Trade, error)
	// CountTodayBuys counts buys executed since local midnight.
	CountTodayBuys(ctx context.Context) (int, error)
	// HasBought reports whether a buy was ever recorded for the token.
	HasBought(ctx context.Context, token string) (bool, error)
}

// IntentSource streams trade intents until the context is canceled.
type IntentSource interface {
	Intents(ctx context.Context) (<-chan domain.TradeIntent, error)
}

// TokenBlacklist persists tokens that must never be bought, such as honeypots.
type TokenBlacklist interface {
	IsBlacklisted(ctx context.Context, token string) (bool, error)
	Blacklist(ctx context.Context, token, reason string) error
}
