package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

type deduper interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// IntentSubscriber implements ports.IntentSource over a pub/sub channel.
// Payloads are either a JSON TradeIntent or a bare token address.
type IntentSubscriber struct {
	rdb     *redis.Client
	dedupe  deduper
	channel string
	prefix  string
	ttl     time.Duration
	logger  ports.Logger
	now     func() time.Time
}

// Intents subscribes and streams decoded intents until ctx is done.
func (s *IntentSubscriber) Intents(ctx context.Context) (<-chan domain.TradeIntent, error) {
	pubsub := s.rdb.Subscribe(ctx, s.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("%w: subscribe %s: %w", ports.ErrConnectionFailed, s.channel, err)
	}
	s.logger.Info(ctx, "Subscribed to intent channel", map[string]interface{}{"channel": s.channel})

	out := make(chan domain.TradeIntent, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()
		s.consume(ctx, pubsub.Channel(), out)
	}()
	return out, nil
}

func (s *IntentSubscriber) consume(ctx context.Context, msgs <-chan *redis.Message, out chan<- domain.TradeIntent) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			intent, err := decodeIntent(msg.Payload, s.now())
			if err != nil {
				s.logger.Warn(ctx, "Dropping malformed intent", map[string]interface{}{"channel": msg.Channel, "error": err.Error()})
				continue
			}
			if !s.firstSeen(ctx, intent.TokenID) {
				s.logger.Debug(ctx, "Duplicate intent ignored", map[string]interface{}{"token": intent.TokenID})
				continue
			}
			select {
			case out <- intent:
			case <-ctx.Done():
				return
			}
		}
	}
}

// firstSeen claims token for the dedupe window. Redis errors let the intent
// through; the trading service rejects duplicates on its own.
func (s *IntentSubscriber) firstSeen(ctx context.Context, token string) bool {
	if s.dedupe == nil {
		return true
	}
	ok, err := s.dedupe.SetNX(ctx, s.prefix+"intent:"+token, s.now().Unix(), s.ttl).Result()
	if err != nil {
		s.logger.Warn(ctx, "Intent dedupe unavailable", map[string]interface{}{"token": token, "error": err.Error()})
		return true
	}
	return ok
}

func decodeIntent(payload string, now time.Time) (domain.TradeIntent, error) {
	payload = strings.TrimSpace(payload)
	var intent domain.TradeIntent
	switch {
	case payload == "":
		return intent, fmt.Errorf("%w: empty payload", ports.ErrInvalidRequest)
	case strings.HasPrefix(payload, "{"):
		if err := json.Unmarshal([]byte(payload), &intent); err != nil {
			return intent, fmt.Errorf("%w: %w", ports.ErrInvalidRequest, err)
		}
	case strings.ContainsAny(payload, " \t\n"):
		return intent, fmt.Errorf("%w: not a token address: %q", ports.ErrInvalidRequest, payload)
	default:
		intent.TokenID = payload
	}

	intent.TokenID = strings.TrimSpace(intent.TokenID)
	if intent.TokenID == "" {
		return intent, fmt.Errorf("%w: missing token", ports.ErrInvalidRequest)
	}
	if intent.Amount < 0 || intent.Slippage < 0 {
		return intent, fmt.Errorf("%w: negative amount or slippage", ports.ErrInvalidRequest)
	}
	if intent.Source == "" {
		intent.Source = "redis"
	}
	if intent.ReceivedAt.IsZero() {
		intent.ReceivedAt = now
	}
	return intent, nil
}
