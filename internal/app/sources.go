package app

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"

	"sniperBot/internal/domain"
)

// StaticSource emits a fixed list of intents and then closes.
type StaticSource []domain.TradeIntent

// Intents implements ports.IntentSource.
func (s StaticSource) Intents(ctx context.Context) (<-chan domain.TradeIntent, error) {
	out := make(chan domain.TradeIntent, len(s))
	for _, intent := range s {
		out <- intent
	}
	close(out)
	return out, nil
}

// LineSource reads one token address per line, ignoring blank lines and
// lines starting with #. The channel closes at EOF or when ctx is done.
type LineSource struct {
	R      io.Reader
	Source string
}

// Intents implements ports.IntentSource.
func (s LineSource) Intents(ctx context.Context) (<-chan domain.TradeIntent, error) {
	source := s.Source
	if source == "" {
		source = "stdin"
	}
	out := make(chan domain.TradeIntent)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(s.R)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			token := strings.Fields(line)[0]
			select {
			case out <- domain.TradeIntent{TokenID: token, Source: source, ReceivedAt: time.Now()}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
