package app

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sniperBot/internal/domain"
)

func drain(t *testing.T, ch <-chan domain.TradeIntent) []domain.TradeIntent {
	t.Helper()
	var out []domain.TradeIntent
	for intent := range ch {
		out = append(out, intent)
	}
	return out
}

func TestStaticSource(t *testing.T) {
	src := StaticSource{{TokenID: "A"}, {TokenID: "B"}}
	ch, err := src.Intents(context.Background())
	require.NoError(t, err)
	got := drain(t, ch)
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[1].TokenID)
}

func TestLineSource(t *testing.T) {
	input := "MintA\n\n# comment\n  MintB extra words\n"
	ch, err := LineSource{R: strings.NewReader(input)}.Intents(context.Background())
	require.NoError(t, err)

	got := drain(t, ch)
	require.Len(t, got, 2)
	assert.Equal(t, "MintA", got[0].TokenID)
	assert.Equal(t, "MintB", got[1].TokenID)
	assert.Equal(t, "stdin", got[1].Source)
	assert.False(t, got[0].ReceivedAt.IsZero())
}
