package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"sniperBot/internal/domain"
)

var tradeHeader = []string{
	"executed_at", "position_id", "token", "side", "signature", "base_amount", "token_amount",
	"price", "sold_percent", "profit_percent", "pnl", "usd_value", "reason", "source", "paper",
}

// WriteTrades writes trades as CSV with a header row.
func WriteTrades(w io.Writer, trades []*domain.Trade) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(tradeHeader); err != nil {
		return err
	}
	for _, t := range trades {
		if t == nil {
			continue
		}
		if err := writer.Write([]string{
			t.ExecutedAt.Format(time.RFC3339),
			t.PositionID,
			t.TokenID,
			string(t.Side),
			t.Signature,
			formatFloat(t.BaseAmount),
			strconv.FormatUint(t.TokenAmount, 10),
			formatFloat(t.Price),
			formatFloat(t.SoldPercent),
			formatFloat(t.ProfitPercent),
			formatFloat(t.PNL),
			formatFloat(t.USDValue),
			string(t.Reason),
			t.Source,
			strconv.FormatBool(t.Paper),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteTradesToCSV writes trades to filename, replacing any existing file.
func WriteTradesToCSV(trades []*domain.Trade, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create %s: %w", filename, err)
	}
	defer file.Close()

	if err := WriteTrades(file, trades); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}
	return file.Close()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
