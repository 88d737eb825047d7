package backtesting

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ReadTicks parses price paths from CSV rows of token,time,price[,volume].
// Time is RFC 3339 or unix seconds. A header row is skipped. Each token's
// ticks are returned in time order.
func ReadTicks(r io.Reader) (map[string][]Tick, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	paths := make(map[string][]Tick)
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading ticks: %w", err)
		}
		if len(record) < 3 {
			return nil, fmt.Errorf("line %d: want token,time,price[,volume], got %d fields", line, len(record))
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "token") {
			continue
		}

		token := strings.TrimSpace(record[0])
		at, err := parseTime(strings.TrimSpace(record[1]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid price: %w", line, err)
		}
		tick := Tick{Time: at, Price: price}
		if len(record) > 3 && strings.TrimSpace(record[3]) != "" {
			if tick.Volume, err = strconv.ParseFloat(strings.TrimSpace(record[3]), 64); err != nil {
				return nil, fmt.Errorf("line %d: invalid volume: %w", line, err)
			}
		}
		paths[token] = append(paths[token], tick)
	}

	for _, ticks := range paths {
		sort.SliceStable(ticks, func(i, j int) bool { return ticks[i].Time.Before(ticks[j].Time) })
	}
	return paths, nil
}

func parseTime(s string) (time.Time, error) {
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q", s)
	}
	return t, nil
}
