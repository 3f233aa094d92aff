package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/priyakantc/smc-replay/internal/tick"
)

// CSVSource reads ticks from a file with columns
// timestamp_utc,bid,ask[,bid_size,ask_size[,source]]. Timestamps are
// RFC3339 with optional fractional seconds.
type CSVSource struct {
	f      *os.File
	r      *csv.Reader
	source tick.Source
	line   int
}

func OpenCSV(path string, defaultSource tick.Source) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tick file: %w", err)
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true
	return &CSVSource{f: f, r: r, source: defaultSource}, nil
}

func (s *CSVSource) Next(ctx context.Context) (tick.Raw, error) {
	if err := ctx.Err(); err != nil {
		return tick.Raw{}, err
	}
	for {
		rec, err := s.r.Read()
		if err != nil {
			if err == io.EOF {
				return tick.Raw{}, io.EOF
			}
			return tick.Raw{}, fmt.Errorf("tick file line %d: %w", s.line+1, err)
		}
		s.line++
		if s.line == 1 && looksLikeHeader(rec) {
			continue
		}
		raw, err := s.parse(rec)
		if err != nil {
			return tick.Raw{}, fmt.Errorf("tick file line %d: %w", s.line, err)
		}
		return raw, nil
	}
}

func (s *CSVSource) parse(rec []string) (tick.Raw, error) {
	if len(rec) < 3 {
		return tick.Raw{}, fmt.Errorf("want at least 3 columns, got %d", len(rec))
	}
	ts, err := parseTime(rec[0])
	if err != nil {
		return tick.Raw{}, err
	}
	bid, err := strconv.ParseFloat(rec[1], 64)
	if err != nil {
		return tick.Raw{}, fmt.Errorf("bid: %w", err)
	}
	ask, err := strconv.ParseFloat(rec[2], 64)
	if err != nil {
		return tick.Raw{}, fmt.Errorf("ask: %w", err)
	}

	raw := tick.Raw{Timestamp: ts, Bid: bid, Ask: ask, Source: s.source}
	if len(rec) >= 5 {
		raw.BidSize, _ = strconv.ParseFloat(rec[3], 64)
		raw.AskSize, _ = strconv.ParseFloat(rec[4], 64)
	}
	if len(rec) >= 6 && rec[5] != "" {
		raw.Source = tick.Source(rec[5])
	}
	return raw, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	// epoch milliseconds, the dukascopy export format
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("timestamp %q not recognized", s)
}

func looksLikeHeader(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	_, err := parseTime(rec[0])
	return err != nil
}

func (s *CSVSource) Close() error { return s.f.Close() }
