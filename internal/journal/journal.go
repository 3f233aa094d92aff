// Package journal appends every order, fill, trade, and quality flag to a
// JSONL file. The file doubles as the input for post-hoc reporting, so a
// run can be analyzed without re-replaying ticks.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/priyakantc/smc-replay/internal/portfolio"
	"github.com/priyakantc/smc-replay/internal/sim"
	"github.com/priyakantc/smc-replay/internal/tick"
)

const (
	TypeOrder = "order"
	TypeFill  = "fill"
	TypeTrade = "trade"
	TypeFlag  = "quality_flag"
)

type Entry struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Event time.Time       `json:"event"`
}

// Writer appends entries to one journal file. Event timestamps come from
// the replay clock, not the wall clock, so the journal is reproducible.
type Writer struct {
	path string
}

func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal dir: %w", err)
	}
	// create up front so an empty run still leaves its journal behind
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal open: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("journal close: %w", err)
	}
	return &Writer{path: path}, nil
}

func (w *Writer) WriteOrder(o sim.Order, at time.Time) error {
	return w.append(TypeOrder, o, at)
}

func (w *Writer) WriteFill(f sim.Fill, at time.Time) error {
	return w.append(TypeFill, f, at)
}

func (w *Writer) WriteTrade(t portfolio.Trade, at time.Time) error {
	return w.append(TypeTrade, t, at)
}

func (w *Writer) WriteFlag(f tick.Flag) error {
	return w.append(TypeFlag, f, f.Timestamp)
}

func (w *Writer) append(typ string, v any, at time.Time) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	line, err := json.Marshal(Entry{Type: typ, Data: data, Event: at.UTC()})
	if err != nil {
		return err
	}

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(append(line, '\n'))
	return err
}

// ReadTrades loads the closed trades from a journal file, in write order.
func ReadTrades(path string) ([]portfolio.Trade, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var trades []portfolio.Trade
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("journal line %d: %w", line, err)
		}
		if e.Type != TypeTrade {
			continue
		}
		var t portfolio.Trade
		if err := json.Unmarshal(e.Data, &t); err != nil {
			return nil, fmt.Errorf("journal line %d: %w", line, err)
		}
		trades = append(trades, t)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	return trades, nil
}
