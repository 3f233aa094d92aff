package portfolio

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Checkpoint is the durable account snapshot written at bar-close
// boundaries. Mid-bar state is never persisted.
type Checkpoint struct {
	Version       int        `json:"version"`
	UpdatedAt     string     `json:"updated_at"`
	Equity        float64    `json:"equity"`
	HighWatermark float64    `json:"high_watermark"`
	DrawdownR     float64    `json:"drawdown_r"`
	LatchTripped  bool       `json:"latch_tripped"`
	Open          []Position `json:"open_positions"`
	LastTick      time.Time  `json:"last_tick"`
}

// SaveCheckpoint writes the snapshot with a temp file plus rename so a
// crash never leaves a torn file behind.
func (t *Tracker) SaveCheckpoint(path string, lastTick time.Time, version int) error {
	cp := Checkpoint{
		Version:       version,
		UpdatedAt:     time.Now().UTC().Format(time.RFC3339),
		Equity:        t.equity,
		HighWatermark: t.latch.HighWatermark(),
		DrawdownR:     t.latch.DrawdownR(),
		LatchTripped:  t.latch.Tripped(),
		Open:          t.OpenPositions(),
		LastTick:      lastTick,
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

// RestoreCheckpoint rehydrates the tracker from disk. A missing file is not
// an error; the tracker keeps its starting state.
func (t *Tracker) RestoreCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}

	t.equity = cp.Equity
	t.latch.Restore(cp.HighWatermark, cp.DrawdownR, cp.LatchTripped)
	t.open = t.open[:0]
	for i := range cp.Open {
		p := cp.Open[i]
		t.open = append(t.open, &p)
	}
	return &cp, nil
}
