// Package indicator maintains the rolling indicator windows attached to
// finalized bars: ATR over 14 and 100 bars, ADX(14) and the Choppiness
// Index(14). One Tracker exists per timeframe and is owned by the bar
// aggregator; downstream consumers only ever see immutable Snapshots.
package indicator

import (
	"math"
)

const (
	atrShortPeriod = 14
	atrLongPeriod  = 100
	adxPeriod      = 14
	chopPeriod     = 14
)

// Snapshot is the indicator state computed over a closed bar series, up to
// and including the bar it is attached to. Values are zero until the
// corresponding window has filled; Bars lets consumers check warmup.
type Snapshot struct {
	ATR14  float64 `json:"atr14"`
	ATR100 float64 `json:"atr100"`
	ADX14  float64 `json:"adx14"`
	CHOP14 float64 `json:"chop14"`
	Bars   int     `json:"bars"`
}

// Warm reports whether at least n bars have been observed.
func (s Snapshot) Warm(n int) bool { return s.Bars >= n }

// Tracker accumulates true ranges and directional movement per Wilder.
type Tracker struct {
	bars      int
	prevHigh  float64
	prevLow   float64
	prevClose float64

	// ring buffers over the long window
	tr    []float64
	highs []float64
	lows  []float64

	// Wilder-smoothed directional movement state
	smTR      float64
	smPlusDM  float64
	smMinusDM float64
	adx       float64
	dxCount   int
	dxSum     float64
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Push feeds one closed bar and returns the snapshot over the series ending
// at that bar.
func (t *Tracker) Push(high, low, close float64) Snapshot {
	var tr float64
	if t.bars == 0 {
		tr = high - low
	} else {
		tr = math.Max(high-low, math.Max(
			math.Abs(high-t.prevClose),
			math.Abs(low-t.prevClose)))
		t.updateDirectional(high, low, tr)
	}

	t.tr = appendCapped(t.tr, tr, atrLongPeriod)
	t.highs = appendCapped(t.highs, high, atrLongPeriod)
	t.lows = appendCapped(t.lows, low, atrLongPeriod)

	t.prevHigh, t.prevLow, t.prevClose = high, low, close
	t.bars++

	return Snapshot{
		ATR14:  mean(tail(t.tr, atrShortPeriod)),
		ATR100: meanIfFull(t.tr, atrLongPeriod),
		ADX14:  t.adxValue(),
		CHOP14: t.chop(),
		Bars:   t.bars,
	}
}

func (t *Tracker) updateDirectional(high, low, tr float64) {
	upMove := high - t.prevHigh
	downMove := t.prevLow - low
	plusDM, minusDM := 0.0, 0.0
	if upMove > downMove && upMove > 0 {
		plusDM = upMove
	}
	if downMove > upMove && downMove > 0 {
		minusDM = downMove
	}

	if t.bars <= adxPeriod {
		t.smTR += tr
		t.smPlusDM += plusDM
		t.smMinusDM += minusDM
		if t.bars < adxPeriod {
			return
		}
	} else {
		t.smTR = t.smTR - t.smTR/adxPeriod + tr
		t.smPlusDM = t.smPlusDM - t.smPlusDM/adxPeriod + plusDM
		t.smMinusDM = t.smMinusDM - t.smMinusDM/adxPeriod + minusDM
	}

	if t.smTR == 0 {
		return
	}
	plusDI := 100 * t.smPlusDM / t.smTR
	minusDI := 100 * t.smMinusDM / t.smTR
	if plusDI+minusDI == 0 {
		return
	}
	dx := 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)

	if t.dxCount < adxPeriod {
		t.dxSum += dx
		t.dxCount++
		if t.dxCount == adxPeriod {
			t.adx = t.dxSum / adxPeriod
		}
		return
	}
	t.adx = (t.adx*(adxPeriod-1) + dx) / adxPeriod
}

func (t *Tracker) adxValue() float64 {
	if t.dxCount < adxPeriod {
		return 0
	}
	return t.adx
}

// chop implements the Choppiness Index: 100*log10(sumTR/range)/log10(n).
func (t *Tracker) chop() float64 {
	if len(t.tr) < chopPeriod {
		return 0
	}
	sumTR := sum(tail(t.tr, chopPeriod))
	maxH := maxOf(tail(t.highs, chopPeriod))
	minL := minOf(tail(t.lows, chopPeriod))
	r := maxH - minL
	if r <= 0 || sumTR <= 0 {
		return 0
	}
	return 100 * math.Log10(sumTR/r) / math.Log10(chopPeriod)
}

func appendCapped(s []float64, v float64, limit int) []float64 {
	s = append(s, v)
	if len(s) > limit {
		s = s[1:]
	}
	return s
}

func tail(s []float64, n int) []float64 {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func sum(s []float64) float64 {
	total := 0.0
	for _, v := range s {
		total += v
	}
	return total
}

func mean(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	return sum(s) / float64(len(s))
}

func meanIfFull(s []float64, n int) float64 {
	if len(s) < n {
		return 0
	}
	return mean(tail(s, n))
}

func maxOf(s []float64) float64 {
	m := math.Inf(-1)
	for _, v := range s {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(s []float64) float64 {
	m := math.Inf(1)
	for _, v := range s {
		if v < m {
			m = v
		}
	}
	return m
}
