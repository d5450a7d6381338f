// Package block provides the 30-minute block quantizer.
//
// All timestamps used for quick "what are you doing now" logging are aligned
// to a fixed half-hour grid. Quantization is pure and idempotent.
package block

import (
	"iter"
	"time"

	"github.com/timegrid/timegrid/internal/models"
)

// BlocksPerDay is the number of 30-minute blocks in a day.
const BlocksPerDay = 48

// RoundToBlock truncates t down to its block boundary: minutes become 0 when
// below 30 and 30 otherwise, seconds and sub-second precision are zeroed.
// The result satisfies RoundToBlock(t) <= t < RoundToBlock(t)+30m, and the
// operation is idempotent.
func RoundToBlock(t time.Time) time.Time {
	minute := 0
	if t.Minute() >= 30 {
		minute = 30
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), minute, 0, 0, t.Location())
}

// End returns the exclusive end of the block containing t.
func End(t time.Time) time.Time {
	return RoundToBlock(t).Add(models.BlockDuration)
}

// Quantize maps t to the canonical half-open block interval containing it.
func Quantize(t time.Time) models.ActivityBlock {
	start := RoundToBlock(t)
	return models.ActivityBlock{Start: start, End: start.Add(models.BlockDuration)}
}

// Within reports whether t falls inside the half-open block starting at
// blockStart: blockStart <= t < blockStart+30m.
func Within(t, blockStart time.Time) bool {
	return !t.Before(blockStart) && t.Before(blockStart.Add(models.BlockDuration))
}

// BlocksForDay returns a lazy, restartable sequence of exactly 48 block start
// times for the day containing date, spaced 30 minutes from local midnight.
//
// Offsets are added as absolute durations from local midnight, so the
// sequence always has exactly 48 entries; on DST transition days the wall
// clock of individual blocks may repeat or skip instead.
func BlocksForDay(date time.Time) iter.Seq[time.Time] {
	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return func(yield func(time.Time) bool) {
		for i := 0; i < BlocksPerDay; i++ {
			if !yield(midnight.Add(time.Duration(i) * models.BlockDuration)) {
				return
			}
		}
	}
}
