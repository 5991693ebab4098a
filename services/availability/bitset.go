// File: services/availability/bitset.go
package availability

import (
	"errors"
	"fmt"

	"lessonhub/models"
)

// ErrInvalidWindow is returned when a window's end does not come after its
// start.
var ErrInvalidWindow = errors.New("invalid time window")

// EncodeWindows converts a list of time windows into the fixed-width per-day
// bitset. One bit is set for every interval fully or partially covered by any
// input window; input windows may be unsorted and overlapping.
func EncodeWindows(windows []models.TimeWindow) ([]byte, error) {
	bits := make([]byte, models.DayBitsLen)
	for _, w := range windows {
		if w.End <= w.Start {
			return nil, fmt.Errorf("%w: [%d, %d)", ErrInvalidWindow, w.Start, w.End)
		}
		start := w.Start
		if start < 0 {
			start = 0
		}
		end := w.End
		if end > 24*60 {
			end = 24 * 60
		}
		if start >= end {
			continue
		}
		first := start / models.IntervalMinutes
		last := (end - 1) / models.IntervalMinutes
		for i := first; i <= last && i < models.IntervalsPerDay; i++ {
			bits[i/8] |= 1 << (i % 8)
		}
	}
	return bits, nil
}

// DecodeBits converts a bitset back into the maximal, non-overlapping windows
// formed by merging contiguous set bits, sorted by start time. An all-zero
// bitset decodes to an empty list. Decode-then-encode reproduces the same
// bitset: the round trip is idempotent, not identity-preserving for redundant
// or adjacent inputs.
func DecodeBits(bits []byte) []models.TimeWindow {
	var windows []models.TimeWindow
	runStart := -1
	for i := 0; i < models.IntervalsPerDay; i++ {
		set := i/8 < len(bits) && bits[i/8]&(1<<(i%8)) != 0
		switch {
		case set && runStart < 0:
			runStart = i
		case !set && runStart >= 0:
			windows = append(windows, models.TimeWindow{
				Start: runStart * models.IntervalMinutes,
				End:   i * models.IntervalMinutes,
			})
			runStart = -1
		}
	}
	if runStart >= 0 {
		windows = append(windows, models.TimeWindow{
			Start: runStart * models.IntervalMinutes,
			End:   models.IntervalsPerDay * models.IntervalMinutes,
		})
	}
	return windows
}

// Contains reports whether [start, end) falls fully inside one of the decoded
// windows.
func Contains(windows []models.TimeWindow, start, end int) bool {
	for _, w := range windows {
		if start >= w.Start && end <= w.End {
			return true
		}
	}
	return false
}

// IsEmpty reports whether no interval is set.
func IsEmpty(bits []byte) bool {
	for _, b := range bits {
		if b != 0 {
			return false
		}
	}
	return true
}
