package metrics

import (
	"fmt"
	"sort"
	"time"

	"github.com/sadopc/tempo/internal/store"
)

// ForDisplay returns history newest first. At equal timestamps the stop is
// listed before the start, so a switch reads "stopped A, started B" from
// the top.
func ForDisplay(history []store.HistoryEvent) []store.HistoryEvent {
	out := append([]store.HistoryEvent(nil), history...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Timestamp != b.Timestamp {
			return a.Timestamp > b.Timestamp
		}
		return a.Type.IsStop() && b.Type.IsStart()
	})
	return out
}

// Describe returns a short label for an event type.
func Describe(t store.EventType) string {
	switch t {
	case store.EventStart:
		return "Started"
	case store.EventStop:
		return "Stopped"
	case store.EventStartRest:
		return "Rest started"
	case store.EventStopRest:
		return "Rest ended"
	}
	return string(t)
}

// FormatDuration renders d as "1h 2m 3s", dropping leading zero units.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// FormatClock renders d as HH:MM:SS.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}
