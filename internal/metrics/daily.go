package metrics

import (
	"time"

	"github.com/sadopc/tempo/internal/store"
)

// HeatmapDays is the span of the workload heatmap.
const HeatmapDays = 366

type DayTotal struct {
	Day  time.Time // local midnight
	Work time.Duration
	Rest time.Duration
}

func (d DayTotal) Minutes() float64 { return d.Work.Minutes() }

// DailyTotals returns one entry per calendar day, oldest first, for the
// days calendar days ending on the day of end. A closed interval counts
// toward the day it was stopped on, even when it started the day before.
// The running entry counts toward the day of now.
func DailyTotals(history []store.HistoryEvent, active *store.ActiveEntry, end time.Time, days int, now time.Time) []DayTotal {
	if days <= 0 {
		return nil
	}
	w := Days(end, days)

	loc := end.Location()
	out := make([]DayTotal, days)
	index := map[int64]int{}
	for i := range out {
		d := w.Start.AddDate(0, 0, i)
		out[i].Day = d
		index[d.Unix()] = i
	}

	bucket := func(at time.Time, iv Interval) {
		i, ok := index[Day(at.In(loc)).Start.Unix()]
		if !ok {
			return
		}
		if iv.IsRest {
			out[i].Rest += iv.Duration()
		} else {
			out[i].Work += iv.Duration()
		}
	}

	for _, iv := range fold(history, w) {
		bucket(iv.End, iv)
	}

	if active != nil && w.contains(active.StartTime) {
		iv := Interval{Start: active.Start(), End: now, IsRest: active.IsRest()}
		if now.After(w.End) {
			iv.End = w.End
		}
		bucket(iv.End, iv)
	}
	return out
}

// MaxWork returns the largest daily work total.
func MaxWork(totals []DayTotal) time.Duration {
	var m time.Duration
	for _, d := range totals {
		if d.Work > m {
			m = d.Work
		}
	}
	return m
}
