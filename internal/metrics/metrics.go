// Package metrics derives durations and intervals from the history log.
// Everything here is a pure function of its inputs; durations are never
// stored.
package metrics

import (
	"sort"
	"time"

	"github.com/sadopc/tempo/internal/store"
)

// Window is an inclusive time range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Day returns the local calendar day containing t.
func Day(t time.Time) Window {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return Window{Start: start, End: start.AddDate(0, 0, 1).Add(-time.Millisecond)}
}

// Days returns the window covering n calendar days ending on the day of end.
func Days(end time.Time, n int) Window {
	last := Day(end)
	return Window{Start: last.Start.AddDate(0, 0, 1-n), End: last.End}
}

func (w Window) contains(ms int64) bool {
	return ms >= w.Start.UnixMilli() && ms <= w.End.UnixMilli()
}

// Interval is one span of a task or of rest. Open marks the running entry,
// whose End is the time the result was computed at.
type Interval struct {
	TaskID   string
	TaskName string
	Start    time.Time
	End      time.Time
	IsRest   bool
	Open     bool
}

func (i Interval) Duration() time.Duration { return i.End.Sub(i.Start) }

type Result struct {
	PerTask   map[string]time.Duration
	TaskNames map[string]string
	TotalRest time.Duration
	Intervals []Interval
}

// Empty reports whether nothing was recorded in the window.
func (r Result) Empty() bool {
	return len(r.Intervals) == 0
}

// TotalWork sums the per-task durations.
func (r Result) TotalWork() time.Duration {
	var d time.Duration
	for _, v := range r.PerTask {
		d += v
	}
	return d
}

type TaskTotal struct {
	TaskID   string
	TaskName string
	Duration time.Duration
}

// Ranked returns the per-task totals, longest first.
func (r Result) Ranked() []TaskTotal {
	out := make([]TaskTotal, 0, len(r.PerTask))
	for id, d := range r.PerTask {
		out = append(out, TaskTotal{TaskID: id, TaskName: r.TaskNames[id], Duration: d})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Duration != out[j].Duration {
			return out[i].Duration > out[j].Duration
		}
		return out[i].TaskName < out[j].TaskName
	})
	return out
}

// Calculate folds the events inside w into per-task totals, total rest and
// an interval list. A stop without a matching start is ignored; a repeated
// start replaces the earlier one. The active entry counts up to now, or to
// the end of the window if that comes first.
func Calculate(history []store.HistoryEvent, active *store.ActiveEntry, w Window, now time.Time) Result {
	res := Result{
		PerTask:   map[string]time.Duration{},
		TaskNames: map[string]string{},
	}

	for _, iv := range fold(history, w) {
		res.add(iv)
	}

	if active != nil && w.contains(active.StartTime) {
		end := now
		if end.After(w.End) {
			end = w.End
		}
		res.add(Interval{
			TaskID:   active.TaskID,
			TaskName: active.TaskName,
			Start:    active.Start(),
			End:      end,
			IsRest:   active.IsRest(),
			Open:     true,
		})
	}
	return res
}

func (r *Result) add(iv Interval) {
	if iv.IsRest {
		r.TotalRest += iv.Duration()
	} else {
		r.PerTask[iv.TaskID] += iv.Duration()
		r.TaskNames[iv.TaskID] = iv.TaskName
	}
	r.Intervals = append(r.Intervals, iv)
}

// fold pairs start and stop events inside w into closed intervals, in the
// order they were closed.
func fold(history []store.HistoryEvent, w Window) []Interval {
	events := make([]store.HistoryEvent, 0, len(history))
	for _, e := range history {
		if w.contains(e.Timestamp) {
			events = append(events, e)
		}
	}
	sortEvents(events)

	starts := map[string]store.HistoryEvent{}
	var out []Interval
	for _, e := range events {
		switch {
		case e.Type.IsStart():
			starts[e.TaskID] = e
		case e.Type.IsStop():
			start, ok := starts[e.TaskID]
			if !ok {
				continue
			}
			delete(starts, e.TaskID)
			name := start.TaskName
			if name == "" {
				name = e.TaskName
			}
			out = append(out, Interval{
				TaskID:   e.TaskID,
				TaskName: name,
				Start:    start.Time(),
				End:      e.Time(),
				IsRest:   e.IsRest(),
			})
		}
	}
	return out
}

// sortEvents orders events by time. At equal timestamps a stop comes before
// a start so the previous interval closes before the next one opens.
func sortEvents(events []store.HistoryEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		return a.Type.IsStop() && b.Type.IsStart()
	})
}
