package store

import (
	"fmt"
	"math"
	"time"
)

// RestID is the reserved task id used for break time.
const RestID = "rest"

// RestName is the display name recorded for rest periods.
const RestName = "Rest"

type Task struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type EventType string

const (
	EventStart     EventType = "start"
	EventStop      EventType = "stop"
	EventStartRest EventType = "start_rest"
	EventStopRest  EventType = "stop_rest"
)

func (t EventType) Valid() bool {
	switch t {
	case EventStart, EventStop, EventStartRest, EventStopRest:
		return true
	}
	return false
}

func (t EventType) IsStart() bool { return t == EventStart || t == EventStartRest }
func (t EventType) IsStop() bool  { return t == EventStop || t == EventStopRest }

// StartType returns the start event type for taskID.
func StartType(taskID string) EventType {
	if taskID == RestID {
		return EventStartRest
	}
	return EventStart
}

// StopType returns the stop event type for taskID.
func StopType(taskID string) EventType {
	if taskID == RestID {
		return EventStopRest
	}
	return EventStop
}

// HistoryEvent is one entry of the append-only history log. TaskName is a
// snapshot taken when the event was written so it survives task deletion.
type HistoryEvent struct {
	TaskID    string    `json:"taskId"`
	TaskName  string    `json:"taskName"`
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"` // unix milliseconds
}

func (e HistoryEvent) Time() time.Time { return time.UnixMilli(e.Timestamp) }

func (e HistoryEvent) IsRest() bool { return e.TaskID == RestID }

// ActiveEntry is the single in-progress task or rest interval.
type ActiveEntry struct {
	TaskID    string `json:"taskId"`
	TaskName  string `json:"taskName"`
	StartTime int64  `json:"startTime"` // unix milliseconds
}

func (a ActiveEntry) Start() time.Time { return time.UnixMilli(a.StartTime) }

func (a ActiveEntry) IsRest() bool { return a.TaskID == RestID }

type TimerSettings struct {
	ReminderEnabled bool    `json:"reminderEnabled"`
	ReminderMinutes float64 `json:"reminderMinutes"`
	TimeoutEnabled  bool    `json:"timeoutEnabled"`
	TimeoutMinutes  float64 `json:"timeoutMinutes"`
}

func DefaultTimerSettings() TimerSettings {
	return TimerSettings{
		ReminderEnabled: true,
		ReminderMinutes: 30,
		TimeoutEnabled:  true,
		TimeoutMinutes:  60,
	}
}

// MaxMinutes caps a threshold at one year.
const MaxMinutes = 366 * 24 * 60

// CheckMinutes rejects thresholds that are not a finite number in
// (0, MaxMinutes].
func CheckMinutes(m float64) error {
	if math.IsNaN(m) || math.IsInf(m, 0) || m <= 0 {
		return fmt.Errorf("must be a positive number, got %v", m)
	}
	if m > MaxMinutes {
		return fmt.Errorf("must be at most %d, got %v", MaxMinutes, m)
	}
	return nil
}

// Validate checks both thresholds. Disabled thresholds still need a usable
// value so they can be re-enabled without editing.
func (s TimerSettings) Validate() error {
	if err := CheckMinutes(s.ReminderMinutes); err != nil {
		return fmt.Errorf("reminder minutes %w", err)
	}
	if err := CheckMinutes(s.TimeoutMinutes); err != nil {
		return fmt.Errorf("timeout minutes %w", err)
	}
	return nil
}

func (s TimerSettings) Reminder() time.Duration { return minutes(s.ReminderMinutes) }
func (s TimerSettings) Timeout() time.Duration  { return minutes(s.TimeoutMinutes) }

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}
