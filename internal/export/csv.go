package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sadopc/tempo/internal/metrics"
	"github.com/sadopc/tempo/internal/store"
)

// HistoryToCSV writes one row per history event.
func HistoryToCSV(events []store.HistoryEvent, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"Task ID", "Task", "Event", "Time", "Timestamp (ms)"}); err != nil {
		return err
	}

	for _, e := range events {
		row := []string{
			e.TaskID,
			e.TaskName,
			string(e.Type),
			e.Time().Local().Format(time.RFC3339),
			strconv.FormatInt(e.Timestamp, 10),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// IntervalsToCSV writes a timeline, one row per interval.
func IntervalsToCSV(intervals []metrics.Interval, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"Task", "Start", "End", "Duration (s)", "Duration", "Rest", "Running"}); err != nil {
		return err
	}

	for _, iv := range intervals {
		d := iv.Duration()
		row := []string{
			iv.TaskName,
			iv.Start.Local().Format(time.RFC3339),
			iv.End.Local().Format(time.RFC3339),
			strconv.FormatInt(int64(d/time.Second), 10),
			metrics.FormatClock(d),
			strconv.FormatBool(iv.IsRest),
			strconv.FormatBool(iv.Open),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
