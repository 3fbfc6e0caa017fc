package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sadopc/tempo/internal/store"
)

type jsonExport struct {
	ExportedAt string      `json:"exported_at"`
	Count      int         `json:"count"`
	Events     []jsonEvent `json:"events"`
}

type jsonEvent struct {
	TaskID      string `json:"task_id"`
	Task        string `json:"task"`
	Type        string `json:"type"`
	Time        string `json:"time"`
	TimestampMS int64  `json:"timestamp_ms"`
	Rest        bool   `json:"rest,omitempty"`
}

// HistoryToJSON writes the history log as an indented JSON document.
func HistoryToJSON(events []store.HistoryEvent, path string) error {
	export := jsonExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Count:      len(events),
	}

	for _, e := range events {
		export.Events = append(export.Events, jsonEvent{
			TaskID:      e.TaskID,
			Task:        e.TaskName,
			Type:        string(e.Type),
			Time:        e.Time().Local().Format(time.RFC3339),
			TimestampMS: e.Timestamp,
			Rest:        e.IsRest(),
		})
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}
