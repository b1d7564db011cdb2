package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/briangreenhill/cityexplorer/internal/records"
)

const (
	TaskPersistRecords = "records:persist"

	// QueuePersist is the queue record writes are enqueued on.
	QueuePersist = "persist"
)

type PersistRecordsPayload struct {
	Kind    records.Kind    `json:"kind"`
	Records json.RawMessage `json:"records"`
}

// NewPersistTask packs stamped records of one kind into a task.
func NewPersistTask(kind records.Kind, recs []records.Record) (*asynq.Task, error) {
	raw, err := json.Marshal(recs)
	if err != nil {
		return nil, fmt.Errorf("marshal %s records: %w", kind, err)
	}
	payload, err := json.Marshal(PersistRecordsPayload{Kind: kind, Records: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TaskPersistRecords, payload), nil
}
