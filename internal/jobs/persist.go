package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/cityexplorer/internal/cache"
	"github.com/briangreenhill/cityexplorer/internal/metrics"
	"github.com/briangreenhill/cityexplorer/internal/records"
)

// Enqueuer is the part of *asynq.Client the persister uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueuePersister hands record writes to the worker through Redis.
type QueuePersister struct {
	client Enqueuer
	logger zerolog.Logger
}

func NewQueuePersister(client Enqueuer, logger zerolog.Logger) *QueuePersister {
	return &QueuePersister{client: client, logger: logger}
}

// Persist enqueues one task per batch. Writes are never retried; a failed
// enqueue is logged and counted like a failed insert.
func (p *QueuePersister) Persist(ctx context.Context, kind records.Kind, recs []records.Record) {
	if len(recs) == 0 {
		return
	}
	task, err := NewPersistTask(kind, recs)
	if err == nil {
		_, err = p.client.EnqueueContext(context.WithoutCancel(ctx), task,
			asynq.Queue(QueuePersist),
			asynq.MaxRetry(0),
			asynq.Timeout(time.Minute),
		)
	}
	if err != nil {
		metrics.RecordStoreWriteError(string(kind))
		p.logger.Error().Err(err).Str("kind", string(kind)).Int("records", len(recs)).Msg("enqueue persist failed")
	}
}

// HandlePersist returns the worker handler for TaskPersistRecords. Insert
// failures are logged per record; the task itself only fails on a payload it
// cannot decode, and never retries.
func HandlePersist(w cache.Writer, logger zerolog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p PersistRecordsPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("bad payload: %v: %w", err, asynq.SkipRetry)
		}
		recs, err := records.Decode(p.Kind, p.Records)
		if err != nil {
			return fmt.Errorf("decode records: %v: %w", err, asynq.SkipRetry)
		}

		start := time.Now()
		failed := cache.InsertEach(ctx, w, logger, recs)
		logger.Info().
			Str("kind", string(p.Kind)).
			Int("records", len(recs)).
			Int("failed", failed).
			Dur("duration", time.Since(start)).
			Msg("persisted records")
		return nil
	}
}
