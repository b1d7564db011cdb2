package cache

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/cityexplorer/internal/metrics"
	"github.com/briangreenhill/cityexplorer/internal/records"
)

// InsertEach writes recs one at a time. A failed insert is logged and
// counted and does not stop the rest. It returns the number of failures.
func InsertEach(ctx context.Context, w Writer, logger zerolog.Logger, recs []records.Record) int {
	failed := 0
	for _, rec := range recs {
		if err := w.Insert(ctx, rec); err != nil {
			failed++
			metrics.RecordStoreWriteError(string(rec.Kind()))
			logger.Warn().Err(err).
				Str("kind", string(rec.Kind())).
				Str("key", rec.Key()).
				Msg("record insert failed")
		}
	}
	return failed
}

// BackgroundPersister inserts records from a goroutine per batch.
type BackgroundPersister struct {
	w      Writer
	logger zerolog.Logger
	wg     sync.WaitGroup
}

func NewBackgroundPersister(w Writer, logger zerolog.Logger) *BackgroundPersister {
	return &BackgroundPersister{w: w, logger: logger}
}

// Persist returns immediately. The writes outlive ctx's cancellation so a
// client hanging up does not abort them.
func (p *BackgroundPersister) Persist(ctx context.Context, kind records.Kind, recs []records.Record) {
	if len(recs) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if n := InsertEach(ctx, p.w, p.logger, recs); n > 0 {
			p.logger.Warn().Str("kind", string(kind)).Int("failed", n).Int("total", len(recs)).Msg("partial persist")
		}
	}()
}

// Wait blocks until every in-flight batch has been written. Used on shutdown.
func (p *BackgroundPersister) Wait() {
	p.wg.Wait()
}
