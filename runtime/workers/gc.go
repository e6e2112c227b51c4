package workers

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"chat-sync/contract"

	"github.com/dgraph-io/badger/v4"
)

var (
	_ contract.Worker = (*GCWorker)(nil)
	_ contract.Worker = (*HealthWorker)(nil)
)

// GCWorker runs BadgerDB value-log garbage collection on a timer. Badger
// never reclaims value-log space on its own; without this the store only
// grows.
type GCWorker struct {
	db       *badger.DB
	interval time.Duration
	log      *slog.Logger
}

func NewGCWorker(db *badger.DB, interval time.Duration, log *slog.Logger) *GCWorker {
	return &GCWorker{db: db, interval: interval, log: log}
}

func (w *GCWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// One pass per tick; ErrNoRewrite just means nothing to reclaim.
			err := w.db.RunValueLogGC(0.5)
			if err != nil && !stderrors.Is(err, badger.ErrNoRewrite) {
				w.log.Warn("value log gc failed", slog.String("error", err.Error()))
				continue
			}
			if err == nil {
				w.log.Debug("value log gc reclaimed space")
			}
		}
	}
}
