package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const evictionInterval = 5 * time.Minute

// EvictionCallback is called for each session removed by the eviction worker.
type EvictionCallback func(sessionID uuid.UUID)

// StartEvictionWorker runs a background goroutine that periodically sweeps
// the store for sessions idle longer than ttl. Entries are otherwise never
// deleted, so long-lived processes rely on this sweep to bound growth.
func StartEvictionWorker(ctx context.Context, store *Store, ttl time.Duration, onEvict EvictionCallback) {
	ticker := time.NewTicker(evictionInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session eviction worker started", "interval", evictionInterval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				evicted := store.EvictIdle(ttl, onEvict)
				if len(evicted) > 0 {
					slog.Info("Evicted idle sessions", "count", len(evicted))
				}
			case <-ctx.Done():
				slog.Info("Session eviction worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
