package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"floorpulse/pkg/cache"
	badgerstore "floorpulse/pkg/cache/badger"
	"floorpulse/pkg/config"
	"floorpulse/pkg/fetch"
	"floorpulse/pkg/ingest"
)

// StartCron schedules the recurring maintenance jobs: the staleness sweep,
// the nightly retention prune, and BadgerDB value-log GC. The returned cron
// is already started; stop it on shutdown.
func StartCron(ctx context.Context, cfg Config, store cache.Store, scheduler *fetch.Scheduler, hub *ingest.Hub) *cron.Cron {
	c := cron.New()

	if scheduler != nil {
		spec := fmt.Sprintf("@every %s", cfg.RefreshInterval)
		_, err := c.AddFunc(spec, func() {
			result, err := scheduler.Sweep(ctx, cfg.Warehouse, config.DefaultSweepDays)
			if err != nil {
				log.Printf("Scheduled sweep failed: %v", err)
				return
			}
			if hub != nil && result.Fetched > 0 {
				hub.Broadcast(ingest.Event{
					Type:    ingest.EventSweepProgress,
					At:      time.Now(),
					Payload: result,
				})
			}
		})
		if err != nil {
			log.Printf("Failed to schedule sweep: %v", err)
		} else {
			log.Printf("Sweep scheduled %s for warehouse %s", spec, cfg.Warehouse)
		}
	}

	// Retention prune at 03:00, when neither shift is changing over.
	_, err := c.AddFunc("0 3 * * *", func() {
		before := time.Now().AddDate(0, 0, -cfg.RetentionDays).Format(cache.DateLayout)
		dropped, err := store.Prune(ctx, before)
		if err != nil {
			log.Printf("Prune failed: %v", err)
			return
		}
		if dropped > 0 {
			log.Printf("Pruned %d partitions older than %s", dropped, before)
		}
	})
	if err != nil {
		log.Printf("Failed to schedule prune: %v", err)
	} else {
		log.Printf("Retention prune scheduled daily (keep %d days)", cfg.RetentionDays)
	}

	if badgerStore, ok := store.(*badgerstore.Store); ok {
		_, err := c.AddFunc(fmt.Sprintf("@every %s", config.BadgerGCInterval), func() {
			start := time.Now()
			// RunGC reports an error when no value-log rewrite was needed.
			if err := badgerStore.RunGC(0.5); err != nil {
				log.Printf("GC completed in %v (no rewrite needed)", time.Since(start).Round(time.Millisecond))
			} else {
				log.Printf("GC completed in %v (disk space reclaimed)", time.Since(start).Round(time.Millisecond))
			}
		})
		if err != nil {
			log.Printf("Failed to schedule BadgerDB GC: %v", err)
		} else {
			log.Printf("BadgerDB GC scheduled every %v", config.BadgerGCInterval)
		}
	}

	c.Start()
	return c
}

// BroadcastStats periodically pushes cache stats to WebSocket clients.
// Uses exponential backoff on errors to prevent log spam during outages.
func BroadcastStats(ctx context.Context, store cache.Store, hub *ingest.Hub) {
	ticker := time.NewTicker(config.StatsBroadcastInterval)
	defer ticker.Stop()

	var consecutiveErrors int
	var lastErrorTime time.Time
	const maxBackoff = 5 * time.Minute

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Skip the tick entirely when nobody is listening.
			if !hub.HasClients() {
				continue
			}

			stats, err := store.Stats(ctx)
			if err != nil {
				consecutiveErrors++
				now := time.Now()

				backoff := time.Duration(1<<uint(min(consecutiveErrors-1, 8))) * time.Second
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				if lastErrorTime.IsZero() || now.Sub(lastErrorTime) >= backoff {
					log.Printf("Failed to read stats for broadcast (error #%d, backoff %v): %v",
						consecutiveErrors, backoff, err)
					lastErrorTime = now
				}
				continue
			}

			if consecutiveErrors > 0 {
				log.Printf("Stats broadcast recovered after %d errors", consecutiveErrors)
				consecutiveErrors = 0
			}

			if err := hub.Broadcast(ingest.Event{
				Type:    ingest.EventCacheStats,
				At:      time.Now(),
				Payload: stats,
			}); err != nil {
				log.Printf("Failed to broadcast stats: %v", err)
			}
		}
	}
}

// min returns the minimum of two integers.
func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
