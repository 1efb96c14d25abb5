package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"floorpulse/pkg/cache"
	"floorpulse/pkg/labor"
)

// Store keeps partitions in memory. Data is lost on restart.
// Useful for testing and development.
//
// Writes swap whole *Partition values under the lock, so a reader holding a
// partition from a previous Get keeps seeing that complete version even while
// the key is being replaced.
type Store struct {
	mu         sync.RWMutex
	partitions map[cache.PartitionKey]*cache.Partition
}

// New creates an in-memory cache backend.
func New() *Store {
	return &Store{
		partitions: make(map[cache.PartitionKey]*cache.Partition),
	}
}

// Put replaces the partition at key with a fresh payload.
func (s *Store) Put(ctx context.Context, key cache.PartitionKey, records []labor.Record) (*cache.Partition, error) {
	recs := make([]labor.Record, len(records))
	copy(recs, records)

	p := &cache.Partition{
		Key:         key,
		Records:     recs,
		FetchedAt:   time.Now(),
		RecordCount: len(recs),
	}

	s.mu.Lock()
	s.partitions[key] = p
	s.mu.Unlock()

	return p, nil
}

// Get returns the partition at key, nil on a miss.
func (s *Store) Get(ctx context.Context, key cache.PartitionKey) (*cache.Partition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.partitions[key], nil
}

// Restore writes a partition verbatim, keeping its FetchedAt stamp.
func (s *Store) Restore(ctx context.Context, p *cache.Partition) error {
	cp := *p
	cp.RecordCount = len(cp.Records)

	s.mu.Lock()
	s.partitions[cp.Key] = &cp
	s.mu.Unlock()

	return nil
}

// ListKeys returns every key cached for a warehouse.
func (s *Store) ListKeys(ctx context.Context, warehouse string) ([]cache.PartitionKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]cache.PartitionKey, 0, len(s.partitions))
	for k := range s.partitions {
		if k.Warehouse == warehouse {
			keys = append(keys, k)
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Date != keys[j].Date {
			return keys[i].Date < keys[j].Date
		}
		return keys[i].Shift < keys[j].Shift
	})
	return keys, nil
}

// Scan returns every partition cached for a warehouse ("" = all).
func (s *Store) Scan(ctx context.Context, warehouse string) ([]*cache.Partition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	parts := make([]*cache.Partition, 0, len(s.partitions))
	for k, p := range s.partitions {
		if warehouse == "" || k.Warehouse == warehouse {
			parts = append(parts, p)
		}
	}
	return parts, nil
}

// Clear removes all partitions. The map is replaced in one assignment, so
// concurrent readers see either the full old store or an empty one.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.partitions = make(map[cache.PartitionKey]*cache.Partition)
	s.mu.Unlock()
	return nil
}

// Prune drops partitions for days strictly before the given date.
func (s *Store) Prune(ctx context.Context, before string) (int, error) {
	norm, err := cache.NormalizeDate(before)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for k := range s.partitions {
		if k.Date < norm {
			delete(s.partitions, k)
			dropped++
		}
	}
	return dropped, nil
}

// Stats summarizes cache contents.
func (s *Store) Stats(ctx context.Context) (*cache.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &cache.Stats{ByShift: make(map[string]int)}
	for k, p := range s.partitions {
		stats.Partitions++
		stats.TotalRecords += p.RecordCount
		stats.ByShift[string(k.Shift)] += p.RecordCount

		if stats.EarliestDate == "" || k.Date < stats.EarliestDate {
			stats.EarliestDate = k.Date
		}
		if stats.LatestDate == "" || k.Date > stats.LatestDate {
			stats.LatestDate = k.Date
		}
	}
	return stats, nil
}

// Close is a no-op for memory storage.
func (s *Store) Close() error {
	return nil
}
