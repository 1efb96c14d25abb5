package cache

import (
	"context"
	"errors"
	"time"

	"floorpulse/pkg/labor"
)

// Sentinel errors shared by every backend.
var (
	// ErrInvalidDate is returned when key construction is handed a date that
	// cannot be parsed. Fatal to that call, not to the store.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidBackupFormat is returned when an import snapshot is
	// malformed. The entire import is rejected; nothing is partially applied.
	ErrInvalidBackupFormat = errors.New("invalid backup format")

	// ErrStoreUnavailable is returned when the underlying persistence is
	// unreachable or locked. Callers retry with backoff.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Partition is the unit of caching and staleness decisions: the full batch of
// records observed for one (warehouse, date, shift), stamped with the fetch
// time. Writes always replace a partition wholesale, never mutate it in
// place, so a partition handed out by a store is safe to read concurrently.
type Partition struct {
	Key         PartitionKey   `json:"key"`
	Records     []labor.Record `json:"records"`
	FetchedAt   time.Time      `json:"fetchedAt"`
	RecordCount int            `json:"recordCount"`
}

// Store is the partition cache. Implementations: memory (testing/dev),
// badger (production), sqlite (single-file deployments).
type Store interface {
	// Put replaces the partition at key with records, stamping FetchedAt to
	// now. Repeated puts with identical records still refresh FetchedAt;
	// that is what keeps "today" warm.
	Put(ctx context.Context, key PartitionKey, records []labor.Record) (*Partition, error)

	// Get returns the partition at key, or nil with no error on a miss.
	// A miss is the normal state that drives fetch decisions.
	Get(ctx context.Context, key PartitionKey) (*Partition, error)

	// Restore writes a partition verbatim, preserving its FetchedAt. Used by
	// snapshot import so a restored backup does not masquerade as fresh data.
	Restore(ctx context.Context, p *Partition) error

	// ListKeys returns every key cached for a warehouse.
	ListKeys(ctx context.Context, warehouse string) ([]PartitionKey, error)

	// Scan returns every partition cached for a warehouse, or for the whole
	// store when warehouse is empty (backup export). Range queries need the
	// full set up front to decide, per date, whether shift-specific
	// partitions supersede the undifferentiated one.
	Scan(ctx context.Context, warehouse string) ([]*Partition, error)

	// Clear removes all partitions. Atomic with respect to concurrent
	// readers: a reader sees either the old store or an empty one.
	Clear(ctx context.Context) error

	// Prune removes partitions for days strictly before the given
	// YYYY-MM-DD date, across all warehouses. Returns how many were dropped.
	Prune(ctx context.Context, before string) (int, error)

	// Stats summarizes what is cached.
	Stats(ctx context.Context) (*Stats, error)

	// Close cleanly shuts down the backend.
	Close() error
}

// Stats summarizes cache contents for the stats endpoint and diagnostics.
type Stats struct {
	Partitions   int            `json:"partitions"`
	TotalRecords int            `json:"totalRecords"`
	EarliestDate string         `json:"earliestDate,omitempty"`
	LatestDate   string         `json:"latestDate,omitempty"`
	ByShift      map[string]int `json:"byShift,omitempty"` // shift tag -> record count
}
