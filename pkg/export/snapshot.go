package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"floorpulse/pkg/cache"
	"floorpulse/pkg/labor"
)

// SnapshotVersion is the current backup format. Imports with any other
// version (or none) are rejected outright.
const SnapshotVersion = 1

// Snapshot is a whole-store backup: every partition, keyed by its
// warehouse_date_shift string encoding.
type Snapshot struct {
	Version    int                          `json:"version"`
	ExportedAt time.Time                    `json:"exportedAt"`
	Partitions map[string]SnapshotPartition `json:"partitions"`
}

// SnapshotPartition is one partition's payload inside a snapshot.
type SnapshotPartition struct {
	Records     []labor.Record `json:"records"`
	FetchedAt   time.Time      `json:"fetchedAt"`
	RecordCount int            `json:"recordCount"`
}

// Exporter serializes the cache for backup.
type Exporter struct {
	store cache.Store
}

// NewExporter creates an exporter over the given store.
func NewExporter(store cache.Store) *Exporter {
	return &Exporter{store: store}
}

// ExportResult contains stats about an export.
type ExportResult struct {
	Partitions int       `json:"partitions"`
	Records    int       `json:"records"`
	ExportedAt time.Time `json:"exportedAt"`
}

// BuildSnapshot collects every cached partition into a Snapshot.
func (e *Exporter) BuildSnapshot(ctx context.Context) (*Snapshot, error) {
	parts, err := e.store.Scan(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("scan cache: %w", err)
	}

	snap := &Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: time.Now(),
		Partitions: make(map[string]SnapshotPartition, len(parts)),
	}
	for _, p := range parts {
		snap.Partitions[p.Key.String()] = SnapshotPartition{
			Records:     p.Records,
			FetchedAt:   p.FetchedAt,
			RecordCount: p.RecordCount,
		}
	}
	return snap, nil
}

// WriteJSON writes a full backup snapshot to w.
func (e *Exporter) WriteJSON(ctx context.Context, w io.Writer) (*ExportResult, error) {
	snap, err := e.BuildSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	result := &ExportResult{
		Partitions: len(snap.Partitions),
		ExportedAt: snap.ExportedAt,
	}
	for _, p := range snap.Partitions {
		result.Records += len(p.Records)
	}
	return result, nil
}

// Importer restores backup snapshots into the cache.
type Importer struct {
	store cache.Store
}

// NewImporter creates an importer over the given store.
func NewImporter(store cache.Store) *Importer {
	return &Importer{store: store}
}

// ImportResult counts what an import did. Skipped partitions were already
// present with fresher data.
type ImportResult struct {
	Imported   int       `json:"imported"`
	Skipped    int       `json:"skipped"`
	ImportedAt time.Time `json:"importedAt"`
}

// ReadJSON decodes a snapshot from r and imports it.
func (im *Importer) ReadJSON(ctx context.Context, r io.Reader) (*ImportResult, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: %v", cache.ErrInvalidBackupFormat, err)
	}
	return im.Import(ctx, &snap)
}

// Import merges a snapshot into the store. A partition only overwrites the
// cached one at its key when the incoming FetchedAt is strictly newer or no
// partition is present, so restoring an old backup never reverts data that
// was re-fetched after the backup was taken.
//
// The snapshot is validated in full before anything is written: a malformed
// snapshot is rejected whole, never partially applied.
func (im *Importer) Import(ctx context.Context, snap *Snapshot) (*ImportResult, error) {
	if snap == nil || snap.Version != SnapshotVersion {
		got := 0
		if snap != nil {
			got = snap.Version
		}
		return nil, fmt.Errorf("%w: version %d, want %d", cache.ErrInvalidBackupFormat, got, SnapshotVersion)
	}

	incoming := make([]*cache.Partition, 0, len(snap.Partitions))
	for keyStr, payload := range snap.Partitions {
		key, err := cache.ParseKey(keyStr)
		if err != nil {
			return nil, fmt.Errorf("%w: partition key %q", cache.ErrInvalidBackupFormat, keyStr)
		}
		if payload.FetchedAt.IsZero() {
			return nil, fmt.Errorf("%w: partition %q has no fetch timestamp", cache.ErrInvalidBackupFormat, keyStr)
		}
		incoming = append(incoming, &cache.Partition{
			Key:         key,
			Records:     payload.Records,
			FetchedAt:   payload.FetchedAt,
			RecordCount: len(payload.Records),
		})
	}

	// Deterministic apply order; map iteration is not.
	sort.Slice(incoming, func(i, j int) bool {
		return incoming[i].Key.String() < incoming[j].Key.String()
	})

	result := &ImportResult{ImportedAt: time.Now()}
	for _, p := range incoming {
		existing, err := im.store.Get(ctx, p.Key)
		if err != nil {
			return nil, fmt.Errorf("check existing %s: %w", p.Key, err)
		}
		if existing != nil && !p.FetchedAt.After(existing.FetchedAt) {
			result.Skipped++
			continue
		}
		if err := im.store.Restore(ctx, p); err != nil {
			return nil, fmt.Errorf("restore %s: %w", p.Key, err)
		}
		result.Imported++
	}
	return result, nil
}
