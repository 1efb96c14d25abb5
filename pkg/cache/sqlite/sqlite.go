package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"floorpulse/pkg/cache"
	"floorpulse/pkg/labor"
)

const currentVersion = 1

// Store implements cache.Store on a single SQLite file. Slower than the
// Badger backend but trivially inspectable with the sqlite3 CLI, which
// matters when someone disputes a cached number.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", cache.ErrStoreUnavailable, err)
	}

	// A single writer keeps partition replacement serialized; the store-level
	// contract only needs last-write-wins per key.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewMemory creates an in-memory store for testing.
func NewMemory() (*Store, error) {
	return New(":memory:")
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		const ddl = `
		CREATE TABLE IF NOT EXISTS partitions (
			warehouse    TEXT NOT NULL,
			date         TEXT NOT NULL,
			shift        TEXT NOT NULL,
			fetched_at   TEXT NOT NULL,
			record_count INTEGER NOT NULL,
			records      TEXT NOT NULL,
			PRIMARY KEY (warehouse, date, shift)
		);

		CREATE INDEX IF NOT EXISTS idx_partitions_date ON partitions(date);
		`
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	_, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

// Put replaces the partition at key, stamping FetchedAt to now.
func (s *Store) Put(ctx context.Context, key cache.PartitionKey, records []labor.Record) (*cache.Partition, error) {
	recs := make([]labor.Record, len(records))
	copy(recs, records)

	p := &cache.Partition{
		Key:         key,
		Records:     recs,
		FetchedAt:   time.Now(),
		RecordCount: len(recs),
	}
	if err := s.upsert(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Restore writes a partition verbatim, keeping its FetchedAt stamp.
func (s *Store) Restore(ctx context.Context, p *cache.Partition) error {
	cp := *p
	cp.RecordCount = len(cp.Records)
	return s.upsert(ctx, &cp)
}

func (s *Store) upsert(ctx context.Context, p *cache.Partition) error {
	payload, err := json.Marshal(p.Records)
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO partitions (warehouse, date, shift, fetched_at, record_count, records)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (warehouse, date, shift) DO UPDATE SET
			fetched_at   = excluded.fetched_at,
			record_count = excluded.record_count,
			records      = excluded.records`,
		p.Key.Warehouse, p.Key.Date, string(p.Key.Shift),
		p.FetchedAt.UTC().Format(time.RFC3339Nano), p.RecordCount, string(payload))
	if err != nil {
		return fmt.Errorf("upsert partition %s: %w", p.Key, err)
	}
	return nil
}

// Get returns the partition at key, nil on a miss.
func (s *Store) Get(ctx context.Context, key cache.PartitionKey) (*cache.Partition, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT fetched_at, record_count, records
		FROM partitions WHERE warehouse = ? AND date = ? AND shift = ?`,
		key.Warehouse, key.Date, string(key.Shift))

	var fetchedAt string
	var count int
	var payload string
	if err := row.Scan(&fetchedAt, &count, &payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get partition %s: %w", key, err)
	}
	return buildPartition(key, fetchedAt, count, payload)
}

// ListKeys returns every key cached for a warehouse, sorted by date then shift.
func (s *Store) ListKeys(ctx context.Context, warehouse string) ([]cache.PartitionKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, shift FROM partitions
		WHERE warehouse = ? ORDER BY date, shift`, warehouse)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []cache.PartitionKey
	for rows.Next() {
		var date, shift string
		if err := rows.Scan(&date, &shift); err != nil {
			return nil, fmt.Errorf("scan key row: %w", err)
		}
		keys = append(keys, cache.PartitionKey{
			Warehouse: warehouse,
			Date:      date,
			Shift:     labor.ShiftTag(shift),
		})
	}
	return keys, rows.Err()
}

// Scan returns every partition cached for a warehouse ("" = all).
func (s *Store) Scan(ctx context.Context, warehouse string) ([]*cache.Partition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT warehouse, date, shift, fetched_at, record_count, records
		FROM partitions WHERE ? = '' OR warehouse = ?`, warehouse, warehouse)
	if err != nil {
		return nil, fmt.Errorf("scan partitions: %w", err)
	}
	defer rows.Close()

	var parts []*cache.Partition
	for rows.Next() {
		var wh, date, shift, fetchedAt, payload string
		var count int
		if err := rows.Scan(&wh, &date, &shift, &fetchedAt, &count, &payload); err != nil {
			return nil, fmt.Errorf("scan partition row: %w", err)
		}
		key := cache.PartitionKey{Warehouse: wh, Date: date, Shift: labor.ShiftTag(shift)}
		p, err := buildPartition(key, fetchedAt, count, payload)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, rows.Err()
}

// Clear removes all partitions.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM partitions"); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// Prune drops partitions for days strictly before the given date.
func (s *Store) Prune(ctx context.Context, before string) (int, error) {
	norm, err := cache.NormalizeDate(before)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM partitions WHERE date < ?", norm)
	if err != nil {
		return 0, fmt.Errorf("prune before %s: %w", norm, err)
	}
	dropped, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(dropped), nil
}

// Stats summarizes cache contents.
func (s *Store) Stats(ctx context.Context) (*cache.Stats, error) {
	stats := &cache.Stats{ByShift: make(map[string]int)}

	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(record_count), 0),
		       COALESCE(MIN(date), ''), COALESCE(MAX(date), '')
		FROM partitions`)
	if err := row.Scan(&stats.Partitions, &stats.TotalRecords,
		&stats.EarliestDate, &stats.LatestDate); err != nil {
		return nil, fmt.Errorf("cache stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT shift, COALESCE(SUM(record_count), 0)
		FROM partitions GROUP BY shift`)
	if err != nil {
		return nil, fmt.Errorf("cache stats by shift: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var shift string
		var count int
		if err := rows.Scan(&shift, &count); err != nil {
			return nil, err
		}
		stats.ByShift[shift] = count
	}
	return stats, rows.Err()
}

func buildPartition(key cache.PartitionKey, fetchedAt string, count int, payload string) (*cache.Partition, error) {
	ts, err := time.Parse(time.RFC3339Nano, fetchedAt)
	if err != nil {
		return nil, fmt.Errorf("parse fetched_at for %s: %w", key, err)
	}

	var records []labor.Record
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		return nil, fmt.Errorf("decode records for %s: %w", key, err)
	}

	return &cache.Partition{
		Key:         key,
		Records:     records,
		FetchedAt:   ts,
		RecordCount: count,
	}, nil
}
