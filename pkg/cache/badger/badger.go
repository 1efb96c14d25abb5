package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"floorpulse/pkg/cache"
	"floorpulse/pkg/labor"
)

// Store implements cache.Store on BadgerDB (LSM tree).
type Store struct {
	db *badger.DB
}

// Config holds BadgerDB configuration.
type Config struct {
	// Path to store database files
	Path string

	// InMemory mode (for testing)
	InMemory bool

	// MaxMemoryMB limits BadgerDB memory usage in MB (0 = laptop-friendly defaults).
	MaxMemoryMB int64
}

// New creates a BadgerDB cache backend.
func New(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)

	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	// A 60-day cache of daily partitions is tiny by Badger standards, so the
	// sizing below stays far under Badger's defaults (which can reach 1-2 GB
	// without limits on the block and index caches).
	memTableSize := int64(16 * 1024 * 1024)
	if cfg.MaxMemoryMB > 0 {
		memTableSize = cfg.MaxMemoryMB * 1024 * 1024 / 3
	}

	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(3).
		WithBlockCacheSize(memTableSize / 2).
		WithIndexCacheSize(memTableSize / 4).
		WithMaxLevels(4).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithValueThreshold(1024).
		WithNumCompactors(1).
		WithValueLogMaxEntries(5000).
		WithValueLogFileSize(64 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger: %v", cache.ErrStoreUnavailable, err)
	}

	return &Store{db: db}, nil
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
	if err := s.write(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Restore writes a partition verbatim, keeping its FetchedAt stamp.
func (s *Store) Restore(ctx context.Context, p *cache.Partition) error {
	cp := *p
	cp.RecordCount = len(cp.Records)
	return s.write(ctx, &cp)
}

// write stores one encoded partition, enforcing context cancellation so a
// stuck disk cannot block shutdown indefinitely.
func (s *Store) write(ctx context.Context, p *cache.Partition) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode partition: %w", err)
	}
	key := makeKey(p.Key)

	done := make(chan error, 1)
	go func() {
		done <- s.db.Update(func(txn *badger.Txn) error {
			return txn.Set(key, value)
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("write partition %s: %w", p.Key, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("write cancelled: %w", ctx.Err())
	}
}

// Get returns the partition at key, nil on a miss.
func (s *Store) Get(ctx context.Context, key cache.PartitionKey) (*cache.Partition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var p *cache.Partition
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(makeKey(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, err := decodePartition(val)
			if err != nil {
				return err
			}
			p = decoded
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("get partition %s: %w", key, err)
	}
	return p, nil
}

// ListKeys returns every key cached for a warehouse, sorted by date then shift.
func (s *Store) ListKeys(ctx context.Context, warehouse string) ([]cache.PartitionKey, error) {
	var keys []cache.PartitionKey
	err := s.iterate(ctx, warehouse, false, func(item *badger.Item) error {
		date, shift, ok := parseKey(item.Key())
		if !ok {
			return nil
		}
		keys = append(keys, cache.PartitionKey{Warehouse: warehouse, Date: date, Shift: shift})
		return nil
	})
	if err != nil {
		return nil, err
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
	var parts []*cache.Partition
	err := s.iterate(ctx, warehouse, true, func(item *badger.Item) error {
		return item.Value(func(val []byte) error {
			p, err := decodePartition(val)
			if err != nil {
				return err
			}
			parts = append(parts, p)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return parts, nil
}

// iterate walks all keys under a warehouse's hash prefix, or every key when
// warehouse is empty.
func (s *Store) iterate(ctx context.Context, warehouse string, prefetchValues bool, fn func(*badger.Item) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var prefix []byte
	if warehouse != "" {
		prefix = warehousePrefix(warehouse)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = prefetchValues
			opts.Prefix = prefix

			it := txn.NewIterator(opts)
			defer it.Close()

			var count int
			for it.Rewind(); it.Valid(); it.Next() {
				count++
				if count%1000 == 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
					}
				}
				if err := fn(it.Item()); err != nil {
					return err
				}
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("scan warehouse %s: %w", warehouse, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scan cancelled: %w", ctx.Err())
	}
}

// Clear removes all partitions.
func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// Prune drops partitions for days strictly before the given date, across all
// warehouses.
func (s *Store) Prune(ctx context.Context, before string) (int, error) {
	norm, err := cache.NormalizeDate(before)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	type pruneResult struct {
		dropped int
		err     error
	}
	done := make(chan pruneResult, 1)

	go func() {
		var res pruneResult
		res.err = s.db.Update(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false

			it := txn.NewIterator(opts)
			defer it.Close()

			var toDelete [][]byte
			for it.Rewind(); it.Valid(); it.Next() {
				date, _, ok := parseKey(it.Item().Key())
				if !ok || date >= norm {
					continue
				}
				toDelete = append(toDelete, it.Item().KeyCopy(nil))
			}

			for _, key := range toDelete {
				if err := txn.Delete(key); err != nil {
					return err
				}
			}
			res.dropped = len(toDelete)
			return nil
		})
		done <- res
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return 0, fmt.Errorf("prune before %s: %w", norm, res.err)
		}
		return res.dropped, nil
	case <-ctx.Done():
		return 0, fmt.Errorf("prune cancelled: %w", ctx.Err())
	}
}

// Stats summarizes cache contents in a single key-only pass.
func (s *Store) Stats(ctx context.Context) (*cache.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats := &cache.Stats{ByShift: make(map[string]int)}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				p, err := decodePartition(val)
				if err != nil {
					return err
				}
				stats.Partitions++
				stats.TotalRecords += p.RecordCount
				stats.ByShift[string(p.Key.Shift)] += p.RecordCount
				if stats.EarliestDate == "" || p.Key.Date < stats.EarliestDate {
					stats.EarliestDate = p.Key.Date
				}
				if stats.LatestDate == "" || p.Key.Date > stats.LatestDate {
					stats.LatestDate = p.Key.Date
				}
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cache stats: %w", err)
	}
	return stats, nil
}

// Close shuts down BadgerDB cleanly.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunGC runs BadgerDB's value log garbage collection to reclaim disk space.
// discardRatio: run GC if this fraction of a file can be discarded.
func (s *Store) RunGC(discardRatio float64) error {
	return s.db.RunValueLogGC(discardRatio)
}

// Key layout: [warehouse hash 8B][date 10B][shift 1B].
// The hash prefix groups a warehouse's partitions for prefix iteration; the
// date is kept as text so it remains comparable and sortable in key order.
const (
	hashLen = 8
	dateLen = 10
	keyLen  = hashLen + dateLen + 1
)

var shiftBytes = map[labor.ShiftTag]byte{
	labor.ShiftAll:   0,
	labor.ShiftDay:   1,
	labor.ShiftNight: 2,
}

var shiftTags = map[byte]labor.ShiftTag{
	0: labor.ShiftAll,
	1: labor.ShiftDay,
	2: labor.ShiftNight,
}

func warehousePrefix(warehouse string) []byte {
	prefix := make([]byte, hashLen)
	h := xxhash.Sum64String(warehouse)
	for i := 0; i < hashLen; i++ {
		prefix[i] = byte(h >> (8 * (hashLen - 1 - i)))
	}
	return prefix
}

func makeKey(k cache.PartitionKey) []byte {
	key := make([]byte, 0, keyLen)
	key = append(key, warehousePrefix(k.Warehouse)...)
	key = append(key, k.Date...)
	key = append(key, shiftBytes[k.Shift])
	return key
}

// parseKey extracts date and shift from a storage key. The warehouse string
// is not recoverable from its hash; callers supply it from the prefix they
// scanned under.
func parseKey(key []byte) (date string, shift labor.ShiftTag, ok bool) {
	if len(key) != keyLen {
		return "", "", false
	}
	tag, known := shiftTags[key[keyLen-1]]
	if !known {
		return "", "", false
	}
	return string(key[hashLen : hashLen+dateLen]), tag, true
}

func decodePartition(data []byte) (*cache.Partition, error) {
	var p cache.Partition
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode partition: %w", err)
	}
	return &p, nil
}
