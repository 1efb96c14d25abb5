package sqlite

import (
	"context"
	"testing"
	"time"

	"floorpulse/pkg/cache"
	"floorpulse/pkg/labor"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewMemory()
	if err != nil {
		t.Fatalf("failed to open in-memory sqlite: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func mustKey(t *testing.T, warehouse, date string, shift labor.ShiftTag) cache.PartitionKey {
	t.Helper()
	key, err := cache.NewKey(warehouse, date, shift)
	if err != nil {
		t.Fatalf("NewKey failed: %v", err)
	}
	return key
}

func TestPutGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := mustKey(t, "BFI4", "2026-02-01", labor.ShiftDay)

	records := []labor.Record{
		{EmployeeID: "e1", EmployeeName: "Pat", PathID: "pick", Hours: 8.5, Jobs: 240},
		{EmployeeID: "e2", PathID: "stow", Hours: 4, Jobs: 80},
	}
	if _, err := store.Put(ctx, key, records); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for a stored key")
	}
	if got.RecordCount != 2 || got.Records[0].Hours != 8.5 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestGetMiss(t *testing.T) {
	store := newTestStore(t)
	got, err := store.Get(context.Background(), mustKey(t, "BFI4", "2026-02-01", labor.ShiftAll))
	if err != nil {
		t.Fatalf("miss must not be an error: %v", err)
	}
	if got != nil {
		t.Errorf("miss must be nil, got %+v", got)
	}
}

func TestPutUpsertsAndRefreshesFetchedAt(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := mustKey(t, "BFI4", "2026-02-01", labor.ShiftDay)

	first, err := store.Put(ctx, key, []labor.Record{{EmployeeID: "e1"}})
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(5 * time.Millisecond)
	second, err := store.Put(ctx, key, []labor.Record{{EmployeeID: "e1"}})
	if err != nil {
		t.Fatal(err)
	}
	if !second.FetchedAt.After(first.FetchedAt) {
		t.Error("re-putting identical records must still refresh FetchedAt")
	}

	stats, _ := store.Stats(ctx)
	if stats.Partitions != 1 {
		t.Errorf("upsert must not create duplicate rows, got %d", stats.Partitions)
	}
}

func TestRestorePreservesFetchedAt(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := mustKey(t, "BFI4", "2026-02-01", labor.ShiftAll)

	fetchedAt := time.Date(2026, 1, 15, 8, 30, 0, 0, time.UTC)
	err := store.Restore(ctx, &cache.Partition{
		Key:       key,
		Records:   []labor.Record{{EmployeeID: "e1"}},
		FetchedAt: fetchedAt,
	})
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	got, _ := store.Get(ctx, key)
	if !got.FetchedAt.Equal(fetchedAt) {
		t.Errorf("FetchedAt = %v, want %v", got.FetchedAt, fetchedAt)
	}
}

func TestScanAndListKeys(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Put(ctx, mustKey(t, "BFI4", "2026-02-02", labor.ShiftNight), nil)
	store.Put(ctx, mustKey(t, "BFI4", "2026-02-01", labor.ShiftDay), []labor.Record{{EmployeeID: "e1"}})
	store.Put(ctx, mustKey(t, "SEA8", "2026-02-01", labor.ShiftDay), []labor.Record{{EmployeeID: "e2"}})

	keys, err := store.ListKeys(ctx, "BFI4")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0].Date != "2026-02-01" {
		t.Errorf("ListKeys wrong: %+v", keys)
	}

	all, err := store.Scan(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("Scan(\"\") returned %d partitions, want 3", len(all))
	}

	scoped, err := store.Scan(ctx, "SEA8")
	if err != nil {
		t.Fatal(err)
	}
	if len(scoped) != 1 || scoped[0].Key.Warehouse != "SEA8" {
		t.Errorf("scoped scan wrong: %+v", scoped)
	}
}

func TestClearPruneStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Put(ctx, mustKey(t, "BFI4", "2025-12-01", labor.ShiftAll), []labor.Record{{EmployeeID: "e1"}})
	store.Put(ctx, mustKey(t, "BFI4", "2026-02-01", labor.ShiftDay), []labor.Record{{EmployeeID: "e2"}, {EmployeeID: "e3"}})

	dropped, err := store.Prune(ctx, "2026-01-01")
	if err != nil {
		t.Fatal(err)
	}
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Partitions != 1 || stats.TotalRecords != 2 || stats.ByShift["day"] != 2 {
		t.Errorf("stats wrong after prune: %+v", stats)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	stats, _ = store.Stats(ctx)
	if stats.Partitions != 0 {
		t.Errorf("store not empty after Clear: %+v", stats)
	}
}
