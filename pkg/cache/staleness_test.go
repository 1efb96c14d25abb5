package cache

import (
	"testing"
	"time"

	"floorpulse/pkg/labor"
)

func TestNeedsFetchMiss(t *testing.T) {
	policy := NewStalenessPolicy(60 * time.Second)
	key := PartitionKey{Warehouse: "BFI4", Date: "2026-02-01", Shift: labor.ShiftAll}
	if !policy.NeedsFetch(key, nil) {
		t.Error("a cache miss must always need a fetch")
	}
}

func TestNeedsFetchPastDateNeverStale(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	policy := NewStalenessPolicy(60 * time.Second).WithClock(func() time.Time { return now })

	key := PartitionKey{Warehouse: "BFI4", Date: "2026-02-01", Shift: labor.ShiftAll}
	part := &Partition{Key: key, FetchedAt: now.Add(-365 * 24 * time.Hour)}
	if policy.NeedsFetch(key, part) {
		t.Error("a cached past date must never go stale")
	}
}

func TestNeedsFetchTodayRefreshWindow(t *testing.T) {
	base := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	now := base
	policy := NewStalenessPolicy(60 * time.Second).WithClock(func() time.Time { return now })

	key := PartitionKey{Warehouse: "BFI4", Date: "2026-02-10", Shift: labor.ShiftAll}
	part := &Partition{Key: key, FetchedAt: base.Add(-30 * time.Second)}

	// Fetched 30s ago with a 60s interval: still fresh.
	if policy.NeedsFetch(key, part) {
		t.Error("partition fetched 30s ago should be fresh")
	}

	// 31 more seconds pass; the copy is now 61s old.
	now = base.Add(31 * time.Second)
	if !policy.NeedsFetch(key, part) {
		t.Error("partition fetched 61s ago should be stale")
	}
}

func TestNeedsFetchExactBoundaryIsStale(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	policy := NewStalenessPolicy(60 * time.Second).WithClock(func() time.Time { return now })

	key := PartitionKey{Warehouse: "BFI4", Date: "2026-02-10", Shift: labor.ShiftAll}
	part := &Partition{Key: key, FetchedAt: now.Add(-60 * time.Second)}
	if !policy.NeedsFetch(key, part) {
		t.Error("age exactly equal to the interval counts as stale")
	}
}

func TestNeedsFetchFutureDateUsesRefreshWindow(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	policy := NewStalenessPolicy(60 * time.Second).WithClock(func() time.Time { return now })

	key := PartitionKey{Warehouse: "BFI4", Date: "2026-02-11", Shift: labor.ShiftAll}
	fresh := &Partition{Key: key, FetchedAt: now.Add(-10 * time.Second)}
	stale := &Partition{Key: key, FetchedAt: now.Add(-2 * time.Minute)}
	if policy.NeedsFetch(key, fresh) {
		t.Error("freshly fetched future date should not need a fetch")
	}
	if !policy.NeedsFetch(key, stale) {
		t.Error("aged future date should need a fetch")
	}
}
