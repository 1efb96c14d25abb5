// Package fetch fills the cache from the scraping layer.
//
// The Fetcher interface is the boundary to whatever actually talks to the
// reporting portal; the Scheduler decides which partitions are stale and
// fetches them with bounded parallelism.
package fetch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"floorpulse/pkg/cache"
	"floorpulse/pkg/config"
	"floorpulse/pkg/labor"
)

// Fetcher retrieves the records for one partition from the source system.
// Implementations should honor ctx cancellation; a returned error marks the
// partition failed for this sweep, and it will be retried on the next one.
type Fetcher interface {
	FetchPartition(ctx context.Context, warehouse, date string, shift labor.ShiftTag) ([]labor.Record, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, warehouse, date string, shift labor.ShiftTag) ([]labor.Record, error)

// FetchPartition calls f.
func (f FetcherFunc) FetchPartition(ctx context.Context, warehouse, date string, shift labor.ShiftTag) ([]labor.Record, error) {
	return f(ctx, warehouse, date, shift)
}

// SweepResult summarizes one sweep over a warehouse's date range.
type SweepResult struct {
	JobID     string    `json:"jobId"`
	Warehouse string    `json:"warehouse"`
	Days      int       `json:"days"`
	Fetched   int       `json:"fetched"`
	Fresh     int       `json:"fresh"`
	Failed    int       `json:"failed"`
	StartedAt time.Time `json:"startedAt"`
	Duration  string    `json:"duration"`
}

// Progress is a point-in-time view of a running sweep.
type Progress struct {
	JobID     string `json:"jobId"`
	Running   bool   `json:"running"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
}

// Scheduler sweeps a warehouse's recent dates and refreshes stale partitions.
type Scheduler struct {
	store    cache.Store
	fetcher  Fetcher
	policy   *cache.StalenessPolicy
	parallel int
	now      func() time.Time

	mu       sync.Mutex
	progress Progress
}

// NewScheduler creates a scheduler. The policy decides which partitions a
// sweep re-fetches.
func NewScheduler(store cache.Store, fetcher Fetcher, policy *cache.StalenessPolicy) *Scheduler {
	return &Scheduler{
		store:    store,
		fetcher:  fetcher,
		policy:   policy,
		parallel: config.DefaultFetchParallel,
		now:      time.Now,
	}
}

// WithParallelism bounds how many partition fetches run at once. Values
// below 1 are clamped to 1.
func (s *Scheduler) WithParallelism(n int) *Scheduler {
	if n < 1 {
		n = 1
	}
	s.parallel = n
	return s
}

// WithClock overrides the scheduler's clock, for tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Progress reports the state of the sweep currently running, if any.
func (s *Scheduler) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Sweep walks from today back the given number of days and re-fetches every
// partition the staleness policy flags. Past dates never go stale once cached,
// so a steady-state sweep only touches today plus whatever is missing.
//
// Fetch failures are logged and counted, never fatal: the stale partition
// stays as-is and the next sweep will try it again.
func (s *Scheduler) Sweep(ctx context.Context, warehouse string, days int) (*SweepResult, error) {
	if days < 1 {
		days = config.DefaultSweepDays
	}

	result := &SweepResult{
		JobID:     uuid.NewString(),
		Warehouse: warehouse,
		Days:      days,
		StartedAt: s.now(),
	}

	// Decide the work list up front so progress has a stable total.
	var stale []cache.PartitionKey
	today := s.now()
	for i := 0; i < days; i++ {
		date := today.AddDate(0, 0, -i).Format(cache.DateLayout)
		key, err := cache.NewKey(warehouse, date, labor.ShiftAll)
		if err != nil {
			return nil, fmt.Errorf("build sweep key for %s: %w", date, err)
		}

		part, err := s.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("check partition %s: %w", key, err)
		}
		if !s.policy.NeedsFetch(key, part) {
			result.Fresh++
			continue
		}
		stale = append(stale, key)
	}

	s.mu.Lock()
	s.progress = Progress{JobID: result.JobID, Running: true, Total: len(stale)}
	s.mu.Unlock()

	log.Printf("Sweep %s: warehouse=%s days=%d stale=%d fresh=%d",
		result.JobID, warehouse, days, len(stale), result.Fresh)

	sem := make(chan struct{}, s.parallel)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, k := range stale {
		select {
		case <-ctx.Done():
			wg.Wait()
			s.finish(ctx.Err())
			return result, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(key cache.PartitionKey) {
			defer wg.Done()
			defer func() { <-sem }()

			fetchCtx, cancel := context.WithTimeout(ctx, config.FetchTimeout)
			defer cancel()

			records, err := s.fetcher.FetchPartition(fetchCtx, key.Warehouse, key.Date, key.Shift)
			if err != nil {
				log.Printf("Sweep %s: fetch %s failed: %v", result.JobID, key, err)
				mu.Lock()
				result.Failed++
				mu.Unlock()
				s.step(true)
				return
			}
			if _, err := s.store.Put(ctx, key, records); err != nil {
				log.Printf("Sweep %s: store %s failed: %v", result.JobID, key, err)
				mu.Lock()
				result.Failed++
				mu.Unlock()
				s.step(true)
				return
			}

			mu.Lock()
			result.Fetched++
			mu.Unlock()
			s.step(false)
		}(k)
	}
	wg.Wait()
	s.finish(nil)

	result.Duration = s.now().Sub(result.StartedAt).Round(time.Millisecond).String()
	log.Printf("Sweep %s: done fetched=%d fresh=%d failed=%d in %s",
		result.JobID, result.Fetched, result.Fresh, result.Failed, result.Duration)
	return result, nil
}

func (s *Scheduler) step(failed bool) {
	s.mu.Lock()
	s.progress.Completed++
	if failed {
		s.progress.Failed++
	}
	s.mu.Unlock()
}

func (s *Scheduler) finish(err error) {
	s.mu.Lock()
	s.progress.Running = false
	s.mu.Unlock()
	if err != nil {
		log.Printf("Sweep aborted: %v", err)
	}
}
