package cache

import "time"

// StalenessPolicy decides whether a partition must be re-fetched. Historical
// days are closed on the portal side and never refetched; today (and any
// future date, which cannot have closed data yet) is refetched once the
// cached copy is older than RefreshInterval.
type StalenessPolicy struct {
	RefreshInterval time.Duration

	now func() time.Time // injectable for tests
}

// NewStalenessPolicy returns a policy with the given refresh interval.
func NewStalenessPolicy(refreshInterval time.Duration) *StalenessPolicy {
	return &StalenessPolicy{RefreshInterval: refreshInterval, now: time.Now}
}

// WithClock overrides the policy's clock. Tests only.
func (p *StalenessPolicy) WithClock(now func() time.Time) *StalenessPolicy {
	p.now = now
	return p
}

// NeedsFetch reports whether the partition at key should be fetched.
// part is the currently cached partition for key, nil on a cache miss.
func (p *StalenessPolicy) NeedsFetch(key PartitionKey, part *Partition) bool {
	if part == nil {
		return true
	}

	now := p.now()
	today := now.Format(DateLayout)

	// Lexicographic compare is date order for normalized YYYY-MM-DD.
	if key.Date < today {
		return false
	}

	return now.Sub(part.FetchedAt) >= p.RefreshInterval
}
