package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dexbot/goswap/internal/domain"
	"github.com/dexbot/goswap/internal/metrics"
	"github.com/dexbot/goswap/internal/poolcache"
	"github.com/dexbot/goswap/internal/venues"
)

var monitorLog = logrus.WithField("component", "pool_monitor")

// PoolMonitor polls every venue for a token's liquidity pool until one
// appears or the attempt budget runs out. It is not retried itself; any
// retry belongs to the job queue.
type PoolMonitor struct {
	adapters    []venues.Adapter
	cache       *poolcache.Cache // optional
	interval    time.Duration
	maxAttempts int
}

func NewPoolMonitor(adapters []venues.Adapter, cache *poolcache.Cache, interval time.Duration, maxAttempts int) *PoolMonitor {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 15
	}
	return &PoolMonitor{
		adapters:    adapters,
		cache:       cache,
		interval:    interval,
		maxAttempts: maxAttempts,
	}
}

// AwaitPool blocks until any venue reports a pool for the token, recording
// every venue discovered on that attempt, or until the budget is spent.
// Found=false with a nil error means the ceiling was hit with no pool.
func (m *PoolMonitor) AwaitPool(ctx context.Context, tokenAddress string) (domain.PoolLookup, error) {
	if m.cache != nil {
		if pools, err := m.cache.Lookup(tokenAddress); err == nil && len(pools) > 0 {
			metrics.PoolCacheHits.Add(1)
			monitorLog.Debugf("pool cache hit: token=%s venues=%d", tokenAddress, len(pools))
			return domain.PoolLookup{Found: true, PoolsByVenue: pools}, nil
		}
	}

	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		pools := m.pollOnce(ctx, tokenAddress)
		if len(pools) > 0 {
			m.recordPools(tokenAddress, pools)
			monitorLog.Infof("pool found: token=%s attempt=%d venues=%d", tokenAddress, attempt, len(pools))
			return domain.PoolLookup{Found: true, PoolsByVenue: pools, AttemptsUsed: attempt}, nil
		}
		if attempt == m.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return domain.PoolLookup{}, ctx.Err()
		case <-time.After(m.interval):
		}
	}

	monitorLog.Warnf("pool discovery exhausted: token=%s attempts=%d", tokenAddress, m.maxAttempts)
	return domain.PoolLookup{Found: false, AttemptsUsed: m.maxAttempts}, nil
}

// pollOnce probes every venue concurrently. A venue error counts as
// not-found for this tick.
func (m *PoolMonitor) pollOnce(ctx context.Context, tokenAddress string) map[string]string {
	var (
		mu    sync.Mutex
		pools = make(map[string]string)
		wg    sync.WaitGroup
	)
	for _, adapter := range m.adapters {
		wg.Add(1)
		go func(a venues.Adapter) {
			defer wg.Done()
			info, err := a.PoolExists(ctx, tokenAddress)
			if err != nil {
				monitorLog.Debugf("pool probe failed: venue=%s err=%v", a.Name(), err)
				return
			}
			if info.Exists {
				mu.Lock()
				pools[a.Name()] = info.PoolID
				mu.Unlock()
			}
		}(adapter)
	}
	wg.Wait()
	return pools
}

func (m *PoolMonitor) recordPools(tokenAddress string, pools map[string]string) {
	if m.cache == nil {
		return
	}
	for venue, poolID := range pools {
		if err := m.cache.Record(tokenAddress, venue, poolID); err != nil {
			monitorLog.Warnf("pool cache record failed: venue=%s err=%v", venue, err)
		}
	}
}
