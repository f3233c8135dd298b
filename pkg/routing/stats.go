package routing

import (
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/parley/pkg/providers"
)

// atomicStats implements thread-safe orchestrator statistics using atomic
// counters.
type atomicStats struct {
	totalRequests atomic.Int64

	// requestsPerProvider maps providers.Name to *atomic.Int64
	requestsPerProvider sync.Map

	failovers        atomic.Int64
	explicitSwitches atomic.Int64
	errors           atomic.Int64
	cancelled        atomic.Int64

	// mu protects lastResetTime
	mu            sync.RWMutex
	lastResetTime time.Time
}

func newAtomicStats() *atomicStats {
	return &atomicStats{lastResetTime: time.Now()}
}

func (s *atomicStats) incrementTotal() {
	s.totalRequests.Add(1)
}

func (s *atomicStats) incrementProvider(name providers.Name) {
	val, _ := s.requestsPerProvider.LoadOrStore(name, &atomic.Int64{})
	val.(*atomic.Int64).Add(1)
}

func (s *atomicStats) incrementFailovers() {
	s.failovers.Add(1)
}

func (s *atomicStats) incrementExplicitSwitches() {
	s.explicitSwitches.Add(1)
}

// recordResult counts a finished call by its final error.
func (s *atomicStats) recordResult(err error) {
	switch {
	case err == nil:
	case providers.KindOf(err) == providers.KindCancelled:
		s.cancelled.Add(1)
	default:
		s.errors.Add(1)
	}
}

// snapshot returns a point-in-time copy of the statistics.
func (s *atomicStats) snapshot() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	perProvider := make(map[providers.Name]int64)
	s.requestsPerProvider.Range(func(key, value any) bool {
		perProvider[key.(providers.Name)] = value.(*atomic.Int64).Load()
		return true
	})

	return Stats{
		TotalRequests:       s.totalRequests.Load(),
		RequestsPerProvider: perProvider,
		Failovers:           s.failovers.Load(),
		ExplicitSwitches:    s.explicitSwitches.Load(),
		Errors:              s.errors.Load(),
		Cancelled:           s.cancelled.Load(),
		LastResetTime:       s.lastResetTime,
	}
}

// reset sets all counters to zero.
func (s *atomicStats) reset() {
	s.totalRequests.Store(0)
	s.failovers.Store(0)
	s.explicitSwitches.Store(0)
	s.errors.Store(0)
	s.cancelled.Store(0)

	s.requestsPerProvider.Range(func(key, _ any) bool {
		s.requestsPerProvider.Delete(key)
		return true
	})

	s.mu.Lock()
	s.lastResetTime = time.Now()
	s.mu.Unlock()
}
