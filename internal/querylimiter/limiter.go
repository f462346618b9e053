// Package querylimiter bounds the number of queries a runner process
// executes concurrently, per organization and globally, so one tenant's
// run burst cannot starve every other tenant's runner capacity.
package querylimiter

import (
	"fmt"
	"sync"
)

type Limits struct {
	MaxConcurrentPerOrg int
	MaxConcurrentGlobal int
}

func DefaultLimits() Limits {
	return Limits{MaxConcurrentPerOrg: 10, MaxConcurrentGlobal: 100}
}

type state struct {
	mu          sync.Mutex
	orgQueries  map[string]int
	totalQueries int
}

// Limiter tracks concurrent query executions. Safe for concurrent use.
type Limiter struct {
	limits Limits
	state  *state
}

func New(limits Limits) *Limiter {
	return &Limiter{
		limits: limits,
		state:  &state{orgQueries: make(map[string]int)},
	}
}

// LimitError reports which bound was hit.
type LimitError struct {
	Global  bool
	OrgID   string
	Current int
	Max     int
}

func (e *LimitError) Error() string {
	if e.Global {
		return fmt.Sprintf("global query limit reached: %d/%d queries running", e.Current, e.Max)
	}
	return fmt.Sprintf("organization query limit reached for %s: %d/%d queries running", e.OrgID, e.Current, e.Max)
}

// Guard releases its slot exactly once, via Release or a deferred call.
type Guard struct {
	orgID   string
	limiter *Limiter
	once    sync.Once
}

func (g *Guard) Release() {
	g.once.Do(func() {
		g.limiter.release(g.orgID)
	})
}

// TryAcquire attempts to reserve one execution slot for orgID, checking
// the global limit before the per-org limit. The caller must call
// Release (or defer it) on the returned Guard exactly once.
func (l *Limiter) TryAcquire(orgID string) (*Guard, error) {
	l.state.mu.Lock()
	defer l.state.mu.Unlock()

	if l.state.totalQueries >= l.limits.MaxConcurrentGlobal {
		return nil, &LimitError{Global: true, Current: l.state.totalQueries, Max: l.limits.MaxConcurrentGlobal}
	}

	orgCount := l.state.orgQueries[orgID]
	if orgCount >= l.limits.MaxConcurrentPerOrg {
		return nil, &LimitError{OrgID: orgID, Current: orgCount, Max: l.limits.MaxConcurrentPerOrg}
	}

	l.state.totalQueries++
	l.state.orgQueries[orgID] = orgCount + 1

	return &Guard{orgID: orgID, limiter: l}, nil
}

func (l *Limiter) release(orgID string) {
	l.state.mu.Lock()
	defer l.state.mu.Unlock()

	if count, ok := l.state.orgQueries[orgID]; ok {
		if count <= 1 {
			delete(l.state.orgQueries, orgID)
		} else {
			l.state.orgQueries[orgID] = count - 1
		}
	}
	if l.state.totalQueries > 0 {
		l.state.totalQueries--
	}
}

type Stats struct {
	TotalQueries        int
	OrgCount            int
	MaxConcurrentGlobal int
	MaxConcurrentPerOrg int
}

func (l *Limiter) Stats() Stats {
	l.state.mu.Lock()
	defer l.state.mu.Unlock()
	return Stats{
		TotalQueries:        l.state.totalQueries,
		OrgCount:            len(l.state.orgQueries),
		MaxConcurrentGlobal: l.limits.MaxConcurrentGlobal,
		MaxConcurrentPerOrg: l.limits.MaxConcurrentPerOrg,
	}
}
