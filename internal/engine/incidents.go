package engine

import (
	"sync"
	"time"

	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

// IncidentTable is the in-process store of traffic incidents the route
// optimizer consults for 2-opt swap rejection (§4.4). Resolved incidents
// are kept for history rather than deleted, mirroring RouteTable's
// active/history split.
type IncidentTable struct {
	mu        sync.RWMutex
	incidents map[string]*fleet.TrafficIncident
}

func NewIncidentTable() *IncidentTable {
	return &IncidentTable{incidents: make(map[string]*fleet.TrafficIncident)}
}

// Put inserts or overwrites an incident unconditionally — used for the
// initial traffic.incident event, where there is no prior state to race
// with.
func (t *IncidentTable) Put(i *fleet.TrafficIncident) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.incidents[i.ID] = i
}

// Resolve marks an incident RESOLVED. Unknown ids are a no-op: a
// traffic.resolved event for an incident this process never saw (e.g.
// reported before restart) is not an error worth surfacing.
func (t *IncidentTable) Resolve(id string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.incidents[id]
	if !ok {
		return
	}
	i.Status = fleet.IncidentResolved
	i.ResolvedAt = &now
}

// Active returns every currently-ACTIVE incident, the set the route
// optimizer's 2-opt pass checks swaps against.
func (t *IncidentTable) Active() []fleet.TrafficIncident {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []fleet.TrafficIncident
	for _, i := range t.incidents {
		if i.Status == fleet.IncidentActive {
			out = append(out, *i)
		}
	}
	return out
}
