package engine

import (
	"sync"

	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

// RouteTable stores one active route per driver plus history, with
// copy-on-write activation (§5: "the optimizer builds a new Route and
// flips is_active in one atomic step with the old Route").
type RouteTable struct {
	actors *KeyedMutex

	mu      sync.RWMutex
	active  map[string]*fleet.Route   // driverID -> active route
	history map[string][]*fleet.Route // driverID -> all routes, most recent last
}

func NewRouteTable() *RouteTable {
	return &RouteTable{
		actors:  NewKeyedMutex(),
		active:  make(map[string]*fleet.Route),
		history: make(map[string][]*fleet.Route),
	}
}

// ActiveFor returns the current active route for a driver, if any.
func (t *RouteTable) ActiveFor(driverID string) (*fleet.Route, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.active[driverID]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Activate atomically deactivates the previous active route (if any) and
// installs newRoute as the active route for its driver.
func (t *RouteTable) Activate(newRoute *fleet.Route) {
	t.actors.With(newRoute.DriverID, func() {
		t.mu.Lock()
		defer t.mu.Unlock()

		if prev, ok := t.active[newRoute.DriverID]; ok {
			prev.IsActive = false
			t.history[newRoute.DriverID] = append(t.history[newRoute.DriverID], prev)
		}
		var activated = newRoute.Clone()
		activated.IsActive = true
		t.active[newRoute.DriverID] = activated
	})
}

// Deactivate clears the active route for a driver (driver returned to
// base, §3 Route lifecycle).
func (t *RouteTable) Deactivate(driverID string) {
	t.actors.With(driverID, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if prev, ok := t.active[driverID]; ok {
			prev.IsActive = false
			t.history[driverID] = append(t.history[driverID], prev)
			delete(t.active, driverID)
		}
	})
}
