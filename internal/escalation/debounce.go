package escalation

import (
	"sync"
	"time"

	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

// debounceKey is a (order_id, escalation_type) pair.
type debounceKey struct {
	orderID string
	etype   fleet.EscalationType
}

// debouncer retains the last firing time per (order_id, escalation_type)
// and suppresses repeats within window (§4.5 Debounce).
type debouncer struct {
	mu   sync.Mutex
	last map[debounceKey]time.Time
}

func newDebouncer() *debouncer {
	return &debouncer{last: make(map[debounceKey]time.Time)}
}

// allow reports whether (orderID, etype) may fire now, and if so records
// now as its new last-fired time.
func (d *debouncer) allow(orderID string, etype fleet.EscalationType, now time.Time, window time.Duration) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	var key = debounceKey{orderID, etype}
	if last, ok := d.last[key]; ok && now.Sub(last) < window {
		return false
	}
	d.last[key] = now
	return true
}
