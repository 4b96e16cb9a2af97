package escalation

import (
	"time"

	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

// PenaltyFunc computes the monetary penalty for a breach of the given
// duration on a given service tier. It is an input to the engine, not
// defined by the delivery domain itself (§4.5) — an operator supplies the
// real pricing-derived function at construction.
type PenaltyFunc func(tier fleet.ServiceType, breach time.Duration) float64

// perMinuteRate is the default PenaltyFunc's per-minute-late multiplier,
// steeper for BARQ (tighter SLA class, smaller/faster orders where
// customers notice lateness sooner) than BULLET.
var perMinuteRate = map[fleet.ServiceType]float64{
	fleet.ServiceTypeBarq:   2.0,
	fleet.ServiceTypeBullet: 0.75,
}

// DefaultPenaltyFunc is a linear per-minute-late multiplier, used unless
// the caller supplies a pricing-derived replacement.
func DefaultPenaltyFunc(tier fleet.ServiceType, breach time.Duration) float64 {
	if breach <= 0 {
		return 0
	}
	var rate = perMinuteRate[tier]
	if rate <= 0 {
		rate = perMinuteRate[fleet.ServiceTypeBarq]
	}
	return rate * breach.Minutes()
}
