// Package escalation implements the §4.5 autonomous escalation engine: a
// periodic scan of every non-terminal order that detects five risk/failure
// conditions and takes the matching autonomous action — force-assign,
// reassignment, or an operator alert — subject to a per-(order,type)
// debounce.
package escalation

import (
	"time"

	"github.com/ridrisa/barq-dispatch-core/internal/dispatch"
)

// Config is the subset of §6 this package reads; internal/engine maps
// internal/config.Config.Escalation onto this.
type Config struct {
	DebounceWindow      time.Duration
	StuckThreshold      time.Duration
	MaxReassignments    int
	SLACriticalWindow   time.Duration
	SLAAssignedWindow   time.Duration
	SLAAssignedETASlack time.Duration

	// ReassignRadiusKm and ReassignWeights parameterize the candidate
	// search used for reassignment, per §4.5's "Candidate selection uses
	// Dispatch scoring... zone/performance weights are boosted".
	ReassignRadiusKm float64
	ReassignWeights  dispatch.Weights
}
