// Package routing implements the §4.4 Route Optimizer: a precedence-aware
// nearest-neighbor tour with bounded 2-opt refinement for small stop sets,
// falling back to cheapest-insertion for larger ones.
package routing

// Config is the subset of §6 this package reads; internal/engine maps
// internal/config.Config.Route onto this.
type Config struct {
	MinImprovement float64
	NNCap          int
	Max2OptPasses  int
	RoadFactor     float64
}
