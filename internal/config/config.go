// Package config loads and validates the engine's configuration table
// (spec §6) from flags and environment variables, grounded on the
// teacher's flow-consumer/main.go config struct: a single struct with
// `long`/`env`/`default`/`description` tags, organized into namespaced
// groups, validated up front rather than read property-at-a-time.
package config

import (
	"fmt"
	"math"
	"time"

	"github.com/jessevdk/go-flags"
)

// Config is the full set of recognised knobs from spec §6.
type Config struct {
	Dispatch struct {
		TickInterval       time.Duration `long:"tick-interval" env:"TICK_INTERVAL" default:"10s" description:"dispatch loop cadence"`
		RadiusKm           float64       `long:"radius-km" env:"RADIUS_KM" default:"10" description:"initial candidate radius"`
		MinScore           float64       `long:"min-score" env:"MIN_SCORE" default:"0.40" description:"below this, no normal assignment"`
		WeightProximity    float64       `long:"weight-proximity" env:"WEIGHT_PROXIMITY" default:"0.40" description:"proximity score weight"`
		WeightPerformance  float64       `long:"weight-performance" env:"WEIGHT_PERFORMANCE" default:"0.30" description:"on-time performance score weight"`
		WeightCapacity     float64       `long:"weight-capacity" env:"WEIGHT_CAPACITY" default:"0.20" description:"remaining capacity score weight"`
		WeightZone         float64       `long:"weight-zone" env:"WEIGHT_ZONE" default:"0.10" description:"zone-overlap score weight"`
		OfferTimeout       time.Duration `long:"offer-timeout" env:"OFFER_TIMEOUT" default:"30s" description:"per-driver offer window"`
		MaxOffersPerOrder  int           `long:"max-offers-per-order" env:"MAX_OFFERS_PER_ORDER" default:"5" description:"max rejections before alerting"`
		CooldownAfterReject time.Duration `long:"cooldown" env:"COOLDOWN" default:"60s" description:"driver cooldown after rejecting/timing out an offer"`
		ForceThreshold     time.Duration `long:"force-threshold" env:"FORCE_THRESHOLD" default:"15m" description:"SLA remaining below which dispatch may force-assign"`
		MaxRadiusMultiple  float64       `long:"max-radius-multiple" env:"MAX_RADIUS_MULTIPLE" default:"3" description:"cap on adaptive radius widening"`
		RadiusGrowthFactor float64       `long:"radius-growth-factor" env:"RADIUS_GROWTH_FACTOR" default:"1.5" description:"multiplier applied to radius on each widen"`
	} `group:"dispatch" namespace:"dispatch" env-namespace:"DISPATCH"`

	Batching struct {
		TickInterval    time.Duration `long:"tick-interval" env:"TICK_INTERVAL" default:"60s" description:"batching cadence"`
		PickupClusterKm float64       `long:"pickup-cluster-km" env:"PICKUP_CLUSTER_KM" default:"2" description:"max pickup distance within a cluster"`
		DropSpanKm      float64       `long:"drop-span-km" env:"DROP_SPAN_KM" default:"8" description:"max bounding-box diagonal of combined drop points"`
		MaxBatchSize    int           `long:"max-batch-size" env:"MAX_BATCH_SIZE" default:"6" description:"cap on cluster size"`
	} `group:"batching" namespace:"batching" env-namespace:"BATCHING"`

	Route struct {
		PeriodicTick    time.Duration `long:"periodic-tick" env:"PERIODIC_TICK" default:"5m" description:"per-driver periodic re-optimization interval"`
		MinImprovement  float64       `long:"min-improvement" env:"MIN_IMPROVEMENT" default:"0.05" description:"swap-threshold to accept a new route"`
		NNCap           int           `long:"nn-cap" env:"NN_CAP" default:"10" description:"switch to cheapest-insertion above this many stops"`
		Max2OptPasses   int           `long:"max-2opt-passes" env:"MAX_2OPT_PASSES" default:"20" description:"cap on 2-opt improvement passes"`
		RoadFactor      float64       `long:"road-factor" env:"ROAD_FACTOR" default:"1.3" description:"road distance factor over haversine when no provider is configured"`
		WorkerPoolSize  int           `long:"worker-pool-size" env:"WORKER_POOL_SIZE" default:"8" description:"bounded worker pool size for event-triggered re-optimizations"`
	} `group:"route" namespace:"route" env-namespace:"ROUTE"`

	Escalation struct {
		TickInterval        time.Duration `long:"tick-interval" env:"TICK_INTERVAL" default:"60s" description:"escalation scan cadence"`
		DebounceWindow      time.Duration `long:"debounce" env:"DEBOUNCE" default:"5m" description:"per (order, escalation type) suppression window"`
		StuckThreshold      time.Duration `long:"stuck-threshold" env:"STUCK_THRESHOLD" default:"15m" description:"no driver-location update before an order is 'stuck'"`
		MaxReassignments    int           `long:"max-reassignments" env:"MAX_REASSIGNMENTS" default:"3" description:"per-order cap on reassignments"`
		SLACriticalWindow   time.Duration `long:"sla-critical-window" env:"SLA_CRITICAL_WINDOW" default:"15m" description:"time-to-SLA below which a pending order is SLA_RISK_CRITICAL"`
		SLAAssignedWindow   time.Duration `long:"sla-assigned-window" env:"SLA_ASSIGNED_WINDOW" default:"10m" description:"time-to-SLA below which an assigned order is checked for SLA_RISK_ASSIGNED"`
		SLAAssignedETASlack time.Duration `long:"sla-assigned-eta-slack" env:"SLA_ASSIGNED_ETA_SLACK" default:"2m" description:"ETA slack past deadline that triggers SLA_RISK_ASSIGNED"`
	} `group:"escalation" namespace:"escalation" env-namespace:"ESCALATION"`

	DriverCaps struct {
		MaxConsecutiveDeliveries int     `long:"max-consecutive-deliveries" env:"MAX_CONSECUTIVE_DELIVERIES" default:"5" description:"deliveries before a mandatory break"`
		MaxWorkingHours          float64 `long:"max-working-hours" env:"MAX_WORKING_HOURS" default:"8" description:"hours worked before a driver can no longer accept"`
		TargetDeliveries         int     `long:"target-deliveries" env:"TARGET_DELIVERIES" default:"25" description:"daily delivery target used for workload smoothing"`
		MaxConcurrentOrders      int     `long:"max-concurrent-orders" env:"MAX_CONCURRENT_ORDERS" default:"3" description:"max simultaneous active orders per driver"`
	} `group:"driver-caps" namespace:"driver-caps" env-namespace:"DRIVER_CAPS"`

	Store struct {
		SqlitePath string `long:"sqlite-path" env:"SQLITE_PATH" default:"dispatch-audit.db" description:"path to the sqlite file backing append-only audit streams"`
	} `group:"store" namespace:"store" env-namespace:"STORE"`
}

// Load parses argv into a Config and validates it up front (§9's design
// note: "loading is validation-up-front, not property-at-a-time").
func Load(argv []string) (*Config, error) {
	var cfg Config
	var parser = flags.NewParser(&cfg, flags.Default)
	if _, err := parser.ParseArgs(argv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

const weightSumTolerance = 1e-6

// Validate enforces the invariants spec §8 calls out for configuration:
// scoring weights sum to 1 ± 1e-6, and every cadence/duration is positive.
func (c *Config) Validate() error {
	var sum = c.Dispatch.WeightProximity + c.Dispatch.WeightPerformance +
		c.Dispatch.WeightCapacity + c.Dispatch.WeightZone
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("config: dispatch weights must sum to 1 ± 1e-6, got %f", sum)
	}

	var durations = map[string]time.Duration{
		"dispatch.tick-interval":    c.Dispatch.TickInterval,
		"dispatch.offer-timeout":    c.Dispatch.OfferTimeout,
		"dispatch.cooldown":         c.Dispatch.CooldownAfterReject,
		"dispatch.force-threshold":  c.Dispatch.ForceThreshold,
		"batching.tick-interval":    c.Batching.TickInterval,
		"route.periodic-tick":      c.Route.PeriodicTick,
		"escalation.tick-interval":  c.Escalation.TickInterval,
		"escalation.debounce":       c.Escalation.DebounceWindow,
		"escalation.stuck-threshold": c.Escalation.StuckThreshold,
		"escalation.sla-critical-window":    c.Escalation.SLACriticalWindow,
		"escalation.sla-assigned-window":    c.Escalation.SLAAssignedWindow,
		"escalation.sla-assigned-eta-slack": c.Escalation.SLAAssignedETASlack,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("config: %s must be positive, got %s", name, d)
		}
	}

	if c.Dispatch.MinScore < 0 || c.Dispatch.MinScore > 1 {
		return fmt.Errorf("config: dispatch.min-score must be in [0,1], got %f", c.Dispatch.MinScore)
	}
	if c.Dispatch.MaxRadiusMultiple < 1 {
		return fmt.Errorf("config: dispatch.max-radius-multiple must be >= 1, got %f", c.Dispatch.MaxRadiusMultiple)
	}
	if c.Route.MinImprovement < 0 || c.Route.MinImprovement > 1 {
		return fmt.Errorf("config: route.min-improvement must be in [0,1], got %f", c.Route.MinImprovement)
	}
	if c.Route.NNCap <= 0 {
		return fmt.Errorf("config: route.nn-cap must be positive, got %d", c.Route.NNCap)
	}
	if c.Batching.MaxBatchSize < 2 {
		return fmt.Errorf("config: batching.max-batch-size must be >= 2, got %d", c.Batching.MaxBatchSize)
	}
	if c.Escalation.MaxReassignments < 0 {
		return fmt.Errorf("config: escalation.max-reassignments must be >= 0, got %d", c.Escalation.MaxReassignments)
	}

	return nil
}
