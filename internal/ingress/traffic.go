package ingress

import (
	"github.com/google/uuid"

	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

// TrafficIncidentReported is the §6 traffic.incident inbound event.
type TrafficIncidentReported struct {
	Coord    fleet.GeoPoint
	Severity fleet.IncidentSeverity
	Type     string
	RadiusM  float64
}

var knownIncidentSeverities = map[fleet.IncidentSeverity]bool{
	fleet.SeverityLow: true, fleet.SeverityMedium: true, fleet.SeverityHigh: true, fleet.SeveritySevere: true,
}

func (e TrafficIncidentReported) validate() error {
	if !knownIncidentSeverities[e.Severity] {
		return &ValidationError{Event: "traffic.incident", Field: "severity", Message: "unrecognized: " + string(e.Severity)}
	}
	if e.Type == "" {
		return &ValidationError{Event: "traffic.incident", Field: "type", Message: "empty"}
	}
	if e.RadiusM <= 0 {
		return &ValidationError{Event: "traffic.incident", Field: "radius_m", Message: "must be positive"}
	}
	return nil
}

// HandleTrafficIncident records a new ACTIVE incident, which the route
// optimizer's 2-opt pass consults for swap rejection (§4.4), and appends
// the §6 traffic_incidents audit row. Returns the generated incident id.
func (a *Adapter) HandleTrafficIncident(e TrafficIncidentReported) (string, error) {
	if err := e.validate(); err != nil {
		return "", err
	}

	var now = a.clock.Now()
	var incident = &fleet.TrafficIncident{
		ID:         uuid.NewString(),
		Location:   e.Coord,
		RadiusM:    e.RadiusM,
		Severity:   e.Severity,
		Type:       e.Type,
		Status:     fleet.IncidentActive,
		ReportedAt: now,
	}
	a.incidents.Put(incident)

	if err := a.audit.Append("traffic_incidents", incident.ID, now, incident); err != nil {
		return incident.ID, err
	}
	return incident.ID, nil
}

// TrafficResolved is the §6 traffic.resolved inbound event.
type TrafficResolved struct {
	IncidentID string
}

func (e TrafficResolved) validate() error {
	if e.IncidentID == "" {
		return &ValidationError{Event: "traffic.resolved", Field: "incident_id", Message: "empty"}
	}
	return nil
}

// HandleTrafficResolved marks an incident resolved so it no longer
// influences route optimization.
func (a *Adapter) HandleTrafficResolved(e TrafficResolved) error {
	if err := e.validate(); err != nil {
		return err
	}
	var now = a.clock.Now()
	a.incidents.Resolve(e.IncidentID, now)
	return a.audit.Append("traffic_incidents", e.IncidentID, now, map[string]any{"resolved": true})
}
