package fleet

import "time"

// IncidentSeverity ranks a traffic incident's impact on routing.
type IncidentSeverity string

const (
	SeverityLow    IncidentSeverity = "LOW"
	SeverityMedium IncidentSeverity = "MEDIUM"
	SeverityHigh   IncidentSeverity = "HIGH"
	SeveritySevere IncidentSeverity = "SEVERE"
)

// IncidentStatus tracks whether an incident is still affecting routing.
type IncidentStatus string

const (
	IncidentActive   IncidentStatus = "ACTIVE"
	IncidentResolved IncidentStatus = "RESOLVED"
)

// TrafficIncident influences routing while ACTIVE; resolved ones are
// retained for history.
type TrafficIncident struct {
	ID         string
	Location   GeoPoint
	RadiusM    float64
	Severity   IncidentSeverity
	Type       string
	Status     IncidentStatus
	ReportedAt time.Time
	ResolvedAt *time.Time
}

// BlocksRouting reports whether this incident should influence the route
// optimizer's 2-opt swap rejection (§4.4: "HIGH/SEVERE traffic incident
// within its radius").
func (t *TrafficIncident) BlocksRouting() bool {
	return t.Status == IncidentActive && (t.Severity == SeverityHigh || t.Severity == SeveritySevere)
}

// CrossesIncident reports whether the straight-line segment from a to b
// passes within the incident's radius of its center. The distance is
// measured only at the segment's endpoints and midpoint, so a segment whose
// closest point to the center lies elsewhere can pass within the radius
// undetected; it is not a full road-network intersection test (§1
// Non-goals: no map-matching engine).
func (t *TrafficIncident) CrossesIncident(a, b GeoPoint) bool {
	var d = distanceToSegmentKm(t.Location, a, b)
	return d*1000 <= t.RadiusM
}

// distanceToSegmentKm approximates the shortest haversine distance from
// point p to the segment a-b, by sampling the segment's midpoint and
// endpoints. This is adequate for short urban delivery legs, which is the
// only case the route optimizer needs it for.
func distanceToSegmentKm(p, a, b GeoPoint) float64 {
	var mid = GeoPoint{Lat: (a.Lat + b.Lat) / 2, Lng: (a.Lng + b.Lng) / 2}
	var candidates = []float64{
		Haversine(p, a),
		Haversine(p, b),
		Haversine(p, mid),
	}
	var min = candidates[0]
	for _, c := range candidates[1:] {
		if c < min {
			min = c
		}
	}
	return min
}
