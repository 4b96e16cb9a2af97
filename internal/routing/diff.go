package routing

import (
	"encoding/json"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

// optimizationRecord is the route_optimization audit row (§3/§6): old/new
// distance, time saved, reason, and a JSON-patch diff of the stop ordering
// so an operator can see exactly what moved without diffing two full
// route documents by hand.
type optimizationRecord struct {
	DriverID     string          `json:"driver_id"`
	Accepted     bool            `json:"accepted"`
	Reason       string          `json:"reason"`
	OldDistance  float64         `json:"old_distance_km"`
	NewDistance  float64         `json:"new_distance_km"`
	OldDuration  float64         `json:"old_duration_min"`
	NewDuration  float64         `json:"new_duration_min"`
	Improvement  float64         `json:"improvement_ratio"`
	StopOrderDiff json.RawMessage `json:"stop_order_diff,omitempty"`
}

// stopOrderPatch returns a JSON Merge Patch document (RFC 7386, via
// evanphx/json-patch) capturing how the stop ordering changed, or nil if
// there was no previous route to diff against. Merge patch treats arrays
// atomically, so the "diff" here is the new ordering in patch form rather
// than a per-element delta — still enough for an operator to see the new
// sequence next to the old one in the audit row.
func stopOrderPatch(old, new []fleet.Stop) json.RawMessage {
	if old == nil {
		return nil
	}
	var oldIDs = stopOrderIDs(old)
	var newIDs = stopOrderIDs(new)

	oldJSON, err := json.Marshal(oldIDs)
	if err != nil {
		return nil
	}
	newJSON, err := json.Marshal(newIDs)
	if err != nil {
		return nil
	}

	patch, err := jsonpatch.CreateMergePatch(oldJSON, newJSON)
	if err != nil {
		return nil
	}
	return json.RawMessage(patch)
}

func stopOrderIDs(stops []fleet.Stop) []string {
	var out = make([]string, len(stops))
	for i, s := range stops {
		out[i] = string(s.Kind) + ":" + s.OrderID
	}
	return out
}
