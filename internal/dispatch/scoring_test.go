package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

func TestScoreCandidate_WeightsSumToScore(t *testing.T) {
	var d = &fleet.Driver{ID: "d1", CapacityKg: 20, OnTimeRate: 0.9}
	var w = Weights{Proximity: 0.40, Performance: 0.30, Capacity: 0.20, Zone: 0.10}

	var c = ScoreCandidate(d, fleet.GeoPoint{}, 5, 10, 5, true, w)

	require.InDelta(t, 0.5, c.Proximity, 1e-9)
	require.InDelta(t, 0.9, c.Performance, 1e-9)
	require.InDelta(t, 0.75, c.Capacity, 1e-9)
	require.Equal(t, 1.0, c.Zone)

	var want = 0.40*0.5 + 0.30*0.9 + 0.20*0.75 + 0.10*1.0
	require.InDelta(t, want, c.Score, 1e-9)
}

func TestScoreCandidate_NoZoneOverlap(t *testing.T) {
	var d = &fleet.Driver{ID: "d1", CapacityKg: 10, OnTimeRate: 1.0}
	var w = Weights{Proximity: 0.40, Performance: 0.30, Capacity: 0.20, Zone: 0.10}

	var c = ScoreCandidate(d, fleet.GeoPoint{}, 0, 10, 0, false, w)

	require.Equal(t, 0.0, c.Zone)
	require.InDelta(t, 1.0, c.Proximity, 1e-9)
}

func TestRankCandidates_TieBreaksByCompletedThenID(t *testing.T) {
	var candidates = []Candidate{
		{DriverID: "b", Score: 0.5, CompletedToday: 3},
		{DriverID: "a", Score: 0.5, CompletedToday: 3},
		{DriverID: "c", Score: 0.5, CompletedToday: 1},
		{DriverID: "z", Score: 0.9, CompletedToday: 9},
	}

	RankCandidates(candidates)

	require.Equal(t, "z", candidates[0].DriverID)
	require.Equal(t, "c", candidates[1].DriverID)
	require.Equal(t, "a", candidates[2].DriverID)
	require.Equal(t, "b", candidates[3].DriverID)
}
