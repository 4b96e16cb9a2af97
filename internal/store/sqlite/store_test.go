package sqlite

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	var path = filepath.Join(t.TempDir(), "audit.db")
	var s, err = Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_AppendAndForEntity_RoundTrips(t *testing.T) {
	var s = openTestStore(t)
	var at = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	type assignmentPayload struct {
		DriverID string  `json:"driver_id"`
		Score    float64 `json:"score"`
	}

	require.NoError(t, s.Append("assignment_logs", "order-1", at, assignmentPayload{DriverID: "driver-9", Score: 0.82}))
	require.NoError(t, s.Append("assignment_logs", "order-1", at.Add(time.Minute), assignmentPayload{DriverID: "driver-3", Score: 0.91}))
	require.NoError(t, s.Append("assignment_logs", "order-2", at, assignmentPayload{DriverID: "driver-1", Score: 0.5}))

	rows, err := s.ForEntity("assignment_logs", "order-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "order-1", rows[0].EntityID)
	require.True(t, rows[0].CreatedAt.Equal(at))
	require.True(t, rows[0].ID < rows[1].ID)

	var decoded assignmentPayload
	require.NoError(t, json.Unmarshal(rows[0].Payload, &decoded))
	require.Equal(t, "driver-9", decoded.DriverID)
}

func TestStore_ForEntity_UnknownEntityReturnsEmpty(t *testing.T) {
	var s = openTestStore(t)
	rows, err := s.ForEntity("escalation_logs", "nonexistent")
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestStore_RejectsUnknownStream(t *testing.T) {
	var s = openTestStore(t)
	require.Error(t, s.Append("not_a_real_stream", "x", time.Now(), map[string]string{"a": "b"}))

	_, err := s.ForEntity("not_a_real_stream", "x")
	require.Error(t, err)
}

func TestStore_AllStreamsAcceptAppends(t *testing.T) {
	var s = openTestStore(t)
	var at = time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	for _, stream := range streams {
		require.NoError(t, s.Append(stream, "entity-x", at, map[string]string{"stream": stream}))
	}
}
