package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOfferBook_ActiveExpiry(t *testing.T) {
	var book = NewOfferBook([]byte("test-signing-key"))
	var now = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	_, err := book.Offer("order-1", "driver-1", now, 30*time.Second)
	require.NoError(t, err)

	driverID, ok := book.Active("order-1", now.Add(10*time.Second))
	require.True(t, ok)
	require.Equal(t, "driver-1", driverID)

	_, ok = book.Active("order-1", now.Add(31*time.Second))
	require.False(t, ok)
}

func TestOfferBook_RejectTracksCooldownAndCount(t *testing.T) {
	var book = NewOfferBook([]byte("test-signing-key"))
	var now = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	_, _ = book.Offer("order-1", "driver-1", now, 30*time.Second)
	var count = book.Reject("order-1", "driver-1", now, 60*time.Second)
	require.Equal(t, 1, count)

	require.True(t, book.OnCooldown("order-1", "driver-1", now.Add(30*time.Second)))
	require.False(t, book.OnCooldown("order-1", "driver-1", now.Add(61*time.Second)))

	_, ok := book.Active("order-1", now)
	require.False(t, ok, "rejecting clears the active lease")
}

func TestOfferBook_VoidClearsEverything(t *testing.T) {
	var book = NewOfferBook([]byte("test-signing-key"))
	var now = time.Now()

	_, _ = book.Offer("order-1", "driver-1", now, time.Minute)
	book.Reject("order-1", "driver-2", now, time.Minute)
	book.Void("order-1")

	_, ok := book.Active("order-1", now)
	require.False(t, ok)
	require.False(t, book.OnCooldown("order-1", "driver-2", now))
	require.Equal(t, 0, book.RejectionCount("order-1"))
}

func TestOfferBook_ParseRoundTrip(t *testing.T) {
	var book = NewOfferBook([]byte("test-signing-key"))
	var now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	token, err := book.Offer("order-9", "driver-9", now, time.Minute)
	require.NoError(t, err)

	claims, err := book.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "order-9", claims.OrderID)
	require.Equal(t, "driver-9", claims.DriverID)
}
