package dispatch

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// offerClaims is the signed content of an offer lease: spec §5's "an
// outstanding offer (order -> driver) is recorded with an expiry... on
// expiry the order becomes re-dispatchable without any rollback because
// no status was changed beyond the offer bookkeeping." The signed token is
// self-describing and Parse can check it against the issuing OfferBook's
// key; leases live only in this in-memory book and are not written to any
// audit stream, so they do not outlive the process.
type offerClaims struct {
	jwt.RegisteredClaims
	OrderID  string `json:"order_id"`
	DriverID string `json:"driver_id"`
}

// OfferBook is the in-memory registry of outstanding offer leases plus
// per-driver cooldowns and per-order rejection counts, all guarded by one
// mutex since offer bookkeeping is intentionally lightweight — it is
// never held across the suspension points the driver mutex guards (§5:
// "the driver mutex does not need to be held for the lease duration").
type OfferBook struct {
	signingKey []byte

	mu         sync.Mutex
	byOrder    map[string]*offerClaims          // orderID -> active offer, if any
	token      map[string]string                // orderID -> signed token string
	cooldowns  map[string]map[string]time.Time  // orderID -> driverID -> cooldown expiry
	rejections map[string]int                   // orderID -> rejection/timeout count
}

// NewOfferBook returns an OfferBook that signs leases with signingKey.
func NewOfferBook(signingKey []byte) *OfferBook {
	return &OfferBook{
		signingKey: signingKey,
		byOrder:    make(map[string]*offerClaims),
		token:      make(map[string]string),
		cooldowns:  make(map[string]map[string]time.Time),
		rejections: make(map[string]int),
	}
}

// Offer records a new lease for (orderID, driverID) expiring after ttl and
// returns its signed token. It fails while another unexpired lease holds
// the order for a different driver or the driver for a different order.
func (b *OfferBook) Offer(orderID, driverID string, now time.Time, ttl time.Duration) (string, error) {
	var claims = &offerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		OrderID:  orderID,
		DriverID: driverID,
	}
	var token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.signingKey)
	if err != nil {
		return "", fmt.Errorf("signing offer lease: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for heldOrder, held := range b.byOrder {
		if held.ExpiresAt.Before(now) {
			continue
		}
		if heldOrder == orderID && held.DriverID != driverID {
			return "", fmt.Errorf("offer lease: order %s is already offered to driver %s", orderID, held.DriverID)
		}
		if heldOrder != orderID && held.DriverID == driverID {
			return "", fmt.Errorf("offer lease: driver %s already holds an offer for order %s", driverID, heldOrder)
		}
	}
	b.byOrder[orderID] = claims
	b.token[orderID] = token

	return token, nil
}

// Active reports the outstanding, unexpired offer for an order, if any.
func (b *OfferBook) Active(orderID string, now time.Time) (driverID string, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var claims, found = b.byOrder[orderID]
	if !found {
		return "", false
	}
	if claims.ExpiresAt.Before(now) {
		delete(b.byOrder, orderID)
		delete(b.token, orderID)
		return "", false
	}
	return claims.DriverID, true
}

// Parse validates a previously issued token, returning its claims even if
// expired (callers check ExpiresAt themselves). Only tokens signed with
// this OfferBook's key validate.
func (b *OfferBook) Parse(token string) (*offerClaims, error) {
	var claims = &offerClaims{}
	var _, err = jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return b.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, fmt.Errorf("parsing offer lease: %w", err)
	}
	return claims, nil
}

// Resolve clears the active offer for an order (acceptance, rejection, or
// expiry all end the lease).
func (b *OfferBook) Resolve(orderID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.byOrder, orderID)
	delete(b.token, orderID)
}

// Reject records that driverID rejected or timed out on orderID: the
// driver is put on cooldown for this order and the order's rejection
// count increments, per §4.2 step 4.
func (b *OfferBook) Reject(orderID, driverID string, now time.Time, cooldown time.Duration) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.byOrder, orderID)
	delete(b.token, orderID)

	if b.cooldowns[orderID] == nil {
		b.cooldowns[orderID] = make(map[string]time.Time)
	}
	b.cooldowns[orderID][driverID] = now.Add(cooldown)
	b.rejections[orderID]++
	return b.rejections[orderID]
}

// OnCooldown reports whether driverID is currently excluded from
// orderID's candidate set due to a recent rejection or timeout.
func (b *OfferBook) OnCooldown(orderID, driverID string, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	var until, ok = b.cooldowns[orderID][driverID]
	return ok && now.Before(until)
}

// RejectionCount returns how many offers have been rejected or timed out
// for orderID so far.
func (b *OfferBook) RejectionCount(orderID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rejections[orderID]
}

// Void clears every offer-book entry for an order — used when the order
// is cancelled externally while being dispatched (§5: "the offer is
// voided and the driver's provisional state reverted").
func (b *OfferBook) Void(orderID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.byOrder, orderID)
	delete(b.token, orderID)
	delete(b.cooldowns, orderID)
	delete(b.rejections, orderID)
}
