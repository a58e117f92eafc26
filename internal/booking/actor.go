package booking

import (
	"strings"

	"github.com/iliyamo/venue-reservation/internal/model"
)

// Capability is a single permission held by an actor.
type Capability uint8

const (
	// CapBook allows creating reservations.
	CapBook Capability = 1 << iota
	// CapPay allows paying deposits on one's own reservations.
	CapPay
	// CapCancelOwn allows canceling one's own reservations.
	CapCancelOwn
	// CapManageVenue allows owner actions on reservations of owned venues.
	CapManageVenue
)

// Actor is the authenticated caller of a lifecycle operation, reduced to
// an id and the capabilities derived from its roles.
type Actor struct {
	UserID uint64
	Caps   Capability
}

// NewActor derives the capability set from role names.  Owners and
// admins may not book; any other authenticated user books as a customer.
// Only owners manage venues.
func NewActor(userID uint64, roles ...string) Actor {
	a := Actor{UserID: userID, Caps: CapPay | CapCancelOwn}
	staff := false
	for _, r := range roles {
		switch strings.ToUpper(strings.TrimSpace(r)) {
		case model.RoleOwner:
			staff = true
			a.Caps |= CapManageVenue
		case model.RoleAdmin:
			staff = true
		}
	}
	if !staff {
		a.Caps |= CapBook
	}
	return a
}

// Has reports whether a holds every capability in c.
func (a Actor) Has(c Capability) bool {
	return a.Caps&c == c
}

// IsCustomerOf reports whether a may act as the customer of r.
func (a Actor) IsCustomerOf(r model.Reservation) bool {
	return a.UserID != 0 && a.UserID == r.CustomerID
}

// Manages reports whether a may act as the owner of a venue owned by
// ownerID.
func (a Actor) Manages(ownerID uint64) bool {
	return a.Has(CapManageVenue) && a.UserID != 0 && a.UserID == ownerID
}
