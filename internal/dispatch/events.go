package dispatch

import (
	"context"

	"github.com/chachabrian/wastepickup-backend/internal/models"
)

// Event names carried in the "type" field of every real-time message
const (
	EventCreated   = "pickup:created"
	EventAccepted  = "pickup:accepted"
	EventCancelled = "pickup:cancelled"
	EventStatus    = "pickup:status"
	EventRemoved   = "pickup:removed"
)

const (
	driversRoom    = "drivers"
	customerPrefix = "customer:"
)

// Publisher delivers an event to every connection in a room. Implementations
// must not block on the network; delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, room, event string, payload any) error
}

// CustomerRoom is the room a customer's connections join
func CustomerRoom(customerID string) string {
	return customerPrefix + customerID
}

// DriversRoom is the driver pool a request fans out to. Requests without an
// org go to the shared pool.
func DriversRoom(orgID *string) string {
	if orgID == nil || *orgID == "" {
		return driversRoom
	}
	return driversRoom + ":" + *orgID
}

// RoomsFor lists the rooms a principal joins for the lifetime of a connection
func RoomsFor(p models.Principal) []string {
	switch {
	case p.Role == models.RoleDriver:
		rooms := []string{driversRoom}
		if p.OrgID != "" {
			rooms = append(rooms, DriversRoom(p.OrgRef()))
		}
		return rooms
	case p.Role.IsAdmin():
		// admins watch the pool they administer
		return []string{DriversRoom(p.OrgRef())}
	default:
		return []string{CustomerRoom(p.ID)}
	}
}

// RemovalPayload is what drivers receive when a request leaves the pending list
type RemovalPayload struct {
	ID     string              `json:"id"`
	Status models.PickupStatus `json:"status,omitempty"`
}
