package client

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/chachabrian/wastepickup-backend/internal/models"
	"github.com/cockroachdb/errors"
)

// Phase is what the customer's screen shows for the tracked request
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseSearching   Phase = "searching"
	PhaseDriverFound Phase = "driver-found"
	PhaseCompleted   Phase = "completed"
)

// CancelWindow is how long after assignment a customer may still cancel
const CancelWindow = time.Minute

type CustomerState struct {
	Phase  Phase
	Pickup *models.PickupPayload
}

// CustomerView tracks the customer's active request
type CustomerView struct {
	mu     sync.Mutex
	phase  Phase
	pickup *models.PickupPayload
}

func NewCustomerView() *CustomerView {
	return &CustomerView{phase: PhaseIdle}
}

// Track starts following a freshly created (or reloaded) request
func (v *CustomerView) Track(p models.PickupPayload) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.set(p)
}

// Reconcile applies the authoritative snapshot read after a (re)connect.
// Snapshots for another request are ignored.
func (v *CustomerView) Reconcile(p models.PickupPayload) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.pickup == nil || v.pickup.ID != p.ID {
		return
	}
	v.set(p)
}

// Apply folds one real-time event into the tracked state. Events about other
// requests and events arriving after a terminal status are ignored.
func (v *CustomerView) Apply(ev Event) error {
	if ev.Type != EventAccepted && ev.Type != EventStatus {
		return nil
	}
	var p models.PickupPayload
	if err := json.Unmarshal(ev.Data, &p); err != nil {
		return errors.Wrapf(err, "decode %s", ev.Type)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.pickup == nil || v.pickup.ID != p.ID || v.pickup.Status.IsTerminal() {
		return nil
	}
	if ev.Type == EventAccepted {
		p.Status = models.PickupStatusAssigned
	}
	v.set(p)
	return nil
}

// CanCancel reports whether the cancel action is offered at now
func (v *CustomerView) CanCancel(now time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch v.phase {
	case PhaseSearching:
		return true
	case PhaseDriverFound:
		return v.pickup.AssignedAt != nil && now.Before(v.pickup.AssignedAt.Add(CancelWindow))
	}
	return false
}

func (v *CustomerView) State() CustomerState {
	v.mu.Lock()
	defer v.mu.Unlock()
	st := CustomerState{Phase: v.phase}
	if v.pickup != nil {
		p := *v.pickup
		st.Pickup = &p
	}
	return st
}

func (v *CustomerView) set(p models.PickupPayload) {
	v.pickup = &p
	switch p.Status {
	case models.PickupStatusPending:
		v.phase = PhaseSearching
	case models.PickupStatusAssigned:
		v.phase = PhaseDriverFound
	case models.PickupStatusCompleted:
		v.phase = PhaseCompleted
	default:
		// cancelled, expired or rejected: free to request again
		v.phase = PhaseIdle
	}
}
