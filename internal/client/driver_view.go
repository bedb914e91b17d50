package client

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/chachabrian/wastepickup-backend/internal/models"
	"github.com/chachabrian/wastepickup-backend/pkg/utils"
	"github.com/cockroachdb/errors"
)

const (
	EventCreated   = "pickup:created"
	EventAccepted  = "pickup:accepted"
	EventCancelled = "pickup:cancelled"
	EventStatus    = "pickup:status"
	EventRemoved   = "pickup:removed"
)

type removal struct {
	ID string `json:"id"`
}

// DriverView is a driver's local list of open requests. Events may arrive
// late, twice or out of order; applying them never resurrects a request that
// was already taken.
type DriverView struct {
	mu    sync.Mutex
	items map[string]models.PickupPayload
	// ids seen leaving the list, kept until the request could no longer be pending
	gone   map[string]time.Time
	now    func() time.Time
	retain time.Duration
}

func NewDriverView() *DriverView {
	return &DriverView{
		items:  make(map[string]models.PickupPayload),
		gone:   make(map[string]time.Time),
		now:    time.Now,
		retain: models.DefaultPickupTTL,
	}
}

// Apply folds one real-time event into the list. Unknown event types are ignored.
func (v *DriverView) Apply(ev Event) error {
	switch ev.Type {
	case EventCreated:
		var p models.PickupPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return errors.Wrapf(err, "decode %s", ev.Type)
		}
		v.mu.Lock()
		defer v.mu.Unlock()
		if _, taken := v.gone[p.ID]; taken {
			return nil
		}
		if _, ok := v.items[p.ID]; !ok {
			v.items[p.ID] = p
		}
	case EventAccepted, EventCancelled, EventRemoved:
		var r removal
		if err := json.Unmarshal(ev.Data, &r); err != nil {
			return errors.Wrapf(err, "decode %s", ev.Type)
		}
		v.mu.Lock()
		defer v.mu.Unlock()
		until := v.now().Add(v.retain)
		if p, ok := v.items[r.ID]; ok {
			until = p.ExpiresAt
		}
		delete(v.items, r.ID)
		if prev, ok := v.gone[r.ID]; !ok || until.After(prev) {
			v.gone[r.ID] = until
		}
	}
	return nil
}

// Reconcile replaces the list with the server's pending set. A removal is
// final, so ids already seen leaving stay out even if the read predates it.
func (v *DriverView) Reconcile(pending []models.PickupPayload) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.items = make(map[string]models.PickupPayload, len(pending))
	for _, p := range pending {
		if _, taken := v.gone[p.ID]; taken {
			continue
		}
		v.items[p.ID] = p
	}
}

// Prune drops requests whose expiry has passed, and the removal markers
// that outlived them
func (v *DriverView) Prune(now time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for id, p := range v.items {
		if !now.Before(p.ExpiresAt) {
			delete(v.items, id)
		}
	}
	for id, until := range v.gone {
		if !now.Before(until) {
			delete(v.gone, id)
		}
	}
}

// Items returns the list newest first
func (v *DriverView) Items() []models.PickupPayload {
	out := v.snapshot()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Nearest returns the list ordered by distance from the driver's position
func (v *DriverView) Nearest(lat, lng float64) []models.PickupPayload {
	out := v.snapshot()
	dist := func(p models.PickupPayload) float64 {
		return utils.HaversineDistance(lat, lng, p.Location.Latitude, p.Location.Longitude)
	}
	sort.SliceStable(out, func(i, j int) bool { return dist(out[i]) < dist(out[j]) })
	return out
}

func (v *DriverView) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.items)
}

func (v *DriverView) snapshot() []models.PickupPayload {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]models.PickupPayload, 0, len(v.items))
	for _, p := range v.items {
		out = append(out, p)
	}
	return out
}
