// Package dispatch owns the pickup request lifecycle. The coordinator keeps no
// mutable state of its own: every decision that two callers could race on is
// pushed into a single conditional write against the store.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/chachabrian/wastepickup-backend/internal/clock"
	"github.com/chachabrian/wastepickup-backend/internal/models"
	"github.com/chachabrian/wastepickup-backend/internal/store"
	"github.com/chachabrian/wastepickup-backend/pkg/utils"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

//go:generate mockgen -source=coordinator.go -destination=mocks/mock_coordinator.go -package=mocks

// Store is the persistence the coordinator needs. *store.PickupStore satisfies it.
type Store interface {
	Create(ctx context.Context, p *models.PickupRequest) error
	Get(ctx context.Context, id string) (*models.PickupRequest, error)
	ListClaimable(ctx context.Context, now time.Time, orgID string, limit int) ([]models.PickupRequest, error)
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]models.PickupRequest, error)
	Claim(ctx context.Context, id, driverID, driverOrg string, info models.DriverInfo, now time.Time) (*models.PickupRequest, error)
	Cancel(ctx context.Context, id string, now time.Time) (*models.PickupRequest, error)
	Complete(ctx context.Context, id, driverID string, now time.Time) (*models.PickupRequest, error)
	Reject(ctx context.Context, id string, now time.Time) (*models.PickupRequest, error)
	ExpireStale(ctx context.Context, now time.Time, limit int) ([]models.PickupRequest, error)
}

// UploadChecker confirms that a referenced photo was stored
type UploadChecker interface {
	Exists(ctx context.Context, ref string) (bool, error)
}

type Config struct {
	TTL         time.Duration
	PageSize    int
	HistorySize int
	SweepBatch  int
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = models.DefaultPickupTTL
	}
	if c.PageSize <= 0 {
		c.PageSize = 20
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 50
	}
	if c.SweepBatch <= 0 {
		c.SweepBatch = 100
	}
	return c
}

type Option func(*Coordinator)

func WithUploads(u UploadChecker) Option {
	return func(c *Coordinator) { c.uploads = u }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

type Coordinator struct {
	store   Store
	bus     Publisher
	uploads UploadChecker
	clock   clock.Clock
	log     *slog.Logger
	cfg     Config
}

func NewCoordinator(s Store, bus Publisher, clk clock.Clock, cfg Config, opts ...Option) *Coordinator {
	c := &Coordinator{
		store: s,
		bus:   bus,
		clock: clk,
		log:   slog.Default(),
		cfg:   cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateInput is what a customer submits. Latitude and Longitude are pointers
// so a missing coordinate is distinguishable from zero.
type CreateInput struct {
	Latitude  *float64
	Longitude *float64
	Address   *string
	Category  models.WasteCategory
	Level     models.WasteLevel
	UploadRef *string
}

func (in CreateInput) validate() error {
	if in.Latitude == nil || in.Longitude == nil {
		return validationf("latitude and longitude are required")
	}
	if !utils.ValidCoordinate(*in.Latitude, *in.Longitude) {
		return validationf("coordinates out of range: %v,%v", *in.Latitude, *in.Longitude)
	}
	if in.Category != "" && !in.Category.Valid() {
		return validationf("unknown category %q", in.Category)
	}
	if in.Level != "" && !in.Level.Valid() {
		return validationf("unknown level %q", in.Level)
	}
	return nil
}

// Create persists a new PENDING request and announces it to the driver pool
func (c *Coordinator) Create(ctx context.Context, customer models.Principal, in CreateInput) (*models.PickupRequest, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.UploadRef != nil && *in.UploadRef == "" {
		in.UploadRef = nil
	}
	if in.UploadRef != nil && c.uploads != nil {
		ok, err := c.uploads.Exists(ctx, *in.UploadRef)
		if err != nil {
			return nil, errors.Wrap(err, "check upload")
		}
		if !ok {
			return nil, validationf("upload %q not found", *in.UploadRef)
		}
	}

	category := in.Category
	if category == "" {
		category = models.WasteCategoryNonRecyclable
	}
	level := in.Level
	if level == "" {
		level = models.WasteLevelEasy
	}

	now := c.clock.Now()
	p := &models.PickupRequest{
		ID:         uuid.NewString(),
		CustomerID: customer.ID,
		OrgID:      customer.OrgRef(),
		UploadRef:  in.UploadRef,
		Location: models.Location{
			Latitude:  *in.Latitude,
			Longitude: *in.Longitude,
			Address:   in.Address,
		},
		Category:  category,
		Level:     level,
		Status:    models.PickupStatusPending,
		ExpiresAt: now.Add(c.cfg.TTL),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.store.Create(ctx, p); err != nil {
		return nil, err
	}

	c.emit(ctx, DriversRoom(p.OrgID), EventCreated, p.Payload(now))
	return p, nil
}

// Accept claims a request for a driver. Exactly one concurrent caller wins; the
// rest get ErrConflict, or ErrNotFound when the id never existed. The winner's
// row comes back from the claim itself.
func (c *Coordinator) Accept(ctx context.Context, id string, driver models.Principal, snapshot models.DriverInfo) (*models.PickupRequest, error) {
	now := c.clock.Now()
	p, err := c.store.Claim(ctx, id, driver.ID, driver.OrgID, snapshot, now)
	if err != nil {
		return nil, err
	}
	if p == nil {
		lost, err := c.get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, classifyLostClaim(lost, driver, now)
	}

	c.emit(ctx, CustomerRoom(p.CustomerID), EventAccepted, p.Payload(now))
	c.emit(ctx, DriversRoom(p.OrgID), EventAccepted, RemovalPayload{ID: p.ID, Status: models.PickupStatusAssigned})
	return p, nil
}

// classifyLostClaim explains a claim that matched no row
func classifyLostClaim(p *models.PickupRequest, driver models.Principal, now time.Time) error {
	if !inDriverPool(p, driver) {
		return ErrForbidden
	}
	switch p.EffectiveStatus(now) {
	case models.PickupStatusAssigned, models.PickupStatusCompleted, models.PickupStatusExpired:
		// a lapsed request reads as taken to the driver
		return ErrConflict
	default:
		return invalidStatef("pickup %s is %s", p.ID, p.Status)
	}
}

// Cancel moves a request to CANCELLED on behalf of its owner or an admin
func (c *Coordinator) Cancel(ctx context.Context, id string, actor models.Principal) (*models.PickupRequest, error) {
	p, err := c.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.CustomerID != actor.ID && !actor.Role.IsAdmin() {
		return nil, ErrForbidden
	}

	now := c.clock.Now()
	if !models.CanTransition(p.EffectiveStatus(now), models.PickupStatusCancelled) {
		return nil, invalidStatef("cannot cancel a %s pickup", p.EffectiveStatus(now))
	}

	cancelled, err := c.store.Cancel(ctx, id, now)
	if err != nil {
		return nil, err
	}
	if cancelled == nil {
		// lost to a concurrent transition; report what it became
		if p, err = c.get(ctx, id); err != nil {
			return nil, err
		}
		return nil, invalidStatef("cannot cancel a %s pickup", p.EffectiveStatus(now))
	}

	c.emit(ctx, CustomerRoom(cancelled.CustomerID), EventStatus, cancelled.Payload(now))
	c.emit(ctx, DriversRoom(cancelled.OrgID), EventCancelled, RemovalPayload{ID: cancelled.ID})
	return cancelled, nil
}

// Complete closes an ASSIGNED request. Only the assigned driver may do it.
func (c *Coordinator) Complete(ctx context.Context, id string, driver models.Principal) (*models.PickupRequest, error) {
	p, err := c.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.DriverID == nil || *p.DriverID != driver.ID {
		return nil, ErrForbidden
	}

	now := c.clock.Now()
	completed, err := c.store.Complete(ctx, id, driver.ID, now)
	if err != nil {
		return nil, err
	}
	if completed == nil {
		if p, err = c.get(ctx, id); err != nil {
			return nil, err
		}
		return nil, invalidStatef("cannot complete a %s pickup", p.Status)
	}

	c.emit(ctx, CustomerRoom(completed.CustomerID), EventStatus, completed.Payload(now))
	return completed, nil
}

// Reject is the admin review step that turns down a PENDING request
func (c *Coordinator) Reject(ctx context.Context, id string, admin models.Principal) (*models.PickupRequest, error) {
	if !admin.Role.IsAdmin() {
		return nil, ErrForbidden
	}
	p, err := c.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if admin.Role != models.RoleSuperAdmin && p.OrgID != nil && *p.OrgID != admin.OrgID {
		return nil, ErrForbidden
	}

	now := c.clock.Now()
	rejected, err := c.store.Reject(ctx, id, now)
	if err != nil {
		return nil, err
	}
	if rejected == nil {
		if p, err = c.get(ctx, id); err != nil {
			return nil, err
		}
		return nil, invalidStatef("cannot reject a %s pickup", p.EffectiveStatus(now))
	}

	c.emit(ctx, CustomerRoom(rejected.CustomerID), EventStatus, rejected.Payload(now))
	c.emit(ctx, DriversRoom(rejected.OrgID), EventRemoved, RemovalPayload{ID: rejected.ID, Status: rejected.Status})
	return rejected, nil
}

// Get returns a request if the viewer is its owner, a driver of its pool or an admin
func (c *Coordinator) Get(ctx context.Context, id string, viewer models.Principal) (*models.PickupRequest, error) {
	p, err := c.get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case p.CustomerID == viewer.ID, viewer.Role.IsAdmin():
		return p, nil
	case viewer.Role == models.RoleDriver && inDriverPool(p, viewer):
		return p, nil
	}
	return nil, ErrForbidden
}

// inDriverPool reports whether the request fans out to a room the driver is in
func inDriverPool(p *models.PickupRequest, driver models.Principal) bool {
	return p.OrgID == nil || *p.OrgID == driver.OrgID
}

// ListPending returns the claimable requests a driver may see, newest first
func (c *Coordinator) ListPending(ctx context.Context, driver models.Principal) ([]models.PickupRequest, error) {
	return c.store.ListClaimable(ctx, c.clock.Now(), driver.OrgID, c.cfg.PageSize)
}

// ListMine returns a customer's own requests, newest first
func (c *Coordinator) ListMine(ctx context.Context, customer models.Principal) ([]models.PickupRequest, error) {
	return c.store.ListByCustomer(ctx, customer.ID, c.cfg.HistorySize)
}

// Now is the coordinator's notion of current time, used to render payloads
func (c *Coordinator) Now() time.Time {
	return c.clock.Now()
}

func (c *Coordinator) get(ctx context.Context, id string) (*models.PickupRequest, error) {
	p, err := c.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return p, err
}

// emit publishes best effort. Failures are logged and never reach the caller.
func (c *Coordinator) emit(ctx context.Context, room, event string, payload any) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Publish(ctx, room, event, payload); err != nil {
		c.log.WarnContext(ctx, "publish failed",
			slog.String("room", room),
			slog.String("event", event),
			slog.Any("error", err),
		)
	}
}
