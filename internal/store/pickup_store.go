package store

import (
	"context"
	"time"

	"github.com/chachabrian/wastepickup-backend/internal/models"
	"github.com/cockroachdb/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound         = errors.New("pickup request not found")
	ErrDriverNotFound   = errors.New("driver profile not found")
	ErrStoreUnavailable = errors.New("pickup store unavailable")
)

// PickupStore is the durable record of pickup requests. Every state change is a
// single conditional UPDATE ... RETURNING guarded on the current status: a
// non-nil row means this caller made the change, nil means the guard did not match.
type PickupStore struct {
	db *gorm.DB
}

func NewPickupStore(db *gorm.DB) *PickupStore {
	return &PickupStore{db: db}
}

func (s *PickupStore) Create(ctx context.Context, p *models.PickupRequest) error {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return unavailable(err, "insert pickup request")
	}
	return nil
}

func (s *PickupStore) Get(ctx context.Context, id string) (*models.PickupRequest, error) {
	var p models.PickupRequest
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable(err, "load pickup request")
	}
	return &p, nil
}

// ListClaimable returns live PENDING requests newest first that a driver of
// orgID may claim: unscoped requests plus, for a non-empty orgID, that org's.
func (s *PickupStore) ListClaimable(ctx context.Context, now time.Time, orgID string, limit int) ([]models.PickupRequest, error) {
	q := s.db.WithContext(ctx).
		Where("status = ? AND expires_at > ?", models.PickupStatusPending, now).
		Where(s.orgScope(orgID))

	var out []models.PickupRequest
	if err := q.Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, unavailable(err, "list claimable pickups")
	}
	return out, nil
}

func (s *PickupStore) ListByCustomer(ctx context.Context, customerID string, limit int) ([]models.PickupRequest, error) {
	var out []models.PickupRequest
	err := s.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, unavailable(err, "list customer pickups")
	}
	return out, nil
}

// Claim is the only path to ASSIGNED: it flips a live PENDING row visible to
// driverOrg in one statement and returns the assigned row, or nil when this
// caller did not win.
func (s *PickupStore) Claim(ctx context.Context, id, driverID, driverOrg string, info models.DriverInfo, now time.Time) (*models.PickupRequest, error) {
	return s.update(ctx, "claim pickup",
		s.db.Where("id = ? AND status = ? AND expires_at > ?", id, models.PickupStatusPending, now).
			Where(s.orgScope(driverOrg)),
		map[string]any{
			"status":               models.PickupStatusAssigned,
			"driver_id":            driverID,
			"driver_name":          info.Name,
			"driver_phone":         info.Phone,
			"driver_vehicle_id":    info.VehicleID,
			"driver_license_plate": info.LicensePlate,
			"assigned_at":          now,
			"updated_at":           now,
		})
}

// Cancel flips an ASSIGNED row, or a PENDING row that has not lapsed, to CANCELLED
func (s *PickupStore) Cancel(ctx context.Context, id string, now time.Time) (*models.PickupRequest, error) {
	return s.update(ctx, "cancel pickup",
		s.db.Where("id = ?", id).
			Where(s.db.Where("status = ?", models.PickupStatusAssigned).
				Or("status = ? AND expires_at > ?", models.PickupStatusPending, now)),
		map[string]any{
			"status":     models.PickupStatusCancelled,
			"updated_at": now,
		})
}

// Complete flips an ASSIGNED row held by driverID to COMPLETED
func (s *PickupStore) Complete(ctx context.Context, id, driverID string, now time.Time) (*models.PickupRequest, error) {
	return s.update(ctx, "complete pickup",
		s.db.Where("id = ? AND status = ? AND driver_id = ?", id, models.PickupStatusAssigned, driverID),
		map[string]any{
			"status":     models.PickupStatusCompleted,
			"updated_at": now,
		})
}

// Reject flips a live PENDING row to REJECTED
func (s *PickupStore) Reject(ctx context.Context, id string, now time.Time) (*models.PickupRequest, error) {
	return s.update(ctx, "reject pickup",
		s.db.Where("id = ? AND status = ? AND expires_at > ?", id, models.PickupStatusPending, now),
		map[string]any{
			"status":     models.PickupStatusRejected,
			"updated_at": now,
		})
}

// ExpireStale writes EXPIRED on up to limit lapsed PENDING rows and returns the
// rows this call actually flipped. A row claimed or cancelled in between is skipped.
func (s *PickupStore) ExpireStale(ctx context.Context, now time.Time, limit int) ([]models.PickupRequest, error) {
	var candidates []models.PickupRequest
	err := s.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", models.PickupStatusPending, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&candidates).Error
	if err != nil {
		return nil, unavailable(err, "list stale pickups")
	}

	expired := make([]models.PickupRequest, 0, len(candidates))
	for _, c := range candidates {
		p, err := s.update(ctx, "expire pickup",
			s.db.Where("id = ? AND status = ? AND expires_at <= ?", c.ID, models.PickupStatusPending, now),
			map[string]any{
				"status":     models.PickupStatusExpired,
				"updated_at": now,
			})
		if err != nil {
			return expired, err
		}
		if p != nil {
			expired = append(expired, *p)
		}
	}
	return expired, nil
}

// update applies values to the row matching cond and returns it as written
func (s *PickupStore) update(ctx context.Context, op string, cond *gorm.DB, values map[string]any) (*models.PickupRequest, error) {
	var p models.PickupRequest
	res := s.db.WithContext(ctx).
		Model(&p).
		Clauses(clause.Returning{}).
		Where(cond).
		Updates(values)
	if res.Error != nil {
		return nil, unavailable(res.Error, op)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &p, nil
}

// orgScope matches requests a driver of orgID may see: unscoped ones, plus the
// org's own when orgID is set
func (s *PickupStore) orgScope(orgID string) *gorm.DB {
	if orgID == "" {
		return s.db.Where("org_id IS NULL")
	}
	return s.db.Where("org_id IS NULL OR org_id = ?", orgID)
}

func unavailable(err error, op string) error {
	return errors.Mark(errors.Wrap(err, op), ErrStoreUnavailable)
}
