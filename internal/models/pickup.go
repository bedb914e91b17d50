package models

import (
	"time"
)

// PickupStatus is the lifecycle state of a pickup request
type PickupStatus string

const (
	PickupStatusPending   PickupStatus = "PENDING"
	PickupStatusAssigned  PickupStatus = "ASSIGNED"
	PickupStatusRejected  PickupStatus = "REJECTED"
	PickupStatusCancelled PickupStatus = "CANCELLED"
	PickupStatusExpired   PickupStatus = "EXPIRED"
	PickupStatusCompleted PickupStatus = "COMPLETED"
)

// WasteCategory is copied from the upstream waste classification
type WasteCategory string

const (
	WasteCategoryRecyclable    WasteCategory = "recyclable"
	WasteCategoryNonRecyclable WasteCategory = "non-recyclable"
	WasteCategoryBoth          WasteCategory = "both"
)

// WasteLevel describes how hard the pickup is expected to be
type WasteLevel string

const (
	WasteLevelEasy   WasteLevel = "easy"
	WasteLevelMedium WasteLevel = "medium"
	WasteLevelHard   WasteLevel = "hard"
)

// DefaultPickupTTL is how long a request stays claimable after creation
const DefaultPickupTTL = 10 * time.Minute

// pickupTransitions is the pickup state machine. Statuses missing from the map are terminal.
var pickupTransitions = map[PickupStatus][]PickupStatus{
	PickupStatusPending:  {PickupStatusAssigned, PickupStatusCancelled, PickupStatusExpired, PickupStatusRejected},
	PickupStatusAssigned: {PickupStatusCancelled, PickupStatusCompleted},
}

// CanTransition reports whether from -> to is a legal pickup transition
func CanTransition(from, to PickupStatus) bool {
	for _, s := range pickupTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition can leave this status
func (s PickupStatus) IsTerminal() bool {
	_, ok := pickupTransitions[s]
	return !ok
}

func (s PickupStatus) Valid() bool {
	switch s {
	case PickupStatusPending, PickupStatusAssigned, PickupStatusRejected,
		PickupStatusCancelled, PickupStatusExpired, PickupStatusCompleted:
		return true
	}
	return false
}

func (c WasteCategory) Valid() bool {
	switch c {
	case WasteCategoryRecyclable, WasteCategoryNonRecyclable, WasteCategoryBoth:
		return true
	}
	return false
}

func (l WasteLevel) Valid() bool {
	switch l {
	case WasteLevelEasy, WasteLevelMedium, WasteLevelHard:
		return true
	}
	return false
}

// Location is where the customer wants the waste collected
type Location struct {
	Latitude  float64 `json:"latitude" gorm:"column:latitude;not null"`
	Longitude float64 `json:"longitude" gorm:"column:longitude;not null"`
	Address   *string `json:"address" gorm:"column:address"`
}

// DriverInfo is the driver snapshot captured when a request is claimed
type DriverInfo struct {
	Name         string `json:"name" gorm:"column:name"`
	Phone        string `json:"phone" gorm:"column:phone"`
	VehicleID    string `json:"vehicleId" gorm:"column:vehicle_id"`
	LicensePlate string `json:"licensePlate" gorm:"column:license_plate"`
}

// PickupRequest represents a customer's ad-hoc waste pickup request
type PickupRequest struct {
	ID         string        `gorm:"primaryKey;type:varchar(36)"`
	CustomerID string        `gorm:"type:varchar(64);not null;index"`
	OrgID      *string       `gorm:"type:varchar(64);index"`
	UploadRef  *string       `gorm:"type:varchar(255)"`
	Location   Location      `gorm:"embedded"`
	Category   WasteCategory `gorm:"type:varchar(20);not null;default:'non-recyclable'"`
	Level      WasteLevel    `gorm:"type:varchar(10);not null;default:'easy'"`
	Status     PickupStatus  `gorm:"type:varchar(12);not null;default:'PENDING';index:idx_pickup_status_expires,priority:1"`
	DriverID   *string       `gorm:"type:varchar(64)"`
	DriverInfo DriverInfo    `gorm:"embedded;embeddedPrefix:driver_"`
	AssignedAt *time.Time
	ExpiresAt  time.Time `gorm:"not null;index:idx_pickup_status_expires,priority:2"`
	CreatedAt  time.Time `gorm:"not null;index"`
	UpdatedAt  time.Time
}

// TableName specifies the table name
func (PickupRequest) TableName() string {
	return "pickup_requests"
}

// IsClaimable reports whether a driver may still accept the request at now.
// A PENDING request past its expiry counts as expired even before any EXPIRED write.
func (p *PickupRequest) IsClaimable(now time.Time) bool {
	return p.Status == PickupStatusPending && now.Before(p.ExpiresAt)
}

// EffectiveStatus folds lazy expiry into the stored status
func (p *PickupRequest) EffectiveStatus(now time.Time) PickupStatus {
	if p.Status == PickupStatusPending && !now.Before(p.ExpiresAt) {
		return PickupStatusExpired
	}
	return p.Status
}

// PickupPayload is the wire snapshot of a pickup used by the REST API and the
// real-time channel.
type PickupPayload struct {
	ID         string        `json:"id"`
	CustomerID string        `json:"customerId"`
	OrgID      *string       `json:"orgId,omitempty"`
	UploadRef  *string       `json:"uploadRef,omitempty"`
	Location   Location      `json:"location"`
	Category   WasteCategory `json:"category"`
	Level      WasteLevel    `json:"level"`
	Status     PickupStatus  `json:"status"`
	DriverID   *string       `json:"driverId,omitempty"`
	DriverInfo *DriverInfo   `json:"driverInfo,omitempty"`
	AssignedAt *time.Time    `json:"assignedAt,omitempty"`
	ExpiresAt  time.Time     `json:"expiresAt"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// Payload builds the wire snapshot. Status reflects lazy expiry as of now.
func (p *PickupRequest) Payload(now time.Time) PickupPayload {
	out := PickupPayload{
		ID:         p.ID,
		CustomerID: p.CustomerID,
		OrgID:      p.OrgID,
		UploadRef:  p.UploadRef,
		Location:   p.Location,
		Category:   p.Category,
		Level:      p.Level,
		Status:     p.EffectiveStatus(now),
		DriverID:   p.DriverID,
		AssignedAt: p.AssignedAt,
		ExpiresAt:  p.ExpiresAt,
		CreatedAt:  p.CreatedAt,
	}
	if p.DriverID != nil {
		info := p.DriverInfo
		out.DriverInfo = &info
	}
	return out
}
