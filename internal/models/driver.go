package models

import (
	"time"
)

// Driver is the driver profile maintained by fleet administration.
// Dispatch only reads it to build the claim snapshot.
type Driver struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	UserID          string    `json:"userId" gorm:"type:varchar(64);not null;uniqueIndex"`
	Name            string    `json:"name" gorm:"not null"`
	Phone           string    `json:"phone"`
	OrgID           *string   `json:"orgId,omitempty" gorm:"type:varchar(64);index"`
	AssignedTruckID *uint     `json:"assignedTruckId,omitempty"`
	AssignedTruck   *Truck    `json:"assignedTruck,omitempty" gorm:"foreignKey:AssignedTruckID"`
	IsAvailable     bool      `json:"isAvailable" gorm:"not null;default:true"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// TableName specifies the table name
func (Driver) TableName() string {
	return "drivers"
}

// Truck is a collection vehicle
type Truck struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	TruckType    string    `json:"truckType" gorm:"not null"` // BIO, NON_BIO
	LicensePlate string    `json:"licensePlate" gorm:"not null"`
	OrgID        string    `json:"orgId" gorm:"type:varchar(64);not null"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName specifies the table name
func (Truck) TableName() string {
	return "trucks"
}

// Snapshot captures the denormalised driver info stored on a claimed pickup
func (d *Driver) Snapshot() DriverInfo {
	info := DriverInfo{Name: d.Name, Phone: d.Phone}
	if d.AssignedTruck != nil {
		info.VehicleID = d.AssignedTruck.TruckType
		info.LicensePlate = d.AssignedTruck.LicensePlate
	}
	return info
}
