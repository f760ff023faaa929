package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VehicleStatus string

const (
	VehicleStatusAvailable   VehicleStatus = "Available"
	VehicleStatusBooked      VehicleStatus = "Booked"
	VehicleStatusMaintenance VehicleStatus = "Maintenance"
)

// VehicleStatuses lists every status a vehicle can hold.
var VehicleStatuses = []VehicleStatus{
	VehicleStatusAvailable,
	VehicleStatusBooked,
	VehicleStatusMaintenance,
}

func (s VehicleStatus) Valid() bool {
	for _, known := range VehicleStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Vehicle is a transport asset exclusively owned by one provider.
type Vehicle struct {
	ID                 string         `json:"id" gorm:"type:varchar(36);primaryKey"`
	ProviderID         string         `json:"providerId" gorm:"type:varchar(36);not null;index"`
	VehicleType        string         `json:"vehicleType"`
	Brand              string         `json:"brand"`
	Model              string         `json:"model" gorm:"not null"`
	RegistrationNumber string         `json:"registrationNumber" gorm:"not null"`
	Capacity           float64        `json:"capacity" gorm:"not null"` // in tons
	Year               int            `json:"year,omitempty"`
	FuelType           string         `json:"fuelType,omitempty"`
	RatePerKm          float64        `json:"ratePerKm"`
	BaseLocation       string         `json:"baseLocation" gorm:"not null"`
	Description        string         `json:"description,omitempty"`
	Status             VehicleStatus  `json:"status" gorm:"type:varchar(16);not null;default:'Available';index"`
	CreatedAt          time.Time      `json:"createdAt" gorm:"<-:create"`
	UpdatedAt          time.Time      `json:"updatedAt"`
	DeletedAt          gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName specifies the table name
func (Vehicle) TableName() string {
	return "vehicles"
}

func (v *Vehicle) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}
