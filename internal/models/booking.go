package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "Pending"
	BookingStatusAccepted  BookingStatus = "Accepted"
	BookingStatusRejected  BookingStatus = "Rejected"
	BookingStatusCancelled BookingStatus = "Cancelled"
	BookingStatusDelivered BookingStatus = "Delivered"
)

// BookingStatuses lists every status a booking can hold.
var BookingStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusAccepted,
	BookingStatusRejected,
	BookingStatusCancelled,
	BookingStatusDelivered,
}

// Valid reports whether s is one of the known booking statuses.
func (s BookingStatus) Valid() bool {
	for _, known := range BookingStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Active reports whether a booking in this status still holds a claim on its vehicle.
func (s BookingStatus) Active() bool {
	return s == BookingStatusPending || s == BookingStatusAccepted
}

// ParseBookingStatus converts an untrusted string into a BookingStatus.
func ParseBookingStatus(raw string) (BookingStatus, bool) {
	s := BookingStatus(raw)
	return s, s.Valid()
}

// Booking is a farmer's request to haul produce with a provider's vehicle.
// Farmer, provider and vehicle are weak references by id.
type Booking struct {
	ID           string        `json:"id" gorm:"type:varchar(36);primaryKey"`
	FarmerID     string        `json:"farmerId" gorm:"type:varchar(36);not null;index"`
	ProviderID   string        `json:"providerId" gorm:"type:varchar(36);not null;index"`
	VehicleID    string        `json:"vehicleId" gorm:"type:varchar(36);not null;index"`
	VehicleModel string        `json:"vehicleModel"`
	ProductName  string        `json:"productName" gorm:"not null"`
	Quantity     float64       `json:"quantity" gorm:"not null"`
	Source       string        `json:"source" gorm:"not null"`
	Destination  string        `json:"destination" gorm:"not null"`
	DeliveryDate time.Time     `json:"deliveryDate" gorm:"not null"`
	Status       BookingStatus `json:"status" gorm:"type:varchar(16);not null;default:'Pending';index"`
	CreatedAt    time.Time     `json:"createdAt" gorm:"<-:create"`
	UpdatedAt    time.Time     `json:"updatedAt"`

	// Display snapshots, read-only.
	Farmer   *User `json:"farmer,omitempty" gorm:"foreignKey:FarmerID"`
	Provider *User `json:"provider,omitempty" gorm:"foreignKey:ProviderID"`
}

// TableName specifies the table name
func (Booking) TableName() string {
	return "bookings"
}

// BeforeCreate assigns the server-side id.
func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}
