package models

import "time"

// BookingInput carries the farmer-supplied booking details.
type BookingInput struct {
	VehicleID    string    `json:"vehicleId" validate:"required"`
	ProductName  string    `json:"productName" validate:"required,max=200"`
	Quantity     float64   `json:"quantity" validate:"gt=0"`
	Source       string    `json:"source" validate:"required,max=200"`
	Destination  string    `json:"destination" validate:"required,max=200"`
	DeliveryDate time.Time `json:"deliveryDate" validate:"required"`
}

// VehicleInput carries the provider-supplied vehicle details.
type VehicleInput struct {
	VehicleType        string  `json:"vehicleType" validate:"max=50"`
	Brand              string  `json:"brand" validate:"max=50"`
	Model              string  `json:"model" validate:"required,max=100"`
	RegistrationNumber string  `json:"registrationNumber" validate:"required,max=50"`
	Capacity           float64 `json:"capacity" validate:"gt=0"`
	Year               int     `json:"year" validate:"omitempty,gte=1950,lte=2100"`
	FuelType           string  `json:"fuelType" validate:"max=30"`
	RatePerKm          float64 `json:"ratePerKm" validate:"gte=0"`
	BaseLocation       string  `json:"baseLocation" validate:"required,max=200"`
	Description        string  `json:"description" validate:"max=2000"`
}
