package services

import (
	"context"
	"errors"
	"time"
)

type ChangeKind string

const (
	BookingCreated       ChangeKind = "booking_created"
	BookingTransitioned  ChangeKind = "booking_transitioned"
	VehicleCreated       ChangeKind = "vehicle_created"
	VehicleStatusChanged ChangeKind = "vehicle_status_changed"
	VehicleDeleted       ChangeKind = "vehicle_deleted"
)

// ChangeEvent announces a committed mutation. Receivers treat it as a hint
// to re-read state, never as state to merge.
type ChangeEvent struct {
	Kind       ChangeKind `json:"kind"`
	BookingID  string     `json:"bookingId,omitempty"`
	VehicleID  string     `json:"vehicleId,omitempty"`
	FarmerID   string     `json:"farmerId,omitempty"`
	ProviderID string     `json:"providerId,omitempty"`
	Status     string     `json:"status,omitempty"`
	// VehicleStatus is set when the vehicle's availability changed, which
	// matters to every farmer browsing available vehicles.
	VehicleStatus string    `json:"vehicleStatus,omitempty"`
	At            time.Time `json:"at"`
}

// AffectsAvailability reports whether the set of bookable vehicles may have
// changed.
func (e ChangeEvent) AffectsAvailability() bool {
	switch e.Kind {
	case VehicleCreated, VehicleDeleted:
		return true
	}
	return e.VehicleStatus != ""
}

// Key partitions events by the entity they are about.
func (e ChangeEvent) Key() string {
	if e.BookingID != "" {
		return e.BookingID
	}
	return e.VehicleID
}

type Publisher interface {
	Publish(ctx context.Context, ev ChangeEvent) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ChangeEvent) error { return nil }
func (NopPublisher) Close() error                               { return nil }

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev ChangeEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
