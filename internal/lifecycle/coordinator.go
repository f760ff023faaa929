// Package lifecycle coordinates booking and vehicle status changes. Every
// mutation runs inside one store transaction: the booking write and its
// vehicle side effect commit together or not at all.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agrologix/agrologix-backend/internal/config"
	"github.com/agrologix/agrologix-backend/internal/models"
	"github.com/agrologix/agrologix-backend/internal/services"
	"github.com/agrologix/agrologix-backend/internal/store"
	"github.com/agrologix/agrologix-backend/internal/transition"
)

// SiblingPolicy decides what happens to the other Pending bookings on a
// vehicle when one of them is accepted.
type SiblingPolicy string

const (
	// KeepSiblings leaves them Pending. They cannot be accepted while the
	// vehicle is Booked, but the provider may still reject them.
	KeepSiblings SiblingPolicy = config.SiblingPolicyKeep
	// AutoRejectSiblings rejects them in the accepting transaction.
	AutoRejectSiblings SiblingPolicy = config.SiblingPolicyAutoReject
)

const publishTimeout = 5 * time.Second

type Coordinator struct {
	store  store.Store
	events services.Publisher
	log    *zap.Logger
	policy SiblingPolicy
	now    func() time.Time
}

type Option func(*Coordinator)

func WithSiblingPolicy(p SiblingPolicy) Option {
	return func(c *Coordinator) { c.policy = p }
}

// WithClock overrides the clock used for delivery date checks.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func New(st store.Store, events services.Publisher, log *zap.Logger, opts ...Option) *Coordinator {
	if events == nil {
		events = services.NopPublisher{}
	}
	c := &Coordinator{
		store:  st,
		events: events,
		log:    log,
		policy: KeepSiblings,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateBooking opens a Pending booking on an Available vehicle. The vehicle
// status is re-read under lock at commit time and left unchanged.
func (c *Coordinator) CreateBooking(ctx context.Context, farmerID string, in models.BookingInput) (*models.Booking, error) {
	in.VehicleID = strings.TrimSpace(in.VehicleID)
	in.ProductName = strings.TrimSpace(in.ProductName)
	in.Source = strings.TrimSpace(in.Source)
	in.Destination = strings.TrimSpace(in.Destination)
	if err := transition.ValidateBookingInput(in, c.now()); err != nil {
		return nil, err
	}

	var created *models.Booking
	err := c.store.Transaction(ctx, func(tx store.Tx) error {
		v, err := tx.LockVehicle(in.VehicleID)
		if err != nil {
			return err
		}
		if err := transition.ValidateCreate(v, models.UserTypeFarmer); err != nil {
			return err
		}

		b := &models.Booking{
			FarmerID:     farmerID,
			ProviderID:   v.ProviderID,
			VehicleID:    v.ID,
			VehicleModel: v.Model,
			ProductName:  in.ProductName,
			Quantity:     in.Quantity,
			Source:       in.Source,
			Destination:  in.Destination,
			DeliveryDate: transition.CalendarDay(in.DeliveryDate),
			Status:       models.BookingStatusPending,
		}
		if err := tx.CreateBooking(b); err != nil {
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("booking created",
		zap.String("booking_id", created.ID),
		zap.String("farmer_id", farmerID),
		zap.String("vehicle_id", created.VehicleID))
	c.publish(ctx, services.ChangeEvent{
		Kind:       services.BookingCreated,
		BookingID:  created.ID,
		VehicleID:  created.VehicleID,
		FarmerID:   created.FarmerID,
		ProviderID: created.ProviderID,
		Status:     string(created.Status),
	})

	return c.reloadBooking(ctx, created), nil
}

// ApplyTransition moves a booking to target on behalf of actorID. Vehicle and
// booking are locked, in that order, and re-validated inside the transaction,
// so of two concurrent accepts exactly one wins and the other gets
// ErrInvalidTransition.
func (c *Coordinator) ApplyTransition(ctx context.Context, bookingID string, target models.BookingStatus, actorID string, role models.UserType) (*models.Booking, error) {
	var (
		updated  *models.Booking
		edge     transition.Edge
		siblings []models.Booking
	)
	err := c.store.Transaction(ctx, func(tx store.Tx) error {
		seen, err := tx.FindBooking(bookingID)
		if err != nil {
			return err
		}
		v, err := tx.LockVehicle(seen.VehicleID)
		if errors.Is(err, models.ErrNotFound) {
			// Deleted vehicle: only its terminal bookings remain, and the
			// validator rejects every edge out of them.
			v = &models.Vehicle{ID: seen.VehicleID, ProviderID: seen.ProviderID}
		} else if err != nil {
			return err
		}
		b, err := tx.LockBooking(bookingID)
		if err != nil {
			return err
		}
		if b.VehicleID != seen.VehicleID {
			return fmt.Errorf("%w: booking %s changed vehicle", models.ErrInvalidTransition, bookingID)
		}

		edge, err = transition.ValidateBooking(b, v, target, actorID, role)
		if err != nil {
			return err
		}
		if err := tx.UpdateBookingStatus(b.ID, edge.From, edge.To); err != nil {
			return err
		}
		if edge.VehicleBecomes != "" {
			if err := tx.UpdateVehicleStatus(v.ID, v.Status, edge.VehicleBecomes); err != nil {
				return err
			}
		}

		if edge.To == models.BookingStatusAccepted && c.policy == AutoRejectSiblings {
			siblings, err = rejectPending(tx, v.ID, b.ID)
			if err != nil {
				return err
			}
		}

		b.Status = edge.To
		updated = b
		return nil
	})
	if err != nil {
		c.log.Debug("transition refused",
			zap.String("booking_id", bookingID),
			zap.String("target", string(target)),
			zap.String("actor_id", actorID),
			zap.Error(err))
		return nil, err
	}

	c.log.Info("booking transitioned",
		zap.String("booking_id", updated.ID),
		zap.String("from", string(edge.From)),
		zap.String("to", string(edge.To)),
		zap.String("actor_id", actorID),
		zap.Int("siblings_rejected", len(siblings)))

	c.publish(ctx, services.ChangeEvent{
		Kind:          services.BookingTransitioned,
		BookingID:     updated.ID,
		VehicleID:     updated.VehicleID,
		FarmerID:      updated.FarmerID,
		ProviderID:    updated.ProviderID,
		Status:        string(edge.To),
		VehicleStatus: string(edge.VehicleBecomes),
	})
	c.publishRejected(ctx, siblings)

	return c.reloadBooking(ctx, updated), nil
}

// GetBooking returns a booking to either of its parties.
func (c *Coordinator) GetBooking(ctx context.Context, bookingID, actorID string) (*models.Booking, error) {
	b, err := c.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.FarmerID != actorID && b.ProviderID != actorID {
		return nil, fmt.Errorf("%w: booking %s", models.ErrNotAuthorized, bookingID)
	}
	return b, nil
}

// ListBookingsByFarmer returns the farmer's bookings, newest first. Passing
// statuses narrows the result, e.g. to terminal ones for a history view.
func (c *Coordinator) ListBookingsByFarmer(ctx context.Context, farmerID string, statuses ...models.BookingStatus) ([]models.Booking, error) {
	return c.store.QueryBookings(ctx, store.BookingFilter{FarmerID: farmerID, Statuses: statuses})
}

func (c *Coordinator) ListBookingsByProvider(ctx context.Context, providerID string, statuses ...models.BookingStatus) ([]models.Booking, error) {
	return c.store.QueryBookings(ctx, store.BookingFilter{ProviderID: providerID, Statuses: statuses})
}

func (c *Coordinator) CreateVehicle(ctx context.Context, providerID string, in models.VehicleInput) (*models.Vehicle, error) {
	in.Model = strings.TrimSpace(in.Model)
	in.RegistrationNumber = strings.ToUpper(strings.TrimSpace(in.RegistrationNumber))
	in.BaseLocation = strings.TrimSpace(in.BaseLocation)
	if err := transition.ValidateVehicleInput(in); err != nil {
		return nil, err
	}

	v := &models.Vehicle{
		ProviderID:         providerID,
		VehicleType:        in.VehicleType,
		Brand:              in.Brand,
		Model:              in.Model,
		RegistrationNumber: in.RegistrationNumber,
		Capacity:           in.Capacity,
		Year:               in.Year,
		FuelType:           in.FuelType,
		RatePerKm:          in.RatePerKm,
		BaseLocation:       in.BaseLocation,
		Description:        in.Description,
		Status:             models.VehicleStatusAvailable,
	}
	if err := c.store.PutVehicle(ctx, v); err != nil {
		return nil, err
	}

	c.log.Info("vehicle created", zap.String("vehicle_id", v.ID), zap.String("provider_id", providerID))
	c.publish(ctx, services.ChangeEvent{
		Kind:          services.VehicleCreated,
		VehicleID:     v.ID,
		ProviderID:    providerID,
		VehicleStatus: string(v.Status),
	})
	return v, nil
}

func (c *Coordinator) ListVehiclesByProvider(ctx context.Context, providerID string) ([]models.Vehicle, error) {
	return c.store.QueryVehicles(ctx, store.VehicleFilter{ProviderID: providerID})
}

func (c *Coordinator) ListAvailableVehicles(ctx context.Context) ([]models.Vehicle, error) {
	return c.store.QueryVehicles(ctx, store.VehicleFilter{
		Statuses: []models.VehicleStatus{models.VehicleStatusAvailable},
	})
}

// SetVehicleMaintenance toggles a vehicle between Available and Maintenance.
// Booked vehicles cannot be toggled.
func (c *Coordinator) SetVehicleMaintenance(ctx context.Context, vehicleID, providerID string, inMaintenance bool) (*models.Vehicle, error) {
	var updated *models.Vehicle
	err := c.store.Transaction(ctx, func(tx store.Tx) error {
		v, err := tx.LockVehicle(vehicleID)
		if err != nil {
			return err
		}
		next, err := transition.ValidateVehicleToggle(v, providerID, inMaintenance)
		if err != nil {
			return err
		}
		if err := tx.UpdateVehicleStatus(v.ID, v.Status, next); err != nil {
			return err
		}
		v.Status = next
		updated = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("vehicle status changed",
		zap.String("vehicle_id", vehicleID),
		zap.String("status", string(updated.Status)))
	c.publish(ctx, services.ChangeEvent{
		Kind:          services.VehicleStatusChanged,
		VehicleID:     updated.ID,
		ProviderID:    updated.ProviderID,
		VehicleStatus: string(updated.Status),
	})

	if fresh, err := c.store.GetVehicle(ctx, updated.ID); err == nil {
		return fresh, nil
	}
	return updated, nil
}

// DeleteVehicle soft-deletes a vehicle that is not Booked. Its Pending
// bookings are rejected in the same transaction.
func (c *Coordinator) DeleteVehicle(ctx context.Context, vehicleID, providerID string) error {
	var rejected []models.Booking
	err := c.store.Transaction(ctx, func(tx store.Tx) error {
		v, err := tx.LockVehicle(vehicleID)
		if err != nil {
			return err
		}
		if err := transition.ValidateVehicleDelete(v, providerID); err != nil {
			return err
		}
		rejected, err = rejectPending(tx, v.ID, "")
		if err != nil {
			return err
		}
		return tx.SoftDeleteVehicle(v.ID)
	})
	if err != nil {
		return err
	}

	c.log.Info("vehicle deleted",
		zap.String("vehicle_id", vehicleID),
		zap.Int("bookings_rejected", len(rejected)))
	c.publish(ctx, services.ChangeEvent{
		Kind:       services.VehicleDeleted,
		VehicleID:  vehicleID,
		ProviderID: providerID,
	})
	c.publishRejected(ctx, rejected)
	return nil
}

// rejectPending moves every Pending booking on vehicleID except exceptID to
// Rejected and returns them with their new status.
func rejectPending(tx store.Tx, vehicleID, exceptID string) ([]models.Booking, error) {
	pending, err := tx.QueryBookings(store.BookingFilter{
		VehicleID: vehicleID,
		ExcludeID: exceptID,
		Statuses:  []models.BookingStatus{models.BookingStatusPending},
	})
	if err != nil {
		return nil, err
	}
	for i := range pending {
		if err := tx.UpdateBookingStatus(pending[i].ID, models.BookingStatusPending, models.BookingStatusRejected); err != nil {
			return nil, err
		}
		pending[i].Status = models.BookingStatusRejected
	}
	return pending, nil
}

func (c *Coordinator) publishRejected(ctx context.Context, bookings []models.Booking) {
	for _, b := range bookings {
		c.publish(ctx, services.ChangeEvent{
			Kind:       services.BookingTransitioned,
			BookingID:  b.ID,
			VehicleID:  b.VehicleID,
			FarmerID:   b.FarmerID,
			ProviderID: b.ProviderID,
			Status:     string(b.Status),
		})
	}
}

// publish runs after commit. A failure only delays other clients until their
// next poll, so it is logged and swallowed.
func (c *Coordinator) publish(ctx context.Context, ev services.ChangeEvent) {
	ev.At = time.Now().UTC()
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := c.events.Publish(pctx, ev); err != nil {
		c.log.Warn("change event publish failed",
			zap.String("kind", string(ev.Kind)),
			zap.String("key", ev.Key()),
			zap.Error(err))
	}
}

// reloadBooking re-reads b to attach display snapshots. The write already
// committed, so a failed read falls back to what the transaction saw.
func (c *Coordinator) reloadBooking(ctx context.Context, b *models.Booking) *models.Booking {
	fresh, err := c.store.GetBooking(ctx, b.ID)
	if err != nil {
		c.log.Warn("reload booking after commit", zap.String("booking_id", b.ID), zap.Error(err))
		return b
	}
	return fresh
}
