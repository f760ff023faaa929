// Package transition holds the pure rules deciding whether a booking or vehicle
// status change is legal. Nothing here touches storage; callers pass in the
// state they just read inside their transaction.
package transition

import (
	"fmt"

	"github.com/agrologix/agrologix-backend/internal/models"
)

// Edge is one legal booking status change.
type Edge struct {
	From  models.BookingStatus
	To    models.BookingStatus
	Actor models.UserType
	// VehicleRequires is the vehicle status that must hold at commit time.
	// Empty means no precondition on the vehicle.
	VehicleRequires models.VehicleStatus
	// VehicleBecomes is the vehicle status written together with the booking.
	// Empty means the vehicle is left untouched.
	VehicleBecomes models.VehicleStatus
}

// BookingEdges is the booking state graph. Creation (none -> Pending) is not
// an edge here; it is checked by ValidateCreate.
var BookingEdges = []Edge{
	{
		From:            models.BookingStatusPending,
		To:              models.BookingStatusAccepted,
		Actor:           models.UserTypeProvider,
		VehicleRequires: models.VehicleStatusAvailable,
		VehicleBecomes:  models.VehicleStatusBooked,
	},
	{
		From:  models.BookingStatusPending,
		To:    models.BookingStatusRejected,
		Actor: models.UserTypeProvider,
	},
	{
		From:  models.BookingStatusPending,
		To:    models.BookingStatusCancelled,
		Actor: models.UserTypeFarmer,
	},
	{
		From:            models.BookingStatusAccepted,
		To:              models.BookingStatusDelivered,
		Actor:           models.UserTypeProvider,
		VehicleRequires: models.VehicleStatusBooked,
		VehicleBecomes:  models.VehicleStatusAvailable,
	},
}

// VehicleEdges lists the status changes a provider may request directly.
// Booked is reachable only as a booking side effect.
var VehicleEdges = map[models.VehicleStatus][]models.VehicleStatus{
	models.VehicleStatusAvailable:   {models.VehicleStatusMaintenance},
	models.VehicleStatusMaintenance: {models.VehicleStatusAvailable},
}

// VehicleEffect returns the vehicle status a booking edge writes, or "" when
// the edge leaves the vehicle alone.
func VehicleEffect(from, to models.BookingStatus) models.VehicleStatus {
	for _, e := range BookingEdges {
		if e.From == from && e.To == to {
			return e.VehicleBecomes
		}
	}
	return ""
}

// ValidateCreate checks that a farmer may open a Pending booking on v.
func ValidateCreate(v *models.Vehicle, role models.UserType) error {
	if role != models.UserTypeFarmer {
		return fmt.Errorf("%w: only farmers can create bookings", models.ErrNotAuthorized)
	}
	if v.Status != models.VehicleStatusAvailable {
		return fmt.Errorf("%w: vehicle %s is %s", models.ErrVehicleUnavailable, v.ID, v.Status)
	}
	return nil
}

// ValidateBooking decides whether actorID acting as role may move b to target,
// given the vehicle b references. It returns the matched edge so the caller
// can apply the vehicle side effect.
func ValidateBooking(b *models.Booking, v *models.Vehicle, target models.BookingStatus, actorID string, role models.UserType) (Edge, error) {
	if !target.Valid() {
		return Edge{}, fmt.Errorf("%w: unknown status %q", models.ErrInvalidTransition, target)
	}

	var candidates []Edge
	for _, e := range BookingEdges {
		if e.To == target {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return Edge{}, fmt.Errorf("%w: no transition leads to %s", models.ErrInvalidTransition, target)
	}

	roleAllowed := false
	for _, e := range candidates {
		if e.Actor == role {
			roleAllowed = true
			break
		}
	}
	if !roleAllowed {
		return Edge{}, fmt.Errorf("%w: %s cannot move a booking to %s", models.ErrNotAuthorized, role, target)
	}

	if err := checkOwner(b, v, actorID, role); err != nil {
		return Edge{}, err
	}

	for _, e := range candidates {
		if e.Actor != role || e.From != b.Status {
			continue
		}
		if e.VehicleRequires != "" && v.Status != e.VehicleRequires {
			return Edge{}, fmt.Errorf("%w: vehicle %s is %s, want %s",
				models.ErrInvalidTransition, v.ID, v.Status, e.VehicleRequires)
		}
		return e, nil
	}

	return Edge{}, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, b.Status, target)
}

func checkOwner(b *models.Booking, v *models.Vehicle, actorID string, role models.UserType) error {
	switch role {
	case models.UserTypeFarmer:
		if b.FarmerID != actorID {
			return fmt.Errorf("%w: booking %s belongs to another farmer", models.ErrNotAuthorized, b.ID)
		}
	case models.UserTypeProvider:
		if v.ProviderID != actorID {
			return fmt.Errorf("%w: vehicle %s belongs to another provider", models.ErrNotAuthorized, v.ID)
		}
	default:
		return fmt.Errorf("%w: unknown role %q", models.ErrNotAuthorized, role)
	}
	return nil
}

// ValidateVehicleToggle checks a provider's Available <-> Maintenance request
// and returns the status to write.
func ValidateVehicleToggle(v *models.Vehicle, providerID string, inMaintenance bool) (models.VehicleStatus, error) {
	if v.ProviderID != providerID {
		return "", fmt.Errorf("%w: vehicle %s belongs to another provider", models.ErrNotAuthorized, v.ID)
	}

	target := models.VehicleStatusAvailable
	if inMaintenance {
		target = models.VehicleStatusMaintenance
	}
	for _, next := range VehicleEdges[v.Status] {
		if next == target {
			return target, nil
		}
	}
	return "", fmt.Errorf("%w: vehicle %s cannot go from %s to %s",
		models.ErrInvalidTransition, v.ID, v.Status, target)
}

// ValidateVehicleDelete checks that providerID owns v and v is not carrying an
// accepted booking.
func ValidateVehicleDelete(v *models.Vehicle, providerID string) error {
	if v.ProviderID != providerID {
		return fmt.Errorf("%w: vehicle %s belongs to another provider", models.ErrNotAuthorized, v.ID)
	}
	if v.Status == models.VehicleStatusBooked {
		return fmt.Errorf("%w: vehicle %s is booked", models.ErrInvalidTransition, v.ID)
	}
	return nil
}
