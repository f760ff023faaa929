package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/agrologix/agrologix-backend/internal/database"
	"github.com/agrologix/agrologix-backend/internal/models"
)

func newTestStore(t *testing.T) (*GormStore, *gorm.DB) {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return NewGormStore(db), db
}

func seedVehicle(t *testing.T, s *GormStore, providerID string) *models.Vehicle {
	t.Helper()
	v := &models.Vehicle{
		ProviderID:         providerID,
		Model:              "Eicher Pro 2049",
		RegistrationNumber: "MH15XY0001",
		Capacity:           4,
		RatePerKm:          22,
		BaseLocation:       "Nashik",
	}
	require.NoError(t, s.PutVehicle(context.Background(), v))
	return v
}

func seedBooking(t *testing.T, s *GormStore, farmerID string, v *models.Vehicle) *models.Booking {
	t.Helper()
	b := &models.Booking{
		FarmerID:     farmerID,
		ProviderID:   v.ProviderID,
		VehicleID:    v.ID,
		VehicleModel: v.Model,
		ProductName:  "Onions",
		Quantity:     3,
		Source:       "Lasalgaon",
		Destination:  "Mumbai APMC",
		DeliveryDate: time.Now().UTC().AddDate(0, 0, 2),
	}
	require.NoError(t, s.PutBooking(context.Background(), b))
	return b
}

func TestGormStore_PutAndGet(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	v := seedVehicle(t, s, "provider-1")
	require.NotEmpty(t, v.ID)
	assert.Equal(t, models.VehicleStatusAvailable, v.Status)

	b := seedBooking(t, s, "farmer-1", v)
	require.NotEmpty(t, b.ID)

	got, err := s.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusPending, got.Status)
	assert.Equal(t, "Onions", got.ProductName)
	assert.Equal(t, v.ID, got.VehicleID)

	_, err = s.GetBooking(ctx, "missing")
	require.ErrorIs(t, err, models.ErrNotFound)
	_, err = s.GetVehicle(ctx, "missing")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestGormStore_PutNeverChangesStatus(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	v := seedVehicle(t, s, "provider-1")

	v.Status = models.VehicleStatusBooked
	v.BaseLocation = "Pune"
	require.NoError(t, s.PutVehicle(ctx, v))

	got, err := s.GetVehicle(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pune", got.BaseLocation)
	assert.Equal(t, models.VehicleStatusAvailable, got.Status)

	b := seedBooking(t, s, "farmer-1", v)
	b.Status = models.BookingStatusDelivered
	b.Quantity = 7
	require.NoError(t, s.PutBooking(ctx, b))

	gotB, err := s.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 7.0, gotB.Quantity)
	assert.Equal(t, models.BookingStatusPending, gotB.Status)
}

func TestGormStore_QueryBookings(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.User{ID: "farmer-1", Name: "Asha", Email: "asha@example.com", PasswordHash: "x", Phone: "98200", UserType: models.UserTypeFarmer}).Error)

	v1 := seedVehicle(t, s, "provider-1")
	v2 := seedVehicle(t, s, "provider-2")
	first := seedBooking(t, s, "farmer-1", v1)
	time.Sleep(5 * time.Millisecond)
	second := seedBooking(t, s, "farmer-1", v2)
	seedBooking(t, s, "farmer-2", v1)

	mine, err := s.QueryBookings(ctx, BookingFilter{FarmerID: "farmer-1"})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID, "newest first")
	assert.Equal(t, first.ID, mine[1].ID)
	require.NotNil(t, mine[0].Farmer)
	assert.Equal(t, "Asha", mine[0].Farmer.Name)
	assert.Empty(t, mine[0].Farmer.Email, "snapshot carries display fields only")

	forProvider, err := s.QueryBookings(ctx, BookingFilter{ProviderID: "provider-1"})
	require.NoError(t, err)
	assert.Len(t, forProvider, 2)

	others, err := s.QueryBookings(ctx, BookingFilter{VehicleID: v1.ID, ExcludeID: first.ID})
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, "farmer-2", others[0].FarmerID)

	none, err := s.QueryBookings(ctx, BookingFilter{Statuses: []models.BookingStatus{models.BookingStatusDelivered}})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGormStore_QueryVehicles(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	a := seedVehicle(t, s, "provider-1")
	b := seedVehicle(t, s, "provider-1")
	seedVehicle(t, s, "provider-2")

	require.NoError(t, s.Transaction(ctx, func(tx Tx) error {
		return tx.UpdateVehicleStatus(b.ID, models.VehicleStatusAvailable, models.VehicleStatusMaintenance)
	}))

	mine, err := s.QueryVehicles(ctx, VehicleFilter{ProviderID: "provider-1"})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	available, err := s.QueryVehicles(ctx, VehicleFilter{Statuses: []models.VehicleStatus{models.VehicleStatusAvailable}})
	require.NoError(t, err)
	assert.Len(t, available, 2)
	for _, v := range available {
		assert.NotEqual(t, b.ID, v.ID)
	}

	require.NoError(t, s.Transaction(ctx, func(tx Tx) error {
		return tx.SoftDeleteVehicle(a.ID)
	}))
	mine, err = s.QueryVehicles(ctx, VehicleFilter{ProviderID: "provider-1"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, b.ID, mine[0].ID)

	_, err = s.GetVehicle(ctx, a.ID)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestGormStore_CompareAndSwap(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	v := seedVehicle(t, s, "provider-1")
	b := seedBooking(t, s, "farmer-1", v)

	err := s.Transaction(ctx, func(tx Tx) error {
		return tx.UpdateBookingStatus(b.ID, models.BookingStatusAccepted, models.BookingStatusDelivered)
	})
	require.ErrorIs(t, err, models.ErrInvalidTransition)

	err = s.Transaction(ctx, func(tx Tx) error {
		return tx.UpdateVehicleStatus(v.ID, models.VehicleStatusBooked, models.VehicleStatusAvailable)
	})
	require.ErrorIs(t, err, models.ErrInvalidTransition)

	got, err := s.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusPending, got.Status)
}

func TestGormStore_TransactionRollsBack(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	v := seedVehicle(t, s, "provider-1")
	b := seedBooking(t, s, "farmer-1", v)

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(tx Tx) error {
		if err := tx.UpdateBookingStatus(b.ID, models.BookingStatusPending, models.BookingStatusAccepted); err != nil {
			return err
		}
		if err := tx.UpdateVehicleStatus(v.ID, models.VehicleStatusAvailable, models.VehicleStatusBooked); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	gotB, err := s.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusPending, gotB.Status)

	gotV, err := s.GetVehicle(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VehicleStatusAvailable, gotV.Status)
}

func TestGormStore_TransactionCommitsTogether(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	v := seedVehicle(t, s, "provider-1")
	b := seedBooking(t, s, "farmer-1", v)
	before, err := s.GetBooking(ctx, b.ID)
	require.NoError(t, err)

	require.NoError(t, s.Transaction(ctx, func(tx Tx) error {
		locked, err := tx.LockBooking(b.ID)
		if err != nil {
			return err
		}
		if _, err := tx.LockVehicle(locked.VehicleID); err != nil {
			return err
		}
		if err := tx.UpdateBookingStatus(b.ID, models.BookingStatusPending, models.BookingStatusAccepted); err != nil {
			return err
		}
		return tx.UpdateVehicleStatus(v.ID, models.VehicleStatusAvailable, models.VehicleStatusBooked)
	}))

	gotB, err := s.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusAccepted, gotB.Status)
	assert.True(t, before.CreatedAt.Equal(gotB.CreatedAt), "createdAt is immutable")
	assert.False(t, gotB.UpdatedAt.Before(before.UpdatedAt))

	gotV, err := s.GetVehicle(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VehicleStatusBooked, gotV.Status)
}
