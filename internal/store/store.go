// Package store is the durable record keeper for bookings and vehicles.
//
// Status columns are written only through Tx, which every caller obtains from
// Store.Transaction. Reads outside a transaction see the last committed state.
package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agrologix/agrologix-backend/internal/models"
)

// BookingFilter selects bookings. Empty fields match everything.
type BookingFilter struct {
	FarmerID   string
	ProviderID string
	VehicleID  string
	ExcludeID  string
	Statuses   []models.BookingStatus
}

// VehicleFilter selects vehicles. Soft-deleted vehicles never match.
type VehicleFilter struct {
	ProviderID string
	Statuses   []models.VehicleStatus
}

type Store interface {
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	GetVehicle(ctx context.Context, id string) (*models.Vehicle, error)
	// PutBooking inserts b, or updates its descriptive fields if it exists.
	// Status is never changed by a put on an existing record.
	PutBooking(ctx context.Context, b *models.Booking) error
	PutVehicle(ctx context.Context, v *models.Vehicle) error
	QueryBookings(ctx context.Context, f BookingFilter) ([]models.Booking, error)
	QueryVehicles(ctx context.Context, f VehicleFilter) ([]models.Vehicle, error)
	// Transaction runs fn atomically. Any error returned by fn rolls back
	// every write made through tx.
	Transaction(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write side of the store, valid only inside Transaction.
//
// Row locks are taken vehicle first, then that vehicle's bookings. Callers
// that start from a booking id use FindBooking to learn its vehicle before
// locking anything.
type Tx interface {
	// FindBooking reads a booking without locking it.
	FindBooking(id string) (*models.Booking, error)
	LockBooking(id string) (*models.Booking, error)
	LockVehicle(id string) (*models.Vehicle, error)
	CreateBooking(b *models.Booking) error
	QueryBookings(f BookingFilter) ([]models.Booking, error)
	// UpdateBookingStatus moves booking id from -> to. If the stored status
	// is no longer from, nothing is written and ErrInvalidTransition is
	// returned.
	UpdateBookingStatus(id string, from, to models.BookingStatus) error
	UpdateVehicleStatus(id string, from, to models.VehicleStatus) error
	SoftDeleteVehicle(id string) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	var b models.Booking
	err := withSnapshots(s.db.WithContext(ctx)).First(&b, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "booking", id)
	}
	return &b, nil
}

func (s *GormStore) GetVehicle(ctx context.Context, id string) (*models.Vehicle, error) {
	var v models.Vehicle
	if err := s.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "vehicle", id)
	}
	return &v, nil
}

func (s *GormStore) PutBooking(ctx context.Context, b *models.Booking) error {
	db := s.db.WithContext(ctx)
	if b.ID != "" {
		res := db.Model(&models.Booking{}).
			Where("id = ?", b.ID).
			Select("*").
			Omit("id", "status", "created_at", clause.Associations).
			Updates(b)
		if res.Error != nil {
			return fmt.Errorf("update booking %s: %w", b.ID, res.Error)
		}
		if res.RowsAffected > 0 {
			return nil
		}
	}
	if b.Status == "" {
		b.Status = models.BookingStatusPending
	}
	if err := db.Omit(clause.Associations).Create(b).Error; err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

func (s *GormStore) PutVehicle(ctx context.Context, v *models.Vehicle) error {
	db := s.db.WithContext(ctx)
	if v.ID != "" {
		res := db.Model(&models.Vehicle{}).
			Where("id = ?", v.ID).
			Select("*").
			Omit("id", "status", "created_at", "deleted_at").
			Updates(v)
		if res.Error != nil {
			return fmt.Errorf("update vehicle %s: %w", v.ID, res.Error)
		}
		if res.RowsAffected > 0 {
			return nil
		}
	}
	if v.Status == "" {
		v.Status = models.VehicleStatusAvailable
	}
	if err := db.Create(v).Error; err != nil {
		return fmt.Errorf("create vehicle: %w", err)
	}
	return nil
}

// QueryBookings runs a single SELECT, newest first.
func (s *GormStore) QueryBookings(ctx context.Context, f BookingFilter) ([]models.Booking, error) {
	return queryBookings(withSnapshots(s.db.WithContext(ctx)), f)
}

func (s *GormStore) QueryVehicles(ctx context.Context, f VehicleFilter) ([]models.Vehicle, error) {
	q := s.db.WithContext(ctx).Model(&models.Vehicle{})
	if f.ProviderID != "" {
		q = q.Where("provider_id = ?", f.ProviderID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}

	var vehicles []models.Vehicle
	if err := q.Order("created_at DESC").Order("id").Find(&vehicles).Error; err != nil {
		return nil, fmt.Errorf("query vehicles: %w", err)
	}
	return vehicles, nil
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&gormTx{db: db})
	})
}

type gormTx struct {
	db *gorm.DB
}

// forUpdate adds SELECT ... FOR UPDATE. The sqlite dialect drops the clause;
// there the single writer lock serialises transactions instead.
func (t *gormTx) forUpdate() *gorm.DB {
	return t.db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (t *gormTx) FindBooking(id string) (*models.Booking, error) {
	var b models.Booking
	if err := t.db.First(&b, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "booking", id)
	}
	return &b, nil
}

func (t *gormTx) LockBooking(id string) (*models.Booking, error) {
	var b models.Booking
	if err := t.forUpdate().First(&b, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "booking", id)
	}
	return &b, nil
}

func (t *gormTx) LockVehicle(id string) (*models.Vehicle, error) {
	var v models.Vehicle
	if err := t.forUpdate().First(&v, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "vehicle", id)
	}
	return &v, nil
}

func (t *gormTx) CreateBooking(b *models.Booking) error {
	if err := t.db.Omit(clause.Associations).Create(b).Error; err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

func (t *gormTx) QueryBookings(f BookingFilter) ([]models.Booking, error) {
	return queryBookings(t.db, f)
}

func (t *gormTx) UpdateBookingStatus(id string, from, to models.BookingStatus) error {
	res := t.db.Model(&models.Booking{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return fmt.Errorf("update booking %s status: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: booking %s is no longer %s", models.ErrInvalidTransition, id, from)
	}
	return nil
}

func (t *gormTx) UpdateVehicleStatus(id string, from, to models.VehicleStatus) error {
	res := t.db.Model(&models.Vehicle{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return fmt.Errorf("update vehicle %s status: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: vehicle %s is no longer %s", models.ErrInvalidTransition, id, from)
	}
	return nil
}

func (t *gormTx) SoftDeleteVehicle(id string) error {
	res := t.db.Delete(&models.Vehicle{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete vehicle %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: vehicle %s", models.ErrNotFound, id)
	}
	return nil
}

func queryBookings(db *gorm.DB, f BookingFilter) ([]models.Booking, error) {
	q := db.Model(&models.Booking{})
	if f.FarmerID != "" {
		q = q.Where("farmer_id = ?", f.FarmerID)
	}
	if f.ProviderID != "" {
		q = q.Where("provider_id = ?", f.ProviderID)
	}
	if f.VehicleID != "" {
		q = q.Where("vehicle_id = ?", f.VehicleID)
	}
	if f.ExcludeID != "" {
		q = q.Where("id <> ?", f.ExcludeID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}

	var bookings []models.Booking
	if err := q.Order("created_at DESC").Order("id").Find(&bookings).Error; err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	return bookings, nil
}

// withSnapshots attaches the read-only farmer and provider display fields.
func withSnapshots(db *gorm.DB) *gorm.DB {
	snapshot := func(db *gorm.DB) *gorm.DB {
		return db.Select("id", "name", "phone", "user_type")
	}
	return db.Preload("Farmer", snapshot).Preload("Provider", snapshot)
}

func notFound(err error, kind, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %s", models.ErrNotFound, kind, id)
	}
	return fmt.Errorf("get %s %s: %w", kind, id, err)
}
