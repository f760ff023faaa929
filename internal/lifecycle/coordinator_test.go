package lifecycle

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agrologix/agrologix-backend/internal/database"
	"github.com/agrologix/agrologix-backend/internal/models"
	"github.com/agrologix/agrologix-backend/internal/services"
	"github.com/agrologix/agrologix-backend/internal/store"
)

const (
	farmer1   = "farmer-1"
	farmer2   = "farmer-2"
	provider1 = "provider-1"
	provider2 = "provider-2"
)

var today = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []services.ChangeEvent
	err    error
}

func (r *recorder) Publish(_ context.Context, ev services.ChangeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recorder) Close() error { return nil }

func (r *recorder) kinds() []services.ChangeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]services.ChangeKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

type fixture struct {
	c      *Coordinator
	store  *store.GormStore
	events *recorder
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	users := []models.User{
		{ID: farmer1, Name: "Asha Patil", Email: "asha@example.com", PasswordHash: "x", Phone: "9820000001", UserType: models.UserTypeFarmer},
		{ID: farmer2, Name: "Ravi Kale", Email: "ravi@example.com", PasswordHash: "x", Phone: "9820000002", UserType: models.UserTypeFarmer},
		{ID: provider1, Name: "Sahyadri Transport", Email: "ops@sahyadri.example.com", PasswordHash: "x", Phone: "9820000003", UserType: models.UserTypeProvider},
		{ID: provider2, Name: "Deccan Haulers", Email: "ops@deccan.example.com", PasswordHash: "x", Phone: "9820000004", UserType: models.UserTypeProvider},
	}
	require.NoError(t, db.Create(&users).Error)

	st := store.NewGormStore(db)
	rec := &recorder{}
	opts = append([]Option{WithClock(func() time.Time { return today })}, opts...)
	return &fixture{
		c:      New(st, rec, zap.NewNop(), opts...),
		store:  st,
		events: rec,
	}
}

func (f *fixture) vehicle(t *testing.T, providerID string) *models.Vehicle {
	t.Helper()
	v, err := f.c.CreateVehicle(context.Background(), providerID, models.VehicleInput{
		VehicleType:        "Truck",
		Brand:              "Tata",
		Model:              "LPT 1109",
		RegistrationNumber: "mh15 ab 1234",
		Capacity:           7.5,
		RatePerKm:          28,
		BaseLocation:       "Nashik",
	})
	require.NoError(t, err)
	return v
}

func bookingInput(vehicleID string) models.BookingInput {
	return models.BookingInput{
		VehicleID:    vehicleID,
		ProductName:  "Grapes",
		Quantity:     2.5,
		Source:       "Niphad",
		Destination:  "Vashi APMC",
		DeliveryDate: today.AddDate(0, 0, 3),
	}
}

func (f *fixture) book(t *testing.T, farmerID, vehicleID string) *models.Booking {
	t.Helper()
	b, err := f.c.CreateBooking(context.Background(), farmerID, bookingInput(vehicleID))
	require.NoError(t, err)
	return b
}

func (f *fixture) bookingStatus(t *testing.T, id string) models.BookingStatus {
	t.Helper()
	b, err := f.store.GetBooking(context.Background(), id)
	require.NoError(t, err)
	return b.Status
}

func (f *fixture) vehicleStatus(t *testing.T, id string) models.VehicleStatus {
	t.Helper()
	v, err := f.store.GetVehicle(context.Background(), id)
	require.NoError(t, err)
	return v.Status
}

// assertBookedIffOneAccepted checks that a vehicle is Booked exactly when one
// booking on it is Accepted.
func (f *fixture) assertBookedIffOneAccepted(t *testing.T, vehicleID string) {
	t.Helper()
	accepted, err := f.store.QueryBookings(context.Background(), store.BookingFilter{
		VehicleID: vehicleID,
		Statuses:  []models.BookingStatus{models.BookingStatusAccepted},
	})
	require.NoError(t, err)
	status := f.vehicleStatus(t, vehicleID)
	if status == models.VehicleStatusBooked {
		assert.Len(t, accepted, 1, "booked vehicle %s", vehicleID)
	} else {
		assert.Empty(t, accepted, "vehicle %s is %s", vehicleID, status)
	}
}

func TestCreateBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vehicle(t, provider1)

	b, err := f.c.CreateBooking(ctx, farmer1, bookingInput(v.ID))
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, models.BookingStatusPending, b.Status)
	assert.Equal(t, provider1, b.ProviderID)
	assert.Equal(t, "LPT 1109", b.VehicleModel)
	assert.Equal(t, time.Date(2026, 10, 22, 0, 0, 0, 0, time.UTC), b.DeliveryDate.UTC())
	require.NotNil(t, b.Provider)
	assert.Equal(t, "Sahyadri Transport", b.Provider.Name)
	assert.Equal(t, "9820000003", b.Provider.Phone)

	assert.Equal(t, models.VehicleStatusAvailable, f.vehicleStatus(t, v.ID), "a pending booking does not reserve the vehicle")
	assert.Equal(t, []services.ChangeKind{services.VehicleCreated, services.BookingCreated}, f.events.kinds())
}

func TestCreateBooking_UnavailableVehicle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vehicle(t, provider1)

	_, err := f.c.SetVehicleMaintenance(ctx, v.ID, provider1, true)
	require.NoError(t, err)

	_, err = f.c.CreateBooking(ctx, farmer1, bookingInput(v.ID))
	require.ErrorIs(t, err, models.ErrVehicleUnavailable)

	all, err := f.c.ListBookingsByFarmer(ctx, farmer1)
	require.NoError(t, err)
	assert.Empty(t, all, "no record is created")

	booked := f.vehicle(t, provider1)
	first := f.book(t, farmer1, booked.ID)
	_, err = f.c.ApplyTransition(ctx, first.ID, models.BookingStatusAccepted, provider1, models.UserTypeProvider)
	require.NoError(t, err)

	_, err = f.c.CreateBooking(ctx, farmer2, bookingInput(booked.ID))
	require.ErrorIs(t, err, models.ErrVehicleUnavailable)
}

func TestCreateBooking_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vehicle(t, provider1)

	tests := []struct {
		name   string
		mutate func(*models.BookingInput)
	}{
		{"negative quantity", func(in *models.BookingInput) { in.Quantity = -1 }},
		{"zero quantity", func(in *models.BookingInput) { in.Quantity = 0 }},
		{"past delivery date", func(in *models.BookingInput) { in.DeliveryDate = today.AddDate(0, 0, -1) }},
		{"blank product", func(in *models.BookingInput) { in.ProductName = "   " }},
		{"missing destination", func(in *models.BookingInput) { in.Destination = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := bookingInput(v.ID)
			tt.mutate(&in)
			_, err := f.c.CreateBooking(ctx, farmer1, in)
			require.ErrorIs(t, err, models.ErrValidation)
		})
	}

	all, err := f.c.ListBookingsByFarmer(ctx, farmer1)
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = f.c.CreateBooking(ctx, farmer1, bookingInput("no-such-vehicle"))
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestApplyTransition_AcceptThenDeliver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vehicle(t, provider1)
	b := f.book(t, farmer1, v.ID)

	got, err := f.c.ApplyTransition(ctx, b.ID, models.BookingStatusAccepted, provider1, models.UserTypeProvider)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusAccepted, got.Status)
	assert.Equal(t, models.VehicleStatusBooked, f.vehicleStatus(t, v.ID))
	f.assertBookedIffOneAccepted(t, v.ID)

	got, err = f.c.ApplyTransition(ctx, b.ID, models.BookingStatusDelivered, provider1, models.UserTypeProvider)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusDelivered, got.Status)
	assert.Equal(t, models.VehicleStatusAvailable, f.vehicleStatus(t, v.ID))
	f.assertBookedIffOneAccepted(t, v.ID)

	f.events.mu.Lock()
	last := f.events.events[len(f.events.events)-1]
	f.events.mu.Unlock()
	assert.Equal(t, services.BookingTransitioned, last.Kind)
	assert.Equal(t, string(models.VehicleStatusAvailable), last.VehicleStatus)
	assert.Equal(t, farmer1, last.FarmerID)
}

func TestApplyTransition_Idempotence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vehicle(t, provider1)
	b := f.book(t, farmer1, v.ID)

	_, err := f.c.ApplyTransition(ctx, b.ID, models.BookingStatusAccepted, provider1, models.UserTypeProvider)
	require.NoError(t, err)
	before, err := f.store.GetBooking(ctx, b.ID)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = f.c.ApplyTransition(ctx, b.ID, models.BookingStatusAccepted, provider1, models.UserTypeProvider)
		require.ErrorIs(t, err, models.ErrInvalidTransition)
	}

	after, err := f.store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusAccepted, after.Status)
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt), "failed calls write nothing")
	assert.Equal(t, models.VehicleStatusBooked, f.vehicleStatus(t, v.ID))
}

func TestApplyTransition_ConcurrentAccept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vehicle(t, provider1)
	b := f.book(t, farmer1, v.ID)

	const callers = 8
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.c.ApplyTransition(ctx, b.ID, models.BookingStatusAccepted, provider1, models.UserTypeProvider)
		}(i)
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, models.ErrInvalidTransition)
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, models.BookingStatusAccepted, f.bookingStatus(t, b.ID))
	assert.Equal(t, models.VehicleStatusBooked, f.vehicleStatus(t, v.ID))
	f.assertBookedIffOneAccepted(t, v.ID)
}

func TestApplyTransition_ConcurrentAcceptOfSiblings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vehicle(t, provider1)
	b1 := f.book(t, farmer1, v.ID)
	b2 := f.book(t, farmer2, v.ID)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{b1.ID, b2.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.c.ApplyTransition(ctx, id, models.BookingStatusAccepted, provider1, models.UserTypeProvider)
		}(i, id)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, models.ErrInvalidTransition)
			failures++
		}
	}
	assert.Equal(t, 1, failures)
	f.assertBookedIffOneAccepted(t, v.ID)
}

func TestScenario_TwoPendingOnOneVehicle_KeepSiblings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vehicle(t, provider1)

	b1 := f.book(t, farmer1, v.ID)
	b2 := f.book(t, farmer2, v.ID)
	assert.Equal(t, models.VehicleStatusAvailable, f.vehicleStatus(t, v.ID))

	_, err := f.c.ApplyTransition(ctx, b1.ID, models.BookingStatusAccepted, provider1, models.UserTypeProvider)
	require.NoError(t, err)
	assert.Equal(t, models.VehicleStatusBooked, f.vehicleStatus(t, v.ID))

	_, err = f.c.ApplyTransition(ctx, b2.ID, models.BookingStatusAccepted, provider1, models.UserTypeProvider)
	require.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Equal(t, models.BookingStatusPending, f.bookingStatus(t, b2.ID))
	f.assertBookedIffOneAccepted(t, v.ID)

	_, err = f.c.ApplyTransition(ctx, b2.ID, models.BookingStatusRejected, provider1, models.UserTypeProvider)
	require.NoError(t, err)
	assert.Equal(t, models.VehicleStatusBooked, f.vehicleStatus(t, v.ID), "rejecting a sibling leaves the vehicle booked")
}

func TestScenario_SiblingAcceptableAfterDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vehicle(t, provider1)
	b1 := f.book(t, farmer1, v.ID)
	b2 := f.book(t, farmer2, v.ID)

	_, err := f.c.ApplyTransition(ctx, b1.ID, models.BookingStatusAccepted, provider1, models.UserTypeProvider)
	require.NoError(t, err)
	_, err = f.c.ApplyTransition(ctx, b1.ID, models.BookingStatusDelivered, provider1, models.UserTypeProvider)
	require.NoError(t, err)

	_, err = f.c.ApplyTransition(ctx, b2.ID, models.BookingStatusAccepted, provider1, models.UserTypeProvider)
	require.NoError(t, err)
	assert.Equal(t, models.VehicleStatusBooked, f.vehicleStatus(t, v.ID))
	f.assertBookedIffOneAccepted(t, v.ID)
}

func TestScenario_AutoRejectSiblings(t *testing.T) {
	f := newFixture(t, WithSiblingPolicy(AutoRejectSiblings))
	ctx := context.Background()
	v := f.vehicle(t, provider1)
	other := f.vehicle(t, provider1)

	b1 := f.book(t, farmer1, v.ID)
	b2 := f.book(t, farmer2, v.ID)
	unrelated := f.book(t, farmer2, other.ID)

	_, err := f.c.ApplyTransition(ctx, b1.ID, models.BookingStatusAccepted, provider1, models.UserTypeProvider)
	require.NoError(t, err)

	assert.Equal(t, models.BookingStatusRejected, f.bookingStatus(t, b2.ID))
	assert.Equal(t, models.BookingStatusPending, f.bookingStatus(t, unrelated.ID))

	var rejectedHint bool
	f.events.mu.Lock()
	for _, ev := range f.events.events {
		if ev.BookingID == b2.ID && ev.Status == string(models.BookingStatusRejected) {
			rejectedHint = ev.FarmerID == farmer2
		}
	}
	f.events.mu.Unlock()
	assert.True(t, rejectedHint, "the rejected farmer is told to refresh")
}

// lockLog records, per transaction, the order in which rows are locked and
// written.
type lockLog struct {
	store.Store
	mu  sync.Mutex
	txs [][]string
}

func (l *lockLog) Transaction(ctx context.Context, fn func(store.Tx) error) error {
	return l.Store.Transaction(ctx, func(tx store.Tx) error {
		l.mu.Lock()
		l.txs = append(l.txs, nil)
		n := len(l.txs) - 1
		l.mu.Unlock()
		return fn(&loggedTx{Tx: tx, log: l, n: n})
	})
}

func (l *lockLog) add(n int, op string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.txs[n] = append(l.txs[n], op)
}

type loggedTx struct {
	store.Tx
	log *lockLog
	n   int
}

func (t *loggedTx) LockVehicle(id string) (*models.Vehicle, error) {
	t.log.add(t.n, "lock vehicle")
	return t.Tx.LockVehicle(id)
}

func (t *loggedTx) LockBooking(id string) (*models.Booking, error) {
	t.log.add(t.n, "lock booking")
	return t.Tx.LockBooking(id)
}

func (t *loggedTx) UpdateBookingStatus(id string, from, to models.BookingStatus) error {
	t.log.add(t.n, "write booking")
	return t.Tx.UpdateBookingStatus(id, from, to)
}

func (t *loggedTx) UpdateVehicleStatus(id string, from, to models.VehicleStatus) error {
	t.log.add(t.n, "write vehicle")
	return t.Tx.UpdateVehicleStatus(id, from, to)
}

// Accept with sibling rejection and vehicle deletion both touch one vehicle
// and several of its bookings. They must lock in the same order or two such
// transactions can deadlock on postgres.
func TestLockOrder_VehicleBeforeBookings(t *testing.T) {
	f := newFixture(t)
	locks := &lockLog{Store: f.store}
	c := New(locks, f.events, zap.NewNop(),
		WithClock(func() time.Time { return today }),
		WithSiblingPolicy(AutoRejectSiblings))
	ctx := context.Background()

	v := f.vehicle(t, provider1)
	b1 := f.book(t, farmer1, v.ID)
	f.book(t, farmer2, v.ID)

	_, err := c.ApplyTransition(ctx, b1.ID, models.BookingStatusAccepted, provider1, models.UserTypeProvider)
	require.NoError(t, err)
	_, err = c.ApplyTransition(ctx, b1.ID, models.BookingStatusDelivered, provider1, models.UserTypeProvider)
	require.NoError(t, err)
	f.book(t, farmer1, v.ID)
	require.NoError(t, c.DeleteVehicle(ctx, v.ID, provider1))

	require.Len(t, locks.txs, 3)
	assert.Equal(t, []string{"lock vehicle", "lock booking", "write booking", "write vehicle", "write booking"}, locks.txs[0])
	for i, ops := range locks.txs {
		require.NotEmpty(t, ops)
		assert.Equal(t, "lock vehicle", ops[0], "transaction %d", i)
		touched := false
		for _, op := range ops {
			switch op {
			case "lock vehicle":
				assert.False(t, touched, "transaction %d locks the vehicle after a booking: %v", i, ops)
			case "lock booking", "write booking":
				touched = true
			}
		}
	}
}

func TestScenario_MaintenanceBlocksBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vehicle(t, provider1)

	got, err := f.c.SetVehicleMaintenance(ctx, v.ID, provider1, true)
	require.NoError(t, err)
	assert.Equal(t, models.VehicleStatusMaintenance, got.Status)

	available, err := f.c.ListAvailableVehicles(ctx)
	require.NoError(t, err)
	assert.Empty(t, available)

	_, err = f.c.CreateBooking(ctx, farmer1, bookingInput(v.ID))
	require.ErrorIs(t, err, models.ErrVehicleUnavailable)

	_, err = f.c.SetVehicleMaintenance(ctx, v.ID, provider1, true)
	require.ErrorIs(t, err, models.ErrInvalidTransition)

	got, err = f.c.SetVehicleMaintenance(ctx, v.ID, provider1, false)
	require.NoError(t, err)
	assert.Equal(t, models.VehicleStatusAvailable, got.Status)
}

func TestScenario_PendingBookingBlocksAcceptWhileInMaintenance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vehicle(t, provider1)
	b := f.book(t, farmer1, v.ID)

	_, err := f.c.SetVehicleMaintenance(ctx, v.ID, provider1, true)
	require.NoError(t, err)

	_, err = f.c.ApplyTransition(ctx, b.ID, models.BookingStatusAccepted, provider1, models.UserTypeProvider)
	require.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Equal(t, models.VehicleStatusMaintenance, f.vehicleStatus(t, v.ID))
}

func TestScenario_CancelThenAccept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vehicle(t, provider1)
	b := f.book(t, farmer1, v.ID)

	got, err := f.c.ApplyTransition(ctx, b.ID, models.BookingStatusCancelled, farmer1, models.UserTypeFarmer)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, got.Status)
	assert.Equal(t, models.VehicleStatusAvailable, f.vehicleStatus(t, v.ID))

	_, err = f.c.ApplyTransition(ctx, b.ID, models.BookingStatusAccepted, provider1, models.UserTypeProvider)
	require.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Equal(t, models.BookingStatusCancelled, f.bookingStatus(t, b.ID))
	assert.Equal(t, models.VehicleStatusAvailable, f.vehicleStatus(t, v.ID))
}

func TestApplyTransition_NotAuthorized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vehicle(t, provider1)
	b := f.book(t, farmer1, v.ID)

	tests := []struct {
		name   string
		target models.BookingStatus
		actor  string
		role   models.UserType
	}{
		{"other provider accepts", models.BookingStatusAccepted, provider2, models.UserTypeProvider},
		{"farmer accepts own booking", models.BookingStatusAccepted, farmer1, models.UserTypeFarmer},
		{"other farmer cancels", models.BookingStatusCancelled, farmer2, models.UserTypeFarmer},
		{"provider cancels", models.BookingStatusCancelled, provider1, models.UserTypeProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.c.ApplyTransition(ctx, b.ID, tt.target, tt.actor, tt.role)
			require.ErrorIs(t, err, models.ErrNotAuthorized)
		})
	}
	assert.Equal(t, models.BookingStatusPending, f.bookingStatus(t, b.ID))

	_, err := f.c.ApplyTransition(ctx, "missing", models.BookingStatusAccepted, provider1, models.UserTypeProvider)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetBooking_PartiesOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vehicle(t, provider1)
	b := f.book(t, farmer1, v.ID)

	got, err := f.c.GetBooking(ctx, b.ID, farmer1)
	require.NoError(t, err)
	require.NotNil(t, got.Farmer)
	assert.Equal(t, "Asha Patil", got.Farmer.Name)

	_, err = f.c.GetBooking(ctx, b.ID, provider1)
	require.NoError(t, err)

	_, err = f.c.GetBooking(ctx, b.ID, farmer2)
	require.ErrorIs(t, err, models.ErrNotAuthorized)
}

func TestListBookings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v1 := f.vehicle(t, provider1)
	v2 := f.vehicle(t, provider2)

	a := f.book(t, farmer1, v1.ID)
	f.book(t, farmer1, v2.ID)
	f.book(t, farmer2, v1.ID)

	_, err := f.c.ApplyTransition(ctx, a.ID, models.BookingStatusCancelled, farmer1, models.UserTypeFarmer)
	require.NoError(t, err)

	mine, err := f.c.ListBookingsByFarmer(ctx, farmer1)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	history, err := f.c.ListBookingsByFarmer(ctx, farmer1, models.BookingStatusCancelled, models.BookingStatusDelivered)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, a.ID, history[0].ID)

	incoming, err := f.c.ListBookingsByProvider(ctx, provider1)
	require.NoError(t, err)
	assert.Len(t, incoming, 2)
	for _, b := range incoming {
		assert.Equal(t, provider1, b.ProviderID)
	}
}

func TestVehicles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vehicle(t, provider1)
	assert.Equal(t, "MH15 AB 1234", v.RegistrationNumber)
	f.vehicle(t, provider2)

	mine, err := f.c.ListVehiclesByProvider(ctx, provider1)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, v.ID, mine[0].ID)

	available, err := f.c.ListAvailableVehicles(ctx)
	require.NoError(t, err)
	assert.Len(t, available, 2)

	_, err = f.c.CreateVehicle(ctx, provider1, models.VehicleInput{Model: "Ace"})
	require.ErrorIs(t, err, models.ErrValidation)

	_, err = f.c.SetVehicleMaintenance(ctx, v.ID, provider2, true)
	require.ErrorIs(t, err, models.ErrNotAuthorized)
}

func TestSetVehicleMaintenance_BookedVehicle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vehicle(t, provider1)
	b := f.book(t, farmer1, v.ID)
	_, err := f.c.ApplyTransition(ctx, b.ID, models.BookingStatusAccepted, provider1, models.UserTypeProvider)
	require.NoError(t, err)

	_, err = f.c.SetVehicleMaintenance(ctx, v.ID, provider1, true)
	require.ErrorIs(t, err, models.ErrInvalidTransition)
	_, err = f.c.SetVehicleMaintenance(ctx, v.ID, provider1, false)
	require.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Equal(t, models.VehicleStatusBooked, f.vehicleStatus(t, v.ID))
}

func TestDeleteVehicle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booked := f.vehicle(t, provider1)
	b := f.book(t, farmer1, booked.ID)
	_, err := f.c.ApplyTransition(ctx, b.ID, models.BookingStatusAccepted, provider1, models.UserTypeProvider)
	require.NoError(t, err)
	require.ErrorIs(t, f.c.DeleteVehicle(ctx, booked.ID, provider1), models.ErrInvalidTransition)

	v := f.vehicle(t, provider1)
	pending := f.book(t, farmer2, v.ID)
	require.ErrorIs(t, f.c.DeleteVehicle(ctx, v.ID, provider2), models.ErrNotAuthorized)

	require.NoError(t, f.c.DeleteVehicle(ctx, v.ID, provider1))
	assert.Equal(t, models.BookingStatusRejected, f.bookingStatus(t, pending.ID))

	mine, err := f.c.ListVehiclesByProvider(ctx, provider1)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, booked.ID, mine[0].ID)

	require.ErrorIs(t, f.c.DeleteVehicle(ctx, v.ID, provider1), models.ErrNotFound)

	_, err = f.c.ApplyTransition(ctx, pending.ID, models.BookingStatusAccepted, provider1, models.UserTypeProvider)
	require.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("redis down")
	v := f.vehicle(t, provider1)

	b, err := f.c.CreateBooking(context.Background(), farmer1, bookingInput(v.ID))
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusPending, f.bookingStatus(t, b.ID))
}

// TestRandomWalk drives random requests from both roles and checks after
// every step that only table edges were taken and that vehicle availability
// matches the accepted bookings.
func TestRandomWalk(t *testing.T) {
	for _, policy := range []SiblingPolicy{KeepSiblings, AutoRejectSiblings} {
		t.Run(string(policy), func(t *testing.T) {
			f := newFixture(t, WithSiblingPolicy(policy))
			ctx := context.Background()
			rng := rand.New(rand.NewSource(42))

			vehicles := []*models.Vehicle{f.vehicle(t, provider1), f.vehicle(t, provider1), f.vehicle(t, provider2)}
			seen := map[string]models.BookingStatus{}
			legal := map[[2]models.BookingStatus]bool{}
			for _, from := range []models.BookingStatus{models.BookingStatusPending, models.BookingStatusAccepted} {
				for _, to := range models.BookingStatuses {
					if (from == models.BookingStatusPending && to != models.BookingStatusPending && to != models.BookingStatusDelivered) ||
						(from == models.BookingStatusAccepted && to == models.BookingStatusDelivered) {
						legal[[2]models.BookingStatus{from, to}] = true
					}
				}
			}

			actors := []struct {
				id   string
				role models.UserType
			}{
				{farmer1, models.UserTypeFarmer},
				{farmer2, models.UserTypeFarmer},
				{provider1, models.UserTypeProvider},
				{provider2, models.UserTypeProvider},
			}

			for step := 0; step < 200; step++ {
				v := vehicles[rng.Intn(len(vehicles))]
				switch op := rng.Intn(10); {
				case op < 3:
					farmer := actors[rng.Intn(2)].id
					if b, err := f.c.CreateBooking(ctx, farmer, bookingInput(v.ID)); err == nil {
						seen[b.ID] = b.Status
					} else {
						require.ErrorIs(t, err, models.ErrVehicleUnavailable)
					}
				case op < 4:
					_, _ = f.c.SetVehicleMaintenance(ctx, v.ID, v.ProviderID, rng.Intn(2) == 0)
				default:
					all, err := f.store.QueryBookings(ctx, store.BookingFilter{VehicleID: v.ID})
					require.NoError(t, err)
					if len(all) == 0 {
						continue
					}
					b := all[rng.Intn(len(all))]
					actor := actors[rng.Intn(len(actors))]
					target := models.BookingStatuses[rng.Intn(len(models.BookingStatuses))]
					_, err = f.c.ApplyTransition(ctx, b.ID, target, actor.id, actor.role)
					if err != nil {
						assert.True(t,
							errors.Is(err, models.ErrInvalidTransition) || errors.Is(err, models.ErrNotAuthorized),
							"unexpected error %v", err)
					}
				}

				all, err := f.store.QueryBookings(ctx, store.BookingFilter{})
				require.NoError(t, err)
				for _, b := range all {
					if prev, ok := seen[b.ID]; ok && prev != b.Status {
						assert.True(t, legal[[2]models.BookingStatus{prev, b.Status}], "illegal %s -> %s", prev, b.Status)
					}
					seen[b.ID] = b.Status
				}
				for _, v := range vehicles {
					f.assertBookedIffOneAccepted(t, v.ID)
				}
			}
		})
	}
}
