// Package poller keeps a client-side view of bookings and vehicles in step
// with the server by polling at a fixed interval.
//
// Each poll replaces the whole view. A result is applied only if its poll
// started after the poll that produced the current view, so a slow response
// can never overwrite a newer one.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agrologix/agrologix-backend/internal/models"
)

const DefaultInterval = 5 * time.Second

// Session identifies who is polling. It is passed in explicitly and never
// read from process-wide state.
type Session struct {
	UserID string
	Role   models.UserType
	Token  string
}

// Fetcher reads the server state a view is built from. *client.Client
// implements it.
type Fetcher interface {
	Bookings(ctx context.Context, role models.UserType, statuses ...models.BookingStatus) ([]models.Booking, error)
	AvailableVehicles(ctx context.Context) ([]models.Vehicle, error)
	MyVehicles(ctx context.Context) ([]models.Vehicle, error)
}

// View is one poll result. A farmer sees their bookings and every available
// vehicle; a provider sees bookings on their vehicles and their own fleet.
type View struct {
	Bookings  []models.Booking
	Vehicles  []models.Vehicle
	Seq       uint64
	FetchedAt time.Time
}

type Synchronizer struct {
	fetcher  Fetcher
	session  Session
	interval time.Duration
	log      *zap.Logger

	mu        sync.Mutex
	view      View
	hasView   bool
	issued    uint64
	applied   uint64
	lastErr   error
	listeners []func(View)

	// notifyMu serialises listener calls; notified is the newest seq handed
	// to them.
	notifyMu sync.Mutex
	notified uint64

	nudge    chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

type Option func(*Synchronizer)

// WithInterval sets the poll interval. Non-positive values keep the default.
func WithInterval(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Synchronizer) { s.log = log }
}

func New(f Fetcher, session Session, opts ...Option) (*Synchronizer, error) {
	if !session.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", models.ErrValidation, session.Role)
	}
	s := &Synchronizer{
		fetcher:  f,
		session:  session,
		interval: DefaultInterval,
		log:      zap.NewNop(),
		nudge:    make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run polls immediately and then every interval until ctx is cancelled or
// Stop is called. Poll failures are logged and retried at the next tick.
func (s *Synchronizer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case <-ticker.C:
			s.poll(ctx)
		case <-s.nudge:
			s.poll(ctx)
			ticker.Reset(s.interval)
		}
	}
}

func (s *Synchronizer) poll(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
		s.log.Warn("poll failed",
			zap.String("user_id", s.session.UserID),
			zap.String("role", string(s.session.Role)),
			zap.Error(err))
	}
}

// Refresh polls now. On failure the current view is kept and the error is
// returned and recorded for LastError.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.issued++
	seq := s.issued
	s.mu.Unlock()

	view, err := s.fetch(ctx)

	s.mu.Lock()
	if seq <= s.applied {
		// A newer poll already landed.
		s.mu.Unlock()
		return err
	}
	if err != nil {
		s.lastErr = err
		s.mu.Unlock()
		return err
	}
	view.Seq = seq
	s.view = view
	s.hasView = true
	s.applied = seq
	s.lastErr = nil
	listeners := append([]func(View){}, s.listeners...)
	s.mu.Unlock()

	s.notify(view, listeners)
	return nil
}

// notify hands view to listeners unless a newer view already went out, so
// listeners see seqs in increasing order even when two refreshes finish
// together.
func (s *Synchronizer) notify(view View, listeners []func(View)) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if view.Seq <= s.notified {
		return
	}
	s.notified = view.Seq
	for _, fn := range listeners {
		fn(view)
	}
}

func (s *Synchronizer) fetch(ctx context.Context) (View, error) {
	var view View
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		bookings, err := s.fetcher.Bookings(gctx, s.session.Role)
		if err != nil {
			return fmt.Errorf("fetch bookings: %w", err)
		}
		view.Bookings = bookings
		return nil
	})
	g.Go(func() error {
		var (
			vehicles []models.Vehicle
			err      error
		)
		if s.session.Role == models.UserTypeProvider {
			vehicles, err = s.fetcher.MyVehicles(gctx)
		} else {
			vehicles, err = s.fetcher.AvailableVehicles(gctx)
		}
		if err != nil {
			return fmt.Errorf("fetch vehicles: %w", err)
		}
		view.Vehicles = vehicles
		return nil
	})
	if err := g.Wait(); err != nil {
		return View{}, err
	}
	view.FetchedAt = time.Now()
	return view, nil
}

// Nudge asks Run to poll early. It never blocks; nudges that arrive while
// one is already queued are merged.
func (s *Synchronizer) Nudge() {
	select {
	case s.nudge <- struct{}{}:
	default:
	}
}

// Mutate runs fn and then refreshes, whether or not fn succeeded: a rejected
// mutation usually means the view is stale. The view is never edited
// locally. fn's error takes precedence over the refresh error.
func (s *Synchronizer) Mutate(ctx context.Context, fn func(ctx context.Context) error) error {
	mutErr := fn(ctx)
	refreshErr := s.Refresh(ctx)
	if mutErr != nil {
		return mutErr
	}
	return refreshErr
}

// View returns the last applied view and whether any poll has succeeded yet.
func (s *Synchronizer) View() (View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view, s.hasView
}

// LastError is the error of the most recent poll, or nil if it succeeded.
func (s *Synchronizer) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// OnChange registers fn to be called with newly applied views, oldest first.
// A view superseded before fn is reached is skipped. fn runs on the polling
// goroutine and must not call Refresh or Mutate.
func (s *Synchronizer) OnChange(fn func(View)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Synchronizer) Session() Session { return s.session }

// Stop ends Run. It is safe to call more than once.
func (s *Synchronizer) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}
