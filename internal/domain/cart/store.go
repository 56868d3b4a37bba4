package cart

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/xenking/lumiere-storefront/internal/domain/cart"

// OperationError is returned by every failed Store mutation. It matches
// ErrOperationFailed with errors.Is and unwraps to the backend cause.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return "cart " + e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *OperationError) Unwrap() error { return e.Err }

// Is reports ErrOperationFailed as a match.
func (e *OperationError) Is(target error) bool { return target == ErrOperationFailed }

// StoreOptions holds optional Store collaborators. Zero values select
// no-op implementations and the global OpenTelemetry providers.
type StoreOptions struct {
	Logger         *zap.Logger
	Alerter        Alerter
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider

	// LazyCreate defers remote cart creation from Initialize to the first
	// AddToCart.
	LazyCreate bool
}

// State is the read-only projection of a Store handed to views.
type State struct {
	Cart       *Cart
	IsLoading  bool
	IsCartOpen bool
	ItemCount  int
}

// Store is the single source of truth for one shopper's cart. All writes go
// through its methods; each remote call runs alone, later calls wait for the
// one in flight, so responses are applied in the order calls were admitted.
type Store struct {
	backend    Backend
	ids        IDStore
	alerter    Alerter
	lg         *zap.Logger
	tracer     trace.Tracer
	metrics    storeMetrics
	lazyCreate bool

	// turn is a one-slot queue; its token is held for the duration of every
	// backend round trip.
	turn chan struct{}
	// initialized is guarded by turn.
	initialized bool

	snapshot atomic.Pointer[Cart]
	pending  atomic.Int64
	open     atomic.Bool
}

// NewStore creates a Store over the given backend and identifier slot. The
// store starts empty; call Initialize to rehydrate it.
func NewStore(backend Backend, ids IDStore, opts StoreOptions) *Store {
	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	alerter := opts.Alerter
	if alerter == nil {
		alerter = AlerterFunc(func(context.Context, string) {})
	}
	mp := opts.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return &Store{
		backend:    backend,
		ids:        ids,
		alerter:    alerter,
		lg:         lg,
		tracer:     tp.Tracer(instrumentationName),
		metrics:    newStoreMetrics(mp, lg),
		lazyCreate: opts.LazyCreate,
		turn:       make(chan struct{}, 1),
	}
}

// State returns the current projection.
func (s *Store) State() State {
	c := s.snapshot.Load()
	return State{
		Cart:       c,
		IsLoading:  s.IsLoading(),
		IsCartOpen: s.open.Load(),
		ItemCount:  c.ItemCount(),
	}
}

// Cart returns the current snapshot, or nil when no cart is loaded.
func (s *Store) Cart() *Cart { return s.snapshot.Load() }

// ItemCount returns the sum of line quantities of the current snapshot.
func (s *Store) ItemCount() int { return s.snapshot.Load().ItemCount() }

// IsLoading reports whether a mutation is queued or in flight.
func (s *Store) IsLoading() bool { return s.pending.Load() > 0 }

// IsCartOpen reports the drawer visibility flag.
func (s *Store) IsCartOpen() bool { return s.open.Load() }

// OpenCart shows the cart drawer.
func (s *Store) OpenCart() { s.open.Store(true) }

// CloseCart hides the cart drawer.
func (s *Store) CloseCart() { s.open.Store(false) }

// Initialize runs the rehydration protocol once: adopt the stored cart if the
// backend still knows it, otherwise discard the stored identifier and create
// a fresh cart. Failures are silent to the shopper; the returned error is for
// logging only and leaves the store usable.
func (s *Store) Initialize(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "cart.Initialize")
	defer span.End()

	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	if s.initialized {
		return nil
	}
	s.initialized = true

	c, err := s.rehydrate(ctx)
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "rehydrate")
	}
	if c != nil || s.lazyCreate {
		return nil
	}
	if _, err := s.create(ctx); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Refresh re-reads the current cart from the backend. When the backend no
// longer knows it, the slot and snapshot are cleared.
func (s *Store) Refresh(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "cart.Refresh")
	defer span.End()

	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	current := s.snapshot.Load()
	if current == nil {
		_, err := s.rehydrate(ctx)
		return err
	}

	c, err := s.backend.GetCart(ctx, current.ID)
	switch {
	case err == nil:
		s.snapshot.Store(c)
		return nil
	case errors.Is(err, ErrNotFound):
		s.lg.Info("Cart expired on backend", zap.String("cart_id", current.ID))
		s.snapshot.Store(nil)
		if err := s.ids.Clear(ctx); err != nil {
			return errors.Wrap(err, "clear cart id")
		}
		return nil
	default:
		span.RecordError(err)
		return errors.Wrap(err, "get cart")
	}
}

// AddToCart adds quantity units of a variant, creating the cart first when
// none exists. On success the drawer opens. Quantities below 1 count as 1.
//
// A cart created here is kept and persisted even when the add itself then
// fails: the snapshot moves from nil to the new empty cart while the call
// still reports the failure.
func (s *Store) AddToCart(ctx context.Context, variantID string, quantity int) error {
	if quantity < 1 {
		quantity = 1
	}
	err := s.mutate(ctx, "AddToCart", true, func(ctx context.Context, c *Cart) (*Cart, error) {
		return s.backend.AddLine(ctx, c.ID, variantID, quantity)
	})
	if err != nil {
		return err
	}
	s.open.Store(true)
	return nil
}

// UpdateQuantity sets a line's quantity. It is a no-op when no cart is
// loaded; a quantity of zero or less removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, lineID string, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, lineID)
	}
	return s.mutate(ctx, "UpdateQuantity", false, func(ctx context.Context, c *Cart) (*Cart, error) {
		return s.backend.UpdateLine(ctx, c.ID, lineID, quantity)
	})
}

// RemoveItem deletes a line. It is a no-op when no cart is loaded.
func (s *Store) RemoveItem(ctx context.Context, lineID string) error {
	return s.mutate(ctx, "RemoveItem", false, func(ctx context.Context, c *Cart) (*Cart, error) {
		return s.backend.RemoveLine(ctx, c.ID, lineID)
	})
}

// Increment raises a line's quantity by one.
func (s *Store) Increment(ctx context.Context, lineID string) error {
	return s.mutate(ctx, "Increment", false, func(ctx context.Context, c *Cart) (*Cart, error) {
		line, ok := c.Line(lineID)
		if !ok {
			return nil, nil
		}
		return s.backend.UpdateLine(ctx, c.ID, lineID, line.Quantity+1)
	})
}

// Decrement lowers a line's quantity by one. A line at quantity 1 is removed
// instead of being updated to zero.
func (s *Store) Decrement(ctx context.Context, lineID string) error {
	return s.mutate(ctx, "Decrement", false, func(ctx context.Context, c *Cart) (*Cart, error) {
		line, ok := c.Line(lineID)
		if !ok {
			return nil, nil
		}
		if line.Quantity <= 1 {
			return s.backend.RemoveLine(ctx, c.ID, lineID)
		}
		return s.backend.UpdateLine(ctx, c.ID, lineID, line.Quantity-1)
	})
}

// ApplyDiscountCode adds a discount code to the cart. Codes already present
// (case-insensitive) and blank codes are ignored.
func (s *Store) ApplyDiscountCode(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil
	}
	return s.mutate(ctx, "ApplyDiscountCode", false, func(ctx context.Context, c *Cart) (*Cart, error) {
		codes := make([]string, 0, len(c.DiscountCodes)+1)
		for _, dc := range c.DiscountCodes {
			if strings.EqualFold(dc.Code, code) {
				return nil, nil
			}
			codes = append(codes, dc.Code)
		}
		return s.backend.UpdateDiscountCodes(ctx, c.ID, append(codes, code))
	})
}

// ClearDiscountCodes removes every discount code from the cart.
func (s *Store) ClearDiscountCodes(ctx context.Context) error {
	return s.mutate(ctx, "ClearDiscountCodes", false, func(ctx context.Context, c *Cart) (*Cart, error) {
		if len(c.DiscountCodes) == 0 {
			return nil, nil
		}
		return s.backend.UpdateDiscountCodes(ctx, c.ID, nil)
	})
}

// mutation computes the next snapshot from the current one. A nil cart with
// a nil error means there is nothing to do.
type mutation func(ctx context.Context, current *Cart) (*Cart, error)

const (
	outcomeOK     = "ok"
	outcomeNoop   = "noop"
	outcomeFailed = "failed"
)

// mutate runs fn in its turn. With create set, a missing cart is rehydrated
// or created first; otherwise a missing cart makes the call a no-op.
func (s *Store) mutate(ctx context.Context, op string, create bool, fn mutation) error {
	s.pending.Add(1)
	defer s.pending.Add(-1)

	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "cart."+op, trace.WithAttributes(attribute.String("cart.op", op)))
	defer span.End()

	outcome, err := s.runMutation(ctx, op, create, fn)
	s.metrics.record(ctx, op, outcome, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *Store) runMutation(ctx context.Context, op string, create bool, fn mutation) (string, error) {
	if err := s.acquire(ctx); err != nil {
		return outcomeFailed, errors.Wrap(err, "wait for turn")
	}
	defer s.release()

	current := s.snapshot.Load()
	if current == nil {
		if !create {
			return outcomeNoop, nil
		}
		c, err := s.ensureCart(ctx)
		if err != nil {
			return outcomeFailed, s.fail(ctx, op, err)
		}
		current = c
	}

	next, err := fn(ctx, current)
	if err != nil {
		return outcomeFailed, s.fail(ctx, op, err)
	}
	if next == nil {
		return outcomeNoop, nil
	}
	s.snapshot.Store(next)
	s.touch(ctx, next.ID)
	return outcomeOK, nil
}

// ensureCart returns the loaded cart, rehydrating or creating one as needed.
// Must hold the turn.
func (s *Store) ensureCart(ctx context.Context) (*Cart, error) {
	if c := s.snapshot.Load(); c != nil {
		return c, nil
	}
	c, err := s.rehydrate(ctx)
	if err != nil {
		return nil, err
	}
	if c != nil {
		return c, nil
	}
	return s.create(ctx)
}

// rehydrate adopts the cart named by the slot. It returns nil without error
// when the slot is empty or the stored cart no longer exists; in the latter
// case the slot is cleared. Must hold the turn.
func (s *Store) rehydrate(ctx context.Context) (*Cart, error) {
	id, err := s.ids.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load cart id")
	}
	if id == "" {
		return nil, nil
	}

	c, err := s.backend.GetCart(ctx, id)
	switch {
	case err == nil:
		s.snapshot.Store(c)
		s.touch(ctx, c.ID)
		return c, nil
	case errors.Is(err, ErrNotFound):
		s.lg.Info("Stored cart no longer resolves, discarding", zap.String("cart_id", id))
		if err := s.ids.Clear(ctx); err != nil {
			return nil, errors.Wrap(err, "clear cart id")
		}
		return nil, nil
	default:
		return nil, errors.Wrap(err, "get cart")
	}
}

// create makes a new remote cart, persists its identifier and adopts it.
// Must hold the turn.
func (s *Store) create(ctx context.Context) (*Cart, error) {
	c, err := s.backend.CreateCart(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "create cart")
	}
	if err := s.ids.Save(ctx, c.ID); err != nil {
		// The cart stays usable for this store; only rehydration is lost.
		s.lg.Warn("Persist cart id", zap.String("cart_id", c.ID), zap.Error(err))
	}
	s.snapshot.Store(c)
	s.lg.Debug("Cart created", zap.String("cart_id", c.ID))
	return c, nil
}

// touch re-saves the identifier so slot expiry counts from the last use,
// not from creation. Must hold the turn.
func (s *Store) touch(ctx context.Context, id string) {
	if err := s.ids.Save(ctx, id); err != nil {
		s.lg.Warn("Refresh cart id", zap.String("cart_id", id), zap.Error(err))
	}
}

func (s *Store) fail(ctx context.Context, op string, err error) error {
	s.lg.Error("Cart operation failed", zap.String("op", op), zap.Error(err))
	s.alerter.Alert(ctx, AlertMessage)
	return &OperationError{Op: op, Err: err}
}

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.turn <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release() { <-s.turn }

type storeMetrics struct {
	mutations metric.Int64Counter
	duration  metric.Float64Histogram
}

func newStoreMetrics(mp metric.MeterProvider, lg *zap.Logger) storeMetrics {
	meter := mp.Meter(instrumentationName)

	var (
		m   storeMetrics
		err error
	)
	if m.mutations, err = meter.Int64Counter("cart.mutations",
		metric.WithDescription("Cart mutations by operation and outcome"),
	); err != nil {
		lg.Warn("Create cart.mutations counter", zap.Error(err))
		m.mutations = noop.Int64Counter{}
	}
	if m.duration, err = meter.Float64Histogram("cart.mutation.duration",
		metric.WithDescription("Cart mutation latency including queueing"),
		metric.WithUnit("s"),
	); err != nil {
		lg.Warn("Create cart.mutation.duration histogram", zap.Error(err))
		m.duration = noop.Float64Histogram{}
	}
	return m
}

func (m storeMetrics) record(ctx context.Context, op, outcome string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	)
	m.mutations.Add(ctx, 1, attrs)
	m.duration.Record(ctx, d.Seconds(), attrs)
}
