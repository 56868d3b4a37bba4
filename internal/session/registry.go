// Package session maps shopper sessions to their cart stores.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/lumiere-storefront/internal/domain/cart"
	"github.com/xenking/lumiere-storefront/internal/storage"
)

// DefaultIdleTimeout is how long an unused store stays in memory.
const DefaultIdleTimeout = 30 * time.Minute

// Options configures a Registry.
type Options struct {
	// Store is applied to every cart store the registry creates.
	Store       cart.StoreOptions
	IdleTimeout time.Duration
}

type entry struct {
	store    *cart.Store
	lastSeen atomic.Int64
}

// Registry owns one cart.Store per session key. Stores are created on first
// use, initialized against the persisted cart identifier and dropped from
// memory once idle; the identifier slot outlives them.
type Registry struct {
	backend cart.Backend
	kv      storage.KeyValue
	opts    Options
	lg      *zap.Logger
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry
	group    singleflight.Group
}

// NewRegistry creates a Registry.
func NewRegistry(backend cart.Backend, kv storage.KeyValue, opts Options) *Registry {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	lg := opts.Store.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Registry{
		backend:  backend,
		kv:       kv,
		opts:     opts,
		lg:       lg,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// NewKey returns a fresh session key.
func NewKey() string {
	return uuid.NewString()
}

// Get returns the store of the session, creating and initializing it on
// first use. Initialization failures are logged; the store is returned
// regardless and recovers on the next mutation.
func (r *Registry) Get(ctx context.Context, key string) (*cart.Store, error) {
	if key == "" {
		return nil, errors.New("empty session key")
	}
	if s := r.lookup(key); s != nil {
		return s, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		if s := r.lookup(key); s != nil {
			return s, nil
		}
		opts := r.opts.Store
		opts.Logger = r.lg.With(zap.String("session", key))
		s := cart.NewStore(r.backend, storage.Slot{KV: r.kv, Key: key}, opts)

		// The store outlives the request that created it.
		if err := s.Initialize(context.WithoutCancel(ctx)); err != nil {
			r.lg.Warn("Initialize cart", zap.String("session", key), zap.Error(err))
		}

		e := &entry{store: s}
		e.lastSeen.Store(r.now().UnixNano())
		r.mu.Lock()
		r.sessions[key] = e
		r.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*cart.Store), nil
}

func (r *Registry) lookup(key string) *cart.Store {
	r.mu.RLock()
	e, ok := r.sessions[key]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	e.lastSeen.Store(r.now().UnixNano())
	return e.store
}

// Len returns the number of stores in memory.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Evict drops stores idle for longer than the idle timeout and returns how
// many were dropped. Stores with a mutation in flight are kept.
func (r *Registry) Evict() int {
	cutoff := r.now().Add(-r.opts.IdleTimeout).UnixNano()

	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for key, e := range r.sessions {
		if e.lastSeen.Load() < cutoff && !e.store.IsLoading() {
			delete(r.sessions, key)
			n++
		}
	}
	return n
}

// StartCleanup evicts idle stores every interval until ctx is done.
func (r *Registry) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.Evict(); n > 0 {
					r.lg.Debug("Evicted idle carts", zap.Int("count", n), zap.Int("remaining", r.Len()))
				}
			}
		}
	}()
}
