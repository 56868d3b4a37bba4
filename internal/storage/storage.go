// Package storage persists the per-session cart identifier slot.
package storage

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/lumiere-storefront/internal/domain/cart"
)

// ErrNotFound is returned by KeyValue.Get when the key holds no value.
var ErrNotFound = errors.New("key not found")

// KeyValue is a persistent string map keyed by storage context.
type KeyValue interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

var _ cart.IDStore = Slot{}

// Slot adapts one key of a KeyValue to cart.IDStore.
type Slot struct {
	KV  KeyValue
	Key string
}

// Load returns the stored cart identifier, or "" when the slot is empty.
func (s Slot) Load(ctx context.Context) (string, error) {
	v, err := s.KV.Get(ctx, s.Key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "load slot %q", s.Key)
	}
	return v, nil
}

// Save stores the cart identifier.
func (s Slot) Save(ctx context.Context, id string) error {
	if err := s.KV.Set(ctx, s.Key, id); err != nil {
		return errors.Wrapf(err, "save slot %q", s.Key)
	}
	return nil
}

// Clear empties the slot.
func (s Slot) Clear(ctx context.Context) error {
	if err := s.KV.Delete(ctx, s.Key); err != nil {
		return errors.Wrapf(err, "clear slot %q", s.Key)
	}
	return nil
}
