// Package guestcart holds the cart of a shopper who has not signed in yet.
// The cart lives in a key-value Storage, one key per device or anonymous
// session, and every mutation is written through before it becomes visible.
package guestcart

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"storefront/internal/domain"
)

// ZeroQuantityPolicy decides what UpdateQuantity does with a result of zero.
type ZeroQuantityPolicy int

const (
	// PruneZero removes a line whose quantity is set to zero.
	PruneZero ZeroQuantityPolicy = iota
	// KeepZero stores the line with quantity zero.
	KeepZero
)

// ParseZeroQuantityPolicy accepts "prune" or "keep".
func ParseZeroQuantityPolicy(s string) (ZeroQuantityPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "prune":
		return PruneZero, nil
	case "keep":
		return KeepZero, nil
	default:
		return PruneZero, fmt.Errorf("unknown zero quantity policy %q", s)
	}
}

// Storage is a durable key to blob store.
type Storage interface {
	// Load returns nil data and no error when the key does not exist.
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// Option configures a Store.
type Option func(*Store)

// WithZeroQuantityPolicy sets the zero quantity policy. The default is PruneZero.
func WithZeroQuantityPolicy(p ZeroQuantityPolicy) Option {
	return func(s *Store) { s.zeroPolicy = p }
}

// WithAnonymousID seeds the anonymous id used when the stored cart has none.
func WithAnonymousID(id string) Option {
	return func(s *Store) { s.seedID = id }
}

// Store is a guest cart bound to one storage key. It is safe for concurrent
// use within a process; two processes writing the same key race and the
// last write wins.
type Store struct {
	storage    Storage
	key        string
	zeroPolicy ZeroQuantityPolicy
	seedID     string

	mu    sync.Mutex
	state Snapshot
}

// Open loads the cart stored under key, or starts an empty one. Under
// PruneZero, zero lines written by a KeepZero store are dropped on load.
func Open(ctx context.Context, storage Storage, key string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("guest cart: empty storage key")
	}
	s := &Store{storage: storage, key: key}
	for _, opt := range opts {
		opt(s)
	}
	data, err := storage.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load guest cart %s: %w", key, err)
	}
	state, err := DecodeSnapshot(data)
	if err != nil {
		return nil, err
	}
	if s.zeroPolicy == PruneZero {
		state.Lines = withoutZero(state.Lines)
	}
	s.state = state
	return s, nil
}

// Key returns the storage key of the cart.
func (s *Store) Key() string { return s.key }

// AnonymousID returns the correlation id of the cart, or "" before the first add.
func (s *Store) AnonymousID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.AnonymousID
}

// Nonce identifies the current filling of the cart, or "" before the first add.
// Two carts with the same anonymous id and lines but different nonces are
// separate merges.
func (s *Store) Nonce() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Nonce
}

// Lines returns a copy of the current lines in insertion order.
func (s *Store) Lines() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CartLine(nil), s.state.Lines...)
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.state
	out.Lines = append([]domain.CartLine(nil), s.state.Lines...)
	return out
}

// TotalPrice sums quantity times captured unit price over the current lines.
func (s *Store) TotalPrice() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.LinesTotalCents(s.state.Lines)
}

// TotalItems sums quantities over the current lines.
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.LinesTotalItems(s.state.Lines)
}

// AddItem increments the line for v by quantity, or appends a new line
// capturing the current price of v. The first add assigns the anonymous id.
func (s *Store) AddItem(ctx context.Context, v domain.ProductVariant, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	if strings.TrimSpace(v.ID) == "" {
		return domain.Validationf("product variant id required")
	}
	return s.mutate(ctx, func(next *Snapshot) {
		if next.AnonymousID == "" {
			next.AnonymousID = s.seedID
		}
		if next.AnonymousID == "" {
			next.AnonymousID = NewAnonymousID()
		}
		if next.Nonce == "" {
			next.Nonce = uuid.NewString()
		}
		for i := range next.Lines {
			if next.Lines[i].ProductVariantID == v.ID {
				next.Lines[i].Quantity += quantity
				return
			}
		}
		next.Lines = append(next.Lines, domain.CartLine{
			ProductVariantID: v.ID,
			Quantity:         quantity,
			UnitPriceCents:   v.PriceCents,
			Snapshot:         v.Snapshot(),
		})
	})
}

// RemoveItem deletes the line for variantID. Removing an absent line is a no-op.
func (s *Store) RemoveItem(ctx context.Context, variantID string) error {
	return s.mutate(ctx, func(next *Snapshot) {
		next.Lines = without(next.Lines, variantID)
	})
}

// UpdateQuantity sets the quantity of an existing line, clamped to zero.
// Unknown variants are ignored. A zero result follows the zero quantity policy.
func (s *Store) UpdateQuantity(ctx context.Context, variantID string, quantity int) error {
	if quantity < 0 {
		quantity = 0
	}
	return s.mutate(ctx, func(next *Snapshot) {
		if quantity == 0 && s.zeroPolicy == PruneZero {
			next.Lines = without(next.Lines, variantID)
			return
		}
		for i := range next.Lines {
			if next.Lines[i].ProductVariantID == variantID {
				next.Lines[i].Quantity = quantity
				return
			}
		}
	})
}

// Clear empties the cart but keeps its anonymous id and nonce.
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, func(next *Snapshot) {
		next.Lines = nil
	})
}

// Destroy removes the cart from storage, anonymous id and nonce included.
func (s *Store) Destroy(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.storage.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("delete guest cart %s: %w", s.key, err)
	}
	s.state = Snapshot{Version: snapshotVersion}
	return nil
}

// mutate applies fn to a copy of the state, persists the copy and only then
// makes it current.
func (s *Store) mutate(ctx context.Context, fn func(next *Snapshot)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state
	next.Lines = append([]domain.CartLine(nil), s.state.Lines...)
	fn(&next)

	data, err := EncodeSnapshot(next)
	if err != nil {
		return err
	}
	if err := s.storage.Save(ctx, s.key, data); err != nil {
		return fmt.Errorf("save guest cart %s: %w", s.key, err)
	}
	next.Version = snapshotVersion
	s.state = next
	return nil
}

func without(lines []domain.CartLine, variantID string) []domain.CartLine {
	out := lines[:0]
	for _, l := range lines {
		if l.ProductVariantID != variantID {
			out = append(out, l)
		}
	}
	return out
}

func withoutZero(lines []domain.CartLine) []domain.CartLine {
	out := lines[:0]
	for _, l := range lines {
		if l.Quantity > 0 {
			out = append(out, l)
		}
	}
	return out
}

// NewAnonymousID returns a fresh guest correlation id.
func NewAnonymousID() string {
	return "guest_" + uuid.NewString()
}
