package guestcart

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

var (
	tee = domain.ProductVariant{ID: "tee", ProductName: "Tee", VariantName: "M", PriceCents: 500}
	mug = domain.ProductVariant{ID: "mug", ProductName: "Mug", PriceCents: 1000}
)

type failingStorage struct {
	*MemoryStorage
	failSave bool
}

func (f *failingStorage) Save(ctx context.Context, key string, data []byte) error {
	if f.failSave {
		return errors.New("disk full")
	}
	return f.MemoryStorage.Save(ctx, key, data)
}

func openStore(t *testing.T, storage Storage, opts ...Option) *Store {
	t.Helper()
	s, err := Open(context.Background(), storage, "device-1", opts...)
	require.NoError(t, err)
	return s
}

func TestAddItem_CollapsesPerVariantAndAssignsID(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, NewMemoryStorage())
	assert.Empty(t, s.AnonymousID())

	require.NoError(t, s.AddItem(ctx, tee, 1))
	id := s.AnonymousID()
	assert.True(t, strings.HasPrefix(id, "guest_"))

	require.NoError(t, s.AddItem(ctx, mug, 1))
	require.NoError(t, s.AddItem(ctx, tee, 2))

	lines := s.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "tee", lines[0].ProductVariantID)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.Equal(t, "Tee", lines[0].Snapshot.ProductName)
	assert.Equal(t, id, s.AnonymousID(), "anonymous id is stable")
	assert.Equal(t, int64(2500), s.TotalPrice())
	assert.Equal(t, 4, s.TotalItems())
}

func TestAddItem_KeepsFirstPriceSnapshot(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, NewMemoryStorage())
	require.NoError(t, s.AddItem(ctx, tee, 1))

	repriced := tee
	repriced.PriceCents = 900
	require.NoError(t, s.AddItem(ctx, repriced, 1))

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, int64(500), lines[0].UnitPriceCents)
}

func TestAddItem_RejectsNonPositiveQuantity(t *testing.T) {
	s := openStore(t, NewMemoryStorage())
	err := s.AddItem(context.Background(), tee, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	assert.Empty(t, s.Lines())
}

func TestWithAnonymousID_SeedsFirstAdd(t *testing.T) {
	s := openStore(t, NewMemoryStorage(), WithAnonymousID("guest_session"))
	require.NoError(t, s.AddItem(context.Background(), tee, 1))
	assert.Equal(t, "guest_session", s.AnonymousID())
}

func TestRemoveItem_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, NewMemoryStorage())
	require.NoError(t, s.AddItem(ctx, tee, 1))

	require.NoError(t, s.RemoveItem(ctx, "tee"))
	require.NoError(t, s.RemoveItem(ctx, "tee"))
	require.NoError(t, s.RemoveItem(ctx, "unknown"))
	assert.Empty(t, s.Lines())
}

func TestUpdateQuantity_PruneZero(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, NewMemoryStorage())
	require.NoError(t, s.AddItem(ctx, tee, 2))
	require.NoError(t, s.AddItem(ctx, mug, 1))

	require.NoError(t, s.UpdateQuantity(ctx, "tee", 5))
	line, ok := findLine(s.Lines(), "tee")
	require.True(t, ok)
	assert.Equal(t, 5, line.Quantity)

	require.NoError(t, s.UpdateQuantity(ctx, "tee", -3))
	_, ok = findLine(s.Lines(), "tee")
	assert.False(t, ok, "zero quantity line is removed")
	assert.Len(t, s.Lines(), 1)
}

func TestUpdateQuantity_KeepZero(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	s := openStore(t, storage, WithZeroQuantityPolicy(KeepZero))
	require.NoError(t, s.AddItem(ctx, tee, 2))

	require.NoError(t, s.UpdateQuantity(ctx, "tee", -1))
	line, ok := findLine(s.Lines(), "tee")
	require.True(t, ok)
	assert.Equal(t, 0, line.Quantity)
	assert.Equal(t, int64(0), s.TotalPrice())

	reopened := openStore(t, storage, WithZeroQuantityPolicy(KeepZero))
	line, ok = findLine(reopened.Lines(), "tee")
	require.True(t, ok)
	assert.Equal(t, 0, line.Quantity)
}

func TestOpen_PruneZeroDropsStoredZeroLines(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	kept := openStore(t, storage, WithZeroQuantityPolicy(KeepZero))
	require.NoError(t, kept.AddItem(ctx, tee, 2))
	require.NoError(t, kept.AddItem(ctx, mug, 1))
	require.NoError(t, kept.UpdateQuantity(ctx, "tee", 0))

	pruned := openStore(t, storage)
	require.Len(t, pruned.Lines(), 1)
	assert.Equal(t, "mug", pruned.Lines()[0].ProductVariantID)
	assert.Equal(t, kept.AnonymousID(), pruned.AnonymousID())
}

func TestUpdateQuantity_UnknownVariantIsNoop(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, NewMemoryStorage())
	require.NoError(t, s.AddItem(ctx, tee, 1))
	require.NoError(t, s.UpdateQuantity(ctx, "mug", 4))
	assert.Len(t, s.Lines(), 1)
}

func TestClear_KeepsAnonymousID(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	s := openStore(t, storage)
	require.NoError(t, s.AddItem(ctx, tee, 1))
	id := s.AnonymousID()

	require.NoError(t, s.Clear(ctx))
	assert.Empty(t, s.Lines())
	assert.Equal(t, id, s.AnonymousID())

	reopened := openStore(t, storage)
	assert.Equal(t, id, reopened.AnonymousID())
}

func TestNonce_NewAfterDestroyKeptByClear(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	s := openStore(t, storage, WithAnonymousID("guest_session"))
	assert.Empty(t, s.Nonce())

	require.NoError(t, s.AddItem(ctx, tee, 1))
	first := s.Nonce()
	require.NotEmpty(t, first)
	require.NoError(t, s.AddItem(ctx, mug, 1))
	assert.Equal(t, first, s.Nonce(), "later adds keep the nonce")

	require.NoError(t, s.Clear(ctx))
	assert.Equal(t, first, s.Nonce())
	assert.Equal(t, first, openStore(t, storage).Nonce())

	require.NoError(t, s.Destroy(ctx))
	assert.Empty(t, s.Nonce())
	require.NoError(t, s.AddItem(ctx, tee, 1))
	assert.Equal(t, "guest_session", s.AnonymousID())
	assert.NotEqual(t, first, s.Nonce(), "a refill after Destroy gets a new nonce")
}

func TestDestroy_RemovesStoredCart(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	s := openStore(t, storage)
	require.NoError(t, s.AddItem(ctx, tee, 1))

	require.NoError(t, s.Destroy(ctx))
	assert.Empty(t, s.AnonymousID())

	data, err := storage.Load(ctx, "device-1")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestFailedSaveLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	storage := &failingStorage{MemoryStorage: NewMemoryStorage()}
	s := openStore(t, storage)
	require.NoError(t, s.AddItem(ctx, tee, 1))

	storage.failSave = true
	err := s.AddItem(ctx, tee, 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	line, _ := findLine(s.Lines(), "tee")
	assert.Equal(t, 1, line.Quantity)

	reopened := openStore(t, storage.MemoryStorage)
	line, _ = findLine(reopened.Lines(), "tee")
	assert.Equal(t, 1, line.Quantity)
}

func TestRandomOperations_OneLinePerVariant(t *testing.T) {
	ctx := context.Background()
	variants := []domain.ProductVariant{tee, mug, {ID: "cap", PriceCents: 250}}
	rng := rand.New(rand.NewSource(42))

	for _, policy := range []ZeroQuantityPolicy{PruneZero, KeepZero} {
		s := openStore(t, NewMemoryStorage(), WithZeroQuantityPolicy(policy))
		for i := 0; i < 500; i++ {
			v := variants[rng.Intn(len(variants))]
			switch rng.Intn(3) {
			case 0:
				require.NoError(t, s.AddItem(ctx, v, rng.Intn(3)+1))
			case 1:
				require.NoError(t, s.RemoveItem(ctx, v.ID))
			case 2:
				require.NoError(t, s.UpdateQuantity(ctx, v.ID, rng.Intn(5)-1))
			}

			seen := map[string]bool{}
			for _, l := range s.Lines() {
				require.False(t, seen[l.ProductVariantID], "duplicate line for %s", l.ProductVariantID)
				require.GreaterOrEqual(t, l.Quantity, 0)
				if policy == PruneZero {
					require.Positive(t, l.Quantity)
				}
				seen[l.ProductVariantID] = true
			}
		}
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	s := openStore(t, storage)
	require.NoError(t, s.AddItem(ctx, tee, 2))
	require.NoError(t, s.AddItem(ctx, mug, 1))

	data, err := EncodeSnapshot(s.Snapshot())
	require.NoError(t, err)
	decoded, err := DecodeSnapshot(data)
	require.NoError(t, err)

	assert.Equal(t, s.Snapshot(), decoded)
	assert.Equal(t, s.Lines(), openStore(t, storage).Lines())
}

func TestDecodeSnapshot_FoldsDuplicates(t *testing.T) {
	decoded, err := DecodeSnapshot([]byte(`{"version":1,"anonymousId":"guest_x","lines":[
		{"productVariantId":"tee","quantity":1,"unitPriceInCents":500},
		{"productVariantId":"tee","quantity":2,"unitPriceInCents":700},
		{"productVariantId":"mug","quantity":-4,"unitPriceInCents":100}
	]}`))
	require.NoError(t, err)
	require.Len(t, decoded.Lines, 2)
	assert.Equal(t, 3, decoded.Lines[0].Quantity)
	assert.Equal(t, int64(500), decoded.Lines[0].UnitPriceCents)
	assert.Equal(t, 0, decoded.Lines[1].Quantity)

	_, err = DecodeSnapshot([]byte(`{"version":9}`))
	assert.Error(t, err)
}

func TestSQLiteStorage_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cart.db")

	storage, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	s := openStore(t, storage)
	require.NoError(t, s.AddItem(ctx, tee, 2))
	require.NoError(t, storage.Close())

	storage, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer storage.Close()
	reopened := openStore(t, storage)
	assert.Equal(t, s.Lines(), reopened.Lines())
	assert.Equal(t, s.AnonymousID(), reopened.AnonymousID())

	require.NoError(t, reopened.Destroy(ctx))
	data, err := storage.Load(ctx, "device-1")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestParseZeroQuantityPolicy(t *testing.T) {
	p, err := ParseZeroQuantityPolicy("KEEP")
	require.NoError(t, err)
	assert.Equal(t, KeepZero, p)

	p, err = ParseZeroQuantityPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PruneZero, p)

	_, err = ParseZeroQuantityPolicy("drop")
	assert.Error(t, err)
}

func findLine(lines []domain.CartLine, variantID string) (domain.CartLine, bool) {
	return domain.Cart{Lines: lines}.Line(variantID)
}
