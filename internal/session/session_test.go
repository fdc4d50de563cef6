package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/inventory"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupManager(t *testing.T) (*Manager, *storage.MemoryStore) {
	t.Helper()
	kv := storage.NewMemoryStore()
	catalog := inventory.NewMemoryStore(
		&domain.Product{ID: 7, Name: "Canvas Slip-On", Price: decimal.NewFromInt(19990), Stock: 5},
	)
	return NewManager(kv, catalog, zap.NewNop()), kv
}

func testUser() *domain.User {
	return &domain.User{ID: "u1", Nombre: "Ana Pérez", Email: "ana@example.com"}
}

func TestOpen_ReturnsSameSession(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	a, err := m.Open(ctx, "s1")
	require.NoError(t, err)
	b, err := m.Open(ctx, "s1")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Nil(t, a.User())

	_, err = m.Open(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestLogin_PersistsUser(t *testing.T) {
	m, kv := setupManager(t)
	ctx := context.Background()

	s, err := m.Login(ctx, "s1", testUser())
	require.NoError(t, err)
	require.NotNil(t, s.User())
	assert.Equal(t, "u1", s.User().ID)

	// a fresh manager over the same storage sees the user and the cart
	require.NoError(t, s.Cart.AddItem(ctx, 7, 2, domain.NoSize))
	other := NewManager(kv, inventory.NewMemoryStore(), zap.NewNop())
	restored, err := other.Open(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, restored.User())
	assert.Equal(t, "ana@example.com", restored.User().Email)
	assert.Equal(t, 2, restored.Cart.Snapshot().ItemCount)
}

func TestLogin_ReloadsCart(t *testing.T) {
	m, kv := setupManager(t)
	ctx := context.Background()

	s, err := m.Open(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, s.Cart.Snapshot().IsEmpty())

	require.NoError(t, kv.Set(ctx, storage.CartKey("s1"), `[{"productId":7,"name":"Canvas Slip-On","unitPrice":"19990","quantity":3}]`))

	s, err = m.Login(ctx, "s1", testUser())
	require.NoError(t, err)
	assert.Equal(t, 3, s.Cart.Snapshot().ItemCount)
}

func TestLogin_RequiresUser(t *testing.T) {
	m, _ := setupManager(t)
	_, err := m.Login(context.Background(), "s1", nil)
	assert.Equal(t, domain.KindInvalidArgument, domain.KindOf(err))
}

func TestLogin_UserIsCopied(t *testing.T) {
	m, _ := setupManager(t)
	u := testUser()
	s, err := m.Login(context.Background(), "s1", u)
	require.NoError(t, err)

	u.Nombre = "changed"
	assert.Equal(t, "Ana Pérez", s.User().Nombre)
}

func TestLogout_ClearsEverything(t *testing.T) {
	m, kv := setupManager(t)
	ctx := context.Background()

	s, err := m.Login(ctx, "s1", testUser())
	require.NoError(t, err)
	require.NoError(t, s.Cart.AddItem(ctx, 7, 1, domain.NoSize))

	require.NoError(t, m.Logout(ctx, "s1"))
	assert.True(t, s.Cart.Snapshot().IsEmpty())
	assert.Nil(t, s.User())

	_, err = kv.Get(ctx, storage.CartKey("s1"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = kv.Get(ctx, storage.SessionKey("s1"))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	fresh, err := m.Open(ctx, "s1")
	require.NoError(t, err)
	assert.NotSame(t, s, fresh)
	assert.Nil(t, fresh.User())
	assert.True(t, fresh.Cart.Snapshot().IsEmpty())
}

func TestLogout_UnknownSession(t *testing.T) {
	m, _ := setupManager(t)
	assert.NoError(t, m.Logout(context.Background(), "never-seen"))
	assert.ErrorIs(t, m.Logout(context.Background(), ""), ErrInvalidID)
}

type failingKV struct {
	*storage.MemoryStore
	err error
}

func (f *failingKV) Set(context.Context, string, string) error { return f.err }

func TestLogin_PersistFailure(t *testing.T) {
	kv := &failingKV{MemoryStore: storage.NewMemoryStore(), err: errors.New("redis down")}
	m := NewManager(kv, inventory.NewMemoryStore(), zap.NewNop())

	_, err := m.Login(context.Background(), "s1", testUser())
	assert.Equal(t, domain.KindPersistence, domain.KindOf(err))

	s, err := m.Open(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, s.User())
}

func TestOpen_CorruptUserIsGuest(t *testing.T) {
	m, kv := setupManager(t)
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, storage.SessionKey("s1"), "{not json"))

	s, err := m.Open(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, s.User())
}

func TestOpen_EvictsLeastRecentlyUsed(t *testing.T) {
	kv := storage.NewMemoryStore()
	catalog := inventory.NewMemoryStore(&domain.Product{ID: 7, Name: "Canvas Slip-On", Price: decimal.NewFromInt(19990), Stock: 5})
	m := NewManager(kv, catalog, zap.NewNop(), WithMaxSessions(2))
	ctx := context.Background()

	first, err := m.Open(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, first.Cart.AddItem(ctx, 7, 2, domain.NoSize))

	for i := 2; i <= 3; i++ {
		_, err := m.Open(ctx, fmt.Sprintf("s%d", i))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, m.Len())

	// s1 was dropped and comes back from storage
	again, err := m.Open(ctx, "s1")
	require.NoError(t, err)
	assert.NotSame(t, first, again)
	assert.Equal(t, 2, again.Cart.Snapshot().ItemCount)
}

func TestOpen_DropsIdleSessions(t *testing.T) {
	kv := storage.NewMemoryStore()
	m := NewManager(kv, inventory.NewMemoryStore(), zap.NewNop(), WithIdleTTL(50*time.Millisecond))
	ctx := context.Background()

	_, err := m.Login(ctx, "s1", testUser())
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())

	assert.Eventually(t, func() bool { return m.Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	s, err := m.Open(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, s.User())
	assert.Equal(t, "u1", s.User().ID)
}

func TestPeek_DoesNotKeepSession(t *testing.T) {
	m, kv := setupManager(t)
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, storage.CartKey("s1"), `[{"productId":7,"name":"Canvas Slip-On","unitPrice":"19990","quantity":1}]`))

	s, err := m.Peek(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Cart.Snapshot().ItemCount)
	assert.Zero(t, m.Len())

	live, err := m.Open(ctx, "s1")
	require.NoError(t, err)
	peeked, err := m.Peek(ctx, "s1")
	require.NoError(t, err)
	assert.Same(t, live, peeked)

	_, err = m.Peek(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidID)
}
