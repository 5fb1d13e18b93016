package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"julianmorley.ca/pasargad/storefront/internal/fakebackend"
	"julianmorley.ca/pasargad/storefront/pkg/api"
	"julianmorley.ca/pasargad/storefront/pkg/models"
	"julianmorley.ca/pasargad/storefront/pkg/store"
)

type timer struct {
	delay     time.Duration
	fire      func()
	cancelled bool
}

// manualScheduler holds timers until the test fires them.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*timer
}

func (m *manualScheduler) schedule(d time.Duration, f func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	tm := &timer{delay: d, fire: f}
	m.timers = append(m.timers, tm)
	return func() {
		m.mu.Lock()
		tm.cancelled = true
		m.mu.Unlock()
	}
}

func (m *manualScheduler) fireAll() {
	m.mu.Lock()
	pending := m.timers
	m.timers = nil
	m.mu.Unlock()
	for _, tm := range pending {
		if !tm.cancelled {
			tm.fire()
		}
	}
}

func (m *manualScheduler) pending() []*timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*timer(nil), m.timers...)
}

type fixture struct {
	backend   *fakebackend.Backend
	client    *api.Client
	persister *store.MemoryPersister
	scheduler *manualScheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := fakebackend.New()
	srv := b.Start()
	t.Cleanup(srv.Close)
	b.AddUser("ava", "secret")
	return &fixture{
		backend:   b,
		client:    api.NewClient(srv.URL),
		persister: store.NewMemoryPersister(),
		scheduler: &manualScheduler{},
	}
}

func (f *fixture) newStore() *store.Store {
	return store.New(store.ClientConnector(f.client), f.persister,
		store.WithScheduler(f.scheduler.schedule),
		store.WithCartRetry(2, 0),
	)
}

func (f *fixture) signedInStore(t *testing.T) *store.Store {
	t.Helper()
	st := f.newStore()
	require.NoError(t, st.Login(context.Background(), models.Credentials{Username: "ava", Password: "secret"}))
	return st
}

// Session
func TestLogin_PersistsSession(t *testing.T) {
	f := newFixture(t)
	st := f.signedInStore(t)

	auth := st.Snapshot().Auth
	assert.True(t, auth.IsAuthenticated)
	require.NotNil(t, auth.User)
	assert.Equal(t, "ava", auth.User.Username)
	assert.Equal(t, auth.Token, st.Token())

	token, ok, err := f.persister.Get(context.Background(), store.KeyToken)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, auth.Token, token)

	raw, ok, _ := f.persister.Get(context.Background(), store.KeyAuthState)
	require.True(t, ok)
	var persisted store.AuthState
	require.NoError(t, json.Unmarshal([]byte(raw), &persisted))
	assert.True(t, persisted.IsAuthenticated)
}

func TestLogin_FailureLeavesSessionEmpty(t *testing.T) {
	f := newFixture(t)
	st := f.newStore()

	err := st.Login(context.Background(), models.Credentials{Username: "ava", Password: "nope"})
	require.Error(t, err)
	assert.False(t, st.Snapshot().Auth.IsAuthenticated)
	assert.Zero(t, f.persister.Len())
}

func TestLogout_ClearsEvenWhenBackendFails(t *testing.T) {
	f := newFixture(t)
	st := f.signedInStore(t)
	f.backend.Fail(http.MethodPost, "/api/logout/", http.StatusInternalServerError, gin.H{"error": "boom"})

	st.Logout(context.Background())

	auth := st.Snapshot().Auth
	assert.False(t, auth.IsAuthenticated)
	assert.Nil(t, auth.User)
	assert.Empty(t, auth.Token)
	for _, key := range []string{store.KeyToken, store.KeyUser, store.KeyAuthState} {
		_, ok, _ := f.persister.Get(context.Background(), key)
		assert.False(t, ok, key)
	}
}

func TestHydrate_RestoresSessionAndRecentOrders(t *testing.T) {
	f := newFixture(t)
	first := f.signedInStore(t)
	first.AddRecentOrder(context.Background(), models.Order{ID: 11, OrderID: "ORD-00011"})

	second := f.newStore()
	assert.False(t, second.Hydrated())
	second.Hydrate(context.Background())

	snap := second.Snapshot()
	assert.True(t, second.Hydrated())
	assert.True(t, snap.Auth.IsAuthenticated)
	assert.Equal(t, first.Token(), snap.Auth.Token)
	require.Len(t, snap.Orders.RecentOrders, 1)
	assert.Equal(t, 11, snap.Orders.RecentOrders[0].ID)

	require.NoError(t, second.FetchCart(context.Background()))
}

func TestHydrate_FallsBackToTokenAndUserKeys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.persister.Set(ctx, store.KeyToken, "tok-legacy"))
	require.NoError(t, f.persister.Set(ctx, store.KeyUser, `{"id":3,"username":"ava"}`))

	st := f.newStore()
	st.Hydrate(ctx)
	auth := st.Snapshot().Auth
	assert.True(t, auth.IsAuthenticated)
	assert.Equal(t, "tok-legacy", auth.Token)
}

func TestSetUser_RequiresBothUserAndToken(t *testing.T) {
	f := newFixture(t)
	st := f.newStore()

	st.SetUser(context.Background(), &models.User{ID: 1}, "")
	assert.False(t, st.Snapshot().Auth.IsAuthenticated)

	st.SetUser(context.Background(), nil, "tok")
	assert.False(t, st.Snapshot().Auth.IsAuthenticated)

	st.SetUser(context.Background(), &models.User{ID: 1}, "tok")
	assert.True(t, st.Snapshot().Auth.IsAuthenticated)
}

func TestExpiredToken_InvalidatesSession(t *testing.T) {
	f := newFixture(t)
	st := f.signedInStore(t)
	f.backend.RevokeTokens()

	err := st.FetchCart(context.Background())
	require.Error(t, err)
	assert.True(t, api.IsSessionExpired(err))
	assert.False(t, st.Snapshot().Auth.IsAuthenticated)
	assert.Equal(t, api.MsgSessionExpired, st.Snapshot().Cart.Error)
	assert.Equal(t, 1, f.backend.Calls(http.MethodGet, "/api/cart/"))

	_, ok, _ := f.persister.Get(context.Background(), store.KeyToken)
	assert.False(t, ok)
}

// Cart
func TestAddToCart_RefetchesServerCart(t *testing.T) {
	f := newFixture(t)
	st := f.signedInStore(t)
	p := f.backend.AddProduct("Poster", "19.99", 5)

	require.NoError(t, st.AddToCart(context.Background(), p.ID, 2))

	cs := st.Snapshot().Cart
	require.NotNil(t, cs.Cart)
	require.Len(t, cs.Cart.Items, 1)
	assert.Equal(t, 2, cs.Cart.Items[0].Quantity)
	assert.True(t, cs.Cart.TotalPrice.Equal(decimal.RequireFromString("39.98")))
	assert.False(t, cs.IsLoading)
	assert.Empty(t, cs.Error)
	assert.False(t, cs.LastUpdated.IsZero())
	assert.Equal(t, 1, f.backend.Calls(http.MethodGet, "/api/cart/"))

	item := cs.Cart.Items[0]
	require.NoError(t, st.UpdateCartItem(context.Background(), item.ID, 4))
	assert.Equal(t, 4, st.Snapshot().Cart.Cart.Items[0].Quantity)

	require.NoError(t, st.RemoveFromCart(context.Background(), item.ID))
	assert.True(t, st.Snapshot().Cart.Cart.IsEmpty())
}

func TestAddToCart_InvalidQuantityRecordsError(t *testing.T) {
	f := newFixture(t)
	st := f.signedInStore(t)

	err := st.AddToCart(context.Background(), 1, 0)
	var inputErr *api.InputError
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, "Quantity must be greater than 0", st.Snapshot().Cart.Error)
	assert.Zero(t, f.backend.Calls(http.MethodPost, "/api/cart/add/"))

	st.ClearError()
	assert.Empty(t, st.Snapshot().Cart.Error)
}

func TestAddToCart_StockErrorKeepsPreviousCart(t *testing.T) {
	f := newFixture(t)
	st := f.signedInStore(t)
	p := f.backend.AddProduct("Poster", "19.99", 2)
	require.NoError(t, st.AddToCart(context.Background(), p.ID, 2))

	err := st.AddToCart(context.Background(), p.ID, 1)
	require.Error(t, err)
	cs := st.Snapshot().Cart
	assert.Equal(t, "Only 2 items available in stock", cs.Error)
	assert.Equal(t, 2, cs.Cart.Items[0].Quantity)
}

func TestFetchCart_RetriesServerErrors(t *testing.T) {
	f := newFixture(t)
	st := f.signedInStore(t)
	f.backend.FailN(http.MethodGet, "/api/cart/", 1, http.StatusServiceUnavailable, gin.H{"error": "busy"})

	require.NoError(t, st.FetchCart(context.Background()))
	assert.Equal(t, 2, f.backend.Calls(http.MethodGet, "/api/cart/"))

	f.backend.Fail(http.MethodGet, "/api/cart/", http.StatusServiceUnavailable, gin.H{"error": "busy"})
	err := st.FetchCart(context.Background())
	require.Error(t, err)
	assert.Equal(t, 4, f.backend.Calls(http.MethodGet, "/api/cart/"))
	cs := st.Snapshot().Cart
	assert.Equal(t, api.MsgServer, cs.Error)
	assert.False(t, cs.IsLoading)
}

func TestClearCart_DropsLocalCopy(t *testing.T) {
	f := newFixture(t)
	st := f.signedInStore(t)
	p := f.backend.AddProduct("Poster", "19.99", 5)
	require.NoError(t, st.AddToCart(context.Background(), p.ID, 1))
	fetches := f.backend.Calls(http.MethodGet, "/api/cart/")

	require.NoError(t, st.ClearCart(context.Background()))
	assert.Nil(t, st.Snapshot().Cart.Cart)
	assert.Equal(t, fetches, f.backend.Calls(http.MethodGet, "/api/cart/"))
	server := f.backend.Cart("ava")
	assert.True(t, server.IsEmpty())
}

// Orders
func TestClock_StampsCartNotificationsAndMarkers(t *testing.T) {
	f := newFixture(t)
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	st := store.New(store.ClientConnector(f.client), f.persister,
		store.WithScheduler(f.scheduler.schedule),
		store.WithClock(func() time.Time { return at }),
	)
	ctx := context.Background()
	require.NoError(t, st.Login(ctx, models.Credentials{Username: "ava", Password: "secret"}))

	p := f.backend.AddProduct("Poster", "19.99", 5)
	require.NoError(t, st.AddToCart(ctx, p.ID, 1))
	assert.True(t, at.Equal(st.Snapshot().Cart.LastUpdated))

	n := st.AddNotification(models.NotificationInfo, "Saved")
	assert.True(t, at.Equal(n.Timestamp))

	st.MarkCheckoutProcessed(ctx, "cs_clock")
	raw, ok, err := f.persister.Get(ctx, "checkout-processed:cs_clock")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024-03-01T09:30:00Z", raw)
}

func TestRecentOrders_DedupedNewestFirstAndCapped(t *testing.T) {
	f := newFixture(t)
	st := f.newStore()
	ctx := context.Background()

	for id := 1; id <= 12; id++ {
		st.AddRecentOrder(ctx, models.Order{ID: id})
	}
	st.SetCurrentOrder(ctx, &models.Order{ID: 5, Status: "shipped"})

	snap := st.Snapshot().Orders
	require.Len(t, snap.RecentOrders, store.MaxRecentOrders)
	assert.Equal(t, 5, snap.RecentOrders[0].ID)
	assert.Equal(t, "shipped", snap.RecentOrders[0].Status)
	assert.Equal(t, 12, snap.RecentOrders[1].ID)
	require.NotNil(t, snap.CurrentOrder)

	seen := map[int]bool{}
	for _, o := range snap.RecentOrders {
		assert.False(t, seen[o.ID], "duplicate order %d", o.ID)
		seen[o.ID] = true
	}

	st.SetCurrentOrder(ctx, nil)
	assert.Nil(t, st.Snapshot().Orders.CurrentOrder)
	assert.Len(t, st.Snapshot().Orders.RecentOrders, store.MaxRecentOrders)
}

func TestOrderLoadingFlags(t *testing.T) {
	f := newFixture(t)
	st := f.newStore()

	st.SetOrderLoading(true, "")
	assert.True(t, st.Snapshot().Orders.IsLoadingOrder)
	st.SetOrderLoading(false, "Order not found")
	assert.Equal(t, "Order not found", st.Snapshot().Orders.OrderError)
	st.ClearOrderError()
	assert.Empty(t, st.Snapshot().Orders.OrderError)
}

func TestCheckoutProcessedMarker(t *testing.T) {
	f := newFixture(t)
	st := f.newStore()
	ctx := context.Background()

	assert.False(t, st.CheckoutProcessed(ctx, "cs_1"))
	st.MarkCheckoutProcessed(ctx, "cs_1")
	assert.True(t, st.CheckoutProcessed(ctx, "cs_1"))
	assert.False(t, st.CheckoutProcessed(ctx, "cs_2"))

	assert.True(t, f.newStore().CheckoutProcessed(ctx, "cs_1"))
}

// Notifications
func TestNotifications_AutoDismissExceptErrors(t *testing.T) {
	f := newFixture(t)
	st := f.newStore()

	ok := st.AddNotification(models.NotificationSuccess, "Saved")
	bad := st.AddNotification(models.NotificationError, "Broken")
	assert.NotEqual(t, ok.ID, bad.ID)

	timers := f.scheduler.pending()
	require.Len(t, timers, 1)
	assert.Equal(t, store.NotificationTTL, timers[0].delay)

	f.scheduler.fireAll()
	left := st.Snapshot().Notifications
	require.Len(t, left, 1)
	assert.Equal(t, bad.ID, left[0].ID)

	st.RemoveNotification(bad.ID)
	assert.Empty(t, st.Snapshot().Notifications)
}

func TestNotifications_UnknownTypeBecomesInfo(t *testing.T) {
	f := newFixture(t)
	st := f.newStore()

	n := st.AddNotification("shout", "Hello")
	assert.Equal(t, models.NotificationInfo, n.Type)
}

func TestNotifications_ManualRemovalCancelsTimer(t *testing.T) {
	f := newFixture(t)
	st := f.newStore()

	n := st.AddNotification(models.NotificationInfo, "Heads up")
	st.RemoveNotification(n.ID)

	timers := f.scheduler.pending()
	require.Len(t, timers, 1)
	assert.True(t, timers[0].cancelled)

	st.AddNotification(models.NotificationWarning, "Again")
	st.ClearNotifications()
	assert.Empty(t, st.Snapshot().Notifications)
}

func TestNotifications_ImmediateSchedulerLeavesNothingBehind(t *testing.T) {
	f := newFixture(t)
	st := store.New(store.ClientConnector(f.client), f.persister,
		store.WithScheduler(func(_ time.Duration, fn func()) func() {
			fn()
			return func() {}
		}),
	)

	st.AddNotification(models.NotificationSuccess, "Gone already")
	assert.Empty(t, st.Snapshot().Notifications)
}

// Subscriptions
func TestSubscribe_ReceivesEveryUpdate(t *testing.T) {
	f := newFixture(t)
	st := f.newStore()

	var got []store.State
	unsubscribe := st.Subscribe(func(s store.State) { got = append(got, s) })

	st.AddNotification(models.NotificationError, "one")
	st.ClearNotifications()
	require.Len(t, got, 2)
	assert.Len(t, got[0].Notifications, 1)
	assert.Empty(t, got[1].Notifications)

	unsubscribe()
	st.AddNotification(models.NotificationError, "two")
	assert.Len(t, got, 2)
}

func TestReset_DropsMemoryButKeepsPersistence(t *testing.T) {
	f := newFixture(t)
	st := f.signedInStore(t)
	st.Hydrate(context.Background())

	st.Reset()
	assert.False(t, st.Snapshot().Auth.IsAuthenticated)
	assert.False(t, st.Hydrated())

	st.Hydrate(context.Background())
	assert.True(t, st.Snapshot().Auth.IsAuthenticated)
}
