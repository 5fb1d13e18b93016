// Package store holds the client-side view of one shopper: session, cart,
// recently viewed orders and pending notifications.
//
// A Store is built once per browser session and is safe for concurrent use.
// Every slice update goes through a single locked dispatch; network calls
// run outside the lock. Subscribers receive a copy of the state after each
// update.
package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"julianmorley.ca/pasargad/storefront/pkg/api"
	"julianmorley.ca/pasargad/storefront/pkg/global"
	"julianmorley.ca/pasargad/storefront/pkg/models"
)

// Backend is the subset of the REST API the store drives.
type Backend interface {
	Login(ctx context.Context, creds models.Credentials) (*models.AuthResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	Logout(ctx context.Context) error
	GetCart(ctx context.Context) (*models.Cart, error)
	AddToCart(ctx context.Context, productID, quantity int) error
	UpdateCartItem(ctx context.Context, itemID, quantity int) error
	RemoveFromCart(ctx context.Context, itemID int) error
	ClearCart(ctx context.Context) error
}

// Connector builds a Backend that authenticates with the store's session.
type Connector func(creds api.Credentials) Backend

// ClientConnector binds a shared API client to each store's credentials.
func ClientConnector(client *api.Client) Connector {
	return func(creds api.Credentials) Backend {
		return client.WithSession(creds)
	}
}

// Scheduler runs f after d and returns a function that cancels it.
type Scheduler func(d time.Duration, f func()) (cancel func())

func afterFunc(d time.Duration, f func()) func() {
	t := time.AfterFunc(d, f)
	return func() { t.Stop() }
}

type AuthState struct {
	User            *models.User `json:"user"`
	Token           string       `json:"token"`
	IsAuthenticated bool         `json:"is_authenticated"`
}

type CartState struct {
	Cart        *models.Cart `json:"cart"`
	IsLoading   bool         `json:"is_loading"`
	Error       string       `json:"error,omitempty"`
	LastUpdated time.Time    `json:"last_updated,omitzero"`
}

type OrderState struct {
	CurrentOrder   *models.Order  `json:"current_order"`
	RecentOrders   []models.Order `json:"recent_orders"`
	IsLoadingOrder bool           `json:"is_loading_order"`
	OrderError     string         `json:"order_error,omitempty"`
}

// State is a point-in-time copy of every slice. Treat nested pointers as read-only.
type State struct {
	Auth          AuthState             `json:"auth"`
	Cart          CartState             `json:"cart"`
	Orders        OrderState            `json:"orders"`
	Notifications []models.Notification `json:"notifications"`
}

type Store struct {
	mu    sync.RWMutex
	state State

	backend   Backend
	persister Persister
	log       logrus.FieldLogger
	schedule  Scheduler
	now       func() time.Time

	cartAttempts   int
	cartRetryDelay time.Duration

	timers   map[string]func()
	subs     map[int]func(State)
	nextSub  int
	hydrated bool
}

type Option func(*Store)

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Store) { s.log = log }
}

func WithScheduler(schedule Scheduler) Option {
	return func(s *Store) { s.schedule = schedule }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithCartRetry overrides how many times a cart fetch is attempted.
func WithCartRetry(attempts int, delay time.Duration) Option {
	return func(s *Store) {
		s.cartAttempts = attempts
		s.cartRetryDelay = delay
	}
}

func New(connect Connector, persister Persister, opts ...Option) *Store {
	s := &Store{
		persister:      persister,
		log:            global.DiscardLogger(),
		schedule:       afterFunc,
		now:            time.Now,
		cartAttempts:   2,
		cartRetryDelay: api.DefaultRetryDelay,
		timers:         make(map[string]func()),
		subs:           make(map[int]func(State)),
	}
	if s.persister == nil {
		s.persister = NewMemoryPersister()
	}
	for _, opt := range opts {
		opt(s)
	}
	s.backend = connect(s)
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	st := s.state
	st.Orders.RecentOrders = slices.Clone(s.state.Orders.RecentOrders)
	st.Notifications = slices.Clone(s.state.Notifications)
	return st
}

// Subscribe registers fn to receive the state after every update.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// update applies fn under the lock and notifies subscribers outside it.
func (s *Store) update(fn func(*State)) State {
	s.mu.Lock()
	fn(&s.state)
	snap := s.snapshotLocked()
	subs := make([]func(State), 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub(snap)
	}
	return snap
}

// Reset drops all in-memory state and pending timers. Persisted data is kept.
func (s *Store) Reset() {
	s.mu.Lock()
	for id, cancel := range s.timers {
		cancel()
		delete(s.timers, id)
	}
	s.hydrated = false
	s.mu.Unlock()

	s.update(func(st *State) { *st = State{} })
}

// Hydrated reports whether Hydrate has completed since construction or Reset.
func (s *Store) Hydrated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hydrated
}

// Hydrate restores the persisted auth and order slices. It must run before
// the first cart fetch so the token is attached.
func (s *Store) Hydrate(ctx context.Context) {
	auth := s.loadAuth(ctx)
	recent := s.loadRecentOrders(ctx)

	s.update(func(st *State) {
		st.Auth = auth
		st.Orders.RecentOrders = recent
	})

	s.mu.Lock()
	s.hydrated = true
	s.mu.Unlock()
}

func (s *Store) persist(ctx context.Context, key, value string) {
	if err := s.persister.Set(ctx, key, value); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("failed to persist store state")
	}
}

func (s *Store) forget(ctx context.Context, keys ...string) {
	if err := RemoveAll(ctx, s.persister, keys...); err != nil {
		s.log.WithError(err).WithField("keys", keys).Warn("failed to remove persisted store state")
	}
}

func (s *Store) lookup(ctx context.Context, key string) (string, bool) {
	v, ok, err := s.persister.Get(ctx, key)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("failed to read persisted store state")
		return "", false
	}
	return v, ok
}
