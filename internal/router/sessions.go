package router

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"julianmorley.ca/pasargad/storefront/pkg/api"
	"julianmorley.ca/pasargad/storefront/pkg/checkout"
	"julianmorley.ca/pasargad/storefront/pkg/global"
	"julianmorley.ca/pasargad/storefront/pkg/store"
)

// SessionCookie identifies a browser across requests.
const SessionCookie = "shop_session-id"

// Session is everything the shell keeps for one browser.
type Session struct {
	ID       string
	Store    *store.Store
	API      *api.Client
	Checkout *checkout.Coordinator
	Resolver *checkout.Resolver

	lastSeen time.Time
	// closed once Hydrate has run
	ready chan struct{}
}

// Registry owns the live sessions. Evicted sessions are rebuilt from the
// persister on their next request.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	client    *api.Client
	persister store.Persister
	log       logrus.FieldLogger
	storeOpts []store.Option
	now       func() time.Time
}

func NewRegistry(client *api.Client, persister store.Persister, log logrus.FieldLogger, opts ...store.Option) *Registry {
	if log == nil {
		log = global.DiscardLogger()
	}
	return &Registry{
		sessions:  make(map[string]*Session),
		client:    client,
		persister: persister,
		log:       log,
		storeOpts: opts,
		now:       time.Now,
	}
}

// NewSessionID returns a fresh browser session id.
func NewSessionID() string {
	return uuid.NewString()
}

// ValidSessionID reports whether id looks like one we issued.
func ValidSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Get returns the session for id, creating and hydrating it on first use.
// Requests racing the first one wait for hydration before they see it.
func (r *Registry) Get(ctx context.Context, id string) *Session {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if ok {
		sess.lastSeen = r.now()
		r.mu.Unlock()
		select {
		case <-sess.ready:
		case <-ctx.Done():
		}
		return sess
	}

	sess = r.build(id)
	r.sessions[id] = sess
	r.mu.Unlock()

	sess.Store.Hydrate(ctx)
	close(sess.ready)
	return sess
}

func (r *Registry) build(id string) *Session {
	log := r.log.WithField("session", id)
	opts := append([]store.Option{store.WithLogger(log)}, r.storeOpts...)

	st := store.New(store.ClientConnector(r.client), store.Namespace(r.persister, "session:"+id+":"), opts...)
	client := r.client.WithSession(st)

	return &Session{
		ID:       id,
		Store:    st,
		API:      client,
		Checkout: checkout.NewCoordinator(st, client, log),
		Resolver: checkout.NewResolver(st, client, log),
		lastSeen: r.now(),
		ready:    make(chan struct{}),
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Prune drops sessions idle for longer than idle and returns how many went.
func (r *Registry) Prune(idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	var stale []*Session
	for id, sess := range r.sessions {
		if sess.lastSeen.Before(cutoff) {
			stale = append(stale, sess)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, sess := range stale {
		sess.Store.Reset()
	}
	return len(stale)
}

// PruneEvery runs Prune on a ticker until ctx is done.
func (r *Registry) PruneEvery(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Prune(idle); n > 0 {
				r.log.WithField("count", n).Info("pruned idle sessions")
			}
		}
	}
}
