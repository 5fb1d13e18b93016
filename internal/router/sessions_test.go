package router_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"julianmorley.ca/pasargad/storefront/internal/router"
	"julianmorley.ca/pasargad/storefront/pkg/api"
	"julianmorley.ca/pasargad/storefront/pkg/models"
	"julianmorley.ca/pasargad/storefront/pkg/store"
)

// gatedPersister holds the first auth read until release is closed.
type gatedPersister struct {
	*store.MemoryPersister
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *gatedPersister) Get(ctx context.Context, key string) (string, bool, error) {
	if strings.HasSuffix(key, store.KeyAuthState) {
		p.once.Do(func() {
			close(p.entered)
			<-p.release
		})
	}
	return p.MemoryPersister.Get(ctx, key)
}

func signedInPersister(t *testing.T, id string) *store.MemoryPersister {
	t.Helper()
	mem := store.NewMemoryPersister()
	raw, err := json.Marshal(store.AuthState{User: &models.User{ID: 7, Username: "ava"}, Token: "tok-ava"})
	require.NoError(t, err)
	require.NoError(t, mem.Set(context.Background(), "session:"+id+":"+store.KeyAuthState, string(raw)))
	return mem
}

func TestRegistry_RacingFirstRequestsWaitForHydration(t *testing.T) {
	id := router.NewSessionID()
	p := &gatedPersister{
		MemoryPersister: signedInPersister(t, id),
		entered:         make(chan struct{}),
		release:         make(chan struct{}),
	}
	reg := router.NewRegistry(api.NewClient("http://127.0.0.1:0"), p, nil)

	first := make(chan *router.Session, 1)
	go func() { first <- reg.Get(context.Background(), id) }()
	<-p.entered

	second := make(chan *router.Session, 1)
	go func() { second <- reg.Get(context.Background(), id) }()

	select {
	case <-second:
		t.Fatal("second request got the session before it was hydrated")
	case <-time.After(20 * time.Millisecond):
	}
	close(p.release)

	a, b := <-first, <-second
	assert.Same(t, a, b)
	auth := b.Store.Snapshot().Auth
	assert.True(t, auth.IsAuthenticated)
	require.NotNil(t, auth.User)
	assert.Equal(t, "ava", auth.User.Username)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_CancelledWaiterReturns(t *testing.T) {
	id := router.NewSessionID()
	p := &gatedPersister{
		MemoryPersister: signedInPersister(t, id),
		entered:         make(chan struct{}),
		release:         make(chan struct{}),
	}
	defer close(p.release)
	reg := router.NewRegistry(api.NewClient("http://127.0.0.1:0"), p, nil)

	go reg.Get(context.Background(), id)
	<-p.entered

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NotNil(t, reg.Get(ctx, id))
}

func TestRegistry_NilLoggerIsDiscarded(t *testing.T) {
	reg := router.NewRegistry(api.NewClient("http://127.0.0.1:0"), store.NewMemoryPersister(), nil)

	var sess *router.Session
	require.NotPanics(t, func() { sess = reg.Get(context.Background(), router.NewSessionID()) })
	assert.True(t, sess.Store.Hydrated())
	assert.False(t, sess.Store.Snapshot().Auth.IsAuthenticated)
	assert.Equal(t, 1, reg.Prune(-time.Minute))
}
