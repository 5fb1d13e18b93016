package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"julianmorley.ca/pasargad/storefront/pkg/models"
)

// MaxRecentOrders caps the order memory.
const MaxRecentOrders = 10

// SetCurrentOrder records the order being viewed. A non-nil order is also
// remembered as recent.
func (s *Store) SetCurrentOrder(ctx context.Context, order *models.Order) {
	s.update(func(st *State) { st.Orders.CurrentOrder = order })
	if order != nil {
		s.AddRecentOrder(ctx, *order)
	}
}

// AddRecentOrder puts order at the front, dropping any older copy and anything past the cap.
func (s *Store) AddRecentOrder(ctx context.Context, order models.Order) {
	snap := s.update(func(st *State) {
		st.Orders.RecentOrders = pushRecent(st.Orders.RecentOrders, order)
	})
	s.persistRecentOrders(ctx, snap.Orders.RecentOrders)
}

func (s *Store) ClearOrderError() {
	s.update(func(st *State) { st.Orders.OrderError = "" })
}

// SetOrderLoading flags an order fetch in progress; err is recorded when it ends badly.
func (s *Store) SetOrderLoading(loading bool, errMsg string) {
	s.update(func(st *State) {
		st.Orders.IsLoadingOrder = loading
		st.Orders.OrderError = errMsg
	})
}

// CheckoutProcessed reports whether the post-payment step already ran for sessionID.
func (s *Store) CheckoutProcessed(ctx context.Context, sessionID string) bool {
	_, ok := s.lookup(ctx, fmt.Sprintf(keyProcessedFmt, sessionID))
	return ok
}

func (s *Store) MarkCheckoutProcessed(ctx context.Context, sessionID string) {
	s.persist(ctx, fmt.Sprintf(keyProcessedFmt, sessionID), s.now().UTC().Format(time.RFC3339))
}

func pushRecent(recent []models.Order, order models.Order) []models.Order {
	out := make([]models.Order, 0, MaxRecentOrders)
	out = append(out, order)
	for _, o := range recent {
		if len(out) == MaxRecentOrders {
			break
		}
		if o.ID != order.ID {
			out = append(out, o)
		}
	}
	return out
}

type persistedOrders struct {
	RecentOrders []models.Order `json:"recent_orders"`
}

func (s *Store) persistRecentOrders(ctx context.Context, recent []models.Order) {
	raw, err := json.Marshal(persistedOrders{RecentOrders: recent})
	if err != nil {
		s.log.WithError(err).Warn("failed to encode recent orders")
		return
	}
	s.persist(ctx, KeyOrderState, string(raw))
}

func (s *Store) loadRecentOrders(ctx context.Context) []models.Order {
	raw, ok := s.lookup(ctx, KeyOrderState)
	if !ok {
		return nil
	}
	var po persistedOrders
	if err := json.Unmarshal([]byte(raw), &po); err != nil {
		s.log.WithError(err).Warn("discarding unreadable recent orders")
		return nil
	}
	if len(po.RecentOrders) > MaxRecentOrders {
		po.RecentOrders = po.RecentOrders[:MaxRecentOrders]
	}
	return po.RecentOrders
}
