package store

import (
	"context"

	"julianmorley.ca/pasargad/storefront/pkg/api"
)

// FetchCart replaces the cart slice with the server's cart.
func (s *Store) FetchCart(ctx context.Context) error {
	s.update(func(st *State) {
		st.Cart.IsLoading = true
		st.Cart.Error = ""
	})

	cart, err := api.Retry(ctx, s.cartAttempts, s.cartRetryDelay, s.backend.GetCart)
	if err != nil {
		s.update(func(st *State) {
			st.Cart.IsLoading = false
			st.Cart.Error = api.Message(err)
		})
		return err
	}

	now := s.now()
	s.update(func(st *State) {
		st.Cart.Cart = cart
		st.Cart.IsLoading = false
		st.Cart.LastUpdated = now
		st.Cart.Error = ""
	})
	return nil
}

func (s *Store) AddToCart(ctx context.Context, productID, quantity int) error {
	return s.mutateCart(ctx, func(ctx context.Context) error {
		return s.backend.AddToCart(ctx, productID, quantity)
	})
}

func (s *Store) UpdateCartItem(ctx context.Context, itemID, quantity int) error {
	return s.mutateCart(ctx, func(ctx context.Context) error {
		return s.backend.UpdateCartItem(ctx, itemID, quantity)
	})
}

func (s *Store) RemoveFromCart(ctx context.Context, itemID int) error {
	return s.mutateCart(ctx, func(ctx context.Context) error {
		return s.backend.RemoveFromCart(ctx, itemID)
	})
}

// ClearCart empties the server cart and drops the local copy without refetching.
func (s *Store) ClearCart(ctx context.Context) error {
	s.update(func(st *State) { st.Cart.Error = "" })

	if err := s.backend.ClearCart(ctx); err != nil {
		s.update(func(st *State) { st.Cart.Error = api.Message(err) })
		return err
	}

	now := s.now()
	s.update(func(st *State) {
		st.Cart.Cart = nil
		st.Cart.LastUpdated = now
	})
	return nil
}

func (s *Store) ClearError() {
	s.update(func(st *State) { st.Cart.Error = "" })
}

// mutateCart runs call and, on success, refetches the whole cart. The
// server stays authoritative for stock-bound quantities, so nothing is
// patched locally.
func (s *Store) mutateCart(ctx context.Context, call func(context.Context) error) error {
	s.update(func(st *State) { st.Cart.Error = "" })

	if err := call(ctx); err != nil {
		s.update(func(st *State) { st.Cart.Error = api.Message(err) })
		return err
	}
	return s.FetchCart(ctx)
}
