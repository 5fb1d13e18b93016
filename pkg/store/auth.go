package store

import (
	"context"
	"encoding/json"

	"julianmorley.ca/pasargad/storefront/pkg/api"
	"julianmorley.ca/pasargad/storefront/pkg/models"
)

var _ api.Credentials = (*Store)(nil)

// Token returns the session token, or "" when signed out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Auth.Token
}

// Invalidate is called by the API client when the backend answers 401.
func (s *Store) Invalidate(ctx context.Context) {
	s.log.Info("session invalidated by backend")
	s.clearSession(ctx)
}

func (s *Store) Login(ctx context.Context, creds models.Credentials) error {
	resp, err := s.backend.Login(ctx, creds)
	if err != nil {
		s.log.WithError(err).Warnf("login failed: %s", api.Message(err))
		return err
	}
	s.startSession(ctx, resp.User, resp.Token)
	return nil
}

func (s *Store) Register(ctx context.Context, req models.RegisterRequest) error {
	resp, err := s.backend.Register(ctx, req)
	if err != nil {
		s.log.WithError(err).Warnf("registration failed: %s", api.Message(err))
		return err
	}
	s.startSession(ctx, resp.User, resp.Token)
	return nil
}

// Logout always ends the local session; telling the backend is best effort.
func (s *Store) Logout(ctx context.Context) {
	if err := s.backend.Logout(ctx); err != nil {
		s.log.WithError(err).Debug("logout notification failed")
	}
	s.clearSession(ctx)
}

// SetUser replaces the session. It is authenticated only when both user and token are set.
func (s *Store) SetUser(ctx context.Context, user *models.User, token string) {
	snap := s.update(func(st *State) {
		st.Auth = AuthState{
			User:            user,
			Token:           token,
			IsAuthenticated: user != nil && token != "",
		}
	})
	s.persistAuth(ctx, snap.Auth)
}

func (s *Store) startSession(ctx context.Context, user models.User, token string) {
	s.persist(ctx, KeyToken, token)
	if raw, err := json.Marshal(user); err == nil {
		s.persist(ctx, KeyUser, string(raw))
	}

	snap := s.update(func(st *State) {
		st.Auth = AuthState{User: &user, Token: token, IsAuthenticated: token != ""}
	})
	s.persistAuth(ctx, snap.Auth)
	s.log.WithField("user", user.Username).Info("session started")
}

func (s *Store) clearSession(ctx context.Context) {
	s.forget(ctx, KeyToken, KeyUser, KeyAuthState)
	s.update(func(st *State) {
		st.Auth = AuthState{}
	})
}

func (s *Store) persistAuth(ctx context.Context, auth AuthState) {
	raw, err := json.Marshal(auth)
	if err != nil {
		s.log.WithError(err).Warn("failed to encode auth state")
		return
	}
	s.persist(ctx, KeyAuthState, string(raw))
}

func (s *Store) loadAuth(ctx context.Context) AuthState {
	var auth AuthState
	if raw, ok := s.lookup(ctx, KeyAuthState); ok {
		if err := json.Unmarshal([]byte(raw), &auth); err != nil {
			s.log.WithError(err).Warn("discarding unreadable auth state")
			auth = AuthState{}
		}
	} else if token, ok := s.lookup(ctx, KeyToken); ok {
		if raw, ok := s.lookup(ctx, KeyUser); ok {
			var user models.User
			if err := json.Unmarshal([]byte(raw), &user); err == nil {
				auth = AuthState{User: &user, Token: token}
			}
		}
	}
	auth.IsAuthenticated = auth.User != nil && auth.Token != ""
	return auth
}
