package store

import (
	"time"

	"github.com/google/uuid"

	"julianmorley.ca/pasargad/storefront/pkg/models"
)

// NotificationTTL is how long a non-error notification stays visible.
const NotificationTTL = 5000 * time.Millisecond

// AddNotification appends a toast. Anything but an error removes itself after NotificationTTL.
func (s *Store) AddNotification(typ models.NotificationType, message string) models.Notification {
	if !typ.Valid() {
		typ = models.NotificationInfo
	}
	n := models.Notification{
		ID:        uuid.NewString(),
		Type:      typ,
		Message:   message,
		Timestamp: s.now(),
	}

	s.update(func(st *State) {
		st.Notifications = append(st.Notifications, n)
	})

	if n.AutoDismiss() {
		id := n.ID
		cancel := s.schedule(NotificationTTL, func() {
			s.RemoveNotification(id)
		})
		s.mu.Lock()
		if s.hasNotificationLocked(id) {
			s.timers[id] = cancel
		}
		s.mu.Unlock()
	}
	return n
}

func (s *Store) RemoveNotification(id string) {
	s.mu.Lock()
	if cancel, ok := s.timers[id]; ok {
		cancel()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.update(func(st *State) {
		kept := st.Notifications[:0:0]
		for _, n := range st.Notifications {
			if n.ID != id {
				kept = append(kept, n)
			}
		}
		st.Notifications = kept
	})
}

func (s *Store) ClearNotifications() {
	s.mu.Lock()
	for id, cancel := range s.timers {
		cancel()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.update(func(st *State) { st.Notifications = nil })
}

func (s *Store) hasNotificationLocked(id string) bool {
	for _, n := range s.state.Notifications {
		if n.ID == id {
			return true
		}
	}
	return false
}
