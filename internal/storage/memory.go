package storage

import (
	"context"
	"strings"
	"sync"
	"time"
)

// InMemoryStore is a thread-safe store used when a database is not configured.
type InMemoryStore struct {
	mu         sync.RWMutex
	nextID     int64
	users      []User
	rooms      []GeneratedRoom
	guestRooms []GuestRoom
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

// CreateGeneratedRoom appends a redesign record.
func (s *InMemoryStore) CreateGeneratedRoom(_ context.Context, room GeneratedRoom) (GeneratedRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room.ID = s.id()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	if room.Analysis != nil {
		analysis := *room.Analysis
		room.Analysis = &analysis
	}
	s.rooms = append(s.rooms, room)
	return room, nil
}

// ListGeneratedRooms returns a user's records, newest first.
func (s *InMemoryStore) ListGeneratedRooms(_ context.Context, email string, limit int) ([]GeneratedRoom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = clampLimit(limit)
	rooms := []GeneratedRoom{}
	for i := len(s.rooms) - 1; i >= 0 && len(rooms) < limit; i-- {
		if strings.EqualFold(s.rooms[i].UserEmail, strings.TrimSpace(email)) {
			rooms = append(rooms, s.rooms[i])
		}
	}
	return rooms, nil
}

// CountGeneratedRooms reports how many redesign records exist.
func (s *InMemoryStore) CountGeneratedRooms() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// CreateGuestRoom appends an ephemeral guest record.
func (s *InMemoryStore) CreateGuestRoom(_ context.Context, room GuestRoom) (GuestRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room.ID = s.id()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	s.guestRooms = append(s.guestRooms, room)
	return room, nil
}

// ListGuestRooms returns unexpired records of a guest session, newest first.
func (s *InMemoryStore) ListGuestRooms(_ context.Context, sessionID string, now time.Time) ([]GuestRoom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := []GuestRoom{}
	for i := len(s.guestRooms) - 1; i >= 0; i-- {
		room := s.guestRooms[i]
		if room.SessionID == sessionID && room.ExpiresAt.After(now) {
			rooms = append(rooms, room)
		}
	}
	return rooms, nil
}

// PurgeExpiredGuestRooms drops guest records whose expiry has passed.
func (s *InMemoryStore) PurgeExpiredGuestRooms(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.guestRooms[:0]
	var purged int64
	for _, room := range s.guestRooms {
		if room.ExpiresAt.After(now) {
			kept = append(kept, room)
			continue
		}
		purged++
	}
	s.guestRooms = kept
	return purged, nil
}

// EnsureUser returns the existing user for the email or creates one with default credits.
func (s *InMemoryStore) EnsureUser(_ context.Context, user User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := s.userIndex(user.Email); idx >= 0 {
		return s.users[idx], nil
	}
	user.ID = s.id()
	user.Email = strings.TrimSpace(user.Email)
	user.Credits = DefaultCredits
	s.users = append(s.users, user)
	return user, nil
}

// GetUserByEmail looks a user up case-insensitively.
func (s *InMemoryStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.userIndex(email)
	if idx < 0 {
		return User{}, ErrNotFound
	}
	return s.users[idx], nil
}

// DeductCredit spends one credit.
func (s *InMemoryStore) DeductCredit(_ context.Context, email string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.userIndex(email)
	if idx < 0 {
		return 0, ErrNotFound
	}
	if s.users[idx].Credits <= 0 {
		return 0, ErrNoCredits
	}
	s.users[idx].Credits--
	return s.users[idx].Credits, nil
}

// AddCredits grants amount credits.
func (s *InMemoryStore) AddCredits(_ context.Context, email string, amount int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.userIndex(email)
	if idx < 0 {
		return 0, ErrNotFound
	}
	s.users[idx].Credits += amount
	return s.users[idx].Credits, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() {}

func (s *InMemoryStore) userIndex(email string) int {
	email = strings.TrimSpace(email)
	for i, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			return i
		}
	}
	return -1
}
