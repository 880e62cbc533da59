package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/ride-ops-console/internal/models"
)

var ErrNotFound = errors.New("storage: not found")

// MessageStore persists chat messages and serves the bounded window the
// widget renders: the most recent N messages of a ride, ascending by
// creation time.
type MessageStore interface {
	Append(ctx context.Context, m *models.ChatMessage) error
	Window(ctx context.Context, rideID int64, limit int) ([]models.ChatMessage, error)
}

// RideStore persists ride records for the admin panel and serves the
// in-progress set the ride feed polls.
type RideStore interface {
	SaveRide(ctx context.Context, r *models.Ride) error
	UpdateRide(ctx context.Context, r *models.Ride) error
	DeleteRide(ctx context.Context, id int64) error
	GetRide(ctx context.Context, id int64) (*models.Ride, error)
	InProgress(ctx context.Context, actorID string) ([]models.RideSummary, error)
}

// MemoryMessageStore keeps messages in process memory. Used in tests and
// when no PG_DSN is configured.
type MemoryMessageStore struct {
	mu   sync.RWMutex
	msgs map[int64][]models.ChatMessage
}

func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{msgs: make(map[int64][]models.ChatMessage)}
}

func (s *MemoryMessageStore) Append(ctx context.Context, m *models.ChatMessage) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs[m.RideID] = append(s.msgs[m.RideID], *m)
	return nil
}

func (s *MemoryMessageStore) Window(ctx context.Context, rideID int64, limit int) ([]models.ChatMessage, error) {
	s.mu.RLock()
	all := make([]models.ChatMessage, len(s.msgs[rideID]))
	copy(all, s.msgs[rideID])
	s.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	if limit > 0 && len(all) > limit {
		// truncation drops the oldest messages, never the newest
		all = all[len(all)-limit:]
	}
	return all, nil
}

// MemoryRideStore mirrors the ride service for local runs.
type MemoryRideStore struct {
	mu     sync.RWMutex
	rides  map[int64]*models.Ride
	nextID int64
}

func NewMemoryRideStore() *MemoryRideStore {
	return &MemoryRideStore{rides: make(map[int64]*models.Ride), nextID: 1}
}

func (s *MemoryRideStore) SaveRide(ctx context.Context, r *models.Ride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == 0 {
		r.ID = s.nextID
		s.nextID++
	}
	cp := *r
	s.rides[r.ID] = &cp
	return nil
}

func (s *MemoryRideStore) UpdateRide(ctx context.Context, r *models.Ride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rides[r.ID]; !ok {
		return ErrNotFound
	}
	cp := *r
	s.rides[r.ID] = &cp
	return nil
}

func (s *MemoryRideStore) DeleteRide(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rides[id]; !ok {
		return ErrNotFound
	}
	delete(s.rides, id)
	return nil
}

func (s *MemoryRideStore) GetRide(ctx context.Context, id int64) (*models.Ride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryRideStore) InProgress(ctx context.Context, actorID string) ([]models.RideSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.rides))
	for id, r := range s.rides {
		if r.Status != models.RideInProgress {
			continue
		}
		if actorID != "" && r.RiderID != actorID && r.DriverID != actorID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]models.RideSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.rides[id].Summary())
	}
	return out, nil
}
