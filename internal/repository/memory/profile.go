package memory

import (
	"context"
	"sync"
	"time"

	"eventsponsor.messaging/internal/model"
)

// ProfileRepo is an in-memory profile store.
type ProfileRepo struct {
	mu       sync.RWMutex
	profiles map[string]model.Profile
}

// NewProfileRepo creates a store seeded with profiles.
func NewProfileRepo(profiles ...model.Profile) *ProfileRepo {
	r := &ProfileRepo{profiles: make(map[string]model.Profile, len(profiles))}
	for _, p := range profiles {
		r.profiles[p.ID] = p
	}
	return r
}

// Put inserts or replaces a profile.
func (r *ProfileRepo) Put(p model.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	r.profiles[p.ID] = p
}

func (r *ProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// PresenceRepo tracks presence without expiry.
type PresenceRepo struct {
	mu       sync.RWMutex
	online   map[string]bool
	lastSeen map[string]int64
	now      func() int64
}

// NewPresenceRepo creates an empty presence store.
func NewPresenceRepo() *PresenceRepo {
	return &PresenceRepo{
		online:   make(map[string]bool),
		lastSeen: make(map[string]int64),
		now:      func() int64 { return time.Now().UnixMilli() },
	}
}

func (r *PresenceRepo) Get(ctx context.Context, userID string) (bool, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.online[userID], r.lastSeen[userID], nil
}

func (r *PresenceRepo) MarkOnline(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.online[userID] = true
	r.lastSeen[userID] = r.now()
	return nil
}

func (r *PresenceRepo) MarkOffline(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.online, userID)
	r.lastSeen[userID] = r.now()
	return nil
}
