package registry

import (
	"context"
	"sync"

	"github.com/kilianp07/smartcharge/core/model"
)

// Store persists the installed profiles, one ordered list per purpose.
type Store interface {
	Get(ctx context.Context) (model.ProfileSet, error)
	Set(ctx context.Context, purpose model.Purpose, profiles []model.ChargingProfile) error
}

// MemoryStore keeps profiles in memory. Slices are copied on the way in and
// out so callers never share backing arrays with the store.
type MemoryStore struct {
	mu  sync.RWMutex
	set model.ProfileSet
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(context.Context) (model.ProfileSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set.Clone(), nil
}

func (s *MemoryStore) Set(_ context.Context, purpose model.Purpose, profiles []model.ChargingProfile) error {
	if !purpose.Submittable() {
		return model.ErrUnknownPurpose
	}
	s.mu.Lock()
	s.set.SetProfiles(purpose, model.CloneProfiles(profiles))
	s.mu.Unlock()
	return nil
}
