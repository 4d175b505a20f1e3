package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/kilianp07/smartcharge/core/clock"
	"github.com/kilianp07/smartcharge/core/logger"
	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/internal/eventbus"
)

// Add installs p in store. A profile already holding the same connector,
// stack level and purpose is replaced in place; otherwise p is appended to
// its purpose bucket. The profile is not validated.
func Add(ctx context.Context, store Store, p model.ChargingProfile) (EventKind, error) {
	set, err := store.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("load profiles: %w", err)
	}
	bucket := set.Profiles(p.Purpose)
	kind := Added
	out := make([]model.ChargingProfile, 0, len(bucket)+1)
	for _, existing := range bucket {
		if existing.Key() == p.Key() {
			out = append(out, p)
			kind = Replaced
			continue
		}
		out = append(out, existing)
	}
	if kind == Added {
		out = append(out, p)
	}
	if err := store.Set(ctx, p.Purpose, out); err != nil {
		return 0, fmt.Errorf("store %s: %w", p.Purpose, err)
	}
	return kind, nil
}

// Remove deletes the profile matching both connectorID and profileID from
// the first purpose bucket holding one. It reports whether a profile was
// found; an unknown profile is not an error.
func Remove(ctx context.Context, store Store, connectorID, profileID int) (model.ChargingProfile, bool, error) {
	set, err := store.Get(ctx)
	if err != nil {
		return model.ChargingProfile{}, false, fmt.Errorf("load profiles: %w", err)
	}
	for _, purpose := range model.Purposes {
		bucket := set.Profiles(purpose)
		var (
			kept    = make([]model.ChargingProfile, 0, len(bucket))
			removed model.ChargingProfile
			found   bool
		)
		for _, p := range bucket {
			if p.ConnectorID == connectorID && p.ProfileID == profileID {
				removed, found = p, true
				continue
			}
			kept = append(kept, p)
		}
		if !found {
			continue
		}
		if err := store.Set(ctx, purpose, kept); err != nil {
			return model.ChargingProfile{}, false, fmt.Errorf("store %s: %w", purpose, err)
		}
		return removed, true, nil
	}
	return model.ChargingProfile{}, false, nil
}

// Registry serialises profile changes for one charge point, validates
// incoming profiles and announces every change on its event bus.
type Registry struct {
	mu    sync.Mutex
	store Store
	bus   *eventbus.TypedBus[Event]
	clock clock.Clock
	log   logger.Logger
}

// Option customises a Registry.
type Option func(*Registry)

func WithClock(c clock.Clock) Option { return func(r *Registry) { r.clock = c } }

func WithLogger(l logger.Logger) Option { return func(r *Registry) { r.log = l } }

// New creates a Registry backed by store. A nil store selects a MemoryStore.
func New(store Store, opts ...Option) *Registry {
	if store == nil {
		store = NewMemoryStore()
	}
	r := &Registry{
		store: store,
		bus:   eventbus.NewTyped[Event](),
		clock: clock.System{},
		log:   logger.Nop{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Add validates and installs p.
func (r *Registry) Add(ctx context.Context, p model.ChargingProfile) (EventKind, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	kind, err := Add(ctx, r.store, p)
	r.mu.Unlock()
	if err != nil {
		return 0, err
	}
	r.log.Infof("profile %d %s on connector %d (%s, stack level %d)", p.ProfileID, kind, p.ConnectorID, p.Purpose, p.StackLevel)
	r.bus.Publish(eventFor(kind, p, r.clock.Now().Time))
	return kind, nil
}

// Remove deletes the profile identified by connectorID and profileID.
func (r *Registry) Remove(ctx context.Context, connectorID, profileID int) (bool, error) {
	r.mu.Lock()
	removed, ok, err := Remove(ctx, r.store, connectorID, profileID)
	r.mu.Unlock()
	if err != nil || !ok {
		return false, err
	}
	r.log.Infof("profile %d removed from connector %d", profileID, connectorID)
	r.bus.Publish(eventFor(Removed, removed, r.clock.Now().Time))
	return true, nil
}

// Find returns the first installed profile with the given id.
func (r *Registry) Find(ctx context.Context, profileID int) (model.ChargingProfile, bool, error) {
	set, err := r.Profiles(ctx)
	if err != nil {
		return model.ChargingProfile{}, false, err
	}
	for _, purpose := range model.Purposes {
		for _, p := range set.Profiles(purpose) {
			if p.ProfileID == profileID {
				return p, true, nil
			}
		}
	}
	return model.ChargingProfile{}, false, nil
}

// Profiles returns a snapshot of the installed profiles.
func (r *Registry) Profiles(ctx context.Context) (model.ProfileSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Get(ctx)
}

// Subscribe returns a channel receiving registry events. Slow subscribers
// miss events rather than blocking writers.
func (r *Registry) Subscribe() <-chan Event { return r.bus.Subscribe() }

func (r *Registry) Unsubscribe(ch <-chan Event) { r.bus.Unsubscribe(ch) }

// Close closes every subscriber channel.
func (r *Registry) Close() { r.bus.Close() }
