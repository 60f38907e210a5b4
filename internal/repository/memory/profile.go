package memory

import (
	"context"
	"sync"

	"github.com/ezrasisk/Buyit/internal/entity"
	"github.com/ezrasisk/Buyit/internal/repository"
)

// Profiles is the in-memory profile store.
type Profiles struct {
	mu       sync.Mutex
	profiles map[entity.Principal]entity.Profile
}

// NewProfiles creates an empty profile store.
func NewProfiles() *Profiles {
	return &Profiles{profiles: make(map[entity.Principal]entity.Profile)}
}

var _ repository.ProfileStore = (*Profiles)(nil)

func (s *Profiles) Register(ctx context.Context, profile entity.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[profile.Principal]; ok {
		return entity.ErrAlreadyRegistered
	}
	s.profiles[profile.Principal] = profile
	return nil
}

func (s *Profiles) Get(ctx context.Context, principal entity.Principal) (entity.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[principal]
	if !ok {
		return entity.Profile{}, entity.ErrNotFound
	}
	return profile, nil
}

func (s *Profiles) Update(ctx context.Context, principal entity.Principal, username *string, email *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[principal]
	if !ok {
		return entity.ErrNotFound
	}
	if username != nil {
		profile.Username = *username
	}
	if email != nil {
		profile.Email = *email
	}
	s.profiles[principal] = profile
	return nil
}

func (s *Profiles) IsRegistered(ctx context.Context, principal entity.Principal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.profiles[principal]
	return ok, nil
}

// Export returns a copy of the full store state for snapshotting.
func (s *Profiles) Export() entity.ProfileSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := entity.ProfileSnapshot{Profiles: make(map[entity.Principal]entity.Profile, len(s.profiles))}
	for p, profile := range s.profiles {
		snap.Profiles[p] = profile
	}
	return snap
}

// Import restores a snapshot.
func (s *Profiles) Import(snap entity.ProfileSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles = make(map[entity.Principal]entity.Profile, len(snap.Profiles))
	for p, profile := range snap.Profiles {
		s.profiles[p] = profile
	}
}
