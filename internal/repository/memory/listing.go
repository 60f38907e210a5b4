package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ezrasisk/Buyit/internal/entity"
	"github.com/ezrasisk/Buyit/internal/repository"
)

// Listings is the in-memory listing store. Status transitions are enforced
// here: Active→Sold and Active→Archived only, never reversed.
type Listings struct {
	mu       sync.Mutex
	listings map[uint64]entity.Listing
	nextID   uint64
}

// NewListings creates an empty listing store.
func NewListings() *Listings {
	return &Listings{listings: make(map[uint64]entity.Listing)}
}

var _ repository.ListingStore = (*Listings)(nil)

func (s *Listings) Create(ctx context.Context, creator entity.Principal, text string, image []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.listings[id] = entity.Listing{
		ID:      id,
		Creator: creator,
		Status:  entity.StatusActive,
		Text:    text,
		Image:   image,
	}
	s.nextID++
	return id, nil
}

func (s *Listings) Reserve(ctx context.Context, id uint64) (entity.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	listing, ok := s.listings[id]
	if !ok {
		return entity.Listing{}, entity.ErrListingNotFound
	}
	if listing.Status != entity.StatusActive {
		return entity.Listing{}, entity.ErrNotForSale
	}
	listing.Status = entity.StatusSold
	s.listings[id] = listing
	return listing, nil
}

func (s *Listings) Archive(ctx context.Context, id uint64, requester entity.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	listing, ok := s.listings[id]
	if !ok {
		return entity.ErrListingNotFound
	}
	if listing.Creator != requester {
		return entity.ErrNotCreator
	}
	if listing.Status == entity.StatusArchived {
		// Idempotent: archiving twice is fine.
		return nil
	}
	listing.Status = entity.StatusArchived
	s.listings[id] = listing
	return nil
}

func (s *Listings) Modify(ctx context.Context, id uint64, requester entity.Principal, text *string, image []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	listing, ok := s.listings[id]
	if !ok {
		return entity.ErrListingNotFound
	}
	if listing.Creator != requester {
		return entity.ErrNotCreator
	}
	if text != nil {
		listing.Text = *text
	}
	if image != nil {
		listing.Image = image
	}
	s.listings[id] = listing
	return nil
}

func (s *Listings) Get(ctx context.Context, id uint64) (entity.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	listing, ok := s.listings[id]
	if !ok {
		return entity.Listing{}, entity.ErrListingNotFound
	}
	return listing, nil
}

func (s *Listings) ListActive(ctx context.Context) ([]entity.Listing, error) {
	return s.list(func(l entity.Listing) bool { return l.Status == entity.StatusActive })
}

func (s *Listings) ListAll(ctx context.Context) ([]entity.Listing, error) {
	return s.list(func(entity.Listing) bool { return true })
}

func (s *Listings) list(keep func(entity.Listing) bool) ([]entity.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]entity.Listing, 0, len(s.listings))
	for _, l := range s.listings {
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Export returns a copy of the full store state for snapshotting.
func (s *Listings) Export() entity.ListingSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := entity.ListingSnapshot{
		Listings: make(map[uint64]entity.Listing, len(s.listings)),
		NextID:   s.nextID,
	}
	for id, l := range s.listings {
		snap.Listings[id] = l
	}
	return snap
}

// Import restores a snapshot without ever lowering the id counter.
func (s *Listings) Import(snap entity.ListingSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listings = make(map[uint64]entity.Listing, len(snap.Listings))
	for id, l := range snap.Listings {
		s.listings[id] = l
		if id >= s.nextID {
			s.nextID = id + 1
		}
	}
	if snap.NextID > s.nextID {
		s.nextID = snap.NextID
	}
}
