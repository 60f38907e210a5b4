package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ezrasisk/Buyit/internal/entity"
	"github.com/ezrasisk/Buyit/internal/messaging"
	"github.com/ezrasisk/Buyit/internal/repository"
)

// TopicListingCreated carries ListingCreated events.
const TopicListingCreated = "listings.created"

// MarketService covers everything around the saga: listing management,
// minting, profiles, and the read-only query surface.
type MarketService struct {
	ledger        repository.LedgerStore
	listings      repository.ListingStore
	receipts      repository.ReceiptStore
	notifications repository.NotificationStore
	profiles      repository.ProfileStore
	publisher     messaging.Publisher
}

func NewMarketService(
	ledger repository.LedgerStore,
	listings repository.ListingStore,
	receipts repository.ReceiptStore,
	notifications repository.NotificationStore,
	profiles repository.ProfileStore,
	publisher messaging.Publisher,
) *MarketService {
	return &MarketService{
		ledger:        ledger,
		listings:      listings,
		receipts:      receipts,
		notifications: notifications,
		profiles:      profiles,
		publisher:     publisher,
	}
}

// CreateListing creates an Active listing owned by creator.
func (s *MarketService) CreateListing(ctx context.Context, creator entity.Principal, text string, image []byte) (uint64, error) {
	id, err := s.listings.Create(ctx, creator, text, image)
	if err != nil {
		return 0, fmt.Errorf("failed to create listing: %w", err)
	}

	event := entity.ListingCreated{ListingID: id, Creator: creator, CreatedAt: time.Now()}
	if err := s.publisher.PublishEvent(ctx, TopicListingCreated, fmt.Sprintf("%d", id), event); err != nil {
		slog.Error("Failed to publish ListingCreated", "listing_id", id, "err", err)
	}

	slog.Info("Listing created", "listing_id", id, "creator", creator)
	return id, nil
}

// ModifyListing updates a listing's text and/or image. Creator only.
func (s *MarketService) ModifyListing(ctx context.Context, id uint64, requester entity.Principal, text *string, image []byte) error {
	return s.listings.Modify(ctx, id, requester, text, image)
}

// ArchiveListing takes a listing off the market permanently. Creator only.
func (s *MarketService) ArchiveListing(ctx context.Context, id uint64, requester entity.Principal) error {
	return s.listings.Archive(ctx, id, requester)
}

// Mint credits freshly issued tokens to a principal. This is the only
// operation that changes total token supply.
func (s *MarketService) Mint(ctx context.Context, principal entity.Principal, amount uint64) error {
	if err := s.ledger.Credit(ctx, principal, amount); err != nil {
		return fmt.Errorf("failed to mint %d tokens for %s: %w", amount, principal, err)
	}
	slog.Info("Tokens minted", "principal", principal, "amount", amount)
	return nil
}

// Transfer moves tokens directly between two principals, outside any
// purchase. The ledger's atomicity guarantee applies: a failure leaves both
// balances untouched.
func (s *MarketService) Transfer(ctx context.Context, from, to entity.Principal, amount uint64) error {
	if err := s.ledger.Transfer(ctx, from, to, amount); err != nil {
		return err
	}
	txnID, err := s.ledger.RecordTransaction(ctx, from, to, amount, 0)
	if err != nil {
		return fmt.Errorf("failed to record transfer: %w", err)
	}
	slog.Info("Tokens transferred", "transaction_id", txnID, "from", from, "to", to, "amount", amount)
	return nil
}

// Register records a new user profile. Fails if the principal is already
// registered.
func (s *MarketService) Register(ctx context.Context, profile entity.Profile) error {
	if err := s.profiles.Register(ctx, profile); err != nil {
		return err
	}
	slog.Info("Profile registered", "principal", profile.Principal, "username", profile.Username)
	return nil
}

// UpdateProfile updates a registered user's username and/or email.
func (s *MarketService) UpdateProfile(ctx context.Context, principal entity.Principal, username, email *string) error {
	return s.profiles.Update(ctx, principal, username, email)
}

// Read-only queries. These pass through to the owning store.

func (s *MarketService) GetBalance(ctx context.Context, principal entity.Principal) (uint64, error) {
	return s.ledger.Balance(ctx, principal)
}

func (s *MarketService) GetTransaction(ctx context.Context, id uint64) (entity.Transaction, error) {
	return s.ledger.Transaction(ctx, id)
}

func (s *MarketService) GetListing(ctx context.Context, id uint64) (entity.Listing, error) {
	return s.listings.Get(ctx, id)
}

func (s *MarketService) ListActiveListings(ctx context.Context) ([]entity.Listing, error) {
	return s.listings.ListActive(ctx)
}

func (s *MarketService) ListAllListings(ctx context.Context) ([]entity.Listing, error) {
	return s.listings.ListAll(ctx)
}

func (s *MarketService) GetReceipt(ctx context.Context, id uint64) (entity.Receipt, error) {
	return s.receipts.Get(ctx, id)
}

func (s *MarketService) GetReceiptsByListing(ctx context.Context, listingID uint64) ([]entity.Receipt, error) {
	return s.receipts.ByListing(ctx, listingID)
}

func (s *MarketService) PollNotifications(ctx context.Context, principal entity.Principal, limit int) ([]entity.Notification, error) {
	return s.notifications.Poll(ctx, principal, limit)
}

func (s *MarketService) GetProfile(ctx context.Context, principal entity.Principal) (entity.Profile, error) {
	return s.profiles.Get(ctx, principal)
}
