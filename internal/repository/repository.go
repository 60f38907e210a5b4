package repository

import (
	"context"

	"github.com/ezrasisk/Buyit/internal/entity"
)

// Each store is the single logical owner of its data. Mutating operations on
// one store execute one at a time, in the order received; there is no shared
// transaction boundary between stores. The interfaces take a context because
// in a distributed deployment each store is a remote collaborator with its
// own failure domain.

// LedgerStore owns per-user token balances and the append-only transaction
// log. The debit+credit pair inside Transfer is the only multi-key atomicity
// guarantee in the whole system.
type LedgerStore interface {
	// Credit lazily creates a zero balance if absent, then adds amount.
	// Fails with entity.ErrOverflow if the result would wrap.
	Credit(ctx context.Context, principal entity.Principal, amount uint64) error
	// Debit fails with entity.ErrNoBalance if the principal has no balance
	// record and entity.ErrInsufficientFunds if amount exceeds the balance.
	Debit(ctx context.Context, principal entity.Principal, amount uint64) error
	// Transfer composes debit(from) then credit(to) as one atomic unit. If
	// the credit would overflow, the debit is rolled back; no partial
	// transfer is ever observable.
	Transfer(ctx context.Context, from, to entity.Principal, amount uint64) error
	// RecordTransaction appends a Transaction with a freshly assigned id.
	// Pure append; validation happened in Transfer.
	RecordTransaction(ctx context.Context, buyer, seller entity.Principal, amount, listingID uint64) (uint64, error)
	Balance(ctx context.Context, principal entity.Principal) (uint64, error)
	Transaction(ctx context.Context, id uint64) (entity.Transaction, error)
	// TotalSupply returns the sum of all balances. Only Credit changes it.
	TotalSupply(ctx context.Context) (uint64, error)
}

// ListingStore owns listing records and their lifecycle state.
type ListingStore interface {
	Create(ctx context.Context, creator entity.Principal, text string, image []byte) (uint64, error)
	// Reserve flips Active→Sold and returns the listing as it was at the
	// flip. Fails with entity.ErrNotForSale unless the listing is Active.
	Reserve(ctx context.Context, id uint64) (entity.Listing, error)
	// Archive is creator-only and idempotent once archived.
	Archive(ctx context.Context, id uint64, requester entity.Principal) error
	// Modify updates text and/or image; creator-only, never touches status.
	Modify(ctx context.Context, id uint64, requester entity.Principal, text *string, image []byte) error
	Get(ctx context.Context, id uint64) (entity.Listing, error)
	ListActive(ctx context.Context) ([]entity.Listing, error)
	ListAll(ctx context.Context) ([]entity.Listing, error)
}

// ReceiptStore owns immutable purchase receipts.
type ReceiptStore interface {
	// Generate is idempotent per transaction id: a second call for the same
	// transaction returns the receipt stored by the first, so retrying a
	// degraded receipt step can never duplicate a financial record.
	Generate(ctx context.Context, transactionID uint64, buyer, seller entity.Principal, amount, listingID uint64) (entity.Receipt, error)
	Get(ctx context.Context, id uint64) (entity.Receipt, error)
	ByListing(ctx context.Context, listingID uint64) ([]entity.Receipt, error)
}

// NotificationStore owns a per-recipient ordered queue of messages.
type NotificationStore interface {
	Enqueue(ctx context.Context, recipient entity.Principal, message string) (uint64, error)
	// Poll is a non-destructive ordered read. limit <= 0 returns everything.
	Poll(ctx context.Context, recipient entity.Principal, limit int) ([]entity.Notification, error)
}

// ProfileStore owns user registration data.
type ProfileStore interface {
	Register(ctx context.Context, profile entity.Profile) error
	Get(ctx context.Context, principal entity.Principal) (entity.Profile, error)
	Update(ctx context.Context, principal entity.Principal, username *string, email *string) error
	IsRegistered(ctx context.Context, principal entity.Principal) (bool, error)
}
