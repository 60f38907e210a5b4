package entity

// Snapshot types describe the full persisted state of each store: the
// key-indexed records plus the next-id counter. Restoring a snapshot must
// never reset a counter below the highest id ever issued.

// LedgerSnapshot is the persisted state of the ledger store.
type LedgerSnapshot struct {
	Balances          map[Principal]uint64   `json:"balances"`
	Transactions      map[uint64]Transaction `json:"transactions"`
	NextTransactionID uint64                 `json:"next_transaction_id"`
}

// ListingSnapshot is the persisted state of the listing store.
type ListingSnapshot struct {
	Listings map[uint64]Listing `json:"listings"`
	NextID   uint64             `json:"next_id"`
}

// ReceiptSnapshot is the persisted state of the receipt store.
type ReceiptSnapshot struct {
	Receipts map[uint64]Receipt `json:"receipts"`
	// ByTransaction is the idempotency index: transaction id → receipt id.
	ByTransaction map[uint64]uint64 `json:"by_transaction"`
	NextID        uint64            `json:"next_id"`
}

// NotificationSnapshot is the persisted state of the notification store.
type NotificationSnapshot struct {
	Queues map[Principal][]Notification `json:"queues"`
	NextID uint64                       `json:"next_id"`
}

// ProfileSnapshot is the persisted state of the profile store.
type ProfileSnapshot struct {
	Profiles map[Principal]Profile `json:"profiles"`
}
