package entity

import "time"

// Principal is the opaque identity of a user or caller. It is used as a map
// key everywhere and never mutated.
type Principal string

// ListingStatus is the lifecycle state of a listing.
type ListingStatus string

const (
	StatusActive   ListingStatus = "active"
	StatusSold     ListingStatus = "sold"
	StatusArchived ListingStatus = "archived"
)

// Listing is an item offered for sale. Status only ever moves
// Active→Sold or Active→Archived; both are terminal.
type Listing struct {
	ID      uint64        `json:"id"`
	Creator Principal     `json:"creator"`
	Status  ListingStatus `json:"status"`
	Text    string        `json:"text"`
	Image   []byte        `json:"image,omitempty"`
}

// Transaction is the single source of truth that a purchase happened.
// Immutable once appended.
type Transaction struct {
	ID        uint64    `json:"id"`
	Buyer     Principal `json:"buyer"`
	Seller    Principal `json:"seller"`
	Amount    uint64    `json:"amount"`
	ListingID uint64    `json:"listing_id"`
}

// Receipt is the proof-of-purchase derived 1:1 from a Transaction.
type Receipt struct {
	ID            uint64    `json:"id"`
	TransactionID uint64    `json:"transaction_id"`
	Buyer         Principal `json:"buyer"`
	Seller        Principal `json:"seller"`
	Amount        uint64    `json:"amount"`
	ListingID     uint64    `json:"listing_id"`
}

// Notification is a user-facing alert. Purely informational and safe to lose.
type Notification struct {
	ID        uint64    `json:"id"`
	Recipient Principal `json:"recipient"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Profile holds user registration data.
type Profile struct {
	Principal Principal `json:"principal"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
}
