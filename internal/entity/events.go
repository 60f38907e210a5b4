package entity

import "time"

// Event represents a domain event published to the message broker.
type Event interface {
	EventType() string
}

// PurchaseCompleted is emitted after a purchase saga finishes successfully,
// including degraded completions. Downstream systems (email, analytics)
// consume it; the saga's outcome never depends on delivery.
type PurchaseCompleted struct {
	TransactionID uint64    `json:"transaction_id"`
	Buyer         Principal `json:"buyer"`
	Seller        Principal `json:"seller"`
	Amount        uint64    `json:"amount"`
	ListingID     uint64    `json:"listing_id"`
	CompletedAt   time.Time `json:"completed_at"`
}

func (PurchaseCompleted) EventType() string { return "PurchaseCompleted" }

// ListingCreated is emitted when a new listing goes live.
type ListingCreated struct {
	ListingID uint64    `json:"listing_id"`
	Creator   Principal `json:"creator"`
	CreatedAt time.Time `json:"created_at"`
}

func (ListingCreated) EventType() string { return "ListingCreated" }
