package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ezrasisk/Buyit/internal/entity"
	"github.com/ezrasisk/Buyit/internal/messaging"
	"github.com/ezrasisk/Buyit/internal/repository"
)

// TopicPurchaseCompleted carries PurchaseCompleted events for downstream
// consumers (email, analytics). Delivery is best-effort.
const TopicPurchaseCompleted = "purchases.completed"

// DegradedStep names a best-effort saga step that failed after the purchase
// itself succeeded. The caller may retry it out-of-band: receipt generation
// is idempotent per transaction id, and notifications are safe to lose.
type DegradedStep string

const (
	StepReceipt      DegradedStep = "receipt"
	StepNotification DegradedStep = "notification"
)

// PurchaseResult is the outcome of a successful purchase, possibly with
// degraded follow-up steps.
type PurchaseResult struct {
	TransactionID uint64         `json:"transaction_id"`
	Degraded      []DegradedStep `json:"degraded_steps,omitempty"`
}

// PurchaseSaga drives the cross-store purchase sequence. It holds no state
// of its own — only store handles — so a crash mid-saga loses nothing that
// lives in the orchestrator.
//
// The ordering contract is funds → listing finalize → transaction record →
// receipt → notifications. The irreversible step (funds movement) comes
// first; every step after it is either idempotent-retryable or non-critical,
// so a downstream failure degrades the result instead of rolling it back.
type PurchaseSaga struct {
	ledger        repository.LedgerStore
	listings      repository.ListingStore
	receipts      repository.ReceiptStore
	notifications repository.NotificationStore
	publisher     messaging.Publisher
}

// NewPurchaseSaga wires the saga to its four stores and the event publisher.
func NewPurchaseSaga(
	ledger repository.LedgerStore,
	listings repository.ListingStore,
	receipts repository.ReceiptStore,
	notifications repository.NotificationStore,
	publisher messaging.Publisher,
) *PurchaseSaga {
	return &PurchaseSaga{
		ledger:        ledger,
		listings:      listings,
		receipts:      receipts,
		notifications: notifications,
		publisher:     publisher,
	}
}

// Purchase runs the saga for one buyer, listing, and price.
//
// Aborts (zero side effects) are only possible before the listing is
// finalized: a missing or non-Active listing, or a failed transfer. Once
// funds have moved, the purchase completes; receipt and notification
// failures are reported as degraded steps rather than undoing the payment.
func (s *PurchaseSaga) Purchase(ctx context.Context, buyer entity.Principal, listingID, price uint64) (PurchaseResult, error) {
	// Validating: zero side effects on failure.
	listing, err := s.listings.Get(ctx, listingID)
	if err != nil {
		return PurchaseResult{}, fmt.Errorf("failed to look up listing %d: %w", listingID, err)
	}
	if listing.Status != entity.StatusActive {
		return PurchaseResult{}, fmt.Errorf("listing %d has status %s: %w", listingID, listing.Status, entity.ErrNotForSale)
	}

	// FundsReserved: the last fully-reversible point. Transfer is atomic, so
	// a failure here leaves both balances untouched.
	if err := s.ledger.Transfer(ctx, buyer, listing.Creator, price); err != nil {
		return PurchaseResult{}, fmt.Errorf("%w: %w", entity.ErrPaymentFailed, err)
	}

	// ListingFinalized: funds have moved, so the listing MUST become Sold.
	// Reserve rechecks Active atomically; if the listing changed state since
	// validation this is a fatal inconsistency, not a recoverable abort —
	// retrying would double-charge the buyer.
	if _, err := s.listings.Reserve(ctx, listingID); err != nil {
		inconsistency := &entity.CriticalInconsistencyError{
			ListingID: listingID,
			Buyer:     buyer,
			Seller:    listing.Creator,
			Amount:    price,
			Cause:     err,
		}
		slog.Error("CRITICAL: listing changed state after funds moved, manual reconciliation required",
			"listing_id", listingID, "buyer", buyer, "seller", listing.Creator, "amount", price, "err", err)
		return PurchaseResult{}, inconsistency
	}

	// TransactionRecorded: unconditional once the listing is finalized.
	// Omitting it after funds moved would be a silent-loss bug.
	txnID, err := s.ledger.RecordTransaction(ctx, buyer, listing.Creator, price, listingID)
	if err != nil {
		inconsistency := &entity.CriticalInconsistencyError{
			ListingID: listingID,
			Buyer:     buyer,
			Seller:    listing.Creator,
			Amount:    price,
			Cause:     err,
		}
		slog.Error("CRITICAL: failed to record transaction after funds moved, manual reconciliation required",
			"listing_id", listingID, "buyer", buyer, "err", err)
		return PurchaseResult{}, inconsistency
	}

	result := PurchaseResult{TransactionID: txnID}

	// ReceiptIssued: best-effort. The payment and transaction record are the
	// authoritative outcome; a missing receipt is retryable later because
	// Generate is idempotent per transaction id.
	if _, err := s.receipts.Generate(ctx, txnID, buyer, listing.Creator, price, listingID); err != nil {
		slog.Warn("Receipt generation failed, purchase completes degraded",
			"transaction_id", txnID, "listing_id", listingID, "err", err)
		result.Degraded = append(result.Degraded, StepReceipt)
	}

	// NotificationsSent: buyer and seller alerts are independent and
	// order-insensitive, so both enqueues run concurrently; neither blocks
	// or rolls back the other.
	result.Degraded = append(result.Degraded, s.notifyParties(ctx, buyer, listing.Creator, listingID, price)...)

	event := entity.PurchaseCompleted{
		TransactionID: txnID,
		Buyer:         buyer,
		Seller:        listing.Creator,
		Amount:        price,
		ListingID:     listingID,
		CompletedAt:   time.Now(),
	}
	if err := s.publisher.PublishEvent(ctx, TopicPurchaseCompleted, fmt.Sprintf("%d", txnID), event); err != nil {
		slog.Error("Failed to publish PurchaseCompleted", "transaction_id", txnID, "err", err)
	}

	slog.Info("Purchase completed",
		"transaction_id", txnID, "listing_id", listingID,
		"buyer", buyer, "seller", listing.Creator, "amount", price,
		"degraded", len(result.Degraded))
	return result, nil
}

func (s *PurchaseSaga) notifyParties(ctx context.Context, buyer, seller entity.Principal, listingID, price uint64) []DegradedStep {
	type alert struct {
		recipient entity.Principal
		message   string
	}
	alerts := []alert{
		{buyer, fmt.Sprintf("Receipt for purchase of item ID %d: Amount transferred: %d", listingID, price)},
		{seller, fmt.Sprintf("Receipt for sale of item ID %d: Amount received: %d", listingID, price)},
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		degraded []DegradedStep
	)
	for _, a := range alerts {
		wg.Add(1)
		go func(a alert) {
			defer wg.Done()
			if _, err := s.notifications.Enqueue(ctx, a.recipient, a.message); err != nil {
				slog.Warn("Notification enqueue failed", "recipient", a.recipient, "err", err)
				mu.Lock()
				degraded = append(degraded, StepNotification)
				mu.Unlock()
			}
		}(a)
	}
	wg.Wait()
	return degraded
}
