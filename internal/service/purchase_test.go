package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ezrasisk/Buyit/internal/entity"
	"github.com/ezrasisk/Buyit/internal/repository"
	"github.com/ezrasisk/Buyit/internal/repository/memory"
	"github.com/ezrasisk/Buyit/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturePublisher records published events; publishing never fails.
type capturePublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *capturePublisher) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

// failingReceipts simulates an unreachable receipt store.
type failingReceipts struct{}

func (failingReceipts) Generate(ctx context.Context, transactionID uint64, buyer, seller entity.Principal, amount, listingID uint64) (entity.Receipt, error) {
	return entity.Receipt{}, errors.New("receipt store unreachable")
}

func (failingReceipts) Get(ctx context.Context, id uint64) (entity.Receipt, error) {
	return entity.Receipt{}, entity.ErrNotFound
}

func (failingReceipts) ByListing(ctx context.Context, listingID uint64) ([]entity.Receipt, error) {
	return nil, nil
}

// failingNotifications simulates an unreachable notification store.
type failingNotifications struct{}

func (failingNotifications) Enqueue(ctx context.Context, recipient entity.Principal, message string) (uint64, error) {
	return 0, errors.New("notification store unreachable")
}

func (failingNotifications) Poll(ctx context.Context, recipient entity.Principal, limit int) ([]entity.Notification, error) {
	return nil, nil
}

// racingListings reports the listing Active on Get but refuses the Reserve,
// modelling a listing whose state changed between validation and finalize.
type racingListings struct {
	repository.ListingStore
}

func (r racingListings) Reserve(ctx context.Context, id uint64) (entity.Listing, error) {
	return entity.Listing{}, entity.ErrNotForSale
}

type fixture struct {
	ledger        *memory.Ledger
	listings      *memory.Listings
	receipts      *memory.Receipts
	notifications *memory.Notifications
	publisher     *capturePublisher
	saga          *service.PurchaseSaga
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ledger:        memory.NewLedger(),
		listings:      memory.NewListings(),
		receipts:      memory.NewReceipts(),
		notifications: memory.NewNotifications(),
		publisher:     &capturePublisher{},
	}
	f.saga = service.NewPurchaseSaga(f.ledger, f.listings, f.receipts, f.notifications, f.publisher)
	return f
}

func TestPurchaseHappyPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.ledger.Credit(ctx, "buyer", 100))
	listingID, err := f.listings.Create(ctx, "seller", "lamp", nil)
	require.NoError(t, err)

	result, err := f.saga.Purchase(ctx, "buyer", listingID, 40)
	require.NoError(t, err)
	assert.Empty(t, result.Degraded)

	buyerBalance, err := f.ledger.Balance(ctx, "buyer")
	require.NoError(t, err)
	assert.Equal(t, uint64(60), buyerBalance)

	sellerBalance, err := f.ledger.Balance(ctx, "seller")
	require.NoError(t, err)
	assert.Equal(t, uint64(40), sellerBalance)

	listing, err := f.listings.Get(ctx, listingID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSold, listing.Status)

	txn, err := f.ledger.Transaction(ctx, result.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, entity.Transaction{
		ID:        result.TransactionID,
		Buyer:     "buyer",
		Seller:    "seller",
		Amount:    40,
		ListingID: listingID,
	}, txn)

	receipts, err := f.receipts.ByListing(ctx, listingID)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, result.TransactionID, receipts[0].TransactionID)

	buyerAlerts, err := f.notifications.Poll(ctx, "buyer", 0)
	require.NoError(t, err)
	assert.Len(t, buyerAlerts, 1)

	sellerAlerts, err := f.notifications.Poll(ctx, "seller", 0)
	require.NoError(t, err)
	assert.Len(t, sellerAlerts, 1)

	assert.Contains(t, f.publisher.topics, service.TopicPurchaseCompleted)
}

func TestPurchaseAbortsOnMissingListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.ledger.Credit(ctx, "buyer", 100))

	_, err := f.saga.Purchase(ctx, "buyer", 999, 40)
	require.ErrorIs(t, err, entity.ErrListingNotFound)

	buyerBalance, err := f.ledger.Balance(ctx, "buyer")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), buyerBalance, "aborted purchase must have zero side effects")
}

func TestPurchaseAbortsOnNotForSale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.ledger.Credit(ctx, "buyer", 100))
	listingID, err := f.listings.Create(ctx, "seller", "lamp", nil)
	require.NoError(t, err)
	_, err = f.listings.Reserve(ctx, listingID)
	require.NoError(t, err)

	_, err = f.saga.Purchase(ctx, "buyer", listingID, 40)
	require.ErrorIs(t, err, entity.ErrNotForSale)

	buyerBalance, err := f.ledger.Balance(ctx, "buyer")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), buyerBalance)
}

func TestPurchaseAbortsOnInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.ledger.Credit(ctx, "buyer", 10))
	listingID, err := f.listings.Create(ctx, "seller", "lamp", nil)
	require.NoError(t, err)

	_, err = f.saga.Purchase(ctx, "buyer", listingID, 40)
	require.ErrorIs(t, err, entity.ErrPaymentFailed)
	require.ErrorIs(t, err, entity.ErrInsufficientFunds)

	// Atomic abort: no balance change, listing untouched, no transaction.
	buyerBalance, err := f.ledger.Balance(ctx, "buyer")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), buyerBalance)

	_, err = f.ledger.Balance(ctx, "seller")
	assert.ErrorIs(t, err, entity.ErrNotFound)

	listing, err := f.listings.Get(ctx, listingID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusActive, listing.Status)

	_, err = f.ledger.Transaction(ctx, 0)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestPurchaseAbortsOnNoBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	listingID, err := f.listings.Create(ctx, "seller", "lamp", nil)
	require.NoError(t, err)

	_, err = f.saga.Purchase(ctx, "buyer", listingID, 40)
	require.ErrorIs(t, err, entity.ErrPaymentFailed)
	require.ErrorIs(t, err, entity.ErrNoBalance)
}

func TestPurchaseCompletesDegradedWhenReceiptStoreFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.ledger.Credit(ctx, "buyer", 100))
	listingID, err := f.listings.Create(ctx, "seller", "lamp", nil)
	require.NoError(t, err)

	saga := service.NewPurchaseSaga(f.ledger, f.listings, failingReceipts{}, f.notifications, f.publisher)

	result, err := saga.Purchase(ctx, "buyer", listingID, 40)
	require.NoError(t, err, "a failing receipt store must not fail the purchase")
	assert.Equal(t, []service.DegradedStep{service.StepReceipt}, result.Degraded)

	// Payment and transaction record are the authoritative outcome.
	buyerBalance, err := f.ledger.Balance(ctx, "buyer")
	require.NoError(t, err)
	assert.Equal(t, uint64(60), buyerBalance)

	_, err = f.ledger.Transaction(ctx, result.TransactionID)
	require.NoError(t, err)

	listing, err := f.listings.Get(ctx, listingID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSold, listing.Status)
}

func TestPurchaseCompletesDegradedWhenNotificationsFail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.ledger.Credit(ctx, "buyer", 100))
	listingID, err := f.listings.Create(ctx, "seller", "lamp", nil)
	require.NoError(t, err)

	saga := service.NewPurchaseSaga(f.ledger, f.listings, f.receipts, failingNotifications{}, f.publisher)

	result, err := saga.Purchase(ctx, "buyer", listingID, 40)
	require.NoError(t, err)
	assert.Equal(t, []service.DegradedStep{
		service.StepNotification,
		service.StepNotification,
	}, result.Degraded)

	// The receipt still exists: one notification leg failing blocks nothing.
	receipts, err := f.receipts.ByListing(ctx, listingID)
	require.NoError(t, err)
	assert.Len(t, receipts, 1)
}

func TestPurchaseDetectsCriticalInconsistency(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.ledger.Credit(ctx, "buyer", 100))
	listingID, err := f.listings.Create(ctx, "seller", "lamp", nil)
	require.NoError(t, err)

	saga := service.NewPurchaseSaga(f.ledger, racingListings{f.listings}, f.receipts, f.notifications, f.publisher)

	_, err = saga.Purchase(ctx, "buyer", listingID, 40)

	var inconsistency *entity.CriticalInconsistencyError
	require.ErrorAs(t, err, &inconsistency, "a reserve failure after funds moved must surface distinctly")
	assert.Equal(t, listingID, inconsistency.ListingID)
	assert.Equal(t, entity.Principal("buyer"), inconsistency.Buyer)
	assert.Equal(t, uint64(40), inconsistency.Amount)

	// Funds have moved; the error exists precisely so an operator can
	// reconcile this by hand instead of the saga retrying a charge.
	buyerBalance, err := f.ledger.Balance(ctx, "buyer")
	require.NoError(t, err)
	assert.Equal(t, uint64(60), buyerBalance)
}

func TestPurchaseDegradedReceiptIsRetryableIdempotently(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.ledger.Credit(ctx, "buyer", 100))
	listingID, err := f.listings.Create(ctx, "seller", "lamp", nil)
	require.NoError(t, err)

	saga := service.NewPurchaseSaga(f.ledger, f.listings, failingReceipts{}, f.notifications, f.publisher)
	result, err := saga.Purchase(ctx, "buyer", listingID, 40)
	require.NoError(t, err)
	require.Contains(t, result.Degraded, service.StepReceipt)

	// Out-of-band retry against the recovered store: two attempts, one
	// stored receipt.
	first, err := f.receipts.Generate(ctx, result.TransactionID, "buyer", "seller", 40, listingID)
	require.NoError(t, err)
	second, err := f.receipts.Generate(ctx, result.TransactionID, "buyer", "seller", 40, listingID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	receipts, err := f.receipts.ByListing(ctx, listingID)
	require.NoError(t, err)
	assert.Len(t, receipts, 1)
}

func TestSequentialPurchasesGetDistinctTransactions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.ledger.Credit(ctx, "buyer", 100))
	firstListing, err := f.listings.Create(ctx, "seller", "lamp", nil)
	require.NoError(t, err)
	secondListing, err := f.listings.Create(ctx, "seller", "chair", nil)
	require.NoError(t, err)

	first, err := f.saga.Purchase(ctx, "buyer", firstListing, 40)
	require.NoError(t, err)
	second, err := f.saga.Purchase(ctx, "buyer", secondListing, 10)
	require.NoError(t, err)

	assert.NotEqual(t, first.TransactionID, second.TransactionID)

	buyerBalance, err := f.ledger.Balance(ctx, "buyer")
	require.NoError(t, err)
	assert.Equal(t, uint64(50), buyerBalance)

	supply, err := f.ledger.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), supply, "purchases must conserve total supply")
}
