package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ezrasisk/Buyit/internal/entity"
	"github.com/ezrasisk/Buyit/internal/repository"
)

// Receipts is the in-memory receipt store. Generation is idempotent per
// transaction id so that retrying a failed receipt step after a purchase
// can never create a duplicate financial record.
type Receipts struct {
	mu       sync.Mutex
	receipts map[uint64]entity.Receipt
	// byTxn maps transaction id → receipt id (the idempotency index).
	byTxn  map[uint64]uint64
	nextID uint64
}

// NewReceipts creates an empty receipt store.
func NewReceipts() *Receipts {
	return &Receipts{
		receipts: make(map[uint64]entity.Receipt),
		byTxn:    make(map[uint64]uint64),
	}
}

var _ repository.ReceiptStore = (*Receipts)(nil)

func (s *Receipts) Generate(ctx context.Context, transactionID uint64, buyer, seller entity.Principal, amount, listingID uint64) (entity.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byTxn[transactionID]; ok {
		return s.receipts[existing], nil
	}

	id := s.nextID
	receipt := entity.Receipt{
		ID:            id,
		TransactionID: transactionID,
		Buyer:         buyer,
		Seller:        seller,
		Amount:        amount,
		ListingID:     listingID,
	}
	s.receipts[id] = receipt
	s.byTxn[transactionID] = id
	s.nextID++
	return receipt, nil
}

func (s *Receipts) Get(ctx context.Context, id uint64) (entity.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	receipt, ok := s.receipts[id]
	if !ok {
		return entity.Receipt{}, entity.ErrNotFound
	}
	return receipt, nil
}

func (s *Receipts) ByListing(ctx context.Context, listingID uint64) ([]entity.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []entity.Receipt
	for _, r := range s.receipts {
		if r.ListingID == listingID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Export returns a copy of the full store state for snapshotting.
func (s *Receipts) Export() entity.ReceiptSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := entity.ReceiptSnapshot{
		Receipts:      make(map[uint64]entity.Receipt, len(s.receipts)),
		ByTransaction: make(map[uint64]uint64, len(s.byTxn)),
		NextID:        s.nextID,
	}
	for id, r := range s.receipts {
		snap.Receipts[id] = r
	}
	for txn, id := range s.byTxn {
		snap.ByTransaction[txn] = id
	}
	return snap
}

// Import restores a snapshot without ever lowering the id counter.
func (s *Receipts) Import(snap entity.ReceiptSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.receipts = make(map[uint64]entity.Receipt, len(snap.Receipts))
	s.byTxn = make(map[uint64]uint64, len(snap.ByTransaction))
	for id, r := range snap.Receipts {
		s.receipts[id] = r
		if id >= s.nextID {
			s.nextID = id + 1
		}
	}
	for txn, id := range snap.ByTransaction {
		s.byTxn[txn] = id
	}
	if snap.NextID > s.nextID {
		s.nextID = snap.NextID
	}
}
