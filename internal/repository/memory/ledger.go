package memory

import (
	"context"
	"math"
	"sync"

	"github.com/ezrasisk/Buyit/internal/entity"
	"github.com/ezrasisk/Buyit/internal/repository"
)

// Ledger is the in-memory ledger store. A single mutex makes every mutating
// operation run to completion before the next one begins, which is what lets
// Transfer hold its atomicity guarantee without a database transaction.
type Ledger struct {
	mu           sync.Mutex
	balances     map[entity.Principal]uint64
	transactions map[uint64]entity.Transaction
	nextTxnID    uint64
}

// NewLedger creates an empty ledger store.
func NewLedger() *Ledger {
	return &Ledger{
		balances:     make(map[entity.Principal]uint64),
		transactions: make(map[uint64]entity.Transaction),
	}
}

var _ repository.LedgerStore = (*Ledger)(nil)

func (l *Ledger) Credit(ctx context.Context, principal entity.Principal, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.credit(principal, amount)
}

// credit assumes the caller holds l.mu.
func (l *Ledger) credit(principal entity.Principal, amount uint64) error {
	current := l.balances[principal]
	if current > math.MaxUint64-amount {
		return entity.ErrOverflow
	}
	l.balances[principal] = current + amount
	return nil
}

func (l *Ledger) Debit(ctx context.Context, principal entity.Principal, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debit(principal, amount)
}

// debit assumes the caller holds l.mu.
func (l *Ledger) debit(principal entity.Principal, amount uint64) error {
	current, ok := l.balances[principal]
	if !ok {
		return entity.ErrNoBalance
	}
	if amount > current {
		return entity.ErrInsufficientFunds
	}
	l.balances[principal] = current - amount
	return nil
}

func (l *Ledger) Transfer(ctx context.Context, from, to entity.Principal, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.debit(from, amount); err != nil {
		return err
	}
	if err := l.credit(to, amount); err != nil {
		// Roll the debit back so no partial transfer is observable.
		l.balances[from] += amount
		return err
	}
	return nil
}

func (l *Ledger) RecordTransaction(ctx context.Context, buyer, seller entity.Principal, amount, listingID uint64) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextTxnID
	l.transactions[id] = entity.Transaction{
		ID:        id,
		Buyer:     buyer,
		Seller:    seller,
		Amount:    amount,
		ListingID: listingID,
	}
	l.nextTxnID++
	return id, nil
}

func (l *Ledger) Balance(ctx context.Context, principal entity.Principal) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance, ok := l.balances[principal]
	if !ok {
		return 0, entity.ErrNotFound
	}
	return balance, nil
}

func (l *Ledger) Transaction(ctx context.Context, id uint64) (entity.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	txn, ok := l.transactions[id]
	if !ok {
		return entity.Transaction{}, entity.ErrNotFound
	}
	return txn, nil
}

func (l *Ledger) TotalSupply(ctx context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total uint64
	for _, balance := range l.balances {
		total += balance
	}
	return total, nil
}

// Export returns a copy of the full store state for snapshotting.
func (l *Ledger) Export() entity.LedgerSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := entity.LedgerSnapshot{
		Balances:          make(map[entity.Principal]uint64, len(l.balances)),
		Transactions:      make(map[uint64]entity.Transaction, len(l.transactions)),
		NextTransactionID: l.nextTxnID,
	}
	for p, b := range l.balances {
		snap.Balances[p] = b
	}
	for id, txn := range l.transactions {
		snap.Transactions[id] = txn
	}
	return snap
}

// Import restores a snapshot. The transaction counter never moves backwards:
// ids must stay unique across restarts.
func (l *Ledger) Import(snap entity.LedgerSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances = make(map[entity.Principal]uint64, len(snap.Balances))
	for p, b := range snap.Balances {
		l.balances[p] = b
	}
	l.transactions = make(map[uint64]entity.Transaction, len(snap.Transactions))
	for id, txn := range snap.Transactions {
		l.transactions[id] = txn
		if id >= l.nextTxnID {
			l.nextTxnID = id + 1
		}
	}
	if snap.NextTransactionID > l.nextTxnID {
		l.nextTxnID = snap.NextTransactionID
	}
}
