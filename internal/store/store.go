// Package store is the in-memory transaction store: keyed records with
// per-transaction locking, snapshot reads, the reference number sequence, and
// the notification and portfolio collections. The engine owns all mutation;
// read accessors hand out deep copies only.
package store

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/forwardsflow/be-cc-workflow/internal/errors"
)

// record pairs a transaction with its mutation lock. Mutations on distinct
// transactions never contend.
type record struct {
	mu  sync.Mutex
	txn *Transaction
}

// Store holds every collection the workflow engine owns.
type Store struct {
	mu    sync.RWMutex
	txns  map[string]*record
	order []string // creation order, for stable listings

	notifMu       sync.RWMutex
	notifications []*Notification

	portfolioMu sync.RWMutex
	portfolio   []*PortfolioEntry

	refSeq atomic.Uint64
	yearFn func() int
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		txns:   make(map[string]*record),
		yearFn: func() int { return time.Now().Year() },
	}
}

// WithYearFn overrides the calendar-year source for reference numbering.
// Used in tests.
func (s *Store) WithYearFn(fn func() int) *Store {
	s.yearFn = fn
	return s
}

// NextRef allocates the next human-readable reference, TXN-<year>-<5-digit
// zero-padded sequence>. The sequence is a process-lifetime atomic counter, so
// references stay unique under concurrent creation.
func (s *Store) NextRef() string {
	return fmt.Sprintf("TXN-%d-%05d", s.yearFn(), s.refSeq.Add(1))
}

// Put inserts a freshly created transaction. The store takes ownership of the
// record; callers must not retain the pointer.
func (s *Store) Put(txn *Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txns[txn.ID] = &record{txn: txn}
	s.order = append(s.order, txn.ID)
}

// Get returns a snapshot of the transaction, or NotFound.
func (s *Store) Get(id string) (*Transaction, error) {
	rec, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.txn.clone(), nil
}

// Mutate applies fn to the live record under its per-transaction lock and
// returns a snapshot of the result. If fn fails the record keeps whatever
// state fn left behind, so fn must validate before mutating.
func (s *Store) Mutate(id string, fn func(*Transaction) error) (*Transaction, error) {
	rec, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if err := fn(rec.txn); err != nil {
		return nil, err
	}
	return rec.txn.clone(), nil
}

// List returns snapshots of all transactions in creation order.
func (s *Store) List() []*Transaction {
	return s.listWhere(func(*Transaction) bool { return true })
}

// ListByStatus returns snapshots of all transactions in the given status.
func (s *Store) ListByStatus(status Status) []*Transaction {
	return s.listWhere(func(t *Transaction) bool { return t.Status == status })
}

// ListByBank returns snapshots of all transactions created by a bank.
func (s *Store) ListByBank(bankID string) []*Transaction {
	return s.listWhere(func(t *Transaction) bool { return t.BankID == bankID })
}

// ListByInvestor returns snapshots of all transactions accepted by, or
// responded to by, an investor.
func (s *Store) ListByInvestor(investorID string) []*Transaction {
	return s.listWhere(func(t *Transaction) bool {
		if t.AcceptedBy == investorID {
			return true
		}
		return t.InvestorResponse != nil && t.InvestorResponse.InvestorID == investorID
	})
}

// listWhere is a filtered scan over the full collection. Acceptable at demo
// scale; an index would be needed in production.
func (s *Store) listWhere(pred func(*Transaction) bool) []*Transaction {
	s.mu.RLock()
	order := make([]string, len(s.order))
	copy(order, s.order)
	s.mu.RUnlock()

	out := make([]*Transaction, 0, len(order))
	for _, id := range order {
		rec, err := s.lookup(id)
		if err != nil {
			continue
		}
		rec.mu.Lock()
		if pred(rec.txn) {
			out = append(out, rec.txn.clone())
		}
		rec.mu.Unlock()
	}
	return out
}

func (s *Store) lookup(id string) (*record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.txns[id]
	if !ok {
		return nil, errors.NotFound("transaction", id)
	}
	return rec, nil
}

// AddPortfolioEntry records a completion-time portfolio entry.
func (s *Store) AddPortfolioEntry(entry *PortfolioEntry) {
	s.portfolioMu.Lock()
	defer s.portfolioMu.Unlock()
	s.portfolio = append(s.portfolio, entry)
}

// ListPortfolioEntries returns entries for a holder, or all entries when
// holderID is empty.
func (s *Store) ListPortfolioEntries(holderID string) []*PortfolioEntry {
	s.portfolioMu.RLock()
	defer s.portfolioMu.RUnlock()
	out := make([]*PortfolioEntry, 0, len(s.portfolio))
	for _, e := range s.portfolio {
		if holderID != "" && e.HolderID != holderID {
			continue
		}
		c := *e
		out = append(out, &c)
	}
	return out
}
