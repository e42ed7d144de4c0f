package engine

import (
	"context"

	"github.com/forwardsflow/be-cc-workflow/internal/store"
)

// GetTransaction returns a snapshot of a transaction by id.
func (e *Engine) GetTransaction(ctx context.Context, id string) (*store.Transaction, error) {
	return e.store.Get(id)
}

// ListTransactions returns snapshots of every transaction in creation order.
func (e *Engine) ListTransactions(ctx context.Context) []*store.Transaction {
	return e.store.List()
}

// ListByStatus returns transactions currently in the given status.
func (e *Engine) ListByStatus(ctx context.Context, status store.Status) []*store.Transaction {
	return e.store.ListByStatus(status)
}

// ListByBank returns transactions created by a bank.
func (e *Engine) ListByBank(ctx context.Context, bankID string) []*store.Transaction {
	return e.store.ListByBank(bankID)
}

// ListByInvestor returns transactions an investor accepted or responded to.
func (e *Engine) ListByInvestor(ctx context.Context, investorID string) []*store.Transaction {
	return e.store.ListByInvestor(investorID)
}

// GetProgress reports how far a transaction has advanced through the 16-step
// pipeline, with its full history.
func (e *Engine) GetProgress(ctx context.Context, id string) (*Progress, error) {
	txn, err := e.store.Get(id)
	if err != nil {
		return nil, err
	}
	return &Progress{
		TxnRef:          txn.Ref,
		Status:          txn.Status,
		CurrentStep:     txn.CurrentStep,
		TotalSteps:      store.StepCount,
		PercentComplete: float64(txn.CurrentStep) / float64(store.StepCount) * 100,
		History:         txn.History,
	}, nil
}

// GetNotifications returns notifications visible to a recipient. Empty role or
// recipient id widens the filter on that axis.
func (e *Engine) GetNotifications(ctx context.Context, role, recipientID string, unreadOnly bool) []*store.Notification {
	return e.store.ListNotifications(role, recipientID, unreadOnly)
}

// GetNotificationsByRef returns every notification tied to a transaction ref.
func (e *Engine) GetNotificationsByRef(ctx context.Context, txnRef string) []*store.Notification {
	return e.store.ListNotificationsByRef(txnRef)
}

// MarkNotificationRead flips a notification's read flag.
func (e *Engine) MarkNotificationRead(ctx context.Context, id string) error {
	return e.store.MarkNotificationRead(id)
}

// GetPortfolioEntries returns completion-time portfolio entries, optionally
// filtered by holder.
func (e *Engine) GetPortfolioEntries(ctx context.Context, holderID string) []*store.PortfolioEntry {
	return e.store.ListPortfolioEntries(holderID)
}
