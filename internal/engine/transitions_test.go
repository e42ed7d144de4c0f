package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forwardsflow/be-cc-workflow/internal/errors"
	"github.com/forwardsflow/be-cc-workflow/internal/store"
)

func TestAdvanceFollowsTable(t *testing.T) {
	txn := &store.Transaction{Status: store.StatusDraft}

	require.NoError(t, advance(txn, actionPublish))
	assert.Equal(t, store.StatusPublished, txn.Status)

	require.NoError(t, advance(txn, actionNotifyInvestors))
	assert.Equal(t, store.StatusInvestorNotified, txn.Status)
}

func TestAdvanceRejectsUnknownPair(t *testing.T) {
	txn := &store.Transaction{Status: store.StatusDraft}

	err := advance(txn, actionConfirmSettlement)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))
	// Status is untouched on rejection.
	assert.Equal(t, store.StatusDraft, txn.Status)
}

func TestNoTransitionLeavesTerminalStatus(t *testing.T) {
	for key := range transitions {
		assert.False(t, key.from.Terminal(), "transition out of terminal status %s", key.from)
	}
}

func TestDeclineReturnsToPublished(t *testing.T) {
	txn := &store.Transaction{Status: store.StatusInvestorResponded}

	require.NoError(t, advance(txn, actionDecline))
	assert.Equal(t, store.StatusPublished, txn.Status)

	// The reopened call takes responses directly from published.
	require.NoError(t, advance(txn, actionInvestorRespond))
	assert.Equal(t, store.StatusInvestorResponded, txn.Status)
}

func TestHappyPathChainReachesCompleted(t *testing.T) {
	txn := &store.Transaction{Status: store.StatusDraft}

	chain := []action{
		actionPublish,
		actionNotifyInvestors,
		actionInvestorRespond,
		actionBankReview,
		actionAcceptResponse,
		actionRequestSettlement,
		actionSubmitKYC,
		actionKYCReview,
		actionApproveKYC,
		actionOpenSettlement,
		actionConfirmSettlement,
		actionComplete,
	}
	for _, act := range chain {
		require.NoError(t, advance(txn, act), "action %s from %s", act, txn.Status)
	}
	assert.Equal(t, store.StatusCompleted, txn.Status)
	assert.True(t, txn.Status.Terminal())
}

func TestRequireStatus(t *testing.T) {
	txn := &store.Transaction{Status: store.StatusSettlementPending}

	assert.NoError(t, requireStatus(txn, store.StatusSettlementPending, actionConfirmSettlement))

	err := requireStatus(txn, store.StatusKYCReview, actionApproveKYC)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))
}
