package engine

import (
	"github.com/forwardsflow/be-cc-workflow/internal/errors"
	"github.com/forwardsflow/be-cc-workflow/internal/store"
)

// action names a workflow transition trigger. History entries record these
// verbatim.
type action string

const (
	actionCreate              action = "transaction_created"
	actionPublish             action = "capital_call_published"
	actionNotifyInvestors     action = "investors_notified"
	actionInvestorRespond     action = "investor_responded"
	actionBankReview          action = "bank_review_requested"
	actionAcceptResponse      action = "response_accepted"
	actionRequestSettlement   action = "settlement_details_requested"
	actionSubmitSettlement    action = "settlement_details_submitted"
	actionSubmitRepatriation  action = "repatriation_account_submitted"
	actionSubmitKYC           action = "kyc_submitted"
	actionKYCReview           action = "kyc_review_requested"
	actionApproveKYC          action = "kyc_approved"
	actionOpenSettlement      action = "settlement_window_opened"
	actionConfirmSettlement   action = "settlement_confirmed"
	actionRecordPortfolio     action = "portfolio_entries_recorded"
	actionComplete            action = "transaction_completed"
	actionDecline             action = "capital_call_reopened"
	actionCancel              action = "capital_call_cancelled"
	actionExpire              action = "capital_call_expired"
)

type transitionKey struct {
	from store.Status
	act  action
}

// transitions enumerates every legal (fromStatus, action) -> toStatus pair.
// Anything absent from this table is an illegal transition.
var transitions = map[transitionKey]store.Status{
	{store.StatusDraft, actionPublish}:                       store.StatusPublished,
	{store.StatusPublished, actionNotifyInvestors}:           store.StatusInvestorNotified,
	{store.StatusInvestorNotified, actionInvestorRespond}:    store.StatusInvestorResponded,
	{store.StatusPublished, actionInvestorRespond}:           store.StatusInvestorResponded, // reopened after decline
	{store.StatusInvestorResponded, actionBankReview}:        store.StatusBankReviewing,
	{store.StatusInvestorResponded, actionDecline}:           store.StatusPublished,
	{store.StatusBankReviewing, actionAcceptResponse}:        store.StatusAccepted,
	{store.StatusAccepted, actionRequestSettlement}:          store.StatusSettlementDetailsPending,
	{store.StatusSettlementDetailsPending, actionSubmitKYC}:  store.StatusKYCSubmitted,
	{store.StatusKYCSubmitted, actionKYCReview}:              store.StatusKYCReview,
	{store.StatusKYCReview, actionApproveKYC}:                store.StatusKYCApproved,
	{store.StatusKYCApproved, actionOpenSettlement}:          store.StatusSettlementPending,
	{store.StatusSettlementPending, actionConfirmSettlement}: store.StatusSettlementProcessing,
	{store.StatusSettlementProcessing, actionComplete}:       store.StatusCompleted,

	{store.StatusDraft, actionCancel}:             store.StatusCancelled,
	{store.StatusPublished, actionCancel}:         store.StatusCancelled,
	{store.StatusInvestorNotified, actionCancel}:  store.StatusCancelled,
	{store.StatusPublished, actionExpire}:         store.StatusExpired,
	{store.StatusInvestorNotified, actionExpire}:  store.StatusExpired,
}

// advance moves the transaction to the status the table prescribes for
// (t.Status, act), or fails with InvalidTransition.
func advance(t *store.Transaction, act action) error {
	to, ok := transitions[transitionKey{from: t.Status, act: act}]
	if !ok {
		return errors.InvalidTransition(string(t.Status), string(act))
	}
	t.Status = to
	return nil
}

// requireStatus rejects an operation whose transaction is not in the expected
// starting state.
func requireStatus(t *store.Transaction, want store.Status, act action) error {
	if t.Status != want {
		return errors.InvalidTransition(string(t.Status), string(act))
	}
	return nil
}
