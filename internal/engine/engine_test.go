package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forwardsflow/be-cc-workflow/internal/bus"
	"github.com/forwardsflow/be-cc-workflow/internal/errors"
	"github.com/forwardsflow/be-cc-workflow/internal/logger"
	"github.com/forwardsflow/be-cc-workflow/internal/store"
)

const (
	testBankID     = "bank-frontier"
	testOfficerID  = "officer-ada"
	testInvestorID = "investor-gim"
)

func newTestEngine(t *testing.T) (*Engine, *bus.Bus, *store.Store) {
	t.Helper()
	st := store.New()
	b := bus.New(logger.Nop().Logger)
	eng := New(st, b, logger.Nop())
	return eng, b, st
}

func baseCreateRequest() *CreateCallRequest {
	return &CreateCallRequest{
		BankID:               testBankID,
		CreatedBy:            testOfficerID,
		Amount:               10_000_000,
		Currency:             "usd",
		InterestRate:         15.0,
		FXSpread:             1.0,
		HedgingFee:           2.0,
		TenorMonths:          12,
		SpotRate:             1650.0,
		FATCACompliant:       true,
		SanctionsCleared:     true,
		CapitalAdequacyRatio: 18.4,
	}
}

// driveToStatus advances a fresh transaction along the happy path until it
// reaches the given status, returning the latest snapshot.
func driveToStatus(t *testing.T, eng *Engine, target store.Status) *store.Transaction {
	t.Helper()
	ctx := context.Background()

	txn, err := eng.CreateCall(ctx, baseCreateRequest())
	require.NoError(t, err)
	if target == store.StatusDraft {
		return txn
	}

	txn, err = eng.PublishCall(ctx, txn.ID, testOfficerID)
	require.NoError(t, err)
	if target == store.StatusInvestorNotified {
		return txn
	}

	txn, err = eng.RespondToCall(ctx, txn.ID, testInvestorID, &RespondRequest{Response: store.ResponseAccept})
	require.NoError(t, err)
	if target == store.StatusBankReviewing {
		return txn
	}

	txn, err = eng.AcceptResponse(ctx, txn.ID, testOfficerID, &AcceptResponseRequest{})
	require.NoError(t, err)
	if target == store.StatusSettlementDetailsPending {
		return txn
	}

	txn, err = eng.SubmitSettlementDetails(ctx, txn.ID, testInvestorID, &SettlementDetailsRequest{
		BankName:      "First Meridian",
		AccountName:   "Gim Capital LP",
		AccountNumber: "0099887766",
		SwiftCode:     "FMERUS33",
	})
	require.NoError(t, err)

	txn, err = eng.SubmitRepatriationAccount(ctx, txn.ID, testInvestorID, &RepatriationAccountRequest{
		BankName:      "First Meridian",
		AccountNumber: "0099887767",
		SwiftCode:     "FMERUS33",
		Currency:      "USD",
	})
	require.NoError(t, err)

	txn, err = eng.SubmitKYCDetails(ctx, txn.ID, testInvestorID, &SubmitKYCRequest{
		Documents: []KYCDocumentRequest{
			{Type: "certificate_of_incorporation", Reference: "DOC-001"},
			{Type: "beneficial_ownership", Reference: "DOC-002"},
		},
	})
	require.NoError(t, err)
	if target == store.StatusKYCReview {
		return txn
	}

	txn, err = eng.ApproveKYC(ctx, txn.ID, "compliance-lee", &ApproveKYCRequest{RiskRating: "low"})
	require.NoError(t, err)
	if target == store.StatusSettlementPending {
		return txn
	}

	txn, err = eng.ProcessSettlement(ctx, txn.ID, testInvestorID, &ProcessSettlementRequest{})
	require.NoError(t, err)
	return txn
}

func TestCreateCallDerivedValues(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	eng.WithClock(func() time.Time { return now })

	txn, err := eng.CreateCall(context.Background(), baseCreateRequest())
	require.NoError(t, err)

	assert.Equal(t, store.StatusDraft, txn.Status)
	assert.Equal(t, 1, txn.CurrentStep)
	assert.Equal(t, "USD", txn.Currency)
	assert.Equal(t, 18.0, txn.TotalYield)
	assert.InDelta(t, 1650.0*(1+2.0*(12.0/12.0)/100), txn.ForwardRate, 1e-9)
	assert.InDelta(t, 1650.0*(1+2.0/100), txn.HedgedRate, 1e-9)
	assert.Equal(t, now.AddDate(0, 12, 0), txn.MaturityDate)
	assert.Empty(t, txn.AcceptedBy)
	require.Len(t, txn.History, 1)
	assert.Equal(t, "transaction_created", txn.History[0].Action)
}

func TestCreateCallValidation(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreateCallRequest)
	}{
		{"missing bank", func(r *CreateCallRequest) { r.BankID = "" }},
		{"missing officer", func(r *CreateCallRequest) { r.CreatedBy = "" }},
		{"zero amount", func(r *CreateCallRequest) { r.Amount = 0 }},
		{"bad currency", func(r *CreateCallRequest) { r.Currency = "DOLLARS" }},
		{"negative spread", func(r *CreateCallRequest) { r.FXSpread = -0.5 }},
		{"zero tenor", func(r *CreateCallRequest) { r.TenorMonths = 0 }},
		{"zero spot", func(r *CreateCallRequest) { r.SpotRate = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := baseCreateRequest()
			tc.mutate(req)
			_, err := eng.CreateCall(ctx, req)
			assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput), "got %v", err)
		})
	}
}

func TestTenorScalingAsymmetry(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	req := baseCreateRequest()
	req.TenorMonths = 6

	txn, err := eng.CreateCall(context.Background(), req)
	require.NoError(t, err)

	// Forward rate scales the fee by tenor/12; hedged rate applies it in full.
	assert.InDelta(t, 1650.0*(1+2.0*(6.0/12.0)/100), txn.ForwardRate, 1e-9)
	assert.InDelta(t, 1650.0*(1+2.0/100), txn.HedgedRate, 1e-9)
	assert.NotEqual(t, txn.ForwardRate, txn.HedgedRate)
}

func TestEndToEndHappyPath(t *testing.T) {
	eng, b, st := newTestEngine(t)

	var portfolioEvents []string
	var emitted []string
	for _, event := range bus.Events {
		event := event
		b.Subscribe(event, func(name string, payload any) {
			emitted = append(emitted, name)
			if name == bus.EventInvestorPortfolioUpdated || name == bus.EventBankPortfolioUpdated {
				portfolioEvents = append(portfolioEvents, name)
			}
		})
	}

	txn := driveToStatus(t, eng, store.StatusCompleted)

	assert.Equal(t, store.StatusCompleted, txn.Status)
	assert.Equal(t, 16, txn.CurrentStep)
	assert.Equal(t, 18.0, txn.TotalYield)
	assert.Equal(t, testInvestorID, txn.AcceptedBy)
	assert.NotEmpty(t, txn.SettlementConfirmation)
	assert.NotNil(t, txn.CompletedAt)

	// Two portfolio entry events, one per side.
	require.Len(t, portfolioEvents, 2)
	assert.Contains(t, portfolioEvents, bus.EventInvestorPortfolioUpdated)
	assert.Contains(t, portfolioEvents, bus.EventBankPortfolioUpdated)

	// Both portfolio entries are stored.
	entries := st.ListPortfolioEntries("")
	require.Len(t, entries, 2)
	sides := map[store.PortfolioSide]string{}
	for _, e := range entries {
		sides[e.Side] = e.HolderID
	}
	assert.Equal(t, testInvestorID, sides[store.PortfolioSideInvestorInvestment])
	assert.Equal(t, testBankID, sides[store.PortfolioSideBankLiability])

	// At least six notifications tied to this transaction's ref.
	notifications := st.ListNotificationsByRef(txn.Ref)
	assert.GreaterOrEqual(t, len(notifications), 6)

	// Milestone events all fired.
	for _, want := range []string{
		bus.EventTransactionCreated,
		bus.EventCapitalCallPublished,
		bus.EventInvestorResponded,
		bus.EventBankAcceptedResponse,
		bus.EventKYCSubmitted,
		bus.EventKYCApproved,
		bus.EventSettlementProcessed,
		bus.EventTransactionCompleted,
	} {
		assert.Contains(t, emitted, want)
	}

	// History records each of the 16 steps exactly once, in order.
	require.Len(t, txn.History, 16)
	prev := 0
	seen := make(map[int]int, 16)
	for _, h := range txn.History {
		assert.GreaterOrEqual(t, h.Step, prev)
		assert.LessOrEqual(t, h.Step, 16)
		seen[h.Step]++
		prev = h.Step
	}
	for step := 1; step <= 16; step++ {
		assert.Equal(t, 1, seen[step], "step %d history entries", step)
	}
}

func TestCompletedTransactionIsTerminal(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	txn := driveToStatus(t, eng, store.StatusCompleted)

	_, err := eng.ProcessSettlement(ctx, txn.ID, testInvestorID, &ProcessSettlementRequest{})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))

	_, err = eng.PublishCall(ctx, txn.ID, testOfficerID)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))

	_, err = eng.CancelCall(ctx, txn.ID, testOfficerID, "")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))
}

func TestCounterOfferAcceptedOverwritesTerms(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	txn, err := eng.CreateCall(ctx, baseCreateRequest())
	require.NoError(t, err)
	txn, err = eng.PublishCall(ctx, txn.ID, testOfficerID)
	require.NoError(t, err)

	txn, err = eng.RespondToCall(ctx, txn.ID, testInvestorID, &RespondRequest{
		Response:     store.ResponseCounter,
		CounterTerms: &store.CounterTerms{ProposedRate: 17.0},
	})
	require.NoError(t, err)
	assert.Equal(t, store.StatusBankReviewing, txn.Status)

	txn, err = eng.AcceptResponse(ctx, txn.ID, testOfficerID, &AcceptResponseRequest{AcceptCounterTerms: true})
	require.NoError(t, err)

	assert.Equal(t, 17.0, txn.InterestRate)
	assert.Equal(t, 20.0, txn.TotalYield)
	assert.Equal(t, 10_000_000.0, txn.Amount)
}

func TestCounterOfferRejectedKeepsOriginalTerms(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	txn, err := eng.CreateCall(ctx, baseCreateRequest())
	require.NoError(t, err)
	_, err = eng.PublishCall(ctx, txn.ID, testOfficerID)
	require.NoError(t, err)
	_, err = eng.RespondToCall(ctx, txn.ID, testInvestorID, &RespondRequest{
		Response:     store.ResponseCounter,
		CounterTerms: &store.CounterTerms{ProposedRate: 17.0, ProposedAmount: 12_000_000},
	})
	require.NoError(t, err)

	got, err := eng.AcceptResponse(ctx, txn.ID, testOfficerID, &AcceptResponseRequest{AcceptCounterTerms: false})
	require.NoError(t, err)

	assert.Equal(t, 15.0, got.InterestRate)
	assert.Equal(t, 18.0, got.TotalYield)
	assert.Equal(t, 10_000_000.0, got.Amount)
}

func TestDeclineReopensCall(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	txn, err := eng.CreateCall(ctx, baseCreateRequest())
	require.NoError(t, err)
	_, err = eng.PublishCall(ctx, txn.ID, testOfficerID)
	require.NoError(t, err)

	got, err := eng.RespondToCall(ctx, txn.ID, "investor-early", &RespondRequest{Response: store.ResponseDecline})
	require.NoError(t, err)
	assert.Equal(t, store.StatusPublished, got.Status)
	assert.Empty(t, got.AcceptedBy)

	// Another investor can still pick the call up.
	got, err = eng.RespondToCall(ctx, txn.ID, testInvestorID, &RespondRequest{Response: store.ResponseAccept})
	require.NoError(t, err)
	assert.Equal(t, store.StatusBankReviewing, got.Status)

	got, err = eng.AcceptResponse(ctx, txn.ID, testOfficerID, &AcceptResponseRequest{})
	require.NoError(t, err)
	assert.Equal(t, testInvestorID, got.AcceptedBy)
}

func TestAcceptedByIsImmutable(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	txn := driveToStatus(t, eng, store.StatusSettlementDetailsPending)
	require.Equal(t, testInvestorID, txn.AcceptedBy)

	// No further response or acceptance can displace the accepted investor.
	_, err := eng.RespondToCall(ctx, txn.ID, "investor-late", &RespondRequest{Response: store.ResponseAccept})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))

	_, err = eng.AcceptResponse(ctx, txn.ID, testOfficerID, &AcceptResponseRequest{})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))

	got, err := eng.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, testInvestorID, got.AcceptedBy)
}

func TestSettlementOpsRequireAcceptedInvestor(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	txn := driveToStatus(t, eng, store.StatusSettlementDetailsPending)

	_, err := eng.SubmitSettlementDetails(ctx, txn.ID, "investor-impostor", &SettlementDetailsRequest{
		BankName:      "Shadow Bank",
		AccountName:   "Impostor LP",
		AccountNumber: "1",
		SwiftCode:     "SHDWUS33",
	})
	assert.True(t, errors.Is(err, errors.ErrCodeUnauthorized))

	settled := driveToStatus(t, eng, store.StatusSettlementPending)
	_, err = eng.ProcessSettlement(ctx, settled.ID, "investor-impostor", &ProcessSettlementRequest{})
	assert.True(t, errors.Is(err, errors.ErrCodeUnauthorized))
}

func TestApproveKYCBeforeSubmissionRejected(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	txn := driveToStatus(t, eng, store.StatusSettlementDetailsPending)

	_, err := eng.ApproveKYC(ctx, txn.ID, "compliance-lee", &ApproveKYCRequest{})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))
}

func TestKYCApprovalOutcome(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	txn := driveToStatus(t, eng, store.StatusSettlementPending)

	require.NotNil(t, txn.KYCDetails)
	for _, doc := range txn.KYCDetails.Documents {
		assert.Equal(t, store.KYCDocumentApproved, doc.Status)
	}
	assert.Equal(t, "cleared", txn.KYCDetails.AMLStatus)
	assert.Equal(t, "low", txn.KYCDetails.RiskRating)
	require.NotNil(t, txn.SettlementDeadline)
	require.NotNil(t, txn.KYCApprovedAt)
	assert.Equal(t, txn.KYCApprovedAt.Add(3*24*time.Hour), *txn.SettlementDeadline)
}

func TestSubmissionOrderEnforced(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	txn := driveToStatus(t, eng, store.StatusSettlementDetailsPending)

	// KYC before settlement details is rejected.
	_, err := eng.SubmitKYCDetails(ctx, txn.ID, testInvestorID, &SubmitKYCRequest{
		Documents: []KYCDocumentRequest{{Type: "passport", Reference: "DOC-9"}},
	})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))

	// Repatriation before settlement details is rejected.
	_, err = eng.SubmitRepatriationAccount(ctx, txn.ID, testInvestorID, &RepatriationAccountRequest{
		BankName:      "First Meridian",
		AccountNumber: "0099887767",
		SwiftCode:     "FMERUS33",
		Currency:      "USD",
	})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))
}

func TestPublishRequiresCreatingOfficer(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	txn, err := eng.CreateCall(ctx, baseCreateRequest())
	require.NoError(t, err)

	_, err = eng.PublishCall(ctx, txn.ID, "officer-other")
	assert.True(t, errors.Is(err, errors.ErrCodeUnauthorized))
}

func TestRespondToExpiredCallRejected(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	eng.WithClock(func() time.Time { return now })

	txn, err := eng.CreateCall(ctx, baseCreateRequest())
	require.NoError(t, err)
	_, err = eng.PublishCall(ctx, txn.ID, testOfficerID)
	require.NoError(t, err)

	// Jump past the 7-day window.
	now = now.Add(8 * 24 * time.Hour)

	_, err = eng.RespondToCall(ctx, txn.ID, testInvestorID, &RespondRequest{Response: store.ResponseAccept})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))

	got, err := eng.ExpireCall(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusExpired, got.Status)
}

func TestExpireBeforeWindowRejected(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	txn, err := eng.CreateCall(ctx, baseCreateRequest())
	require.NoError(t, err)
	_, err = eng.PublishCall(ctx, txn.ID, testOfficerID)
	require.NoError(t, err)

	_, err = eng.ExpireCall(ctx, txn.ID)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))
}

func TestCancelCall(t *testing.T) {
	eng, _, st := newTestEngine(t)
	ctx := context.Background()

	txn, err := eng.CreateCall(ctx, baseCreateRequest())
	require.NoError(t, err)
	_, err = eng.PublishCall(ctx, txn.ID, testOfficerID)
	require.NoError(t, err)

	_, err = eng.CancelCall(ctx, txn.ID, "officer-other", "")
	assert.True(t, errors.Is(err, errors.ErrCodeUnauthorized))

	got, err := eng.CancelCall(ctx, txn.ID, testOfficerID, "terms withdrawn")
	require.NoError(t, err)
	assert.Equal(t, store.StatusCancelled, got.Status)

	// Investors who saw the call are told it was withdrawn.
	var found bool
	for _, n := range st.ListNotificationsByRef(got.Ref) {
		if n.Type == store.NotificationCallCancelled {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSettlementConfirmationPassedThrough(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	txn := driveToStatus(t, eng, store.StatusSettlementPending)

	got, err := eng.ProcessSettlement(ctx, txn.ID, testInvestorID, &ProcessSettlementRequest{
		ConfirmationNumber: "WIRE-778899",
	})
	require.NoError(t, err)
	assert.Equal(t, "WIRE-778899", got.SettlementConfirmation)
	assert.Equal(t, store.StatusCompleted, got.Status)
}

func TestProgressReporting(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	txn := driveToStatus(t, eng, store.StatusBankReviewing)

	progress, err := eng.GetProgress(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, txn.Ref, progress.TxnRef)
	assert.Equal(t, 5, progress.CurrentStep)
	assert.Equal(t, 16, progress.TotalSteps)
	assert.InDelta(t, 31.25, progress.PercentComplete, 1e-9)
	assert.NotEmpty(t, progress.History)
}

func TestGetUnknownTransaction(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	_, err := eng.GetTransaction(context.Background(), "no-such-id")
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}

func TestProcessSettlementResumesAfterCancelledDelay(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	eng.WithSettlementDelay(5 * time.Second)

	txn := driveToStatus(t, eng, store.StatusSettlementPending)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := eng.ProcessSettlement(ctx, txn.ID, testInvestorID, &ProcessSettlementRequest{})
	require.ErrorIs(t, err, context.Canceled)

	// Confirmation landed but completion was interrupted.
	stuck, err := eng.GetTransaction(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusSettlementProcessing, stuck.Status)
	assert.Equal(t, 14, stuck.CurrentStep)
	assert.NotEmpty(t, stuck.SettlementConfirmation)
	assert.Nil(t, stuck.CompletedAt)

	// Only the accepted investor may resume.
	_, err = eng.ProcessSettlement(context.Background(), txn.ID, "investor-impostor", &ProcessSettlementRequest{})
	assert.True(t, errors.Is(err, errors.ErrCodeUnauthorized))

	// Retrying finishes the transaction without re-running the confirmation
	// or waiting out the delay again.
	start := time.Now()
	got, err := eng.ProcessSettlement(context.Background(), txn.ID, testInvestorID, &ProcessSettlementRequest{})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, store.StatusCompleted, got.Status)
	assert.Equal(t, 16, got.CurrentStep)
	assert.Equal(t, stuck.SettlementConfirmation, got.SettlementConfirmation)
	assert.NotNil(t, got.CompletedAt)
}

func TestSettlementDelayHonored(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	eng.WithSettlementDelay(10 * time.Millisecond)
	ctx := context.Background()

	txn := driveToStatus(t, eng, store.StatusSettlementPending)

	start := time.Now()
	got, err := eng.ProcessSettlement(ctx, txn.ID, testInvestorID, &ProcessSettlementRequest{})
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, got.Status)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}
