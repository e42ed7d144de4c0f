package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forwardsflow/be-cc-workflow/internal/bus"
	"github.com/forwardsflow/be-cc-workflow/internal/errors"
	"github.com/forwardsflow/be-cc-workflow/internal/store"
)

// SubmitSettlementDetails records the accepted investor's settlement
// instructions. Step 8; the status stays settlement_details_pending.
func (e *Engine) SubmitSettlementDetails(ctx context.Context, id, actorID string, req *SettlementDetailsRequest) (*store.Transaction, error) {
	if req.BankName == "" || req.AccountName == "" || req.AccountNumber == "" || req.SwiftCode == "" {
		return nil, errors.InvalidInput("settlement_details",
			"bank name, account name, account number and SWIFT code are all required")
	}

	snap, err := e.store.Mutate(id, func(t *store.Transaction) error {
		if err := requireStatus(t, store.StatusSettlementDetailsPending, actionSubmitSettlement); err != nil {
			return err
		}
		if t.SettlementDetails != nil {
			return errors.InvalidTransition(string(t.Status), string(actionSubmitSettlement))
		}
		if err := requireAcceptedInvestor(t, actorID); err != nil {
			return err
		}

		t.SettlementDetails = &store.SettlementDetails{
			BankName:      req.BankName,
			AccountName:   req.AccountName,
			AccountNumber: req.AccountNumber,
			SwiftCode:     strings.ToUpper(req.SwiftCode),
			SubmittedAt:   e.clock(),
		}
		e.record(t, 8, actionSubmitSettlement, actorID, map[string]any{
			"bank_name": req.BankName,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Str("txn_ref", snap.Ref).
		Str("investor_id", actorID).
		Msg("Settlement details submitted")

	return snap, nil
}

// SubmitRepatriationAccount records where principal plus yield returns at
// maturity. Step 9; requires settlement details first.
func (e *Engine) SubmitRepatriationAccount(ctx context.Context, id, actorID string, req *RepatriationAccountRequest) (*store.Transaction, error) {
	if req.BankName == "" || req.AccountNumber == "" || req.SwiftCode == "" {
		return nil, errors.InvalidInput("repatriation_account",
			"bank name, account number and SWIFT code are all required")
	}
	currency := normalizeCurrency(req.Currency)
	if len(currency) != 3 {
		return nil, errors.InvalidInput("currency", "currency must be 3-letter ISO code")
	}

	snap, err := e.store.Mutate(id, func(t *store.Transaction) error {
		if err := requireStatus(t, store.StatusSettlementDetailsPending, actionSubmitRepatriation); err != nil {
			return err
		}
		if t.SettlementDetails == nil || t.RepatriationAccount != nil {
			return errors.InvalidTransition(string(t.Status), string(actionSubmitRepatriation))
		}
		if err := requireAcceptedInvestor(t, actorID); err != nil {
			return err
		}

		t.RepatriationAccount = &store.RepatriationAccount{
			BankName:      req.BankName,
			AccountNumber: req.AccountNumber,
			SwiftCode:     strings.ToUpper(req.SwiftCode),
			Currency:      currency,
			SubmittedAt:   e.clock(),
		}
		e.record(t, 9, actionSubmitRepatriation, actorID, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Str("txn_ref", snap.Ref).
		Str("investor_id", actorID).
		Msg("Repatriation account submitted")

	return snap, nil
}

// SubmitKYCDetails records the investor's KYC documents and hands the
// transaction to compliance review. Steps 10 and 11.
func (e *Engine) SubmitKYCDetails(ctx context.Context, id, actorID string, req *SubmitKYCRequest) (*store.Transaction, error) {
	if len(req.Documents) == 0 {
		return nil, errors.InvalidInput("documents", "at least one KYC document is required")
	}
	for _, d := range req.Documents {
		if d.Type == "" || d.Reference == "" {
			return nil, errors.InvalidInput("documents", "every document needs a type and a reference")
		}
	}

	var created []*store.Notification

	snap, err := e.store.Mutate(id, func(t *store.Transaction) error {
		if err := requireStatus(t, store.StatusSettlementDetailsPending, actionSubmitKYC); err != nil {
			return err
		}
		if t.SettlementDetails == nil || t.RepatriationAccount == nil {
			return errors.InvalidTransition(string(t.Status), string(actionSubmitKYC))
		}
		if err := requireAcceptedInvestor(t, actorID); err != nil {
			return err
		}
		if err := advance(t, actionSubmitKYC); err != nil {
			return err
		}

		docs := make([]store.KYCDocument, 0, len(req.Documents))
		for _, d := range req.Documents {
			docs = append(docs, store.KYCDocument{
				Type:      d.Type,
				Reference: d.Reference,
				Status:    store.KYCDocumentSubmitted,
			})
		}
		t.KYCDetails = &store.KYCDetails{
			Documents:   docs,
			SubmittedAt: e.clock(),
		}
		e.record(t, 10, actionSubmitKYC, actorID, map[string]any{
			"document_count": len(docs),
		})

		created = append(created, e.newNotification(
			store.NotificationKYCReviewRequired,
			t.Ref, RoleCompliance, "",
			"KYC review required",
			fmt.Sprintf("Investor %s submitted %d KYC document(s) for %s", actorID, len(docs), t.Ref),
			map[string]any{"document_count": len(docs)},
		))

		if err := advance(t, actionKYCReview); err != nil {
			return err
		}
		e.record(t, 11, actionKYCReview, "", nil)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.deliver(created)

	e.log.Info().
		Str("txn_ref", snap.Ref).
		Str("investor_id", actorID).
		Int("documents", len(req.Documents)).
		Msg("KYC details submitted")

	e.bus.Emit(bus.EventKYCSubmitted, &Event{Transaction: snap, Notification: created[0]})

	return snap, nil
}

// ApproveKYC records the compliance outcome, approves every document, clears
// AML and opens the settlement window. Steps 12 and 13.
func (e *Engine) ApproveKYC(ctx context.Context, id, actorID string, req *ApproveKYCRequest) (*store.Transaction, error) {
	if actorID == "" {
		return nil, errors.InvalidInput("actor_id", "compliance officer id is required")
	}
	riskRating := req.RiskRating
	if riskRating == "" {
		riskRating = "standard"
	}

	var created []*store.Notification

	snap, err := e.store.Mutate(id, func(t *store.Transaction) error {
		if err := advance(t, actionApproveKYC); err != nil {
			return err
		}

		now := e.clock()
		for i := range t.KYCDetails.Documents {
			t.KYCDetails.Documents[i].Status = store.KYCDocumentApproved
		}
		t.KYCDetails.AMLStatus = "cleared"
		t.KYCDetails.RiskRating = riskRating
		t.KYCApprovedAt = &now
		e.record(t, 12, actionApproveKYC, actorID, map[string]any{
			"risk_rating": riskRating,
		})

		deadline := now.Add(e.settlementWindow)
		t.SettlementDeadline = &deadline

		created = append(created, e.newNotification(
			store.NotificationKYCApproved,
			t.Ref, RoleInvestor, t.AcceptedBy,
			"KYC cleared — settlement due",
			fmt.Sprintf("KYC for %s is approved; settle %s %.2f by %s",
				t.Ref, t.Currency, t.Amount, deadline.Format("2006-01-02")),
			map[string]any{"settlement_deadline": deadline},
		))

		if err := advance(t, actionOpenSettlement); err != nil {
			return err
		}
		e.record(t, 13, actionOpenSettlement, "", nil)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.deliver(created)

	e.log.Info().
		Str("txn_ref", snap.Ref).
		Str("approved_by", actorID).
		Str("risk_rating", riskRating).
		Msg("KYC approved")

	e.bus.Emit(bus.EventKYCApproved, &Event{Transaction: snap, Notification: created[0]})

	return snap, nil
}

// ProcessSettlement confirms the investor wired the committed capital, then
// completes the transaction after the configured processing delay. Steps 14
// through 16. Calling it again on a transaction stuck in settlement_processing
// (the caller's context was cancelled during the delay) resumes completion
// without re-running the confirmation or the delay.
func (e *Engine) ProcessSettlement(ctx context.Context, id, actorID string, req *ProcessSettlementRequest) (*store.Transaction, error) {
	var created []*store.Notification
	resume := false

	snap, err := e.store.Mutate(id, func(t *store.Transaction) error {
		if t.Status == store.StatusSettlementProcessing {
			if err := requireAcceptedInvestor(t, actorID); err != nil {
				return err
			}
			resume = true
			return nil
		}
		if err := requireStatus(t, store.StatusSettlementPending, actionConfirmSettlement); err != nil {
			return err
		}
		if err := requireAcceptedInvestor(t, actorID); err != nil {
			return err
		}
		if err := advance(t, actionConfirmSettlement); err != nil {
			return err
		}

		confirmation := req.ConfirmationNumber
		if confirmation == "" {
			confirmation = syntheticConfirmation()
		}

		now := e.clock()
		t.SettlementConfirmation = confirmation
		t.SettledAt = &now
		e.record(t, 14, actionConfirmSettlement, actorID, map[string]any{
			"confirmation_number": confirmation,
		})

		created = append(created, e.newNotification(
			store.NotificationSettlementReceived,
			t.Ref, RoleBankLender, t.CreatedBy,
			"Settlement received",
			fmt.Sprintf("Investor %s settled %s %.2f on %s (confirmation %s)",
				actorID, t.Currency, t.Amount, t.Ref, confirmation),
			map[string]any{"confirmation_number": confirmation},
		))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if resume {
		e.log.Info().
			Str("txn_ref", snap.Ref).
			Str("investor_id", actorID).
			Msg("Resuming interrupted settlement completion")
		return e.complete(ctx, id)
	}

	e.deliver(created)

	e.log.Info().
		Str("txn_ref", snap.Ref).
		Str("investor_id", actorID).
		Str("confirmation", snap.SettlementConfirmation).
		Msg("Settlement confirmed, processing")

	e.bus.Emit(bus.EventSettlementProcessed, &Event{Transaction: snap, Notification: created[0]})

	// Simulated settlement rail latency before completion.
	if e.settlementDelay > 0 {
		select {
		case <-time.After(e.settlementDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return e.complete(ctx, id)
}

// complete synthesizes the two portfolio entries, issues completion
// notifications to both parties and closes the transaction. Steps 15 and 16.
func (e *Engine) complete(ctx context.Context, id string) (*store.Transaction, error) {
	var created []*store.Notification
	var entries []*store.PortfolioEntry

	snap, err := e.store.Mutate(id, func(t *store.Transaction) error {
		if err := requireStatus(t, store.StatusSettlementProcessing, actionComplete); err != nil {
			return err
		}

		now := e.clock()
		entries = append(entries,
			&store.PortfolioEntry{
				ID:           uuid.New().String(),
				TxnRef:       t.Ref,
				Side:         store.PortfolioSideInvestorInvestment,
				HolderID:     t.AcceptedBy,
				Amount:       t.Amount,
				Currency:     t.Currency,
				Yield:        t.TotalYield,
				TenorMonths:  t.TenorMonths,
				MaturityDate: t.MaturityDate,
				CreatedAt:    now,
			},
			&store.PortfolioEntry{
				ID:           uuid.New().String(),
				TxnRef:       t.Ref,
				Side:         store.PortfolioSideBankLiability,
				HolderID:     t.BankID,
				Amount:       t.Amount,
				Currency:     t.Currency,
				Yield:        t.TotalYield,
				TenorMonths:  t.TenorMonths,
				MaturityDate: t.MaturityDate,
				CreatedAt:    now,
			},
		)
		e.record(t, 15, actionRecordPortfolio, "", map[string]any{
			"entries": len(entries),
		})

		if err := advance(t, actionComplete); err != nil {
			return err
		}
		t.CompletedAt = &now
		e.record(t, 16, actionComplete, "", nil)

		created = append(created,
			e.newNotification(
				store.NotificationTransactionCompleted,
				t.Ref, RoleInvestor, t.AcceptedBy,
				"Transaction completed",
				fmt.Sprintf("%s is settled; the deposit matures on %s", t.Ref, t.MaturityDate.Format("2006-01-02")),
				nil,
			),
			e.newNotification(
				store.NotificationTransactionCompleted,
				t.Ref, RoleBankLender, t.CreatedBy,
				"Transaction completed",
				fmt.Sprintf("%s is settled and booked as a liability until %s", t.Ref, t.MaturityDate.Format("2006-01-02")),
				nil,
			),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		e.store.AddPortfolioEntry(entry)
	}
	e.deliver(created)

	e.log.Info().
		Str("txn_ref", snap.Ref).
		Str("investor_id", snap.AcceptedBy).
		Str("bank_id", snap.BankID).
		Msg("Transaction completed")

	e.bus.Emit(bus.EventInvestorPortfolioUpdated, &PortfolioEvent{Transaction: snap, Entry: entries[0]})
	e.bus.Emit(bus.EventBankPortfolioUpdated, &PortfolioEvent{Transaction: snap, Entry: entries[1]})
	e.bus.Emit(bus.EventTransactionCompleted, &Event{Transaction: snap})

	return snap, nil
}

// requireAcceptedInvestor checks that the actor is the investor whose response
// the bank accepted.
func requireAcceptedInvestor(t *store.Transaction, actorID string) error {
	if actorID != t.AcceptedBy {
		return errors.Unauthorized("only the accepted investor may act on this transaction")
	}
	return nil
}

// syntheticConfirmation mints a settlement confirmation number when the caller
// supplies none.
func syntheticConfirmation() string {
	return "STL-" + strings.ToUpper(uuid.New().String()[:8])
}
