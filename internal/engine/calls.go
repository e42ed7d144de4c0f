package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/forwardsflow/be-cc-workflow/internal/bus"
	"github.com/forwardsflow/be-cc-workflow/internal/errors"
	"github.com/forwardsflow/be-cc-workflow/internal/store"
)

// CreateCall creates a new capital call in draft. Step 1.
func (e *Engine) CreateCall(ctx context.Context, req *CreateCallRequest) (*store.Transaction, error) {
	if req.BankID == "" {
		return nil, errors.InvalidInput("bank_id", "bank id is required")
	}
	if req.CreatedBy == "" {
		return nil, errors.InvalidInput("created_by", "creating officer id is required")
	}
	if req.Amount <= 0 {
		return nil, errors.InvalidInput("amount", "amount must be positive")
	}
	currency := normalizeCurrency(req.Currency)
	if len(currency) != 3 {
		return nil, errors.InvalidInput("currency", "currency must be 3-letter ISO code")
	}
	if req.InterestRate < 0 || req.FXSpread < 0 || req.HedgingFee < 0 {
		return nil, errors.InvalidInput("rates", "rate components cannot be negative")
	}
	if req.TenorMonths <= 0 {
		return nil, errors.InvalidInput("tenor_months", "tenor must be positive")
	}
	if req.SpotRate <= 0 {
		return nil, errors.InvalidInput("spot_rate", "spot rate must be positive")
	}

	now := e.clock()
	txn := &store.Transaction{
		ID:           uuid.New().String(),
		Ref:          e.store.NextRef(),
		BankID:       req.BankID,
		CreatedBy:    req.CreatedBy,
		Amount:       req.Amount,
		Currency:     currency,
		InterestRate: req.InterestRate,
		FXSpread:     req.FXSpread,
		HedgingFee:   req.HedgingFee,
		TotalYield:   totalYield(req.InterestRate, req.FXSpread, req.HedgingFee),
		TenorMonths:  req.TenorMonths,
		SpotRate:     req.SpotRate,
		ForwardRate:  forwardRate(req.SpotRate, req.HedgingFee, req.TenorMonths),
		HedgedRate:   hedgedRate(req.SpotRate, req.HedgingFee),
		Compliance: store.ComplianceSnapshot{
			FATCACompliant:       req.FATCACompliant,
			SanctionsCleared:     req.SanctionsCleared,
			CapitalAdequacyRatio: req.CapitalAdequacyRatio,
		},
		Status:       store.StatusDraft,
		CreatedAt:    now,
		MaturityDate: now.AddDate(0, req.TenorMonths, 0),
	}
	e.record(txn, 1, actionCreate, req.CreatedBy, map[string]any{
		"amount":   txn.Amount,
		"currency": txn.Currency,
	})

	e.store.Put(txn)

	snap, err := e.store.Get(txn.ID)
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Str("txn_id", snap.ID).
		Str("txn_ref", snap.Ref).
		Str("bank_id", snap.BankID).
		Float64("amount", snap.Amount).
		Str("currency", snap.Currency).
		Float64("total_yield", snap.TotalYield).
		Msg("Capital call created")

	e.bus.Emit(bus.EventTransactionCreated, &Event{Transaction: snap})

	return snap, nil
}

// PublishCall makes a draft call visible to investors and fans out the
// investor notification. Steps 2 and 3.
func (e *Engine) PublishCall(ctx context.Context, id, actorID string) (*store.Transaction, error) {
	var created []*store.Notification

	snap, err := e.store.Mutate(id, func(t *store.Transaction) error {
		if actorID != t.CreatedBy {
			return errors.Unauthorized("only the creating bank officer can publish a capital call")
		}
		if err := advance(t, actionPublish); err != nil {
			return err
		}

		now := e.clock()
		expires := now.Add(e.callExpiry)
		t.PublishedAt = &now
		t.ExpiresAt = &expires
		e.record(t, 2, actionPublish, actorID, nil)

		n := e.newNotification(
			store.NotificationCapitalCallPublished,
			t.Ref, RoleInvestor, "",
			"New capital call available",
			fmt.Sprintf("%s is raising %s %.2f at %.2f%% total yield over %d months",
				t.BankID, t.Currency, t.Amount, t.TotalYield, t.TenorMonths),
			map[string]any{
				"amount":       t.Amount,
				"currency":     t.Currency,
				"total_yield":  t.TotalYield,
				"tenor_months": t.TenorMonths,
				"expires_at":   expires,
			},
		)
		created = append(created, n)

		if err := advance(t, actionNotifyInvestors); err != nil {
			return err
		}
		e.record(t, 3, actionNotifyInvestors, "", nil)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.deliver(created)

	e.log.Info().
		Str("txn_ref", snap.Ref).
		Time("expires_at", *snap.ExpiresAt).
		Msg("Capital call published")

	e.bus.Emit(bus.EventCapitalCallPublished, &Event{Transaction: snap, Notification: created[0]})

	return snap, nil
}

// RespondToCall records an investor's accept, counter or decline. Steps 4 and
// 5 on accept/counter; a decline replays step 4 and reopens the call.
func (e *Engine) RespondToCall(ctx context.Context, id, investorID string, req *RespondRequest) (*store.Transaction, error) {
	if investorID == "" {
		return nil, errors.InvalidInput("investor_id", "investor id is required")
	}
	switch req.Response {
	case store.ResponseAccept, store.ResponseDecline:
	case store.ResponseCounter:
		if req.CounterTerms == nil {
			return nil, errors.InvalidInput("counter_terms", "counter response requires proposed terms")
		}
		if req.CounterTerms.ProposedRate <= 0 && req.CounterTerms.ProposedAmount <= 0 {
			return nil, errors.InvalidInput("counter_terms", "counter must propose a rate or an amount")
		}
	default:
		return nil, errors.InvalidInput("response", "response must be accept, counter or decline")
	}

	var created []*store.Notification

	snap, err := e.store.Mutate(id, func(t *store.Transaction) error {
		now := e.clock()
		if t.ExpiresAt != nil && now.After(*t.ExpiresAt) {
			return errors.New(errors.ErrCodeInvalidTransition,
				fmt.Sprintf("capital call %s expired at %s", t.Ref, t.ExpiresAt.Format("2006-01-02 15:04:05")))
		}
		if err := advance(t, actionInvestorRespond); err != nil {
			return err
		}

		t.InvestorResponse = &store.InvestorResponse{
			InvestorID:   investorID,
			Response:     req.Response,
			CounterTerms: req.CounterTerms,
			RespondedAt:  now,
		}
		e.record(t, 4, actionInvestorRespond, investorID, map[string]any{
			"response": string(req.Response),
		})

		if req.Response == store.ResponseDecline {
			// Terminal for this offer only: the call reopens for other
			// investors, the step counter stays where it is.
			if err := advance(t, actionDecline); err != nil {
				return err
			}
			e.record(t, 4, actionDecline, investorID, nil)
			created = append(created, e.newNotification(
				store.NotificationInvestorResponded,
				t.Ref, RoleBankLender, t.CreatedBy,
				"Capital call declined",
				fmt.Sprintf("Investor %s declined capital call %s; the call has been reopened", investorID, t.Ref),
				nil,
			))
			return nil
		}

		created = append(created, e.newNotification(
			store.NotificationInvestorResponded,
			t.Ref, RoleBankLender, t.CreatedBy,
			"Investor response received",
			fmt.Sprintf("Investor %s responded '%s' to capital call %s", investorID, req.Response, t.Ref),
			map[string]any{"response": string(req.Response)},
		))

		if err := advance(t, actionBankReview); err != nil {
			return err
		}
		e.record(t, 5, actionBankReview, "", nil)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.deliver(created)

	e.log.Info().
		Str("txn_ref", snap.Ref).
		Str("investor_id", investorID).
		Str("response", string(req.Response)).
		Msg("Investor responded to capital call")

	e.bus.Emit(bus.EventInvestorResponded, &Event{Transaction: snap, Notification: created[0]})

	return snap, nil
}

// AcceptResponse confirms the investor response on the bank side and asks the
// investor for settlement instructions. Steps 6 and 7. Accepting a
// counter-offer overwrites the transaction's amount/rate and recomputes the
// total yield.
func (e *Engine) AcceptResponse(ctx context.Context, id, actorID string, req *AcceptResponseRequest) (*store.Transaction, error) {
	var created []*store.Notification

	snap, err := e.store.Mutate(id, func(t *store.Transaction) error {
		if actorID != t.CreatedBy {
			return errors.Unauthorized("only the creating bank officer can accept an investor response")
		}
		if t.InvestorResponse == nil {
			return errors.InvalidTransition(string(t.Status), string(actionAcceptResponse))
		}
		if err := advance(t, actionAcceptResponse); err != nil {
			return err
		}

		if t.InvestorResponse.Response == store.ResponseCounter && req.AcceptCounterTerms {
			ct := t.InvestorResponse.CounterTerms
			if ct.ProposedAmount > 0 {
				t.Amount = ct.ProposedAmount
			}
			if ct.ProposedRate > 0 {
				t.InterestRate = ct.ProposedRate
			}
			t.TotalYield = totalYield(t.InterestRate, t.FXSpread, t.HedgingFee)
		}

		now := e.clock()
		t.AcceptedBy = t.InvestorResponse.InvestorID
		t.AcceptedAt = &now
		e.record(t, 6, actionAcceptResponse, actorID, map[string]any{
			"accepted_by":          t.AcceptedBy,
			"accept_counter_terms": req.AcceptCounterTerms,
		})

		created = append(created, e.newNotification(
			store.NotificationResponseAccepted,
			t.Ref, RoleInvestor, t.AcceptedBy,
			"Capital call accepted",
			fmt.Sprintf("%s accepted your response to %s; please submit settlement instructions", t.BankID, t.Ref),
			map[string]any{"amount": t.Amount, "interest_rate": t.InterestRate, "total_yield": t.TotalYield},
		))

		if err := advance(t, actionRequestSettlement); err != nil {
			return err
		}
		e.record(t, 7, actionRequestSettlement, "", nil)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.deliver(created)

	e.log.Info().
		Str("txn_ref", snap.Ref).
		Str("accepted_by", snap.AcceptedBy).
		Float64("amount", snap.Amount).
		Float64("total_yield", snap.TotalYield).
		Msg("Bank accepted investor response")

	e.bus.Emit(bus.EventBankAcceptedResponse, &Event{Transaction: snap, Notification: created[0]})

	return snap, nil
}

// CancelCall lets the creating officer withdraw a call before acceptance.
func (e *Engine) CancelCall(ctx context.Context, id, actorID, reason string) (*store.Transaction, error) {
	var created []*store.Notification

	snap, err := e.store.Mutate(id, func(t *store.Transaction) error {
		if actorID != t.CreatedBy {
			return errors.Unauthorized("only the creating bank officer can cancel a capital call")
		}
		wasVisible := t.Status != store.StatusDraft
		if err := advance(t, actionCancel); err != nil {
			return err
		}

		data := map[string]any{}
		if reason != "" {
			data["reason"] = reason
		}
		e.record(t, t.CurrentStep, actionCancel, actorID, data)

		if wasVisible {
			created = append(created, e.newNotification(
				store.NotificationCallCancelled,
				t.Ref, RoleInvestor, "",
				"Capital call withdrawn",
				fmt.Sprintf("%s withdrew capital call %s", t.BankID, t.Ref),
				nil,
			))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.deliver(created)

	e.log.Info().
		Str("txn_ref", snap.Ref).
		Str("cancelled_by", actorID).
		Msg("Capital call cancelled")

	e.bus.Emit(bus.EventCapitalCallCancelled, &Event{Transaction: snap})

	return snap, nil
}

// ExpireCall marks a published call past its expiry window as expired.
func (e *Engine) ExpireCall(ctx context.Context, id string) (*store.Transaction, error) {
	var created []*store.Notification

	snap, err := e.store.Mutate(id, func(t *store.Transaction) error {
		now := e.clock()
		if t.ExpiresAt == nil || now.Before(*t.ExpiresAt) {
			return errors.New(errors.ErrCodeInvalidTransition,
				fmt.Sprintf("capital call %s has not reached its expiry window", t.Ref))
		}
		if err := advance(t, actionExpire); err != nil {
			return err
		}
		e.record(t, t.CurrentStep, actionExpire, "", nil)

		created = append(created, e.newNotification(
			store.NotificationCallExpired,
			t.Ref, RoleBankLender, t.CreatedBy,
			"Capital call expired",
			fmt.Sprintf("Capital call %s expired without an accepted investor", t.Ref),
			nil,
		))
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.deliver(created)

	e.log.Info().
		Str("txn_ref", snap.Ref).
		Msg("Capital call expired")

	e.bus.Emit(bus.EventCapitalCallExpired, &Event{Transaction: snap})

	return snap, nil
}
