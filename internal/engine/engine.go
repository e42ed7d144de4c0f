// Package engine implements the capital-call-to-settlement workflow state
// machine. Every operation validates its preconditions against an explicit
// transition table, mutates the transaction under its per-transaction lock,
// appends history, constructs notifications, and emits bus events for
// observers.
package engine

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forwardsflow/be-cc-workflow/internal/bus"
	"github.com/forwardsflow/be-cc-workflow/internal/logger"
	"github.com/forwardsflow/be-cc-workflow/internal/store"
)

const (
	defaultCallExpiry       = 7 * 24 * time.Hour
	defaultSettlementWindow = 3 * 24 * time.Hour
)

// Recipient roles used for notification targeting.
const (
	RoleInvestor   = "investor"
	RoleBankLender = "bank_lender"
	RoleCompliance = "compliance"
)

// Engine orchestrates the 16-step capital call workflow. Construct one per
// process (or per test) and inject it into callers; there is no ambient
// global instance.
type Engine struct {
	store *store.Store
	bus   *bus.Bus
	log   *logger.Logger

	clock            func() time.Time
	settlementDelay  time.Duration
	callExpiry       time.Duration
	settlementWindow time.Duration
}

// New creates an Engine over the given store and event bus.
func New(st *store.Store, b *bus.Bus, log *logger.Logger) *Engine {
	return &Engine{
		store:            st,
		bus:              b,
		log:              log,
		clock:            time.Now,
		callExpiry:       defaultCallExpiry,
		settlementWindow: defaultSettlementWindow,
	}
}

// WithClock overrides the time source. Used in tests.
func (e *Engine) WithClock(fn func() time.Time) *Engine {
	e.clock = fn
	return e
}

// WithSettlementDelay sets the simulated settlement rail latency applied
// between settlement confirmation and completion.
func (e *Engine) WithSettlementDelay(d time.Duration) *Engine {
	e.settlementDelay = d
	return e
}

// WithCallExpiry sets how long a published call stays open.
func (e *Engine) WithCallExpiry(d time.Duration) *Engine {
	e.callExpiry = d
	return e
}

// WithSettlementWindow sets the investor's settlement deadline after KYC
// approval.
func (e *Engine) WithSettlementWindow(d time.Duration) *Engine {
	e.settlementWindow = d
	return e
}

// Event is the payload emitted on the bus for workflow milestones.
type Event struct {
	Transaction  *store.Transaction  `json:"transaction"`
	Notification *store.Notification `json:"notification,omitempty"`
}

// PortfolioEvent carries a portfolio entry synthesized at completion.
type PortfolioEvent struct {
	Transaction *store.Transaction    `json:"transaction"`
	Entry       *store.PortfolioEntry `json:"entry"`
}

// ── Derived value rules ───────────────────────────────────────────────────────

// totalYield is the sum of the three rate components.
func totalYield(interestRate, fxSpread, hedgingFee float64) float64 {
	return interestRate + fxSpread + hedgingFee
}

// forwardRate annualizes the hedging fee proportionally to tenor.
func forwardRate(spotRate, hedgingFee float64, tenorMonths int) float64 {
	return spotRate * (1 + hedgingFee*(float64(tenorMonths)/12)/100)
}

// hedgedRate inflates spot by the full hedging fee. Deliberately not
// tenor-scaled; the asymmetry with forwardRate is part of the product's
// pricing model.
func hedgedRate(spotRate, hedgingFee float64) float64 {
	return spotRate * (1 + hedgingFee/100)
}

// ── Internal helpers ──────────────────────────────────────────────────────────

// record appends a history entry and advances the step counter. The step
// counter never decreases: a step at or behind the current one keeps the
// counter where it is (decline reopening is the only caller that replays a
// step).
func (e *Engine) record(t *store.Transaction, step int, act action, actor string, data map[string]any) {
	if step > t.CurrentStep {
		t.CurrentStep = step
	}
	t.History = append(t.History, store.HistoryEntry{
		Step:      step,
		Action:    string(act),
		Actor:     actor,
		Data:      data,
		Timestamp: e.clock(),
	})
}

// newNotification constructs a notification record. An empty recipientID
// targets every holder of the role.
func (e *Engine) newNotification(typ store.NotificationType, txnRef, role, recipientID, title, message string, data map[string]any) *store.Notification {
	return &store.Notification{
		ID:            uuid.New().String(),
		Type:          typ,
		TxnRef:        txnRef,
		RecipientRole: role,
		RecipientID:   recipientID,
		Title:         title,
		Message:       message,
		Data:          data,
		CreatedAt:     e.clock(),
	}
}

// deliver stores notifications created during a transition.
func (e *Engine) deliver(notifications []*store.Notification) {
	for _, n := range notifications {
		e.store.AddNotification(n)
	}
}

func normalizeCurrency(c string) string {
	return strings.ToUpper(strings.TrimSpace(c))
}
