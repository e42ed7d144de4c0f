// Package bus is the synchronous in-process event bus decoupling the workflow
// engine from its observers. Listeners run in registration order on the
// emitting goroutine; a panicking listener is isolated and logged so it can
// never swallow the listeners behind it.
package bus

import (
	"sync"

	"github.com/rs/zerolog"
)

// Workflow milestone event names. Emitted 1:1 with the engine's major
// transitions.
const (
	EventTransactionCreated       = "transaction_created"
	EventCapitalCallPublished     = "capital_call_published"
	EventInvestorResponded        = "investor_responded"
	EventBankAcceptedResponse     = "bank_accepted_response"
	EventKYCSubmitted             = "kyc_submitted"
	EventKYCApproved              = "kyc_approved"
	EventSettlementProcessed      = "settlement_processed"
	EventTransactionCompleted     = "transaction_completed"
	EventInvestorPortfolioUpdated = "investor_portfolio_updated"
	EventBankPortfolioUpdated     = "bank_portfolio_updated"
	EventCapitalCallCancelled     = "capital_call_cancelled"
	EventCapitalCallExpired       = "capital_call_expired"
)

// Events lists every event name the engine emits, in pipeline order.
var Events = []string{
	EventTransactionCreated,
	EventCapitalCallPublished,
	EventInvestorResponded,
	EventBankAcceptedResponse,
	EventKYCSubmitted,
	EventKYCApproved,
	EventSettlementProcessed,
	EventTransactionCompleted,
	EventInvestorPortfolioUpdated,
	EventBankPortfolioUpdated,
	EventCapitalCallCancelled,
	EventCapitalCallExpired,
}

// Handler receives the payload emitted with an event.
type Handler func(event string, payload any)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a named-event publish/subscribe registry.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string][]subscription
	log    zerolog.Logger
}

// New creates an empty Bus.
func New(log zerolog.Logger) *Bus {
	return &Bus{
		subs: make(map[string][]subscription),
		log:  log,
	}
}

// Subscribe registers a handler for an event name and returns an unsubscribe
// function.
func (b *Bus) Subscribe(event string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[event] = append(b.subs[event], subscription{id: id, handler: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[event]
		for i, s := range subs {
			if s.id == id {
				b.subs[event] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Emit invokes every handler registered for the event, synchronously, in
// registration order.
func (b *Bus) Emit(event string, payload any) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs[event]))
	copy(subs, b.subs[event])
	b.mu.RUnlock()

	for _, s := range subs {
		b.invoke(event, s, payload)
	}
}

// invoke runs one handler with panic isolation.
func (b *Bus) invoke(event string, s subscription, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Str("event", event).
				Interface("panic", r).
				Msg("event listener panicked")
		}
	}()
	s.handler(event, payload)
}
