// Package client holds outbound integrations. The workflow engine itself only
// emits on the in-process bus; the relay here mirrors those milestones to NATS
// for external consumers (notification delivery, downstream dashboards).
package client

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/forwardsflow/be-cc-workflow/internal/bus"
)

// EventRelay republishes workflow bus events to NATS.
//
// Subject convention: forwardsflow.workflow.<event_name>
//
// All publish operations are non-fatal — errors are logged but never
// propagated, so a broker outage can never interrupt a workflow transition.
type EventRelay struct {
	nc  *nats.Conn
	log zerolog.Logger

	unsubscribe []func()
}

// NewEventRelay connects to NATS at url.
func NewEventRelay(url string, log zerolog.Logger) (*EventRelay, error) {
	nc, err := nats.Connect(url, nats.Name("forwardsflow-cc-workflow"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return &EventRelay{nc: nc, log: log}, nil
}

// Attach subscribes the relay to every workflow event on the bus.
func (r *EventRelay) Attach(b *bus.Bus) {
	for _, event := range bus.Events {
		r.unsubscribe = append(r.unsubscribe, b.Subscribe(event, r.publish))
	}
}

// Close detaches from the bus and drains the NATS connection.
func (r *EventRelay) Close() {
	for _, unsub := range r.unsubscribe {
		unsub()
	}
	r.unsubscribe = nil
	if r.nc != nil {
		r.nc.Close()
	}
}

func (r *EventRelay) publish(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.log.Warn().Err(err).Str("event", event).Msg("relay: failed to marshal event payload")
		return
	}

	subject := fmt.Sprintf("forwardsflow.workflow.%s", event)
	if err := r.nc.Publish(subject, data); err != nil {
		r.log.Warn().Err(err).
			Str("subject", subject).
			Msg("relay: failed to publish NATS event (non-fatal)")
		return
	}

	r.log.Debug().
		Str("subject", subject).
		Msg("relay: event published")
}
