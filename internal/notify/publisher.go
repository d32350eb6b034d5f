package notify

import "github.com/rs/zerolog/log"

// Sink delivers events to connected recipients. Delivery is best-effort:
// implementations must never return an error into a business transaction.
type Sink interface {
	Publish(event Event)
}

// Ensure Hub implements Sink
var _ Sink = (*Hub)(nil)

// Publish implements Sink by broadcasting to every matching client.
func (h *Hub) Publish(event Event) {
	h.Broadcast(event)
}

// Outbox stages events during a transaction and flushes them only after
// the transaction commits. A discarded outbox (rollback path) simply
// drops its events.
type Outbox struct {
	sink   Sink
	staged []Event
}

// NewOutbox creates an outbox that flushes into sink.
func NewOutbox(sink Sink) *Outbox {
	return &Outbox{sink: sink}
}

// Stage records an event for post-commit delivery.
func (o *Outbox) Stage(events ...Event) {
	o.staged = append(o.staged, events...)
}

// Flush delivers all staged events and clears the outbox. Call it only
// after the surrounding transaction committed.
func (o *Outbox) Flush() {
	for _, e := range o.staged {
		o.sink.Publish(e)
		log.Debug().
			Str("event_type", e.Type).
			Int64("ref_id", e.RefID).
			Msg("Notification published")
	}
	o.staged = nil
}

// Staged returns the events currently staged (helper for tests).
func (o *Outbox) Staged() []Event {
	return o.staged
}
