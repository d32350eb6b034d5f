package notify

import (
	"github.com/rs/zerolog"

	"github.com/uptownfs/dealflow/internal/domain"
)

// Directory maps roles to the currently-active user ids behind them, so
// role-addressed events (e.g. "all active financial managers") resolve
// to concrete recipients instead of depending on who happens to be
// connected when the event fires.
type Directory interface {
	ActiveUserIDs(role domain.Role) ([]string, error)
}

// ResolvingSink expands an event's role criteria through a Directory
// into explicit user ids before delegating to the next sink. Resolution
// failures are logged and the event is delivered with its original
// criteria; delivery must never fail the business transaction.
type ResolvingSink struct {
	directory Directory
	next      Sink
	logger    zerolog.Logger
}

// NewResolvingSink creates a ResolvingSink in front of next.
func NewResolvingSink(directory Directory, next Sink, logger zerolog.Logger) *ResolvingSink {
	return &ResolvingSink{
		directory: directory,
		next:      next,
		logger:    logger.With().Str("component", "notify_resolver").Logger(),
	}
}

// Publish resolves role recipients to active user ids, then delegates.
func (s *ResolvingSink) Publish(event Event) {
	resolved := event
	for _, role := range event.Recipients.Roles {
		ids, err := s.directory.ActiveUserIDs(role)
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("role", string(role)).
				Str("event_type", event.Type).
				Msg("Failed to resolve role recipients")
			continue
		}
		resolved.Recipients.UserIDs = append(resolved.Recipients.UserIDs, ids...)
	}
	s.next.Publish(resolved)
}

// Fanout delivers every event to each of its sinks in order.
type Fanout struct {
	sinks []Sink
}

// NewFanout creates a Fanout over the given sinks.
func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

// Publish delivers to every sink.
func (f *Fanout) Publish(event Event) {
	for _, s := range f.sinks {
		s.Publish(event)
	}
}

// LogSink records every event durably via zerolog. It is the fallback
// delivery target: recipients not connected to the hub when a scheduler
// job fires still leave a queryable trace, and a delivery failure can
// never block or roll back the emitting transaction.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a LogSink on the given logger.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "notifications").Logger()}
}

// Publish logs the event with its resolved recipients.
func (s *LogSink) Publish(event Event) {
	roles := make([]string, 0, len(event.Recipients.Roles))
	for _, r := range event.Recipients.Roles {
		roles = append(roles, string(r))
	}
	s.logger.Info().
		Str("event_id", event.ID).
		Str("event_type", event.Type).
		Str("entity", string(event.Entity)).
		Int64("ref_id", event.RefID).
		Strs("roles", roles).
		Strs("user_ids", event.Recipients.UserIDs).
		Str("message", event.Message).
		Msg("Notification")
}
