package track

import "time"

// EventCollector receives lifecycle and match-quality events from a Lock.
// Implementations must be cheap and non-blocking: calls happen inside the
// update path. Collection is optional; a nil collector disables it.
type EventCollector interface {
	// IsEnabled gates collection; checked before every record call so
	// implementations can switch off without the lock knowing.
	IsEnabled() bool

	// RecordTransition fires once per state change, with the timeline
	// position and a short human-readable reason.
	RecordTransition(from, to State, pos time.Duration, reason string)

	// RecordMatch fires for the winning candidate of each update that found
	// one: exact id hits, committed fallbacks, and pending candidates that
	// were held back (accepted=false).
	RecordMatch(candidateID string, score float32, exact, accepted bool, pos time.Duration)

	// RecordIDSwitch fires when hysteresis commits a rebind to a new
	// detector id.
	RecordIDSwitch(from, to string, pos time.Duration)
}

// SetCollector installs or replaces the lock's event collector. Pass nil to
// disable collection. Call it from the same goroutine that drives Update.
func (l *Lock) SetCollector(c EventCollector) { l.collector = c }

func (l *Lock) emitTransition(from, to State, pos time.Duration, reason string) {
	if l.collector != nil && l.collector.IsEnabled() {
		l.collector.RecordTransition(from, to, pos, reason)
	}
}

func (l *Lock) emitMatch(id string, score float32, exact, accepted bool, pos time.Duration) {
	if l.collector != nil && l.collector.IsEnabled() {
		l.collector.RecordMatch(id, score, exact, accepted, pos)
	}
}

func (l *Lock) emitIDSwitch(from, to string, pos time.Duration) {
	if l.collector != nil && l.collector.IsEnabled() {
		l.collector.RecordIDSwitch(from, to, pos)
	}
}
