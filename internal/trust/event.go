package trust

import (
	"fmt"
	"time"
)

// EventType is the closed set of trust-relevant events.
type EventType string

const (
	EventPolicyViolation     EventType = "policy_violation"
	EventPolicyCompliance    EventType = "policy_compliance"
	EventSuccessfulHandshake EventType = "successful_handshake"
	EventFailedHandshake     EventType = "failed_handshake"
	EventGoodBehavior        EventType = "good_behavior"
	EventBadBehavior         EventType = "bad_behavior"
)

var eventTypes = map[EventType]bool{
	EventPolicyViolation:     true,
	EventPolicyCompliance:    true,
	EventSuccessfulHandshake: true,
	EventFailedHandshake:     true,
	EventGoodBehavior:        true,
	EventBadBehavior:         true,
}

// ParseEventType validates an externally supplied event type.
func ParseEventType(s string) (EventType, error) {
	t := EventType(s)
	if !eventTypes[t] {
		return "", fmt.Errorf("unknown event type %q", s)
	}
	return t, nil
}

// Severity scales penalties. The zero value behaves as low.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ParseSeverity accepts "", low, medium or high.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case "", SeverityLow:
		return SeverityLow, nil
	case SeverityMedium:
		return SeverityMedium, nil
	case SeverityHigh:
		return SeverityHigh, nil
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// Multiplier returns 3 for high, 2 for medium and 1 otherwise.
func (s Severity) Multiplier() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	}
	return 1
}

// Event is an observation fed to Apply.
type Event struct {
	Type     EventType `json:"type"`
	Severity Severity  `json:"severity,omitempty"`
}

// Apply returns the score that results from ev. The input is not modified;
// dimensions are clamped and the total and tier are re-derived.
func Apply(s Score, ev Event, now time.Time) Score {
	d := s.dims
	m := ev.Severity.Multiplier()

	switch ev.Type {
	case EventPolicyViolation:
		d.PolicyCompliance -= 5 * m
		d.SecurityPosture -= 2 * m
	case EventPolicyCompliance:
		d.PolicyCompliance++
	case EventSuccessfulHandshake:
		d.CollaborationHealth += 2
		d.SecurityPosture++
	case EventFailedHandshake:
		d.CollaborationHealth -= 3
	case EventGoodBehavior:
		d.OutputQuality++
		d.ResourceEfficiency++
	case EventBadBehavior:
		d.OutputQuality -= 3 * m
	}

	return NewScore(d, now)
}
