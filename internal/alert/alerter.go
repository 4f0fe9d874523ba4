package alert

import (
	"context"
	"time"
)

// Event represents a notification sent to alerting backends when a scan
// finds variables that need attention.
type Event struct {
	Source    string    `json:"source"`
	EventType string    `json:"event_type"`
	Severity  string    `json:"severity"`
	Finding   Finding   `json:"finding"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Finding is the discrepancy info embedded in an alert event.
type Finding struct {
	File     string `json:"file"`
	Variable string `json:"variable"`
	Kind     string `json:"kind"`
	Line     int    `json:"line"`
}

// Alerter defines the interface for sending alert events.
type Alerter interface {
	// Name returns the alerter identifier.
	Name() string

	// Send dispatches an event to the alerting backend.
	Send(ctx context.Context, event Event) error
}

// Multi sends events to multiple alerters.
type Multi struct {
	alerters []Alerter
}

// NewMulti creates a multi-alerter that dispatches to all backends.
func NewMulti(alerters ...Alerter) *Multi {
	return &Multi{alerters: alerters}
}

// Send dispatches the event to all configured alerters.
func (m *Multi) Send(ctx context.Context, event Event) error {
	var lastErr error
	for _, a := range m.alerters {
		if err := a.Send(ctx, event); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
