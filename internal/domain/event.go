package domain

import (
	"context"
	"time"
)

// PredictionEvent is the record published for every resolved attempt.
type PredictionEvent struct {
	ID          string     `json:"id"`
	Hazard      HazardType `json:"hazard"`
	Rows        int        `json:"rows"`
	Columns     int        `json:"columns"`
	Outcome     string     `json:"outcome"`
	Probability *float64   `json:"probability,omitempty"`
	Message     string     `json:"message,omitempty"`
	StatusCode  int        `json:"status_code,omitempty"`
	Display     string     `json:"display"`
	RequestedAt time.Time  `json:"requested_at"`
	ResolvedAt  time.Time  `json:"resolved_at"`
}

// NewPredictionEvent builds the event for a resolved attempt, stamping
// ResolvedAt from the domain clock.
func NewPredictionEvent(id string, hazard HazardType, m Matrix, requestedAt time.Time, r PredictionResult) PredictionEvent {
	ev := PredictionEvent{
		ID:          id,
		Hazard:      hazard,
		Rows:        m.Rows(),
		Columns:     m.Cols(),
		Outcome:     r.Outcome(),
		Display:     DisplayStateOf(&r).String(),
		RequestedAt: requestedAt,
		ResolvedAt:  clock.Now(),
	}
	if r.Kind == ResultSuccess {
		p := r.Probability
		ev.Probability = &p
	} else {
		ev.Message = r.Message
		ev.StatusCode = r.StatusCode
	}
	return ev
}

// EventPublisher delivers prediction events to a downstream sink.
type EventPublisher interface {
	Publish(ctx context.Context, ev PredictionEvent) error
}
