package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/hazard-predict/internal/domain"
	"github.com/couchcryptid/hazard-predict/internal/observability"
	"github.com/google/uuid"
)

// MalformedInputMessage is the notice shown when the input is not valid JSON.
const MalformedInputMessage = "Invalid JSON format"

var (
	// ErrBusy is returned when a predict request arrives while one is awaiting a response.
	ErrBusy = errors.New("prediction already in flight")
	// ErrMalformedInput is returned when the raw input is not valid JSON.
	ErrMalformedInput = errors.New("malformed input")
)

// State is the controller's position in the predict workflow.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateAwaiting
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateAwaiting:
		return "awaiting"
	case StateResolved:
		return "resolved"
	default:
		return "idle"
	}
}

// Attempt is a validated request ready to be sent. Seq ties the eventual
// response to the controller state that issued it.
type Attempt struct {
	ID          string
	Seq         uint64
	Spec        domain.HazardSpec
	Matrix      domain.Matrix
	RequestedAt time.Time
}

// Controller owns the hazard selection, raw input and current result of one
// prediction form. All methods are safe for concurrent use; the predictor
// call runs outside the lock.
type Controller struct {
	table     *domain.HazardTable
	predictor domain.Predictor
	publisher domain.EventPublisher
	metrics   *observability.Metrics
	logger    *slog.Logger

	mu          sync.Mutex
	hazard      domain.HazardType
	input       string
	state       State
	result      *domain.PredictionResult
	notice      string
	seq         uint64
	lastFailure string
	// inFlight outlives a hazard switch; only Complete clears it.
	inFlight    bool
}

// Option configures optional controller collaborators.
type Option func(*Controller)

// WithPublisher sends a PredictionEvent for every resolved attempt.
func WithPublisher(p domain.EventPublisher) Option {
	return func(c *Controller) {
		c.publisher = p
	}
}

// WithHazard overrides the initially selected hazard. Unknown hazards are ignored.
func WithHazard(h domain.HazardType) Option {
	return func(c *Controller) {
		if _, err := c.table.Lookup(h); err == nil {
			c.hazard = h
		}
	}
}

// New creates a Controller starting Idle on the table's default hazard.
func New(table *domain.HazardTable, predictor domain.Predictor, metrics *observability.Metrics, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		table:     table,
		predictor: predictor,
		metrics:   metrics,
		logger:    logger,
		hazard:    table.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SelectHazard switches the hazard type and resets input, result and notice.
// A request still in flight for the previous selection keeps new attempts
// refused until it lands, and its response is then discarded.
func (c *Controller) SelectHazard(h domain.HazardType) error {
	if _, err := c.table.Lookup(h); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.hazard = h
	c.input = ""
	c.result = nil
	c.notice = ""
	c.state = StateIdle
	c.seq++
	c.logger.Debug("hazard selected", "hazard", h)
	return nil
}

// SetInput replaces the raw input text.
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = text
}

// Begin parses and validates the current input. On success the controller
// moves to Awaiting, the current result becomes Pending and the returned
// Attempt must be passed to Complete. Malformed or rejected input leaves the
// controller Idle with a notice and any prior result untouched.
func (c *Controller) Begin() (Attempt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight {
		return Attempt{}, ErrBusy
	}
	c.state = StateValidating

	spec, err := c.table.Lookup(c.hazard)
	if err != nil {
		c.state = StateIdle
		return Attempt{}, err
	}

	v, err := domain.ParseInput(c.input)
	if err != nil {
		c.reject(spec.Type, "malformed", MalformedInputMessage)
		return Attempt{}, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	m, err := domain.ValidateShape(spec, v)
	if err != nil {
		var se *domain.ShapeError
		if errors.As(err, &se) {
			c.reject(spec.Type, string(se.Reason), se.UserMessage())
		} else {
			c.reject(spec.Type, "invalid", err.Error())
		}
		return Attempt{}, fmt.Errorf("validate %s input: %w", spec.Type, err)
	}

	c.seq++
	a := Attempt{
		ID:          uuid.NewString(),
		Seq:         c.seq,
		Spec:        spec,
		Matrix:      m,
		RequestedAt: domain.Now(),
	}

	pending := domain.Pending()
	c.result = &pending
	c.notice = ""
	c.state = StateAwaiting
	c.inFlight = true
	c.metrics.InFlight.Inc()

	c.logger.Info("prediction requested",
		"attempt", a.ID,
		"hazard", spec.Type,
		"rows", m.Rows(),
		"columns", m.Cols(),
	)
	return a, nil
}

// reject records a validation failure. Caller holds c.mu.
func (c *Controller) reject(h domain.HazardType, reason, notice string) {
	c.notice = notice
	c.state = StateIdle
	c.metrics.InputRejections.WithLabelValues(string(h), reason).Inc()
	c.logger.Info("input rejected", "hazard", h, "reason", reason)
}

// Complete sends the attempt to the predictor and applies the result. It
// reports false when the attempt was superseded before the response arrived,
// in which case the controller state is left untouched.
func (c *Controller) Complete(ctx context.Context, a Attempt) (domain.PredictionResult, bool) {
	result := c.predictor.Predict(ctx, a.Spec, a.Matrix)
	c.metrics.InFlight.Dec()

	if !c.resolve(a, result) {
		return result, false
	}

	if c.publisher != nil {
		ev := domain.NewPredictionEvent(a.ID, a.Spec.Type, a.Matrix, a.RequestedAt, result)
		if err := c.publisher.Publish(ctx, ev); err != nil {
			c.metrics.EventPublishErrors.Inc()
			c.logger.Warn("publish prediction event failed", "attempt", a.ID, "error", err)
		} else {
			c.metrics.EventsPublished.Inc()
		}
	}
	return result, true
}

func (c *Controller) resolve(a Attempt, result domain.PredictionResult) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inFlight = false
	if a.Seq != c.seq || c.state != StateAwaiting {
		c.metrics.StaleResponses.Inc()
		c.logger.Debug("stale response discarded",
			"attempt", a.ID,
			"hazard", a.Spec.Type,
			"outcome", result.Outcome(),
		)
		return false
	}

	c.result = &result
	c.state = StateResolved
	c.metrics.Predictions.WithLabelValues(string(a.Spec.Type), result.Outcome()).Inc()

	switch result.Kind {
	case domain.ResultSuccess:
		c.metrics.LastProbability.WithLabelValues(string(a.Spec.Type)).Set(result.Probability)
		c.lastFailure = ""
		c.logger.Info("prediction resolved",
			"attempt", a.ID,
			"hazard", a.Spec.Type,
			"outcome", result.Outcome(),
			"probability", result.Probability,
		)
	case domain.ResultTransportError:
		c.lastFailure = result.Message
		c.logger.Warn("prediction failed",
			"attempt", a.ID,
			"hazard", a.Spec.Type,
			"outcome", result.Outcome(),
			"status", result.StatusCode,
			"error", result.Message,
		)
	default:
		c.lastFailure = ""
		c.logger.Info("prediction resolved",
			"attempt", a.ID,
			"hazard", a.Spec.Type,
			"outcome", result.Outcome(),
			"message", result.Message,
		)
	}
	return true
}

// Predict runs a full attempt synchronously: Begin followed by Complete.
func (c *Controller) Predict(ctx context.Context) (domain.PredictionResult, error) {
	a, err := c.Begin()
	if err != nil {
		return domain.PredictionResult{}, err
	}
	result, _ := c.Complete(ctx, a)
	return result, nil
}

// Submit starts an attempt and completes it in the background. The returned
// channel is closed once the response has been applied or discarded.
func (c *Controller) Submit(ctx context.Context) (<-chan struct{}, error) {
	a, err := c.Begin()
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Complete(ctx, a)
	}()
	return done, nil
}

// CheckReadiness fails while the most recent resolved attempt could not
// reach the prediction endpoint.
func (c *Controller) CheckReadiness(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastFailure != "" {
		return fmt.Errorf("prediction endpoint unreachable: %s", c.lastFailure)
	}
	return nil
}
