package controller_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/hazard-predict/internal/controller"
	"github.com/couchcryptid/hazard-predict/internal/domain"
	"github.com/couchcryptid/hazard-predict/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- mocks ---

// stubPredictor returns a fixed result immediately.
type stubPredictor struct {
	mu     sync.Mutex
	result domain.PredictionResult
	calls  []domain.Matrix
	specs  []domain.HazardSpec
}

func (s *stubPredictor) Predict(_ context.Context, spec domain.HazardSpec, m domain.Matrix) domain.PredictionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, m)
	s.specs = append(s.specs, spec)
	return s.result
}

func (s *stubPredictor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// gatedPredictor blocks each call until a result is sent on release.
type gatedPredictor struct {
	started chan domain.HazardSpec
	release chan domain.PredictionResult
}

func newGatedPredictor() *gatedPredictor {
	return &gatedPredictor{
		started: make(chan domain.HazardSpec, 4),
		release: make(chan domain.PredictionResult),
	}
}

func (g *gatedPredictor) Predict(ctx context.Context, spec domain.HazardSpec, _ domain.Matrix) domain.PredictionResult {
	g.started <- spec
	select {
	case r := <-g.release:
		return r
	case <-ctx.Done():
		return domain.TransportError(0, ctx.Err().Error())
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.PredictionEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev domain.PredictionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newController(t *testing.T, p domain.Predictor, opts ...controller.Option) (*controller.Controller, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetricsForTesting()
	return controller.New(domain.DefaultHazardTable(), p, metrics, discardLogger(), opts...), metrics
}

func matrixJSON(t *testing.T, rows, cols int) string {
	t.Helper()
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	data, err := json.Marshal(m)
	require.NoError(t, err)
	return string(data)
}

const cycloneRow = `[0.6,0.4,0.3,0.2,0.1,0.0]`

func waitStarted(t *testing.T, g *gatedPredictor) domain.HazardSpec {
	t.Helper()
	select {
	case spec := <-g.started:
		return spec
	case <-time.After(2 * time.Second):
		t.Fatal("predictor was not called")
		return domain.HazardSpec{}
	}
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("attempt did not complete")
	}
}

// --- tests ---

func TestController_InitialView(t *testing.T) {
	c, _ := newController(t, &stubPredictor{})

	v := c.View()
	assert.Equal(t, domain.Cyclone, v.Hazard)
	assert.Equal(t, 6, v.Spec.Columns)
	assert.Equal(t, controller.StateIdle, v.State)
	assert.Nil(t, v.Result)
	assert.Empty(t, v.StatusLine())
	assert.Equal(t, domain.DisplayNeutral, v.Display)
	assert.True(t, v.CanSubmit())
}

func TestController_WithHazard(t *testing.T) {
	c, _ := newController(t, &stubPredictor{}, controller.WithHazard(domain.Earthquake))
	assert.Equal(t, domain.Earthquake, c.View().Hazard)

	c, _ = newController(t, &stubPredictor{}, controller.WithHazard("tsunami"))
	assert.Equal(t, domain.Cyclone, c.View().Hazard)
}

func TestController_Predict_SuccessDanger(t *testing.T) {
	p := &stubPredictor{result: domain.Success(0.73)}
	c, metrics := newController(t, p)

	c.SetInput(cycloneRow)
	result, err := c.Predict(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Success(0.73), result)

	v := c.View()
	assert.Equal(t, controller.StateResolved, v.State)
	assert.False(t, v.Loading)
	assert.Equal(t, "Prediction Probability: 0.7300", v.StatusLine())
	assert.Equal(t, domain.DisplayDanger, v.Display)

	require.Len(t, p.calls, 1)
	assert.Equal(t, domain.Matrix{{0.6, 0.4, 0.3, 0.2, 0.1, 0.0}}, p.calls[0])
	assert.Equal(t, "/predict/cyclone", p.specs[0].Path)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Predictions.WithLabelValues("cyclone", "success")), 0)
	assert.InDelta(t, 0.73, testutil.ToFloat64(metrics.LastProbability.WithLabelValues("cyclone")), 1e-9)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.InFlight), 0)
}

func TestController_Predict_SuccessSafe(t *testing.T) {
	c, _ := newController(t, &stubPredictor{result: domain.Success(0.5)})

	require.NoError(t, c.SelectHazard(domain.Earthquake))
	c.SetInput(matrixJSON(t, 64, 129))
	_, err := c.Predict(context.Background())
	require.NoError(t, err)

	v := c.View()
	assert.Equal(t, domain.DisplaySafe, v.Display)
	assert.Equal(t, "Prediction Probability: 0.5000", v.StatusLine())
}

func TestController_Predict_ErrorResults(t *testing.T) {
	tests := []struct {
		name   string
		result domain.PredictionResult
		line   string
	}{
		{"server error", domain.ServerError("model unavailable"), "Server error: model unavailable"},
		{"unrecognized", domain.UnrecognizedResponse(), "Unknown error or response"},
		{"transport", domain.TransportError(500, domain.TransportMessage(500)), "Error: Server error: 500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, metrics := newController(t, &stubPredictor{result: tt.result})
			c.SetInput(cycloneRow)

			_, err := c.Predict(context.Background())
			require.NoError(t, err)

			v := c.View()
			assert.Equal(t, controller.StateResolved, v.State)
			assert.Equal(t, tt.line, v.StatusLine())
			assert.Equal(t, domain.DisplayNeutral, v.Display)
			assert.True(t, v.CanSubmit(), "user can always retry")
			assert.InDelta(t, 1, testutil.ToFloat64(metrics.Predictions.WithLabelValues("cyclone", tt.result.Outcome())), 0)
		})
	}
}

func TestController_MalformedInput(t *testing.T) {
	p := &stubPredictor{result: domain.Success(0.1)}
	c, metrics := newController(t, p)

	c.SetInput(`[0.6, 0.4,`)
	_, err := c.Predict(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, controller.ErrMalformedInput))

	v := c.View()
	assert.Equal(t, controller.StateIdle, v.State)
	assert.Equal(t, "Invalid JSON format", v.StatusLine())
	assert.Nil(t, v.Result)
	assert.Equal(t, 0, p.callCount(), "no request for malformed input")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.InputRejections.WithLabelValues("cyclone", "malformed")), 0)
}

func TestController_ShapeRejected(t *testing.T) {
	p := &stubPredictor{result: domain.Success(0.1)}
	c, metrics := newController(t, p)

	c.SetInput(matrixJSON(t, 10, 6))
	_, err := c.Predict(context.Background())
	require.Error(t, err)

	var se *domain.ShapeError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, domain.ReasonRowMismatch, se.Reason)

	v := c.View()
	assert.Equal(t, controller.StateIdle, v.State)
	line := v.StatusLine()
	assert.True(t, strings.HasPrefix(line, "Invalid input shape for CYCLONE input."))
	assert.Contains(t, line, "Columns must be exactly 6")
	assert.Contains(t, line, "rows must be 1 or 64")
	assert.Contains(t, line, "got 10")
	assert.Equal(t, 0, p.callCount(), "no request for rejected input")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.InputRejections.WithLabelValues("cyclone", "row_mismatch")), 0)
}

func TestController_RejectionKeepsPriorResult(t *testing.T) {
	c, _ := newController(t, &stubPredictor{result: domain.Success(0.8)})

	c.SetInput(cycloneRow)
	_, err := c.Predict(context.Background())
	require.NoError(t, err)

	c.SetInput(`[1,2,3]`)
	_, err = c.Predict(context.Background())
	require.Error(t, err)

	v := c.View()
	require.NotNil(t, v.Result)
	assert.Equal(t, domain.Success(0.8), *v.Result)
	assert.Equal(t, domain.DisplayDanger, v.Display)
	assert.Contains(t, v.StatusLine(), "column mismatch")

	// A later successful attempt clears the notice.
	c.SetInput(cycloneRow)
	_, err = c.Predict(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Prediction Probability: 0.8000", c.View().StatusLine())
}

func TestController_NoSecondAttemptWhileAwaiting(t *testing.T) {
	g := newGatedPredictor()
	c, metrics := newController(t, g)
	c.SetInput(cycloneRow)

	done, err := c.Submit(context.Background())
	require.NoError(t, err)
	waitStarted(t, g)

	v := c.View()
	assert.Equal(t, controller.StateAwaiting, v.State)
	assert.True(t, v.Loading)
	assert.False(t, v.CanSubmit())
	require.NotNil(t, v.Result)
	assert.Equal(t, domain.ResultPending, v.Result.Kind)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.InFlight), 0)

	_, err = c.Begin()
	assert.ErrorIs(t, err, controller.ErrBusy)
	_, err = c.Submit(context.Background())
	assert.ErrorIs(t, err, controller.ErrBusy)

	g.release <- domain.Success(0.3)
	waitDone(t, done)

	v = c.View()
	assert.Equal(t, controller.StateResolved, v.State)
	assert.Equal(t, domain.DisplaySafe, v.Display)
	assert.Empty(t, g.started, "predictor called exactly once")
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.InFlight), 0)
}

func TestController_ResolvedToNewAttemptReplacesResult(t *testing.T) {
	g := newGatedPredictor()
	c, _ := newController(t, g)
	c.SetInput(cycloneRow)

	done, err := c.Submit(context.Background())
	require.NoError(t, err)
	waitStarted(t, g)
	g.release <- domain.Success(0.9)
	waitDone(t, done)
	assert.Equal(t, domain.DisplayDanger, c.View().Display)

	done, err = c.Submit(context.Background())
	require.NoError(t, err)
	waitStarted(t, g)

	v := c.View()
	require.NotNil(t, v.Result)
	assert.Equal(t, domain.ResultPending, v.Result.Kind, "prior result discarded once awaiting")

	g.release <- domain.ServerError("model unavailable")
	waitDone(t, done)
	assert.Equal(t, "Server error: model unavailable", c.View().StatusLine())
}

func TestController_HazardSwitchWhileAwaiting(t *testing.T) {
	g := newGatedPredictor()
	c, metrics := newController(t, g)
	c.SetInput(cycloneRow)

	done, err := c.Submit(context.Background())
	require.NoError(t, err)
	waitStarted(t, g)

	require.NoError(t, c.SelectHazard(domain.Earthquake))

	v := c.View()
	assert.Equal(t, domain.Earthquake, v.Hazard)
	assert.Equal(t, controller.StateIdle, v.State)
	assert.Empty(t, v.Input)
	assert.Nil(t, v.Result)
	assert.Empty(t, v.StatusLine())
	assert.Equal(t, domain.DisplayNeutral, v.Display)
	assert.True(t, v.Loading, "old request is still outstanding")
	assert.False(t, v.CanSubmit())

	// The late response for the cyclone attempt must not resurface.
	g.release <- domain.Success(0.99)
	waitDone(t, done)

	v = c.View()
	assert.Nil(t, v.Result)
	assert.Equal(t, controller.StateIdle, v.State)
	assert.False(t, v.Loading)
	assert.True(t, v.CanSubmit())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.StaleResponses), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.Predictions.WithLabelValues("cyclone", "success")), 0)
}

func TestController_SwitchWhileAwaitingRefusesNewAttemptUntilResponse(t *testing.T) {
	g := newGatedPredictor()
	c, metrics := newController(t, g)
	c.SetInput(cycloneRow)

	first, err := c.Submit(context.Background())
	require.NoError(t, err)
	waitStarted(t, g)

	require.NoError(t, c.SelectHazard(domain.Cyclone))
	c.SetInput(cycloneRow)

	_, err = c.Submit(context.Background())
	assert.ErrorIs(t, err, controller.ErrBusy)
	_, err = c.Predict(context.Background())
	assert.ErrorIs(t, err, controller.ErrBusy)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.InFlight), 0, "one request at a time")
	assert.Equal(t, cycloneRow, c.View().Input, "refused attempt keeps the input")

	g.release <- domain.Success(0.9)
	waitDone(t, first)
	assert.Nil(t, c.View().Result, "superseded response discarded")
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.InFlight), 0)

	second, err := c.Submit(context.Background())
	require.NoError(t, err)
	waitStarted(t, g)
	g.release <- domain.Success(0.2)
	waitDone(t, second)

	v := c.View()
	assert.Equal(t, controller.StateResolved, v.State)
	require.NotNil(t, v.Result)
	assert.Equal(t, domain.Success(0.2), *v.Result)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.StaleResponses), 0)
}

func TestController_SelectUnknownHazard(t *testing.T) {
	c, _ := newController(t, &stubPredictor{})
	c.SetInput(cycloneRow)

	err := c.SelectHazard("tsunami")
	assert.ErrorIs(t, err, domain.ErrUnknownHazard)

	v := c.View()
	assert.Equal(t, domain.Cyclone, v.Hazard)
	assert.Equal(t, cycloneRow, v.Input, "failed switch leaves state intact")
}

func TestController_HazardSwitchClearsResolvedState(t *testing.T) {
	c, _ := newController(t, &stubPredictor{result: domain.Success(0.7)})
	c.SetInput(cycloneRow)
	_, err := c.Predict(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.SelectHazard(domain.Cyclone))

	v := c.View()
	assert.Nil(t, v.Result)
	assert.Empty(t, v.Input)
	assert.Equal(t, domain.DisplayNeutral, v.Display)
}

func TestController_PublishesEvents(t *testing.T) {
	resolved := time.Date(2026, time.May, 1, 9, 30, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(resolved))
	t.Cleanup(func() { domain.SetClock(nil) })

	pub := &recordingPublisher{}
	c, metrics := newController(t, &stubPredictor{result: domain.Success(0.61)}, controller.WithPublisher(pub))
	c.SetInput(cycloneRow)

	_, err := c.Predict(context.Background())
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, domain.Cyclone, ev.Hazard)
	assert.Equal(t, 1, ev.Rows)
	assert.Equal(t, 6, ev.Columns)
	assert.Equal(t, "success", ev.Outcome)
	assert.Equal(t, "danger", ev.Display)
	assert.Equal(t, resolved, ev.RequestedAt)
	assert.Equal(t, resolved, ev.ResolvedAt)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.EventsPublished), 0)
}

func TestController_PublishFailureDoesNotAffectResult(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	c, metrics := newController(t, &stubPredictor{result: domain.Success(0.2)}, controller.WithPublisher(pub))
	c.SetInput(cycloneRow)

	result, err := c.Predict(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Success(0.2), result)
	assert.Equal(t, "Prediction Probability: 0.2000", c.View().StatusLine())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.EventPublishErrors), 0)
}

func TestController_NoEventForRejectedOrStale(t *testing.T) {
	pub := &recordingPublisher{}
	g := newGatedPredictor()
	c, _ := newController(t, g, controller.WithPublisher(pub))

	c.SetInput(`{}`)
	_, err := c.Begin()
	require.Error(t, err)

	c.SetInput(cycloneRow)
	done, err := c.Submit(context.Background())
	require.NoError(t, err)
	waitStarted(t, g)
	require.NoError(t, c.SelectHazard(domain.Earthquake))
	g.release <- domain.Success(0.5)
	waitDone(t, done)

	assert.Empty(t, pub.events)
}

func TestController_CheckReadiness(t *testing.T) {
	p := &stubPredictor{result: domain.TransportError(0, "connection refused")}
	c, _ := newController(t, p)
	require.NoError(t, c.CheckReadiness(context.Background()))

	c.SetInput(cycloneRow)
	_, err := c.Predict(context.Background())
	require.NoError(t, err)

	err = c.CheckReadiness(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	p.mu.Lock()
	p.result = domain.ServerError("model unavailable")
	p.mu.Unlock()

	_, err = c.Predict(context.Background())
	require.NoError(t, err)
	assert.NoError(t, c.CheckReadiness(context.Background()), "endpoint reachable again")
}

func TestController_Hazards(t *testing.T) {
	c, _ := newController(t, &stubPredictor{})

	specs := c.Hazards()
	require.Len(t, specs, 2)
	assert.Equal(t, domain.Cyclone, specs[0].Type)
	assert.Equal(t, domain.Earthquake, specs[1].Type)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", controller.StateIdle.String())
	assert.Equal(t, "validating", controller.StateValidating.String())
	assert.Equal(t, "awaiting", controller.StateAwaiting.String())
	assert.Equal(t, "resolved", controller.StateResolved.String())
}
