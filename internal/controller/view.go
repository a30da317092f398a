package controller

import "github.com/couchcryptid/hazard-predict/internal/domain"

// View is a consistent snapshot of everything the form renders.
type View struct {
	Hazard  domain.HazardType
	Spec    domain.HazardSpec
	Input   string
	State   State
	Loading bool
	// Result is nil until an attempt reaches Awaiting.
	Result  *domain.PredictionResult
	Notice  string
	Display domain.DisplayState
}

// CanSubmit reports whether the submit control is enabled. It stays false
// after a hazard switch until the outstanding request lands.
func (v View) CanSubmit() bool {
	return !v.Loading
}

// StatusLine is the single line of feedback: the pending notice if any,
// otherwise the current result.
func (v View) StatusLine() string {
	if v.Notice != "" {
		return v.Notice
	}
	if v.Result == nil {
		return ""
	}
	return v.Result.StatusLine()
}

// View returns the current snapshot. The display state is derived here on
// every call and never stored.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	spec, _ := c.table.Lookup(c.hazard)
	v := View{
		Hazard:  c.hazard,
		Spec:    spec,
		Input:   c.input,
		State:   c.state,
		Loading: c.inFlight,
		Notice:  c.notice,
	}
	if c.result != nil {
		r := *c.result
		v.Result = &r
	}
	v.Display = domain.DisplayStateOf(v.Result)
	return v
}

// Hazards lists the selectable hazard specs in order.
func (c *Controller) Hazards() []domain.HazardSpec {
	return c.table.Specs()
}
