package domain

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

// ResultKind discriminates PredictionResult variants.
type ResultKind int

const (
	ResultPending ResultKind = iota
	ResultSuccess
	ResultServerError
	ResultTransportError
)

func (k ResultKind) String() string {
	switch k {
	case ResultSuccess:
		return "success"
	case ResultServerError:
		return "server_error"
	case ResultTransportError:
		return "transport_error"
	default:
		return "pending"
	}
}

// UnknownResponseMessage is reported when a 2xx body has neither a
// probability nor an error field.
const UnknownResponseMessage = "Unknown error or response"

// PredictionResult is the outcome of one predict attempt. Only the fields
// belonging to Kind are meaningful.
type PredictionResult struct {
	Kind        ResultKind
	Probability float64
	Message     string
	// StatusCode is the HTTP status of a transport error, 0 when the request
	// never produced a response.
	StatusCode int
	// Unrecognized marks a ServerError built from a body lacking both
	// probability and error.
	Unrecognized bool
}

// Pending is the result while a request is in flight.
func Pending() PredictionResult {
	return PredictionResult{Kind: ResultPending}
}

// Success carries the endpoint's probability.
func Success(p float64) PredictionResult {
	return PredictionResult{Kind: ResultSuccess, Probability: p}
}

// ServerError carries a business-level error returned in a 2xx body.
func ServerError(msg string) PredictionResult {
	return PredictionResult{Kind: ResultServerError, Message: msg}
}

// UnrecognizedResponse is the ServerError variant for an unknown body shape.
func UnrecognizedResponse() PredictionResult {
	return PredictionResult{Kind: ResultServerError, Message: UnknownResponseMessage, Unrecognized: true}
}

// TransportError carries a non-2xx status or a failure to reach the endpoint.
func TransportError(status int, msg string) PredictionResult {
	return PredictionResult{Kind: ResultTransportError, StatusCode: status, Message: msg}
}

// Outcome is the metrics and event label of the result.
func (r PredictionResult) Outcome() string {
	if r.Kind == ResultServerError && r.Unrecognized {
		return "unrecognized"
	}
	return r.Kind.String()
}

// Terminal reports whether the attempt has finished.
func (r PredictionResult) Terminal() bool {
	return r.Kind != ResultPending
}

// StatusLine renders the result as the single human-readable line shown to the user.
func (r PredictionResult) StatusLine() string {
	switch r.Kind {
	case ResultSuccess:
		return "Prediction Probability: " + decimal.NewFromFloat(r.Probability).StringFixed(4)
	case ResultServerError:
		if r.Unrecognized {
			return UnknownResponseMessage
		}
		return "Server error: " + r.Message
	case ResultTransportError:
		if r.StatusCode != 0 {
			return fmt.Sprintf("Error: Server error: %d", r.StatusCode)
		}
		return "Error: " + r.Message
	default:
		return "Predicting..."
	}
}

// TransportMessage describes a non-2xx status for TransportError.Message.
func TransportMessage(status int) string {
	return fmt.Sprintf("server error: %d %s", status, http.StatusText(status))
}

// DisplayState is the visual theme derived from the current result.
type DisplayState int

const (
	DisplayNeutral DisplayState = iota
	DisplayDanger
	DisplaySafe
)

func (d DisplayState) String() string {
	switch d {
	case DisplayDanger:
		return "danger"
	case DisplaySafe:
		return "safe"
	default:
		return "neutral"
	}
}

// DangerThreshold is the probability above which a result is shown as danger.
const DangerThreshold = 0.5

// DisplayStateOf derives the theme from a result. A nil result or any
// non-success result is neutral.
func DisplayStateOf(r *PredictionResult) DisplayState {
	if r == nil || r.Kind != ResultSuccess {
		return DisplayNeutral
	}
	if r.Probability > DangerThreshold {
		return DisplayDanger
	}
	return DisplaySafe
}

// Predictor submits a validated matrix for a hazard and resolves to a
// result. Implementations never return an error; every failure is a
// PredictionResult variant.
type Predictor interface {
	Predict(ctx context.Context, spec HazardSpec, m Matrix) PredictionResult
}
