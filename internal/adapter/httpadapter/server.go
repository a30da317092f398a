package httpadapter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/hazard-predict/internal/controller"
	"github.com/couchcryptid/hazard-predict/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// FormState is the part of the controller the ops server reads.
type FormState interface {
	sharedobs.ReadinessChecker
	View() controller.View
	Hazards() []domain.HazardSpec
}

// Server exposes health, readiness, metrics and form status over HTTP
// while the client runs.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type statusResponse struct {
	Hazard     domain.HazardType `json:"hazard"`
	State      string            `json:"state"`
	Loading    bool              `json:"loading"`
	StatusLine string            `json:"status_line,omitempty"`
	Outcome    string            `json:"outcome,omitempty"`
	Display    string            `json:"display"`
}

type hazardResponse struct {
	Type        domain.HazardType `json:"type"`
	Label       string            `json:"label"`
	Columns     int               `json:"columns"`
	AllowedRows []int             `json:"allowed_rows"`
	Path        string            `json:"path"`
}

// NewServer creates the ops server with /healthz, /readyz, /metrics,
// /status and /hazards routes.
func NewServer(addr string, form FormState, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(form))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /status", handleStatus(form))
	mux.HandleFunc("GET /hazards", handleHazards(form))

	return s
}

// Start listens until Shutdown. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("ops server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func handleStatus(form FormState) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		v := form.View()
		resp := statusResponse{
			Hazard:     v.Hazard,
			State:      v.State.String(),
			Loading:    v.Loading,
			StatusLine: v.StatusLine(),
			Display:    v.Display.String(),
		}
		if v.Result != nil {
			resp.Outcome = v.Result.Outcome()
		}
		sharedobs.WriteJSON(w, http.StatusOK, resp)
	}
}

func handleHazards(form FormState) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		specs := form.Hazards()
		resp := make([]hazardResponse, 0, len(specs))
		for _, spec := range specs {
			resp = append(resp, hazardResponse{
				Type:        spec.Type,
				Label:       spec.Label,
				Columns:     spec.Columns,
				AllowedRows: spec.AllowedRows(),
				Path:        spec.Path,
			})
		}
		sharedobs.WriteJSON(w, http.StatusOK, resp)
	}
}
