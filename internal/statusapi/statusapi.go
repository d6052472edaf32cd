// Package statusapi serves the operator HTTP surface of a running capture:
// health, Prometheus metrics and the session snapshot.
package statusapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/pcmtap/internal/capture"
)

// StatsSource is satisfied by *capture.Session.
type StatsSource interface {
	Stats() capture.Stats
}

// Handlers holds dependencies for the HTTP handlers.
type Handlers struct {
	src    StatsSource
	stop   func()
	logger *zap.Logger
}

// NewHandlers returns handlers reading from src. stop, if not nil, is
// called by DELETE /v1/session to request the capture end; it must not block.
func NewHandlers(src StatsSource, stop func(), logger *zap.Logger) *Handlers {
	return &Handlers{src: src, stop: stop, logger: logger}
}

// Router builds the chi router.
func (h *Handlers) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(RequestLogger(h.logger))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/session", h.GetSession)
		r.Delete("/session", h.StopSession)
	})
	return r
}

// NewServer wraps handler in an http.Server with the usual timeouts.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      20 * time.Second,
	}
}

// Health handles GET /healthz.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	st := h.src.Stats()
	status := http.StatusOK
	body := map[string]string{"status": "ok", "state": st.State}
	if st.LastError != "" {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["error"] = st.LastError
	}
	writeJSON(w, status, body)
}

// GetSession handles GET /v1/session.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.src.Stats())
}

// StopSession handles DELETE /v1/session.
func (h *Handlers) StopSession(w http.ResponseWriter, r *http.Request) {
	if h.stop == nil {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "stop not supported"})
		return
	}
	h.logger.Info("stop requested over status API", zap.String("remote", r.RemoteAddr))
	h.stop()
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
