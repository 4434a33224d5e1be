package adminhttp

import (
	"net/http"
	"time"

	"github.com/rtftp/rtftpd/internal/nbdconfig"
	"github.com/rtftp/rtftpd/internal/session"
)

// ReadyFunc reports whether the daemon has finished the work that must
// complete before it can usefully serve RRQs: the listener socket is bound
// and the config store has completed its initial scan of the TFTP root.
// The string return value is a human-readable reason, populated only when
// ready is false.
type ReadyFunc func() (ready bool, reason string)

type healthHandler struct {
	startTime time.Time
	ready     ReadyFunc
}

func newHealthHandler(ready ReadyFunc) *healthHandler {
	return &healthHandler{startTime: time.Now(), ready: ready}
}

// Liveness handles GET /healthz/live - the process is running and serving
// HTTP at all. Always 200 once the admin server itself has started.
func (h *healthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)
	writeJSON(w, http.StatusOK, healthyResponse(map[string]interface{}{
		"service":    "rtftpd",
		"started_at": h.startTime.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
	}))
}

// Readiness handles GET /healthz - 200 once the listener is bound and the
// config store has completed its initial scan, 503 otherwise.
func (h *healthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.ready == nil {
		writeJSON(w, http.StatusOK, healthyResponse(nil))
		return
	}

	ok, reason := h.ready()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse(reason))
		return
	}

	writeJSON(w, http.StatusOK, healthyResponse(nil))
}

// sessionsHandler serves a JSON snapshot of every guest session for the
// CLI's "sessions" command and for ad hoc operator inspection.
type sessionsHandler struct {
	registry *session.Registry
}

func newSessionsHandler(registry *session.Registry) *sessionsHandler {
	return &sessionsHandler{registry: registry}
}

func (h *sessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		writeJSON(w, http.StatusOK, []session.Snapshot{})
		return
	}
	writeJSON(w, http.StatusOK, h.registry.Snapshot())
}

// configHandler serves the resolved *.nbd config mappings and, on request,
// the JSON schema those files validate against.
type configHandler struct {
	store *nbdconfig.Store
}

func newConfigHandler(store *nbdconfig.Store) *configHandler {
	return &configHandler{store: store}
}

func (h *configHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusOK, map[string]*nbdconfig.NbdConfig{})
		return
	}
	writeJSON(w, http.StatusOK, h.store.Snapshot())
}

func (h *configHandler) Schema(w http.ResponseWriter, r *http.Request) {
	schema, err := nbdconfig.Schema()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, unhealthyResponse(err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(schema)
}
