// Package api declares HTTP contracts and route registration helpers.
package api

import "net/http"

// StatsProvider exposes the service's runtime counters for GET /stats.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves the operational stats read.
type StatsHandler struct {
	deps StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(deps StatsProvider) *StatsHandler {
	return &StatsHandler{deps: deps}
}

// HandleStats handles GET /stats. The payload is whatever the provider
// reports; keys vary with whether the service has been started.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.GetStats())
}
