// Package trustapi implements the trust-engine HTTP surface (spec §6):
// POST /events, GET /capabilities/{id}/stats, GET /capabilities.
package trustapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/jeremylongshore/moat/pkg/moat/contracts"
	"github.com/jeremylongshore/moat/pkg/moat/problem"
	"github.com/jeremylongshore/moat/pkg/moat/trust"
)

// Server exposes the trust engine over HTTP.
type Server struct {
	Engine *trust.Engine
}

// eventBody is the wire shape of POST /events.
type eventBody struct {
	EventID         string    `json:"event_id"`
	CapabilityID    string    `json:"capability_id"`
	TenantID        string    `json:"tenant_id"`
	ReceiptID       string    `json:"receipt_id"`
	ExecutionStatus string    `json:"execution_status"`
	LatencyMS       float64   `json:"latency_ms"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// HandleEvents handles POST /events.
func (s *Server) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		problem.WriteBadRequest(w, "method not allowed")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var body eventBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		problem.WriteBadRequest(w, "invalid request body")
		return
	}
	if body.CapabilityID == "" || body.TenantID == "" {
		problem.WriteBadRequest(w, "missing capability_id or tenant_id")
		return
	}

	success := body.ExecutionStatus == string(contracts.ExecutionSuccess)
	var taxonomy contracts.ErrorTaxonomy
	if !success {
		taxonomy = contracts.ErrorUnknown
	}
	event, err := contracts.NewOutcomeEvent(body.ReceiptID, body.CapabilityID, body.TenantID, success, body.LatencyMS, taxonomy)
	if err != nil {
		problem.WriteUnprocessable(w, err.Error())
		return
	}
	if !body.OccurredAt.IsZero() {
		event.Timestamp = body.OccurredAt
	}

	s.Engine.Record(event)
	w.WriteHeader(http.StatusCreated)
}

// HandleCapabilityStats handles GET /capabilities/{id}/stats.
func (s *Server) HandleCapabilityStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		problem.WriteBadRequest(w, "method not allowed")
		return
	}
	capabilityID := capabilityIDFromStatsPath(r.URL.Path)
	if capabilityID == "" {
		problem.WriteBadRequest(w, "missing capability id")
		return
	}
	stats := s.Engine.GetStats(capabilityID)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}

// HandleCapabilities handles GET /capabilities: stats for every tracked
// capability.
func (s *Server) HandleCapabilities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		problem.WriteBadRequest(w, "method not allowed")
		return
	}
	ids := s.Engine.ListCapabilityIDs()
	out := make([]*contracts.CapabilityStats, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.Engine.GetStats(id))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// HandleHealthz handles GET /healthz.
func (s *Server) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "service": "moat-trust"})
}

func capabilityIDFromStatsPath(path string) string {
	const prefix = "/capabilities/"
	const suffix = "/stats"
	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		return ""
	}
	return strings.TrimSuffix(strings.TrimPrefix(path, prefix), suffix)
}
