// Package problem implements RFC 7807 Problem Details responses for the
// Moat HTTP surfaces (gateway and trust engine).
package problem

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// Detail implements RFC 7807 (Problem Details for HTTP APIs). All Moat API
// error responses use this format.
type Detail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	TraceID  string `json:"trace_id,omitempty"`
	RuleHit  string `json:"rule_hit,omitempty"`
}

func (p *Detail) Error() string {
	return fmt.Sprintf("%s: %s", p.Title, p.Detail)
}

func write(w http.ResponseWriter, status int, title, detail, ruleHit string) {
	p := &Detail{
		Type:    fmt.Sprintf("https://moat.dev/errors/%d", status),
		Title:   title,
		Status:  status,
		Detail:  detail,
		RuleHit: ruleHit,
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(p)
}

// WriteR writes an RFC 7807 response enriched with request context
// (trace_id from X-Request-ID, instance from request URI).
func WriteR(w http.ResponseWriter, r *http.Request, status int, title, detail string) {
	p := &Detail{
		Type:     fmt.Sprintf("https://moat.dev/errors/%d", status),
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
		TraceID:  w.Header().Get("X-Request-ID"),
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(p)
}

// WriteUnauthorized writes a 401 response.
func WriteUnauthorized(w http.ResponseWriter, detail string) {
	if detail == "" {
		detail = "authentication required"
	}
	write(w, http.StatusUnauthorized, "Unauthorized", detail, "")
}

// WriteForbidden writes a 403 response, optionally carrying a policy rule_hit.
func WriteForbidden(w http.ResponseWriter, detail, ruleHit string) {
	if detail == "" {
		detail = "forbidden"
	}
	write(w, http.StatusForbidden, "Forbidden", detail, ruleHit)
}

// WriteNotFound writes a 404 response.
func WriteNotFound(w http.ResponseWriter, detail string) {
	write(w, http.StatusNotFound, "Not Found", detail, "")
}

// WriteUnprocessable writes a 422 response (schema violation).
func WriteUnprocessable(w http.ResponseWriter, detail string) {
	write(w, http.StatusUnprocessableEntity, "Unprocessable Entity", detail, "")
}

// WriteBadGateway writes a 502 response (catastrophic adapter failure).
func WriteBadGateway(w http.ResponseWriter, detail string) {
	write(w, http.StatusBadGateway, "Bad Gateway", detail, "")
}

// WriteBadRequest writes a 400 response.
func WriteBadRequest(w http.ResponseWriter, detail string) {
	write(w, http.StatusBadRequest, "Bad Request", detail, "")
}

// WriteInternal writes a 500 response. err is logged but never exposed.
func WriteInternal(w http.ResponseWriter, err error) {
	slog.Error("internal server error", "error", err)
	write(w, http.StatusInternalServerError, "Internal Server Error",
		"an unexpected error occurred, please retry", "")
}
