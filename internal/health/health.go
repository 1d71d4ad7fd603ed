// Package health provides HTTP health and readiness check handlers.
//
// Two endpoints are exposed:
//
//   - /healthz: liveness probe; always returns 200 OK with service identity.
//   - /readyz:  readiness probe; returns 200 only when all registered
//     [Checker] functions pass (metadata store reachable, chunk directory
//     writable, engine loaded).
//
// Responses are JSON objects with a top-level "status" field ("ok" or "fail")
// and, for readiness, a "checks" map with the result of each named checker.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// checkTimeout is the maximum time a single readiness check may take before
// the context is cancelled.
const checkTimeout = 5 * time.Second

// Checker is a named readiness check. Check returns nil when the dependency
// is healthy and an error describing the failure otherwise.
type Checker struct {
	// Name is a short label for this check (e.g. "metastore", "chunkdir").
	// It appears as a key in the JSON response.
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// PingChecker adapts anything with a Ping method (such as the PostgreSQL
// metadata store) into a [Checker].
func PingChecker(name string, p interface {
	Ping(ctx context.Context) error
}) Checker {
	return Checker{Name: name, Check: p.Ping}
}

// DirWritable returns a [Checker] that verifies dir exists and accepts
// writes, by creating and removing a probe file.
func DirWritable(name, dir string) Checker {
	return Checker{Name: name, Check: func(context.Context) error {
		probe := filepath.Join(dir, ".readyz")
		if err := os.WriteFile(probe, nil, 0o644); err != nil {
			return fmt.Errorf("dir not writable: %w", err)
		}
		return os.Remove(probe)
	}}
}

// StaticChecker returns a [Checker] that always reports the given error
// (nil for always-healthy). Used for dependencies validated once at startup,
// such as a loaded transcription model.
func StaticChecker(name string, err error) Checker {
	return Checker{Name: name, Check: func(context.Context) error { return err }}
}

// result is the JSON response body for health endpoints.
type result struct {
	Status  string            `json:"status"`
	Service string            `json:"service,omitempty"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// Handler serves the /healthz and /readyz endpoints. Safe for concurrent
// use; the checker list is fixed at construction time.
type Handler struct {
	service  string
	version  string
	checkers []Checker
}

// New creates a [Handler] reporting the given service identity. The checkers
// are evaluated sequentially on each /readyz request, in the order provided.
func New(service, version string, checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{service: service, version: version, checkers: c}
}

// Healthz is a liveness probe that always returns 200 OK. A running process
// that can serve HTTP is considered alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{
		Status:  "ok",
		Service: h.service,
		Version: h.version,
	})
}

// Readyz is a readiness probe that returns 200 only when every registered
// [Checker] passes. Each checker gets a context with a [checkTimeout]
// deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	allOK := true

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			allOK = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	res := result{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
