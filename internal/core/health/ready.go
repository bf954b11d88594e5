// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Check reports whether one dependency is usable.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// Readiness runs every check with a shared timeout and answers 503 if any fails.
func Readiness(timeout time.Duration, checks ...Check) http.HandlerFunc {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		type resp struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks,omitempty"`
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		out := resp{Status: "ready"}
		if len(checks) > 0 {
			out.Checks = make(map[string]string, len(checks))
		}
		for _, c := range checks {
			if err := c.Fn(ctx); err != nil {
				out.Status = "not_ready"
				out.Checks[c.Name] = err.Error()
				continue
			}
			out.Checks[c.Name] = "ok"
		}
		w.Header().Set("Content-Type", "application/json")
		if out.Status != "ready" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
