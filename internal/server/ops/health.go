// Package ops serves the operational HTTP endpoints: health and Prometheus
// metrics. It listens separately from the gRPC API.
package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

// Checker reports whether a dependency is reachable.
type Checker func(ctx context.Context) error

type CheckResult struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type HealthResponse struct {
	Status string        `json:"status"`
	Checks []CheckResult `json:"checks,omitempty"`
}

const (
	statusUp   = "up"
	statusDown = "down"

	checkTimeout = 3 * time.Second
)

// healthHandler runs every checker and answers 503 if any of them fails.
func healthHandler(checks map[string]Checker) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		defer cancel()

		resp := HealthResponse{Status: statusUp}
		for _, name := range names {
			res := CheckResult{Name: name, Status: statusUp}
			if err := checks[name](ctx); err != nil {
				res.Status = statusDown
				res.Error = err.Error()
				resp.Status = statusDown
			}
			resp.Checks = append(resp.Checks, res)
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == statusDown {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
