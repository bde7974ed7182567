package endpoints

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether a dependency is usable.
type HealthCheck = func(ctx context.Context) error

type UtilsEndpoints struct {
	names  []string
	checks map[string]HealthCheck
}

func NewUtilsEndpoints(checks map[string]HealthCheck) *UtilsEndpoints {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return &UtilsEndpoints{names: names, checks: checks}
}

// Health answers {} while every dependency check passes and 503 naming the
// first failing one otherwise.
func (e *UtilsEndpoints) Health(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	for _, name := range e.names {
		if err := e.checks[name](ctx); err != nil {
			return &HTTPError{
				StatusCode: http.StatusServiceUnavailable,
				Message:    name + " unavailable",
				Err:        fmt.Errorf("health check %s: %w", name, err),
			}
		}
	}
	return WriteJSON(w, http.StatusOK, struct{}{})
}
