package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

const (
	StatusUp   = "up"
	StatusDown = "down"
)

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

// Report is the JSON body of /health.
type Report struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
	Details    map[string]any    `json:"details,omitempty"`
}

// Checker pings every registered dependency concurrently.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	details map[string]func() any
	timeout time.Duration
}

// NewChecker creates a checker with a per-check timeout.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{
		checks:  make(map[string]CheckFunc),
		details: make(map[string]func() any),
		timeout: timeout,
	}
}

// Register adds a dependency that must be up for the service to be healthy.
func (h *Checker) Register(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Detail adds an informational value, such as the number of push connections.
func (h *Checker) Detail(name string, fn func() any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.details[name] = fn
}

// Check runs every registered check.
func (h *Checker) Check(ctx context.Context) *Report {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	checks := make([]CheckFunc, len(names))
	for i, name := range names {
		checks[i] = h.checks[name]
	}
	details := make(map[string]any, len(h.details))
	for name, fn := range h.details {
		details[name] = fn()
	}
	h.mu.RUnlock()

	results := make([]string, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, check CheckFunc) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()
			if err := check(cctx); err != nil {
				results[i] = StatusDown
				return
			}
			results[i] = StatusUp
		}(i, check)
	}
	wg.Wait()

	report := &Report{Status: StatusUp, Components: make(map[string]string, len(names))}
	for i, name := range names {
		report.Components[name] = results[i]
		if results[i] != StatusUp {
			report.Status = StatusDown
		}
	}
	if len(details) > 0 {
		report.Details = details
	}
	return report
}

func (h *Checker) IsHealthy(ctx context.Context) bool {
	return h.Check(ctx).Status == StatusUp
}

// ServeHTTP answers 200 when every dependency is up, 503 otherwise.
func (h *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := h.Check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if report.Status == StatusUp {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(report)
}

// Ready always answers 200 once the process is serving.
func Ready(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}
