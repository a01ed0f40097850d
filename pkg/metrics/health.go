package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of the service
type HealthStatus struct {
	Status     string            `json:"status"` // "healthy", "unhealthy", "ready", "not_ready"
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
}

// Probe actively checks a dependency; a nil error means healthy
type Probe func(ctx context.Context) error

// ComponentHealth tracks the health of a single component
type ComponentHealth struct {
	Name     string
	Healthy  bool
	Message  string
	Critical bool
	Updated  time.Time
	probe    Probe
}

// HealthChecker aggregates component health for /health and /ready
type HealthChecker struct {
	mu         sync.RWMutex
	components map[string]ComponentHealth
	startTime  time.Time
	version    string
	timeout    time.Duration
}

var healthChecker = newHealthChecker()

func newHealthChecker() *HealthChecker {
	return &HealthChecker{
		components: make(map[string]ComponentHealth),
		startTime:  time.Now(),
		timeout:    2 * time.Second,
	}
}

// SetVersion sets the version string for health responses
func SetVersion(version string) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()
	healthChecker.version = version
}

// RegisterComponent records a pushed health state. Critical components gate
// readiness.
func RegisterComponent(name string, critical, healthy bool, message string) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()

	healthChecker.components[name] = ComponentHealth{
		Name:     name,
		Healthy:  healthy,
		Message:  message,
		Critical: critical,
		Updated:  time.Now(),
	}
}

// UpdateComponent changes the pushed state of a registered component
func UpdateComponent(name string, healthy bool, message string) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()

	comp := healthChecker.components[name]
	comp.Name = name
	comp.Healthy = healthy
	comp.Message = message
	comp.Updated = time.Now()
	healthChecker.components[name] = comp
}

// RegisterProbe registers a component whose state is checked on every
// health or readiness request
func RegisterProbe(name string, critical bool, probe Probe) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()

	healthChecker.components[name] = ComponentHealth{
		Name:     name,
		Healthy:  true,
		Critical: critical,
		Updated:  time.Now(),
		probe:    probe,
	}
}

// snapshot runs probes outside the lock and returns the current component set
func (h *HealthChecker) snapshot(ctx context.Context) []ComponentHealth {
	h.mu.RLock()
	comps := make([]ComponentHealth, 0, len(h.components))
	for _, c := range h.components {
		comps = append(comps, c)
	}
	timeout := h.timeout
	h.mu.RUnlock()

	for i := range comps {
		if comps[i].probe == nil {
			continue
		}
		pctx, cancel := context.WithTimeout(ctx, timeout)
		err := comps[i].probe(pctx)
		cancel()
		comps[i].Healthy = err == nil
		comps[i].Message = ""
		if err != nil {
			comps[i].Message = err.Error()
		}
		comps[i].Updated = time.Now()
	}

	sort.Slice(comps, func(i, j int) bool { return comps[i].Name < comps[j].Name })
	return comps
}

// GetHealth returns the overall health status
func GetHealth(ctx context.Context) HealthStatus {
	status := "healthy"
	components := make(map[string]string)

	for _, comp := range healthChecker.snapshot(ctx) {
		if !comp.Healthy {
			status = "unhealthy"
			components[comp.Name] = "unhealthy: " + comp.Message
		} else {
			components[comp.Name] = "healthy"
		}
	}

	return healthChecker.status(status, "", components)
}

// GetReadiness reports whether every critical component is healthy
func GetReadiness(ctx context.Context) HealthStatus {
	status := "ready"
	message := ""
	components := make(map[string]string)

	for _, comp := range healthChecker.snapshot(ctx) {
		if !comp.Critical {
			continue
		}
		if comp.Healthy {
			components[comp.Name] = "ready"
			continue
		}
		status = "not_ready"
		message = "waiting for " + comp.Name
		components[comp.Name] = "not ready: " + comp.Message
	}

	if len(components) == 0 {
		status = "not_ready"
		message = "no critical components registered"
	}

	return healthChecker.status(status, message, components)
}

func (h *HealthChecker) status(status, message string, components map[string]string) HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HealthStatus{
		Status:     status,
		Timestamp:  time.Now(),
		Components: components,
		Message:    message,
		Version:    h.version,
		Uptime:     time.Since(h.startTime).String(),
	}
}

func writeStatus(w http.ResponseWriter, ok bool, body HealthStatus) {
	w.Header().Set("Content-Type", "application/json")
	code := http.StatusOK
	if !ok {
		code = http.StatusServiceUnavailable
	}
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// HealthHandler returns an HTTP handler for the /health endpoint
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := GetHealth(r.Context())
		writeStatus(w, health.Status == "healthy", health)
	}
}

// ReadyHandler returns an HTTP handler for the /ready endpoint
func ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		readiness := GetReadiness(r.Context())
		writeStatus(w, readiness.Status == "ready", readiness)
	}
}
