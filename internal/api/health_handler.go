package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/inboxops/brevo-console/internal/accounts"
	"github.com/inboxops/brevo-console/internal/brevo"
	"github.com/inboxops/brevo-console/internal/config"
	"github.com/inboxops/brevo-console/internal/importer"
	"github.com/inboxops/brevo-console/internal/pkg/httputil"
)

// HealthStatus represents the overall health of the console.
type HealthStatus struct {
	Status  string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Version string                    `json:"version"`
	Uptime  string                    `json:"uptime"`
	Checks  map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "degraded"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthChecker probes the console's dependencies: the account store, the
// provider (via the active account's key) and the import engine.
type HealthChecker struct {
	brevoCfg  config.BrevoConfig
	store     accounts.Store
	engine    *importer.Engine
	startTime time.Time
}

// NewHealthChecker creates a new HealthChecker.
func NewHealthChecker(brevoCfg config.BrevoConfig, store accounts.Store, engine *importer.Engine) *HealthChecker {
	return &HealthChecker{
		brevoCfg:  brevoCfg,
		store:     store,
		engine:    engine,
		startTime: time.Now(),
	}
}

const healthVersion = "1.0.0"

// HandleHealth returns the health status of all components. Always answers
// 200; the status field in the body conveys health. Probes that need a 503
// on failure should use /health/ready.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())

	httputil.OK(w, HealthStatus{
		Status:  determineOverallStatus(checks),
		Version: healthVersion,
		Uptime:  formatUptime(time.Since(hc.startTime)),
		Checks:  checks,
	})
}

// HandleLiveness is a simple liveness probe. Returns 200 whenever the
// process is serving.
//
//	GET /health/live
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]interface{}{
		"status": "alive",
		"uptime": formatUptime(time.Since(hc.startTime)),
	})
}

// HandleReadiness answers 200 only when the console can serve traffic.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	overall := determineOverallStatus(checks)

	ready := overall != "unhealthy"
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	httputil.JSON(w, status, map[string]interface{}{
		"ready":  ready,
		"status": overall,
		"checks": checks,
	})
}

func (hc *HealthChecker) runAllChecks(ctx context.Context) map[string]ComponentCheck {
	checks := make(map[string]ComponentCheck, 3)

	// Run checks concurrently for minimal total latency.
	type result struct {
		name  string
		check ComponentCheck
	}
	ch := make(chan result, 3)

	go func() { ch <- result{"store", hc.checkStore(ctx)} }()
	go func() { ch <- result{"provider", hc.checkProvider(ctx)} }()
	go func() { ch <- result{"import_engine", hc.checkEngine()} }()

	for i := 0; i < 3; i++ {
		r := <-ch
		checks[r.name] = r.check
	}

	return checks
}

// checkStore reads the account book with a 3-second timeout.
func (hc *HealthChecker) checkStore(ctx context.Context) ComponentCheck {
	listCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	accts, err := hc.store.List(listCtx)
	latency := time.Since(start)

	if err != nil {
		return ComponentCheck{
			Status:  "down",
			Latency: latency.String(),
			Message: fmt.Sprintf("list failed: %v", err),
		}
	}

	status := "up"
	msg := fmt.Sprintf("%d accounts", len(accts))
	if latency > time.Second {
		status = "degraded"
		msg = fmt.Sprintf("slow response (%s)", latency)
	}

	return ComponentCheck{
		Status:  status,
		Latency: latency.String(),
		Message: msg,
	}
}

// checkProvider probes the provider with the active account's key. Without
// an active account there is nothing to probe.
func (hc *HealthChecker) checkProvider(ctx context.Context) ComponentCheck {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	activeID, err := hc.store.ActiveID(probeCtx)
	if err != nil {
		return ComponentCheck{Status: "down", Message: fmt.Sprintf("reading active account: %v", err)}
	}
	if activeID == "" {
		return ComponentCheck{Status: "down", Message: "not configured"}
	}

	acct, err := hc.store.Get(probeCtx, activeID)
	if err != nil {
		return ComponentCheck{Status: "down", Message: fmt.Sprintf("loading active account: %v", err)}
	}

	start := time.Now()
	_, err = brevo.NewClient(hc.brevoCfg, acct.APIKey).GetAccount(probeCtx)
	latency := time.Since(start)

	if err != nil {
		var apiErr *brevo.APIError
		if errors.As(err, &apiErr) {
			return ComponentCheck{
				Status:  "degraded",
				Latency: latency.String(),
				Message: fmt.Sprintf("provider rejected key (status %d)", apiErr.StatusCode),
			}
		}
		return ComponentCheck{
			Status:  "down",
			Latency: latency.String(),
			Message: fmt.Sprintf("provider unreachable: %v", err),
		}
	}

	return ComponentCheck{
		Status:  "up",
		Latency: latency.String(),
		Message: "reachable",
	}
}

// checkEngine reports whether the import engine accepts jobs.
func (hc *HealthChecker) checkEngine() ComponentCheck {
	if !hc.engine.Running() {
		return ComponentCheck{Status: "down", Message: "stopped"}
	}

	return ComponentCheck{
		Status:  "up",
		Message: fmt.Sprintf("%d tracked jobs", len(hc.engine.Jobs())),
	}
}

// determineOverallStatus derives the aggregate status from individual checks.
//
// Rules:
//   - "unhealthy" if the account store is down (critical dependency)
//   - "degraded"  if any check is degraded or a non-critical check is down
//   - "healthy"   otherwise
func determineOverallStatus(checks map[string]ComponentCheck) string {
	if st, ok := checks["store"]; ok && st.Status == "down" {
		return "unhealthy"
	}

	for _, c := range checks {
		if c.Status == "degraded" {
			return "degraded"
		}
		if c.Status == "down" && c.Message != "not configured" {
			return "degraded"
		}
	}

	return "healthy"
}

// formatUptime produces a human-readable uptime string like "3d 4h 12m 5s".
func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
