package handlers

import (
	"context"
	"net"
	"net/http"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/workwhile/automation/common/httputil"
	"github.com/workwhile/automation/common/logging"
)

const mib = 1024 * 1024

// Checker reports whether one dependency is usable.
type Checker func(ctx context.Context) error

// HealthHandler serves the /health endpoints.
type HealthHandler struct {
	environment  string
	started      time.Time
	checks       map[string]Checker
	checkTimeout time.Duration
	logger       *logging.Logger
	now          func() time.Time
}

func NewHealthHandler(environment string, checks map[string]Checker, logger *logging.Logger) *HealthHandler {
	if checks == nil {
		checks = map[string]Checker{}
	}
	return &HealthHandler{
		environment:  environment,
		started:      time.Now(),
		checks:       checks,
		checkTimeout: 2 * time.Second,
		logger:       logger,
		now:          time.Now,
	}
}

type memoryStats struct {
	Used     uint64        `json:"used"`
	Total    uint64        `json:"total"`
	External uint64        `json:"external"`
	RSS      uint64        `json:"rss,omitempty"`
	System   *systemMemory `json:"system,omitempty"`
}

type systemMemory struct {
	Total uint64 `json:"total"`
	Free  uint64 `json:"free"`
}

type cpuStats struct {
	LoadAverage []float64 `json:"loadAverage"`
	Cores       int       `json:"cores"`
	Model       string    `json:"model,omitempty"`
}

type platformInfo struct {
	OS       string `json:"os"`
	Arch     string `json:"arch"`
	Release  string `json:"release"`
	Hostname string `json:"hostname"`
}

type healthResponse struct {
	Status      string        `json:"status"`
	Timestamp   string        `json:"timestamp"`
	Uptime      float64       `json:"uptime"`
	Environment string        `json:"environment"`
	Version     string        `json:"version"`
	Platform    *platformInfo `json:"platform,omitempty"`
	Memory      memoryStats   `json:"memory"`
	CPU         cpuStats      `json:"cpu"`
	Network     *networkInfo  `json:"network,omitempty"`
}

type networkInfo struct {
	Interfaces int `json:"interfaces"`
}

func (h *HealthHandler) basic(ctx context.Context) healthResponse {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return healthResponse{
		Status:      "OK",
		Timestamp:   httputil.Timestamp(h.now()),
		Uptime:      h.now().Sub(h.started).Seconds(),
		Environment: h.environment,
		Version:     runtime.Version(),
		Memory: memoryStats{
			Used:     ms.HeapAlloc / mib,
			Total:    ms.HeapSys / mib,
			External: (ms.Sys - ms.HeapSys) / mib,
		},
		CPU: cpuStats{
			LoadAverage: loadAverage(ctx),
			Cores:       runtime.NumCPU(),
		},
	}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.logger.InfoContext(r.Context(), "health check requested", logging.IP(httputil.GetClientIP(r)))
	httputil.WriteJSON(w, http.StatusOK, h.basic(r.Context()))
}

// Detailed handles GET /health/detailed.
func (h *HealthHandler) Detailed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := h.basic(ctx)

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	resp.Memory.RSS = ms.Sys / mib
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		resp.Memory.System = &systemMemory{
			Total: vm.Total / (mib * 1024),
			Free:  vm.Free / (mib * 1024),
		}
	}

	hostname, _ := os.Hostname()
	resp.Platform = &platformInfo{
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
		Release:  kernelRelease(ctx),
		Hostname: hostname,
	}

	resp.CPU.Model = "Unknown"
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 && infos[0].ModelName != "" {
		resp.CPU.Model = infos[0].ModelName
	}

	if ifaces, err := net.Interfaces(); err == nil {
		resp.Network = &networkInfo{Interfaces: len(ifaces)}
	}

	h.logger.InfoContext(ctx, "detailed health check requested", logging.IP(httputil.GetClientIP(r)))
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Ready handles GET /health/ready. Every registered checker must pass.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.checkTimeout)
	defer cancel()

	failed := h.runChecks(ctx)
	if len(failed) > 0 {
		h.logger.WarnContext(ctx, "readiness check failed", "checks", failed)
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not ready",
			"checks": failed,
		})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Live handles GET /health/live.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// runChecks returns the error text of each failing check keyed by name.
func (h *HealthHandler) runChecks(ctx context.Context) map[string]string {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := map[string]string{}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	return failed
}

func loadAverage(ctx context.Context) []float64 {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return []float64{0, 0, 0}
	}
	return []float64{avg.Load1, avg.Load5, avg.Load15}
}

func kernelRelease(ctx context.Context) string {
	v, err := host.KernelVersionWithContext(ctx)
	if err != nil {
		return "unknown"
	}
	return v
}
