// Package admin exposes the load balancer's introspection surface:
// liveness, process status, Prometheus metrics, per-backend health, and
// a manual config-reload trigger. Grounded on internal/admin/api.go's
// ServeMux-of-handlers shape and its requireAuth wrapper, generalized
// from the teacher's per-profile circuit-breaker/decoy status payload
// to spec.md's frontend/backend/server health model.
package admin

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/jeffgicharu/load-balancer/internal/health"
	"github.com/jeffgicharu/load-balancer/internal/metrics"
)

// API serves the administrative HTTP endpoints on their own listener,
// separate from the data-plane frontends.
type API struct {
	addr       string
	server     *http.Server
	metrics    *metrics.Metrics
	health     *health.State
	reloadFunc func() error
	startTime  time.Time
	version    string

	authToken   string
	allowedNets []*net.IPNet

	poolsMu sync.RWMutex
	pools   map[string][]net.Addr // backend name -> server addresses
}

// Config configures the admin API.
type Config struct {
	Addr       string
	Metrics    *metrics.Metrics
	Health     *health.State
	ReloadFunc func() error
	Version    string
	AuthToken  string
	AllowedIPs []string
}

// New builds an API ready for Start.
func New(cfg Config) *API {
	a := &API{
		addr:       cfg.Addr,
		metrics:    cfg.Metrics,
		health:     cfg.Health,
		reloadFunc: cfg.ReloadFunc,
		startTime:  time.Now(),
		version:    cfg.Version,
		authToken:  cfg.AuthToken,
		pools:      make(map[string][]net.Addr),
	}

	for _, cidr := range cfg.AllowedIPs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			if ip := net.ParseIP(cidr); ip != nil {
				bits := 32
				if ip.To4() == nil {
					bits = 128
				}
				network = &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}
			}
		}
		if network != nil {
			a.allowedNets = append(a.allowedNets, network)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.handleHealth)
	mux.HandleFunc("/status", a.requireAuth(a.handleStatus))
	mux.HandleFunc("/backends", a.requireAuth(a.handleBackends))
	mux.HandleFunc("/reload", a.requireAuth(a.handleReload))
	if cfg.Metrics != nil {
		mux.Handle("/metrics", a.requireAuth(cfg.Metrics.Handler().ServeHTTP))
	}

	a.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return a
}

// requireAuth enforces the configured IP allowlist and bearer token,
// when set. Both are optional; an API with neither configured is open.
func (a *API) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(a.allowedNets) > 0 {
			clientIP := extractIP(r.RemoteAddr)
			allowed := false
			if clientIP != nil {
				for _, network := range a.allowedNets {
					if network.Contains(clientIP) {
						allowed = true
						break
					}
				}
			}
			if !allowed {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
		}

		if a.authToken != "" {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != a.authToken {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next(w, r)
	}
}

func extractIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return net.ParseIP(host)
}

// RegisterPool makes a backend's server list visible to the /backends
// endpoint.
func (a *API) RegisterPool(backendName string, servers []net.Addr) {
	a.poolsMu.Lock()
	defer a.poolsMu.Unlock()
	a.pools[backendName] = servers
}

// Start launches the admin server in the background.
func (a *API) Start() error {
	go a.server.ListenAndServe()
	return nil
}

// Stop gracefully shuts down the admin server.
func (a *API) Stop(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

// StatusResponse is the /status payload: process-level vitals.
type StatusResponse struct {
	Status     string      `json:"status"`
	Version    string      `json:"version"`
	Uptime     string      `json:"uptime"`
	GoVersion  string      `json:"go_version"`
	NumCPU     int         `json:"num_cpu"`
	Goroutines int         `json:"goroutines"`
	Memory     MemoryStats `json:"memory"`
}

// MemoryStats summarizes runtime.MemStats.
type MemoryStats struct {
	Alloc      uint64 `json:"alloc_bytes"`
	TotalAlloc uint64 `json:"total_alloc_bytes"`
	Sys        uint64 `json:"sys_bytes"`
	NumGC      uint32 `json:"num_gc"`
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	resp := StatusResponse{
		Status:     "running",
		Version:    a.version,
		Uptime:     time.Since(a.startTime).Round(time.Second).String(),
		GoVersion:  runtime.Version(),
		NumCPU:     runtime.NumCPU(),
		Goroutines: runtime.NumGoroutine(),
		Memory: MemoryStats{
			Alloc:      mem.Alloc,
			TotalAlloc: mem.TotalAlloc,
			Sys:        mem.Sys,
			NumGC:      mem.NumGC,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// BackendsResponse is the /backends payload.
type BackendsResponse struct {
	Backends map[string]BackendStatus `json:"backends"`
}

// BackendStatus reports one backend pool's aggregate and per-server
// health.
type BackendStatus struct {
	Total   int            `json:"total"`
	Healthy int            `json:"healthy"`
	Servers []ServerStatus `json:"servers"`
}

// ServerStatus is one server's health.State snapshot.
type ServerStatus struct {
	Address              string `json:"address"`
	Healthy              bool   `json:"healthy"`
	ConsecutiveFailures  int64  `json:"consecutive_failures"`
	ConsecutiveSuccesses int64  `json:"consecutive_successes"`
	ActiveConnections    int64  `json:"active_connections"`
}

func (a *API) handleBackends(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	a.poolsMu.RLock()
	defer a.poolsMu.RUnlock()

	resp := BackendsResponse{Backends: make(map[string]BackendStatus, len(a.pools))}
	for name, servers := range a.pools {
		servStatuses := make([]ServerStatus, 0, len(servers))
		healthyCount := 0
		for _, addr := range servers {
			snap := a.health.Get(addr)
			if snap.Healthy {
				healthyCount++
			}
			servStatuses = append(servStatuses, ServerStatus{
				Address:              addr.String(),
				Healthy:              snap.Healthy,
				ConsecutiveFailures:  snap.ConsecutiveFailures,
				ConsecutiveSuccesses: snap.ConsecutiveSuccesses,
				ActiveConnections:    snap.ActiveConnections,
			})
		}
		resp.Backends[name] = BackendStatus{
			Total:   len(servers),
			Healthy: healthyCount,
			Servers: servStatuses,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ReloadResponse is the /reload payload.
type ReloadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (a *API) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if a.reloadFunc == nil {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ReloadResponse{Success: false, Message: "Reload not configured"})
		return
	}

	err := a.reloadFunc()
	resp := ReloadResponse{Success: err == nil}
	if err != nil {
		resp.Message = err.Error()
	} else {
		resp.Message = "Configuration reloaded successfully"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
