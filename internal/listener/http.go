// Package listener implements the frontend accept loops of spec.md §4.G:
// binding a socket, generating a request ID per accepted
// connection/request, and dispatching to the TCP or HTTP proxy engine.
package listener

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jeffgicharu/load-balancer/internal/health"
	"github.com/jeffgicharu/load-balancer/internal/logging"
	"github.com/jeffgicharu/load-balancer/internal/metrics"
	"github.com/jeffgicharu/load-balancer/internal/proxy"
	"github.com/jeffgicharu/load-balancer/internal/requestid"
	"github.com/jeffgicharu/load-balancer/internal/router"
)

// HTTPFrontend binds an HTTP/1.1 listener for one FrontendSpec.
// Grounded on internal/listener/http.go's HTTPListener, stripped of its
// TLS termination (spec.md Non-goal) and rewired from a caller-supplied
// http.Handler to this package's own request dispatch so every request
// flows through router.Select/proxy.ServeHTTP.
type HTTPFrontend struct {
	name     string
	backend  string
	addr     string
	router   router.Provider
	health   *health.State
	metrics  *metrics.Metrics
	logger   *logging.Logger
	ids      requestid.Generator
	httpCfg  proxy.HTTPConfig
	server   *http.Server
	listener net.Listener
}

// HTTPFrontendConfig configures an HTTPFrontend.
type HTTPFrontendConfig struct {
	Name    string
	Backend string
	Addr    string
	Router  router.Provider
	Health  *health.State
	Metrics *metrics.Metrics
	Logger  *logging.Logger
	HTTP    proxy.HTTPConfig
}

// NewHTTPFrontend constructs an HTTPFrontend ready for Start.
func NewHTTPFrontend(cfg HTTPFrontendConfig) *HTTPFrontend {
	return &HTTPFrontend{
		name:    cfg.Name,
		backend: cfg.Backend,
		addr:    cfg.Addr,
		router:  cfg.Router,
		health:  cfg.Health,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		httpCfg: cfg.HTTP,
	}
}

// Start binds the listening socket and begins serving in the
// background. The http.Server honors HTTP/1.1 keep-alive on the
// client-facing side per spec.md §4.F, while each forwarded request
// dials the backend fresh.
func (f *HTTPFrontend) Start() error {
	ln, err := net.Listen("tcp", f.addr)
	if err != nil {
		return fmt.Errorf("listener: bind %s (%s): %w", f.name, f.addr, err)
	}
	f.listener = ln

	f.server = &http.Server{
		Handler:           http.HandlerFunc(f.handle),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ConnState:         f.trackConnState,
	}

	go func() {
		if err := f.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			if f.logger != nil {
				f.logger.Error("http frontend serve error", map[string]interface{}{"frontend": f.name, "error": err.Error()})
			}
		}
	}()
	return nil
}

func (f *HTTPFrontend) trackConnState(conn net.Conn, state http.ConnState) {
	if state == http.StateNew {
		if tc, ok := conn.(interface{ SetNoDelay(bool) error }); ok {
			tc.SetNoDelay(true)
		}
	}
}

func (f *HTTPFrontend) handle(w http.ResponseWriter, r *http.Request) {
	requestID := f.ids.Next()
	r.Header.Set("X-Request-Id", requestID)

	clientAddr, _ := net.ResolveTCPAddr("tcp", r.RemoteAddr)

	backendAddr, err := selectHealthy(f.router, f.health, f.backend, f.name, clientAddr)
	if err != nil {
		if f.logger != nil {
			f.logger.Warn("no routable backend", map[string]interface{}{"frontend": f.name, "backend": f.backend, "request_id": requestID})
		}
		http.Error(w, "502: no healthy backend\n", http.StatusBadGateway)
		if f.metrics != nil {
			f.metrics.RecordRequest(f.name, f.backend, r.Method, "502", 0)
		}
		return
	}

	f.router.OnConnect(f.name, backendAddr)
	defer f.router.OnDisconnect(f.name, backendAddr)

	proxy.ServeHTTP(w, r, proxy.HTTPContext{
		ClientAddr:   clientAddr,
		BackendAddr:  backendAddr,
		FrontendName: f.name,
		BackendName:  f.backend,
		RequestID:    requestID,
	}, f.httpCfg, f.metrics)
}

// Stop gracefully drains the HTTP server.
func (f *HTTPFrontend) Stop(ctx context.Context) error {
	if f.server == nil {
		return nil
	}
	return f.server.Shutdown(ctx)
}

// Addr returns the bound listen address.
func (f *HTTPFrontend) Addr() string {
	if f.listener != nil {
		return f.listener.Addr().String()
	}
	return f.addr
}
