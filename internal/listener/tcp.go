package listener

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/jeffgicharu/load-balancer/internal/health"
	"github.com/jeffgicharu/load-balancer/internal/logging"
	"github.com/jeffgicharu/load-balancer/internal/metrics"
	"github.com/jeffgicharu/load-balancer/internal/proxy"
	"github.com/jeffgicharu/load-balancer/internal/requestid"
	"github.com/jeffgicharu/load-balancer/internal/router"
)

// TCPFrontend binds a raw TCP listener for one FrontendSpec and
// dispatches each accepted connection to proxy.HandleTCP. Grounded on
// FalandyJEAN-GO-LEARNING-SETUP's lesson11 accept-loop pattern
// (stop-channel-gated Accept, per-connection goroutine) and spec.md
// §4.G's step list, generalized from that lesson's single static
// backend to router.Select-driven dispatch.
type TCPFrontend struct {
	name           string
	backend        string
	addr           string
	connectTimeout time.Duration

	router  router.Provider
	health  *health.State
	metrics *metrics.Metrics
	logger  *logging.Logger
	ids     requestid.Generator

	listener net.Listener
	wg       sync.WaitGroup
}

// TCPFrontendConfig configures a TCPFrontend.
type TCPFrontendConfig struct {
	Name           string
	Backend        string
	Addr           string
	ConnectTimeout time.Duration
	Router         router.Provider
	Health         *health.State
	Metrics        *metrics.Metrics
	Logger         *logging.Logger
}

// NewTCPFrontend constructs a TCPFrontend ready for Start.
func NewTCPFrontend(cfg TCPFrontendConfig) *TCPFrontend {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TCPFrontend{
		name:           cfg.Name,
		backend:        cfg.Backend,
		addr:           cfg.Addr,
		connectTimeout: timeout,
		router:         cfg.Router,
		health:         cfg.Health,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
	}
}

// Start binds the socket and launches the accept loop, which exits
// when Accept errors (e.g. the listener was closed by Stop). Closing
// done does not by itself stop the loop; it only keeps the resulting
// Accept error from being logged.
func (f *TCPFrontend) Start(done <-chan struct{}) error {
	ln, err := net.Listen("tcp", f.addr)
	if err != nil {
		return fmt.Errorf("listener: bind %s (%s): %w", f.name, f.addr, err)
	}
	f.listener = ln

	go f.acceptLoop(done)
	return nil
}

func (f *TCPFrontend) acceptLoop(done <-chan struct{}) {
	for {
		conn, err := f.listener.Accept()
		if err != nil {
			select {
			case <-done:
				return
			default:
			}
			if f.logger != nil {
				f.logger.Error("tcp accept error", map[string]interface{}{"frontend": f.name, "error": err.Error()})
			}
			return
		}

		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			f.handle(conn)
		}()
	}
}

func (f *TCPFrontend) handle(client net.Conn) {
	defer client.Close()

	requestID := f.ids.Next()
	clientAddr := client.RemoteAddr()

	if f.metrics != nil {
		f.metrics.ConnectionOpened(f.name, f.backend)
		defer f.metrics.ConnectionClosed(f.name, f.backend)
	}

	backendAddr, err := selectHealthy(f.router, f.health, f.backend, f.name, clientAddr)
	if err != nil {
		if f.logger != nil {
			f.logger.Warn("no routable backend", map[string]interface{}{"frontend": f.name, "backend": f.backend, "request_id": requestID})
		}
		return
	}

	f.router.OnConnect(f.name, backendAddr)
	defer f.router.OnDisconnect(f.name, backendAddr)

	result, err := proxy.HandleTCP(context.Background(), client, backendAddr.String(), f.connectTimeout)
	if f.metrics != nil {
		f.metrics.RecordBytes(f.name, f.backend, metrics.DirectionInbound, result.BytesToBackend)
		f.metrics.RecordBytes(f.name, f.backend, metrics.DirectionOutbound, result.BytesToClient)
	}
	if err != nil && f.logger != nil {
		f.logger.Error("tcp session error", map[string]interface{}{
			"frontend": f.name, "backend": f.backend, "request_id": requestID, "error": err.Error(),
		})
	}
}

// Stop closes the listening socket and waits (up to the caller's
// context deadline) for in-flight sessions to finish.
func (f *TCPFrontend) Stop(ctx context.Context) error {
	if f.listener == nil {
		return nil
	}
	if err := f.listener.Close(); err != nil {
		return err
	}

	drained := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Addr returns the bound listen address.
func (f *TCPFrontend) Addr() string {
	if f.listener != nil {
		return f.listener.Addr().String()
	}
	return f.addr
}
