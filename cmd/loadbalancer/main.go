// Command loadbalancer runs the L4/L7 load balancer: it loads a YAML
// configuration file, builds the backend router and active health
// checker it describes, binds one frontend listener per configured
// frontend, and serves until a termination signal arrives.
//
// Grounded on cmd/shadowgate/main.go's flag/wiring/signal-loop shape:
// flag.String/Bool for CLI flags, config.Load → logging.New → wiring →
// signal.Notify(SIGINT, SIGTERM, SIGHUP) with SIGHUP re-validating (here,
// hot-swapping) rather than requiring a restart.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeffgicharu/load-balancer/internal/admin"
	"github.com/jeffgicharu/load-balancer/internal/balancer"
	"github.com/jeffgicharu/load-balancer/internal/config"
	"github.com/jeffgicharu/load-balancer/internal/health"
	"github.com/jeffgicharu/load-balancer/internal/listener"
	"github.com/jeffgicharu/load-balancer/internal/logging"
	"github.com/jeffgicharu/load-balancer/internal/metrics"
	"github.com/jeffgicharu/load-balancer/internal/proxy"
	"github.com/jeffgicharu/load-balancer/internal/router"
	"github.com/jeffgicharu/load-balancer/internal/shutdown"
	"github.com/jeffgicharu/load-balancer/internal/watcher"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	logLevel := flag.String("log-level", "", "override the configured log level")
	validateOnly := flag.Bool("validate", false, "validate configuration and exit")
	noWatch := flag.Bool("no-watch", false, "disable config file hot-reload")
	showVersion := flag.Bool("version", false, "show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("loadbalancer %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Global.LogLevel = *logLevel
		if err := cfg.Global.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if *validateOnly {
		fmt.Println("Configuration is valid")
		os.Exit(0)
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Global.LogLevel,
		Format: cfg.Global.LogFormat,
		Output: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}

	logger.Info("load balancer starting", map[string]interface{}{
		"version":   version,
		"frontends": len(cfg.Frontends),
		"backends":  len(cfg.Backends),
	})

	metricsCollector := metrics.New()
	healthState := health.NewState(health.Config{
		UnhealthyThreshold: orDefault(cfg.HealthCheckDefaults.UnhealthyThreshold, 3),
		HealthyThreshold:   orDefault(cfg.HealthCheckDefaults.HealthyThreshold, 2),
		Cooldown:           orDefaultDuration(cfg.HealthCheckDefaults.Cooldown.Duration(), 30*time.Second),
	})

	rt, err := buildRouter(cfg, healthState)
	if err != nil {
		logger.Error("failed to build router from configuration", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	dynamicRouter := router.NewDynamic(rt)

	checker := health.NewChecker(
		healthState,
		buildCheckTargets(cfg),
		orDefaultDuration(cfg.HealthCheckDefaults.Interval.Duration(), 5*time.Second),
		orDefaultDuration(cfg.HealthCheckDefaults.Timeout.Duration(), 2*time.Second),
	)
	backendOf := backendNameIndex(cfg)
	checker.OnProbe = func(addr net.Addr, success bool) {
		backend := backendOf[addr.String()]
		metricsCollector.RecordHealthCheck(backend, addr.String(), success)
		metricsCollector.SetBackendHealth(backend, addr.String(), healthState.IsHealthy(addr))
	}
	checker.Start()

	frontends := make([]interface {
		Stop(context.Context) error
	}, 0, len(cfg.Frontends))

	for _, fc := range cfg.Frontends {
		switch fc.Protocol {
		case "http":
			httpCfg := proxy.HTTPConfig{ConnectTimeout: 5 * time.Second}
			if fc.HTTP != nil {
				httpCfg.RequestHeaders = fc.HTTP.RequestHeaders
				httpCfg.ResponseHeaders = fc.HTTP.ResponseHeaders
			}
			f := listener.NewHTTPFrontend(listener.HTTPFrontendConfig{
				Name: fc.Name, Backend: fc.Backend, Addr: fc.Listen,
				Router: dynamicRouter, Health: healthState, Metrics: metricsCollector, Logger: logger, HTTP: httpCfg,
			})
			if err := f.Start(); err != nil {
				logger.Error("failed to start http frontend", map[string]interface{}{"frontend": fc.Name, "error": err.Error()})
				os.Exit(1)
			}
			frontends = append(frontends, f)
			logger.Info("http frontend listening", map[string]interface{}{"frontend": fc.Name, "addr": f.Addr()})

		case "tcp":
			connectTimeout := 5 * time.Second
			if fc.TCP != nil && fc.TCP.ConnectTimeout.Duration() > 0 {
				connectTimeout = fc.TCP.ConnectTimeout.Duration()
			}
			done := make(chan struct{})
			f := listener.NewTCPFrontend(listener.TCPFrontendConfig{
				Name: fc.Name, Backend: fc.Backend, Addr: fc.Listen, ConnectTimeout: connectTimeout,
				Router: dynamicRouter, Health: healthState, Metrics: metricsCollector, Logger: logger,
			})
			if err := f.Start(done); err != nil {
				logger.Error("failed to start tcp frontend", map[string]interface{}{"frontend": fc.Name, "error": err.Error()})
				os.Exit(1)
			}
			frontends = append(frontends, tcpStopper{f, done})
			logger.Info("tcp frontend listening", map[string]interface{}{"frontend": fc.Name, "addr": f.Addr()})
		}
	}

	reload := func() error {
		newCfg, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		newRouter, err := buildRouter(newCfg, healthState)
		if err != nil {
			return err
		}
		dynamicRouter.Swap(newRouter)
		return nil
	}

	var adminAPI *admin.API
	if cfg.Global.Metrics.Enabled {
		adminAPI = admin.New(admin.Config{
			Addr:       cfg.Global.Metrics.Address,
			Metrics:    metricsCollector,
			Health:     healthState,
			Version:    version,
			ReloadFunc: reload,
		})
		for _, bc := range cfg.Backends {
			adminAPI.RegisterPool(bc.Name, serverAddrs(bc))
		}
		if err := adminAPI.Start(); err != nil {
			logger.Error("failed to start admin API", map[string]interface{}{"error": err.Error()})
		} else {
			logger.Info("admin API listening", map[string]interface{}{"addr": cfg.Global.Metrics.Address})
		}
	}

	var configWatcher *watcher.Watcher
	if !*noWatch {
		configWatcher, err = watcher.New(*configPath, func(newCfg *config.Config) error {
			newRouter, buildErr := buildRouter(newCfg, healthState)
			if buildErr != nil {
				return buildErr
			}
			dynamicRouter.Swap(newRouter)
			return nil
		}, logger)
		if err != nil {
			logger.Warn("config watcher disabled", map[string]interface{}{"error": err.Error()})
		} else {
			configWatcher.Start()
			logger.Info("watching configuration file for changes", map[string]interface{}{"path": *configPath})
		}
	}

	logger.Info("load balancer started", nil)
	fmt.Printf("load balancer running with %d frontend(s). Press Ctrl+C to stop.\n", len(cfg.Frontends))

	// bcast fans shutdown out to a single drain goroutine; every other
	// subscriber (a future accept loop, an in-flight probe) could select
	// on bcast.Done() the same way without its own dedicated stop channel.
	bcast := shutdown.New(context.Background())
	go func() {
		<-bcast.Done()
		logger.Info("shutting down", nil)
		checker.Stop()
		if configWatcher != nil {
			configWatcher.Stop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		for _, f := range frontends {
			if err := f.Stop(shutdownCtx); err != nil {
				logger.Error("error during frontend shutdown", map[string]interface{}{"error": err.Error()})
			}
		}
		if adminAPI != nil {
			adminAPI.Stop(shutdownCtx)
		}
		cancel()

		logger.Info("shutdown complete", nil)
		os.Exit(0)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigChan {
		switch sig {
		case syscall.SIGHUP:
			logger.Info("received SIGHUP, reloading configuration", nil)
			if err := reload(); err != nil {
				logger.Error("configuration reload failed", map[string]interface{}{"error": err.Error()})
				continue
			}
			logger.Info("configuration reloaded", nil)

		case syscall.SIGINT, syscall.SIGTERM:
			bcast.Signal()
		}
	}
}

// tcpStopper adapts *listener.TCPFrontend's Stop(ctx)+done-channel close
// into the uniform Stop(ctx) surface shared with *listener.HTTPFrontend.
type tcpStopper struct {
	f    *listener.TCPFrontend
	done chan struct{}
}

func (t tcpStopper) Stop(ctx context.Context) error {
	close(t.done)
	return t.f.Stop(ctx)
}

// buildRouter constructs a fresh *router.Router from cfg: one Pool per
// backend, one Frontend (with its own Balancer instance) per configured
// frontend.
func buildRouter(cfg *config.Config, state *health.State) (*router.Router, error) {
	rt := router.New(state)

	for _, bc := range cfg.Backends {
		servers := make([]balancer.ServerInfo, 0, len(bc.Servers))
		for _, sc := range bc.Servers {
			addr, err := net.ResolveTCPAddr("tcp", sc.Address)
			if err != nil {
				return nil, fmt.Errorf("backend %q: server %q: %w", bc.Name, sc.Address, err)
			}
			weight := sc.Weight
			if weight < 1 {
				weight = 1
			}
			servers = append(servers, balancer.ServerInfo{Address: addr, Weight: weight})
		}
		rt.AddPool(&router.Pool{Name: bc.Name, Servers: servers})
	}

	for _, fc := range cfg.Frontends {
		if err := rt.AddFrontend(fc.Name, fc.Backend, fc.Algorithm); err != nil {
			return nil, err
		}
	}

	return rt, nil
}

// buildCheckTargets flattens every backend's servers into health.Target
// probes, using its HealthCheck spec if present or falling back to a
// bare TCP connect check.
func buildCheckTargets(cfg *config.Config) []health.Target {
	var targets []health.Target
	for _, bc := range cfg.Backends {
		spec := health.CheckSpec{Type: health.CheckTCP}
		if bc.HealthCheck != nil {
			if bc.HealthCheck.Type == "http" {
				spec.Type = health.CheckHTTP
			}
			spec.Path = bc.HealthCheck.Path
			spec.ExpectedStatus = bc.HealthCheck.ExpectedStatus
			spec.Interval = bc.HealthCheck.Interval.Duration()
			spec.Timeout = bc.HealthCheck.Timeout.Duration()
		}
		for _, sc := range bc.Servers {
			addr, err := net.ResolveTCPAddr("tcp", sc.Address)
			if err != nil {
				continue
			}
			targets = append(targets, health.Target{Addr: addr, Spec: spec})
		}
	}
	return targets
}

// backendNameIndex maps a server address string back to its owning
// backend name, for attaching a "backend" label to health-check metrics.
func backendNameIndex(cfg *config.Config) map[string]string {
	index := make(map[string]string)
	for _, bc := range cfg.Backends {
		for _, sc := range bc.Servers {
			if addr, err := net.ResolveTCPAddr("tcp", sc.Address); err == nil {
				index[addr.String()] = bc.Name
			}
		}
	}
	return index
}

func serverAddrs(bc config.BackendConfig) []net.Addr {
	addrs := make([]net.Addr, 0, len(bc.Servers))
	for _, sc := range bc.Servers {
		if addr, err := net.ResolveTCPAddr("tcp", sc.Address); err == nil {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orDefaultDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
