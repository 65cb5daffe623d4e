package listener

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/jeffgicharu/load-balancer/internal/balancer"
	"github.com/jeffgicharu/load-balancer/internal/health"
	"github.com/jeffgicharu/load-balancer/internal/metrics"
	"github.com/jeffgicharu/load-balancer/internal/router"
)

func backendEchoTCP(t *testing.T) net.Addr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				io.Copy(c, c)
				c.Close()
			}(conn)
		}
	}()
	return ln.Addr()
}

func TestTCPFrontendProxiesBytes(t *testing.T) {
	backendAddr := backendEchoTCP(t)
	r := newTestRouter(t, "raw", "app", backendAddr.String())

	f := NewTCPFrontend(TCPFrontendConfig{
		Name: "raw", Backend: "app", Addr: "127.0.0.1:0",
		ConnectTimeout: time.Second, Router: r, Metrics: metrics.New(),
	})
	done := make(chan struct{})
	if err := f.Start(done); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer close(done)
	defer f.Stop(context.Background())

	time.Sleep(50 * time.Millisecond)
	conn, err := net.Dial("tcp", f.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	msg := []byte("ping")
	if _, err := conn.Write(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, len(msg))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf) != "ping" {
		t.Errorf("got %q, want ping", buf)
	}
}

func TestTCPFrontendSkipsUnhealthyServer(t *testing.T) {
	healthyBackend := backendEchoTCP(t)
	unhealthyAddr := tAddr(t, "127.0.0.1:9999")

	r := router.New(health.NewState(health.DefaultConfig()))
	r.AddPool(&router.Pool{Name: "app", Servers: []balancer.ServerInfo{
		{Address: unhealthyAddr, Weight: 1},
		{Address: healthyBackend, Weight: 1},
	}})
	if err := r.AddFrontend("raw", "app", balancer.AlgorithmRoundRobin); err != nil {
		t.Fatalf("AddFrontend: %v", err)
	}

	state := health.NewState(health.Config{UnhealthyThreshold: 1, HealthyThreshold: 1, Cooldown: time.Minute})
	state.MarkUnhealthy(unhealthyAddr)

	f := NewTCPFrontend(TCPFrontendConfig{
		Name: "raw", Backend: "app", Addr: "127.0.0.1:0",
		ConnectTimeout: time.Second, Router: r, Health: state, Metrics: metrics.New(),
	})
	done := make(chan struct{})
	if err := f.Start(done); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer close(done)
	defer f.Stop(context.Background())

	time.Sleep(50 * time.Millisecond)
	for i := 0; i < 4; i++ {
		conn, err := net.Dial("tcp", f.Addr())
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		msg := []byte("ping")
		if _, err := conn.Write(msg); err != nil {
			t.Fatalf("write: %v", err)
		}
		buf := make([]byte, len(msg))
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, err := io.ReadFull(conn, buf); err != nil {
			t.Fatalf("expected every connection to reach the healthy server, read failed: %v", err)
		}
		conn.Close()
	}
}

func TestTCPFrontendStopDrains(t *testing.T) {
	backendAddr := backendEchoTCP(t)
	r := newTestRouter(t, "raw", "app", backendAddr.String())

	f := NewTCPFrontend(TCPFrontendConfig{Name: "raw", Backend: "app", Addr: "127.0.0.1:0", Router: r})
	done := make(chan struct{})
	if err := f.Start(done); err != nil {
		t.Fatalf("Start: %v", err)
	}
	close(done)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.Stop(ctx); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
