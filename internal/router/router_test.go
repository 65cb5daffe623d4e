package router

import (
	"net"
	"testing"

	"github.com/jeffgicharu/load-balancer/internal/balancer"
	"github.com/jeffgicharu/load-balancer/internal/health"
)

func tAddr(t *testing.T, s string) net.Addr {
	t.Helper()
	a, err := net.ResolveTCPAddr("tcp", s)
	if err != nil {
		t.Fatalf("resolve %q: %v", s, err)
	}
	return a
}

func newTestPool(t *testing.T, name string, addrs ...string) *Pool {
	servers := make([]balancer.ServerInfo, len(addrs))
	for i, a := range addrs {
		servers[i] = balancer.ServerInfo{Address: tAddr(t, a), Weight: 1}
	}
	return &Pool{Name: name, Servers: servers}
}

func TestAddFrontendUnknownPool(t *testing.T) {
	r := New(health.NewState(health.DefaultConfig()))
	if err := r.AddFrontend("web", "missing", balancer.AlgorithmRoundRobin); err == nil {
		t.Error("expected error binding frontend to unknown pool")
	}
}

func TestSelectRoundRobinCycles(t *testing.T) {
	r := New(health.NewState(health.DefaultConfig()))
	pool := newTestPool(t, "app", "127.0.0.1:9001", "127.0.0.1:9002")
	r.AddPool(pool)
	if err := r.AddFrontend("web", "app", balancer.AlgorithmRoundRobin); err != nil {
		t.Fatalf("AddFrontend: %v", err)
	}

	first, err := r.Select("web", pool.Servers, nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	second, err := r.Select("web", pool.Servers, nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if first.String() == second.String() {
		t.Errorf("expected round robin to alternate, got %v twice", first)
	}
}

// Health filtering is not the router's job (spec.md §4.C): Select
// delegates to the Balancer over exactly the servers passed in, with no
// awareness of health.State. internal/listener's selectHealthy is what
// pre-filters before calling Select; see
// TestHTTPFrontendSkipsUnhealthyServer and
// TestHTTPFrontendReturns502WithNoBackend in internal/listener for the
// equivalent coverage at the caller-filters layer.

func TestSelectOnUnknownFrontendFails(t *testing.T) {
	r := New(health.NewState(health.DefaultConfig()))
	pool := newTestPool(t, "app", "127.0.0.1:9001")
	r.AddPool(pool)

	if _, err := r.Select("missing", pool.Servers, nil); err == nil {
		t.Error("expected error selecting on an unbound frontend")
	}
}

func TestSelectOnEmptyServerListFails(t *testing.T) {
	r := New(health.NewState(health.DefaultConfig()))
	pool := newTestPool(t, "app", "127.0.0.1:9001")
	r.AddPool(pool)
	r.AddFrontend("web", "app", balancer.AlgorithmRoundRobin)

	if _, err := r.Select("web", nil, nil); err == nil {
		t.Error("expected error when the caller passes no servers")
	}
}

func TestFrontendsOverSamePoolHaveIndependentAlgorithmState(t *testing.T) {
	// Resolves spec.md §9: each frontend owns its own Balancer even when
	// sharing a pool, so their round-robin cursors don't interfere.
	r := New(health.NewState(health.DefaultConfig()))
	pool := newTestPool(t, "app", "127.0.0.1:9001", "127.0.0.1:9002", "127.0.0.1:9003")
	r.AddPool(pool)
	r.AddFrontend("web-a", "app", balancer.AlgorithmRoundRobin)
	r.AddFrontend("web-b", "app", balancer.AlgorithmRoundRobin)

	firstA, _ := r.Select("web-a", pool.Servers, nil)
	firstB, _ := r.Select("web-b", pool.Servers, nil)
	if firstA.String() != firstB.String() {
		t.Errorf("expected both fresh frontends to start at the same server, got %v and %v", firstA, firstB)
	}
}

func TestOnConnectOnDisconnectTrackedPerFrontend(t *testing.T) {
	r := New(health.NewState(health.DefaultConfig()))
	pool := newTestPool(t, "app", "127.0.0.1:9001", "127.0.0.1:9002")
	r.AddPool(pool)
	r.AddFrontend("web", "app", balancer.AlgorithmLeastConnections)

	addr := pool.Servers[0].Address
	r.OnConnect("web", addr)
	r.OnConnect("web", addr)

	count, err := r.ConnectionCount("web", addr)
	if err != nil {
		t.Fatalf("ConnectionCount: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 connections, got %d", count)
	}

	r.OnDisconnect("web", addr)
	count, _ = r.ConnectionCount("web", addr)
	if count != 1 {
		t.Errorf("expected 1 connection after disconnect, got %d", count)
	}
}

func TestGetServersUnknownPool(t *testing.T) {
	r := New(health.NewState(health.DefaultConfig()))
	if _, err := r.GetServers("missing"); err == nil {
		t.Error("expected error for unknown pool")
	}
}
