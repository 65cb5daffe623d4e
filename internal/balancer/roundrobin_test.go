package balancer

import (
	"net"
	"testing"
)

func addr(s string) net.Addr {
	a, err := net.ResolveTCPAddr("tcp", s)
	if err != nil {
		panic(err)
	}
	return a
}

func servers(addrs ...string) []ServerInfo {
	out := make([]ServerInfo, len(addrs))
	for i, a := range addrs {
		out[i] = ServerInfo{Address: addr(a), Weight: 1}
	}
	return out
}

func TestRoundRobinCycle(t *testing.T) {
	// E1: pool of 3, four consecutive selects must be 9001, 9002, 9003, 9001.
	rr := NewRoundRobin()
	pool := servers("127.0.0.1:9001", "127.0.0.1:9002", "127.0.0.1:9003")

	want := []string{"127.0.0.1:9001", "127.0.0.1:9002", "127.0.0.1:9003", "127.0.0.1:9001"}
	for i, w := range want {
		got := rr.Select(pool, nil)
		if got == nil || got.String() != w {
			t.Fatalf("select %d: got %v, want %s", i, got, w)
		}
	}
}

func TestRoundRobinExactDistribution(t *testing.T) {
	rr := NewRoundRobin()
	pool := servers("127.0.0.1:9001", "127.0.0.1:9002", "127.0.0.1:9003")

	counts := map[string]int{}
	const k = 37
	for i := 0; i < k*len(pool); i++ {
		counts[rr.Select(pool, nil).String()]++
	}
	for _, s := range pool {
		if counts[s.Address.String()] != k {
			t.Errorf("server %s selected %d times, want %d", s.Address, counts[s.Address.String()], k)
		}
	}
}

func TestRoundRobinEmptyPool(t *testing.T) {
	rr := NewRoundRobin()
	if got := rr.Select(nil, nil); got != nil {
		t.Errorf("expected nil from empty pool, got %v", got)
	}
}
