package balancer

import (
	"net"
	"sync/atomic"
)

// RoundRobin cycles through the server list with a single relaxed atomic
// counter, grounded on the teacher's Pool.Next (internal/proxy/backend.go):
// counter is strictly incremented per call and the index is the counter
// modulo the current pool size, so over any N consecutive calls against a
// stable N-server pool every server is picked exactly once.
type RoundRobin struct {
	counter uint64
}

// NewRoundRobin returns a fresh RoundRobin balancer starting at index 0.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

func (rr *RoundRobin) Select(servers []ServerInfo, _ net.Addr) net.Addr {
	n := len(servers)
	if n == 0 {
		return nil
	}
	idx := atomic.AddUint64(&rr.counter, 1) - 1
	return servers[idx%uint64(n)].Address
}

func (rr *RoundRobin) OnConnect(net.Addr)             {}
func (rr *RoundRobin) OnDisconnect(net.Addr)          {}
func (rr *RoundRobin) ConnectionCount(net.Addr) uint32 { return 0 }
