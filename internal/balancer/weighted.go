package balancer

import (
	"net"
	"sync/atomic"
)

// Weighted implements smooth weighted round robin: a single counter
// advances modulo the sum of weights W, and the server whose cumulative
// weight prefix first strictly exceeds the counter is selected. Over any
// k*W consecutive selects, server s is picked exactly k*s.Weight times.
//
// Grounded on the teacher's Pool.NextWeighted (internal/proxy/health.go),
// generalized to work over an arbitrary caller-supplied server slice
// instead of the pool's own healthy-only view.
type Weighted struct {
	counter uint64
}

// NewWeighted returns a fresh Weighted balancer.
func NewWeighted() *Weighted {
	return &Weighted{}
}

func (w *Weighted) Select(servers []ServerInfo, _ net.Addr) net.Addr {
	total := 0
	for _, s := range servers {
		total += s.Weight
	}
	if total <= 0 {
		return nil
	}

	counter := atomic.AddUint64(&w.counter, 1) - 1
	target := int(counter % uint64(total))

	cumulative := 0
	for _, s := range servers {
		cumulative += s.Weight
		if target < cumulative {
			return s.Address
		}
	}
	// Unreachable when total > 0, but keep selection total.
	return servers[len(servers)-1].Address
}

func (w *Weighted) OnConnect(net.Addr)             {}
func (w *Weighted) OnDisconnect(net.Addr)          {}
func (w *Weighted) ConnectionCount(net.Addr) uint32 { return 0 }
