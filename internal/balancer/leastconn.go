package balancer

import (
	"net"
	"sync"
	"sync/atomic"
)

// LeastConnections tracks a per-address connection counter in a sharded
// map (sync.Map, keyed by address string) and selects the candidate with
// the minimal count, ties broken by pool order. Scan cost is O(n), which
// is acceptable for the dozens-of-servers pools this spec targets.
//
// Grounded on internal/proxy/circuitbreaker.go's atomic-counter-under-lock
// discipline, adapted from a single breaker counter to a per-address map.
type LeastConnections struct {
	counts sync.Map // string(addr) -> *int64
}

// NewLeastConnections returns a fresh LeastConnections balancer.
func NewLeastConnections() *LeastConnections {
	return &LeastConnections{}
}

func (lc *LeastConnections) counter(key string) *int64 {
	v, _ := lc.counts.LoadOrStore(key, new(int64))
	return v.(*int64)
}

func (lc *LeastConnections) Select(servers []ServerInfo, _ net.Addr) net.Addr {
	if len(servers) == 0 {
		return nil
	}

	var best net.Addr
	var bestCount int64 = -1
	for _, s := range servers {
		c := atomic.LoadInt64(lc.counter(addrKey(s.Address)))
		if bestCount == -1 || c < bestCount {
			bestCount = c
			best = s.Address
		}
	}
	return best
}

func (lc *LeastConnections) OnConnect(addr net.Addr) {
	if addr == nil {
		return
	}
	atomic.AddInt64(lc.counter(addrKey(addr)), 1)
}

// OnDisconnect decrements the counter for addr, clamped at 0 so an excess
// disconnect (e.g. a double-count from a retried session) can never drive
// the counter negative.
func (lc *LeastConnections) OnDisconnect(addr net.Addr) {
	if addr == nil {
		return
	}
	counter := lc.counter(addrKey(addr))
	for {
		cur := atomic.LoadInt64(counter)
		if cur <= 0 {
			return
		}
		if atomic.CompareAndSwapInt64(counter, cur, cur-1) {
			return
		}
	}
}

func (lc *LeastConnections) ConnectionCount(addr net.Addr) uint32 {
	if addr == nil {
		return 0
	}
	v, ok := lc.counts.Load(addrKey(addr))
	if !ok {
		return 0
	}
	return uint32(atomic.LoadInt64(v.(*int64)))
}
