// Package router binds frontends to backend pools and dispatches
// selection requests to each frontend's own algorithm instance.
package router

import (
	"fmt"
	"net"
	"sync"

	"github.com/jeffgicharu/load-balancer/internal/balancer"
	"github.com/jeffgicharu/load-balancer/internal/health"
)

// Pool is an immutable, named set of upstream servers shared by every
// frontend that references it. Grounded on internal/proxy/backend.go's
// Pool (backends []*Backend, Add/Get/Len), generalized from an
// HTTP-proxy-specific backend list to a protocol-agnostic server list.
type Pool struct {
	Name    string
	Servers []balancer.ServerInfo
}

// Frontend binds a listener address to a backend pool and an algorithm
// instance of its own. Per spec.md §9's resolution of the "algorithm
// shared across frontends" ambiguity, the algorithm is owned by the
// frontend, not the pool: two frontends pointing at the same pool each
// get an independent Balancer, so round-robin cursors and weighted
// counters never cross-contaminate.
type Frontend struct {
	Name     string
	Pool     *Pool
	Balancer balancer.Balancer
}

// Router is the top-level name->pool/frontend registry and the single
// entry point the frontend listeners use to resolve addresses.
// Grounded on original_source/src/backend/router.rs's BackendRouter,
// adapted from its HashMap<String,BackendInfo> plus a
// frontend_algorithms map (built by iterating frontends, which
// original_source documents as non-deterministic when two frontends
// share a pool) into the Frontend-owns-its-Balancer design above.
type Router struct {
	mu        sync.RWMutex
	pools     map[string]*Pool
	frontends map[string]*Frontend
	health    *health.State
}

// New creates an empty Router backed by the given health state.
func New(state *health.State) *Router {
	return &Router{
		pools:     make(map[string]*Pool),
		frontends: make(map[string]*Frontend),
		health:    state,
	}
}

// AddPool registers a backend pool by name. Re-adding a name replaces
// the pool for subsequently-added frontends but does not touch
// frontends already bound to the old *Pool value.
func (r *Router) AddPool(pool *Pool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pools[pool.Name] = pool
	for _, s := range pool.Servers {
		r.health.Register(s.Address)
	}
}

// AddFrontend binds a frontend name to an existing pool and constructs
// a fresh algorithm instance for it.
func (r *Router) AddFrontend(name, poolName, algorithm string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pool, ok := r.pools[poolName]
	if !ok {
		return fmt.Errorf("router: unknown pool %q for frontend %q", poolName, name)
	}
	b, err := balancer.New(algorithm)
	if err != nil {
		return fmt.Errorf("router: frontend %q: %w", name, err)
	}
	r.frontends[name] = &Frontend{Name: name, Pool: pool, Balancer: b}
	return nil
}

func (r *Router) frontend(name string) (*Frontend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.frontends[name]
	if !ok {
		return nil, fmt.Errorf("router: unknown frontend %q", name)
	}
	return f, nil
}

// Select delegates directly to frontendName's Balancer over servers,
// performing no health filtering of its own: spec.md §4.C's router does
// not filter by health before calling the algorithm, matching
// original_source/src/backend/router.rs's select, which calls
// algorithm.select(&backend.servers, client_addr) on the pool's
// unfiltered server list. Callers that want health-aware selection
// must pre-filter servers themselves (GetServers + health.FilterHealthy)
// before calling Select; internal/listener does exactly that.
func (r *Router) Select(frontendName string, servers []balancer.ServerInfo, clientAddr net.Addr) (net.Addr, error) {
	f, err := r.frontend(frontendName)
	if err != nil {
		return nil, err
	}

	addr := f.Balancer.Select(servers, clientAddr)
	if addr == nil {
		return nil, fmt.Errorf("router: frontend %q has no routable backend", frontendName)
	}
	return addr, nil
}

// OnConnect records a new connection to addr against frontendName's
// Balancer (used by LeastConnections; a no-op for stateless algorithms).
func (r *Router) OnConnect(frontendName string, addr net.Addr) {
	if f, err := r.frontend(frontendName); err == nil {
		f.Balancer.OnConnect(addr)
	}
	r.health.IncrActiveConnections(addr, 1)
}

// OnDisconnect is the OnConnect counterpart, called when a proxied
// connection ends.
func (r *Router) OnDisconnect(frontendName string, addr net.Addr) {
	if f, err := r.frontend(frontendName); err == nil {
		f.Balancer.OnDisconnect(addr)
	}
	r.health.IncrActiveConnections(addr, -1)
}

// GetServers returns the full (unfiltered) server list for a pool, used
// by the frontend listeners before they filter it by health.
func (r *Router) GetServers(poolName string) ([]balancer.ServerInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pools[poolName]
	if !ok {
		return nil, fmt.Errorf("router: unknown pool %q", poolName)
	}
	return p.Servers, nil
}

// ConnectionCount reports frontendName's Balancer's view of addr's
// active connection count (meaningful only for LeastConnections).
func (r *Router) ConnectionCount(frontendName string, addr net.Addr) (uint32, error) {
	f, err := r.frontend(frontendName)
	if err != nil {
		return 0, err
	}
	return f.Balancer.ConnectionCount(addr), nil
}
