package router

import (
	"net"
	"sync/atomic"

	"github.com/jeffgicharu/load-balancer/internal/balancer"
)

// Provider is the subset of Router's surface a frontend listener needs.
// *Router satisfies it directly; Dynamic satisfies it by forwarding to
// whichever *Router was last swapped in, letting a config hot-reload
// replace the whole routing table without rebinding any listener
// socket. Select takes servers explicitly rather than resolving them
// internally, so a caller can pre-filter the pool's server list (e.g.
// to the health-routable subset) before a selection is made.
type Provider interface {
	GetServers(poolName string) ([]balancer.ServerInfo, error)
	Select(frontendName string, servers []balancer.ServerInfo, clientAddr net.Addr) (net.Addr, error)
	OnConnect(frontendName string, addr net.Addr)
	OnDisconnect(frontendName string, addr net.Addr)
}

// Dynamic holds a swappable *Router behind an atomic pointer so readers
// (the listeners, on every accepted connection) never block behind a
// reload's router-construction work.
type Dynamic struct {
	current atomic.Pointer[Router]
}

// NewDynamic wraps an initial Router for atomic hot-swap.
func NewDynamic(initial *Router) *Dynamic {
	d := &Dynamic{}
	d.current.Store(initial)
	return d
}

// Swap installs a new Router, taking effect for every Select/OnConnect/
// OnDisconnect call that starts after this returns.
func (d *Dynamic) Swap(next *Router) {
	d.current.Store(next)
}

func (d *Dynamic) GetServers(poolName string) ([]balancer.ServerInfo, error) {
	return d.current.Load().GetServers(poolName)
}

func (d *Dynamic) Select(frontendName string, servers []balancer.ServerInfo, clientAddr net.Addr) (net.Addr, error) {
	return d.current.Load().Select(frontendName, servers, clientAddr)
}

func (d *Dynamic) OnConnect(frontendName string, addr net.Addr) {
	d.current.Load().OnConnect(frontendName, addr)
}

func (d *Dynamic) OnDisconnect(frontendName string, addr net.Addr) {
	d.current.Load().OnDisconnect(frontendName, addr)
}
