package listener

import (
	"net"

	"github.com/jeffgicharu/load-balancer/internal/balancer"
	"github.com/jeffgicharu/load-balancer/internal/health"
	"github.com/jeffgicharu/load-balancer/internal/router"
)

// selectHealthy pre-filters backendName's server list to the subset hs
// considers routable, then delegates to rt.Select. Grounded on spec.md
// §4.C's resolution of the router's health-filtering ambiguity: the
// router never filters internally, so the frontend listener is the
// caller that pre-filters servers before selection. hs may be nil (no
// health awareness configured), in which case the full server list is
// offered unfiltered.
func selectHealthy(rt router.Provider, hs *health.State, backendName, frontendName string, clientAddr net.Addr) (net.Addr, error) {
	servers, err := rt.GetServers(backendName)
	if err != nil {
		return nil, err
	}

	if hs != nil {
		addrs := make([]net.Addr, len(servers))
		for i, s := range servers {
			addrs[i] = s.Address
		}
		servers = filterRoutable(servers, hs.FilterHealthy(addrs))
	}

	return rt.Select(frontendName, servers, clientAddr)
}

// filterRoutable narrows servers to those whose address appears in
// routable, preserving servers' order and weights.
func filterRoutable(servers []balancer.ServerInfo, routable []net.Addr) []balancer.ServerInfo {
	if len(routable) == len(servers) {
		return servers
	}
	allowed := make(map[string]bool, len(routable))
	for _, a := range routable {
		allowed[a.String()] = true
	}
	out := make([]balancer.ServerInfo, 0, len(routable))
	for _, s := range servers {
		if allowed[s.Address.String()] {
			out = append(out, s)
		}
	}
	return out
}
