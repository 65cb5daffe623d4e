// Package balancer implements the server-selection algorithms used by a
// backend pool: round robin, smooth weighted round robin, least
// connections, and IP hash.
package balancer

import (
	"fmt"
	"net"
)

// Algorithm names as they appear in configuration.
const (
	AlgorithmRoundRobin      = "round_robin"
	AlgorithmWeighted        = "weighted"
	AlgorithmLeastConnections = "least_connections"
	AlgorithmIPHash          = "ip_hash"
)

// ServerInfo is a single upstream endpoint. Weight must be >= 1; the
// router/config loader is responsible for rejecting zero-weight servers
// before a Balancer ever sees them.
type ServerInfo struct {
	Address net.Addr
	Weight  int
}

// Balancer selects one address from a server list. Implementations must
// return nil for an empty server list and must be safe for concurrent use.
type Balancer interface {
	// Select picks a server for the given client address. clientAddr is nil
	// when the caller has no client address available (e.g. during a TCP
	// health probe context) or when the protocol doesn't expose one.
	Select(servers []ServerInfo, clientAddr net.Addr) net.Addr

	// OnConnect records that a connection to addr was opened.
	OnConnect(addr net.Addr)

	// OnDisconnect records that a connection to addr was closed.
	OnDisconnect(addr net.Addr)

	// ConnectionCount reports the current connection count tracked for addr.
	// Algorithms that don't track counts (RoundRobin, Weighted, IpHash)
	// return 0.
	ConnectionCount(addr net.Addr) uint32
}

// New constructs a fresh Balancer instance for the named algorithm. Each
// call returns an independent instance: per spec.md's resolution of the
// "algorithm per pool" open question, every frontend that references a
// backend gets its own Balancer, bound at frontend-construction time,
// rather than one Balancer shared (and non-deterministically chosen)
// across frontends that reference the same pool.
func New(algorithm string) (Balancer, error) {
	switch algorithm {
	case AlgorithmRoundRobin:
		return NewRoundRobin(), nil
	case AlgorithmWeighted:
		return NewWeighted(), nil
	case AlgorithmLeastConnections:
		return NewLeastConnections(), nil
	case AlgorithmIPHash:
		return NewIpHash(), nil
	default:
		return nil, fmt.Errorf("balancer: unknown algorithm %q", algorithm)
	}
}

func addrKey(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}

// hostOf extracts the IP portion of an address string, discarding the
// port. Used by IpHash so that two client connections from the same IP on
// different ephemeral ports hash to the same server.
func hostOf(a net.Addr) string {
	host, _, err := net.SplitHostPort(a.String())
	if err != nil {
		return a.String()
	}
	return host
}
