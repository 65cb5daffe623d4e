package balancer

import (
	"net"

	"github.com/cespare/xxhash/v2"
)

// IpHash hashes the client IP (port discarded) with xxhash, a stable
// non-cryptographic 64-bit hash, and indexes into the server list modulo
// its length. The same client IP on the same pool always yields the same
// address while the pool is unchanged, including across different client
// ports.
//
// xxhash is already a dependency of the pack (pulled in by
// zalando-skipper for its consistent-hashing filters); reused here rather
// than hand-rolling a hash function.
type IpHash struct{}

// NewIpHash returns an IpHash balancer. It carries no internal state.
func NewIpHash() *IpHash {
	return &IpHash{}
}

func (h *IpHash) Select(servers []ServerInfo, clientAddr net.Addr) net.Addr {
	n := len(servers)
	if n == 0 {
		return nil
	}
	if clientAddr == nil {
		return servers[0].Address
	}

	sum := xxhash.Sum64String(hostOf(clientAddr))
	return servers[sum%uint64(n)].Address
}

func (h *IpHash) OnConnect(net.Addr)             {}
func (h *IpHash) OnDisconnect(net.Addr)          {}
func (h *IpHash) ConnectionCount(net.Addr) uint32 { return 0 }
