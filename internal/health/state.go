// Package health tracks per-server health as a sharded, lock-free
// threshold state machine shared between the active checker (which
// records probe outcomes), the router (which tracks active connection
// counts), and the frontend listeners (which pre-filter servers before
// selection). The proxy engines do not report failures into it.
package health

import (
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Config parameterizes the unhealthy/healthy transition thresholds and the
// post-unhealthy cooldown window, exactly as spec.md §4.B describes.
type Config struct {
	UnhealthyThreshold int           // U: consecutive failures to go unhealthy
	HealthyThreshold   int           // H: consecutive successes to go healthy again
	Cooldown           time.Duration // D: minimum time unhealthy before eligible again
}

// DefaultConfig mirrors the teacher's circuit breaker defaults
// (internal/proxy/circuitbreaker.go's DefaultCircuitBreakerConfig),
// retuned to this state machine's two-state (healthy/unhealthy) shape.
func DefaultConfig() Config {
	return Config{
		UnhealthyThreshold: 3,
		HealthyThreshold:   2,
		Cooldown:           30 * time.Second,
	}
}

// serverHealth is the per-server record. Every field is an atomic so that
// readers never block behind writers and no lock is ever held across an
// I/O suspension point. healthy is read with acquire ordering and written
// with release ordering via the atomic.Bool load/store; the streak
// counters use acq-rel read-modify-write in recordSuccess/recordFailure.
type serverHealth struct {
	healthy              atomic.Bool
	consecutiveFailures  atomic.Int64
	consecutiveSuccesses atomic.Int64
	activeConnections    atomic.Int64 // relaxed, observational only
	unhealthySince       atomic.Int64 // unix seconds, 0 = healthy
	lastCheck            atomic.Int64 // unix seconds
}

func newServerHealth() *serverHealth {
	sh := &serverHealth{}
	sh.healthy.Store(true)
	return sh
}

// State is a concurrent map from address to serverHealth, sharded by the
// Go runtime's sync.Map implementation (no single mutex guards the whole
// table). Entries are created lazily on first registration or first
// signal and live for the process lifetime.
//
// Grounded on internal/proxy/circuitbreaker.go's threshold-and-timeout
// state machine (failures trip an open state, a timer gates recovery,
// successes close it again), generalized from the teacher's 3-state
// closed/open/half-open breaker to the 2-state healthy/unhealthy-with-
// cooldown machine spec.md requires, and de-coupled from its single
// sync.RWMutex per breaker into per-field atomics.
type State struct {
	servers sync.Map // net.Addr.String() -> *serverHealth
	cfg     Config
}

// NewState creates a health state tracker with the given thresholds.
func NewState(cfg Config) *State {
	return &State{cfg: cfg}
}

func (s *State) entry(addr net.Addr) *serverHealth {
	key := addr.String()
	v, _ := s.servers.LoadOrStore(key, newServerHealth())
	return v.(*serverHealth)
}

func (s *State) lookup(addr net.Addr) (*serverHealth, bool) {
	v, ok := s.servers.Load(addr.String())
	if !ok {
		return nil, false
	}
	return v.(*serverHealth), true
}

func now() int64 { return time.Now().Unix() }

// RecordSuccess resets the failure streak and advances the success streak;
// when unhealthy and the success streak reaches HealthyThreshold, the
// server transitions back to healthy and unhealthySince is cleared. The
// transition block is idempotent: two concurrent successes that both
// observe the threshold both just set healthy=true and
// consecutiveSuccesses=0, which is a safe no-op the second time.
func (s *State) RecordSuccess(addr net.Addr) {
	sh := s.entry(addr)
	sh.lastCheck.Store(now())
	sh.consecutiveFailures.Store(0)
	successes := sh.consecutiveSuccesses.Add(1)

	if !sh.healthy.Load() && successes >= int64(s.cfg.HealthyThreshold) {
		sh.healthy.Store(true)
		sh.unhealthySince.Store(0)
		sh.consecutiveSuccesses.Store(0)
	}
}

// RecordFailure resets the success streak and advances the failure streak;
// when healthy and the failure streak reaches UnhealthyThreshold, the
// server transitions to unhealthy and unhealthySince is stamped with the
// current time.
func (s *State) RecordFailure(addr net.Addr) {
	sh := s.entry(addr)
	sh.lastCheck.Store(now())
	sh.consecutiveSuccesses.Store(0)
	failures := sh.consecutiveFailures.Add(1)

	if sh.healthy.Load() && failures >= int64(s.cfg.UnhealthyThreshold) {
		sh.healthy.Store(false)
		sh.unhealthySince.Store(now())
		sh.consecutiveFailures.Store(0)
	}
}

// MarkUnhealthy forces a server unhealthy without going through the
// failure threshold.
func (s *State) MarkUnhealthy(addr net.Addr) {
	sh := s.entry(addr)
	sh.healthy.Store(false)
	sh.unhealthySince.Store(now())
	sh.consecutiveFailures.Store(0)
	sh.consecutiveSuccesses.Store(0)
}

// ResetServer forces a server healthy and zeroes all streak counters.
func (s *State) ResetServer(addr net.Addr) {
	sh := s.entry(addr)
	sh.healthy.Store(true)
	sh.unhealthySince.Store(0)
	sh.consecutiveFailures.Store(0)
	sh.consecutiveSuccesses.Store(0)
}

// Register ensures addr has an entry, defaulting to healthy. Used by the
// health checker at startup so every configured server shows up in
// introspection/metrics before the first probe completes.
func (s *State) Register(addr net.Addr) {
	s.entry(addr)
}

// IsHealthy reports whether addr is healthy. A server with no entry in
// the map is treated as healthy (permissive default: brand-new pools
// serve traffic before the first probe).
func (s *State) IsHealthy(addr net.Addr) bool {
	sh, ok := s.lookup(addr)
	if !ok {
		return true
	}
	return sh.healthy.Load()
}

// IsInCooldown reports whether addr is within its post-unhealthy cooldown
// window: unhealthySince != 0 and less than Cooldown has elapsed. A
// healthy server (unhealthySince == 0) is never in cooldown, and a server
// with no entry is never in cooldown.
func (s *State) IsInCooldown(addr net.Addr) bool {
	sh, ok := s.lookup(addr)
	if !ok {
		return false
	}
	since := sh.unhealthySince.Load()
	if since == 0 {
		return false
	}
	return time.Duration(now()-since)*time.Second < s.cfg.Cooldown
}

// Routable reports whether addr should be offered to a selection
// algorithm: healthy and not in cooldown.
func (s *State) Routable(addr net.Addr) bool {
	return s.IsHealthy(addr) && !s.IsInCooldown(addr)
}

// FilterHealthy returns the subset of addrs that are Routable, preserving
// order. Callers (the frontend listener) use this to pre-filter a pool's
// server list before handing it to a Balancer, per spec.md §9's deferral
// of health-aware selection to the caller.
func (s *State) FilterHealthy(addrs []net.Addr) []net.Addr {
	out := make([]net.Addr, 0, len(addrs))
	for _, a := range addrs {
		if s.Routable(a) {
			out = append(out, a)
		}
	}
	return out
}

// Snapshot is a point-in-time, lock-free read of one server's health
// record, used by metrics and introspection.
type Snapshot struct {
	Healthy              bool
	ConsecutiveFailures  int64
	ConsecutiveSuccesses int64
	ActiveConnections    int64
	UnhealthySince       int64
	LastCheck            int64
}

// Get returns a Snapshot for addr, or the zero-value permissive default
// (Healthy: true) if addr has never been registered.
func (s *State) Get(addr net.Addr) Snapshot {
	sh, ok := s.lookup(addr)
	if !ok {
		return Snapshot{Healthy: true}
	}
	return Snapshot{
		Healthy:              sh.healthy.Load(),
		ConsecutiveFailures:  sh.consecutiveFailures.Load(),
		ConsecutiveSuccesses: sh.consecutiveSuccesses.Load(),
		ActiveConnections:    sh.activeConnections.Load(),
		UnhealthySince:       sh.unhealthySince.Load(),
		LastCheck:            sh.lastCheck.Load(),
	}
}

// IncrActiveConnections adjusts the observational active-connection count
// for addr by delta (positive on connect, negative on disconnect), clamped
// so it never underflows below 0.
func (s *State) IncrActiveConnections(addr net.Addr, delta int64) {
	sh := s.entry(addr)
	for {
		cur := sh.activeConnections.Load()
		next := cur + delta
		if next < 0 {
			next = 0
		}
		if sh.activeConnections.CompareAndSwap(cur, next) {
			return
		}
	}
}
