package health

import (
	"net"
	"testing"
	"time"
)

func testAddr(t *testing.T, s string) net.Addr {
	t.Helper()
	a, err := net.ResolveTCPAddr("tcp", s)
	if err != nil {
		t.Fatalf("resolve %q: %v", s, err)
	}
	return a
}

func TestNewServerPermissiveDefault(t *testing.T) {
	// Invariant: unregistered servers are treated as healthy and routable.
	s := NewState(DefaultConfig())
	a := testAddr(t, "127.0.0.1:9001")

	if !s.IsHealthy(a) {
		t.Error("unregistered server should default to healthy")
	}
	if !s.Routable(a) {
		t.Error("unregistered server should default to routable")
	}
}

func TestUnhealthyThresholdTransition(t *testing.T) {
	s := NewState(Config{UnhealthyThreshold: 3, HealthyThreshold: 2, Cooldown: time.Minute})
	a := testAddr(t, "127.0.0.1:9001")

	s.RecordFailure(a)
	if !s.IsHealthy(a) {
		t.Fatal("should still be healthy after 1 failure")
	}
	s.RecordFailure(a)
	if !s.IsHealthy(a) {
		t.Fatal("should still be healthy after 2 failures")
	}
	s.RecordFailure(a)
	if s.IsHealthy(a) {
		t.Fatal("should be unhealthy after 3 consecutive failures")
	}
}

func TestHealthyThresholdTransition(t *testing.T) {
	s := NewState(Config{UnhealthyThreshold: 1, HealthyThreshold: 2, Cooldown: 0})
	a := testAddr(t, "127.0.0.1:9001")

	s.RecordFailure(a)
	if s.IsHealthy(a) {
		t.Fatal("should be unhealthy after 1 failure")
	}

	s.RecordSuccess(a)
	if s.IsHealthy(a) {
		t.Fatal("should still be unhealthy after 1 success")
	}
	s.RecordSuccess(a)
	if !s.IsHealthy(a) {
		t.Fatal("should be healthy after 2 consecutive successes")
	}
}

func TestFailureStreakResetsOnSuccess(t *testing.T) {
	s := NewState(Config{UnhealthyThreshold: 3, HealthyThreshold: 2, Cooldown: 0})
	a := testAddr(t, "127.0.0.1:9001")

	s.RecordFailure(a)
	s.RecordFailure(a)
	s.RecordSuccess(a)
	s.RecordFailure(a)
	s.RecordFailure(a)
	if !s.IsHealthy(a) {
		t.Fatal("interleaved success should have reset the failure streak, still healthy")
	}
}

func TestCooldownGatesRoutability(t *testing.T) {
	// E5: U=2, H=2, D=100ms. 2 failures -> unhealthy and not routable even
	// though IsHealthy would flip back quickly; wait out the cooldown, then
	// 2 successes restore routability.
	s := NewState(Config{UnhealthyThreshold: 2, HealthyThreshold: 2, Cooldown: 100 * time.Millisecond})
	a := testAddr(t, "127.0.0.1:9001")

	s.RecordFailure(a)
	s.RecordFailure(a)
	if s.IsHealthy(a) {
		t.Fatal("expected unhealthy after 2 consecutive failures")
	}
	if s.Routable(a) {
		t.Fatal("unhealthy server must not be routable")
	}

	time.Sleep(150 * time.Millisecond)

	s.RecordSuccess(a)
	s.RecordSuccess(a)
	if !s.IsHealthy(a) {
		t.Fatal("expected healthy after 2 consecutive successes")
	}
	if !s.Routable(a) {
		t.Fatal("expected routable once healthy again past cooldown")
	}
}

func TestMarkUnhealthyAndReset(t *testing.T) {
	s := NewState(DefaultConfig())
	a := testAddr(t, "127.0.0.1:9001")

	s.MarkUnhealthy(a)
	if s.IsHealthy(a) {
		t.Fatal("MarkUnhealthy should force unhealthy")
	}

	s.ResetServer(a)
	if !s.IsHealthy(a) {
		t.Fatal("ResetServer should force healthy")
	}
	snap := s.Get(a)
	if snap.ConsecutiveFailures != 0 || snap.ConsecutiveSuccesses != 0 || snap.UnhealthySince != 0 {
		t.Errorf("ResetServer should zero all counters, got %+v", snap)
	}
}

func TestFilterHealthyPreservesOrder(t *testing.T) {
	s := NewState(Config{UnhealthyThreshold: 1, HealthyThreshold: 1, Cooldown: time.Minute})
	a1 := testAddr(t, "127.0.0.1:9001")
	a2 := testAddr(t, "127.0.0.1:9002")
	a3 := testAddr(t, "127.0.0.1:9003")

	s.MarkUnhealthy(a2)

	got := s.FilterHealthy([]net.Addr{a1, a2, a3})
	if len(got) != 2 || got[0].String() != a1.String() || got[1].String() != a3.String() {
		t.Errorf("expected [a1,a3] in order, got %v", got)
	}
}

func TestIncrActiveConnectionsClampsAtZero(t *testing.T) {
	s := NewState(DefaultConfig())
	a := testAddr(t, "127.0.0.1:9001")

	s.IncrActiveConnections(a, -5)
	if got := s.Get(a).ActiveConnections; got != 0 {
		t.Errorf("expected clamp at 0, got %d", got)
	}

	s.IncrActiveConnections(a, 1)
	s.IncrActiveConnections(a, 1)
	s.IncrActiveConnections(a, -1)
	if got := s.Get(a).ActiveConnections; got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
}
