package proxy

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jeffgicharu/load-balancer/internal/metrics"
)

// rawHTTPBackend accepts one connection, reads one request line via
// bufio, and replies with a fixed response, exercising ServeHTTP's
// raw-connection forward path end to end.
func rawHTTPBackend(t *testing.T, respond func(req *http.Request, w *bufio.Writer)) net.Addr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		br := bufio.NewReader(conn)
		req, err := http.ReadRequest(br)
		if err != nil {
			return
		}
		bw := bufio.NewWriter(conn)
		respond(req, bw)
		bw.Flush()
	}()
	return ln.Addr()
}

func TestServeHTTPForwardsAndInjectsHeaders(t *testing.T) {
	var capturedPath string
	var capturedXFF string
	backendAddr := rawHTTPBackend(t, func(req *http.Request, w *bufio.Writer) {
		capturedPath = req.URL.Path
		capturedXFF = req.Header.Get("X-Forwarded-For")
		w.WriteString("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok")
	})

	backendTCPAddr, _ := net.ResolveTCPAddr("tcp", backendAddr.String())
	clientAddr, _ := net.ResolveTCPAddr("tcp", "192.168.1.50:4444")

	req := httptest.NewRequest("GET", "http://example.com/status", nil)
	rec := httptest.NewRecorder()

	hctx := HTTPContext{
		ClientAddr:   clientAddr,
		BackendAddr:  backendTCPAddr,
		FrontendName: "web",
		BackendName:  "app",
		RequestID:    "req-0000000000000001",
	}
	cfg := HTTPConfig{
		ConnectTimeout:  time.Second,
		ResponseHeaders: map[string]string{"X-Pool": "$backend_name"},
	}

	ServeHTTP(rec, req, hctx, cfg, metrics.New())

	if capturedPath != "/status" {
		t.Errorf("expected origin-form path /status, got %q", capturedPath)
	}
	if capturedXFF != "192.168.1.50" {
		t.Errorf("expected X-Forwarded-For to be client IP, got %q", capturedXFF)
	}
	if rec.Code != 200 {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("X-Served-By"); got != "app:"+backendTCPAddr.String() {
		t.Errorf("unexpected X-Served-By: %q", got)
	}
	if got := rec.Header().Get("X-Pool"); got != "app" {
		t.Errorf("expected substituted $backend_name, got %q", got)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("expected body 'ok', got %q", rec.Body.String())
	}
}

func TestServeHTTPReturns502OnConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr()
	ln.Close() // nothing is listening now

	clientAddr, _ := net.ResolveTCPAddr("tcp", "10.0.0.1:1234")
	req := httptest.NewRequest("GET", "http://example.com/", nil)
	rec := httptest.NewRecorder()

	hctx := HTTPContext{ClientAddr: clientAddr, BackendAddr: addr, FrontendName: "web", BackendName: "app"}
	cfg := HTTPConfig{ConnectTimeout: time.Second}

	ServeHTTP(rec, req, hctx, cfg, metrics.New())

	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
}

func TestSubstituteReplacesKnownTokensOnly(t *testing.T) {
	clientAddr, _ := net.ResolveTCPAddr("tcp", "1.2.3.4:5555")
	backendAddr, _ := net.ResolveTCPAddr("tcp", "10.0.0.9:9090")
	hctx := HTTPContext{BackendAddr: backendAddr, BackendName: "app"}

	got := substitute("ip=$client_ip port=$client_port pool=$backend_name addr=$backend_addr lit=$unknown", "1.2.3.4", "5555", hctx)
	want := "ip=1.2.3.4 port=5555 pool=app addr=10.0.0.9:9090 lit=$unknown"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
