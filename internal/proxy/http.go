package proxy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jeffgicharu/load-balancer/internal/metrics"
)

// HTTPConfig carries the per-frontend header-injection rules and
// backend dial timeout named in spec.md §3's FrontendSpec http options.
type HTTPConfig struct {
	ConnectTimeout  time.Duration
	RequestHeaders  map[string]string
	ResponseHeaders map[string]string
}

// HTTPContext identifies the frontend/backend pairing and request for
// logging, metrics, and variable substitution.
type HTTPContext struct {
	ClientAddr   net.Addr
	BackendAddr  net.Addr
	FrontendName string
	BackendName  string
	RequestID    string
}

// ServeHTTP implements spec.md §4.F: rewrite headers, rewrite the
// request line to origin-form, dial the backend fresh (no pooling),
// forward the request, stream the response back unchanged except for
// injected headers, and record exactly one metrics observation.
//
// Grounded on internal/proxy/backend.go's ReverseProxy Director/
// ModifyResponse header manipulation, generalized from
// httputil.ReverseProxy's pooled-transport model to a one-shot raw
// connection per spec.md's "no pooling required" wire semantics —
// closer to original_source's explicit connect/handshake/send sequence
// than to the teacher's Go standard-library proxy.
func ServeHTTP(w http.ResponseWriter, r *http.Request, hctx HTTPContext, cfg HTTPConfig, m *metrics.Metrics) {
	start := time.Now()
	clientIP, clientPort := splitHostPort(hctx.ClientAddr)

	rewriteRequestHeaders(r, clientIP, clientPort, hctx, cfg)

	// Origin-form rewrite: http.Request.Write uses r.URL.RequestURI(),
	// which already omits scheme/authority as long as URL.Opaque is
	// unset. Host is left untouched to preserve virtual hosting.
	r.URL.Scheme = ""
	r.URL.Host = ""
	r.URL.Opaque = ""

	status, respHeaders, body, err := forward(r, hctx.BackendAddr.String(), cfg.ConnectTimeout)
	if err != nil {
		writeBadGateway(w, err)
		recordAndLog(m, hctx, r, http.StatusBadGateway, start)
		return
	}
	defer body.Close()

	for name, value := range cfg.ResponseHeaders {
		respHeaders.Set(name, substitute(value, clientIP, clientPort, hctx))
	}
	respHeaders.Set("X-Served-By", fmt.Sprintf("%s:%s", hctx.BackendName, hctx.BackendAddr.String()))

	dst := w.Header()
	for k, vs := range respHeaders {
		dst[k] = vs
	}
	w.WriteHeader(status)

	n, _ := io.Copy(w, body)
	if m != nil {
		m.RecordBytes(hctx.FrontendName, hctx.BackendName, metrics.DirectionOutbound, n)
	}

	recordAndLog(m, hctx, r, status, start)
}

func recordAndLog(m *metrics.Metrics, hctx HTTPContext, r *http.Request, status int, start time.Time) {
	if m == nil {
		return
	}
	m.RecordRequest(hctx.FrontendName, hctx.BackendName, r.Method, strconv.Itoa(status), time.Since(start).Seconds())
}

// forward dials the backend, writes the rewritten request, and parses
// its response. Connect and send failures are distinguished so the
// caller can produce spec.md's distinct 502 messages; Go's non-TLS
// HTTP/1.1 wire format has no separate handshake phase once the TCP
// connection is open, so original_source's connect/handshake/send
// trio collapses here into connect/send.
func forward(r *http.Request, backendAddr string, connectTimeout time.Duration) (int, http.Header, io.ReadCloser, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", backendAddr)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%w: %v", errConnect, err)
	}
	setNoDelay(conn)

	if err := r.Write(conn); err != nil {
		conn.Close()
		return 0, nil, nil, fmt.Errorf("%w: %v", errSend, err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), r)
	if err != nil {
		conn.Close()
		return 0, nil, nil, fmt.Errorf("%w: %v", errSend, err)
	}

	return resp.StatusCode, resp.Header, &connClosingBody{ReadCloser: resp.Body, conn: conn}, nil
}

// connClosingBody closes the underlying one-shot connection once the
// response body has been fully drained.
type connClosingBody struct {
	io.ReadCloser
	conn net.Conn
}

func (b *connClosingBody) Close() error {
	b.ReadCloser.Close()
	return b.conn.Close()
}

var (
	errConnect = fmt.Errorf("proxy: failed to connect to backend")
	errSend    = fmt.Errorf("proxy: failed to send request to backend")
)

func writeBadGateway(w http.ResponseWriter, err error) {
	w.WriteHeader(http.StatusBadGateway)
	reason := "Failed to connect to backend"
	if errors.Is(err, errSend) {
		reason = "Failed to send request to backend"
	}
	fmt.Fprintf(w, "%d: %s\n", http.StatusBadGateway, reason)
}

func rewriteRequestHeaders(r *http.Request, clientIP, clientPort string, hctx HTTPContext, cfg HTTPConfig) {
	r.Header.Set("X-Forwarded-For", clientIP)
	r.Header.Set("X-Real-IP", clientIP)
	for name, value := range cfg.RequestHeaders {
		r.Header.Set(name, substitute(value, clientIP, clientPort, hctx))
	}
}

// substitute implements spec.md §4.F's variable substitution: a
// first-match-wins literal replace over a fixed token set, textual,
// single-pass, non-recursive. Deliberately not a general template
// engine (spec.md §9).
func substitute(value, clientIP, clientPort string, hctx HTTPContext) string {
	replacer := strings.NewReplacer(
		"$client_ip", clientIP,
		"$client_port", clientPort,
		"$backend_name", hctx.BackendName,
		"$backend_addr", hctx.BackendAddr.String(),
	)
	return replacer.Replace(value)
}

func splitHostPort(addr net.Addr) (host, port string) {
	if addr == nil {
		return "", ""
	}
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String(), ""
	}
	return host, port
}
