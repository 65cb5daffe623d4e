// Package shutdown provides a process-wide broadcast signal, the Go
// idiomatic substitute for original_source/src/util/shutdown.rs's
// tokio::sync::broadcast-channel ShutdownSignal: a context.Context
// cancellation reaches every subscriber (accept loops, checker tickers,
// in-flight probes) without a dedicated fan-out channel, since every
// goroutine already selects on ctx.Done().
package shutdown

import "context"

// Broadcaster owns the root context whose cancellation is the shutdown
// signal, and the function that cancels it.
type Broadcaster struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Broadcaster derived from parent.
func New(parent context.Context) *Broadcaster {
	ctx, cancel := context.WithCancel(parent)
	return &Broadcaster{ctx: ctx, cancel: cancel}
}

// Done returns the channel that closes when shutdown is signaled —
// every subscriber selects on this alongside its own I/O.
func (b *Broadcaster) Done() <-chan struct{} {
	return b.ctx.Done()
}

// Context returns the shutdown-aware context itself, for callers that
// want to pass cancellation through to dial/read/write calls.
func (b *Broadcaster) Context() context.Context {
	return b.ctx
}

// Signal triggers shutdown; safe to call more than once and from any
// goroutine (e.g. a SIGINT handler).
func (b *Broadcaster) Signal() {
	b.cancel()
}
