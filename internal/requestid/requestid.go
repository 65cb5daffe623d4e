// Package requestid generates short, process-unique request identifiers.
// Grounded on original_source/src/util/request_id.rs's
// generate_short_request_id (a monotonic AtomicU64 counter formatted as
// 16 lowercase hex digits), translated to Go's sync/atomic.
package requestid

import (
	"fmt"
	"sync/atomic"
)

// Generator produces req-XXXXXXXXXXXXXXXX identifiers from a monotonic
// counter. The zero value is ready to use.
type Generator struct {
	counter uint64
}

// Next returns the next request ID, formatted as "req-" followed by 16
// lowercase hex digits.
func (g *Generator) Next() string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("req-%016x", n)
}
