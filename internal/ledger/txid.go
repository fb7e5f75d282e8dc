package ledger

import (
	"fmt"
	"sync/atomic"
	"time"
)

// txIDGenerator issues transaction IDs that are unique for the process
// lifetime: a monotonically increasing counter combined with a coarse
// UTC timestamp. The format is human-readable but opaque to all callers;
// nothing in the system may parse it. It stands in for a
// consensus-assigned transaction ID in a real distributed ledger.
type txIDGenerator struct {
	counter atomic.Uint64
}

func (g *txIDGenerator) next(now time.Time) string {
	n := g.counter.Add(1)
	return fmt.Sprintf("tx_%08x_%s", n, now.UTC().Format("20060102150405"))
}
