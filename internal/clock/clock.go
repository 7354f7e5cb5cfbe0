package clock

import (
	"sync"
	"time"

	"github.com/ader1990/adpreplic/internal/model"
)

// Clock issues monotonic timestamps for update fan-out. Wall time can move
// backwards across NTP adjustments; the counter keeps issued timestamps
// strictly increasing within the process, and the DC id breaks ties between
// processes deterministically.
type Clock struct {
	mu      sync.Mutex
	dc      model.DCID
	lastNow int64
	counter uint64
}

// New creates a clock stamping timestamps with this DC's identity.
func New(dc model.DCID) *Clock {
	return &Clock{dc: dc}
}

// Now returns a timestamp strictly greater than any previously issued one.
func (c *Clock) Now() model.Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UnixNano()
	if now > c.lastNow {
		c.lastNow = now
		c.counter = 0
	} else {
		c.counter++
	}

	return model.Timestamp{
		WallNanos: c.lastNow,
		Counter:   c.counter,
		DC:        c.dc,
	}
}

// Observe folds a remotely generated timestamp into the clock so that
// locally issued timestamps never fall behind values already accepted.
func (c *Clock) Observe(ts model.Timestamp) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ts.WallNanos > c.lastNow {
		c.lastNow = ts.WallNanos
		c.counter = ts.Counter
	} else if ts.WallNanos == c.lastNow && ts.Counter > c.counter {
		c.counter = ts.Counter
	}
}
