package keepertest

import (
	"crypto/rand"
	"sync"
	"time"

	keeper "github.com/keeperd/keeper"
)

// NewAddress returns a random address to be used in tests.
func NewAddress() keeper.Address {
	addr := make(keeper.Address, keeper.AddressLength)
	if _, err := rand.Read(addr); err != nil {
		panic(err)
	}
	return addr
}

// NewCondition returns a random condition to be used in tests.
func NewCondition() keeper.Condition {
	data := make([]byte, 16)
	if _, err := rand.Read(data); err != nil {
		panic(err)
	}
	return keeper.NewCondition("test", "rand", data)
}

// Clock is a settable keeper.Clock implementation.
type Clock struct {
	mu  sync.Mutex
	now keeper.UnixTime
}

var _ keeper.Clock = (*Clock)(nil)

// NewClock returns a clock frozen at given moment.
func NewClock(t time.Time) *Clock {
	return &Clock{now: keeper.AsUnixTime(t)}
}

func (c *Clock) Now() keeper.UnixTime {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to given moment, which may be in the past.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = keeper.AsUnixTime(t)
}

// Advance moves the clock forward by given duration.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
