package health

import (
	"context"
	"time"
)

// Pinger is anything that can report its own reachability, such as a
// store.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker pings a backing store. A ping slower than SlowThreshold is
// reported as degraded.
type StoreChecker struct {
	name          string
	target        Pinger
	SlowThreshold time.Duration
}

// NewStoreChecker returns a checker named name over target.
func NewStoreChecker(name string, target Pinger) *StoreChecker {
	return &StoreChecker{name: name, target: target, SlowThreshold: time.Second}
}

func (c *StoreChecker) Name() string { return c.name }

func (c *StoreChecker) Check(ctx context.Context) *Result {
	start := time.Now()
	err := c.target.Ping(ctx)
	elapsed := time.Since(start)

	var r *Result
	switch {
	case err != nil:
		r = Unhealthy("store unreachable").WithDetail("error", err.Error())
	case elapsed > c.SlowThreshold:
		r = Degraded("store responding slowly")
	default:
		r = Healthy("store reachable")
	}
	r.Latency = elapsed
	return r
}
