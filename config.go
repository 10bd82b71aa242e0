package forge

import "runtime"

// Config holds global configuration for the runtime.
var Config config = config{
	workers:         0, // resolved lazily to the available parallelism
	scheduleRetries: 1000,
}

type config struct {
	workers         int
	scheduleRetries int
}

// SetWorkers fixes the width of the runner's worker pool. Zero restores the
// default of the available parallelism.
func (c *config) SetWorkers(workers int) {
	c.workers = workers
}

// Workers returns the effective worker pool width.
func (c *config) Workers() int {
	if c.workers > 0 {
		return c.workers
	}
	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	return workers
}

// SetScheduleRetries bounds how many times a runner re-runs system updates
// while waiting for the world's version to stabilize.
func (c *config) SetScheduleRetries(retries int) {
	c.scheduleRetries = retries
}

// ScheduleRetries returns the stability bound.
func (c *config) ScheduleRetries() int {
	return c.scheduleRetries
}
