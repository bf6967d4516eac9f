package dispatch

import "time"

// Config holds dispatch loop configuration.
type Config struct {
	// Interval is the pause before every cycle.
	Interval time.Duration
	// Backoff is the extra pause after a failed cycle.
	Backoff time.Duration
	// ImportantCapacity bounds the important lane.
	ImportantCapacity int
	// CommonCapacity bounds the common lane.
	CommonCapacity int
	// ImportantBatch caps important items executed per cycle.
	ImportantBatch int
	// CommonBatch caps common items executed per cycle.
	CommonBatch int
	// StopGrace bounds how long Stop waits for the loop to exit.
	StopGrace time.Duration
	// QueryTimeout bounds a single statement. Zero disables the limit.
	QueryTimeout time.Duration
}

// DefaultConfig returns the default dispatch configuration.
func DefaultConfig() Config {
	return Config{
		Interval:          1 * time.Second,
		Backoff:           5 * time.Second,
		ImportantCapacity: 10000,
		CommonCapacity:    5000,
		ImportantBatch:    200,
		CommonBatch:       100,
		StopGrace:         5 * time.Second,
		QueryTimeout:      30 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.Backoff <= 0 {
		c.Backoff = d.Backoff
	}
	if c.ImportantCapacity <= 0 {
		c.ImportantCapacity = d.ImportantCapacity
	}
	if c.CommonCapacity <= 0 {
		c.CommonCapacity = d.CommonCapacity
	}
	if c.ImportantBatch <= 0 {
		c.ImportantBatch = d.ImportantBatch
	}
	if c.CommonBatch <= 0 {
		c.CommonBatch = d.CommonBatch
	}
	if c.StopGrace <= 0 {
		c.StopGrace = d.StopGrace
	}
	if c.QueryTimeout < 0 {
		c.QueryTimeout = 0
	}
	return c
}
