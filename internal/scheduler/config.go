package scheduler

import "time"

// Config controls sweep cadence and batch sizes.
type Config struct {
	RunInterval     time.Duration
	PendingOrderTTL time.Duration
	BatchSize       int
}

func DefaultConfig() Config {
	return Config{
		RunInterval:     time.Minute,
		PendingOrderTTL: 24 * time.Hour,
		BatchSize:       100,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.PendingOrderTTL <= 0 {
		c.PendingOrderTTL = defaults.PendingOrderTTL
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	return c
}

func ProvideConfig() Config {
	return DefaultConfig()
}
