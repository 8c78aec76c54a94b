// Package worker consumes tour progress events from Pub/Sub and records
// them for reporting.
package worker

import (
	"time"
)

// Config holds configuration for the progress event worker.
type Config struct {
	// ProjectID is the Google Cloud project hosting the subscription.
	ProjectID string

	// SubscriptionName is the Pub/Sub subscription to pull from.
	SubscriptionName string

	// MaxOutstandingMessages bounds in-flight messages.
	// Default: 10
	MaxOutstandingMessages int

	// MaxExtension is how long a message lease may be extended.
	// Default: 10 minutes
	MaxExtension time.Duration

	// StoreTimeout bounds each sink write.
	// Default: 5 seconds
	StoreTimeout time.Duration
}

// DefaultConfig returns the default worker configuration.
func DefaultConfig() Config {
	return Config{
		SubscriptionName:       "tour-progress-worker",
		MaxOutstandingMessages: 10,
		MaxExtension:           10 * time.Minute,
		StoreTimeout:           5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SubscriptionName == "" {
		c.SubscriptionName = d.SubscriptionName
	}
	if c.MaxOutstandingMessages <= 0 {
		c.MaxOutstandingMessages = d.MaxOutstandingMessages
	}
	if c.MaxExtension <= 0 {
		c.MaxExtension = d.MaxExtension
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = d.StoreTimeout
	}
	return c
}
