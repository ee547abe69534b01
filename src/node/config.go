package node

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Default configuration values.
const (
	DefaultQueueCapacity = 512
	DefaultWaitDepth     = 128
	DefaultWaitRetries   = 16
	DefaultPingInterval  = 1000 * time.Millisecond
)

// Config contains the runtime knobs of a Node.
type Config struct {
	// QueueCapacity bounds the event queue. Producers block when it is full.
	QueueCapacity int

	// WaitDepth bounds the number of parked Wait events. Overflow drops the
	// oldest waiting event and surfaces an EventDropped notification.
	WaitDepth int

	// WaitRetries bounds how many times one event may return Wait before it
	// is dropped.
	WaitRetries int

	// PingInterval is the period of the peer-liveness ping.
	PingInterval time.Duration

	// Logger ...
	Logger *logrus.Entry
}

// NewConfig ...
func NewConfig(queueCapacity, waitDepth, waitRetries int, pingInterval time.Duration, logger *logrus.Entry) *Config {
	return &Config{
		QueueCapacity: queueCapacity,
		WaitDepth:     waitDepth,
		WaitRetries:   waitRetries,
		PingInterval:  pingInterval,
		Logger:        logger,
	}
}

// DefaultConfig ...
func DefaultConfig(logger *logrus.Entry) *Config {
	return NewConfig(
		DefaultQueueCapacity,
		DefaultWaitDepth,
		DefaultWaitRetries,
		DefaultPingInterval,
		logger,
	)
}
