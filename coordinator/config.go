package coordinator

import (
	"github.com/protocol-laboratory/sideline-spout-go/constant"
	"github.com/protocol-laboratory/sideline-spout-go/log"
	"github.com/protocol-laboratory/sideline-spout-go/spout"
	"time"
)

type Config struct {
	FlushIntervalSeconds int
	IdleSleep            time.Duration
	OutputBufferSize     int
	FlushRetryAttempts   int
	FlushRetryBackoff    time.Duration
	Logger               log.Logger
	// OnSpoutClosed runs on the spout's goroutine after it was closed and
	// removed from the coordinator.
	OnSpoutClosed func(s spout.DelegateSpout, completed bool)
}

func (c *Config) setDefaults() {
	if c.FlushIntervalSeconds <= 0 {
		c.FlushIntervalSeconds = constant.DefaultFlushIntervalSeconds
	}
	if c.IdleSleep <= 0 {
		c.IdleSleep = constant.DefaultIdleSleep
	}
	if c.OutputBufferSize <= 0 {
		c.OutputBufferSize = constant.DefaultOutputBufferSize
	}
	if c.FlushRetryAttempts <= 0 {
		c.FlushRetryAttempts = constant.DefaultFlushRetryAttempts
	}
	if c.FlushRetryBackoff <= 0 {
		c.FlushRetryBackoff = constant.DefaultFlushRetryBackoff
	}
	if c.Logger == nil {
		c.Logger = log.DefaultLogger()
	}
}
