package spout

import (
	"github.com/pkg/errors"
	"github.com/protocol-laboratory/sideline-spout-go/constant"
	"github.com/protocol-laboratory/sideline-spout-go/consumer"
	"github.com/protocol-laboratory/sideline-spout-go/filter"
	"github.com/protocol-laboratory/sideline-spout-go/log"
	"github.com/protocol-laboratory/sideline-spout-go/model"
	"github.com/protocol-laboratory/sideline-spout-go/persistence"
)

type Config struct {
	Id model.VirtualSpoutIdentifier
	// ConsumerId keys the persisted progress, defaults to Id
	ConsumerId         string
	StartingState      model.ConsumerState
	EndingState        model.ConsumerState
	Consumer           consumer.Consumer
	PersistenceManager persistence.PersistenceManager
	FilterChain        *filter.Chain
	RetryManager       RetryManager
	Logger             log.Logger
	MaxInFlight        int
}

func (c *Config) Validate() error {
	if c.Id == "" {
		return errors.Wrap(ErrInvalidConfig, "virtual spout id is required")
	}
	if c.Consumer == nil {
		return errors.Wrapf(ErrInvalidConfig, "virtual spout %s has no consumer", c.Id)
	}
	if c.PersistenceManager == nil {
		return errors.Wrapf(ErrInvalidConfig, "virtual spout %s has no persistence manager", c.Id)
	}
	if c.MaxInFlight < 0 {
		return errors.Wrapf(ErrInvalidConfig, "virtual spout %s max in flight is negative: %d", c.Id, c.MaxInFlight)
	}
	if c.ConsumerId == "" {
		c.ConsumerId = c.Id.String()
	}
	if c.MaxInFlight == 0 {
		c.MaxInFlight = constant.DefaultMaxInFlight
	}
	if c.FilterChain == nil {
		c.FilterChain = filter.NewChain()
	}
	if c.RetryManager == nil {
		c.RetryManager = NewDefaultRetryManager(RetryConfig{})
	}
	if c.Logger == nil {
		c.Logger = log.DefaultLogger()
	}
	return nil
}
