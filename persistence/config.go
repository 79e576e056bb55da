package persistence

import (
	"github.com/pkg/errors"
	"github.com/protocol-laboratory/sideline-spout-go/constant"
)

type Type string

const (
	TypeMemory Type = "memory"
	TypePebble Type = "pebble"
	TypeBadger Type = "badger"
	TypeRedis  Type = "redis"
	TypePulsar Type = "pulsar"
)

type Config struct {
	Type Type
	// KeyPrefix namespaces every key written by this manager
	KeyPrefix string
	// Encoding of persisted values, default json
	Encoding Encoding

	PebbleConfig PebbleConfig
	BadgerConfig BadgerConfig
	RedisConfig  RedisConfig
	PulsarConfig PulsarConfig
}

type PebbleConfig struct {
	Dir string
	// NoSync skips fsync on every write
	NoSync bool
}

type BadgerConfig struct {
	Dir string
	// InMemory keeps everything in memory, data is gone after Close
	InMemory bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PulsarConfig struct {
	Host     string
	HttpPort int
	TcpPort  int
	// Tenant Namespace Topic locate the compacted state topic
	Tenant    string
	Namespace string
	Topic     string
	// AutoCreateTopic if true, create state topic automatically
	AutoCreateTopic bool
	// ReplayTimeoutMs bounds each read while rebuilding state on open
	ReplayTimeoutMs int
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.Wrap(ErrInvalidConfig, "config is nil")
	}
	if c.Encoding == "" {
		c.Encoding = EncodingJSON
	}
	if c.Encoding != EncodingJSON && c.Encoding != EncodingBinary {
		return errors.Wrapf(ErrInvalidConfig, "unexpect encoding: %s", c.Encoding)
	}
	switch c.Type {
	case TypeMemory:
	case TypePebble:
		if c.PebbleConfig.Dir == "" {
			return errors.Wrap(ErrInvalidConfig, "pebble dir is empty")
		}
	case TypeBadger:
		if c.BadgerConfig.Dir == "" && !c.BadgerConfig.InMemory {
			return errors.Wrap(ErrInvalidConfig, "badger dir is empty")
		}
	case TypeRedis:
		if c.RedisConfig.Addr == "" {
			return errors.Wrap(ErrInvalidConfig, "redis addr is empty")
		}
	case TypePulsar:
		if c.PulsarConfig.Host == "" || c.PulsarConfig.TcpPort == 0 || c.PulsarConfig.HttpPort == 0 {
			return errors.Wrap(ErrInvalidConfig, "pulsar host and ports are required")
		}
		if c.PulsarConfig.Tenant == "" || c.PulsarConfig.Namespace == "" || c.PulsarConfig.Topic == "" {
			return errors.Wrap(ErrInvalidConfig, "pulsar tenant, namespace and topic are required")
		}
		if c.PulsarConfig.ReplayTimeoutMs == 0 {
			c.PulsarConfig.ReplayTimeoutMs = constant.DefaultReplayTimeoutMs
		}
	default:
		return errors.Wrapf(ErrInvalidConfig, "unexpect persistence type: %v", c.Type)
	}
	return nil
}
