package persistence

import (
	"context"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/protocol-laboratory/sideline-spout-go/constant"
	"github.com/protocol-laboratory/sideline-spout-go/model"
	"github.com/sirupsen/logrus"
	"sort"
	"strings"
	"sync"
	"time"
)

const backendRedis = "redis"

// RedisPersistenceManager keeps each namespace in one redis hash:
// {prefix}consumer and {prefix}sideline, field = id, value = encoded state.
type RedisPersistenceManager struct {
	config *Config
	mutex  sync.RWMutex
	client *redis.Client
}

func NewRedisPersistenceManager(config *Config) *RedisPersistenceManager {
	return &RedisPersistenceManager{config: config}
}

func (r *RedisPersistenceManager) consumerHash() string {
	return r.config.KeyPrefix + strings.TrimSuffix(constant.ConsumerKeyPrefix, "/")
}

func (r *RedisPersistenceManager) sidelineHash() string {
	return r.config.KeyPrefix + strings.TrimSuffix(constant.SidelineKeyPrefix, "/")
}

func (r *RedisPersistenceManager) Open() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.client != nil {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     r.config.RedisConfig.Addr,
		Password: r.config.RedisConfig.Password,
		DB:       r.config.RedisConfig.DB,
	})
	if err := client.Ping(context.TODO()).Err(); err != nil {
		logrus.Errorf("ping redis failed. addr: %s, err: %s", r.config.RedisConfig.Addr, err)
		_ = client.Close()
		return errors.Wrapf(err, "ping redis %s", r.config.RedisConfig.Addr)
	}
	r.client = client
	logrus.Infof("redis persistence opened. addr: %s", r.config.RedisConfig.Addr)
	return nil
}

func (r *RedisPersistenceManager) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	if err != nil {
		return errors.Wrap(err, "close redis")
	}
	return nil
}

func (r *RedisPersistenceManager) put(op, hash, field string, state model.ConsumerState) (err error) {
	startAt := time.Now()
	defer func() { observe(backendRedis, op, startAt, err) }()
	data, err := EncodeState(r.config.Encoding, state)
	if err != nil {
		return err
	}
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if r.client == nil {
		return ErrNotOpen
	}
	if err = r.client.HSet(context.TODO(), hash, field, data).Err(); err != nil {
		logrus.Errorf("redis hset failed. hash: %s, field: %s, err: %s", hash, field, err)
		return errors.Wrapf(err, "redis hset %s %s", hash, field)
	}
	return nil
}

func (r *RedisPersistenceManager) get(op, hash, field string) (state model.ConsumerState, exist bool, err error) {
	startAt := time.Now()
	defer func() { observe(backendRedis, op, startAt, err) }()
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if r.client == nil {
		return model.ConsumerState{}, false, ErrNotOpen
	}
	data, err := r.client.HGet(context.TODO(), hash, field).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.ConsumerState{}, false, nil
		}
		return model.ConsumerState{}, false, errors.Wrapf(err, "redis hget %s %s", hash, field)
	}
	state, err = DecodeState(data)
	if err != nil {
		return model.ConsumerState{}, false, errors.Wrapf(err, "decode %s %s", hash, field)
	}
	return state, true, nil
}

func (r *RedisPersistenceManager) PersistConsumerState(consumerId string, state model.ConsumerState) error {
	return r.put(opPersistConsumer, r.consumerHash(), consumerId, state)
}

func (r *RedisPersistenceManager) RetrieveConsumerState(consumerId string) (model.ConsumerState, bool, error) {
	return r.get(opRetrieveConsumer, r.consumerHash(), consumerId)
}

func (r *RedisPersistenceManager) PersistSidelineRequestState(id model.SidelineIdentifier, state model.ConsumerState) error {
	return r.put(opPersistSideline, r.sidelineHash(), string(id), state)
}

func (r *RedisPersistenceManager) RetrieveSidelineRequestState(id model.SidelineIdentifier) (model.ConsumerState, bool, error) {
	return r.get(opRetrieveSideline, r.sidelineHash(), string(id))
}

func (r *RedisPersistenceManager) ListSidelineRequests() (ids []model.SidelineIdentifier, err error) {
	startAt := time.Now()
	defer func() { observe(backendRedis, opListSideline, startAt, err) }()
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if r.client == nil {
		return nil, ErrNotOpen
	}
	fields, err := r.client.HKeys(context.TODO(), r.sidelineHash()).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "redis hkeys %s", r.sidelineHash())
	}
	sort.Strings(fields)
	for _, field := range fields {
		ids = append(ids, model.SidelineIdentifier(field))
	}
	return ids, nil
}
