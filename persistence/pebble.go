package persistence

import (
	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
	"github.com/protocol-laboratory/sideline-spout-go/constant"
	"github.com/protocol-laboratory/sideline-spout-go/model"
	"github.com/sirupsen/logrus"
	"sync"
	"time"
)

const backendPebble = "pebble"

// PebblePersistenceManager stores both namespaces in one pebble database,
// separated by key prefix.
type PebblePersistenceManager struct {
	config *Config
	mutex  sync.RWMutex
	db     *pebble.DB
}

func NewPebblePersistenceManager(config *Config) *PebblePersistenceManager {
	return &PebblePersistenceManager{config: config}
}

func (p *PebblePersistenceManager) Open() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.db != nil {
		return nil
	}
	db, err := pebble.Open(p.config.PebbleConfig.Dir, &pebble.Options{})
	if err != nil {
		logrus.Errorf("open pebble failed. dir: %s, err: %s", p.config.PebbleConfig.Dir, err)
		return errors.Wrapf(err, "open pebble %s", p.config.PebbleConfig.Dir)
	}
	p.db = db
	logrus.Infof("pebble persistence opened. dir: %s", p.config.PebbleConfig.Dir)
	return nil
}

func (p *PebblePersistenceManager) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	if err != nil {
		return errors.Wrap(err, "close pebble")
	}
	return nil
}

func (p *PebblePersistenceManager) writeOptions() *pebble.WriteOptions {
	if p.config.PebbleConfig.NoSync {
		return pebble.NoSync
	}
	return pebble.Sync
}

func (p *PebblePersistenceManager) put(op, key string, state model.ConsumerState) (err error) {
	startAt := time.Now()
	defer func() { observe(backendPebble, op, startAt, err) }()
	data, err := EncodeState(p.config.Encoding, state)
	if err != nil {
		return err
	}
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	if p.db == nil {
		return ErrNotOpen
	}
	if err = p.db.Set([]byte(key), data, p.writeOptions()); err != nil {
		logrus.Errorf("pebble set failed. key: %s, err: %s", key, err)
		return errors.Wrapf(err, "pebble set %s", key)
	}
	return nil
}

func (p *PebblePersistenceManager) get(op, key string) (state model.ConsumerState, exist bool, err error) {
	startAt := time.Now()
	defer func() { observe(backendPebble, op, startAt, err) }()
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	if p.db == nil {
		return model.ConsumerState{}, false, ErrNotOpen
	}
	value, closer, err := p.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return model.ConsumerState{}, false, nil
		}
		return model.ConsumerState{}, false, errors.Wrapf(err, "pebble get %s", key)
	}
	defer closer.Close()
	state, err = DecodeState(value)
	if err != nil {
		return model.ConsumerState{}, false, errors.Wrapf(err, "decode %s", key)
	}
	return state, true, nil
}

func (p *PebblePersistenceManager) PersistConsumerState(consumerId string, state model.ConsumerState) error {
	return p.put(opPersistConsumer, consumerKey(p.config.KeyPrefix, consumerId), state)
}

func (p *PebblePersistenceManager) RetrieveConsumerState(consumerId string) (model.ConsumerState, bool, error) {
	return p.get(opRetrieveConsumer, consumerKey(p.config.KeyPrefix, consumerId))
}

func (p *PebblePersistenceManager) PersistSidelineRequestState(id model.SidelineIdentifier, state model.ConsumerState) error {
	return p.put(opPersistSideline, sidelineKey(p.config.KeyPrefix, id), state)
}

func (p *PebblePersistenceManager) RetrieveSidelineRequestState(id model.SidelineIdentifier) (model.ConsumerState, bool, error) {
	return p.get(opRetrieveSideline, sidelineKey(p.config.KeyPrefix, id))
}

func (p *PebblePersistenceManager) ListSidelineRequests() (ids []model.SidelineIdentifier, err error) {
	startAt := time.Now()
	defer func() { observe(backendPebble, opListSideline, startAt, err) }()
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	if p.db == nil {
		return nil, ErrNotOpen
	}
	prefix := []byte(p.config.KeyPrefix + constant.SidelineKeyPrefix)
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, errors.Wrap(err, "pebble new iter")
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		ids = append(ids, model.SidelineIdentifier(iter.Key()[len(prefix):]))
	}
	return ids, iter.Error()
}

// prefixUpperBound returns the smallest key greater than every key with the prefix.
func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
