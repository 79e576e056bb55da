package persistence

import (
	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	"github.com/protocol-laboratory/sideline-spout-go/constant"
	"github.com/protocol-laboratory/sideline-spout-go/model"
	"github.com/sirupsen/logrus"
	"sync"
	"time"
)

const backendBadger = "badger"

// BadgerPersistenceManager stores both namespaces in one badger database.
//
// Key format:
//   - consumer state: {prefix}consumer/{consumerId}
//   - sideline request state: {prefix}sideline/{sidelineId}
type BadgerPersistenceManager struct {
	config *Config
	mutex  sync.RWMutex
	db     *badger.DB
}

func NewBadgerPersistenceManager(config *Config) *BadgerPersistenceManager {
	return &BadgerPersistenceManager{config: config}
}

func (b *BadgerPersistenceManager) Open() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.db != nil {
		return nil
	}
	opts := badger.DefaultOptions(b.config.BadgerConfig.Dir).WithLogger(nil)
	if b.config.BadgerConfig.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		logrus.Errorf("open badger failed. dir: %s, err: %s", b.config.BadgerConfig.Dir, err)
		return errors.Wrapf(err, "open badger %s", b.config.BadgerConfig.Dir)
	}
	b.db = db
	logrus.Infof("badger persistence opened. dir: %s, in memory: %t", b.config.BadgerConfig.Dir, b.config.BadgerConfig.InMemory)
	return nil
}

func (b *BadgerPersistenceManager) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	if err != nil {
		return errors.Wrap(err, "close badger")
	}
	return nil
}

func (b *BadgerPersistenceManager) put(op, key string, state model.ConsumerState) (err error) {
	startAt := time.Now()
	defer func() { observe(backendBadger, op, startAt, err) }()
	data, err := EncodeState(b.config.Encoding, state)
	if err != nil {
		return err
	}
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	if b.db == nil {
		return ErrNotOpen
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		logrus.Errorf("badger set failed. key: %s, err: %s", key, err)
		return errors.Wrapf(err, "badger set %s", key)
	}
	return nil
}

func (b *BadgerPersistenceManager) get(op, key string) (state model.ConsumerState, exist bool, err error) {
	startAt := time.Now()
	defer func() { observe(backendBadger, op, startAt, err) }()
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	if b.db == nil {
		return model.ConsumerState{}, false, ErrNotOpen
	}
	err = b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, err := DecodeState(val)
			if err != nil {
				return err
			}
			state = decoded
			exist = true
			return nil
		})
	})
	if err != nil {
		return model.ConsumerState{}, false, errors.Wrapf(err, "badger get %s", key)
	}
	return state, exist, nil
}

func (b *BadgerPersistenceManager) PersistConsumerState(consumerId string, state model.ConsumerState) error {
	return b.put(opPersistConsumer, consumerKey(b.config.KeyPrefix, consumerId), state)
}

func (b *BadgerPersistenceManager) RetrieveConsumerState(consumerId string) (model.ConsumerState, bool, error) {
	return b.get(opRetrieveConsumer, consumerKey(b.config.KeyPrefix, consumerId))
}

func (b *BadgerPersistenceManager) PersistSidelineRequestState(id model.SidelineIdentifier, state model.ConsumerState) error {
	return b.put(opPersistSideline, sidelineKey(b.config.KeyPrefix, id), state)
}

func (b *BadgerPersistenceManager) RetrieveSidelineRequestState(id model.SidelineIdentifier) (model.ConsumerState, bool, error) {
	return b.get(opRetrieveSideline, sidelineKey(b.config.KeyPrefix, id))
}

func (b *BadgerPersistenceManager) ListSidelineRequests() (ids []model.SidelineIdentifier, err error) {
	startAt := time.Now()
	defer func() { observe(backendBadger, opListSideline, startAt, err) }()
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	if b.db == nil {
		return nil, ErrNotOpen
	}
	prefix := []byte(b.config.KeyPrefix + constant.SidelineKeyPrefix)
	err = b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			ids = append(ids, model.SidelineIdentifier(key[len(prefix):]))
		}
		return nil
	})
	return ids, err
}
