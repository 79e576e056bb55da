package persistence

import (
	"github.com/pkg/errors"
	"github.com/protocol-laboratory/sideline-spout-go/constant"
	"github.com/protocol-laboratory/sideline-spout-go/metrics"
	"github.com/protocol-laboratory/sideline-spout-go/model"
	"time"
)

var (
	ErrNotOpen            = errors.New("persistence manager is not open")
	ErrInvalidConfig      = errors.New("invalid persistence config")
	ErrUnsupportedVersion = errors.New("unsupported state record version")
)

// PersistenceManager stores consumer progress keyed by consumer id and
// sideline request state keyed by SidelineIdentifier. The two namespaces are
// independent; no atomicity is offered across them.
//
// Retrieve methods report absence with a false second return value, never an
// error. Persist methods are last-write-wins and safe to retry.
type PersistenceManager interface {
	// Open acquires the backing storage. Reopening never discards entries.
	Open() error

	// Close releases resources. Durable backends keep their data; the memory
	// backend and an in-memory badger lose it.
	Close() error

	PersistConsumerState(consumerId string, state model.ConsumerState) error

	RetrieveConsumerState(consumerId string) (model.ConsumerState, bool, error)

	PersistSidelineRequestState(id model.SidelineIdentifier, state model.ConsumerState) error

	RetrieveSidelineRequestState(id model.SidelineIdentifier) (model.ConsumerState, bool, error)

	ListSidelineRequests() ([]model.SidelineIdentifier, error)
}

// New builds the backend selected by config.Type. The returned manager still
// has to be opened.
func New(config *Config) (PersistenceManager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	switch config.Type {
	case TypeMemory:
		return NewInMemoryPersistenceManager(), nil
	case TypePebble:
		return NewPebblePersistenceManager(config), nil
	case TypeBadger:
		return NewBadgerPersistenceManager(config), nil
	case TypeRedis:
		return NewRedisPersistenceManager(config), nil
	case TypePulsar:
		return NewPulsarPersistenceManager(config), nil
	}
	return nil, errors.Wrapf(ErrInvalidConfig, "unexpect persistence type: %v", config.Type)
}

func consumerKey(prefix, consumerId string) string {
	return prefix + constant.ConsumerKeyPrefix + consumerId
}

func sidelineKey(prefix string, id model.SidelineIdentifier) string {
	return prefix + constant.SidelineKeyPrefix + string(id)
}

func observe(backend, op string, startAt time.Time, err error) {
	cost := float64(time.Since(startAt).Milliseconds())
	metrics.PersistenceLatency.WithLabelValues(backend, op).Observe(cost)
	if err != nil {
		metrics.PersistenceFailCount.WithLabelValues(backend, op).Inc()
		return
	}
	metrics.PersistenceSuccessCount.WithLabelValues(backend, op).Inc()
}

const (
	opPersistConsumer  = "persist_consumer"
	opRetrieveConsumer = "retrieve_consumer"
	opPersistSideline  = "persist_sideline"
	opRetrieveSideline = "retrieve_sideline"
	opListSideline     = "list_sideline"
)
