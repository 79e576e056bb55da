package persistence

import (
	"context"
	"fmt"
	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/pkg/errors"
	"github.com/protocol-laboratory/pulsar-admin-go/padmin"
	"github.com/protocol-laboratory/sideline-spout-go/constant"
	"github.com/protocol-laboratory/sideline-spout-go/metrics"
	"github.com/protocol-laboratory/sideline-spout-go/model"
	"github.com/protocol-laboratory/sideline-spout-go/utils"
	"github.com/sirupsen/logrus"
	"sort"
	"strings"
	"sync"
	"time"
)

const backendPulsar = "pulsar"

// PulsarPersistenceManager writes every state as a keyed message to a
// compacted topic and serves reads from an in-memory view. The view is
// rebuilt on Open by replaying the topic; an empty payload is a tombstone.
type PulsarPersistenceManager struct {
	config         *Config
	client         pulsar.Client
	admin          *padmin.PulsarAdmin
	producer       pulsar.Producer
	mutex          sync.RWMutex
	opened         bool
	consumerStates map[string]model.ConsumerState
	sidelineStates map[model.SidelineIdentifier]model.ConsumerState
}

func NewPulsarPersistenceManager(config *Config) *PulsarPersistenceManager {
	return &PulsarPersistenceManager{config: config}
}

func (p *PulsarPersistenceManager) stateTopic() string {
	c := p.config.PulsarConfig
	return utils.PartitionedTopic(utils.FullTopic(c.Tenant, c.Namespace, c.Topic), 0)
}

func (p *PulsarPersistenceManager) Open() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.opened {
		return nil
	}
	if p.consumerStates == nil {
		p.consumerStates = make(map[string]model.ConsumerState)
	}
	if p.sidelineStates == nil {
		p.sidelineStates = make(map[model.SidelineIdentifier]model.ConsumerState)
	}
	c := p.config.PulsarConfig
	var err error
	if p.client == nil {
		pulsarUrl := fmt.Sprintf("pulsar://%s:%d", c.Host, c.TcpPort)
		p.client, err = pulsar.NewClient(pulsar.ClientOptions{URL: pulsarUrl})
		if err != nil {
			return errors.Wrapf(err, "create pulsar client %s", pulsarUrl)
		}
	}
	if p.admin == nil {
		p.admin, err = padmin.NewPulsarAdmin(padmin.Config{
			Host: c.Host,
			Port: c.HttpPort,
		})
		if err != nil {
			return errors.Wrap(err, "create pulsar admin")
		}
	}
	if c.AutoCreateTopic {
		err = p.admin.PersistentTopics.CreatePartitioned(c.Tenant, c.Namespace, c.Topic, 1)
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			return errors.Wrapf(err, "create state topic %s", c.Topic)
		}
	}
	if err = p.replay(); err != nil {
		return err
	}
	if p.producer == nil {
		p.producer, err = p.client.CreateProducer(pulsar.ProducerOptions{
			Topic:                   p.stateTopic(),
			SendTimeout:             constant.DefaultProducerSendTimeout,
			MaxPendingMessages:      constant.DefaultMaxPendingMsg,
			DisableBlockIfQueueFull: true,
		})
		if err != nil {
			logrus.Errorf("create producer failed. topic: %s, err: %s", p.stateTopic(), err)
			return errors.Wrapf(err, "create producer %s", p.stateTopic())
		}
	}
	p.opened = true
	logrus.Infof("pulsar persistence opened. topic: %s, consumer states: %d, sideline states: %d",
		p.stateTopic(), len(p.consumerStates), len(p.sidelineStates))
	return nil
}

// replay reads the compacted topic from the earliest message. Caller holds the mutex.
func (p *PulsarPersistenceManager) replay() error {
	reader, err := p.client.CreateReader(pulsar.ReaderOptions{
		Topic:          p.stateTopic(),
		StartMessageID: pulsar.EarliestMessageID(),
		ReadCompacted:  true,
	})
	if err != nil {
		logrus.Errorf("create state reader failed. topic: %s, err: %s", p.stateTopic(), err)
		return errors.Wrapf(err, "create reader %s", p.stateTopic())
	}
	defer reader.Close()
	count := 0
	for reader.HasNext() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(p.config.PulsarConfig.ReplayTimeoutMs)*time.Millisecond)
		msg, err := reader.Next(ctx)
		cancel()
		if err != nil {
			logrus.Errorf("replay state topic failed. topic: %s, err: %s", p.stateTopic(), err)
			return errors.Wrapf(err, "replay %s", p.stateTopic())
		}
		p.applyRecord(msg.Key(), msg.Payload())
		count++
	}
	logrus.Infof("replay state topic finished. topic: %s, records: %d", p.stateTopic(), count)
	return nil
}

// applyRecord folds one topic record into the view. Caller holds the mutex.
func (p *PulsarPersistenceManager) applyRecord(key string, payload []byte) {
	consumerPrefix := p.config.KeyPrefix + constant.ConsumerKeyPrefix
	sidelinePrefix := p.config.KeyPrefix + constant.SidelineKeyPrefix
	var state model.ConsumerState
	if len(payload) != 0 {
		var err error
		state, err = DecodeState(payload)
		if err != nil {
			logrus.Errorf("decode state record failed. key: %s, err: %s", key, err)
			return
		}
	}
	switch {
	case strings.HasPrefix(key, consumerPrefix):
		id := strings.TrimPrefix(key, consumerPrefix)
		if len(payload) == 0 {
			delete(p.consumerStates, id)
			return
		}
		p.consumerStates[id] = state
	case strings.HasPrefix(key, sidelinePrefix):
		id := model.SidelineIdentifier(strings.TrimPrefix(key, sidelinePrefix))
		if len(payload) == 0 {
			delete(p.sidelineStates, id)
			return
		}
		p.sidelineStates[id] = state
	default:
		logrus.Warnf("skip state record with unknown key: %s", key)
	}
}

func (p *PulsarPersistenceManager) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.producer != nil {
		p.producer.Close()
		p.producer = nil
	}
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
	p.opened = false
	return nil
}

func (p *PulsarPersistenceManager) send(op, key string, state model.ConsumerState) (err error) {
	startAt := time.Now()
	defer func() { observe(backendPulsar, op, startAt, err) }()
	data, err := EncodeState(p.config.Encoding, state)
	if err != nil {
		return err
	}
	p.mutex.RLock()
	if !p.opened {
		p.mutex.RUnlock()
		return ErrNotOpen
	}
	producer := p.producer
	p.mutex.RUnlock()

	message := pulsar.ProducerMessage{}
	message.Payload = data
	message.Key = key
	_, err = producer.Send(context.TODO(), &message)
	metrics.PulsarSendLatency.Observe(float64(time.Since(startAt).Milliseconds()))
	if err != nil {
		metrics.PulsarSendFailCount.Inc()
		logrus.Errorf("persist state failed. key: %s, state: %s, err: %s", key, state, err)
		return errors.Wrapf(err, "send %s", key)
	}
	metrics.PulsarSendSuccessCount.Inc()
	p.mutex.Lock()
	p.applyRecord(key, data)
	p.mutex.Unlock()
	logrus.Debugf("persist state success. key: %s, state: %s", key, state)
	return nil
}

func (p *PulsarPersistenceManager) PersistConsumerState(consumerId string, state model.ConsumerState) error {
	return p.send(opPersistConsumer, consumerKey(p.config.KeyPrefix, consumerId), state)
}

func (p *PulsarPersistenceManager) RetrieveConsumerState(consumerId string) (model.ConsumerState, bool, error) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	if !p.opened {
		return model.ConsumerState{}, false, ErrNotOpen
	}
	state, exist := p.consumerStates[consumerId]
	return state, exist, nil
}

func (p *PulsarPersistenceManager) PersistSidelineRequestState(id model.SidelineIdentifier, state model.ConsumerState) error {
	return p.send(opPersistSideline, sidelineKey(p.config.KeyPrefix, id), state)
}

func (p *PulsarPersistenceManager) RetrieveSidelineRequestState(id model.SidelineIdentifier) (model.ConsumerState, bool, error) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	if !p.opened {
		return model.ConsumerState{}, false, ErrNotOpen
	}
	state, exist := p.sidelineStates[id]
	return state, exist, nil
}

func (p *PulsarPersistenceManager) ListSidelineRequests() ([]model.SidelineIdentifier, error) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	if !p.opened {
		return nil, ErrNotOpen
	}
	ids := make([]model.SidelineIdentifier, 0, len(p.sidelineStates))
	for id := range p.sidelineStates {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
