package consumer

import (
	"fmt"
	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/protocol-laboratory/pulsar-admin-go/padmin"
	"github.com/protocol-laboratory/sideline-spout-go/constant"
	"github.com/protocol-laboratory/sideline-spout-go/metrics"
	"github.com/protocol-laboratory/sideline-spout-go/model"
	"github.com/protocol-laboratory/sideline-spout-go/utils"
	"github.com/sirupsen/logrus"
	"sort"
	"time"
)

type PulsarConfig struct {
	Host     string
	HttpPort int
	TcpPort  int

	Tenant    string
	Namespace string
	Topic     string
	// SubscriptionName default is a random uuid, one subscription per virtual spout
	SubscriptionName  string
	ReceiverQueueSize int
	// ContinuousOffset use message index as offset, requires broker entry metadata
	ContinuousOffset       bool
	LatestMsgReadTimeoutMs int
}

// messageAcker is the part of pulsar.Consumer a partition reader needs.
type messageAcker interface {
	AckIDCumulative(pulsar.MessageID) error
	Close()
}

type pendingMessage struct {
	offset int64
	id     pulsar.MessageID
}

type partitionConsumer struct {
	partitionedTopic string
	channel          chan pulsar.ConsumerMessage
	consumer         messageAcker
	resumeOffset     int64
	hasResume        bool
	// polled but not yet committed, ascending offsets
	pending []pendingMessage
}

// PulsarConsumer reads every partition of a partitioned pulsar topic through
// one failover subscription per partition. The subscription cursor only moves
// on Commit, so a restart with the same SubscriptionName redelivers
// everything past the persisted state.
type PulsarConsumer struct {
	config     PulsarConfig
	client     pulsar.Client
	admin      *padmin.PulsarAdmin
	partitions map[int32]*partitionConsumer
	order      []int32
	next       int
}

func NewPulsarConsumer(config PulsarConfig) *PulsarConsumer {
	if config.SubscriptionName == "" {
		config.SubscriptionName = uuid.New().String()
	}
	if config.ReceiverQueueSize == 0 {
		config.ReceiverQueueSize = constant.DefaultReceiverQueueSize
	}
	if config.LatestMsgReadTimeoutMs == 0 {
		config.LatestMsgReadTimeoutMs = constant.DefaultLatestMsgReadTimeoutMs
	}
	return &PulsarConsumer{
		config:     config,
		partitions: make(map[int32]*partitionConsumer),
	}
}

func (p *PulsarConsumer) fullTopic() string {
	return utils.FullTopic(p.config.Tenant, p.config.Namespace, p.config.Topic)
}

func (p *PulsarConsumer) Open(state model.ConsumerState) error {
	var err error
	pulsarUrl := fmt.Sprintf("pulsar://%s:%d", p.config.Host, p.config.TcpPort)
	p.client, err = pulsar.NewClient(pulsar.ClientOptions{URL: pulsarUrl})
	if err != nil {
		logrus.Errorf("create pulsar client failed: %v", err)
		return errors.Wrapf(err, "create pulsar client %s", pulsarUrl)
	}
	p.admin, err = padmin.NewPulsarAdmin(padmin.Config{
		Host: p.config.Host,
		Port: p.config.HttpPort,
	})
	if err != nil {
		p.client.Close()
		return errors.Wrap(err, "create pulsar admin")
	}
	topics, err := p.client.TopicPartitions(p.fullTopic())
	if err != nil {
		p.client.Close()
		return errors.Wrapf(err, "get partitions of %s", p.fullTopic())
	}
	for i := range topics {
		partition := int32(i)
		partitionedTopic := utils.PartitionedTopic(p.fullTopic(), i)
		pc, err := p.subscribe(partitionedTopic)
		if err != nil {
			p.closeAll()
			return err
		}
		pc.resumeOffset, pc.hasResume = state.Offset(partition)
		p.partitions[partition] = pc
	}
	p.rebuildOrder()
	logrus.Infof("pulsar consumer opened. topic: %s, partitions: %d, subscription: %s",
		p.fullTopic(), len(p.partitions), p.config.SubscriptionName)
	return nil
}

func (p *PulsarConsumer) subscribe(partitionedTopic string) (*partitionConsumer, error) {
	channel := make(chan pulsar.ConsumerMessage, p.config.ReceiverQueueSize)
	options := pulsar.ConsumerOptions{
		Topic:                       partitionedTopic,
		Name:                        p.config.SubscriptionName,
		SubscriptionName:            p.config.SubscriptionName,
		Type:                        pulsar.Failover,
		SubscriptionInitialPosition: pulsar.SubscriptionPositionEarliest,
		MessageChannel:              channel,
		ReceiverQueueSize:           p.config.ReceiverQueueSize,
	}
	consumer, err := p.client.Subscribe(options)
	if err != nil {
		logrus.Warningf("subscribe consumer failed, topic: %s, err: %s", partitionedTopic, err)
		return nil, errors.Wrapf(err, "subscribe %s", partitionedTopic)
	}
	logrus.Infof("create consumer success, topic: %s, subscription name: %s", partitionedTopic, p.config.SubscriptionName)
	return &partitionConsumer{
		partitionedTopic: partitionedTopic,
		channel:          channel,
		consumer:         consumer,
	}, nil
}

func (p *PulsarConsumer) rebuildOrder() {
	p.order = p.order[:0]
	for partition := range p.partitions {
		p.order = append(p.order, partition)
	}
	sort.Slice(p.order, func(i, j int) bool { return p.order[i] < p.order[j] })
	p.next = 0
}

func (p *PulsarConsumer) Poll() (*Record, error) {
	for i := 0; i < len(p.order); i++ {
		partition := p.order[(p.next+i)%len(p.order)]
		pc := p.partitions[partition]
		record, err := p.pollPartition(partition, pc)
		if err != nil {
			return nil, err
		}
		if record != nil {
			p.next = (p.next + i + 1) % len(p.order)
			return record, nil
		}
	}
	return nil, nil
}

// pollPartition drains already-processed messages and returns the first new
// one, without waiting.
func (p *PulsarConsumer) pollPartition(partition int32, pc *partitionConsumer) (*Record, error) {
	for {
		var message pulsar.ConsumerMessage
		var ok bool
		select {
		case message, ok = <-pc.channel:
			if !ok {
				return nil, errors.Errorf("message channel of %s closed", pc.partitionedTopic)
			}
		default:
			return nil, nil
		}
		offset, err := convOffset(message.Message, p.config.ContinuousOffset)
		if err != nil {
			return nil, errors.Wrapf(err, "convert offset of %s", pc.partitionedTopic)
		}
		pc.pending = append(pc.pending, pendingMessage{offset: offset, id: message.Message.ID()})
		if pc.hasResume && offset <= pc.resumeOffset {
			continue
		}
		metrics.PulsarReceiveCount.WithLabelValues(pc.partitionedTopic).Inc()
		metrics.PulsarReceiveBytes.WithLabelValues(pc.partitionedTopic).Add(float64(utils.MessageSize(message.Message)))
		return &Record{
			Topic:      p.config.Topic,
			Partition:  partition,
			Offset:     offset,
			Key:        message.Message.Key(),
			Payload:    message.Message.Payload(),
			Properties: message.Message.Properties(),
			Timestamp:  message.Message.PublishTime(),
		}, nil
	}
}

func (p *PulsarConsumer) Unsubscribe(partition int32) bool {
	pc, exist := p.partitions[partition]
	if !exist {
		return false
	}
	pc.consumer.Close()
	delete(p.partitions, partition)
	p.rebuildOrder()
	logrus.Infof("unsubscribe partition success, topic: %s", pc.partitionedTopic)
	return true
}

// Commit acknowledges to pulsar every polled message at or below state.
// Failed acks stay pending and are retried by the next Commit.
func (p *PulsarConsumer) Commit(state model.ConsumerState) error {
	for partition, pc := range p.partitions {
		offset, ok := state.Offset(partition)
		if !ok {
			continue
		}
		committed := sort.Search(len(pc.pending), func(i int) bool {
			return pc.pending[i].offset > offset
		})
		if committed == 0 {
			continue
		}
		if err := pc.consumer.AckIDCumulative(pc.pending[committed-1].id); err != nil {
			metrics.PulsarAckFailCount.WithLabelValues(pc.partitionedTopic).Inc()
			logrus.Errorf("ack topic: %s up to offset %d failed: %s", pc.partitionedTopic, offset, err)
			continue
		}
		pc.pending = pc.pending[committed:]
	}
	return nil
}

func (p *PulsarConsumer) EndOffsets() (map[int32]int64, error) {
	offsets := make(map[int32]int64, len(p.partitions))
	timeout := time.Duration(p.config.LatestMsgReadTimeoutMs) * time.Millisecond
	for partition, pc := range p.partitions {
		message, err := utils.ReadLastMessage(p.client, p.admin, pc.partitionedTopic, timeout)
		if err != nil {
			return nil, err
		}
		if message == nil {
			continue
		}
		offset, err := convOffset(message, p.config.ContinuousOffset)
		if err != nil {
			return nil, err
		}
		offsets[partition] = offset
	}
	return offsets, nil
}

func (p *PulsarConsumer) closeAll() {
	for partition, pc := range p.partitions {
		pc.consumer.Close()
		delete(p.partitions, partition)
	}
	p.order = p.order[:0]
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
}

func (p *PulsarConsumer) Close() error {
	p.closeAll()
	logrus.Infof("pulsar consumer closed. topic: %s", p.fullTopic())
	return nil
}
