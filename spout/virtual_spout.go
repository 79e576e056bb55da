package spout

import (
	"github.com/pkg/errors"
	"github.com/protocol-laboratory/sideline-spout-go/consumer"
	"github.com/protocol-laboratory/sideline-spout-go/filter"
	"github.com/protocol-laboratory/sideline-spout-go/log"
	"github.com/protocol-laboratory/sideline-spout-go/metrics"
	"github.com/protocol-laboratory/sideline-spout-go/model"
	"sync"
	"sync/atomic"
)

type Status int32

const (
	Created Status = iota
	Opened
	Closed
)

// VirtualSpout consumes a range of the source, from its starting state up to
// its ending state, and tracks which emitted messages were acknowledged.
type VirtualSpout struct {
	config *Config
	id     string
	logger log.Logger

	status        atomic.Int32
	stopRequested atomic.Bool

	// mutex guards everything below
	mutex      sync.Mutex
	trackers   map[int32]*partitionTracker
	inFlight   map[model.MessageId]*model.Message
	endOffsets map[int32]int64
}

func NewVirtualSpout(config Config) (*VirtualSpout, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &VirtualSpout{
		config:   &config,
		id:       config.Id.String(),
		logger:   config.Logger.VirtualSpoutID(config.Id.String()).ConsumerID(config.ConsumerId),
		trackers: make(map[int32]*partitionTracker),
		inFlight: make(map[model.MessageId]*model.Message),
	}, nil
}

func (v *VirtualSpout) Status() Status {
	return Status(v.status.Load())
}

// Open resumes from persisted progress where it is ahead of the starting
// state and subscribes the consumer.
func (v *VirtualSpout) Open() error {
	if v.Status() != Created {
		return errors.Wrapf(ErrInvalidState, "open virtual spout %s with status %d", v.id, v.Status())
	}
	persisted, exist, err := v.config.PersistenceManager.RetrieveConsumerState(v.config.ConsumerId)
	if err != nil {
		return errors.Wrapf(err, "retrieve consumer state of %s failed", v.config.ConsumerId)
	}
	builder := model.NewConsumerStateBuilder().WithPartitions(v.config.StartingState.Offsets())
	if exist {
		for _, partition := range persisted.Partitions() {
			offset, _ := persisted.Offset(partition)
			starting, ok := v.config.StartingState.Offset(partition)
			if !ok || offset > starting {
				builder.WithPartition(partition, offset)
			}
		}
	}
	resume := builder.Build()

	v.mutex.Lock()
	for _, partition := range resume.Partitions() {
		offset, _ := resume.Offset(partition)
		v.trackers[partition] = newPartitionTracker(offset)
	}
	v.mutex.Unlock()

	if err := v.config.Consumer.Open(resume); err != nil {
		return errors.Wrapf(err, "open consumer of virtual spout %s failed", v.id)
	}
	v.status.Store(int32(Opened))
	v.logger.Infof("virtual spout opened, starting: %s, resume: %s, ending: %s",
		v.config.StartingState, resume, v.config.EndingState)
	return nil
}

// Close is idempotent. Unacknowledged messages are forgotten; they will be
// consumed again from the last flushed state.
func (v *VirtualSpout) Close() error {
	previous := Status(v.status.Swap(int32(Closed)))
	if previous == Closed {
		return nil
	}
	v.mutex.Lock()
	inFlight := len(v.inFlight)
	v.inFlight = make(map[model.MessageId]*model.Message)
	v.mutex.Unlock()
	metrics.SpoutMaxLag.DeleteLabelValues(v.id)
	if previous == Created {
		return nil
	}
	v.logger.Infof("virtual spout closed with %d messages in flight", inFlight)
	if err := v.config.Consumer.Close(); err != nil {
		return errors.Wrapf(err, "close consumer of virtual spout %s failed", v.id)
	}
	return nil
}

func (v *VirtualSpout) NextTuple() (*model.Message, error) {
	if v.Status() != Opened {
		return nil, errors.Wrapf(ErrInvalidState, "next tuple of virtual spout %s with status %d", v.id, v.Status())
	}
	v.mutex.Lock()
	if id, ok := v.config.RetryManager.NextFailedMessageToRetry(); ok {
		if message, exist := v.inFlight[id]; exist {
			v.mutex.Unlock()
			metrics.SpoutRetryCount.WithLabelValues(v.id).Inc()
			return message, nil
		}
	}
	full := len(v.inFlight) >= v.config.MaxInFlight
	v.mutex.Unlock()
	if full {
		return nil, nil
	}

	record, err := v.config.Consumer.Poll()
	if err != nil {
		return nil, errors.Wrapf(err, "poll source of virtual spout %s failed", v.id)
	}
	if record == nil {
		return nil, nil
	}

	v.mutex.Lock()
	message, unsubscribe := v.accept(record)
	v.mutex.Unlock()
	if unsubscribe {
		v.config.Consumer.Unsubscribe(record.Partition)
		v.logger.Partition(record.Partition).Infof("partition reached ending offset at %d, unsubscribed", record.Offset)
	}
	return message, nil
}

// accept decides what to do with a polled record. It returns the message to
// emit, if any, and whether the record's partition is past the ending state.
func (v *VirtualSpout) accept(record *consumer.Record) (*model.Message, bool) {
	ending := v.config.EndingState
	tracker, exist := v.trackers[record.Partition]
	if !exist {
		if !ending.IsUnbounded() && !ending.Contains(record.Partition) {
			return nil, true
		}
		tracker = newPartitionTracker(record.Offset - 1)
		v.trackers[record.Partition] = tracker
	}
	if tracker.exhausted {
		return nil, false
	}
	if record.Offset <= tracker.lastSeen() {
		return nil, false
	}
	if !ending.IsUnbounded() {
		end, ok := ending.Offset(record.Partition)
		if !ok || record.Offset > end {
			tracker.exhausted = true
			return nil, true
		}
	}

	message := &model.Message{
		Id: model.MessageId{
			SourceId:  v.id,
			Partition: record.Partition,
			Offset:    record.Offset,
		},
		Topic:     record.Topic,
		Key:       record.Key,
		Payload:   record.Payload,
		Headers:   record.Properties,
		Timestamp: record.Timestamp,
	}
	tracker.track(record.Offset)
	if v.config.FilterChain.Filter(message) {
		tracker.finish(record.Offset)
		metrics.SpoutFilteredCount.WithLabelValues(v.id).Inc()
		return nil, false
	}
	v.inFlight[message.Id] = message
	metrics.SpoutEmitCount.WithLabelValues(v.id).Inc()
	return message, false
}

func (v *VirtualSpout) Ack(id model.MessageId) {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	if v.finish(id) {
		metrics.SpoutAckCount.WithLabelValues(v.id).Inc()
	}
}

// Fail schedules a retry. A message that ran out of retries is dropped and
// counts as acknowledged.
func (v *VirtualSpout) Fail(id model.MessageId) {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	if _, exist := v.inFlight[id]; !exist {
		return
	}
	// already waiting to be emitted again
	if v.config.RetryManager.Retrying(id) {
		return
	}
	metrics.SpoutFailCount.WithLabelValues(v.id).Inc()
	if v.config.RetryManager.RetryFurther(id) {
		v.config.RetryManager.Failed(id)
		return
	}
	v.logger.Partition(id.Partition).Warnf("message %s out of retries, dropped", id)
	v.finish(id)
}

func (v *VirtualSpout) finish(id model.MessageId) bool {
	if _, exist := v.inFlight[id]; !exist {
		return false
	}
	delete(v.inFlight, id)
	v.config.RetryManager.Acked(id)
	if tracker, ok := v.trackers[id.Partition]; ok {
		tracker.finish(id.Offset)
	}
	return true
}

func (v *VirtualSpout) VirtualSpoutId() model.VirtualSpoutIdentifier {
	return v.config.Id
}

func (v *VirtualSpout) ConsumerId() string {
	return v.config.ConsumerId
}

// FlushState persists the current state, commits it to the source and
// refreshes the lag of the unit.
func (v *VirtualSpout) FlushState() error {
	if v.Status() != Opened {
		return errors.Wrapf(ErrInvalidState, "flush virtual spout %s with status %d", v.id, v.Status())
	}
	state := v.CurrentState()
	if err := v.config.PersistenceManager.PersistConsumerState(v.config.ConsumerId, state); err != nil {
		return errors.Wrapf(err, "persist state of virtual spout %s failed", v.id)
	}
	if err := v.config.Consumer.Commit(state); err != nil {
		v.logger.Warnf("commit %s to source failed: %v", state, err)
	}
	endOffsets, err := v.config.Consumer.EndOffsets()
	if err != nil {
		v.logger.Debugf("read end offsets failed: %v", err)
		return nil
	}
	v.mutex.Lock()
	v.endOffsets = endOffsets
	v.mutex.Unlock()
	metrics.SpoutMaxLag.WithLabelValues(v.id).Set(v.MaxLag())
	return nil
}

func (v *VirtualSpout) RequestStop() {
	v.stopRequested.Store(true)
}

func (v *VirtualSpout) IsStopRequested() bool {
	return v.stopRequested.Load()
}

func (v *VirtualSpout) CurrentState() model.ConsumerState {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	ending := v.config.EndingState
	builder := model.NewConsumerStateBuilder()
	for partition, tracker := range v.trackers {
		end, ok := ending.Offset(partition)
		builder.WithPartition(partition, tracker.current(end, ok))
	}
	return builder.Build()
}

// ReadPosition is, per partition, the highest offset polled from the source,
// whether it was emitted, filtered or already acknowledged.
func (v *VirtualSpout) ReadPosition() model.ConsumerState {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	builder := model.NewConsumerStateBuilder()
	for partition, tracker := range v.trackers {
		builder.WithPartition(partition, tracker.lastSeen())
	}
	return builder.Build()
}

func (v *VirtualSpout) StartingState() model.ConsumerState {
	return v.config.StartingState
}

func (v *VirtualSpout) EndingState() model.ConsumerState {
	return v.config.EndingState
}

// IsCompleted reports whether every starting partition reached its ending
// offset. A partition without an ending offset has nothing to consume.
func (v *VirtualSpout) IsCompleted() bool {
	ending := v.config.EndingState
	if ending.IsUnbounded() {
		return false
	}
	current := v.CurrentState()
	for _, partition := range v.config.StartingState.Partitions() {
		end, ok := ending.Offset(partition)
		if !ok {
			continue
		}
		offset, ok := current.Offset(partition)
		if !ok || offset < end {
			return false
		}
	}
	return true
}

// MaxLag is based on the end offsets read during the last FlushState.
func (v *VirtualSpout) MaxLag() float64 {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	var maxLag int64
	for partition, end := range v.endOffsets {
		tracker, ok := v.trackers[partition]
		if !ok {
			continue
		}
		if lag := end - tracker.lastFinished; lag > maxLag {
			maxLag = lag
		}
	}
	return float64(maxLag)
}

func (v *VirtualSpout) NumberOfFiltersApplied() int {
	return v.config.FilterChain.Len()
}

func (v *VirtualSpout) FilterChain() *filter.Chain {
	return v.config.FilterChain
}

func (v *VirtualSpout) InFlight() int {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return len(v.inFlight)
}
