package consumer

import (
	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/pkg/errors"
	"github.com/protocol-laboratory/sideline-spout-go/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

type mockAcker struct {
	closed bool
	acked  []pulsar.MessageID
	ackErr error
}

func (m *mockAcker) AckIDCumulative(id pulsar.MessageID) error {
	if m.ackErr != nil {
		return m.ackErr
	}
	m.acked = append(m.acked, id)
	return nil
}

func (m *mockAcker) Close() {
	m.closed = true
}

func newTestPulsarConsumer(partitions ...int32) (*PulsarConsumer, map[int32]*mockAcker) {
	p := NewPulsarConsumer(PulsarConfig{Tenant: "public", Namespace: "default", Topic: "events"})
	ackers := make(map[int32]*mockAcker)
	for _, partition := range partitions {
		acker := &mockAcker{}
		ackers[partition] = acker
		p.partitions[partition] = &partitionConsumer{
			partitionedTopic: "events",
			channel:          make(chan pulsar.ConsumerMessage, 16),
			consumer:         acker,
		}
	}
	p.rebuildOrder()
	return p, ackers
}

func TestPulsarConsumerDefaults(t *testing.T) {
	p := NewPulsarConsumer(PulsarConfig{})
	assert.NotEmpty(t, p.config.SubscriptionName)
	assert.Greater(t, p.config.ReceiverQueueSize, 0)
	assert.Greater(t, p.config.LatestMsgReadTimeoutMs, 0)
}

func TestPulsarConsumerPollDoesNotBlock(t *testing.T) {
	p, _ := newTestPulsarConsumer(0, 1, 2)

	start := time.Now()
	record, err := p.Poll()
	require.NoError(t, err)
	assert.Nil(t, record)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestPulsarConsumerPollClosedChannelIsFatal(t *testing.T) {
	p, _ := newTestPulsarConsumer(0)
	close(p.partitions[0].channel)

	_, err := p.Poll()
	assert.Error(t, err)
}

func TestPulsarConsumerUnsubscribe(t *testing.T) {
	p, ackers := newTestPulsarConsumer(0, 1)

	assert.True(t, p.Unsubscribe(1))
	assert.True(t, ackers[1].closed)
	assert.False(t, p.Unsubscribe(1))
	assert.Equal(t, []int32{0}, p.order)
}

func send(p *PulsarConsumer, partition int32, entries ...int64) {
	for _, entry := range entries {
		p.partitions[partition].channel <- pulsar.ConsumerMessage{
			Message: &MockMessage{MessageId: MockMessageID{Ledger: 1, Entry: entry, Partition: partition}, MessageKey: "k"},
		}
	}
}

func offsetOf(t *testing.T, entry int64) int64 {
	offset, err := ConvertMsgId(MockMessageID{Ledger: 1, Entry: entry})
	require.NoError(t, err)
	return offset
}

func TestPulsarConsumerAcksOnlyCommittedMessages(t *testing.T) {
	p, ackers := newTestPulsarConsumer(0)
	send(p, 0, 1, 2, 3, 4, 5)
	for i := 0; i < 5; i++ {
		record, err := p.Poll()
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, "k", record.Key)
	}
	assert.Empty(t, ackers[0].acked)

	committed := model.NewConsumerStateBuilder().WithPartition(0, offsetOf(t, 3)).Build()
	require.NoError(t, p.Commit(committed))
	require.Len(t, ackers[0].acked, 1)
	assert.Equal(t, int64(3), ackers[0].acked[0].EntryID())
	assert.Len(t, p.partitions[0].pending, 2)

	// nothing new below the committed state
	require.NoError(t, p.Commit(committed))
	assert.Len(t, ackers[0].acked, 1)
}

func TestPulsarConsumerFailedCommitRetries(t *testing.T) {
	p, ackers := newTestPulsarConsumer(0)
	send(p, 0, 1, 2)
	for i := 0; i < 2; i++ {
		_, err := p.Poll()
		require.NoError(t, err)
	}
	committed := model.NewConsumerStateBuilder().WithPartition(0, offsetOf(t, 2)).Build()

	ackers[0].ackErr = errors.New("broker unavailable")
	require.NoError(t, p.Commit(committed))
	assert.Len(t, p.partitions[0].pending, 2)

	ackers[0].ackErr = nil
	require.NoError(t, p.Commit(committed))
	require.Len(t, ackers[0].acked, 1)
	assert.Equal(t, int64(2), ackers[0].acked[0].EntryID())
	assert.Empty(t, p.partitions[0].pending)
}

func TestPulsarConsumerSkipsResumedMessages(t *testing.T) {
	p, ackers := newTestPulsarConsumer(0)
	p.partitions[0].resumeOffset, p.partitions[0].hasResume = offsetOf(t, 2), true
	send(p, 0, 1, 2, 3)

	record, err := p.Poll()
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, offsetOf(t, 3), record.Offset)

	require.NoError(t, p.Commit(model.NewConsumerStateBuilder().WithPartition(0, offsetOf(t, 2)).Build()))
	require.Len(t, ackers[0].acked, 1)
	assert.Equal(t, int64(2), ackers[0].acked[0].EntryID())
}
