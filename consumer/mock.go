package consumer

import (
	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/protocol-laboratory/sideline-spout-go/model"
	"sync"
	"time"
)

type MockMessageID struct {
	Ledger    int64
	Entry     int64
	Partition int32
	Batch     int32
}

func (m MockMessageID) Serialize() []byte {
	return []byte("mock_message_id")
}

func (m MockMessageID) LedgerID() int64 {
	return m.Ledger
}

func (m MockMessageID) EntryID() int64 {
	return m.Entry
}

func (m MockMessageID) BatchIdx() int32 {
	return m.Batch
}

func (m MockMessageID) PartitionIdx() int32 {
	return m.Partition
}

func (m MockMessageID) BatchSize() int32 {
	return 0
}

func (m MockMessageID) String() string {
	return "mock_message_id"
}

// MockMessage is a pulsar.Message carrying a MockMessageID.
type MockMessage struct {
	MessageId  MockMessageID
	MessageKey string
	Value      []byte
	Props      map[string]string
	Published  time.Time
	Idx        *uint64
}

func (m *MockMessage) Topic() string {
	return ""
}

func (m *MockMessage) ProducerName() string {
	return "mock"
}

func (m *MockMessage) Properties() map[string]string {
	return m.Props
}

func (m *MockMessage) Payload() []byte {
	return m.Value
}

func (m *MockMessage) ID() pulsar.MessageID {
	return m.MessageId
}

func (m *MockMessage) PublishTime() time.Time {
	return m.Published
}

func (m *MockMessage) EventTime() time.Time {
	return time.Time{}
}

func (m *MockMessage) Key() string {
	return m.MessageKey
}

func (m *MockMessage) OrderingKey() string {
	return ""
}

func (m *MockMessage) RedeliveryCount() uint32 {
	return 0
}

func (m *MockMessage) IsReplicated() bool {
	return false
}

func (m *MockMessage) GetReplicatedFrom() string {
	return ""
}

func (m *MockMessage) GetSchemaValue(v interface{}) error {
	return nil
}

func (m *MockMessage) SchemaVersion() []byte {
	return nil
}

func (m *MockMessage) GetEncryptionContext() *pulsar.EncryptionContext {
	return nil
}

func (m *MockMessage) Index() *uint64 {
	return m.Idx
}

func (m *MockMessage) BrokerPublishTime() *time.Time {
	return nil
}

// MockConsumer is an in-memory Consumer for tests.
type MockConsumer struct {
	mutex        sync.Mutex
	queue        []*Record
	unsubscribed map[int32]bool

	PollErr      error
	EndErr       error
	CommitErr    error
	Commits      []model.ConsumerState
	End          map[int32]int64
	OpenedState  model.ConsumerState
	WasOpened    bool
	WasClosed    bool
	PollCount    int
	Unsubscribes []int32
}

func NewMockConsumer(records ...*Record) *MockConsumer {
	return &MockConsumer{
		queue:        records,
		unsubscribed: make(map[int32]bool),
	}
}

func (m *MockConsumer) AddRecords(records ...*Record) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.queue = append(m.queue, records...)
}

func (m *MockConsumer) SetPollErr(err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.PollErr = err
}

func (m *MockConsumer) Open(state model.ConsumerState) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.OpenedState = state
	m.WasOpened = true
	return nil
}

func (m *MockConsumer) Poll() (*Record, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.PollCount++
	if m.PollErr != nil {
		return nil, m.PollErr
	}
	for len(m.queue) > 0 {
		record := m.queue[0]
		m.queue = m.queue[1:]
		if m.unsubscribed[record.Partition] {
			continue
		}
		return record, nil
	}
	return nil, nil
}

func (m *MockConsumer) Unsubscribe(partition int32) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.unsubscribed[partition] {
		return false
	}
	m.unsubscribed[partition] = true
	m.Unsubscribes = append(m.Unsubscribes, partition)
	return true
}

func (m *MockConsumer) Commit(state model.ConsumerState) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.CommitErr != nil {
		return m.CommitErr
	}
	m.Commits = append(m.Commits, state)
	return nil
}

func (m *MockConsumer) LastCommit() (model.ConsumerState, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if len(m.Commits) == 0 {
		return model.ConsumerState{}, false
	}
	return m.Commits[len(m.Commits)-1], true
}

func (m *MockConsumer) EndOffsets() (map[int32]int64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.EndErr != nil {
		return nil, m.EndErr
	}
	return m.End, nil
}

func (m *MockConsumer) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.WasClosed = true
	return nil
}

func (m *MockConsumer) Closed() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.WasClosed
}

func (m *MockConsumer) Remaining() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.queue)
}
