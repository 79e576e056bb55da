package spout

import (
	"github.com/google/uuid"
	"github.com/protocol-laboratory/sideline-spout-go/model"
	"sync"
	"sync/atomic"
)

// MockDelegateSpout records the calls it receives and emits whatever was
// queued with Emit.
type MockDelegateSpout struct {
	id model.VirtualSpoutIdentifier

	WasOpenCalled     atomic.Bool
	WasCloseCalled    atomic.Bool
	FlushStateCalled  atomic.Bool
	StopRequested     atomic.Bool
	NextTupleAttempts atomic.Int64

	mutex         sync.Mutex
	emitQueue     []*model.Message
	errToReturn   error
	panicValue    interface{}
	flushErr      error
	completed     bool
	currentState  model.ConsumerState
	startingState model.ConsumerState
	endingState   model.ConsumerState
	acked         map[model.MessageId]struct{}
	failed        map[model.MessageId]struct{}
}

func NewMockDelegateSpout() *MockDelegateSpout {
	return NewMockDelegateSpoutWithId(model.VirtualSpoutIdentifier("MockDelegateSpout" + uuid.NewString()))
}

func NewMockDelegateSpoutWithId(id model.VirtualSpoutIdentifier) *MockDelegateSpout {
	return &MockDelegateSpout{
		id:            id,
		currentState:  model.EmptyState(),
		startingState: model.EmptyState(),
		endingState:   model.EmptyState(),
		acked:         make(map[model.MessageId]struct{}),
		failed:        make(map[model.MessageId]struct{}),
	}
}

func (m *MockDelegateSpout) Emit(messages ...*model.Message) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.emitQueue = append(m.emitQueue, messages...)
}

// SetError makes every following NextTuple fail with err.
func (m *MockDelegateSpout) SetError(err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.errToReturn = err
}

// SetPanic makes every following NextTuple panic with value.
func (m *MockDelegateSpout) SetPanic(value interface{}) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.panicValue = value
}

func (m *MockDelegateSpout) SetFlushError(err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.flushErr = err
}

func (m *MockDelegateSpout) SetCompleted(completed bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.completed = completed
}

func (m *MockDelegateSpout) SetCurrentState(state model.ConsumerState) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.currentState = state
}

func (m *MockDelegateSpout) SetBounds(starting, ending model.ConsumerState) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.startingState = starting
	m.endingState = ending
}

func (m *MockDelegateSpout) Open() error {
	m.WasOpenCalled.Store(true)
	return nil
}

func (m *MockDelegateSpout) Close() error {
	m.WasCloseCalled.Store(true)
	return nil
}

func (m *MockDelegateSpout) NextTuple() (*model.Message, error) {
	m.NextTupleAttempts.Add(1)
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.panicValue != nil {
		panic(m.panicValue)
	}
	if m.errToReturn != nil {
		return nil, m.errToReturn
	}
	if len(m.emitQueue) == 0 {
		return nil, nil
	}
	message := m.emitQueue[0]
	m.emitQueue = m.emitQueue[1:]
	return message, nil
}

func (m *MockDelegateSpout) Ack(id model.MessageId) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.acked[id] = struct{}{}
}

func (m *MockDelegateSpout) Fail(id model.MessageId) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.failed[id] = struct{}{}
}

func (m *MockDelegateSpout) AckedIds() []model.MessageId {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return idList(m.acked)
}

func (m *MockDelegateSpout) FailedIds() []model.MessageId {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return idList(m.failed)
}

func idList(set map[model.MessageId]struct{}) []model.MessageId {
	ids := make([]model.MessageId, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

func (m *MockDelegateSpout) VirtualSpoutId() model.VirtualSpoutIdentifier {
	return m.id
}

func (m *MockDelegateSpout) FlushState() error {
	m.FlushStateCalled.Store(true)
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.flushErr
}

func (m *MockDelegateSpout) RequestStop() {
	m.StopRequested.Store(true)
}

func (m *MockDelegateSpout) IsStopRequested() bool {
	return m.StopRequested.Load()
}

func (m *MockDelegateSpout) CurrentState() model.ConsumerState {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.currentState
}

func (m *MockDelegateSpout) StartingState() model.ConsumerState {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.startingState
}

func (m *MockDelegateSpout) EndingState() model.ConsumerState {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.endingState
}

func (m *MockDelegateSpout) IsCompleted() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.completed
}

func (m *MockDelegateSpout) MaxLag() float64 {
	return 0
}

func (m *MockDelegateSpout) NumberOfFiltersApplied() int {
	return 0
}
