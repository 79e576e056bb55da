package persistence

import (
	"github.com/protocol-laboratory/sideline-spout-go/model"
	"sort"
	"sync"
)

// InMemoryPersistenceManager keeps state in process memory. Useful for tests;
// all state is lost when the process exits, and Close clears it.
type InMemoryPersistenceManager struct {
	mutex                  sync.RWMutex
	opened                 bool
	storedConsumerState    map[string]model.ConsumerState
	storedSidelineRequests map[model.SidelineIdentifier]model.ConsumerState
}

func NewInMemoryPersistenceManager() *InMemoryPersistenceManager {
	return &InMemoryPersistenceManager{}
}

func (m *InMemoryPersistenceManager) Open() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	// non-destructive re-init
	if m.storedConsumerState == nil {
		m.storedConsumerState = make(map[string]model.ConsumerState)
	}
	if m.storedSidelineRequests == nil {
		m.storedSidelineRequests = make(map[model.SidelineIdentifier]model.ConsumerState)
	}
	m.opened = true
	return nil
}

func (m *InMemoryPersistenceManager) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.storedConsumerState = nil
	m.storedSidelineRequests = nil
	m.opened = false
	return nil
}

func (m *InMemoryPersistenceManager) PersistConsumerState(consumerId string, state model.ConsumerState) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if !m.opened {
		return ErrNotOpen
	}
	m.storedConsumerState[consumerId] = state
	return nil
}

func (m *InMemoryPersistenceManager) RetrieveConsumerState(consumerId string) (model.ConsumerState, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if !m.opened {
		return model.ConsumerState{}, false, ErrNotOpen
	}
	state, exist := m.storedConsumerState[consumerId]
	return state, exist, nil
}

func (m *InMemoryPersistenceManager) PersistSidelineRequestState(id model.SidelineIdentifier, state model.ConsumerState) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if !m.opened {
		return ErrNotOpen
	}
	m.storedSidelineRequests[id] = state
	return nil
}

func (m *InMemoryPersistenceManager) RetrieveSidelineRequestState(id model.SidelineIdentifier) (model.ConsumerState, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if !m.opened {
		return model.ConsumerState{}, false, ErrNotOpen
	}
	state, exist := m.storedSidelineRequests[id]
	return state, exist, nil
}

func (m *InMemoryPersistenceManager) ListSidelineRequests() ([]model.SidelineIdentifier, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if !m.opened {
		return nil, ErrNotOpen
	}
	ids := make([]model.SidelineIdentifier, 0, len(m.storedSidelineRequests))
	for id := range m.storedSidelineRequests {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
