package persistence

import (
	"github.com/pkg/errors"
	"github.com/protocol-laboratory/sideline-spout-go/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func newTestPulsarManager(producer *MockProducer) *PulsarPersistenceManager {
	return &PulsarPersistenceManager{
		config:         &Config{Type: TypePulsar, KeyPrefix: "it/", Encoding: EncodingJSON},
		producer:       producer,
		opened:         true,
		consumerStates: make(map[string]model.ConsumerState),
		sidelineStates: make(map[model.SidelineIdentifier]model.ConsumerState),
	}
}

func TestPulsarPersistConsumerState(t *testing.T) {
	mockProducer := &MockProducer{}
	manager := newTestPulsarManager(mockProducer)
	state := model.NewConsumerStateBuilder().WithPartition(0, 5).Build()

	err := manager.PersistConsumerState("c1", state)
	assert.Nil(t, err)

	messages := mockProducer.Messages()
	assert.Equal(t, 1, len(messages))
	assert.Equal(t, "it/consumer/c1", messages[0].Key)
	decoded, err := DecodeState(messages[0].Payload)
	assert.Nil(t, err)
	assert.True(t, state.Equal(decoded))

	got, exist, err := manager.RetrieveConsumerState("c1")
	assert.Nil(t, err)
	assert.True(t, exist)
	assert.True(t, state.Equal(got))
}

func TestPulsarPersistFailureLeavesViewUntouched(t *testing.T) {
	mockProducer := &MockProducer{SendErr: errors.New("broker down")}
	manager := newTestPulsarManager(mockProducer)

	err := manager.PersistSidelineRequestState("req", model.EmptyState())
	assert.Error(t, err)

	_, exist, err := manager.RetrieveSidelineRequestState("req")
	assert.Nil(t, err)
	assert.False(t, exist)
}

func TestPulsarApplyRecordReplay(t *testing.T) {
	manager := newTestPulsarManager(&MockProducer{})
	older, _ := EncodeState(EncodingJSON, model.NewConsumerStateBuilder().WithPartition(0, 1).Build())
	newer, _ := EncodeState(EncodingBinary, model.NewConsumerStateBuilder().WithPartition(0, 2).Build())
	request, _ := EncodeState(EncodingJSON, model.NewConsumerStateBuilder().WithPartition(1, 9).Build())

	manager.applyRecord("it/consumer/c1", older)
	manager.applyRecord("it/consumer/c1", newer)
	manager.applyRecord("it/sideline/req", request)
	manager.applyRecord("it/consumer/gone", older)
	manager.applyRecord("it/consumer/gone", nil)
	manager.applyRecord("other/consumer/c1", older)

	got, exist, err := manager.RetrieveConsumerState("c1")
	require.NoError(t, err)
	assert.True(t, exist)
	offset, _ := got.Offset(0)
	assert.Equal(t, int64(2), offset)

	_, exist, _ = manager.RetrieveConsumerState("gone")
	assert.False(t, exist)

	ids, err := manager.ListSidelineRequests()
	require.NoError(t, err)
	assert.Equal(t, []model.SidelineIdentifier{"req"}, ids)
}

func TestPulsarClosedManagerRejectsCalls(t *testing.T) {
	manager := newTestPulsarManager(&MockProducer{})
	require.NoError(t, manager.Close())

	err := manager.PersistConsumerState("c1", model.EmptyState())
	assert.ErrorIs(t, err, ErrNotOpen)
}
