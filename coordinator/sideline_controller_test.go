package coordinator

import (
	"github.com/pkg/errors"
	"github.com/protocol-laboratory/sideline-spout-go/consumer"
	"github.com/protocol-laboratory/sideline-spout-go/filter"
	"github.com/protocol-laboratory/sideline-spout-go/model"
	"github.com/protocol-laboratory/sideline-spout-go/persistence"
	"github.com/protocol-laboratory/sideline-spout-go/spout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

var sourceKeys = []string{"a", "x", "a", "x", "a", "x"}

func source() []*consumer.Record {
	result := make([]*consumer.Record, 0, len(sourceKeys))
	for i, key := range sourceKeys {
		result = append(result, &consumer.Record{Topic: "topic", Partition: 0, Offset: int64(i + 1), Key: key})
	}
	return result
}

func keyIs(key string) filter.Step {
	return filter.StepFunc(func(msg *model.Message) bool {
		return msg.Key == key
	})
}

func state(offsets map[int32]int64) model.ConsumerState {
	return model.NewConsumerStateBuilder().WithPartitions(offsets).Build()
}

type sidelineFixture struct {
	coordinator *Coordinator
	manager     *persistence.InMemoryPersistenceManager
	mainSpout   *spout.VirtualSpout
	mainSource  *consumer.MockConsumer
	controller  *SidelineController
}

func newSidelineFixture(t *testing.T, records ...*consumer.Record) *sidelineFixture {
	manager := persistence.NewInMemoryPersistenceManager()
	require.NoError(t, manager.Open())
	mainSource := consumer.NewMockConsumer(records...)
	mainSpout, err := spout.NewVirtualSpout(spout.Config{
		Id:                 "main",
		StartingState:      state(map[int32]int64{0: 0}),
		EndingState:        model.UnboundedState,
		Consumer:           mainSource,
		PersistenceManager: manager,
	})
	require.NoError(t, err)
	coordinator, _ := newTestCoordinator()
	factory := VirtualSpoutFactory(func() (consumer.Consumer, error) {
		return consumer.NewMockConsumer(source()...), nil
	}, manager, nil)
	return &sidelineFixture{
		coordinator: coordinator,
		manager:     manager,
		mainSpout:   mainSpout,
		mainSource:  mainSource,
		controller:  NewSidelineController(coordinator, mainSpout, manager, factory, nil),
	}
}

func pollAndAck(t *testing.T, s spout.DelegateSpout, attempts int) []*model.Message {
	var emitted []*model.Message
	for i := 0; i < attempts; i++ {
		message, err := s.NextTuple()
		require.NoError(t, err)
		if message != nil {
			emitted = append(emitted, message)
			s.Ack(message.Id)
		}
	}
	return emitted
}

func TestSidelineStartStopReplaysSkippedMessages(t *testing.T) {
	fixture := newSidelineFixture(t, source()[:5]...)
	id := model.SidelineIdentifier("req")
	require.NoError(t, fixture.mainSpout.Open())

	assert.Len(t, pollAndAck(t, fixture.mainSpout, 1), 1)
	require.NoError(t, fixture.controller.StartSidelining(id, keyIs("x")))
	assert.True(t, fixture.mainSpout.FilterChain().HasStep(id))
	starting, exist, err := fixture.manager.RetrieveSidelineRequestState(id)
	require.NoError(t, err)
	assert.True(t, exist)
	assert.True(t, state(map[int32]int64{0: 1}).Equal(starting))

	emitted := pollAndAck(t, fixture.mainSpout, 4)
	require.Len(t, emitted, 2)
	for _, message := range emitted {
		assert.Equal(t, "a", message.Key)
	}
	assert.True(t, state(map[int32]int64{0: 5}).Equal(fixture.mainSpout.CurrentState()))

	require.NoError(t, fixture.controller.StopSidelining(id, keyIs("x")))
	assert.False(t, fixture.mainSpout.FilterChain().HasStep(id))
	ending, exist, err := fixture.manager.RetrieveSidelineRequestState(id.EndingBoundary())
	require.NoError(t, err)
	assert.True(t, exist)
	assert.True(t, state(map[int32]int64{0: 5}).Equal(ending))

	replay, ok := fixture.coordinator.VirtualSpout(id.VirtualSpoutId())
	require.True(t, ok)
	assert.True(t, starting.Equal(replay.StartingState()))
	assert.True(t, ending.Equal(replay.EndingState()))
	require.NoError(t, replay.Open())
	replayed := pollAndAck(t, replay, 10)
	require.Len(t, replayed, 2)
	assert.Equal(t, int64(2), replayed[0].Id.Offset)
	assert.Equal(t, int64(4), replayed[1].Id.Offset)
	assert.Equal(t, id.VirtualSpoutId().String(), replayed[0].Id.SourceId)
	assert.True(t, replay.IsCompleted())
}

func TestStopUnknownSideline(t *testing.T) {
	fixture := newSidelineFixture(t)
	err := fixture.controller.StopSidelining("missing", keyIs("x"))
	assert.True(t, errors.Is(err, ErrSidelineNotFound))
	assert.Empty(t, fixture.coordinator.VirtualSpoutIds())
}

func TestStartSidelineRollsBackOnPersistFailure(t *testing.T) {
	fixture := newSidelineFixture(t)
	require.NoError(t, fixture.manager.Close())
	err := fixture.controller.StartSidelining("req", keyIs("x"))
	assert.True(t, errors.Is(err, persistence.ErrNotOpen))
	assert.False(t, fixture.mainSpout.FilterChain().HasStep("req"))
}

func TestSidelineResume(t *testing.T) {
	fixture := newSidelineFixture(t)
	m := fixture.manager
	require.NoError(t, m.PersistSidelineRequestState("active", state(map[int32]int64{0: 1})))
	require.NoError(t, m.PersistSidelineRequestState("stopped", state(map[int32]int64{0: 1})))
	require.NoError(t, m.PersistSidelineRequestState(model.SidelineIdentifier("stopped").EndingBoundary(), state(map[int32]int64{0: 5})))
	require.NoError(t, m.PersistConsumerState(model.SidelineIdentifier("stopped").VirtualSpoutId().String(), state(map[int32]int64{0: 3})))
	require.NoError(t, m.PersistSidelineRequestState("done", state(map[int32]int64{0: 1})))
	require.NoError(t, m.PersistSidelineRequestState(model.SidelineIdentifier("done").EndingBoundary(), state(map[int32]int64{0: 5})))
	require.NoError(t, m.PersistConsumerState(model.SidelineIdentifier("done").VirtualSpoutId().String(), state(map[int32]int64{0: 5})))
	require.NoError(t, m.PersistSidelineRequestState("orphan", state(map[int32]int64{0: 1})))

	err := fixture.controller.Resume(func(id model.SidelineIdentifier) (filter.Step, bool) {
		if id == "orphan" {
			return nil, false
		}
		return keyIs("x"), true
	})
	require.NoError(t, err)

	chain := fixture.mainSpout.FilterChain()
	assert.True(t, chain.HasStep("active"))
	assert.False(t, chain.HasStep("stopped"))
	assert.False(t, chain.HasStep("orphan"))
	assert.Equal(t, 1, chain.Len())

	assert.True(t, fixture.coordinator.HasVirtualSpout(model.SidelineIdentifier("stopped").VirtualSpoutId()))
	assert.False(t, fixture.coordinator.HasVirtualSpout(model.SidelineIdentifier("done").VirtualSpoutId()))
	assert.False(t, fixture.coordinator.HasVirtualSpout(model.SidelineIdentifier("active").VirtualSpoutId()))

	replay, _ := fixture.coordinator.VirtualSpout(model.SidelineIdentifier("stopped").VirtualSpoutId())
	require.NoError(t, replay.Open())
	replayed := pollAndAck(t, replay, 10)
	require.Len(t, replayed, 1)
	assert.Equal(t, int64(4), replayed[0].Id.Offset)
	assert.True(t, replay.IsCompleted())
}

func TestSidelineStopWithUnackedMainMessages(t *testing.T) {
	fixture := newSidelineFixture(t, source()...)
	id := model.SidelineIdentifier("inflight")
	require.NoError(t, fixture.mainSpout.Open())
	require.NoError(t, fixture.controller.StartSidelining(id, keyIs("x")))

	var mainEmitted []*model.Message
	for i := 0; i < 6; i++ {
		message, err := fixture.mainSpout.NextTuple()
		require.NoError(t, err)
		if message != nil {
			mainEmitted = append(mainEmitted, message)
		}
	}
	require.Len(t, mainEmitted, 3)
	assert.True(t, state(map[int32]int64{0: 0}).Equal(fixture.mainSpout.CurrentState()))
	assert.True(t, state(map[int32]int64{0: 6}).Equal(fixture.mainSpout.ReadPosition()))

	require.NoError(t, fixture.controller.StopSidelining(id, keyIs("x")))
	ending, _, err := fixture.manager.RetrieveSidelineRequestState(id.EndingBoundary())
	require.NoError(t, err)
	assert.True(t, state(map[int32]int64{0: 6}).Equal(ending))

	replay, ok := fixture.coordinator.VirtualSpout(id.VirtualSpoutId())
	require.True(t, ok)
	require.NoError(t, replay.Open())
	replayed := pollAndAck(t, replay, 10)
	assert.True(t, replay.IsCompleted())

	seen := map[int64]bool{}
	for _, message := range append(mainEmitted, replayed...) {
		seen[message.Id.Offset] = true
	}
	for offset := int64(1); offset <= 6; offset++ {
		assert.True(t, seen[offset], "offset %d emitted by neither spout", offset)
	}
	assert.Len(t, replayed, 3)
}
