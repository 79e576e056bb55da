package spout

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestPartitionTrackerContiguousAck(t *testing.T) {
	tracker := newPartitionTracker(0)
	for offset := int64(1); offset <= 4; offset++ {
		assert.True(t, tracker.track(offset))
	}
	assert.True(t, tracker.finish(2))
	assert.Equal(t, int64(0), tracker.lastFinished)
	assert.True(t, tracker.finish(1))
	assert.Equal(t, int64(2), tracker.lastFinished)
	assert.True(t, tracker.finish(4))
	assert.Equal(t, int64(2), tracker.lastFinished)
	assert.True(t, tracker.finish(3))
	assert.Equal(t, int64(4), tracker.lastFinished)
	assert.Equal(t, 0, tracker.pending())
}

func TestPartitionTrackerIgnoresUnknownAndDuplicate(t *testing.T) {
	tracker := newPartitionTracker(10)
	assert.False(t, tracker.track(10))
	assert.True(t, tracker.track(12))
	assert.False(t, tracker.track(11))
	assert.False(t, tracker.finish(11))
	assert.True(t, tracker.finish(12))
	assert.False(t, tracker.finish(12))
	assert.Equal(t, int64(12), tracker.lastFinished)
}

func TestPartitionTrackerCurrentWhenExhausted(t *testing.T) {
	tracker := newPartitionTracker(3)
	tracker.exhausted = true
	assert.Equal(t, int64(5), tracker.current(5, true))
	assert.Equal(t, int64(3), tracker.current(0, false))

	tracker.exhausted = false
	assert.Equal(t, int64(3), tracker.current(5, true))
}
