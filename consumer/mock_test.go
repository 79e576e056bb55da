package consumer

import (
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestMockConsumerSkipsUnsubscribedPartitions(t *testing.T) {
	m := NewMockConsumer(
		&Record{Partition: 0, Offset: 1},
		&Record{Partition: 1, Offset: 1},
		&Record{Partition: 0, Offset: 2},
	)
	assert.True(t, m.Unsubscribe(0))

	record, err := m.Poll()
	assert.NoError(t, err)
	assert.Equal(t, int32(1), record.Partition)

	record, err = m.Poll()
	assert.NoError(t, err)
	assert.Nil(t, record)
}

func TestMockConsumerPollErr(t *testing.T) {
	m := NewMockConsumer()
	m.SetPollErr(errors.New("broken"))

	_, err := m.Poll()
	assert.Error(t, err)
}
