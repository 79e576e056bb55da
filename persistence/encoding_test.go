package persistence

import (
	"github.com/protocol-laboratory/sideline-spout-go/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestEncodeStateJSONLayout(t *testing.T) {
	state := model.NewConsumerStateBuilder().WithPartition(1, 7).WithPartition(0, 5).Build()

	data, err := EncodeState(EncodingJSON, state)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"partitions":[{"partition":0,"offset":5},{"partition":1,"offset":7}]}`, string(data))
}

func TestDecodeStateDetectsEncoding(t *testing.T) {
	state := model.NewConsumerStateBuilder().WithPartition(0, 5).WithPartition(2, -1).WithPartition(9, 1<<40).Build()

	for _, encoding := range []Encoding{EncodingJSON, EncodingBinary} {
		data, err := EncodeState(encoding, state)
		require.NoError(t, err)
		got, err := DecodeState(data)
		require.NoError(t, err, "encoding %s", encoding)
		assert.True(t, state.Equal(got), "encoding %s got %s", encoding, got)
	}
}

func TestDecodeStateEmptyKeepsBounded(t *testing.T) {
	for _, encoding := range []Encoding{EncodingJSON, EncodingBinary} {
		data, err := EncodeState(encoding, model.EmptyState())
		require.NoError(t, err)
		got, err := DecodeState(data)
		require.NoError(t, err)
		assert.True(t, got.IsEmpty())
		assert.False(t, got.IsUnbounded())
	}
}

func TestDecodeStateRejectsUnknownVersion(t *testing.T) {
	_, err := DecodeState([]byte(`{"version":2,"partitions":[]}`))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	_, err = DecodeState([]byte{0x08, 0x02, 0x10, 0x00})
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestDecodeStateRejectsGarbage(t *testing.T) {
	_, err := DecodeState(nil)
	assert.Error(t, err)

	_, err = DecodeState([]byte{0x08, 0x01, 0x10, 0x02})
	assert.Error(t, err, "declared two entries but none present")

	_, err = DecodeState([]byte("{not json"))
	assert.Error(t, err)
}

func TestUnboundedStateRoundTrip(t *testing.T) {
	for _, encoding := range []Encoding{EncodingJSON, EncodingBinary} {
		data, err := EncodeState(encoding, model.UnboundedState)
		require.NoError(t, err)
		got, err := DecodeState(data)
		require.NoError(t, err, "encoding %s", encoding)
		assert.True(t, got.IsUnbounded(), "encoding %s", encoding)
		assert.True(t, model.UnboundedState.Equal(got), "encoding %s", encoding)
	}

	data, err := EncodeState(EncodingJSON, model.UnboundedState)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"unbounded":true,"partitions":[]}`, string(data))
}
