package consumer

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestConvertMsgId(t *testing.T) {
	offset, err := ConvertMsgId(MockMessageID{Ledger: 0, Entry: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1<<batchBits), offset)

	offset, err = ConvertMsgId(MockMessageID{Ledger: 12, Entry: 34, Partition: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(12)<<32|int64(34)<<10, offset)
}

func TestConvertMsgIdAcrossLedgers(t *testing.T) {
	ids := []MockMessageID{
		{Ledger: 10, Entry: 9},
		{Ledger: 10, Entry: 999},
		{Ledger: 10, Entry: maxEntryId},
		{Ledger: 11, Entry: 0},
		{Ledger: 11, Entry: 1},
		{Ledger: 100, Entry: 0},
	}
	previous := int64(-1)
	for _, id := range ids {
		offset, err := ConvertMsgId(id)
		require.NoError(t, err)
		assert.Greater(t, offset, previous, "ledger %d entry %d", id.Ledger, id.Entry)
		previous = offset
	}
}

func TestConvertMsgIdBatch(t *testing.T) {
	first, err := ConvertMsgId(MockMessageID{Ledger: 5, Entry: 7, Batch: 0})
	require.NoError(t, err)
	second, err := ConvertMsgId(MockMessageID{Ledger: 5, Entry: 7, Batch: 1})
	require.NoError(t, err)
	next, err := ConvertMsgId(MockMessageID{Ledger: 5, Entry: 8, Batch: -1})
	require.NoError(t, err)
	assert.Equal(t, first+1, second)
	assert.Greater(t, next, second)
}

func TestConvertMsgIdOutOfRange(t *testing.T) {
	_, err := ConvertMsgId(MockMessageID{Ledger: maxLedgerId + 1})
	assert.Error(t, err)
	_, err = ConvertMsgId(MockMessageID{Ledger: 1, Entry: maxEntryId + 1})
	assert.Error(t, err)
	_, err = ConvertMsgId(MockMessageID{Ledger: -1})
	assert.Error(t, err)
	_, err = ConvertMsgId(MockMessageID{Ledger: 1, Batch: maxBatchIdx + 1})
	assert.Error(t, err)

	offset, err := ConvertMsgId(MockMessageID{Ledger: maxLedgerId, Entry: maxEntryId, Batch: maxBatchIdx})
	require.NoError(t, err)
	assert.Greater(t, offset, int64(0))
}
