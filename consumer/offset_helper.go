package consumer

import (
	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/pkg/errors"
)

// A message id maps to ledger<<32 | entry<<10 | batch index. Ledger ids grow
// over time and entries grow within a ledger, so offsets of one partition
// increase in delivery order.
const (
	batchBits  = 10
	entryBits  = 22
	ledgerBits = 63 - entryBits - batchBits

	maxBatchIdx = 1<<batchBits - 1
	maxEntryId  = 1<<entryBits - 1
	maxLedgerId = 1<<ledgerBits - 1
)

func convOffset(message pulsar.Message, continuousOffset bool) (int64, error) {
	if continuousOffset {
		index := message.Index()
		if index == nil {
			return 0, errors.New("continuous offset mode, index field must be set")
		}
		return int64(*index) + 1, nil
	}
	return ConvertMsgId(message.ID())
}

func ConvertMsgId(messageId pulsar.MessageID) (int64, error) {
	ledger, entry, batch := messageId.LedgerID(), messageId.EntryID(), int64(messageId.BatchIdx())
	if batch < 0 {
		batch = 0
	}
	if ledger < 0 || ledger > maxLedgerId {
		return 0, errors.Errorf("ledger id %d of message out of offset range", ledger)
	}
	if entry < 0 || entry > maxEntryId {
		return 0, errors.Errorf("entry id %d of message out of offset range", entry)
	}
	if batch > maxBatchIdx {
		return 0, errors.Errorf("batch index %d of message out of offset range", batch)
	}
	return ledger<<(entryBits+batchBits) | entry<<batchBits | batch, nil
}
