package consumer

import (
	"github.com/protocol-laboratory/sideline-spout-go/model"
	"time"
)

// Record is one message read from a partition of the source.
type Record struct {
	Topic      string
	Partition  int32
	Offset     int64
	Key        string
	Payload    []byte
	Properties map[string]string
	Timestamp  time.Time
}

// Consumer is the physical source client driven by a virtual spout. All
// methods are called from the spout's polling goroutine only.
type Consumer interface {
	// Open subscribes to the source. Records at or below the offset recorded in
	// state for a partition have already been processed.
	Open(state model.ConsumerState) error

	// Poll returns the next available record or nil when none is ready. It
	// must not block. An error means the source can no longer be read.
	Poll() (*Record, error)

	// Unsubscribe stops reading a partition. It reports whether the partition
	// was subscribed.
	Unsubscribe(partition int32) bool

	// Commit reports that everything at or below state was processed and
	// persisted. Sources that keep their own cursor advance it here.
	Commit(state model.ConsumerState) error

	// EndOffsets returns the offset of the last message per partition.
	EndOffsets() (map[int32]int64, error)

	Close() error
}
