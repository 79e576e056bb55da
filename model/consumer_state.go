package model

import (
	"fmt"
	"sort"
	"strings"
)

// ConsumerState is an immutable partition -> offset checkpoint.
// The zero value is the unbounded sentinel, see UnboundedState.
type ConsumerState struct {
	offsets map[int32]int64
}

// UnboundedState marks an ending state with no upper bound.
var UnboundedState = ConsumerState{}

type ConsumerStateBuilder struct {
	offsets map[int32]int64
}

func NewConsumerStateBuilder() *ConsumerStateBuilder {
	return &ConsumerStateBuilder{offsets: make(map[int32]int64)}
}

func (b *ConsumerStateBuilder) WithPartition(partition int32, offset int64) *ConsumerStateBuilder {
	b.offsets[partition] = offset
	return b
}

func (b *ConsumerStateBuilder) WithPartitions(offsets map[int32]int64) *ConsumerStateBuilder {
	for partition, offset := range offsets {
		b.offsets[partition] = offset
	}
	return b
}

// Build returns a bounded state. The builder may be reused afterwards.
func (b *ConsumerStateBuilder) Build() ConsumerState {
	offsets := make(map[int32]int64, len(b.offsets))
	for partition, offset := range b.offsets {
		offsets[partition] = offset
	}
	return ConsumerState{offsets: offsets}
}

// EmptyState is a bounded state without partitions.
func EmptyState() ConsumerState {
	return NewConsumerStateBuilder().Build()
}

func (c ConsumerState) IsUnbounded() bool {
	return c.offsets == nil
}

func (c ConsumerState) IsEmpty() bool {
	return len(c.offsets) == 0
}

func (c ConsumerState) Len() int {
	return len(c.offsets)
}

func (c ConsumerState) Offset(partition int32) (int64, bool) {
	offset, ok := c.offsets[partition]
	return offset, ok
}

func (c ConsumerState) Contains(partition int32) bool {
	_, ok := c.offsets[partition]
	return ok
}

// Partitions returns the partitions in ascending order.
func (c ConsumerState) Partitions() []int32 {
	partitions := make([]int32, 0, len(c.offsets))
	for partition := range c.offsets {
		partitions = append(partitions, partition)
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })
	return partitions
}

// Offsets returns a copy of the underlying map.
func (c ConsumerState) Offsets() map[int32]int64 {
	offsets := make(map[int32]int64, len(c.offsets))
	for partition, offset := range c.offsets {
		offsets[partition] = offset
	}
	return offsets
}

func (c ConsumerState) Equal(other ConsumerState) bool {
	if c.IsUnbounded() != other.IsUnbounded() {
		return false
	}
	if len(c.offsets) != len(other.offsets) {
		return false
	}
	for partition, offset := range c.offsets {
		otherOffset, ok := other.offsets[partition]
		if !ok || otherOffset != offset {
			return false
		}
	}
	return true
}

func (c ConsumerState) String() string {
	if c.IsUnbounded() {
		return "ConsumerState{unbounded}"
	}
	parts := make([]string, 0, len(c.offsets))
	for _, partition := range c.Partitions() {
		parts = append(parts, fmt.Sprintf("%d:%d", partition, c.offsets[partition]))
	}
	return "ConsumerState{" + strings.Join(parts, ", ") + "}"
}
