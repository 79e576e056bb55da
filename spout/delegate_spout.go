package spout

import (
	"github.com/pkg/errors"
	"github.com/protocol-laboratory/sideline-spout-go/model"
)

var (
	ErrInvalidState  = errors.New("virtual spout is in an invalid state for this operation")
	ErrInvalidConfig = errors.New("invalid virtual spout config")
)

// DelegateSpout is one virtual consumer unit. Open, NextTuple, FlushState and
// Close belong to the goroutine that drives the unit; Ack, Fail, RequestStop
// and the state getters may be called from any goroutine.
type DelegateSpout interface {
	Open() error

	Close() error

	// NextTuple returns the next message to emit or nil when none is ready.
	// It never blocks. An error is fatal for the unit.
	NextTuple() (*model.Message, error)

	Ack(id model.MessageId)

	Fail(id model.MessageId)

	VirtualSpoutId() model.VirtualSpoutIdentifier

	// FlushState persists CurrentState under the unit's consumer id.
	FlushState() error

	RequestStop()

	IsStopRequested() bool

	CurrentState() model.ConsumerState

	StartingState() model.ConsumerState

	// EndingState is model.UnboundedState for the main unit.
	EndingState() model.ConsumerState

	IsCompleted() bool

	MaxLag() float64

	NumberOfFiltersApplied() int
}
