package coordinator

import (
	"github.com/pkg/errors"
	"github.com/protocol-laboratory/sideline-spout-go/consumer"
	"github.com/protocol-laboratory/sideline-spout-go/filter"
	"github.com/protocol-laboratory/sideline-spout-go/log"
	"github.com/protocol-laboratory/sideline-spout-go/model"
	"github.com/protocol-laboratory/sideline-spout-go/persistence"
	"github.com/protocol-laboratory/sideline-spout-go/spout"
	"sync"
)

var ErrSidelineNotFound = errors.New("sideline request not found")

// MainSpout is the unbounded spout whose filter chain holds the steps of the
// active sideline requests.
type MainSpout interface {
	spout.DelegateSpout
	FilterChain() *filter.Chain
	// ReadPosition covers every message the chain has already seen, unlike
	// CurrentState which stops at the first unacknowledged one.
	ReadPosition() model.ConsumerState
}

// SpoutFactory builds the bounded spout replaying a stopped sideline request.
type SpoutFactory func(id model.SidelineIdentifier, starting, ending model.ConsumerState, chain *filter.Chain) (spout.DelegateSpout, error)

// SidelineController starts and stops sideline requests. While a request is
// active its step filters messages out of the main spout; once stopped, a
// bounded spout replays the skipped range with the negated step. The range
// starts at the main spout's acknowledged state and ends at its read
// position, so it may repeat messages but never misses a filtered one.
type SidelineController struct {
	mutex       sync.Mutex
	coordinator *Coordinator
	mainSpout   MainSpout
	persistence persistence.PersistenceManager
	newSpout    SpoutFactory
	logger      log.Logger
}

func NewSidelineController(coordinator *Coordinator, mainSpout MainSpout, manager persistence.PersistenceManager,
	factory SpoutFactory, logger log.Logger) *SidelineController {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	return &SidelineController{
		coordinator: coordinator,
		mainSpout:   mainSpout,
		persistence: manager,
		newSpout:    factory,
		logger:      logger,
	}
}

func (s *SidelineController) StartSidelining(id model.SidelineIdentifier, step filter.Step) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	chain := s.mainSpout.FilterChain()
	chain.AddStep(id, step)
	starting := s.mainSpout.CurrentState()
	if err := s.persistence.PersistSidelineRequestState(id, starting); err != nil {
		chain.RemoveStep(id)
		return errors.Wrapf(err, "persist sideline request %s failed", id)
	}
	s.logger.SidelineID(id.String()).Infof("sideline started at %s", starting)
	return nil
}

func (s *SidelineController) StopSidelining(id model.SidelineIdentifier, step filter.Step) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	starting, exist, err := s.persistence.RetrieveSidelineRequestState(id)
	if err != nil {
		return errors.Wrapf(err, "retrieve sideline request %s failed", id)
	}
	if !exist {
		return errors.Wrapf(ErrSidelineNotFound, "sideline request %s", id)
	}
	// remove before reading the position: whatever the step filtered is below it
	s.mainSpout.FilterChain().RemoveStep(id)
	ending := s.mainSpout.ReadPosition()
	if err := s.persistence.PersistSidelineRequestState(id.EndingBoundary(), ending); err != nil {
		return errors.Wrapf(err, "persist ending of sideline request %s failed", id)
	}
	if err := s.replay(id, step, starting, ending); err != nil {
		return err
	}
	s.logger.SidelineID(id.String()).Infof("sideline stopped, replaying %s to %s", starting, ending)
	return nil
}

// Resume restores the requests persisted by a previous process. stepFor
// supplies the filter step of a request; requests without one are skipped.
func (s *SidelineController) Resume(stepFor func(id model.SidelineIdentifier) (filter.Step, bool)) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	ids, err := s.persistence.ListSidelineRequests()
	if err != nil {
		return errors.Wrap(err, "list sideline requests failed")
	}
	for _, id := range ids {
		if id.IsEndingBoundary() {
			continue
		}
		logger := s.logger.SidelineID(id.String())
		step, ok := stepFor(id)
		if !ok {
			logger.Warn("no filter step for sideline request, skipped")
			continue
		}
		starting, _, err := s.persistence.RetrieveSidelineRequestState(id)
		if err != nil {
			return errors.Wrapf(err, "retrieve sideline request %s failed", id)
		}
		ending, stopped, err := s.persistence.RetrieveSidelineRequestState(id.EndingBoundary())
		if err != nil {
			return errors.Wrapf(err, "retrieve ending of sideline request %s failed", id)
		}
		if !stopped {
			s.mainSpout.FilterChain().AddStep(id, step)
			logger.Info("resumed active sideline")
			continue
		}
		done, err := s.replayDone(id, starting, ending)
		if err != nil {
			return err
		}
		if done {
			logger.Debug("sideline replay already completed")
			continue
		}
		if err := s.replay(id, step, starting, ending); err != nil {
			return err
		}
		logger.Info("resumed sideline replay")
	}
	return nil
}

func (s *SidelineController) replay(id model.SidelineIdentifier, step filter.Step, starting, ending model.ConsumerState) error {
	chain := filter.NewChain()
	chain.AddStep(id, filter.NegatingStep{Step: step})
	replay, err := s.newSpout(id, starting, ending, chain)
	if err != nil {
		return errors.Wrapf(err, "create spout of sideline request %s failed", id)
	}
	return s.coordinator.AddVirtualSpout(replay)
}

// replayDone checks the progress persisted by the replaying spout, keyed by
// its virtual spout id.
func (s *SidelineController) replayDone(id model.SidelineIdentifier, starting, ending model.ConsumerState) (bool, error) {
	progress, exist, err := s.persistence.RetrieveConsumerState(id.VirtualSpoutId().String())
	if err != nil {
		return false, errors.Wrapf(err, "retrieve progress of sideline request %s failed", id)
	}
	if !exist {
		return false, nil
	}
	for _, partition := range starting.Partitions() {
		end, ok := ending.Offset(partition)
		if !ok {
			continue
		}
		offset, ok := progress.Offset(partition)
		if !ok || offset < end {
			return false, nil
		}
	}
	return true, nil
}

// VirtualSpoutFactory builds sideline spouts reading from a fresh consumer.
// Their progress is keyed by the sideline's virtual spout id.
func VirtualSpoutFactory(newConsumer func() (consumer.Consumer, error), manager persistence.PersistenceManager,
	logger log.Logger) SpoutFactory {
	return func(id model.SidelineIdentifier, starting, ending model.ConsumerState, chain *filter.Chain) (spout.DelegateSpout, error) {
		c, err := newConsumer()
		if err != nil {
			return nil, err
		}
		replay, err := spout.NewVirtualSpout(spout.Config{
			Id:                 id.VirtualSpoutId(),
			ConsumerId:         id.VirtualSpoutId().String(),
			StartingState:      starting,
			EndingState:        ending,
			Consumer:           c,
			PersistenceManager: manager,
			FilterChain:        chain,
			Logger:             logger,
		})
		if err != nil {
			return nil, err
		}
		return replay, nil
	}
}
