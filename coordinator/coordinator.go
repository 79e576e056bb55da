package coordinator

import (
	"github.com/pkg/errors"
	"github.com/protocol-laboratory/sideline-spout-go/log"
	"github.com/protocol-laboratory/sideline-spout-go/metrics"
	"github.com/protocol-laboratory/sideline-spout-go/model"
	"github.com/protocol-laboratory/sideline-spout-go/spout"
	"github.com/protocol-laboratory/sideline-spout-go/utils"
	"runtime/debug"
	"sync"
	"time"
)

var (
	ErrSpoutExists = errors.New("virtual spout already exists")
	ErrClosed      = errors.New("coordinator is closed")
)

// Coordinator drives every virtual spout on its own goroutine and merges
// their messages into one channel. Acks and fails are routed back to the
// emitting spout by MessageId.SourceId.
type Coordinator struct {
	config  *Config
	logger  log.Logger
	limiter *utils.KeyBasedRateLimiter

	mutex   sync.RWMutex
	spouts  map[model.VirtualSpoutIdentifier]spout.DelegateSpout
	started bool
	closed  bool

	wg       sync.WaitGroup
	messages chan *model.Message
	closeCh  chan struct{}
}

func NewCoordinator(config Config) *Coordinator {
	config.setDefaults()
	return &Coordinator{
		config:   &config,
		logger:   config.Logger,
		limiter:  utils.NewKeyBasedRateLimiter(config.FlushIntervalSeconds, 1),
		spouts:   make(map[model.VirtualSpoutIdentifier]spout.DelegateSpout),
		messages: make(chan *model.Message, config.OutputBufferSize),
		closeCh:  make(chan struct{}),
	}
}

// Start launches the spouts added so far; later ones start when added.
func (c *Coordinator) Start() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.started || c.closed {
		return
	}
	c.started = true
	for _, s := range c.spouts {
		c.launch(s)
	}
	c.logger.Infof("coordinator started with %d virtual spouts", len(c.spouts))
}

func (c *Coordinator) AddVirtualSpout(s spout.DelegateSpout) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return ErrClosed
	}
	id := s.VirtualSpoutId()
	if _, exist := c.spouts[id]; exist {
		return errors.Wrapf(ErrSpoutExists, "virtual spout %s", id)
	}
	c.spouts[id] = s
	if c.started {
		c.launch(s)
	}
	return nil
}

func (c *Coordinator) launch(s spout.DelegateSpout) {
	c.wg.Add(1)
	go c.runSpout(s)
}

func (c *Coordinator) HasVirtualSpout(id model.VirtualSpoutIdentifier) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	_, exist := c.spouts[id]
	return exist
}

func (c *Coordinator) VirtualSpout(id model.VirtualSpoutIdentifier) (spout.DelegateSpout, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	s, exist := c.spouts[id]
	return s, exist
}

func (c *Coordinator) VirtualSpoutIds() []model.VirtualSpoutIdentifier {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	ids := make([]model.VirtualSpoutIdentifier, 0, len(c.spouts))
	for id := range c.spouts {
		ids = append(ids, id)
	}
	return ids
}

func (c *Coordinator) RequestStop(id model.VirtualSpoutIdentifier) bool {
	s, exist := c.VirtualSpout(id)
	if !exist {
		return false
	}
	s.RequestStop()
	return true
}

// Messages is closed once Close returns.
func (c *Coordinator) Messages() <-chan *model.Message {
	return c.messages
}

func (c *Coordinator) Ack(id model.MessageId) {
	s, exist := c.VirtualSpout(model.VirtualSpoutIdentifier(id.SourceId))
	if !exist {
		c.logger.Debugf("ack %s of unknown virtual spout, ignored", id)
		return
	}
	s.Ack(id)
}

func (c *Coordinator) Fail(id model.MessageId) {
	s, exist := c.VirtualSpout(model.VirtualSpoutIdentifier(id.SourceId))
	if !exist {
		c.logger.Debugf("fail %s of unknown virtual spout, ignored", id)
		return
	}
	s.Fail(id)
}

// Close stops every spout and waits until their state was flushed.
func (c *Coordinator) Close() {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return
	}
	c.closed = true
	for _, s := range c.spouts {
		s.RequestStop()
	}
	c.mutex.Unlock()
	close(c.closeCh)
	c.wg.Wait()
	close(c.messages)
	c.logger.Info("coordinator closed")
}

func (c *Coordinator) runSpout(s spout.DelegateSpout) {
	defer c.wg.Done()
	logger := c.logger.VirtualSpoutID(s.VirtualSpoutId().String())
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("virtual spout runner panic: %v\n%s", r, debug.Stack())
			metrics.SpoutFatalCount.Inc()
		}
	}()
	if err := s.Open(); err != nil {
		logger.Errorf("open virtual spout failed: %v", err)
		metrics.SpoutFatalCount.Inc()
		c.finish(s, false, logger)
		return
	}
	metrics.SpoutRunningCount.Inc()
	logger.Info("virtual spout running")
	c.loop(s, logger)
	metrics.SpoutRunningCount.Dec()
	c.finish(s, true, logger)
}

func (c *Coordinator) loop(s spout.DelegateSpout, logger log.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("virtual spout panic: %v\n%s", r, debug.Stack())
			metrics.SpoutFatalCount.Inc()
		}
	}()
	id := s.VirtualSpoutId().String()
	for !s.IsStopRequested() {
		message, err := s.NextTuple()
		if err != nil {
			logger.Errorf("virtual spout failed, stopping it: %v", err)
			metrics.SpoutFatalCount.Inc()
			return
		}
		if message != nil {
			if !c.emit(s, message) {
				return
			}
		} else {
			if s.IsCompleted() {
				logger.Info("virtual spout completed")
				s.RequestStop()
				return
			}
			time.Sleep(c.config.IdleSleep)
		}
		if c.limiter.Acquire(id) {
			if err := s.FlushState(); err != nil {
				metrics.SpoutFlushFailCount.Inc()
				logger.Warnf("flush state failed: %v", err)
			}
		}
	}
}

// emit blocks until the message was handed out or the spout was stopped.
func (c *Coordinator) emit(s spout.DelegateSpout, message *model.Message) bool {
	timer := time.NewTimer(c.config.IdleSleep)
	defer timer.Stop()
	for {
		select {
		case c.messages <- message:
			return true
		case <-c.closeCh:
			return false
		case <-timer.C:
			if s.IsStopRequested() {
				return false
			}
			timer.Reset(c.config.IdleSleep)
		}
	}
}

func (c *Coordinator) finish(s spout.DelegateSpout, opened bool, logger log.Logger) {
	completed := false
	if opened {
		c.flushWithRetry(s, logger)
		completed = s.IsCompleted()
	}
	if err := s.Close(); err != nil {
		logger.Errorf("close virtual spout failed: %v", err)
	}
	c.mutex.Lock()
	delete(c.spouts, s.VirtualSpoutId())
	c.mutex.Unlock()
	c.limiter.Clean(s.VirtualSpoutId().String())
	logger.Infof("virtual spout closed, completed: %t", completed)
	if c.config.OnSpoutClosed != nil {
		c.config.OnSpoutClosed(s, completed)
	}
}

func (c *Coordinator) flushWithRetry(s spout.DelegateSpout, logger log.Logger) {
	var err error
	for attempt := 1; attempt <= c.config.FlushRetryAttempts; attempt++ {
		if err = s.FlushState(); err == nil {
			return
		}
		metrics.SpoutFlushFailCount.Inc()
		logger.Warnf("flush state failed, attempt %d: %v", attempt, err)
		if attempt < c.config.FlushRetryAttempts {
			time.Sleep(c.config.FlushRetryBackoff * time.Duration(attempt))
		}
	}
	logger.Errorf("flush state gave up after %d attempts: %v", c.config.FlushRetryAttempts, err)
}
