package spout

import (
	"github.com/protocol-laboratory/sideline-spout-go/constant"
	"github.com/protocol-laboratory/sideline-spout-go/model"
	"math"
	"time"
)

// RetryManager decides whether and when a failed message is emitted again.
// The virtual spout calls it while holding its bookkeeping lock.
type RetryManager interface {
	// RetryFurther reports whether a message that just failed may be retried.
	RetryFurther(id model.MessageId) bool

	// Failed schedules id for another attempt.
	Failed(id model.MessageId)

	// Retrying reports whether id is scheduled and not emitted again yet.
	Retrying(id model.MessageId) bool

	Acked(id model.MessageId)

	// NextFailedMessageToRetry returns a message whose retry is due.
	NextFailedMessageToRetry() (model.MessageId, bool)
}

type RetryConfig struct {
	// MaxRetries is the number of retries per message, -1 retries forever.
	// Zero picks the default, see NeverRetry for disabling retries.
	MaxRetries   int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

type failedMessage struct {
	failCount int
	retryAt   time.Time
	queued    bool
}

// DefaultRetryManager retries with exponential backoff.
type DefaultRetryManager struct {
	config RetryConfig
	failed map[model.MessageId]*failedMessage
	now    func() time.Time
}

// NewDefaultRetryManager fills zero fields of config with defaults. Use
// NeverRetry to disable retries.
func NewDefaultRetryManager(config RetryConfig) *DefaultRetryManager {
	if config.MaxRetries == 0 {
		config.MaxRetries = constant.DefaultRetryLimit
	}
	if config.InitialDelay == 0 {
		config.InitialDelay = constant.DefaultRetryInitialDelay
	}
	if config.Multiplier == 0 {
		config.Multiplier = constant.DefaultRetryMultiplier
	}
	if config.MaxDelay == 0 {
		config.MaxDelay = constant.DefaultRetryMaxDelay
	}
	return &DefaultRetryManager{
		config: config,
		failed: make(map[model.MessageId]*failedMessage),
		now:    time.Now,
	}
}

// NeverRetry drops failed messages at once.
func NeverRetry() *DefaultRetryManager {
	manager := NewDefaultRetryManager(RetryConfig{})
	manager.config.MaxRetries = 0
	return manager
}

func (d *DefaultRetryManager) RetryFurther(id model.MessageId) bool {
	if d.config.MaxRetries < 0 {
		return true
	}
	if d.config.MaxRetries == 0 {
		return false
	}
	count := 0
	if message, exist := d.failed[id]; exist {
		count = message.failCount
	}
	return count < d.config.MaxRetries
}

// Failed ignores ids that are still queued, a repeated fail of the same
// delivery does not use up another retry.
func (d *DefaultRetryManager) Failed(id model.MessageId) {
	message, exist := d.failed[id]
	if !exist {
		message = &failedMessage{}
		d.failed[id] = message
	}
	if message.queued {
		return
	}
	message.failCount++
	message.retryAt = d.now().Add(d.delay(message.failCount))
	message.queued = true
}

func (d *DefaultRetryManager) Retrying(id model.MessageId) bool {
	message, exist := d.failed[id]
	return exist && message.queued
}

func (d *DefaultRetryManager) Acked(id model.MessageId) {
	delete(d.failed, id)
}

func (d *DefaultRetryManager) NextFailedMessageToRetry() (model.MessageId, bool) {
	now := d.now()
	var next model.MessageId
	var nextMessage *failedMessage
	for id, message := range d.failed {
		if !message.queued || message.retryAt.After(now) {
			continue
		}
		if nextMessage == nil || message.retryAt.Before(nextMessage.retryAt) ||
			(message.retryAt.Equal(nextMessage.retryAt) && id.Offset < next.Offset) {
			next, nextMessage = id, message
		}
	}
	if nextMessage == nil {
		return model.MessageId{}, false
	}
	nextMessage.queued = false
	return next, true
}

func (d *DefaultRetryManager) delay(failCount int) time.Duration {
	delay := float64(d.config.InitialDelay) * math.Pow(d.config.Multiplier, float64(failCount-1))
	if delay > float64(d.config.MaxDelay) {
		return d.config.MaxDelay
	}
	return time.Duration(delay)
}
