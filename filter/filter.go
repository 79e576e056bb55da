package filter

import (
	"github.com/protocol-laboratory/sideline-spout-go/model"
	"sync"
)

// Step decides whether a message is filtered out.
type Step interface {
	Filter(msg *model.Message) bool
}

type StepFunc func(msg *model.Message) bool

func (f StepFunc) Filter(msg *model.Message) bool {
	return f(msg)
}

// NegatingStep filters exactly the messages its inner step lets through. A
// sideline replay uses it to emit only what the main spout skipped.
type NegatingStep struct {
	Step Step
}

func (n NegatingStep) Filter(msg *model.Message) bool {
	return !n.Step.Filter(msg)
}

// Chain applies its steps in insertion order; a message is filtered as soon
// as one step filters it. Safe for concurrent use.
type Chain struct {
	mutex sync.RWMutex
	steps map[model.SidelineIdentifier]Step
	order []model.SidelineIdentifier
}

func NewChain() *Chain {
	return &Chain{steps: make(map[model.SidelineIdentifier]Step)}
}

// AddStep adds or replaces the step registered under id.
func (c *Chain) AddStep(id model.SidelineIdentifier, step Step) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if _, exist := c.steps[id]; !exist {
		c.order = append(c.order, id)
	}
	c.steps[id] = step
}

func (c *Chain) RemoveStep(id model.SidelineIdentifier) (Step, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	step, exist := c.steps[id]
	if !exist {
		return nil, false
	}
	delete(c.steps, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return step, true
}

func (c *Chain) HasStep(id model.SidelineIdentifier) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	_, exist := c.steps[id]
	return exist
}

func (c *Chain) Filter(msg *model.Message) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	for _, id := range c.order {
		if c.steps[id].Filter(msg) {
			return true
		}
	}
	return false
}

func (c *Chain) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.steps)
}
