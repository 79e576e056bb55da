package filter

import (
	"github.com/protocol-laboratory/sideline-spout-go/model"
	"github.com/stretchr/testify/assert"
	"strconv"
	"sync"
	"testing"
)

func keyEquals(key string) Step {
	return StepFunc(func(msg *model.Message) bool {
		return msg.Key == key
	})
}

func TestChainFilter(t *testing.T) {
	chain := NewChain()
	assert.False(t, chain.Filter(&model.Message{Key: "a"}))

	chain.AddStep("s1", keyEquals("a"))
	chain.AddStep("s2", keyEquals("b"))

	assert.True(t, chain.Filter(&model.Message{Key: "a"}))
	assert.True(t, chain.Filter(&model.Message{Key: "b"}))
	assert.False(t, chain.Filter(&model.Message{Key: "c"}))
	assert.Equal(t, 2, chain.Len())
}

func TestChainRemoveStep(t *testing.T) {
	chain := NewChain()
	chain.AddStep("s1", keyEquals("a"))

	step, ok := chain.RemoveStep("s1")
	assert.True(t, ok)
	assert.NotNil(t, step)
	assert.False(t, chain.HasStep("s1"))
	assert.False(t, chain.Filter(&model.Message{Key: "a"}))

	_, ok = chain.RemoveStep("s1")
	assert.False(t, ok)
}

func TestChainAddStepReplaces(t *testing.T) {
	chain := NewChain()
	chain.AddStep("s1", keyEquals("a"))
	chain.AddStep("s1", keyEquals("b"))

	assert.Equal(t, 1, chain.Len())
	assert.False(t, chain.Filter(&model.Message{Key: "a"}))
	assert.True(t, chain.Filter(&model.Message{Key: "b"}))
}

func TestNegatingStep(t *testing.T) {
	step := NegatingStep{Step: keyEquals("a")}
	assert.False(t, step.Filter(&model.Message{Key: "a"}))
	assert.True(t, step.Filter(&model.Message{Key: "b"}))
}

func TestChainConcurrentAccess(t *testing.T) {
	chain := NewChain()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			chain.AddStep(model.SidelineIdentifier(strconv.Itoa(i)), keyEquals(strconv.Itoa(i)))
		}(i)
		go func() {
			defer wg.Done()
			chain.Filter(&model.Message{Key: "x"})
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, chain.Len())
}
