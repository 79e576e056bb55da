package persistence

import (
	"context"
	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/pkg/errors"
	"sync"
)

type MockProducer struct {
	sync.Mutex
	messages []pulsar.ProducerMessage
	// SendErr, when set, fails every Send
	SendErr error
}

func (mp *MockProducer) Topic() string {
	return "mock_topic"
}

func (mp *MockProducer) Name() string {
	return "mock_producer"
}

func (mp *MockProducer) Send(ctx context.Context, msg *pulsar.ProducerMessage) (pulsar.MessageID, error) {
	mp.Lock()
	defer mp.Unlock()

	if msg == nil {
		return nil, errors.New("nil message")
	}
	if mp.SendErr != nil {
		return nil, mp.SendErr
	}

	mp.messages = append(mp.messages, *msg)

	return nil, nil
}

func (mp *MockProducer) SendAsync(ctx context.Context, msg *pulsar.ProducerMessage, callback func(pulsar.MessageID, *pulsar.ProducerMessage, error)) {
	// Not implemented for this test
}

func (mp *MockProducer) LastSequenceID() int64 {
	return -1
}

func (mp *MockProducer) Flush() error {
	return nil
}

func (mp *MockProducer) Close() {
	// Not implemented for this test
}

func (mp *MockProducer) Messages() []pulsar.ProducerMessage {
	mp.Lock()
	defer mp.Unlock()
	messages := make([]pulsar.ProducerMessage, len(mp.messages))
	copy(messages, mp.messages)
	return messages
}
