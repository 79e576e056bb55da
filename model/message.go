package model

import (
	"fmt"
	"time"
)

// MessageId identifies exactly one emitted message. SourceId is the
// identifier of the virtual spout that emitted it.
type MessageId struct {
	SourceId  string
	Partition int32
	Offset    int64
}

func (m MessageId) String() string {
	return fmt.Sprintf("%s-%d-%d", m.SourceId, m.Partition, m.Offset)
}

type Message struct {
	Id        MessageId
	Topic     string
	Key       string
	Payload   []byte
	Headers   map[string]string
	Timestamp time.Time
}
