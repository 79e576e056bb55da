package utils

import (
	"context"
	"fmt"
	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/gogo/protobuf/proto"
	"github.com/pkg/errors"
	"github.com/protocol-laboratory/pulsar-admin-go/padmin"
	"github.com/protocol-laboratory/pulsar-codec-go/pb"
	"github.com/protocol-laboratory/sideline-spout-go/constant"
	"strings"
	"time"
)

// FullTopic builds persistent://tenant/namespace/topic.
func FullTopic(tenant, namespace, topic string) string {
	return fmt.Sprintf("persistent://%s/%s/%s", tenant, namespace, topic)
}

func PartitionedTopic(topic string, partition int) string {
	return topic + fmt.Sprintf(constant.PartitionSuffixFormat, partition)
}

// SplitTopic is the inverse of FullTopic.
func SplitTopic(topic string) (tenant, namespace, name string, err error) {
	idx := strings.Index(topic, "://")
	if idx < 0 {
		return "", "", "", errors.Errorf("topic %s has no domain", topic)
	}
	parts := strings.SplitN(topic[idx+3:], "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", errors.Errorf("topic %s is not tenant/namespace/name", topic)
	}
	return parts[0], parts[1], parts[2], nil
}

// ReadLastMessage returns the newest message of a partition, or nil when the
// partition is empty or the message did not arrive within timeout.
func ReadLastMessage(client pulsar.Client, admin *padmin.PulsarAdmin, partitionedTopic string,
	timeout time.Duration) (pulsar.Message, error) {
	tenant, namespace, name, err := SplitTopic(partitionedTopic)
	if err != nil {
		return nil, err
	}
	lastId, err := admin.PersistentTopics.GetLastMessageId(tenant, namespace, name)
	if err != nil {
		return nil, errors.Wrapf(err, "get last message id of %s", partitionedTopic)
	}
	startId, err := toMessageId(lastId)
	if err != nil {
		return nil, errors.Wrapf(err, "convert last message id of %s", partitionedTopic)
	}
	reader, err := client.CreateReader(pulsar.ReaderOptions{
		Topic:                   partitionedTopic,
		Name:                    constant.LastMessageReaderName,
		StartMessageID:          startId,
		StartMessageIDInclusive: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create last message reader of %s", partitionedTopic)
	}
	defer reader.Close()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	message, err := reader.Next(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read last message of %s", partitionedTopic)
	}
	return message, nil
}

// toMessageId goes through the wire form because the client offers no
// constructor for message ids.
func toMessageId(id *padmin.MessageId) (pulsar.MessageID, error) {
	data, err := proto.Marshal(&pb.MessageIdData{
		LedgerId:   proto.Uint64(uint64(id.LedgerId)),
		EntryId:    proto.Uint64(uint64(id.EntryId)),
		BatchIndex: proto.Int32(0),
		Partition:  proto.Int32(id.PartitionIndex),
	})
	if err != nil {
		return nil, err
	}
	return pulsar.DeserializeMessageID(data)
}

// MessageSize counts key, payload and property bytes.
func MessageSize(message pulsar.Message) int {
	size := len(message.Key()) + len(message.Payload())
	for key, value := range message.Properties() {
		size += len(key) + len(value)
	}
	return size
}
