package persistence

import (
	"encoding/json"
	"github.com/gogo/protobuf/proto"
	"github.com/pkg/errors"
	"github.com/protocol-laboratory/sideline-spout-go/model"
)

type Encoding string

const (
	EncodingJSON   Encoding = "json"
	EncodingBinary Encoding = "binary"
)

const stateRecordVersion = 1

// binary field numbers
const (
	fieldVersion   = 1
	fieldCount     = 2
	fieldEntry     = 3
	fieldUnbounded = 4
)

// stateRecord is the versioned form of a ConsumerState. Unbounded is only
// written for the unbounded sentinel, records without it are bounded.
type stateRecord struct {
	Version    int               `json:"version"`
	Unbounded  bool              `json:"unbounded,omitempty"`
	Partitions []partitionOffset `json:"partitions"`
}

type partitionOffset struct {
	Partition int32 `json:"partition"`
	Offset    int64 `json:"offset"`
}

func EncodeState(encoding Encoding, state model.ConsumerState) ([]byte, error) {
	switch encoding {
	case EncodingJSON, "":
		return encodeJSON(state)
	case EncodingBinary:
		return encodeBinary(state)
	}
	return nil, errors.Errorf("unexpect encoding: %s", encoding)
}

// DecodeState accepts either encoding, detected from the first byte.
func DecodeState(data []byte) (model.ConsumerState, error) {
	if len(data) == 0 {
		return model.ConsumerState{}, errors.New("empty state record")
	}
	if data[0] == '{' {
		return decodeJSON(data)
	}
	return decodeBinary(data)
}

func encodeJSON(state model.ConsumerState) ([]byte, error) {
	record := stateRecord{
		Version:    stateRecordVersion,
		Unbounded:  state.IsUnbounded(),
		Partitions: make([]partitionOffset, 0, state.Len()),
	}
	for _, partition := range state.Partitions() {
		offset, _ := state.Offset(partition)
		record.Partitions = append(record.Partitions, partitionOffset{Partition: partition, Offset: offset})
	}
	return json.Marshal(record)
}

func decodeJSON(data []byte) (model.ConsumerState, error) {
	var record stateRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.ConsumerState{}, errors.Wrap(err, "unmarshal state record failed")
	}
	if record.Version != stateRecordVersion {
		return model.ConsumerState{}, errors.Wrapf(ErrUnsupportedVersion, "version %d", record.Version)
	}
	if record.Unbounded {
		return model.UnboundedState, nil
	}
	builder := model.NewConsumerStateBuilder()
	for _, p := range record.Partitions {
		builder.WithPartition(p.Partition, p.Offset)
	}
	return builder.Build(), nil
}

func encodeBinary(state model.ConsumerState) ([]byte, error) {
	buf := proto.NewBuffer(nil)
	if err := encodeVarintField(buf, fieldVersion, stateRecordVersion); err != nil {
		return nil, err
	}
	if state.IsUnbounded() {
		if err := encodeVarintField(buf, fieldUnbounded, 1); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	if err := encodeVarintField(buf, fieldCount, uint64(state.Len())); err != nil {
		return nil, err
	}
	for _, partition := range state.Partitions() {
		offset, _ := state.Offset(partition)
		entry := proto.NewBuffer(nil)
		if err := entry.EncodeVarint(uint64(uint32(partition))); err != nil {
			return nil, err
		}
		if err := entry.EncodeZigzag64(uint64(offset)); err != nil {
			return nil, err
		}
		if err := buf.EncodeVarint(uint64(fieldEntry<<3 | proto.WireBytes)); err != nil {
			return nil, err
		}
		if err := buf.EncodeRawBytes(entry.Bytes()); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func encodeVarintField(buf *proto.Buffer, field int, value uint64) error {
	if err := buf.EncodeVarint(uint64(field<<3 | proto.WireVarint)); err != nil {
		return err
	}
	return buf.EncodeVarint(value)
}

func decodeBinary(data []byte) (model.ConsumerState, error) {
	buf := proto.NewBuffer(data)
	version, err := decodeVarintField(buf, fieldVersion)
	if err != nil {
		return model.ConsumerState{}, err
	}
	if version != stateRecordVersion {
		return model.ConsumerState{}, errors.Wrapf(ErrUnsupportedVersion, "version %d", version)
	}
	tag, err := buf.DecodeVarint()
	if err != nil {
		return model.ConsumerState{}, errors.Wrap(err, "decode tag after version failed")
	}
	if tag == uint64(fieldUnbounded<<3|proto.WireVarint) {
		if _, err := buf.DecodeVarint(); err != nil {
			return model.ConsumerState{}, errors.Wrap(err, "decode unbounded flag failed")
		}
		return model.UnboundedState, nil
	}
	if tag != uint64(fieldCount<<3|proto.WireVarint) {
		return model.ConsumerState{}, errors.Errorf("unexpect tag %d, want field %d", tag, fieldCount)
	}
	count, err := buf.DecodeVarint()
	if err != nil {
		return model.ConsumerState{}, errors.Wrapf(err, "decode field %d failed", fieldCount)
	}
	builder := model.NewConsumerStateBuilder()
	for i := uint64(0); i < count; i++ {
		tag, err := buf.DecodeVarint()
		if err != nil {
			return model.ConsumerState{}, errors.Wrap(err, "decode entry tag failed")
		}
		if tag != uint64(fieldEntry<<3|proto.WireBytes) {
			return model.ConsumerState{}, errors.Errorf("unexpect entry tag: %d", tag)
		}
		raw, err := buf.DecodeRawBytes(false)
		if err != nil {
			return model.ConsumerState{}, errors.Wrap(err, "decode entry failed")
		}
		entry := proto.NewBuffer(raw)
		partition, err := entry.DecodeVarint()
		if err != nil {
			return model.ConsumerState{}, errors.Wrap(err, "decode partition failed")
		}
		offset, err := entry.DecodeZigzag64()
		if err != nil {
			return model.ConsumerState{}, errors.Wrap(err, "decode offset failed")
		}
		builder.WithPartition(int32(uint32(partition)), int64(offset))
	}
	return builder.Build(), nil
}

func decodeVarintField(buf *proto.Buffer, field int) (uint64, error) {
	tag, err := buf.DecodeVarint()
	if err != nil {
		return 0, errors.Wrapf(err, "decode tag of field %d failed", field)
	}
	if tag != uint64(field<<3|proto.WireVarint) {
		return 0, errors.Errorf("unexpect tag %d, want field %d", tag, field)
	}
	value, err := buf.DecodeVarint()
	if err != nil {
		return 0, errors.Wrapf(err, "decode field %d failed", field)
	}
	return value, nil
}
