package changelog

import (
	"encoding/json"
	"fmt"

	"streamregistry/internal/domain"
)

type wireRecord struct {
	Operation domain.OperationType    `json:"operation_type"`
	Stream    domain.StreamDefinition `json:"stream"`
}

// EncodeUpsert serializes one stream snapshot as an UPSERT changelog value.
// Tombstones are not encoded; they are nil record values on the wire.
func EncodeUpsert(stream domain.StreamDefinition) ([]byte, error) {
	payload, err := json.Marshal(wireRecord{Operation: domain.OperationUpsert, Stream: stream})
	if err != nil {
		return nil, fmt.Errorf("encode change event: %w", err)
	}
	return payload, nil
}

// Decode turns one changelog record back into a ChangeEvent. An empty value
// is the compaction tombstone for key.
func Decode(key, value []byte) (domain.ChangeEvent, error) {
	ev := domain.ChangeEvent{Key: string(key)}
	if len(value) == 0 {
		return ev, nil
	}
	var in wireRecord
	if err := json.Unmarshal(value, &in); err != nil {
		return domain.ChangeEvent{}, fmt.Errorf("decode change event for key %q: %w", key, err)
	}
	ev.Operation = in.Operation
	stream := in.Stream
	ev.Stream = &stream
	return ev, nil
}
