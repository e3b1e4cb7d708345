package changelog

import (
	"strings"
	"testing"

	"streamregistry/internal/domain"
)

func TestEncodeDecodeUpsert(t *testing.T) {
	stream := domain.StreamDefinition{
		Name:                 "orders",
		PartitionCount:       1,
		ReplicationFactor:    3,
		Placements:           []string{"vpc-a"},
		ReplicatedPlacements: []string{"vpc-dr"},
		Tags:                 domain.Tags{Hint: "primary", Brand: "acme"},
		TopicConfig:          map[string]string{"retention.ms": "86400000"},
		CreatedAtMs:          1756200000000,
		Producers:            []domain.Producer{{Name: "checkout", Regions: []string{"us-east-1"}}},
	}
	value, err := EncodeUpsert(stream)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(value), `"operation_type":"UPSERT"`) {
		t.Fatalf("missing operation tag: %s", value)
	}

	ev, err := Decode([]byte("orders"), value)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Key != "orders" || ev.Operation != domain.OperationUpsert || ev.Stream == nil {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Stream.CreatedAtMs != stream.CreatedAtMs || len(ev.Stream.Producers) != 1 {
		t.Fatalf("snapshot fields lost: %+v", ev.Stream)
	}
}

func TestDecodeTombstone(t *testing.T) {
	ev, err := Decode([]byte("orders"), nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Key != "orders" || ev.Stream != nil {
		t.Fatalf("expected tombstone event, got %+v", ev)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("orders"), []byte("{broken")); err == nil {
		t.Fatalf("expected decode error")
	}
}
