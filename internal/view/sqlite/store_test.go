package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"streamregistry/internal/domain"
)

func testStream(name string) domain.StreamDefinition {
	return domain.StreamDefinition{
		Name:              name,
		PartitionCount:    1,
		ReplicationFactor: 3,
		Placements:        []string{"vpc-a"},
		Tags:              domain.Tags{Hint: "primary"},
		CreatedAtMs:       1756200000000,
	}
}

func TestApplyLookupRoundtrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(filepath.Join(t.TempDir(), "view.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	stream := testStream("orders")
	stream.Consumers = []domain.Consumer{{Name: "billing", Regions: []string{"us-east-1"}}}
	if err := s.Apply(ctx, domain.ChangeEvent{Key: "orders", Operation: domain.OperationUpsert, Stream: &stream}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	got, found, err := s.Lookup(ctx, "orders")
	if err != nil || !found {
		t.Fatalf("lookup: found=%t err=%v", found, err)
	}
	if got.CreatedAtMs != stream.CreatedAtMs || len(got.Consumers) != 1 || got.Consumers[0].Name != "billing" {
		t.Fatalf("unexpected record: %+v", got)
	}

	if _, found, _ := s.Lookup(ctx, "ghost"); found {
		t.Fatalf("unknown key must be absent")
	}
}

func TestApplyUpsertsInPlaceAndTombstoneDeletes(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(filepath.Join(t.TempDir(), "view.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	first := testStream("orders")
	_ = s.Apply(ctx, domain.ChangeEvent{Key: "orders", Operation: domain.OperationUpsert, Stream: &first})

	second := testStream("orders")
	second.TopicConfig = map[string]string{"retention.ms": "60000"}
	if err := s.Apply(ctx, domain.ChangeEvent{Key: "orders", Operation: domain.OperationUpsert, Stream: &second}); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	got, _, _ := s.Lookup(ctx, "orders")
	if got.TopicConfig["retention.ms"] != "60000" {
		t.Fatalf("latest snapshot must win: %+v", got)
	}

	if err := s.Apply(ctx, domain.ChangeEvent{Key: "orders"}); err != nil {
		t.Fatalf("tombstone: %v", err)
	}
	if _, found, _ := s.Lookup(ctx, "orders"); found {
		t.Fatalf("tombstoned key must be absent")
	}
}

func TestAllListsLiveStreams(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(filepath.Join(t.TempDir(), "view.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	for _, name := range []string{"orders", "payments", "shipments"} {
		stream := testStream(name)
		if err := s.Apply(ctx, domain.ChangeEvent{Key: name, Operation: domain.OperationUpsert, Stream: &stream}); err != nil {
			t.Fatal(err)
		}
	}
	_ = s.Apply(ctx, domain.ChangeEvent{Key: "payments"})

	all, err := s.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 live streams, got %d", len(all))
	}
	names := make([]string, 0, len(all))
	for _, s := range all {
		names = append(names, s.Name)
	}
	joined := strings.Join(names, ",")
	if !strings.Contains(joined, "orders") || !strings.Contains(joined, "shipments") {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestReopenKeepsMaterializedState(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "view.db")

	{
		s, err := NewStore(path)
		if err != nil {
			t.Fatal(err)
		}
		stream := testStream("orders")
		if err := s.Apply(ctx, domain.ChangeEvent{Key: "orders", Operation: domain.OperationUpsert, Stream: &stream}); err != nil {
			t.Fatal(err)
		}
		_ = s.Close()
	}

	s2, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	got, found, err := s2.Lookup(ctx, "orders")
	if err != nil || !found {
		t.Fatalf("lookup after reopen: found=%t err=%v", found, err)
	}
	if got.Name != "orders" {
		t.Fatalf("unexpected recovered record: %+v", got)
	}
}
